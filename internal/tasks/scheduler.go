package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/shared"
)

// DefaultInterval is the time between scheduled runs.
const DefaultInterval = 6 * time.Hour

// Submitter accepts sync jobs. Implemented by [Dispatcher].
type Submitter interface {
	Submit(job Job) bool
}

// Scheduler submits a scheduled job every interval. The first job fires one
// interval after Start.
type Scheduler struct {
	target   Submitter
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time

	mu     sync.Mutex
	next   *time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler for target.
func NewScheduler(target Submitter, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Scheduler{target: target, interval: interval, logger: logger, now: time.Now}
}

// Interval returns the configured interval.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// NextRun returns the next fire time, or nil when the scheduler is not running.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next == nil {
		return nil
	}
	next := *s.next
	return &next
}

// Running reports whether the ticker loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Start launches the ticker loop. It stops when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.setNext(s.now().Add(s.interval))

	go s.loop(ctx, s.done)
	s.logger.Info("scheduler started", "interval", s.interval, "next", s.next.Format(time.RFC3339))
}

// Stop halts the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done, s.next = nil, nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Debug("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.cancel != nil {
				s.setNext(s.now().Add(s.interval))
			}
			s.mu.Unlock()

			if !s.target.Submit(Job{Trigger: models.TriggerScheduled}) {
				s.logger.Warn("scheduled sync not queued")
			}
		}
	}
}

// setNext must be called with mu held.
func (s *Scheduler) setNext(t time.Time) {
	t = t.UTC()
	s.next = &t
}
