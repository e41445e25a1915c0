package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/shared"
)

const (
	DefaultQueueSize = 4
	DefaultWorkers   = 1
	maxWorkers       = 4
)

// Job is one queued sync trigger.
type Job struct {
	Trigger  models.Trigger
	ActorID  *string
	Enqueued time.Time
}

// JobResult is reported to the finish hook after a job ran.
type JobResult struct {
	Job Job
	Run *models.SyncRun // nil when the guard rejected the job
	Err error
}

// Dispatcher drains a bounded queue of sync jobs on a fixed number of workers.
//
// Submit never blocks; a full queue drops the job. A started run is never
// cancelled: workers run jobs on a context detached from the one passed to Start.
type Dispatcher struct {
	engine  SyncEngine
	queue   chan Job
	workers int
	logger  *log.Logger

	mu       sync.RWMutex
	started  bool
	stopped  bool
	progress chan<- ProgressUpdate
	onFinish func(JobResult)

	inflight atomic.Int32 // queued plus running
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Non-positive sizes fall back to the defaults.
func NewDispatcher(engine SyncEngine, queueSize, workers int, logger *log.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Dispatcher{
		engine:  engine,
		queue:   make(chan Job, queueSize),
		workers: workers,
		logger:  logger,
	}
}

// SetProgress forwards progress updates of every run to ch. Must be called before Start.
func (d *Dispatcher) SetProgress(ch chan<- ProgressUpdate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress = ch
}

// OnFinish registers a hook called after each job. Must be called before Start.
func (d *Dispatcher) OnFinish(fn func(JobResult)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFinish = fn
}

// Start launches the workers. Calling Start more than once has no effect.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	runCtx := context.WithoutCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(runCtx, i+1, d.progress, d.onFinish)
	}
	d.logger.Debug("dispatcher started", "workers", d.workers, "queue", cap(d.queue))
}

// Submit enqueues job without blocking and reports whether it was accepted.
func (d *Dispatcher) Submit(job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.logger.Warn("sync trigger dropped, dispatcher stopped", "trigger", job.Trigger)
		return false
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	d.inflight.Add(1)
	select {
	case d.queue <- job:
		return true
	default:
		d.inflight.Add(-1)
		d.logger.Warn("sync trigger dropped, queue full", "trigger", job.Trigger, "queued", len(d.queue))
		return false
	}
}

// Pending returns the number of queued jobs.
func (d *Dispatcher) Pending() int { return len(d.queue) }

// Busy reports whether a job is queued or running.
func (d *Dispatcher) Busy() bool { return d.inflight.Load() > 0 }

// Stop closes the queue and waits for queued and running jobs to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Debug("dispatcher stopped")
}

func (d *Dispatcher) worker(ctx context.Context, id int, progress chan<- ProgressUpdate, onFinish func(JobResult)) {
	defer d.wg.Done()
	logger := d.logger.With("worker", id)

	for job := range d.queue {
		result := d.execute(ctx, logger, job, progress)
		d.inflight.Add(-1)
		if onFinish != nil {
			onFinish(result)
		}
	}
}

// execute runs one job, recovering panics so the worker survives.
func (d *Dispatcher) execute(ctx context.Context, logger *log.Logger, job Job, progress chan<- ProgressUpdate) (result JobResult) {
	result.Job = job
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("%w: panic: %v", shared.ErrSyncFailed, r)
			logger.Error("sync job panicked", "trigger", job.Trigger, "panic", r)
		}
	}()

	logger.Debug("sync job picked up", "trigger", job.Trigger, "waited", time.Since(job.Enqueued).Round(time.Millisecond))

	run, err := d.engine.Run(ctx, job.Trigger, job.ActorID, progress)
	result.Run, result.Err = run, err
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrSyncInProgress):
		logger.Info("sync job skipped", "trigger", job.Trigger, "reason", err)
	default:
		logger.Warn("sync job finished with error", "trigger", job.Trigger, "err", err)
	}
	return result
}
