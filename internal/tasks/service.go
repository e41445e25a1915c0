package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/services"
	"github.com/desertthunder/shelfreq/internal/shared"
)

// RunHistory reads and repairs the run ledger.
type RunHistory interface {
	Get(ctx context.Context, id string) (*models.SyncRun, error)
	List(ctx context.Context, page, perPage int) (*models.RunPage, error)
	LatestFinished(ctx context.Context) (*models.SyncRun, error)
	HasRunning(ctx context.Context) (bool, error)
	HasActive(ctx context.Context, window time.Duration) (bool, error)
	ReclaimStale(ctx context.Context, window time.Duration) (int64, error)
}

// SyncStatus summarizes the sync subsystem for operators.
type SyncStatus struct {
	Configured       bool            `json:"configured"`
	LastRun          *models.SyncRun `json:"last_run"`
	IsRunning        bool            `json:"is_running"`
	NextScheduledRun *time.Time      `json:"next_scheduled_run"`
	Queued           int             `json:"queued"`
}

// ServiceDeps holds the collaborators of a [SyncService].
type ServiceDeps struct {
	Engine     SyncEngine
	Runs       RunHistory
	Catalog    services.Catalog
	Dispatcher *Dispatcher
	Scheduler  *Scheduler // optional
	Cache      *services.CatalogCache
	Window     time.Duration
	Logger     *log.Logger
}

// SyncService is the single entry point used by the HTTP API, CLI and monitor.
type SyncService struct {
	engine     SyncEngine
	runs       RunHistory
	catalog    services.Catalog
	dispatcher *Dispatcher
	scheduler  *Scheduler
	cache      *services.CatalogCache
	window     time.Duration
	logger     *log.Logger
}

// NewSyncService wires the service. The dispatcher is created from the engine when omitted.
func NewSyncService(deps ServiceDeps) *SyncService {
	s := &SyncService{
		engine:     deps.Engine,
		runs:       deps.Runs,
		catalog:    deps.Catalog,
		dispatcher: deps.Dispatcher,
		scheduler:  deps.Scheduler,
		cache:      deps.Cache,
		window:     deps.Window,
		logger:     deps.Logger,
	}
	if s.logger == nil {
		s.logger = shared.NewLogger(nil)
	}
	if s.window <= 0 {
		s.window = DefaultStalenessWindow
	}
	if s.dispatcher == nil && s.engine != nil {
		s.dispatcher = NewDispatcher(s.engine, DefaultQueueSize, DefaultWorkers, s.logger)
	}
	return s
}

// Configured reports whether the catalog connection is configured.
func (s *SyncService) Configured() bool {
	return s.catalog != nil && s.catalog.Configured()
}

// Start launches the dispatcher, and the scheduler when the catalog is configured.
func (s *SyncService) Start(ctx context.Context) {
	s.dispatcher.Start(ctx)
	if s.scheduler == nil {
		return
	}
	if !s.Configured() {
		s.logger.Warn("catalog not configured, scheduled sync disabled")
		return
	}
	s.scheduler.Start(ctx)
}

// Stop halts the scheduler, then drains the dispatcher.
func (s *SyncService) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.dispatcher.Stop()
}

// TriggerSync queues a run and returns immediately, reporting whether it was queued.
//
// Returns [shared.ErrCatalogNotConfigured] when no catalog is configured. A
// trigger arriving while a run is queued or in progress is a no-op: it is
// logged and reported as not queued, never as an error.
func (s *SyncService) TriggerSync(ctx context.Context, trigger models.Trigger, actorID *string) (bool, error) {
	if !s.Configured() {
		return false, shared.ErrCatalogNotConfigured
	}

	active, err := s.runs.HasActive(ctx, s.window)
	if err != nil {
		return false, err
	}
	if active || s.dispatcher.Busy() {
		s.logger.Info("sync trigger ignored, another sync is in progress", "trigger", trigger, "actor", shared.Deref(actorID))
		return false, nil
	}

	if !s.dispatcher.Submit(Job{Trigger: trigger, ActorID: actorID}) {
		return false, nil
	}
	s.logger.Info("sync queued", "trigger", trigger, "actor", shared.Deref(actorID))
	return true, nil
}

// RunNow executes a run on the caller's goroutine, bypassing the queue.
func (s *SyncService) RunNow(ctx context.Context, trigger models.Trigger, actorID *string, progress chan<- ProgressUpdate) (*models.SyncRun, error) {
	if !s.Configured() {
		return nil, shared.ErrCatalogNotConfigured
	}
	return s.engine.Run(ctx, trigger, actorID, progress)
}

// Status reports the last finished run, whether one is in flight and when the next scheduled one fires.
func (s *SyncService) Status(ctx context.Context) (*SyncStatus, error) {
	last, err := s.runs.LatestFinished(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load last run: %w", err)
	}

	running, err := s.runs.HasRunning(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check running runs: %w", err)
	}

	status := &SyncStatus{
		Configured: s.Configured(),
		LastRun:    last,
		IsRunning:  running,
		Queued:     s.dispatcher.Pending(),
	}
	if s.scheduler != nil {
		status.NextScheduledRun = s.scheduler.NextRun()
	}
	return status, nil
}

// History returns one page of the ledger, newest first.
func (s *SyncService) History(ctx context.Context, page, perPage int) (*models.RunPage, error) {
	return s.runs.List(ctx, page, perPage)
}

// Run returns one ledger entry.
func (s *SyncService) Run(ctx context.Context, id string) (*models.SyncRun, error) {
	return s.runs.Get(ctx, id)
}

// ReclaimStale marks running entries older than the staleness window as failed.
func (s *SyncService) ReclaimStale(ctx context.Context) (int64, error) {
	n, err := s.runs.ReclaimStale(ctx, s.window)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Warn("reclaimed abandoned sync runs", "count", n)
	}
	return n, nil
}

// CatalogSnapshot returns the cached catalog, fetching it when the cache is empty or expired.
func (s *SyncService) CatalogSnapshot(ctx context.Context) ([]models.CatalogEntry, time.Time, error) {
	if s.cache != nil {
		if items, at, ok := s.cache.Get(); ok {
			return items, at, nil
		}
	}
	if !s.Configured() {
		return nil, time.Time{}, shared.ErrCatalogNotConfigured
	}

	items, err := s.catalog.FetchAllItems(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	at := time.Now().UTC()
	if s.cache != nil {
		s.cache.Set(items)
	}
	return items, at, nil
}
