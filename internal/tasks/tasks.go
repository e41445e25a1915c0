package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/shelfreq/internal/matcher"
	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/services"
	"github.com/desertthunder/shelfreq/internal/shared"
)

// DefaultStalenessWindow is how long a running run blocks new ones.
const DefaultStalenessWindow = 5 * time.Minute

// SyncEngine defines a single reconciliation run.
type SyncEngine interface {
	// Run opens a ledger entry, matches every open request against the catalog, commits all
	// request changes at once and closes the entry. Returns [shared.ErrSyncInProgress] without
	// creating an entry when another recent run is still open.
	Run(ctx context.Context, trigger models.Trigger, actorID *string, progress chan<- ProgressUpdate) (*models.SyncRun, error)
}

// RequestStore is the request persistence the engine needs.
type RequestStore interface {
	ListByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Request, error)
	ApplyChanges(ctx context.Context, changes []models.RequestChange) (skipped []string, err error)
}

// RunLedger opens and closes ledger entries.
type RunLedger interface {
	BeginRun(ctx context.Context, run *models.SyncRun, window time.Duration) error
	Complete(ctx context.Context, run *models.SyncRun) error
	Fail(ctx context.Context, run *models.SyncRun, message string) error
}

// EngineDeps holds the collaborators of a [ReconcileEngine].
type EngineDeps struct {
	Requests RequestStore
	Runs     RunLedger
	Catalog  services.Catalog
	Matcher  *matcher.Matcher
	Cache    *services.CatalogCache // optional
	Window   time.Duration          // defaults to DefaultStalenessWindow
	Logger   *log.Logger
}

// ReconcileEngine implements SyncEngine.
type ReconcileEngine struct {
	requests RequestStore
	runs     RunLedger
	catalog  services.Catalog
	matcher  *matcher.Matcher
	cache    *services.CatalogCache
	window   time.Duration
	logger   *log.Logger
	now      func() time.Time
}

// NewReconcileEngine creates a new ReconcileEngine with the provided collaborators.
func NewReconcileEngine(deps EngineDeps) *ReconcileEngine {
	e := &ReconcileEngine{
		requests: deps.Requests,
		runs:     deps.Runs,
		catalog:  deps.Catalog,
		matcher:  deps.Matcher,
		cache:    deps.Cache,
		window:   deps.Window,
		logger:   deps.Logger,
		now:      time.Now,
	}
	if e.window <= 0 {
		e.window = DefaultStalenessWindow
	}
	if e.logger == nil {
		e.logger = shared.NewLogger(nil)
	}
	if e.matcher == nil {
		e.matcher, _ = matcher.New(matcher.DefaultThreshold)
	}
	return e
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *ReconcileEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run performs one reconciliation.
//
// Any failure after the entry is opened closes it as failed and leaves every
// request untouched. Closing uses a context detached from ctx cancellation so
// the entry is never left running because the caller went away.
func (e *ReconcileEngine) Run(ctx context.Context, trigger models.Trigger, actorID *string, progress chan<- ProgressUpdate) (*models.SyncRun, error) {
	if e.requests == nil || e.runs == nil || e.catalog == nil {
		return nil, fmt.Errorf("%w: sync engine not initialized", shared.ErrServiceUnavailable)
	}

	run := models.NewSyncRun(trigger, actorID)
	if err := e.runs.BeginRun(ctx, run, e.window); err != nil {
		if errors.Is(err, shared.ErrSyncInProgress) {
			e.logger.Info("sync skipped, another run is in progress", "trigger", trigger)
		}
		return nil, err
	}

	logger := e.logger.With("run", run.Sequence, "trigger", trigger)
	logger.Info("sync started")
	e.sendProgress(progress, openRunUpdate(run))

	closeCtx := context.WithoutCancel(ctx)

	checked, matched, err := e.reconcile(ctx, logger, progress)
	if err != nil {
		logger.Error("sync failed", "err", err)
		if closeErr := e.runs.Fail(closeCtx, run, err.Error()); closeErr != nil {
			logger.Error("failed to close sync run", "err", closeErr)
			return run, errors.Join(err, closeErr)
		}
		e.sendProgress(progress, failedUpdate(run, err))
		return run, err
	}

	run.RequestsChecked = checked
	run.MatchedRequestIDs = matched
	if err := e.runs.Complete(closeCtx, run); err != nil {
		logger.Error("failed to close sync run", "err", err)
		return run, err
	}

	logger.Info("sync completed", "checked", run.RequestsChecked, "matched", run.MatchesFound)
	e.sendProgress(progress, completedUpdate(run))
	return run, nil
}

// reconcile fetches the catalog, evaluates every open request and commits the
// accumulated changes. Panics are converted to [shared.ErrSyncFailed].
func (e *ReconcileEngine) reconcile(ctx context.Context, logger *log.Logger, progress chan<- ProgressUpdate) (checked int, matched []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			checked, matched = 0, nil
			err = fmt.Errorf("%w: panic: %v", shared.ErrSyncFailed, r)
		}
	}()

	if !e.catalog.Configured() {
		return 0, nil, shared.ErrCatalogNotConfigured
	}

	e.sendProgress(progress, fetchCatalogUpdate())
	items, err := e.catalog.FetchAllItems(ctx)
	switch {
	case errors.Is(err, shared.ErrCatalogNotConfigured), errors.Is(err, shared.ErrCatalogUnavailable):
		return 0, nil, err
	case err != nil:
		return 0, nil, fmt.Errorf("%w: %v", shared.ErrCatalogUnavailable, err)
	}
	e.sendProgress(progress, catalogFetchedUpdate(len(items)))

	if e.cache != nil {
		e.cache.Set(items)
	}
	if len(items) == 0 {
		logger.Warn("catalog returned no items")
	}

	requests, err := e.requests.ListByStatus(ctx, models.OpenStatuses...)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", shared.ErrSyncFailed, err)
	}

	now := e.now().UTC()
	matched = []string{}
	changes := make([]models.RequestChange, 0, len(requests))

	for i, req := range requests {
		e.sendProgress(progress, checkRequestUpdate(i+1, len(requests), req))

		change := models.NewRequestChange(req)
		changed := change.Request
		changed.LastCheckedAt = &now
		changes = append(changes, change)

		if len(items) == 0 {
			continue
		}

		check := e.matcher.CheckSingle(matcher.QueryFor(req), items)
		switch {
		case check.Found && check.IsCertain:
			changed.SetMatch(models.StatusFulfilled, check.Match.Entry.Title, check.Match.Entry.Author)
			changed.FulfilledBySync = true
			matched = append(matched, req.ID)
			logger.Info("request matched", "request", req.Sequence, "title", req.Title, "catalog_title", check.Match.Entry.Title)
			e.sendProgress(progress, matchedRequestUpdate(i+1, len(requests), changed))
		case check.Found:
			if !changed.Status.Settled() {
				changed.SetMatch(models.StatusPossibleMatch, check.Match.Entry.Title, check.Match.Entry.Author)
				logger.Debug("possible match", "request", req.Sequence, "catalog_title", check.Match.Entry.Title,
					"title_score", check.Match.TitleScore, "author_score", check.Match.AuthorScore)
			}
		case changed.Status == models.StatusPossibleMatch:
			changed.ClearMatch(models.StatusPending)
			logger.Debug("possible match withdrawn", "request", req.Sequence)
		}
	}

	e.sendProgress(progress, commitUpdate(len(changes)))
	skipped, err := e.requests.ApplyChanges(ctx, changes)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", shared.ErrSyncFailed, err)
	}
	if len(skipped) > 0 {
		logger.Debug("requests changed during sync, results skipped", "ids", skipped)
		matched = withoutIDs(matched, skipped)
	}

	return len(requests), matched, nil
}

func withoutIDs(ids, drop []string) []string {
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(drop, id) {
			kept = append(kept, id)
		}
	}
	return kept
}
