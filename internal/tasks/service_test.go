package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/shared"
)

func newService(t *testing.T, f *fixture, scheduler bool) *SyncService {
	t.Helper()
	d := NewDispatcher(f.engine, 4, 1, quietLogger())
	deps := ServiceDeps{
		Engine:     f.engine,
		Runs:       f.runs,
		Catalog:    f.catalog,
		Dispatcher: d,
		Cache:      f.cache,
		Logger:     quietLogger(),
	}
	if scheduler {
		deps.Scheduler = NewScheduler(d, time.Hour, quietLogger())
	}
	s := NewSyncService(deps)
	t.Cleanup(s.Stop)
	return s
}

func TestSyncService_TriggerSync(t *testing.T) {
	ctx := context.Background()

	t.Run("unconfigured catalog is reported", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.Unconfigured = true
		s := newService(t, f, false)
		s.Start(ctx)

		queued, err := s.TriggerSync(ctx, models.TriggerManual, nil)
		assert.ErrorIs(t, err, shared.ErrCatalogNotConfigured)
		assert.False(t, queued)
	})

	t.Run("runs in the background", func(t *testing.T) {
		f := newFixture(t, book("li_1", "Dune", "Frank Herbert"))
		req := f.add(t, "Dune", "Frank Herbert", models.StatusPending, "")
		s := newService(t, f, false)
		s.Start(ctx)

		actor := "manager-1"
		queued, err := s.TriggerSync(ctx, models.TriggerManual, &actor)
		require.NoError(t, err)
		assert.True(t, queued)

		require.Eventually(t, func() bool {
			status, err := s.Status(ctx)
			return err == nil && status.LastRun != nil
		}, time.Second, 5*time.Millisecond)

		status, err := s.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.RunCompleted, status.LastRun.Status)
		assert.Equal(t, models.TriggerManual, status.LastRun.Trigger)
		assert.Equal(t, actor, shared.Deref(status.LastRun.ActorID))
		assert.Equal(t, models.StatusFulfilled, f.reload(t, req).Status)
	})

	t.Run("second trigger while running is a no-op", func(t *testing.T) {
		f := newFixture(t)
		release := make(chan struct{})
		f.catalog.Hook = func(context.Context) { <-release }
		s := newService(t, f, false)
		s.Start(ctx)

		queued, err := s.TriggerSync(ctx, models.TriggerManual, nil)
		require.NoError(t, err)
		require.True(t, queued)

		queued, err = s.TriggerSync(ctx, models.TriggerManual, nil)
		require.NoError(t, err)
		assert.False(t, queued)

		status, err := s.Status(ctx)
		require.NoError(t, err)
		assert.Nil(t, status.LastRun)

		close(release)
		s.Stop()

		page, err := s.History(ctx, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
	})
}

func TestSyncService_Status(t *testing.T) {
	ctx := context.Background()

	t.Run("idle service without runs", func(t *testing.T) {
		f := newFixture(t)
		s := newService(t, f, false)

		status, err := s.Status(ctx)
		require.NoError(t, err)
		assert.True(t, status.Configured)
		assert.False(t, status.IsRunning)
		assert.Nil(t, status.LastRun)
		assert.Nil(t, status.NextScheduledRun)
	})

	t.Run("scheduler reports the next run", func(t *testing.T) {
		f := newFixture(t)
		s := newService(t, f, true)
		s.Start(ctx)

		status, err := s.Status(ctx)
		require.NoError(t, err)
		require.NotNil(t, status.NextScheduledRun)
		assert.True(t, status.NextScheduledRun.After(time.Now()))
	})

	t.Run("scheduler stays off without a catalog", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.Unconfigured = true
		s := newService(t, f, true)
		s.Start(ctx)

		status, err := s.Status(ctx)
		require.NoError(t, err)
		assert.False(t, status.Configured)
		assert.Nil(t, status.NextScheduledRun)
	})

	t.Run("running run is reported", func(t *testing.T) {
		f := newFixture(t)
		s := newService(t, f, false)
		require.NoError(t, f.runs.BeginRun(ctx, models.NewSyncRun(models.TriggerManual, nil), time.Minute))

		status, err := s.Status(ctx)
		require.NoError(t, err)
		assert.True(t, status.IsRunning)
	})
}

func TestSyncService_Ledger(t *testing.T) {
	ctx := context.Background()

	t.Run("history and detail", func(t *testing.T) {
		f := newFixture(t)
		s := newService(t, f, false)

		var last *models.SyncRun
		for range 3 {
			run, err := s.RunNow(ctx, models.TriggerManual, nil, nil)
			require.NoError(t, err)
			last = run
		}

		page, err := s.History(ctx, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		require.Len(t, page.Runs, 2)
		assert.Equal(t, last.ID, page.Runs[0].ID)

		got, err := s.Run(ctx, last.ID)
		require.NoError(t, err)
		assert.Equal(t, last.Sequence, got.Sequence)

		_, err = s.Run(ctx, "missing")
		assert.ErrorIs(t, err, shared.ErrRunNotFound)
	})

	t.Run("reclaims abandoned runs", func(t *testing.T) {
		f := newFixture(t)
		s := NewSyncService(ServiceDeps{
			Engine:  f.engine,
			Runs:    f.runs,
			Catalog: f.catalog,
			Window:  time.Millisecond,
			Logger:  quietLogger(),
		})
		stuck := models.NewSyncRun(models.TriggerScheduled, nil)
		require.NoError(t, f.runs.BeginRun(ctx, stuck, time.Millisecond))
		time.Sleep(5 * time.Millisecond)

		n, err := s.ReclaimStale(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := s.Run(ctx, stuck.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunFailed, got.Status)
	})

	t.Run("run now requires a catalog", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.Unconfigured = true
		s := newService(t, f, false)

		_, err := s.RunNow(ctx, models.TriggerManual, nil, nil)
		assert.ErrorIs(t, err, shared.ErrCatalogNotConfigured)
	})
}

func TestSyncService_CatalogSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, book("li_1", "Dune", "Frank Herbert"))
	s := newService(t, f, false)

	items, _, err := s.CatalogSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, _, err = s.CatalogSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.catalog.Calls())

	f.cache.Invalidate()
	f.catalog.Unconfigured = true
	_, _, err = s.CatalogSnapshot(ctx)
	assert.ErrorIs(t, err, shared.ErrCatalogNotConfigured)
}
