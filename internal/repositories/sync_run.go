package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/shared"
)

const runColumns = `id, sequence, status, triggered_by, actor_id, started_at, finished_at,
	requests_checked, matches_found, matched_request_ids, error_message`

// AbandonedMessage is the error recorded on runs closed by [SyncRunRepository.ReclaimStale].
const AbandonedMessage = "abandoned"

// SyncRunRepository persists the run ledger.
//
// A run is opened exactly once by [SyncRunRepository.BeginRun] and closed
// exactly once by Complete or Fail; closing a row that is not running fails.
type SyncRunRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSyncRunRepository creates a new SyncRunRepository with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db, now: time.Now}
}

// BeginRun opens run as running unless another running row started within window.
//
// The guard and the insert are one statement inside a write transaction, so two
// concurrent callers can never both succeed. A rejected caller gets
// [shared.ErrSyncInProgress] and no row is written.
func (r *SyncRunRepository) BeginRun(ctx context.Context, run *models.SyncRun, window time.Duration) error {
	now := r.now().UTC()
	run.ID = shared.GenerateID()
	run.Status = models.RunRunning
	run.FinishedAt = nil
	run.StartedAt = time.Time{}
	run.Stamp(now)
	if run.MatchedRequestIDs == nil {
		run.MatchedRequestIDs = []string{}
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The sequence bump takes the write lock before the guard is evaluated.
	sequence, err := nextSequence(ctx, tx, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	query := `
		INSERT INTO sync_runs (id, sequence, status, triggered_by, actor_id, started_at, matched_request_ids)
		SELECT ?, ?, ?, ?, ?, ?, '[]'
		WHERE NOT EXISTS (
			SELECT 1 FROM sync_runs WHERE status = ? AND started_at > ?
		)
	`

	result, err := tx.ExecContext(ctx, query,
		run.ID,
		sequence,
		string(models.RunRunning),
		string(run.Trigger),
		nullString(run.ActorID),
		shared.FormatTime(run.StartedAt),
		string(models.RunRunning),
		shared.FormatTime(now.Add(-window)),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return shared.ErrSyncInProgress
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync run: %w", err)
	}

	run.Sequence = sequence
	return nil
}

// Complete closes a running run with its counters.
func (r *SyncRunRepository) Complete(ctx context.Context, run *models.SyncRun) error {
	finished := r.now().UTC()
	ids := run.MatchedRequestIDs
	if ids == nil {
		ids = []string{}
	}

	encoded, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode matched request ids: %w", err)
	}

	query := `
		UPDATE sync_runs
		SET status = ?, finished_at = ?, requests_checked = ?, matches_found = ?, matched_request_ids = ?
		WHERE id = ? AND status = ?
	`

	if err := r.close(ctx, run.ID, query,
		string(models.RunCompleted),
		shared.FormatTime(finished),
		run.RequestsChecked,
		len(ids),
		string(encoded),
		run.ID,
		string(models.RunRunning),
	); err != nil {
		return err
	}

	run.Status = models.RunCompleted
	run.FinishedAt = &finished
	run.MatchesFound = len(ids)
	run.MatchedRequestIDs = ids
	return nil
}

// Fail closes a running run with an error message.
func (r *SyncRunRepository) Fail(ctx context.Context, run *models.SyncRun, message string) error {
	finished := r.now().UTC()

	query := `
		UPDATE sync_runs
		SET status = ?, finished_at = ?, error_message = ?
		WHERE id = ? AND status = ?
	`

	if err := r.close(ctx, run.ID, query,
		string(models.RunFailed),
		shared.FormatTime(finished),
		message,
		run.ID,
		string(models.RunRunning),
	); err != nil {
		return err
	}

	run.Status = models.RunFailed
	run.FinishedAt = &finished
	run.Error = &message
	return nil
}

func (r *SyncRunRepository) close(ctx context.Context, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to close sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 1 {
		return nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", shared.ErrRunNotRunning, id)
}

// Get retrieves a run by ID
func (r *SyncRunRepository) Get(ctx context.Context, id string) (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return run, err
}

// List returns one page of runs, newest first. Pages start at 1.
func (r *SyncRunRepository) List(ctx context.Context, page, perPage int) (*models.RunPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_runs").Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count sync runs: %w", err)
	}

	query := `SELECT ` + runColumns + ` FROM sync_runs ORDER BY started_at DESC, sequence DESC LIMIT ? OFFSET ?`

	runs, err := r.query(ctx, query, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}

	return &models.RunPage{Runs: runs, Page: page, PerPage: perPage, Total: total}, nil
}

// LatestFinished returns the most recently finished run, or nil when none has finished.
func (r *SyncRunRepository) LatestFinished(ctx context.Context) (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs
		WHERE status IN (?, ?) ORDER BY finished_at DESC, sequence DESC LIMIT 1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, string(models.RunCompleted), string(models.RunFailed)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// HasRunning reports whether any run is currently marked running, stale or not.
func (r *SyncRunRepository) HasRunning(ctx context.Context) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM sync_runs WHERE status = ?)", string(models.RunRunning),
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check running sync runs: %w", err)
	}
	return exists, nil
}

// HasActive reports whether a run marked running started within window, i.e. one the guard would honor.
func (r *SyncRunRepository) HasActive(ctx context.Context, window time.Duration) (bool, error) {
	cutoff := shared.FormatTime(r.now().UTC().Add(-window))

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM sync_runs WHERE status = ? AND started_at > ?)", string(models.RunRunning), cutoff,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active sync runs: %w", err)
	}
	return exists, nil
}

// ReclaimStale marks running rows older than window as failed and returns how many were closed.
func (r *SyncRunRepository) ReclaimStale(ctx context.Context, window time.Duration) (int64, error) {
	now := r.now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE sync_runs
		SET status = ?, finished_at = ?, error_message = ?
		WHERE status = ? AND started_at <= ?
	`,
		string(models.RunFailed),
		shared.FormatTime(now),
		AbandonedMessage,
		string(models.RunRunning),
		shared.FormatTime(now.Add(-window)),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale sync runs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

func (r *SyncRunRepository) query(ctx context.Context, query string, args ...any) ([]*models.SyncRun, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.SyncRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// scanRun scans a single row into a [models.SyncRun]
func scanRun(row scanner) (*models.SyncRun, error) {
	var (
		run        models.SyncRun
		status     string
		trigger    string
		actorID    sql.NullString
		startedAt  string
		finishedAt sql.NullString
		matchedIDs string
		message    sql.NullString
	)

	err := row.Scan(&run.ID, &run.Sequence, &status, &trigger, &actorID, &startedAt, &finishedAt,
		&run.RequestsChecked, &run.MatchesFound, &matchedIDs, &message)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run.Status = models.RunStatus(status)
	run.Trigger = models.Trigger(trigger)
	run.ActorID = stringPtr(actorID)
	run.Error = stringPtr(message)

	if run.StartedAt, err = shared.ParseTime(startedAt); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = timePtr(finishedAt); err != nil {
		return nil, err
	}

	run.MatchedRequestIDs = []string{}
	if matchedIDs != "" {
		if err := json.Unmarshal([]byte(matchedIDs), &run.MatchedRequestIDs); err != nil {
			return nil, fmt.Errorf("failed to decode matched request ids: %w", err)
		}
	}

	return &run, nil
}
