package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/shared"
)

const requestColumns = `id, sequence, title, author, status, matched_title, matched_author,
	fulfilled_by_sync, last_checked_at, created_at, updated_at`

var _ models.Repository[*models.Request] = (*RequestRepository)(nil)

// RequestRepository implements models.Repository[*models.Request] for wanted-item requests.
//
// Every write validates the request first, so a row violating the snapshot rule is never persisted.
type RequestRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRequestRepository creates a new RequestRepository with the given database connection
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db, now: time.Now}
}

// Create inserts a new request into the database with generated ID and sequence
func (r *RequestRepository) Create(ctx context.Context, req *models.Request) error {
	if req.Status == "" {
		req.Status = models.StatusPending
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(ctx, r.db, "requests")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	req.ID = shared.GenerateID()
	req.Sequence = sequence
	req.Stamp(r.now())

	query := `
		INSERT INTO requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		req.ID,
		req.Sequence,
		req.Title,
		nullString(req.Author),
		string(req.Status),
		nullString(req.MatchedTitle),
		nullString(req.MatchedAuthor),
		req.FulfilledBySync,
		nullTime(req.LastCheckedAt),
		shared.FormatTime(req.CreatedAt),
		shared.FormatTime(req.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}

	return nil
}

// Get retrieves a request by ID
func (r *RequestRepository) Get(ctx context.Context, id string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ?`

	req, err := scanRequest(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRequestNotFound, id)
	}
	return req, err
}

// Update writes every mutable column of req
func (r *RequestRepository) Update(ctx context.Context, req *models.Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	req.Stamp(r.now())
	return updateRequest(ctx, r.db, req)
}

// Delete removes a request by ID
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM requests WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRequestNotFound, id)
	}

	return nil
}

// List retrieves requests matching the given criteria ordered by sequence.
//
// Supported criteria: "status" ([models.Status] or string) and "limit" (int).
func (r *RequestRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE 1 = 1`
	args := []any{}

	switch status := criteria["status"].(type) {
	case models.Status:
		query += " AND status = ?"
		args = append(args, string(status))
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	}

	query += " ORDER BY sequence ASC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return r.query(ctx, query, args...)
}

// ListByStatus returns every request whose status is one of statuses, ordered by sequence.
func (r *RequestRepository) ListByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Request, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}

	query := `SELECT ` + requestColumns + ` FROM requests WHERE status IN (` + placeholders + `) ORDER BY sequence ASC`
	return r.query(ctx, query, args...)
}

// SetStatus applies an operator status change.
//
// Leaving a matched status drops the snapshot. Entering one requires the
// request to already hold a snapshot, otherwise [shared.ErrInvalidTransition].
func (r *RequestRepository) SetStatus(ctx context.Context, id string, status models.Status) (*models.Request, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, status)
	}

	req, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case status.CarriesMatch() && req.MatchedTitle == nil:
		return nil, fmt.Errorf("%w: %s has no matched item to mark %s", shared.ErrInvalidTransition, id, status)
	case status.CarriesMatch():
		req.Status = status
	default:
		req.ClearMatch(status)
	}
	if status != models.StatusFulfilled {
		req.FulfilledBySync = false
	}

	if err := r.Update(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// CountByStatus returns the number of requests per status; absent statuses are zero.
func (r *RequestRepository) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM requests GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int, len(models.Statuses))
	for _, s := range models.Statuses {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[models.Status(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}

// ApplyChanges persists a batch of sync results in a single transaction.
//
// Only the columns a sync owns are written, and only while the stored status
// still equals the status the change was loaded with. A request whose status
// moved in the meantime keeps it and only gets last_checked_at; a request that
// no longer exists is left alone. The IDs of both are returned as skipped.
// Either every write happens or none does.
func (r *RequestRepository) ApplyChanges(ctx context.Context, changes []models.RequestChange) ([]string, error) {
	if len(changes) == 0 {
		return nil, nil
	}

	for _, change := range changes {
		if err := change.Request.Validate(); err != nil {
			return nil, fmt.Errorf("%w: request %s: %v", shared.ErrInvalidInput, change.Request.ID, err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now()
	skipped := []string{}
	for _, change := range changes {
		change.Request.Stamp(now)
		applied, err := applySyncResult(ctx, tx, change)
		if err != nil {
			return nil, err
		}
		if !applied {
			skipped = append(skipped, change.Request.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit request changes: %w", err)
	}
	return skipped, nil
}

// applySyncResult reports whether the full result was written.
func applySyncResult(ctx context.Context, tx *sql.Tx, change models.RequestChange) (bool, error) {
	req := change.Request
	result, err := tx.ExecContext(ctx, `
		UPDATE requests
		SET status = ?, matched_title = ?, matched_author = ?,
			fulfilled_by_sync = ?, last_checked_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`,
		string(req.Status),
		nullString(req.MatchedTitle),
		nullString(req.MatchedAuthor),
		req.FulfilledBySync,
		nullTime(req.LastCheckedAt),
		shared.FormatTime(req.UpdatedAt),
		req.ID,
		string(change.LoadedStatus),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update request %s: %w", req.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	if _, err := tx.ExecContext(ctx, "UPDATE requests SET last_checked_at = ? WHERE id = ?",
		nullTime(req.LastCheckedAt), req.ID); err != nil {
		return false, fmt.Errorf("failed to stamp request %s: %w", req.ID, err)
	}
	return false, nil
}

func updateRequest(ctx context.Context, q execer, req *models.Request) error {
	query := `
		UPDATE requests
		SET title = ?, author = ?, status = ?, matched_title = ?, matched_author = ?,
			fulfilled_by_sync = ?, last_checked_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := q.ExecContext(ctx, query,
		req.Title,
		nullString(req.Author),
		string(req.Status),
		nullString(req.MatchedTitle),
		nullString(req.MatchedAuthor),
		req.FulfilledBySync,
		nullTime(req.LastCheckedAt),
		shared.FormatTime(req.UpdatedAt),
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update request %s: %w", req.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRequestNotFound, req.ID)
	}
	return nil
}

func (r *RequestRepository) query(ctx context.Context, query string, args ...any) ([]*models.Request, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return requests, nil
}

// scanRequest scans a single row into a [models.Request]
func scanRequest(row scanner) (*models.Request, error) {
	var (
		req           models.Request
		status        string
		author        sql.NullString
		matchedTitle  sql.NullString
		matchedAuthor sql.NullString
		lastChecked   sql.NullString
		createdAt     string
		updatedAt     string
	)

	err := row.Scan(&req.ID, &req.Sequence, &req.Title, &author, &status, &matchedTitle, &matchedAuthor,
		&req.FulfilledBySync, &lastChecked, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan request: %w", err)
	}

	req.Status = models.Status(status)
	req.Author = stringPtr(author)
	req.MatchedTitle = stringPtr(matchedTitle)
	req.MatchedAuthor = stringPtr(matchedAuthor)

	if req.LastCheckedAt, err = timePtr(lastChecked); err != nil {
		return nil, err
	}
	if req.CreatedAt, err = shared.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if req.UpdatedAt, err = shared.ParseTime(updatedAt); err != nil {
		return nil, err
	}

	return &req, nil
}
