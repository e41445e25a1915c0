package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/shelfreq/internal/formatter"
	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/shared"
	"github.com/urfave/cli/v3"
)

// RequestAdd stores a new pending request.
func (r *Runner) RequestAdd(ctx context.Context, cmd *cli.Command) error {
	title := strings.TrimSpace(cmd.StringArg("title"))
	if title == "" {
		return fmt.Errorf("%w: request title is required", shared.ErrMissingArgument)
	}
	if err := r.open(cmd); err != nil {
		return err
	}

	var author *string
	if a := strings.TrimSpace(cmd.String("author")); a != "" {
		author = &a
	}

	req := models.NewRequest(title, author)
	if err := r.requests.Create(ctx, req); err != nil {
		return fmt.Errorf("failed to add request: %w", err)
	}

	r.logger.Debug("request added", "id", req.ID, "title", req.Title)
	r.writePlain("✓ Added request %s: %s\n", req.ID, req.Title)
	return nil
}

// RequestList prints requests, optionally filtered by status.
func (r *Runner) RequestList(ctx context.Context, cmd *cli.Command) error {
	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if raw := cmd.String("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		criteria["status"] = status
	}
	if err := r.open(cmd); err != nil {
		return err
	}

	requests, err := r.requests.List(ctx, criteria)
	if err != nil {
		return fmt.Errorf("failed to list requests: %w", err)
	}
	if cmd.Bool("json") {
		if requests == nil {
			requests = []*models.Request{}
		}
		return r.writeJSON(requests, cmd.Bool("pretty"))
	}
	if len(requests) == 0 {
		r.writePlain("No requests found.\n")
		return nil
	}
	r.writePlain("%s\n", formatter.RequestsTable(requests))
	return nil
}

// RequestSetStatus applies an operator status change.
func (r *Runner) RequestSetStatus(ctx context.Context, cmd *cli.Command) error {
	id, raw := cmd.StringArg("id"), cmd.StringArg("status")
	if id == "" || raw == "" {
		return fmt.Errorf("%w: usage: request set-status <id> <status>", shared.ErrMissingArgument)
	}
	status, err := models.ParseStatus(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if err := r.open(cmd); err != nil {
		return err
	}

	req, err := r.requests.SetStatus(ctx, id, status)
	if err != nil {
		return err
	}
	r.writePlain("✓ %s is now %s\n", req.Title, req.Status)
	return nil
}

// RequestStats prints per-status counts and the completion rate.
func (r *Runner) RequestStats(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}

	counts, err := r.requests.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to count requests: %w", err)
	}
	stats := formatter.NewRequestStats(counts)
	if cmd.Bool("json") {
		return r.writeJSON(stats, cmd.Bool("pretty"))
	}
	r.writePlain("%s\n", formatter.StatsTable(stats))
	return nil
}
