package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/shelfreq/internal/formatter"
	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/server"
	"github.com/desertthunder/shelfreq/internal/services"
	"github.com/desertthunder/shelfreq/internal/shared"
	"github.com/desertthunder/shelfreq/internal/tasks"
	"github.com/urfave/cli/v3"
)

func actorID(cmd *cli.Command) *string {
	if actor := strings.TrimSpace(cmd.String("actor")); actor != "" {
		return &actor
	}
	return nil
}

// SyncRun runs one sync in the foreground, printing progress as it goes.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}
	asJSON := cmd.Bool("json")

	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if asJSON || update.Message == "" {
				continue
			}
			r.writePlain("  [%s] %s\n", update.Phase, update.Message)
		}
	}()

	run, err := r.service.RunNow(ctx, models.TriggerManual, actorID(cmd), progress)
	close(progress)
	<-done

	if errors.Is(err, shared.ErrSyncInProgress) {
		r.writePlain("A sync is already in progress\n")
		return nil
	}
	if run != nil {
		if asJSON {
			if err := r.writeJSON(run, cmd.Bool("pretty")); err != nil {
				return err
			}
		} else {
			r.writePlainln("%s", formatter.RunDetail(run))
		}
	}
	return err
}

// SyncTrigger asks a running server to queue a sync and returns immediately.
func (r *Runner) SyncTrigger(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	base := cmd.String("server")
	if base == "" {
		base = "http://" + r.config.Server.Addr()
	}

	header := http.Header{}
	if actor := actorID(cmd); actor != nil {
		header.Set("X-Actor-ID", *actor)
	}

	resp, err := services.NewAPIService(base, r.httpClient).Post(ctx, "/sync", nil, header)
	if err != nil {
		return fmt.Errorf("%w: could not reach %s (is `shelfreq serve` running?): %v", shared.ErrServiceUnavailable, base, err)
	}

	if !resp.OK() {
		var body struct {
			Error string `json:"error"`
		}
		if err := resp.Decode(&body); err != nil || body.Error == "" {
			return fmt.Errorf("%w: server returned %d", shared.ErrAPIRequest, resp.StatusCode)
		}
		if resp.StatusCode == http.StatusServiceUnavailable {
			return fmt.Errorf("%w: %s", shared.ErrCatalogNotConfigured, body.Error)
		}
		return fmt.Errorf("%w: %s", shared.ErrAPIRequest, body.Error)
	}

	var trigger server.TriggerResponse
	if err := resp.Decode(&trigger); err != nil {
		return err
	}
	if trigger.Queued {
		r.writePlain("✓ %s\n", trigger.Message)
	} else {
		r.writePlain("%s\n", trigger.Message)
	}
	return nil
}

// SyncStatus prints whether sync is configured, whether a run is active and the last result.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}

	status, err := r.service.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read sync status: %w", err)
	}
	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Sync status")
	r.writePlain("Configured: %s\n", yesNo(status.Configured))
	r.writePlain("Running:    %s\n", yesNo(status.IsRunning))
	if status.NextScheduledRun != nil {
		r.writePlain("Next run:   %s\n", status.NextScheduledRun.Local().Format("2006-01-02 15:04:05"))
	}
	if status.LastRun == nil {
		r.writePlainln("No sync has finished yet.")
		return nil
	}
	r.writePlainln("Last run:\n%s", formatter.RunDetail(status.LastRun))
	return nil
}

// SyncHistory prints or exports a page of the run ledger.
func (r *Runner) SyncHistory(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}

	page, err := r.service.History(ctx, int(cmd.Int("page")), int(cmd.Int("per-page")))
	if err != nil {
		return fmt.Errorf("failed to read sync history: %w", err)
	}

	format := strings.ToLower(cmd.String("format"))
	if path := cmd.String("output"); path != "" {
		if format == "table" {
			format = formatter.FormatJSON
		}
		written, err := formatter.WriteHistoryExport(page, format, path)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %d runs to %s\n", len(page.Runs), written)
		return nil
	}

	switch format {
	case "table", "":
		if len(page.Runs) == 0 {
			r.writePlain("No sync runs recorded.\n")
			return nil
		}
		r.writePlain("%s\n", formatter.HistoryTable(page.Runs))
		r.writePlain("Page %d of %d (%d runs)\n", page.Page, page.Pages(), page.Total)
		return nil
	case formatter.FormatCSV:
		data, err := formatter.HistoryToCSV(page.Runs)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case formatter.FormatMarkdown:
		data, err := formatter.HistoryToMarkdown(page)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case formatter.FormatJSON:
		return r.writeJSON(page, true)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// SyncShow prints one ledger entry.
func (r *Runner) SyncShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: run ID is required", shared.ErrMissingArgument)
	}
	if err := r.open(cmd); err != nil {
		return err
	}

	run, err := r.service.Run(ctx, id)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(run, cmd.Bool("pretty"))
	}
	r.writePlain("%s\n", formatter.RunDetail(run))
	return nil
}

// SyncReclaim closes running entries that outlived the staleness window.
func (r *Runner) SyncReclaim(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}

	n, err := r.service.ReclaimStale(ctx)
	if err != nil {
		return fmt.Errorf("failed to reclaim stale runs: %w", err)
	}
	if n == 0 {
		r.writePlain("No abandoned runs found.\n")
		return nil
	}
	r.logger.Info("reclaimed abandoned runs", "count", n)
	r.writePlain("✓ Marked %d abandoned run(s) as failed\n", n)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
