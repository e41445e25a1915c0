package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/shelfreq/internal/formatter"
	"github.com/desertthunder/shelfreq/internal/shared"
	"github.com/urfave/cli/v3"
)

// CatalogPing checks the configured Audiobookshelf server and lists its book libraries.
func (r *Runner) CatalogPing(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}
	if !r.catalog.Configured() {
		return fmt.Errorf("%w: set catalog.url and catalog.api_token", shared.ErrCatalogNotConfigured)
	}

	libraries, err := r.catalog.Libraries(ctx)
	if err != nil {
		return err
	}

	r.writePlain("✓ %s reachable at %s\n", r.catalog.Name(), r.config.Catalog.URL)
	for _, lib := range libraries {
		r.writePlain("  %s (%s)\n", lib.Name, lib.ID)
	}
	if len(libraries) == 0 {
		r.writePlain("  no book libraries found\n")
	}
	return nil
}

// CatalogList prints the catalog items a sync would match against.
func (r *Runner) CatalogList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}

	items, fetchedAt, err := r.service.CatalogSnapshot(ctx)
	if err != nil {
		return err
	}
	total := len(items)
	if limit := int(cmd.Int("limit")); limit > 0 && limit < total {
		items = items[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(items, cmd.Bool("pretty"))
	}
	r.writePlain("%s\n", formatter.CatalogTable(items))
	r.writePlain("Showing %d of %d items (fetched %s)\n", len(items), total, fetchedAt.Local().Format("15:04:05"))
	return nil
}
