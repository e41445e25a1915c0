// package services defines interface Catalog for reading the external media catalog
package services

import (
	"context"

	"github.com/desertthunder/shelfreq/internal/models"
)

// Catalog is the external media catalog a sync run compares requests against.
type Catalog interface {
	// Configured reports whether the catalog has enough settings to be contacted.
	Configured() bool

	// FetchAllItems returns every item across all libraries.
	// Returns [shared.ErrCatalogNotConfigured] or [shared.ErrCatalogUnavailable] on failure.
	FetchAllItems(ctx context.Context) ([]models.CatalogEntry, error)
}
