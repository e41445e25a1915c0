// Package services defines the [Catalog] interface for the external media catalog and implements it for Audiobookshelf.
//
// # Catalog Interface
//
// The sync engine only needs two things from a catalog: whether it is configured, and the full
// list of items as a flat slice. An error means the catalog could not be read; an empty slice
// means it was read and holds nothing.
//
// # Audiobookshelf Implementation
//
// [AudiobookshelfService] authenticates with a static bearer token through [oauth2.StaticTokenSource],
// lists book libraries and pages through each library's items. Page requests are throttled with a
// [rate.Limiter] and every request is bounded by the configured timeout.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrCatalogNotConfigured] : URL or token missing
//   - [shared.ErrCatalogUnavailable] : transport failure, non-2xx status or undecodable body
//
// # Snapshot Cache
//
// [CatalogCache] keeps the most recent catalog snapshot for read-only browsing between runs.
package services
