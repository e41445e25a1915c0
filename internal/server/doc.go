// Package server exposes the operator HTTP API for the sync subsystem.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Routes
//
//	POST /sync              → queue a manual sync (202), actor from X-Actor-ID
//	GET  /sync/status       → configured flag, last run, running flag, next scheduled run
//	GET  /sync/runs         → ledger history, newest first (?page=&per_page=)
//	GET  /sync/runs/{id}    → one ledger entry
//	GET  /health            → liveness
//
// All responses are JSON. Errors use {"error": "..."}.
package server
