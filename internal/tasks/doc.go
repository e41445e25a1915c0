// Package tasks reconciles open requests against the Audiobookshelf catalog with real-time progress reporting.
//
// # Core Operations
//
// [SyncEngine.Run] performs one reconciliation:
//   - Opens a ledger entry, refusing to start while another recent run is open
//   - Fetches every book item from the catalog
//   - Scores each open request against the catalog (certain, possible or no match)
//   - Commits all request changes in one transaction and closes the entry
//
// A failure at any step marks the entry failed and leaves every request untouched.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Scheduling
//
// [Dispatcher] runs submitted [Job] values on a small worker pool so triggers return immediately.
// [Scheduler] submits a scheduled job every interval, the first one interval after start.
// [SyncService] ties both together for the HTTP API, CLI and monitor.
package tasks
