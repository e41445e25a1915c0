// Package repositories implements SQLite persistence for requests and the sync run ledger.
//
// Key Implementations:
//   - [RequestRepository] : Request CRUD, status queries and the transactional batch commit used by sync runs
//   - [SyncRunRepository] : Run ledger with the atomic overlap guard, terminal updates and paginated history
//
// Sequence numbers provide stable, human-readable ordering (e.g., request #42, run #15) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
//
// Timestamps are stored as fixed-width UTC text (see [shared.TimeLayout]) so SQL comparisons are chronological.
package repositories
