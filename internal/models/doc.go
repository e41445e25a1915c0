// Package models defines domain entities and persistence interfaces for the shelfreq reconciliation service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing external catalog data
//   - [CatalogEntry] : One item held by the media catalog, never persisted
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Request] : A wanted item moving through the request status lifecycle
//   - [SyncRun] : One reconciliation attempt recorded in the run ledger
//
// All persistent entities implement the [Model] interface providing timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
