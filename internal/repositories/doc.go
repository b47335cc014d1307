// Package repositories implements SQLite persistence for the local music library.
//
// [LibraryRepository] handles CRUD operations for [models.LibraryTrack] with atomic sequence generation for
// human-readable ordering. Rows are soft-deleted via a deleted_at timestamp and excluded from queries by default.
//
// Sequence numbers provide stable ordering (e.g. track #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
