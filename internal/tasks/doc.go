// Package tasks runs long library operations with real-time progress reporting.
//
// # Library Import
//
// [LibraryImporter.Run] fills the local library that the track pipeline searches:
//
//  1. Scan : walk a directory tree and collect audio files by extension
//  2. Read : read title, artist, album and track number tags with a pool of workers
//  3. Store : upsert each track by path, reviving rows that were soft-deleted
//
// Files without a title fall back to their base name. Files without an artist are skipped, since the library
// cannot match them. A file that fails to read is recorded in the result and does not stop the import.
//
// # Progress Reporting
//
// Operations take an optional progress channel. The [ProgressUpdate] struct contains phase, step counters and a
// message. Updates use select with default to prevent blocking.
package tasks
