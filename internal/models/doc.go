// Package models defines the domain entities shared by the search core, the backends and the outer surfaces.
//
// The package contains three groups of types:
//
// 1. Search types: values that flow through a search session
//   - [QueryHandle] : opaque token for one in-flight backend query, compared by pointer identity
//   - [PartialResultEvent] : a batch of [ResultItem] for one [Category], published by a backend
//   - [AggregatedResultSet] : the merged, de-duplicated view handed to consumers
//
// 2. Data Transfer Objects: lightweight structs describing backend data
//   - [Track] : song metadata from the library or the YouTube Music proxy
//
// 3. Persistent Entities: database-backed models with full lifecycle management
//   - [LibraryTrack] : a local audio file indexed in the library database
//
// Persistent entities implement the [Model] interface providing ID, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
