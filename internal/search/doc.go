// Package search implements the federated search session.
//
// A [Session] sends one free-text query to an info backend (artists, albums, users) and a track resolution backend at
// the same time, then merges the partial results those backends publish on the event bus into one
// [models.AggregatedResultSet].
//
// # Supersession
//
// Every call to [Session.Search] cancels the queries of the previous search, clears the [Registry] and resets the
// [Aggregator] before dispatching. Events are accepted only while their source handle is registered, so results of a
// superseded query can never leak into the new set. The registry check and the merge happen under the session lock, the
// same lock Search holds from cancellation to registration.
//
// # Merging
//
// The [Aggregator] keeps four append-only buckets keyed by [models.ResultItem.Key]. An item whose key is already present
// in its bucket is ignored. The first usable image seen after a reset becomes the representative image and is never
// replaced until the next reset.
//
// # Notifications
//
// Consumer callbacks run on one goroutine per session, in the order they were queued. Producers never wait for the
// consumer, and the consumer may call back into the session.
//
// # Connectivity
//
// The [RetryPolicy] re-issues the pending query when the network comes back and the last search has nothing running or
// recorded a failure.
package search
