// Package services implements the two search backends and the upstream clients behind them.
//
// # Info System
//
// [InfoSystem] answers artist, album and user lookups. It fans each query out to every configured [InfoProvider]
// and publishes one event per non-empty category as providers answer. Provider calls share a rate limiter.
//
//   - [LastfmProvider] : artist.search, album.search and user.getInfo through the Last.fm client
//   - [SpotifyProvider] : the /search endpoint, authenticated with the OAuth2 client credentials flow
//
// # Track Resolution Pipeline
//
// [Pipeline] turns free text into tracks by asking every [TrackResolver]. Tracks are de-duplicated by
// [models.Track.CacheKey] and each publication carries the full merged list of the query.
//
//   - [LibraryResolver] : the local library, refined with fuzzy matching
//   - [ProxyResolver] : the YouTube Music FastAPI proxy, sending the auth file path via the X-Auth-File header
//
// Background queries share a bounded semaphore; interactive queries bypass it.
//
// # Completion
//
// Both backends finish every query exactly once on the event bus. A query fails only when every provider or resolver
// failed; partial failures are logged. Cancelled queries still finish, and the session drops them as stale.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrMissingCredentials] : a provider was configured without its key
//   - [shared.ErrNotAuthenticated] : the upstream rejected the credentials
//   - [shared.ErrAPIRequest] : HTTP request failed
//   - [shared.ErrServiceUnavailable] : no provider or resolver is configured
package services
