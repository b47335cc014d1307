// Package server exposes federated search over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging] and [Recover] are the middleware the serve command installs.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so a wrong method gets a 405.
//
// # Search Streaming
//
// [SearchHandler] serves GET /search?q=. Each request gets its own search session whose consumer writes
// Server-Sent Events:
//
//	event: started   data: {"query": "..."}
//	event: results   data: the aggregated result set
//	event: notice    data: {"error": "..."}
//	event: done      data: the final result set
//
// The stream ends with "done" once no notification arrived for the quiet period (the wait parameter, default 3s),
// or silently when the client goes away. Either way the session is closed, which cancels its running queries.
//
// # Health
//
// [HealthHandler] serves GET /health with connectivity state and the configured backends.
package server
