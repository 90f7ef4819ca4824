// Package server hosts the temporary localhost HTTP server used during
// Spotify authorization.
//
// The [OAuthHandler] implements the authorization code callback: it checks
// the state parameter, exchanges the code for tokens, and delivers the
// outcome through a channel the CLI waits on. A callback is processed at
// most once.
//
// Routing goes through the [Router] interface backed by [BasicRouter],
// an [http.ServeMux] wrapper with method filtering and [Middleware]
// support. Middleware wraps handlers in reverse order, so the last one
// added executes first.
package server
