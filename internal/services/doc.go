// package services defines interface Catalog for the streaming-catalog
// HTTP API and its Spotify implementation.
//
// The sync engine only sees the Catalog interface; an authenticated
// handle is injected by the caller.
package services
