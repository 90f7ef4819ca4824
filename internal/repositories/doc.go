// package repositories provides the persistence layer for the sync caches.
//
// One SQLite database holds four tables: positive track resolutions,
// day-scoped negative search results, artist genre lists, and per-track
// genre classifications. Every mutating operation commits on its own so
// an interrupted run leaves the store resumable.
package repositories
