// package tasks implements the reconciliation engine: catalog
// resolution with persistent caching, target-genre classification, and
// the retention/diff pass over the managed playlists.
//
// The engine is single-threaded and runs one pass per invocation; an
// external scheduler provides the cadence. Idempotence under repeated
// invocation is the recovery strategy: every mutation is a
// self-contained step safe to repeat or skip next run.
package tasks
