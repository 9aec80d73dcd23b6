// Package store persists simulation traces to SQLite.
//
// The trace is a debug and replay artifact, not a transaction ledger:
// engine correctness never depends on it. Every accepted message is one
// row, content-addressed by its canonical-JSON hash, so double-writes
// are no-ops and two runs that produced the same messages produce the
// same rows.
//
// The database runs in WAL mode with a single writer connection, which
// matches the single-writer simulation loop feeding it.
package store
