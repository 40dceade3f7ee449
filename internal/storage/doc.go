// Package storage defines persistence interfaces for the dialog engine.
//
// It covers the event journal, the dialog aggregate repository, and the
// per-projection state stores. Implementations (memory, SQLite) live in
// subpackages.
//
// Common error types:
//   - ErrNotFound: requested record is missing
//   - ErrVersionConflict: optimistic concurrency check failed on save
//   - ErrSequenceGap: an append skipped a journal sequence number
package storage
