// Package projection maintains read models derived from dialog events.
//
// Three projections exist: an operational index of non-terminal dialogs,
// a searchable per-dialog conversation history, and per-dialog aggregate
// statistics. Each projection folds events in order with no access to
// aggregate state; the Updater routes events to all three under a
// per-dialog lock.
package projection
