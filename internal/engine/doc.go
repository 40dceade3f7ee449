// Package engine is the command side of the dialog system.
//
// Each operation loads the aggregate, runs the domain command, appends the
// emitted event to the journal, saves the aggregate with a version check,
// and fans the event out to the projections. Commands for the same dialog
// are serialized with a per-dialog lock.
package engine
