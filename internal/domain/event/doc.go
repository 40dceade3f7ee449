// Package event defines the canonical event envelope and event-type registry
// used by the dialog write path.
//
// Events are immutable business facts emitted by accepted commands. The
// registry enforces actor metadata and payload validity before persistence
// assigns the sequence number.
//
// A stable event contract is the foundation for replay, projection
// correctness, and consumers that depend on the same semantic names.
package event
