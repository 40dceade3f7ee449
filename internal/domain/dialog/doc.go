// Package dialog models the conversation aggregate.
//
// A dialog tracks participants, turns, topics, and scoped context variables
// through an event-sourced lifecycle: every accepted operation emits exactly
// one event, and the same fold that replays history applies it, so a rebuilt
// aggregate is indistinguishable from the live one.
//
// The package holds:
//   - the aggregate operations that validate commands and emit events,
//   - fold logic for replaying dialog history,
//   - value objects (turns, topics, participants, context variables),
//   - and the event payload shapes shared with storage and projections.
package dialog
