package event

import (
	"strings"
	"time"
)

// Type identifies the type of a dialog event.
type Type string

// Dialog lifecycle events.
const (
	// TypeDialogStarted records the start of a dialog.
	TypeDialogStarted Type = "dialog.started"
	// TypeDialogEnded records the end of a dialog.
	TypeDialogEnded Type = "dialog.ended"
	// TypeDialogPaused records a dialog pause.
	TypeDialogPaused Type = "dialog.paused"
	// TypeDialogResumed records a dialog resuming from pause.
	TypeDialogResumed Type = "dialog.resumed"
	// TypeDialogAbandoned records a dialog abandoned without completion.
	TypeDialogAbandoned Type = "dialog.abandoned"
	// TypeDialogMetadataSet records a metadata key update.
	TypeDialogMetadataSet Type = "dialog.metadata_set"
)

// Turn events.
const (
	// TypeTurnAdded records a conversation turn taken by a participant.
	TypeTurnAdded Type = "turn.added"
)

// Participant events.
const (
	// TypeParticipantAdded records a participant joining a dialog.
	TypeParticipantAdded Type = "participant.added"
	// TypeParticipantRemoved records a participant leaving a dialog.
	TypeParticipantRemoved Type = "participant.removed"
)

// Context and topic events.
const (
	// TypeContextSwitched records the active topic changing.
	TypeContextSwitched Type = "context.switched"
	// TypeContextUpdated records a batch update of context variables.
	TypeContextUpdated Type = "context.updated"
	// TypeContextVariableAdded records a single context variable upsert.
	TypeContextVariableAdded Type = "context.variable_added"
	// TypeTopicCompleted records a topic being marked complete.
	TypeTopicCompleted Type = "topic.completed"
)

// ActorType identifies who or what triggered an event.
type ActorType string

const (
	// ActorTypeSystem indicates the event was triggered by the system.
	ActorTypeSystem ActorType = "system"
	// ActorTypeParticipant indicates the event was triggered by a participant.
	ActorTypeParticipant ActorType = "participant"
)

// Event represents an immutable event in the dialog event journal.
type Event struct {
	// DialogID is the dialog this event belongs to.
	DialogID string
	// Seq is the event sequence number within the dialog (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// ActorType identifies who triggered the event.
	ActorType ActorType
	// ActorID is the participant ID if ActorType is participant.
	ActorID string
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g., "dialog", "turn").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}
