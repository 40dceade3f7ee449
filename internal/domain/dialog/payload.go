package dialog

import (
	"encoding/json"
	"time"
)

// StartedPayload captures the payload for dialog.started events.
type StartedPayload struct {
	DialogType         Type        `json:"dialog_type"`
	PrimaryParticipant Participant `json:"primary_participant"`
	StartedAt          time.Time   `json:"started_at"`
	// MaxContextHistory bounds the pause-snapshot ring for this dialog.
	MaxContextHistory int `json:"max_context_history,omitempty"`
}

// EndedPayload captures the payload for dialog.ended events.
type EndedPayload struct {
	EndedAt      time.Time `json:"ended_at"`
	Reason       string    `json:"reason,omitempty"`
	FinalMetrics Metrics   `json:"final_metrics"`
}

// PausedPayload captures the payload for dialog.paused events.
type PausedPayload struct {
	PausedAt time.Time `json:"paused_at"`
	// Snapshot is the frozen context pushed onto the history ring.
	Snapshot ContextSnapshot `json:"context_snapshot"`
}

// ResumedPayload captures the payload for dialog.resumed events.
type ResumedPayload struct {
	ResumedAt time.Time `json:"resumed_at"`
}

// AbandonedPayload captures the payload for dialog.abandoned events.
type AbandonedPayload struct {
	AbandonedAt time.Time `json:"abandoned_at"`
	Reason      string    `json:"reason,omitempty"`
}

// MetadataSetPayload captures the payload for dialog.metadata_set events.
type MetadataSetPayload struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	SetAt time.Time       `json:"set_at"`
}

// TurnAddedPayload captures the payload for turn.added events.
type TurnAddedPayload struct {
	Turn       Turn `json:"turn"`
	TurnNumber int  `json:"turn_number"`
}

// ParticipantAddedPayload captures the payload for participant.added events.
type ParticipantAddedPayload struct {
	Participant Participant `json:"participant"`
	AddedAt     time.Time   `json:"added_at"`
}

// ParticipantRemovedPayload captures the payload for participant.removed events.
type ParticipantRemovedPayload struct {
	ParticipantID string    `json:"participant_id"`
	RemovedAt     time.Time `json:"removed_at"`
	Reason        string    `json:"reason,omitempty"`
}

// ContextSwitchedPayload captures the payload for context.switched events.
type ContextSwitchedPayload struct {
	PreviousTopicID string    `json:"previous_topic_id,omitempty"`
	Topic           Topic     `json:"new_topic"`
	SwitchedAt      time.Time `json:"switched_at"`
}

// ContextUpdatedPayload captures the payload for context.updated events.
// One event covers the whole batch to bound event volume.
type ContextUpdatedPayload struct {
	UpdatedVariables map[string]ContextVariable `json:"updated_variables"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

// ContextVariableAddedPayload captures the payload for context.variable_added events.
type ContextVariableAddedPayload struct {
	Variable ContextVariable `json:"variable"`
	AddedAt  time.Time       `json:"added_at"`
}

// TopicCompletedPayload captures the payload for topic.completed events.
type TopicCompletedPayload struct {
	TopicID     string    `json:"topic_id"`
	CompletedAt time.Time `json:"completed_at"`
	Resolution  string    `json:"resolution,omitempty"`
}
