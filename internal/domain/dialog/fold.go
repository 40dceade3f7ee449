package dialog

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/parley/internal/domain/event"
)

// FoldHandledTypes returns the event types handled by the dialog fold.
func FoldHandledTypes() []event.Type {
	return []event.Type{
		event.TypeDialogStarted,
		event.TypeDialogEnded,
		event.TypeDialogPaused,
		event.TypeDialogResumed,
		event.TypeDialogAbandoned,
		event.TypeDialogMetadataSet,
		event.TypeTurnAdded,
		event.TypeParticipantAdded,
		event.TypeParticipantRemoved,
		event.TypeContextSwitched,
		event.TypeContextUpdated,
		event.TypeContextVariableAdded,
		event.TypeTopicCompleted,
	}
}

// Fold applies an event to dialog state. It returns an error if a recognized
// event carries a payload that cannot be unmarshalled; unrecognized types
// leave state untouched for forward compatibility.
//
// Every recognized event advances Version by exactly one and stamps
// UpdatedAt from the event, never from the wall clock, so replay reproduces
// the live aggregate bit for bit.
func Fold(state Dialog, evt event.Event) (Dialog, error) {
	switch evt.Type {
	case event.TypeDialogStarted:
		var payload StartedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, foldError(evt.Type, err)
		}
		state.ID = evt.DialogID
		state.Type = payload.DialogType
		state.Status = StatusActive
		state.Participants = map[string]Participant{payload.PrimaryParticipant.ID: payload.PrimaryParticipant}
		state.PrimaryParticipantID = payload.PrimaryParticipant.ID
		state.Topics = make(map[string]Topic)
		state.Metadata = make(map[string]json.RawMessage)
		state.Context = Context{
			Variables:  make(map[string]ContextVariable),
			MaxHistory: payload.MaxContextHistory,
		}
		if state.Context.MaxHistory <= 0 {
			state.Context.MaxHistory = DefaultMaxContextHistory
		}
		state.StartedAt = payload.StartedAt

	case event.TypeDialogEnded:
		var payload EndedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, foldError(evt.Type, err)
		}
		state.Status = StatusEnded
		state.EndedAt = payload.EndedAt
		state.Metrics = payload.FinalMetrics

	case event.TypeDialogPaused:
		var payload PausedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, foldError(evt.Type, err)
		}
		state.Status = StatusPaused
		state.Context.pushSnapshot(payload.Snapshot)

	case event.TypeDialogResumed:
		var payload ResumedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, foldError(evt.Type, err)
		}
		state.Status = StatusActive

	case event.TypeDialogAbandoned:
		var payload AbandonedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, foldError(evt.Type, err)
		}
		state.Status = StatusAbandoned
		state.EndedAt = payload.AbandonedAt

	case event.TypeDialogMetadataSet:
		var payload MetadataSetPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, foldError(evt.Type, err)
		}
		if state.Metadata == nil {
			state.Metadata = make(map[string]json.RawMessage)
		}
		state.Metadata[payload.Key] = payload.Value

	case event.TypeTurnAdded:
		var payload TurnAddedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, foldError(evt.Type, err)
		}
		if len(state.Turns) > 0 {
			previous := state.Turns[len(state.Turns)-1]
			gapMs := float64(payload.Turn.Timestamp.Sub(previous.Timestamp).Milliseconds())
			// Running mean over the turn-to-turn gaps seen so far.
			gaps := float64(len(state.Turns))
			state.Metrics.AvgResponseTimeMs += (gapMs - state.Metrics.AvgResponseTimeMs) / gaps
		}
		state.Turns = append(state.Turns, payload.Turn)
		state.Metrics.TurnCount = len(state.Turns)
		if payload.Turn.Metadata.Type == TurnTypeClarification {
			state.Metrics.ClarificationCount++
		}

	case event.TypeParticipantAdded:
		var payload ParticipantAddedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, foldError(evt.Type, err)
		}
		if state.Participants == nil {
			state.Participants = make(map[string]Participant)
		}
		state.Participants[payload.Participant.ID] = payload.Participant

	case event.TypeParticipantRemoved:
		var payload ParticipantRemovedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, foldError(evt.Type, err)
		}
		delete(state.Participants, payload.ParticipantID)

	case event.TypeContextSwitched:
		var payload ContextSwitchedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, foldError(evt.Type, err)
		}
		if state.Topics == nil {
			state.Topics = make(map[string]Topic)
		}
		if payload.PreviousTopicID != "" && payload.PreviousTopicID != payload.Topic.ID {
			if previous, exists := state.Topics[payload.PreviousTopicID]; exists {
				previous.Status = TopicStatusPaused
				state.Topics[payload.PreviousTopicID] = previous
			}
		}
		state.Topics[payload.Topic.ID] = payload.Topic
		state.CurrentTopicID = payload.Topic.ID
		state.Metrics.TopicSwitches++

	case event.TypeContextUpdated:
		var payload ContextUpdatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, foldError(evt.Type, err)
		}
		if state.Context.Variables == nil {
			state.Context.Variables = make(map[string]ContextVariable)
		}
		for name, variable := range payload.UpdatedVariables {
			state.Context.Variables[name] = variable
		}

	case event.TypeContextVariableAdded:
		var payload ContextVariableAddedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, foldError(evt.Type, err)
		}
		if state.Context.Variables == nil {
			state.Context.Variables = make(map[string]ContextVariable)
		}
		state.Context.Variables[payload.Variable.Name] = payload.Variable

	case event.TypeTopicCompleted:
		var payload TopicCompletedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, foldError(evt.Type, err)
		}
		if topic, exists := state.Topics[payload.TopicID]; exists {
			topic.Status = TopicStatusCompleted
			state.Topics[payload.TopicID] = topic
		}
		if state.CurrentTopicID == payload.TopicID {
			state.CurrentTopicID = ""
		}

	default:
		return state, nil
	}

	state.Version++
	state.UpdatedAt = evt.Timestamp
	return state, nil
}

func foldError(t event.Type, err error) error {
	return fmt.Errorf("dialog fold %s: %w", t, err)
}
