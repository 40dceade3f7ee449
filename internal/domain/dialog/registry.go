package dialog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/parley/internal/domain/event"
)

// RegisterEvents registers every dialog event type with its payload
// validator. The set is closed: the fold, the projections, and this registry
// move together when a type is added.
func RegisterEvents(registry *event.Registry) error {
	definitions := []event.Definition{
		{Type: event.TypeDialogStarted, ValidatePayload: validateStartedPayload},
		{Type: event.TypeDialogEnded, ValidatePayload: validateEndedPayload},
		{Type: event.TypeDialogPaused, ValidatePayload: validatePausedPayload},
		{Type: event.TypeDialogResumed},
		{Type: event.TypeDialogAbandoned},
		{Type: event.TypeDialogMetadataSet, ValidatePayload: validateMetadataSetPayload},
		{Type: event.TypeTurnAdded, ValidatePayload: validateTurnAddedPayload},
		{Type: event.TypeParticipantAdded, ValidatePayload: validateParticipantAddedPayload},
		{Type: event.TypeParticipantRemoved, ValidatePayload: validateParticipantRemovedPayload},
		{Type: event.TypeContextSwitched, ValidatePayload: validateContextSwitchedPayload},
		{Type: event.TypeContextUpdated, ValidatePayload: validateContextUpdatedPayload},
		{Type: event.TypeContextVariableAdded, ValidatePayload: validateContextVariableAddedPayload},
		{Type: event.TypeTopicCompleted, ValidatePayload: validateTopicCompletedPayload},
	}

	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return fmt.Errorf("register %s: %w", def.Type, err)
		}
	}
	return nil
}

func validateStartedPayload(raw json.RawMessage) error {
	var payload StartedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if _, ok := NormalizeType(string(payload.DialogType)); !ok {
		return fmt.Errorf("dialog type %q is not supported", payload.DialogType)
	}
	if payload.PrimaryParticipant.ID == "" {
		return errors.New("primary participant id is required")
	}
	if payload.StartedAt.IsZero() {
		return errors.New("started_at is required")
	}
	return nil
}

func validateEndedPayload(raw json.RawMessage) error {
	var payload EndedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.EndedAt.IsZero() {
		return errors.New("ended_at is required")
	}
	return nil
}

func validatePausedPayload(raw json.RawMessage) error {
	var payload PausedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.PausedAt.IsZero() {
		return errors.New("paused_at is required")
	}
	return nil
}

func validateMetadataSetPayload(raw json.RawMessage) error {
	var payload MetadataSetPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if strings.TrimSpace(payload.Key) == "" {
		return errors.New("metadata key is required")
	}
	return nil
}

func validateTurnAddedPayload(raw json.RawMessage) error {
	var payload TurnAddedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.Turn.ID == "" {
		return errors.New("turn id is required")
	}
	if payload.Turn.ParticipantID == "" {
		return errors.New("turn participant id is required")
	}
	if payload.TurnNumber < 1 || payload.Turn.Number != payload.TurnNumber {
		return fmt.Errorf("turn number %d is inconsistent", payload.TurnNumber)
	}
	if len(payload.Turn.Messages) == 0 {
		return errors.New("turn requires at least one message")
	}
	return nil
}

func validateParticipantAddedPayload(raw json.RawMessage) error {
	var payload ParticipantAddedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.Participant.ID == "" {
		return errors.New("participant id is required")
	}
	return nil
}

func validateParticipantRemovedPayload(raw json.RawMessage) error {
	var payload ParticipantRemovedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.ParticipantID == "" {
		return errors.New("participant id is required")
	}
	return nil
}

func validateContextSwitchedPayload(raw json.RawMessage) error {
	var payload ContextSwitchedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.Topic.ID == "" {
		return errors.New("topic id is required")
	}
	if strings.TrimSpace(payload.Topic.Name) == "" {
		return errors.New("topic name is required")
	}
	return nil
}

func validateContextUpdatedPayload(raw json.RawMessage) error {
	var payload ContextUpdatedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if len(payload.UpdatedVariables) == 0 {
		return errors.New("context update requires at least one variable")
	}
	for name := range payload.UpdatedVariables {
		if strings.TrimSpace(name) == "" {
			return errors.New("context variable name is required")
		}
	}
	return nil
}

func validateContextVariableAddedPayload(raw json.RawMessage) error {
	var payload ContextVariableAddedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if strings.TrimSpace(payload.Variable.Name) == "" {
		return errors.New("context variable name is required")
	}
	return nil
}

func validateTopicCompletedPayload(raw json.RawMessage) error {
	var payload TopicCompletedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.TopicID == "" {
		return errors.New("topic id is required")
	}
	return nil
}
