package dialog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/parley/internal/domain/event"
	"github.com/louisbranch/parley/internal/id"
	apperrors "github.com/louisbranch/parley/internal/platform/errors"
)

// Dialog is the conversation aggregate root. Mutation is single-writer per
// id: the aggregate performs no internal locking, callers serialize commands
// against the same dialog id. Every accepted operation emits exactly one
// event and routes the mutation through Fold, so Version always equals the
// count of events ever applied.
type Dialog struct {
	ID                   string
	Type                 Type
	Status               Status
	Participants         map[string]Participant
	PrimaryParticipantID string
	// Turns is append-only, ordered, with strictly increasing numbers from 1.
	Turns          []Turn
	Topics         map[string]Topic
	CurrentTopicID string
	Context        Context
	Metadata       map[string]json.RawMessage
	Metrics        Metrics
	StartedAt      time.Time
	EndedAt        time.Time
	Version        uint64
	UpdatedAt      time.Time
}

// New returns an empty aggregate ready to replay events into.
func New() *Dialog {
	return &Dialog{}
}

// Apply folds one event into the aggregate. Replay and live mutation share
// this path.
func (d *Dialog) Apply(evt event.Event) error {
	next, err := Fold(*d, evt)
	if err != nil {
		return err
	}
	*d = next
	return nil
}

// StartInput describes what is needed to start a dialog.
type StartInput struct {
	// DialogID is optional; a new id is generated when empty.
	DialogID           string
	Type               Type
	PrimaryParticipant Participant
	// MaxContextHistory bounds the pause-snapshot ring; zero means the default.
	MaxContextHistory int
}

// Start creates a dialog from a started event (version 0 to 1).
func Start(input StartInput, now time.Time) (*Dialog, event.Event, error) {
	dialogType, ok := NormalizeType(string(input.Type))
	if !ok {
		return nil, event.Event{}, apperrors.WithMetadata(apperrors.CodeDialogInvalidType, "dialog type is not supported", map[string]string{
			"type": string(input.Type),
		})
	}

	primary := input.PrimaryParticipant
	primary.Role = RolePrimary
	if err := primary.Validate(); err != nil {
		return nil, event.Event{}, err
	}
	if primary.ID == "" {
		generated, err := id.NewID()
		if err != nil {
			return nil, event.Event{}, fmt.Errorf("generate participant id: %w", err)
		}
		primary.ID = generated
	}

	dialogID := strings.TrimSpace(input.DialogID)
	if dialogID == "" {
		generated, err := id.NewID()
		if err != nil {
			return nil, event.Event{}, fmt.Errorf("generate dialog id: %w", err)
		}
		dialogID = generated
	}

	payload := StartedPayload{
		DialogType:         dialogType,
		PrimaryParticipant: primary,
		StartedAt:          now.UTC(),
		MaxContextHistory:  input.MaxContextHistory,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, event.Event{}, fmt.Errorf("marshal started payload: %w", err)
	}

	evt := event.Event{
		DialogID:    dialogID,
		Type:        event.TypeDialogStarted,
		Timestamp:   now.UTC(),
		ActorType:   event.ActorTypeParticipant,
		ActorID:     primary.ID,
		PayloadJSON: payloadJSON,
	}

	d := New()
	if err := d.Apply(evt); err != nil {
		return nil, event.Event{}, err
	}
	return d, evt, nil
}

// AddParticipant adds a participant to an active dialog.
func (d *Dialog) AddParticipant(p Participant, now time.Time) (event.Event, error) {
	if d.Status != StatusActive {
		return event.Event{}, newStatusDisallowsError("add_participant", d.Status)
	}
	if p.Role == "" {
		p.Role = RoleAssistant
	}
	if p.Role == RolePrimary {
		return event.Event{}, apperrors.New(apperrors.CodeParticipantInvalidRole, "only the starting participant can hold the primary role")
	}
	if err := p.Validate(); err != nil {
		return event.Event{}, err
	}
	if p.ID == "" {
		generated, err := id.NewID()
		if err != nil {
			return event.Event{}, fmt.Errorf("generate participant id: %w", err)
		}
		p.ID = generated
	}
	if _, exists := d.Participants[p.ID]; exists {
		return event.Event{}, ErrParticipantAlreadyPresent
	}

	payload := ParticipantAddedPayload{Participant: p, AddedAt: now.UTC()}
	return d.emit(event.TypeParticipantAdded, event.ActorTypeParticipant, p.ID, payload, now)
}

// RemoveParticipant removes a non-primary participant from an active dialog.
// The primary participant is protected regardless of status.
func (d *Dialog) RemoveParticipant(participantID, reason string, now time.Time) (event.Event, error) {
	if participantID == d.PrimaryParticipantID {
		return event.Event{}, ErrPrimaryParticipantProtected
	}
	if d.Status != StatusActive {
		return event.Event{}, newStatusDisallowsError("remove_participant", d.Status)
	}
	if _, exists := d.Participants[participantID]; !exists {
		return event.Event{}, ErrParticipantNotFound
	}

	payload := ParticipantRemovedPayload{
		ParticipantID: participantID,
		RemovedAt:     now.UTC(),
		Reason:        strings.TrimSpace(reason),
	}
	return d.emit(event.TypeParticipantRemoved, event.ActorTypeParticipant, participantID, payload, now)
}

// AddTurnInput describes one participant contribution.
type AddTurnInput struct {
	// TurnID is optional; a new id is generated when empty.
	TurnID        string
	ParticipantID string
	Messages      []Message
	Metadata      TurnMetadata
}

// AddTurn appends a turn to an active dialog. The turn number is assigned
// here and carried in the event so replay needs no external input.
func (d *Dialog) AddTurn(input AddTurnInput, now time.Time) (event.Event, error) {
	if d.Status != StatusActive {
		return event.Event{}, newStatusDisallowsError("add_turn", d.Status)
	}
	if _, exists := d.Participants[input.ParticipantID]; !exists {
		return event.Event{}, ErrTurnParticipantUnknown
	}
	if len(input.Messages) == 0 {
		return event.Event{}, ErrTurnEmptyMessages
	}

	turnID := strings.TrimSpace(input.TurnID)
	if turnID == "" {
		generated, err := id.NewID()
		if err != nil {
			return event.Event{}, fmt.Errorf("generate turn id: %w", err)
		}
		turnID = generated
	}

	metadata := input.Metadata
	if metadata.Type == "" {
		metadata.Type = TurnTypeUserQuery
	}

	number := len(d.Turns) + 1
	turn := Turn{
		ID:            turnID,
		Number:        number,
		ParticipantID: input.ParticipantID,
		Messages:      input.Messages,
		Timestamp:     now.UTC(),
		Metadata:      metadata,
	}

	payload := TurnAddedPayload{Turn: turn, TurnNumber: number}
	return d.emit(event.TypeTurnAdded, event.ActorTypeParticipant, input.ParticipantID, payload, now)
}

// SwitchTopic pauses the current topic and makes the given topic current,
// upserting it into the topic map.
func (d *Dialog) SwitchTopic(topic Topic, now time.Time) (event.Event, error) {
	if d.Status != StatusActive {
		return event.Event{}, newStatusDisallowsError("switch_topic", d.Status)
	}
	topic.Name = strings.TrimSpace(topic.Name)
	if topic.Name == "" {
		return event.Event{}, ErrTopicEmptyName
	}
	if topic.ID == "" {
		generated, err := id.NewID()
		if err != nil {
			return event.Event{}, fmt.Errorf("generate topic id: %w", err)
		}
		topic.ID = generated
	}
	topic.Status = TopicStatusActive
	if topic.IntroducedAt.IsZero() {
		topic.IntroducedAt = now.UTC()
	}
	if topic.Relevance == (Relevance{}) {
		topic.Relevance = Relevance{Score: 1, LastUpdated: now.UTC(), DecayRate: defaultDecayRate}
	}

	payload := ContextSwitchedPayload{
		PreviousTopicID: d.CurrentTopicID,
		Topic:           topic,
		SwitchedAt:      now.UTC(),
	}
	return d.emit(event.TypeContextSwitched, event.ActorTypeSystem, "", payload, now)
}

// AddContextVariable upserts one scoped variable. Allowed while the dialog is
// not terminal, including while paused.
func (d *Dialog) AddContextVariable(v ContextVariable, now time.Time) (event.Event, error) {
	if d.Status.IsTerminal() {
		return event.Event{}, newStatusDisallowsError("add_context_variable", d.Status)
	}
	v.Name = strings.TrimSpace(v.Name)
	if v.Name == "" {
		return event.Event{}, ErrContextVariableEmptyKey
	}
	if v.Scope == "" {
		v.Scope = ScopeDialog
	}
	if !v.Scope.IsValid() {
		return event.Event{}, ErrContextInvalidScope
	}
	if v.SetAt.IsZero() {
		v.SetAt = now.UTC()
	}

	payload := ContextVariableAddedPayload{Variable: v, AddedAt: now.UTC()}
	return d.emit(event.TypeContextVariableAdded, event.ActorTypeSystem, "", payload, now)
}

// UpdateContext upserts a batch of dialog-scoped variables as one event.
func (d *Dialog) UpdateContext(vars map[string]json.RawMessage, now time.Time) (event.Event, error) {
	if d.Status != StatusActive {
		return event.Event{}, newStatusDisallowsError("update_context", d.Status)
	}
	if len(vars) == 0 {
		return event.Event{}, apperrors.New(apperrors.CodeContextVariableEmptyKey, "context update requires at least one variable")
	}

	updated := make(map[string]ContextVariable, len(vars))
	for name, value := range vars {
		name = strings.TrimSpace(name)
		if name == "" {
			return event.Event{}, ErrContextVariableEmptyKey
		}
		updated[name] = ContextVariable{
			Name:  name,
			Value: value,
			Scope: ScopeDialog,
			SetAt: now.UTC(),
		}
	}

	payload := ContextUpdatedPayload{UpdatedVariables: updated, UpdatedAt: now.UTC()}
	return d.emit(event.TypeContextUpdated, event.ActorTypeSystem, "", payload, now)
}

// MarkTopicComplete sets a present topic to completed.
func (d *Dialog) MarkTopicComplete(topicID, resolution string, now time.Time) (event.Event, error) {
	if d.Status != StatusActive {
		return event.Event{}, newStatusDisallowsError("mark_topic_complete", d.Status)
	}
	if _, exists := d.Topics[topicID]; !exists {
		return event.Event{}, ErrTopicNotFound
	}

	payload := TopicCompletedPayload{
		TopicID:     topicID,
		CompletedAt: now.UTC(),
		Resolution:  strings.TrimSpace(resolution),
	}
	return d.emit(event.TypeTopicCompleted, event.ActorTypeSystem, "", payload, now)
}

// SetMetadata upserts one metadata key. Allowed while the dialog is not
// terminal.
func (d *Dialog) SetMetadata(key string, value json.RawMessage, now time.Time) (event.Event, error) {
	if d.Status.IsTerminal() {
		return event.Event{}, newStatusDisallowsError("set_metadata", d.Status)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return event.Event{}, apperrors.New(apperrors.CodeMetadataEmptyKey, "metadata key is required")
	}

	payload := MetadataSetPayload{Key: key, Value: value, SetAt: now.UTC()}
	return d.emit(event.TypeDialogMetadataSet, event.ActorTypeSystem, "", payload, now)
}

// Pause freezes the conversation context into the history ring and moves the
// dialog to paused.
func (d *Dialog) Pause(now time.Time) (event.Event, error) {
	if d.Status != StatusActive {
		return event.Event{}, newStateError(d.Status, StatusPaused)
	}

	snapshot := ContextSnapshot{
		Timestamp:   now.UTC(),
		TurnNumber:  len(d.Turns),
		ActiveTopic: d.CurrentTopicID,
		Variables:   d.Context.cloneVariables(),
	}
	payload := PausedPayload{PausedAt: now.UTC(), Snapshot: snapshot}
	return d.emit(event.TypeDialogPaused, event.ActorTypeSystem, "", payload, now)
}

// Resume moves a paused dialog back to active.
func (d *Dialog) Resume(now time.Time) (event.Event, error) {
	if d.Status != StatusPaused {
		return event.Event{}, newStateError(d.Status, StatusActive)
	}

	payload := ResumedPayload{ResumedAt: now.UTC()}
	return d.emit(event.TypeDialogResumed, event.ActorTypeSystem, "", payload, now)
}

// End concludes a non-terminal dialog, embedding the final metrics so the
// ended event is self-contained.
func (d *Dialog) End(reason string, now time.Time) (event.Event, error) {
	if !IsStatusTransitionAllowed(d.Status, StatusEnded) {
		return event.Event{}, newStateError(d.Status, StatusEnded)
	}

	payload := EndedPayload{
		EndedAt:      now.UTC(),
		Reason:       strings.TrimSpace(reason),
		FinalMetrics: d.Metrics,
	}
	return d.emit(event.TypeDialogEnded, event.ActorTypeSystem, "", payload, now)
}

// Abandon marks a non-terminal dialog abandoned. Driven by an external
// inactivity scheduler, never inferred here.
func (d *Dialog) Abandon(reason string, now time.Time) (event.Event, error) {
	if !IsStatusTransitionAllowed(d.Status, StatusAbandoned) {
		return event.Event{}, newStateError(d.Status, StatusAbandoned)
	}

	payload := AbandonedPayload{AbandonedAt: now.UTC(), Reason: strings.TrimSpace(reason)}
	return d.emit(event.TypeDialogAbandoned, event.ActorTypeSystem, "", payload, now)
}

// emit builds the event for an accepted operation and applies it through the
// fold before returning it for persistence.
func (d *Dialog) emit(t event.Type, actorType event.ActorType, actorID string, payload any, now time.Time) (event.Event, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return event.Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}

	evt := event.Event{
		DialogID:    d.ID,
		Type:        t,
		Timestamp:   now.UTC(),
		ActorType:   actorType,
		ActorID:     actorID,
		PayloadJSON: payloadJSON,
	}
	if err := d.Apply(evt); err != nil {
		return event.Event{}, err
	}
	return evt, nil
}
