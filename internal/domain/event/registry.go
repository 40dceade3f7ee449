package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry validation errors.
var (
	// ErrTypeUnknown indicates the event type is not registered.
	ErrTypeUnknown = errors.New("event type not registered")
	// ErrTypeInvalid indicates the event type is empty or malformed.
	ErrTypeInvalid = errors.New("event type invalid")
	// ErrDialogIDRequired indicates the event is missing its dialog id.
	ErrDialogIDRequired = errors.New("dialog id required")
	// ErrTimestampRequired indicates the event is missing its timestamp.
	ErrTimestampRequired = errors.New("timestamp required")
	// ErrActorTypeInvalid indicates an unrecognized actor type.
	ErrActorTypeInvalid = errors.New("actor type invalid")
	// ErrActorIDRequired indicates a participant-actored event without an actor id.
	ErrActorIDRequired = errors.New("actor id required")
	// ErrPayloadInvalid indicates the payload is not valid JSON or failed validation.
	ErrPayloadInvalid = errors.New("payload invalid")
)

// Definition describes a registered event type.
type Definition struct {
	// Type is the event type being defined.
	Type Type
	// ValidatePayload validates the canonicalized payload JSON.
	// Nil means any well-formed JSON object is accepted.
	ValidatePayload func(raw json.RawMessage) error
}

// Registry holds the closed set of event types accepted for append.
type Registry struct {
	mu   sync.RWMutex
	defs map[Type]Definition
}

// NewRegistry creates an empty event type registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[Type]Definition)}
}

// Register adds an event type definition to the registry.
func (r *Registry) Register(def Definition) error {
	if !def.Type.IsValid() {
		return ErrTypeInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Type]; exists {
		return fmt.Errorf("event type %s already registered", def.Type)
	}
	r.defs[def.Type] = def
	return nil
}

// Definition returns the registered definition for a type.
func (r *Registry) Definition(t Type) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[t]
	return def, ok
}

// ListTypes returns all registered types in sorted order.
func (r *Registry) ListTypes() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]Type, 0, len(r.defs))
	for t := range r.defs {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// ValidateForAppend checks an event against the registry before persistence.
// It returns a copy with the payload canonicalized (stable key order) and the
// timestamp normalized to UTC. Storage assigns Seq after validation.
func (r *Registry) ValidateForAppend(evt Event) (Event, error) {
	if evt.DialogID == "" {
		return Event{}, ErrDialogIDRequired
	}
	if evt.Timestamp.IsZero() {
		return Event{}, ErrTimestampRequired
	}

	switch evt.ActorType {
	case ActorTypeSystem:
	case ActorTypeParticipant:
		if evt.ActorID == "" {
			return Event{}, ErrActorIDRequired
		}
	default:
		return Event{}, ErrActorTypeInvalid
	}

	def, ok := r.Definition(evt.Type)
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrTypeUnknown, evt.Type)
	}

	canonical, err := canonicalizeJSON(evt.PayloadJSON)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}

	if def.ValidatePayload != nil {
		if err := def.ValidatePayload(canonical); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
		}
	}

	normalized := evt
	normalized.Timestamp = evt.Timestamp.UTC()
	normalized.PayloadJSON = canonical
	return normalized, nil
}

// canonicalizeJSON re-encodes payload JSON with sorted object keys so the
// stored bytes are stable across producers.
func canonicalizeJSON(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return []byte("{}"), nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return json.Marshal(value)
}
