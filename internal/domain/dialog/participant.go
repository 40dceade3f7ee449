package dialog

import (
	"encoding/json"
	"strings"

	apperrors "github.com/louisbranch/parley/internal/platform/errors"
)

// ParticipantType identifies what kind of actor a participant is.
type ParticipantType string

const (
	// ParticipantTypeHuman is a human user.
	ParticipantTypeHuman ParticipantType = "human"
	// ParticipantTypeAgent is an automated conversational agent.
	ParticipantTypeAgent ParticipantType = "agent"
	// ParticipantTypeSystem is a system or service actor.
	ParticipantTypeSystem ParticipantType = "system"
	// ParticipantTypeExternal is an external integration.
	ParticipantTypeExternal ParticipantType = "external"
)

// ParticipantRole identifies a participant's role in the conversation.
type ParticipantRole string

const (
	// RolePrimary is the conversation initiator. Never removable.
	RolePrimary ParticipantRole = "primary"
	// RoleAssistant is a supporting participant.
	RoleAssistant ParticipantRole = "assistant"
	// RoleObserver is a read-only participant.
	RoleObserver ParticipantRole = "observer"
	// RoleModerator has control privileges.
	RoleModerator ParticipantRole = "moderator"
)

// Participant is a member of a dialog.
type Participant struct {
	ID       string                     `json:"id"`
	Type     ParticipantType            `json:"type"`
	Role     ParticipantRole            `json:"role"`
	Name     string                     `json:"name"`
	Metadata map[string]json.RawMessage `json:"metadata,omitempty"`
}

// Validate checks that the participant carries usable identity fields.
func (p Participant) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrParticipantEmptyName
	}
	switch p.Type {
	case ParticipantTypeHuman, ParticipantTypeAgent, ParticipantTypeSystem, ParticipantTypeExternal:
	default:
		return apperrors.WithMetadata(apperrors.CodeParticipantInvalidRole, "participant type is not supported", map[string]string{
			"type": string(p.Type),
		})
	}
	switch p.Role {
	case RolePrimary, RoleAssistant, RoleObserver, RoleModerator:
	default:
		return apperrors.WithMetadata(apperrors.CodeParticipantInvalidRole, "participant role is not supported", map[string]string{
			"role": string(p.Role),
		})
	}
	return nil
}
