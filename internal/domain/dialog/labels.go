package dialog

import "strings"

// Status describes the dialog lifecycle label used by domain decisions.
type Status string

const (
	StatusUnspecified Status = ""
	StatusActive      Status = "active"
	StatusPaused      Status = "paused"
	StatusEnded       Status = "ended"
	StatusAbandoned   Status = "abandoned"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusEnded || s == StatusAbandoned
}

// NormalizeStatus parses a status label into a canonical value.
func NormalizeStatus(value string) (Status, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return StatusUnspecified, false
	}
	switch strings.ToLower(trimmed) {
	case "active":
		return StatusActive, true
	case "paused":
		return StatusPaused, true
	case "ended":
		return StatusEnded, true
	case "abandoned":
		return StatusAbandoned, true
	default:
		return StatusUnspecified, false
	}
}

// IsStatusTransitionAllowed reports whether a lifecycle transition is permitted.
func IsStatusTransitionAllowed(from, to Status) bool {
	switch from {
	case StatusActive:
		return to == StatusPaused || to == StatusEnded || to == StatusAbandoned
	case StatusPaused:
		return to == StatusActive || to == StatusEnded || to == StatusAbandoned
	default:
		return false
	}
}

// Type describes what kind of conversation a dialog represents.
type Type string

const (
	TypeUnspecified Type = ""
	// TypeDirect is a one-on-one conversation.
	TypeDirect Type = "direct"
	// TypeGroup is a multi-participant conversation.
	TypeGroup Type = "group"
	// TypeSupport is a help or support conversation.
	TypeSupport Type = "support"
	// TypeTask is a task-oriented conversation.
	TypeTask Type = "task"
	// TypeSocial is a casual social conversation.
	TypeSocial Type = "social"
	// TypeSystem is a system-to-system exchange.
	TypeSystem Type = "system"
)

// NormalizeType parses a dialog type label into a canonical value.
func NormalizeType(value string) (Type, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return TypeUnspecified, false
	}
	switch Type(strings.ToLower(trimmed)) {
	case TypeDirect, TypeGroup, TypeSupport, TypeTask, TypeSocial, TypeSystem:
		return Type(strings.ToLower(trimmed)), true
	default:
		return TypeUnspecified, false
	}
}
