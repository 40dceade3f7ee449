package dialog

import (
	"encoding/json"
	"time"
)

// Scope describes where a context variable is visible.
type Scope string

const (
	// ScopeTurn is visible only in the current turn.
	ScopeTurn Scope = "turn"
	// ScopeTopic is visible for the current topic.
	ScopeTopic Scope = "topic"
	// ScopeDialog is visible for the entire dialog.
	ScopeDialog Scope = "dialog"
	// ScopeParticipant persists across dialogs for a participant.
	ScopeParticipant Scope = "participant"
	// ScopeGlobal is globally visible.
	ScopeGlobal Scope = "global"
)

// IsValid reports whether the scope is a recognized value.
func (s Scope) IsValid() bool {
	switch s {
	case ScopeTurn, ScopeTopic, ScopeDialog, ScopeParticipant, ScopeGlobal:
		return true
	default:
		return false
	}
}

// ContextVariable is a named, scoped datum attached to a dialog.
type ContextVariable struct {
	Name      string          `json:"name"`
	Value     json.RawMessage `json:"value"`
	Scope     Scope           `json:"scope"`
	SetAt     time.Time       `json:"set_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	// Source identifies who set the variable.
	Source string `json:"source,omitempty"`
}

// ContextSnapshot freezes the conversation context at a pause point.
type ContextSnapshot struct {
	Timestamp   time.Time                  `json:"timestamp"`
	TurnNumber  int                        `json:"turn_number"`
	ActiveTopic string                     `json:"active_topic,omitempty"`
	Variables   map[string]ContextVariable `json:"variables"`
}

// DefaultMaxContextHistory bounds the snapshot ring when the start command
// does not specify a limit.
const DefaultMaxContextHistory = 10

// Context holds the variable map and a bounded ring of pause snapshots.
type Context struct {
	Variables map[string]ContextVariable `json:"variables"`
	// History keeps the most recent snapshots, oldest evicted first.
	History    []ContextSnapshot `json:"history,omitempty"`
	MaxHistory int               `json:"max_history"`
}

// pushSnapshot appends a snapshot, evicting the oldest past MaxHistory.
func (c *Context) pushSnapshot(snap ContextSnapshot) {
	max := c.MaxHistory
	if max <= 0 {
		max = DefaultMaxContextHistory
	}
	c.History = append(c.History, snap)
	if len(c.History) > max {
		c.History = c.History[len(c.History)-max:]
	}
}

// cloneVariables copies the variable map for snapshot isolation.
func (c Context) cloneVariables() map[string]ContextVariable {
	if c.Variables == nil {
		return nil
	}
	out := make(map[string]ContextVariable, len(c.Variables))
	for name, v := range c.Variables {
		out[name] = v
	}
	return out
}
