package projection

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/parley/internal/domain/dialog"
	"github.com/louisbranch/parley/internal/domain/event"
)

// defaultContextLabel groups entries recorded before any topic switch.
const defaultContextLabel = "default"

// HistoryEntry is one message of one turn, flattened for retrieval.
type HistoryEntry struct {
	SequenceNumber uint64                `json:"sequence_number"`
	DialogID       string                `json:"dialog_id"`
	TurnID         string                `json:"turn_id"`
	TurnNumber     int                   `json:"turn_number"`
	ParticipantID  string                `json:"participant_id"`
	TopicID        string                `json:"topic_id,omitempty"`
	ContextLabel   string                `json:"context_label"`
	Content        dialog.MessageContent `json:"content"`
	Intent         dialog.MessageIntent  `json:"intent,omitempty"`
	Language       string                `json:"language,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
}

// History is the append-only message record of one dialog. Sequence
// numbers are assigned per dialog, start at 1, and strictly increase.
// The secondary indices hold ordinal positions into Entries.
type History struct {
	DialogID      string           `json:"dialog_id"`
	Entries       []HistoryEntry   `json:"entries"`
	ByParticipant map[string][]int `json:"by_participant"`
	ByTopic       map[string][]int `json:"by_topic"`
	ByContext     map[string][]int `json:"by_context"`

	CurrentTopicID   string `json:"current_topic_id,omitempty"`
	CurrentTopicName string `json:"current_topic_name,omitempty"`
	NextSeq          uint64 `json:"next_seq"`
	LastEventSeq     uint64 `json:"last_event_seq"`
}

// NewHistory returns an empty history for one dialog.
func NewHistory(dialogID string) *History {
	return &History{
		DialogID:      dialogID,
		ByParticipant: make(map[string][]int),
		ByTopic:       make(map[string][]int),
		ByContext:     make(map[string][]int),
		NextSeq:       1,
	}
}

// HistoryHandledTypes lists the event types the history folds.
func HistoryHandledTypes() []event.Type {
	return []event.Type{
		event.TypeDialogStarted,
		event.TypeTurnAdded,
		event.TypeContextSwitched,
		event.TypeTopicCompleted,
	}
}

// HistoryIgnoredTypes lists event types the history deliberately skips.
func HistoryIgnoredTypes() []event.Type {
	return []event.Type{
		event.TypeDialogEnded,
		event.TypeDialogPaused,
		event.TypeDialogResumed,
		event.TypeDialogAbandoned,
		event.TypeDialogMetadataSet,
		event.TypeParticipantAdded,
		event.TypeParticipantRemoved,
		event.TypeContextUpdated,
		event.TypeContextVariableAdded,
	}
}

// Apply folds one event into the history. Events for other dialogs and
// duplicate deliveries are skipped.
func (h *History) Apply(evt event.Event) error {
	if evt.DialogID != h.DialogID {
		return nil
	}
	if evt.Seq != 0 && evt.Seq <= h.LastEventSeq {
		return nil
	}

	switch evt.Type {
	case event.TypeDialogStarted:
		// Nothing to record yet; the entry stream starts with turns.

	case event.TypeTurnAdded:
		var p dialog.TurnAddedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return fmt.Errorf("history %s: %w", evt.Type, err)
		}
		for _, msg := range p.Turn.Messages {
			h.append(HistoryEntry{
				DialogID:      h.DialogID,
				TurnID:        p.Turn.ID,
				TurnNumber:    p.Turn.Number,
				ParticipantID: p.Turn.ParticipantID,
				TopicID:       h.CurrentTopicID,
				Content:       msg.Content,
				Intent:        msg.Intent,
				Language:      msg.Language,
				Timestamp:     p.Turn.Timestamp,
			})
		}

	case event.TypeContextSwitched:
		var p dialog.ContextSwitchedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return fmt.Errorf("history %s: %w", evt.Type, err)
		}
		h.CurrentTopicID = p.Topic.ID
		h.CurrentTopicName = p.Topic.Name

	case event.TypeTopicCompleted:
		var p dialog.TopicCompletedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return fmt.Errorf("history %s: %w", evt.Type, err)
		}
		if h.CurrentTopicID == p.TopicID {
			h.CurrentTopicID = ""
			h.CurrentTopicName = ""
		}

	default:
		return nil
	}

	if evt.Seq != 0 {
		h.LastEventSeq = evt.Seq
	}
	return nil
}

// append assigns the next sequence number, stores the entry, and updates
// the secondary indices.
func (h *History) append(entry HistoryEntry) {
	entry.SequenceNumber = h.NextSeq
	entry.ContextLabel = defaultContextLabel
	if h.CurrentTopicName != "" {
		entry.ContextLabel = h.CurrentTopicName
	}
	h.NextSeq++

	pos := len(h.Entries)
	h.Entries = append(h.Entries, entry)
	h.ByParticipant[entry.ParticipantID] = append(h.ByParticipant[entry.ParticipantID], pos)
	if entry.TopicID != "" {
		h.ByTopic[entry.TopicID] = append(h.ByTopic[entry.TopicID], pos)
	}
	h.ByContext[entry.ContextLabel] = append(h.ByContext[entry.ContextLabel], pos)
}

// EntriesByParticipant returns the entries authored by one participant in
// recorded order.
func (h *History) EntriesByParticipant(participantID string) []HistoryEntry {
	return h.collect(h.ByParticipant[participantID])
}

// EntriesByTopic returns the entries recorded while one topic was current.
func (h *History) EntriesByTopic(topicID string) []HistoryEntry {
	return h.collect(h.ByTopic[topicID])
}

// EntriesByContext returns the entries recorded under one context label.
func (h *History) EntriesByContext(label string) []HistoryEntry {
	return h.collect(h.ByContext[label])
}

// EntriesInRange returns entries with timestamps in [from, to), in order.
func (h *History) EntriesInRange(from, to time.Time) []HistoryEntry {
	var out []HistoryEntry
	for _, e := range h.Entries {
		if e.Timestamp.Before(from) || !e.Timestamp.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Search returns entries whose searchable text contains the query,
// compared case-insensitively, paged by offset and limit. A limit of 0
// means no limit.
func (h *History) Search(query string, offset, limit int) []HistoryEntry {
	if offset < 0 {
		offset = 0
	}
	needle := strings.ToLower(query)
	var out []HistoryEntry
	skipped := 0
	for _, e := range h.Entries {
		if !strings.Contains(strings.ToLower(e.Content.SearchText()), needle) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Page returns a slice of entries by offset and limit. A limit of 0 means
// all remaining entries.
func (h *History) Page(offset, limit int) []HistoryEntry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(h.Entries) {
		return nil
	}
	end := len(h.Entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]HistoryEntry, end-offset)
	copy(out, h.Entries[offset:end])
	return out
}

func (h *History) collect(positions []int) []HistoryEntry {
	if len(positions) == 0 {
		return nil
	}
	out := make([]HistoryEntry, 0, len(positions))
	for _, pos := range positions {
		out = append(out, h.Entries[pos])
	}
	return out
}
