package projection

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/louisbranch/parley/internal/domain/dialog"
	"github.com/louisbranch/parley/internal/domain/event"
)

var testBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testEvent(t *testing.T, dialogID string, seq uint64, typ event.Type, ts time.Time, payload any) event.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return event.Event{
		DialogID:    dialogID,
		Seq:         seq,
		Timestamp:   ts,
		Type:        typ,
		ActorType:   event.ActorTypeSystem,
		PayloadJSON: raw,
	}
}

func startedEvent(t *testing.T, dialogID string, seq uint64, ts time.Time) event.Event {
	t.Helper()
	return testEvent(t, dialogID, seq, event.TypeDialogStarted, ts, dialog.StartedPayload{
		DialogType: dialog.TypeSupport,
		PrimaryParticipant: dialog.Participant{
			ID:   "alice",
			Type: dialog.ParticipantTypeHuman,
			Role: dialog.RolePrimary,
			Name: "Alice",
		},
		StartedAt:         ts,
		MaxContextHistory: dialog.DefaultMaxContextHistory,
	})
}

func turnEvent(t *testing.T, dialogID string, seq uint64, number int, participantID, text string, ts time.Time) event.Event {
	t.Helper()
	return testEvent(t, dialogID, seq, event.TypeTurnAdded, ts, dialog.TurnAddedPayload{
		TurnNumber: number,
		Turn: dialog.Turn{
			ID:            "turn-" + participantID,
			Number:        number,
			ParticipantID: participantID,
			Timestamp:     ts,
			Messages: []dialog.Message{{
				Content: dialog.MessageContent{Kind: dialog.ContentText, Text: text},
				Intent:  dialog.IntentQuestion,
			}},
			Metadata: dialog.TurnMetadata{Type: dialog.TurnTypeUserQuery},
		},
	})
}

func topicSwitchEvent(t *testing.T, dialogID string, seq uint64, topicID, name string, ts time.Time) event.Event {
	t.Helper()
	return testEvent(t, dialogID, seq, event.TypeContextSwitched, ts, dialog.ContextSwitchedPayload{
		Topic: dialog.Topic{
			ID:     topicID,
			Name:   name,
			Status: dialog.TopicStatusActive,
			Relevance: dialog.Relevance{
				Score:       1,
				LastUpdated: ts,
				DecayRate:   0.1,
			},
			IntroducedAt: ts,
		},
		SwitchedAt: ts,
	})
}

func endedEvent(t *testing.T, dialogID string, seq uint64, ts time.Time) event.Event {
	t.Helper()
	return testEvent(t, dialogID, seq, event.TypeDialogEnded, ts, dialog.EndedPayload{
		EndedAt: ts,
		Reason:  "resolved",
	})
}

func applyAll(t *testing.T, apply func(event.Event) error, evts ...event.Event) {
	t.Helper()
	for _, evt := range evts {
		if err := apply(evt); err != nil {
			t.Fatalf("apply %s seq %d: %v", evt.Type, evt.Seq, err)
		}
	}
}

// Every registered event type must be either handled or deliberately
// ignored by each projection, so new event kinds cannot slip through
// unaccounted.
func TestProjectionTypeParity(t *testing.T) {
	registry := event.NewRegistry()
	if err := dialog.RegisterEvents(registry); err != nil {
		t.Fatalf("register events: %v", err)
	}
	registered := registry.ListTypes()

	cases := []struct {
		name    string
		handled []event.Type
		ignored []event.Type
	}{
		{"active index", ActiveIndexHandledTypes(), ActiveIndexIgnoredTypes()},
		{"history", HistoryHandledTypes(), HistoryIgnoredTypes()},
		{"statistics", StatisticsHandledTypes(), StatisticsIgnoredTypes()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen := make(map[event.Type]string)
			for _, typ := range tc.handled {
				seen[typ] = "handled"
			}
			for _, typ := range tc.ignored {
				if prev, ok := seen[typ]; ok {
					t.Fatalf("type %s listed as both %s and ignored", typ, prev)
				}
				seen[typ] = "ignored"
			}
			for _, typ := range registered {
				if _, ok := seen[typ]; !ok {
					t.Errorf("registered type %s not accounted for", typ)
				}
			}
			if len(seen) != len(registered) {
				t.Errorf("projection accounts for %d types, registry has %d", len(seen), len(registered))
			}
		})
	}
}
