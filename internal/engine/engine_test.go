package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/parley/internal/domain/dialog"
	"github.com/louisbranch/parley/internal/projection"
	"github.com/louisbranch/parley/internal/replay"
	"github.com/louisbranch/parley/internal/storage"
	"github.com/louisbranch/parley/internal/storage/memory"
)

var engineTestBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	engine      *Engine
	events      *memory.Store
	projections *memory.ProjectionStore
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	projections := memory.NewProjectionStore()
	updater := projection.NewUpdater(projections, projections, projections)
	eng, err := New(store, store, updater, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f := &fixture{engine: eng, events: store, projections: projections, now: engineTestBase}
	eng.WithClock(func() time.Time {
		f.now = f.now.Add(10 * time.Second)
		return f.now
	})
	return f
}

func (f *fixture) start(t *testing.T) *dialog.Dialog {
	t.Helper()
	d, err := f.engine.StartDialog(context.Background(), dialog.StartInput{
		DialogID: "dlg-1",
		Type:     dialog.TypeSupport,
		PrimaryParticipant: dialog.Participant{
			ID:   "alice",
			Type: dialog.ParticipantTypeHuman,
			Name: "Alice",
		},
	})
	if err != nil {
		t.Fatalf("StartDialog: %v", err)
	}
	return d
}

func textTurn(participantID, text string) dialog.AddTurnInput {
	return dialog.AddTurnInput{
		ParticipantID: participantID,
		Messages: []dialog.Message{{
			Content: dialog.MessageContent{Kind: dialog.ContentText, Text: text},
			Intent:  dialog.IntentQuestion,
		}},
		Metadata: dialog.TurnMetadata{Type: dialog.TurnTypeUserQuery},
	}
}

func TestEngineStartDialog(t *testing.T) {
	f := newFixture(t)
	d := f.start(t)

	if d.ID != "dlg-1" {
		t.Fatalf("dialog id = %q, want dlg-1", d.ID)
	}
	if d.Version != 1 {
		t.Fatalf("version = %d, want 1", d.Version)
	}
	if d.Status != dialog.StatusActive {
		t.Fatalf("status = %q, want active", d.Status)
	}

	stored, err := f.engine.GetDialog(context.Background(), "dlg-1")
	if err != nil {
		t.Fatalf("GetDialog: %v", err)
	}
	if stored.Version != 1 {
		t.Fatalf("stored version = %d, want 1", stored.Version)
	}

	seq, err := f.events.LatestSeq(context.Background(), "dlg-1")
	if err != nil {
		t.Fatalf("LatestSeq: %v", err)
	}
	if seq != 1 {
		t.Fatalf("latest seq = %d, want 1", seq)
	}

	index, err := f.projections.ActiveIndex(context.Background())
	if err != nil {
		t.Fatalf("ActiveIndex: %v", err)
	}
	if _, ok := index.Summaries["dlg-1"]; !ok {
		t.Fatal("started dialog missing from active index")
	}
}

func TestEngineCommandSurface(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()

	if _, err := f.engine.AddParticipant(ctx, "dlg-1", dialog.Participant{
		ID:   "helper-bot",
		Type: dialog.ParticipantTypeAgent,
		Name: "Helper",
	}); err != nil {
		t.Fatalf("AddParticipant: %v", err)
	}
	if _, err := f.engine.AddTurn(ctx, "dlg-1", textTurn("alice", "my invoice is wrong")); err != nil {
		t.Fatalf("AddTurn: %v", err)
	}
	if _, err := f.engine.SwitchTopic(ctx, "dlg-1", dialog.Topic{
		ID:   "topic-billing",
		Name: "billing",
	}); err != nil {
		t.Fatalf("SwitchTopic: %v", err)
	}
	if _, err := f.engine.AddContextVariable(ctx, "dlg-1", dialog.ContextVariable{
		Name:  "account_id",
		Value: json.RawMessage(`"acct-9"`),
		Scope: dialog.ScopeDialog,
	}); err != nil {
		t.Fatalf("AddContextVariable: %v", err)
	}
	if _, err := f.engine.UpdateContext(ctx, "dlg-1", map[string]json.RawMessage{
		"plan": json.RawMessage(`"pro"`),
	}); err != nil {
		t.Fatalf("UpdateContext: %v", err)
	}
	if _, err := f.engine.SetMetadata(ctx, "dlg-1", "channel", json.RawMessage(`"web"`)); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if _, err := f.engine.AddTurn(ctx, "dlg-1", textTurn("helper-bot", "refund issued")); err != nil {
		t.Fatalf("AddTurn: %v", err)
	}
	if _, err := f.engine.MarkTopicComplete(ctx, "dlg-1", "topic-billing", "refund issued"); err != nil {
		t.Fatalf("MarkTopicComplete: %v", err)
	}
	if _, err := f.engine.RemoveParticipant(ctx, "dlg-1", "helper-bot", "done"); err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}
	if _, err := f.engine.Pause(ctx, "dlg-1"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if _, err := f.engine.Resume(ctx, "dlg-1"); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	d, err := f.engine.End(ctx, "dlg-1", "resolved")
	if err != nil {
		t.Fatalf("End: %v", err)
	}

	if d.Status != dialog.StatusEnded {
		t.Fatalf("status = %q, want ended", d.Status)
	}
	if d.Version != 13 {
		t.Fatalf("version = %d, want 13", d.Version)
	}
	seq, err := f.events.LatestSeq(ctx, "dlg-1")
	if err != nil {
		t.Fatalf("LatestSeq: %v", err)
	}
	if seq != uint64(d.Version) {
		t.Fatalf("journal seq %d does not match version %d", seq, d.Version)
	}

	index, err := f.projections.ActiveIndex(ctx)
	if err != nil {
		t.Fatalf("ActiveIndex: %v", err)
	}
	if _, ok := index.Summaries["dlg-1"]; ok {
		t.Fatal("ended dialog still present in active index")
	}

	history, err := f.projections.History(ctx, "dlg-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history.Entries) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history.Entries))
	}

	stats, err := f.projections.Statistics(ctx, "dlg-1")
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.TurnCount != 2 {
		t.Fatalf("stats turn count = %d, want 2", stats.TurnCount)
	}
	if stats.CompletedTopics != 1 {
		t.Fatalf("completed topics = %d, want 1", stats.CompletedTopics)
	}
	if stats.Status != dialog.StatusEnded {
		t.Fatalf("stats status = %q, want ended", stats.Status)
	}
}

func TestEngineAbandon(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()

	d, err := f.engine.Abandon(ctx, "dlg-1", "user left")
	if err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if d.Status != dialog.StatusAbandoned {
		t.Fatalf("status = %q, want abandoned", d.Status)
	}

	index, err := f.projections.ActiveIndex(ctx)
	if err != nil {
		t.Fatalf("ActiveIndex: %v", err)
	}
	if _, ok := index.Summaries["dlg-1"]; ok {
		t.Fatal("abandoned dialog still present in active index")
	}
}

func TestEngineRejectsCommandsAfterEnd(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()

	if _, err := f.engine.End(ctx, "dlg-1", "resolved"); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, err := f.engine.AddTurn(ctx, "dlg-1", textTurn("alice", "hello?")); err == nil {
		t.Fatal("AddTurn on ended dialog succeeded, want error")
	}

	seq, err := f.events.LatestSeq(ctx, "dlg-1")
	if err != nil {
		t.Fatalf("LatestSeq: %v", err)
	}
	if seq != 2 {
		t.Fatalf("latest seq = %d, want 2 (rejected command must not append)", seq)
	}
}

func TestEngineUnknownDialog(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.AddTurn(context.Background(), "nope", textTurn("alice", "hi"))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestEngineDuplicateStartLeavesJournalIntact(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()

	if _, err := f.engine.AddTurn(ctx, "dlg-1", textTurn("alice", "hello")); err != nil {
		t.Fatalf("AddTurn: %v", err)
	}

	_, err := f.engine.StartDialog(ctx, dialog.StartInput{
		DialogID: "dlg-1",
		Type:     dialog.TypeSupport,
		PrimaryParticipant: dialog.Participant{
			ID:   "mallory",
			Type: dialog.ParticipantTypeHuman,
			Name: "Mallory",
		},
	})
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("duplicate start err = %v, want ErrVersionConflict", err)
	}

	// The rejected start must not have appended a second started event.
	seq, err := f.events.LatestSeq(ctx, "dlg-1")
	if err != nil {
		t.Fatalf("LatestSeq: %v", err)
	}
	if seq != 2 {
		t.Fatalf("latest seq = %d, want 2", seq)
	}

	rebuilt, err := replay.Aggregate(ctx, f.events, "dlg-1")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if rebuilt.PrimaryParticipantID != "alice" {
		t.Fatalf("replayed primary = %q, want alice", rebuilt.PrimaryParticipantID)
	}
	if len(rebuilt.Turns) != 1 {
		t.Fatalf("replayed turns = %d, want 1", len(rebuilt.Turns))
	}
}

func TestEngineVersionConflict(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()

	// A stale writer saved behind the engine's back, advancing the stored
	// version. The next command must surface the conflict.
	d, err := f.engine.GetDialog(ctx, "dlg-1")
	if err != nil {
		t.Fatalf("GetDialog: %v", err)
	}
	evt, err := d.AddTurn(textTurn("alice", "out of band"), engineTestBase.Add(time.Hour))
	if err != nil {
		t.Fatalf("AddTurn: %v", err)
	}
	if _, err := f.events.AppendEvent(ctx, evt); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := f.events.Save(ctx, d, 1); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := f.engine.StartDialog(ctx, dialog.StartInput{
		DialogID: "dlg-1",
		Type:     dialog.TypeSupport,
		PrimaryParticipant: dialog.Participant{
			ID:   "alice",
			Type: dialog.ParticipantTypeHuman,
			Name: "Alice",
		},
	}); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("restart err = %v, want ErrVersionConflict", err)
	}
}

func TestEngineRebuildProjections(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()

	if _, err := f.engine.AddTurn(ctx, "dlg-1", textTurn("alice", "first")); err != nil {
		t.Fatalf("AddTurn: %v", err)
	}
	if _, err := f.engine.AddTurn(ctx, "dlg-1", textTurn("alice", "second")); err != nil {
		t.Fatalf("AddTurn: %v", err)
	}

	// Simulate a lost projection by resetting the history store, then
	// catch it back up from the journal.
	if err := f.projections.SaveHistory(ctx, projection.NewHistory("dlg-1")); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}
	lastSeq, err := f.engine.RebuildProjections(ctx, "dlg-1")
	if err != nil {
		t.Fatalf("RebuildProjections: %v", err)
	}
	if lastSeq != 3 {
		t.Fatalf("last seq = %d, want 3", lastSeq)
	}

	history, err := f.projections.History(ctx, "dlg-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history.Entries) != 2 {
		t.Fatalf("rebuilt history entries = %d, want 2", len(history.Entries))
	}
}

func TestEngineDefaultsMaxContextHistory(t *testing.T) {
	store := memory.NewStore()
	projections := memory.NewProjectionStore()
	updater := projection.NewUpdater(projections, projections, projections)
	eng, err := New(store, store, updater, Config{MaxContextHistory: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	d, err := eng.StartDialog(context.Background(), dialog.StartInput{
		Type: dialog.TypeDirect,
		PrimaryParticipant: dialog.Participant{
			ID:   "alice",
			Type: dialog.ParticipantTypeHuman,
			Name: "Alice",
		},
	})
	if err != nil {
		t.Fatalf("StartDialog: %v", err)
	}
	if d.Context.MaxHistory != 3 {
		t.Fatalf("max context history = %d, want 3", d.Context.MaxHistory)
	}
}

func TestEngineEmptyDialogID(t *testing.T) {
	f := newFixture(t)

	if _, err := f.engine.Pause(context.Background(), "  "); !errors.Is(err, dialog.ErrEmptyDialogID) {
		t.Fatalf("err = %v, want ErrEmptyDialogID", err)
	}
}
