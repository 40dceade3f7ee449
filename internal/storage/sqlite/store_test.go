package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/parley/internal/domain/dialog"
	"github.com/louisbranch/parley/internal/domain/event"
	"github.com/louisbranch/parley/internal/projection"
	"github.com/louisbranch/parley/internal/storage"
)

var testBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parley.sqlite")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func testEvent(dialogID string, seq uint64) event.Event {
	return event.Event{
		DialogID:    dialogID,
		Seq:         seq,
		Timestamp:   testBase,
		Type:        event.TypeTurnAdded,
		ActorType:   event.ActorTypeSystem,
		PayloadJSON: []byte(`{"turn_number":1}`),
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := Open("   "); err == nil {
		t.Fatal("expected error for whitespace path")
	}
}

func TestOpenTwiceReappliesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.sqlite")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := first.AppendEvent(context.Background(), testEvent("dlg-1", 0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	latest, err := second.LatestSeq(context.Background(), "dlg-1")
	if err != nil {
		t.Fatalf("latest seq: %v", err)
	}
	if latest != 1 {
		t.Errorf("latest = %d, want 1 after reopen", latest)
	}
}

func TestAppendEventSequencing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for want := uint64(1); want <= 3; want++ {
		evt, err := store.AppendEvent(ctx, testEvent("dlg-1", 0))
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if evt.Seq != want {
			t.Fatalf("seq = %d, want %d", evt.Seq, want)
		}
	}

	// Sequences are per dialog.
	evt, err := store.AppendEvent(ctx, testEvent("dlg-2", 0))
	if err != nil {
		t.Fatalf("append other dialog: %v", err)
	}
	if evt.Seq != 1 {
		t.Errorf("other dialog seq = %d, want 1", evt.Seq)
	}

	if _, err := store.AppendEvent(ctx, testEvent("dlg-1", 9)); !errors.Is(err, storage.ErrSequenceGap) {
		t.Errorf("gap append = %v, want ErrSequenceGap", err)
	}
}

func TestListEventsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for range 4 {
		if _, err := store.AppendEvent(ctx, testEvent("dlg-1", 0)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	page, err := store.ListEvents(ctx, "dlg-1", 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].Seq != 2 || page[1].Seq != 3 {
		t.Fatalf("page = %+v, want seqs 2 and 3", page)
	}

	evt := page[0]
	if evt.Type != event.TypeTurnAdded {
		t.Errorf("type = %s, want %s", evt.Type, event.TypeTurnAdded)
	}
	if !evt.Timestamp.Equal(testBase) {
		t.Errorf("timestamp = %v, want %v", evt.Timestamp, testBase)
	}
	if string(evt.PayloadJSON) != `{"turn_number":1}` {
		t.Errorf("payload = %s", evt.PayloadJSON)
	}

	all, err := store.ListEvents(ctx, "dlg-1", 0, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("all = %d events, want 4", len(all))
	}
}

func TestAppendEventWithRegistryValidation(t *testing.T) {
	registry := event.NewRegistry()
	if err := dialog.RegisterEvents(registry); err != nil {
		t.Fatalf("register events: %v", err)
	}

	path := filepath.Join(t.TempDir(), "parley.sqlite")
	store, err := Open(path, WithRegistry(registry))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	bad := event.Event{
		DialogID:    "dlg-1",
		Timestamp:   testBase,
		Type:        event.Type("dialog.renamed"),
		ActorType:   event.ActorTypeSystem,
		PayloadJSON: []byte(`{}`),
	}
	if _, err := store.AppendEvent(context.Background(), bad); err == nil {
		t.Fatal("expected unregistered type to be rejected")
	}
}

func TestDialogSaveLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	d, _, err := dialog.Start(dialog.StartInput{
		DialogID: "dlg-1",
		Type:     dialog.TypeSupport,
		PrimaryParticipant: dialog.Participant{
			Type: dialog.ParticipantTypeHuman,
			Name: "Alice",
		},
	}, testBase)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := d.AddTurn(dialog.AddTurnInput{
		ParticipantID: d.PrimaryParticipantID,
		Messages: []dialog.Message{{
			Content: dialog.MessageContent{Kind: dialog.ContentText, Text: "hello"},
		}},
	}, testBase.Add(time.Minute)); err != nil {
		t.Fatalf("add turn: %v", err)
	}

	if err := store.Save(ctx, d, 0); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, "dlg-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Version != d.Version {
		t.Errorf("version = %d, want %d", loaded.Version, d.Version)
	}
	if len(loaded.Turns) != 1 {
		t.Errorf("turns = %d, want 1", len(loaded.Turns))
	}
	if loaded.PrimaryParticipantID != d.PrimaryParticipantID {
		t.Errorf("primary = %q, want %q", loaded.PrimaryParticipantID, d.PrimaryParticipantID)
	}
	if loaded.Status != dialog.StatusActive {
		t.Errorf("status = %s, want %s", loaded.Status, dialog.StatusActive)
	}
}

func TestDialogSaveCompareAndSwap(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	d, _, err := dialog.Start(dialog.StartInput{
		DialogID: "dlg-1",
		Type:     dialog.TypeSupport,
		PrimaryParticipant: dialog.Participant{
			Type: dialog.ParticipantTypeHuman,
			Name: "Alice",
		},
	}, testBase)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := store.Save(ctx, d, 0); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Save(ctx, d, 0); !errors.Is(err, storage.ErrVersionConflict) {
		t.Errorf("re-insert = %v, want ErrVersionConflict", err)
	}
	if err := store.Save(ctx, d, d.Version); err != nil {
		t.Errorf("save at current version: %v", err)
	}
	if err := store.Save(ctx, d, d.Version+7); !errors.Is(err, storage.ErrVersionConflict) {
		t.Errorf("stale save = %v, want ErrVersionConflict", err)
	}
}

func TestDialogLoadMissing(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("load missing = %v, want ErrNotFound", err)
	}
}

func TestProjectionStateRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.ActiveIndex(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("empty active index = %v, want ErrNotFound", err)
	}

	index := projection.NewActiveIndex()
	if err := store.SaveActiveIndex(ctx, index); err != nil {
		t.Fatalf("save active index: %v", err)
	}
	if err := store.SaveActiveIndex(ctx, index); err != nil {
		t.Fatalf("resave active index: %v", err)
	}
	if _, err := store.ActiveIndex(ctx); err != nil {
		t.Errorf("load active index: %v", err)
	}

	stats := projection.NewStatistics("dlg-1")
	stats.TurnCount = 5
	stats.Keywords["billing"] = 2
	if err := store.SaveStatistics(ctx, stats); err != nil {
		t.Fatalf("save statistics: %v", err)
	}
	got, err := store.Statistics(ctx, "dlg-1")
	if err != nil {
		t.Fatalf("load statistics: %v", err)
	}
	if got.TurnCount != 5 {
		t.Errorf("turn count = %d, want 5", got.TurnCount)
	}
	if got.Keywords["billing"] != 2 {
		t.Errorf("keyword billing = %d, want 2", got.Keywords["billing"])
	}

	history := projection.NewHistory("dlg-1")
	if err := store.SaveHistory(ctx, history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	loaded, err := store.History(ctx, "dlg-1")
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if loaded.DialogID != "dlg-1" || loaded.NextSeq != 1 {
		t.Errorf("history = %+v, want fresh dlg-1 state", loaded)
	}
}
