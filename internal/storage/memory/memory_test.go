package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/parley/internal/domain/dialog"
	"github.com/louisbranch/parley/internal/domain/event"
	"github.com/louisbranch/parley/internal/storage"
)

var testBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testEvent(dialogID string, seq uint64) event.Event {
	return event.Event{
		DialogID:    dialogID,
		Seq:         seq,
		Timestamp:   testBase,
		Type:        event.TypeTurnAdded,
		ActorType:   event.ActorTypeSystem,
		PayloadJSON: []byte(`{}`),
	}
}

func TestAppendEventAssignsSequence(t *testing.T) {
	store := NewStore()
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

	latest, err := store.LatestSeq(ctx, "dlg-1")
	if err != nil {
		t.Fatalf("latest seq: %v", err)
	}
	if latest != 3 {
		t.Errorf("latest = %d, want 3", latest)
	}
}

func TestAppendEventRejectsGap(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.AppendEvent(ctx, testEvent("dlg-1", 1)); err != nil {
		t.Fatalf("append seq 1: %v", err)
	}
	if _, err := store.AppendEvent(ctx, testEvent("dlg-1", 3)); !errors.Is(err, storage.ErrSequenceGap) {
		t.Errorf("append seq 3 = %v, want ErrSequenceGap", err)
	}
	if _, err := store.AppendEvent(ctx, testEvent("dlg-1", 1)); !errors.Is(err, storage.ErrSequenceGap) {
		t.Errorf("re-append seq 1 = %v, want ErrSequenceGap", err)
	}
}

func TestListEventsPagination(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for range 5 {
		if _, err := store.AppendEvent(ctx, testEvent("dlg-1", 0)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	page, err := store.ListEvents(ctx, "dlg-1", 2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].Seq != 3 || page[1].Seq != 4 {
		t.Errorf("page = %+v, want seqs 3 and 4", page)
	}

	rest, err := store.ListEvents(ctx, "dlg-1", 4, 0)
	if err != nil {
		t.Fatalf("list rest: %v", err)
	}
	if len(rest) != 1 || rest[0].Seq != 5 {
		t.Errorf("rest = %+v, want seq 5", rest)
	}

	empty, err := store.ListEvents(ctx, "dlg-1", 5, 0)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("past-end page = %+v, want empty", empty)
	}
}

func TestDialogStoreCompareAndSwap(t *testing.T) {
	store := NewStore()
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
	if err := store.Save(ctx, d, d.Version+5); !errors.Is(err, storage.ErrVersionConflict) {
		t.Errorf("save with stale version = %v, want ErrVersionConflict", err)
	}
}

func TestDialogStoreLoadCopies(t *testing.T) {
	store := NewStore()
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
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, "dlg-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loaded.Status = dialog.StatusEnded

	again, err := store.Load(ctx, "dlg-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Status != dialog.StatusActive {
		t.Errorf("stored status = %s, want %s after caller mutation", again.Status, dialog.StatusActive)
	}
}

func TestDialogStoreLoadMissing(t *testing.T) {
	store := NewStore()
	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("load missing = %v, want ErrNotFound", err)
	}
}
