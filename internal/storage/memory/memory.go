// Package memory provides in-memory storage for tests and single-process use.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/louisbranch/parley/internal/domain/dialog"
	"github.com/louisbranch/parley/internal/domain/event"
	"github.com/louisbranch/parley/internal/storage"
)

// Store keeps the event journal and dialog aggregates in process memory.
type Store struct {
	mu      sync.Mutex
	events  map[string][]event.Event
	dialogs map[string]*dialog.Dialog
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		events:  make(map[string][]event.Event),
		dialogs: make(map[string]*dialog.Dialog),
	}
}

// AppendEvent appends an event to the dialog's journal. A zero sequence
// number is assigned the next free slot; a non-zero sequence must be
// exactly last + 1.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	dialogID := strings.TrimSpace(evt.DialogID)
	if dialogID == "" {
		return event.Event{}, errors.New("dialog id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := uint64(len(s.events[dialogID])) + 1
	if evt.Seq == 0 {
		evt.Seq = next
	} else if evt.Seq != next {
		return event.Event{}, storage.ErrSequenceGap
	}
	s.events[dialogID] = append(s.events[dialogID], evt)
	return evt, nil
}

// ListEvents returns events ordered by sequence, strictly after afterSeq.
func (s *Store) ListEvents(ctx context.Context, dialogID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	journal := s.events[dialogID]
	if afterSeq >= uint64(len(journal)) {
		return nil, nil
	}
	page := journal[afterSeq:]
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}
	out := make([]event.Event, len(page))
	copy(out, page)
	return out, nil
}

// LatestSeq returns the highest sequence appended for a dialog.
func (s *Store) LatestSeq(ctx context.Context, dialogID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return uint64(len(s.events[dialogID])), nil
}

// Load returns a deep copy of the stored dialog or storage.ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*dialog.Dialog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.dialogs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return d.Clone(), nil
}

// Save stores a deep copy of the dialog after a compare-and-swap against
// expectedVersion. Zero means insert.
func (s *Store) Save(ctx context.Context, d *dialog.Dialog, expectedVersion uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d == nil || strings.TrimSpace(d.ID) == "" {
		return errors.New("dialog id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.dialogs[d.ID]
	switch {
	case !ok && expectedVersion != 0:
		return storage.ErrVersionConflict
	case ok && current.Version != expectedVersion:
		return storage.ErrVersionConflict
	}
	s.dialogs[d.ID] = d.Clone()
	return nil
}
