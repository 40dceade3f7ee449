package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/louisbranch/parley/internal/projection"
	"github.com/louisbranch/parley/internal/storage"
)

// ProjectionStore keeps projection snapshots in memory. Snapshots are
// stored serialized so callers never alias live state.
type ProjectionStore struct {
	mu      sync.Mutex
	index   []byte
	history map[string][]byte
	stats   map[string][]byte
}

// NewProjectionStore creates an empty in-memory projection store.
func NewProjectionStore() *ProjectionStore {
	return &ProjectionStore{
		history: make(map[string][]byte),
		stats:   make(map[string][]byte),
	}
}

// ActiveIndex returns the stored active dialog index or storage.ErrNotFound.
func (s *ProjectionStore) ActiveIndex(ctx context.Context) (*projection.ActiveIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return nil, storage.ErrNotFound
	}
	var index projection.ActiveIndex
	if err := json.Unmarshal(s.index, &index); err != nil {
		return nil, fmt.Errorf("decode active index: %w", err)
	}
	return &index, nil
}

// SaveActiveIndex stores the active dialog index.
func (s *ProjectionStore) SaveActiveIndex(ctx context.Context, index *projection.ActiveIndex) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode active index: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.index = raw
	return nil
}

// History returns a dialog's history or storage.ErrNotFound.
func (s *ProjectionStore) History(ctx context.Context, dialogID string) (*projection.History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.history[dialogID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	history := projection.NewHistory(dialogID)
	if err := json.Unmarshal(raw, history); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", dialogID, err)
	}
	return history, nil
}

// SaveHistory stores a dialog's history.
func (s *ProjectionStore) SaveHistory(ctx context.Context, history *projection.History) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if history == nil || strings.TrimSpace(history.DialogID) == "" {
		return fmt.Errorf("history dialog id is required")
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history %s: %w", history.DialogID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[history.DialogID] = raw
	return nil
}

// Statistics returns a dialog's statistics or storage.ErrNotFound.
func (s *ProjectionStore) Statistics(ctx context.Context, dialogID string) (*projection.Statistics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.stats[dialogID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	stats := projection.NewStatistics(dialogID)
	if err := json.Unmarshal(raw, stats); err != nil {
		return nil, fmt.Errorf("decode statistics %s: %w", dialogID, err)
	}
	return stats, nil
}

// SaveStatistics stores a dialog's statistics.
func (s *ProjectionStore) SaveStatistics(ctx context.Context, stats *projection.Statistics) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if stats == nil || strings.TrimSpace(stats.DialogID) == "" {
		return fmt.Errorf("statistics dialog id is required")
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode statistics %s: %w", stats.DialogID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats[stats.DialogID] = raw
	return nil
}
