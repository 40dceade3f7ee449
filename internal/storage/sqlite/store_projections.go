package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/parley/internal/projection"
	"github.com/louisbranch/parley/internal/storage"
)

// ActiveIndex returns the stored active dialog index or storage.ErrNotFound.
func (s *Store) ActiveIndex(ctx context.Context) (*projection.ActiveIndex, error) {
	state, err := s.loadState(ctx, "SELECT state_json FROM projection_active_index WHERE id = 1")
	if err != nil {
		return nil, err
	}
	var index projection.ActiveIndex
	if err := json.Unmarshal(state, &index); err != nil {
		return nil, fmt.Errorf("decode active index: %w", err)
	}
	return &index, nil
}

// SaveActiveIndex stores the active dialog index.
func (s *Store) SaveActiveIndex(ctx context.Context, index *projection.ActiveIndex) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	state, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode active index: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO projection_active_index (id, state_json, updated_at)
VALUES (1, ?, ?)
ON CONFLICT (id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at`,
		state, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("save active index: %w", err)
	}
	return nil
}

// History returns a dialog's conversation history or storage.ErrNotFound.
func (s *Store) History(ctx context.Context, dialogID string) (*projection.History, error) {
	state, err := s.loadState(ctx, "SELECT state_json FROM projection_history WHERE dialog_id = ?", dialogID)
	if err != nil {
		return nil, err
	}
	history := projection.NewHistory(dialogID)
	if err := json.Unmarshal(state, history); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", dialogID, err)
	}
	return history, nil
}

// SaveHistory stores a dialog's conversation history.
func (s *Store) SaveHistory(ctx context.Context, history *projection.History) error {
	if history == nil || strings.TrimSpace(history.DialogID) == "" {
		return fmt.Errorf("history dialog id is required")
	}
	return s.saveState(ctx, `
INSERT INTO projection_history (dialog_id, state_json, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (dialog_id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at`,
		history.DialogID, history)
}

// Statistics returns a dialog's statistics snapshot or storage.ErrNotFound.
func (s *Store) Statistics(ctx context.Context, dialogID string) (*projection.Statistics, error) {
	state, err := s.loadState(ctx, "SELECT state_json FROM projection_statistics WHERE dialog_id = ?", dialogID)
	if err != nil {
		return nil, err
	}
	stats := projection.NewStatistics(dialogID)
	if err := json.Unmarshal(state, stats); err != nil {
		return nil, fmt.Errorf("decode statistics %s: %w", dialogID, err)
	}
	return stats, nil
}

// SaveStatistics stores a dialog's statistics snapshot.
func (s *Store) SaveStatistics(ctx context.Context, stats *projection.Statistics) error {
	if stats == nil || strings.TrimSpace(stats.DialogID) == "" {
		return fmt.Errorf("statistics dialog id is required")
	}
	return s.saveState(ctx, `
INSERT INTO projection_statistics (dialog_id, state_json, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (dialog_id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at`,
		stats.DialogID, stats)
}

func (s *Store) loadState(ctx context.Context, query string, args ...any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var state []byte
	row := s.sqlDB.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load projection state: %w", err)
	}
	return state, nil
}

func (s *Store) saveState(ctx context.Context, query, dialogID string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	state, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode projection state %s: %w", dialogID, err)
	}
	if _, err := s.sqlDB.ExecContext(ctx, query, dialogID, state, toMillis(time.Now())); err != nil {
		return fmt.Errorf("save projection state %s: %w", dialogID, err)
	}
	return nil
}
