package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/parley/internal/domain/dialog"
	"github.com/louisbranch/parley/internal/storage"
)

// Load returns the dialog aggregate or storage.ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*dialog.Dialog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var state []byte
	row := s.sqlDB.QueryRowContext(ctx, "SELECT state_json FROM dialogs WHERE id = ?", id)
	if err := row.Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load dialog %s: %w", id, err)
	}

	d := dialog.New()
	if err := json.Unmarshal(state, d); err != nil {
		return nil, fmt.Errorf("decode dialog %s: %w", id, err)
	}
	return d, nil
}

// Save persists the dialog after a compare-and-swap against
// expectedVersion. Zero means insert.
func (s *Store) Save(ctx context.Context, d *dialog.Dialog, expectedVersion uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if d == nil || strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("dialog id is required")
	}

	state, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode dialog %s: %w", d.ID, err)
	}

	if expectedVersion == 0 {
		_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO dialogs (id, version, state_json, updated_at)
VALUES (?, ?, ?, ?)`,
			d.ID, int64(d.Version), state, toMillis(d.UpdatedAt))
		if err != nil {
			if isConstraintError(err) {
				return storage.ErrVersionConflict
			}
			return fmt.Errorf("insert dialog %s: %w", d.ID, err)
		}
		return nil
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE dialogs SET version = ?, state_json = ?, updated_at = ?
WHERE id = ? AND version = ?`,
		int64(d.Version), state, toMillis(d.UpdatedAt), d.ID, int64(expectedVersion))
	if err != nil {
		return fmt.Errorf("update dialog %s: %w", d.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update dialog %s: %w", d.ID, err)
	}
	if affected == 0 {
		return storage.ErrVersionConflict
	}
	return nil
}

// isConstraintError reports whether an insert hit a primary key or
// uniqueness constraint.
func isConstraintError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "constraint")
}
