package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/parley/internal/domain/event"
	"github.com/louisbranch/parley/internal/storage"
)

// AppendEvent atomically appends an event and returns it with its
// per-dialog sequence number assigned. A pre-set sequence must be exactly
// last + 1; zero means assign the next free slot.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(evt.DialogID) == "" {
		return event.Event{}, fmt.Errorf("dialog id is required")
	}

	if s.registry != nil {
		validated, err := s.registry.ValidateForAppend(evt)
		if err != nil {
			return event.Event{}, err
		}
		evt = validated
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin append transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last uint64
	row := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM dialog_events WHERE dialog_id = ?", evt.DialogID)
	if err := row.Scan(&last); err != nil {
		return event.Event{}, fmt.Errorf("read latest seq: %w", err)
	}

	if evt.Seq == 0 {
		evt.Seq = last + 1
	} else if evt.Seq != last+1 {
		return event.Event{}, storage.ErrSequenceGap
	}

	payload := evt.PayloadJSON
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO dialog_events (dialog_id, seq, timestamp, event_type, actor_type, actor_id, payload_json)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.DialogID,
		int64(evt.Seq),
		toMillis(evt.Timestamp),
		string(evt.Type),
		string(evt.ActorType),
		evt.ActorID,
		payload,
	); err != nil {
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("commit append: %w", err)
	}
	return evt, nil
}

// ListEvents returns events for a dialog ordered by sequence ascending,
// strictly after afterSeq. A limit of 0 means no limit.
func (s *Store) ListEvents(ctx context.Context, dialogID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `
SELECT seq, timestamp, event_type, actor_type, actor_id, payload_json
FROM dialog_events
WHERE dialog_id = ? AND seq > ?
ORDER BY seq ASC`
	args := []any{dialogID, int64(afterSeq)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			seq       int64
			timestamp int64
			evtType   string
			actorType string
			actorID   string
			payload   []byte
		)
		if err := rows.Scan(&seq, &timestamp, &evtType, &actorType, &actorID, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event.Event{
			DialogID:    dialogID,
			Seq:         uint64(seq),
			Timestamp:   fromMillis(timestamp),
			Type:        event.Type(evtType),
			ActorType:   event.ActorType(actorType),
			ActorID:     actorID,
			PayloadJSON: payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

// LatestSeq returns the highest sequence number appended for a dialog,
// zero when the dialog has no events.
func (s *Store) LatestSeq(ctx context.Context, dialogID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var last int64
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM dialog_events WHERE dialog_id = ?", dialogID)
	if err := row.Scan(&last); err != nil {
		return 0, fmt.Errorf("read latest seq: %w", err)
	}
	return uint64(last), nil
}
