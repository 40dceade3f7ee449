package storage

import (
	"context"

	"github.com/louisbranch/parley/internal/domain/dialog"
	"github.com/louisbranch/parley/internal/domain/event"
	apperrors "github.com/louisbranch/parley/internal/platform/errors"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such entity"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrVersionConflict indicates a save raced with another writer: the stored
// aggregate version no longer matches the version the caller loaded.
var ErrVersionConflict = apperrors.New(apperrors.CodeVersionConflict, "dialog version conflict")

// ErrSequenceGap indicates an append tried to skip a sequence number in a
// dialog's journal.
var ErrSequenceGap = apperrors.New(apperrors.CodeEventSequenceGap, "event sequence gap")

// EventStore owns the append-only event journal that drives replay and
// projections.
type EventStore interface {
	// AppendEvent atomically appends an event and returns it with the
	// per-dialog sequence number assigned (last + 1).
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// ListEvents returns events for a dialog ordered by sequence ascending,
	// strictly after afterSeq, up to limit (0 means no limit).
	ListEvents(ctx context.Context, dialogID string, afterSeq uint64, limit int) ([]event.Event, error)
	// LatestSeq returns the highest sequence number appended for a dialog,
	// zero when the dialog has no events.
	LatestSeq(ctx context.Context, dialogID string) (uint64, error)
}

// DialogStore owns the aggregate repository consulted by the command side.
type DialogStore interface {
	// Load returns the dialog or ErrNotFound.
	Load(ctx context.Context, id string) (*dialog.Dialog, error)
	// Save persists the dialog after a compare-and-swap against
	// expectedVersion, the version the caller loaded before mutating.
	// A mismatch returns ErrVersionConflict. expectedVersion zero inserts a
	// new dialog.
	Save(ctx context.Context, d *dialog.Dialog, expectedVersion uint64) error
}
