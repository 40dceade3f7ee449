// Package replay rebuilds aggregates and projections from stored events.
package replay

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/parley/internal/domain/dialog"
	"github.com/louisbranch/parley/internal/domain/event"
	apperrors "github.com/louisbranch/parley/internal/platform/errors"
	"github.com/louisbranch/parley/internal/storage"
)

const replayPageSize = 200

// Applier consumes events in order, typically a projection updater.
type Applier interface {
	Apply(ctx context.Context, evt event.Event) error
}

// Options configures event replay behavior.
type Options struct {
	AfterSeq uint64
	UntilSeq uint64
	Filter   func(event.Event) bool
	// PageSize bounds each journal read; zero means the default.
	PageSize int
}

// Dialog replays all events for a dialog and applies them in order.
// It returns the last sequence number seen.
func Dialog(ctx context.Context, eventStore storage.EventStore, applier Applier, dialogID string) (uint64, error) {
	return DialogWith(ctx, eventStore, applier, dialogID, Options{})
}

// DialogWith replays events with additional filtering and bounds. The
// stored stream must be contiguous: a hole in the sequence numbering
// aborts the replay.
func DialogWith(ctx context.Context, eventStore storage.EventStore, applier Applier, dialogID string, options Options) (uint64, error) {
	if eventStore == nil {
		return 0, fmt.Errorf("event store is not configured")
	}
	if strings.TrimSpace(dialogID) == "" {
		return 0, dialog.ErrEmptyDialogID
	}

	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = replayPageSize
	}

	lastSeq := options.AfterSeq
	for {
		events, err := eventStore.ListEvents(ctx, dialogID, lastSeq, pageSize)
		if err != nil {
			return lastSeq, err
		}
		if len(events) == 0 {
			return lastSeq, nil
		}
		for _, evt := range events {
			if options.UntilSeq > 0 && evt.Seq > options.UntilSeq {
				return lastSeq, nil
			}
			if evt.Seq != lastSeq+1 {
				return lastSeq, apperrors.WithMetadata(
					apperrors.CodeEventSequenceGap,
					fmt.Sprintf("dialog %s: expected seq %d, got %d", dialogID, lastSeq+1, evt.Seq),
					map[string]string{"dialog_id": dialogID},
				)
			}
			lastSeq = evt.Seq
			if options.Filter != nil && !options.Filter(evt) {
				continue
			}
			if err := applier.Apply(ctx, evt); err != nil {
				return lastSeq, err
			}
		}
	}
}

// Aggregate folds a dialog's full event stream into a fresh aggregate.
// The result is identical to the state the live command path produced,
// since both run the same fold.
func Aggregate(ctx context.Context, eventStore storage.EventStore, dialogID string) (*dialog.Dialog, error) {
	d := dialog.New()
	_, err := DialogWith(ctx, eventStore, applierFunc(func(_ context.Context, evt event.Event) error {
		return d.Apply(evt)
	}), dialogID, Options{})
	if err != nil {
		return nil, err
	}
	if d.Version == 0 {
		return nil, storage.ErrNotFound
	}
	return d, nil
}

type applierFunc func(ctx context.Context, evt event.Event) error

func (f applierFunc) Apply(ctx context.Context, evt event.Event) error {
	return f(ctx, evt)
}
