package projection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/louisbranch/parley/internal/domain/event"
	"github.com/louisbranch/parley/internal/storage"
)

// ActiveIndexStore persists the singleton active dialog index.
type ActiveIndexStore interface {
	ActiveIndex(ctx context.Context) (*ActiveIndex, error)
	SaveActiveIndex(ctx context.Context, index *ActiveIndex) error
}

// HistoryStore persists per-dialog conversation histories.
type HistoryStore interface {
	History(ctx context.Context, dialogID string) (*History, error)
	SaveHistory(ctx context.Context, history *History) error
}

// StatisticsStore persists per-dialog statistics snapshots.
type StatisticsStore interface {
	Statistics(ctx context.Context, dialogID string) (*Statistics, error)
	SaveStatistics(ctx context.Context, stats *Statistics) error
}

// Updater fans events out to the three projections. Updates for the same
// dialog are serialized with a per-dialog lock; different dialogs proceed
// concurrently. A malformed event is dropped with a metered warning and
// never partially applied: each projection folds into a working copy
// that is only saved when the fold succeeds.
type Updater struct {
	active  ActiveIndexStore
	history HistoryStore
	stats   StatisticsStore

	locks sync.Map
	// indexMu serializes read-modify-write of the singleton active
	// index across dialogs; the keyed locks only cover one dialog.
	indexMu sync.Mutex

	applied metric.Int64Counter
	dropped metric.Int64Counter
}

// NewUpdater wires the three projection stores.
func NewUpdater(active ActiveIndexStore, history HistoryStore, stats StatisticsStore) *Updater {
	meter := otel.Meter("parley/projection")
	applied, _ := meter.Int64Counter("projection.events.applied")
	dropped, _ := meter.Int64Counter("projection.events.dropped")
	return &Updater{
		active:  active,
		history: history,
		stats:   stats,
		applied: applied,
		dropped: dropped,
	}
}

// Apply folds one event into every projection. Store failures are
// returned; fold failures drop the event.
func (u *Updater) Apply(ctx context.Context, evt event.Event) error {
	unlock := u.lock(evt.DialogID)
	defer unlock()

	if err := u.applyActive(ctx, evt); err != nil {
		return err
	}
	if err := u.applyHistory(ctx, evt); err != nil {
		return err
	}
	if err := u.applyStatistics(ctx, evt); err != nil {
		return err
	}
	u.applied.Add(ctx, 1, metric.WithAttributes(attribute.String("event.type", string(evt.Type))))
	return nil
}

// ApplyAll folds a batch of events in order, stopping at the first store
// failure.
func (u *Updater) ApplyAll(ctx context.Context, evts []event.Event) error {
	for _, evt := range evts {
		if err := u.Apply(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (u *Updater) applyActive(ctx context.Context, evt event.Event) error {
	u.indexMu.Lock()
	defer u.indexMu.Unlock()

	index, err := u.active.ActiveIndex(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("load active index: %w", err)
		}
		index = NewActiveIndex()
	}
	if err := index.Apply(evt); err != nil {
		u.drop(ctx, evt, err)
		return nil
	}
	if err := u.active.SaveActiveIndex(ctx, index); err != nil {
		return fmt.Errorf("save active index: %w", err)
	}
	return nil
}

func (u *Updater) applyHistory(ctx context.Context, evt event.Event) error {
	history, err := u.history.History(ctx, evt.DialogID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("load history %s: %w", evt.DialogID, err)
		}
		history = NewHistory(evt.DialogID)
	}
	if err := history.Apply(evt); err != nil {
		u.drop(ctx, evt, err)
		return nil
	}
	if err := u.history.SaveHistory(ctx, history); err != nil {
		return fmt.Errorf("save history %s: %w", evt.DialogID, err)
	}
	return nil
}

func (u *Updater) applyStatistics(ctx context.Context, evt event.Event) error {
	stats, err := u.stats.Statistics(ctx, evt.DialogID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("load statistics %s: %w", evt.DialogID, err)
		}
		stats = NewStatistics(evt.DialogID)
	}
	if err := stats.Apply(evt); err != nil {
		u.drop(ctx, evt, err)
		return nil
	}
	if err := u.stats.SaveStatistics(ctx, stats); err != nil {
		return fmt.Errorf("save statistics %s: %w", evt.DialogID, err)
	}
	return nil
}

func (u *Updater) drop(ctx context.Context, evt event.Event, err error) {
	u.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("event.type", string(evt.Type))))
	log.Printf("projection drop %s seq %d: %v", evt.Type, evt.Seq, err)
}

func (u *Updater) lock(dialogID string) func() {
	value, _ := u.locks.LoadOrStore(dialogID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
