package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/parley/internal/domain/dialog"
	"github.com/louisbranch/parley/internal/domain/event"
	apperrors "github.com/louisbranch/parley/internal/platform/errors"
	"github.com/louisbranch/parley/internal/projection"
	"github.com/louisbranch/parley/internal/replay"
	"github.com/louisbranch/parley/internal/storage"
)

// Engine executes dialog commands against the journal and keeps the
// aggregate store and projections in step.
type Engine struct {
	events   storage.EventStore
	dialogs  storage.DialogStore
	updater  *projection.Updater
	registry *event.Registry
	clock    func() time.Time
	tracer   trace.Tracer
	cfg      Config

	locks sync.Map
}

// New creates an engine over the given stores. The registry is built from
// the dialog event definitions so appended events are validated against
// their schemas.
func New(events storage.EventStore, dialogs storage.DialogStore, updater *projection.Updater, cfg Config) (*Engine, error) {
	registry := event.NewRegistry()
	if err := dialog.RegisterEvents(registry); err != nil {
		return nil, fmt.Errorf("register dialog events: %w", err)
	}
	return &Engine{
		events:   events,
		dialogs:  dialogs,
		updater:  updater,
		registry: registry,
		clock:    time.Now,
		tracer:   otel.Tracer("parley/engine"),
		cfg:      cfg.withDefaults(),
	}, nil
}

// WithClock overrides the time source. Tests use this to make event
// timestamps deterministic.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// StartDialog starts a new dialog and projects its started event.
func (e *Engine) StartDialog(ctx context.Context, input dialog.StartInput) (*dialog.Dialog, error) {
	ctx, span := e.tracer.Start(ctx, "engine.StartDialog")
	defer span.End()

	if input.MaxContextHistory == 0 {
		input.MaxContextHistory = e.cfg.MaxContextHistory
	}

	d, evt, err := dialog.Start(input, e.clock())
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("dialog.id", d.ID))

	unlock := e.lock(d.ID)
	defer unlock()

	// A start must never append to an existing journal: the second started
	// event would survive the version-conflict rollback and corrupt replay.
	seq, err := e.events.LatestSeq(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("check journal: %w", err)
	}
	if seq != 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeVersionConflict, "dialog already started", map[string]string{
			"dialog_id": d.ID,
		})
	}

	if err := e.commit(ctx, d, evt, 0); err != nil {
		return nil, err
	}
	return d, nil
}

// AddTurn appends a turn to the dialog.
func (e *Engine) AddTurn(ctx context.Context, dialogID string, input dialog.AddTurnInput) (*dialog.Dialog, error) {
	return e.execute(ctx, "engine.AddTurn", dialogID, func(d *dialog.Dialog, now time.Time) (event.Event, error) {
		return d.AddTurn(input, now)
	})
}

// AddParticipant adds a participant to the dialog.
func (e *Engine) AddParticipant(ctx context.Context, dialogID string, p dialog.Participant) (*dialog.Dialog, error) {
	return e.execute(ctx, "engine.AddParticipant", dialogID, func(d *dialog.Dialog, now time.Time) (event.Event, error) {
		return d.AddParticipant(p, now)
	})
}

// RemoveParticipant removes a non-primary participant from the dialog.
func (e *Engine) RemoveParticipant(ctx context.Context, dialogID, participantID, reason string) (*dialog.Dialog, error) {
	return e.execute(ctx, "engine.RemoveParticipant", dialogID, func(d *dialog.Dialog, now time.Time) (event.Event, error) {
		return d.RemoveParticipant(participantID, reason, now)
	})
}

// SwitchTopic switches the dialog to a new topic.
func (e *Engine) SwitchTopic(ctx context.Context, dialogID string, topic dialog.Topic) (*dialog.Dialog, error) {
	return e.execute(ctx, "engine.SwitchTopic", dialogID, func(d *dialog.Dialog, now time.Time) (event.Event, error) {
		return d.SwitchTopic(topic, now)
	})
}

// AddContextVariable adds a single context variable to the dialog.
func (e *Engine) AddContextVariable(ctx context.Context, dialogID string, v dialog.ContextVariable) (*dialog.Dialog, error) {
	return e.execute(ctx, "engine.AddContextVariable", dialogID, func(d *dialog.Dialog, now time.Time) (event.Event, error) {
		return d.AddContextVariable(v, now)
	})
}

// UpdateContext merges a batch of context variables into the dialog.
func (e *Engine) UpdateContext(ctx context.Context, dialogID string, vars map[string]json.RawMessage) (*dialog.Dialog, error) {
	return e.execute(ctx, "engine.UpdateContext", dialogID, func(d *dialog.Dialog, now time.Time) (event.Event, error) {
		return d.UpdateContext(vars, now)
	})
}

// MarkTopicComplete records a topic resolution.
func (e *Engine) MarkTopicComplete(ctx context.Context, dialogID, topicID, resolution string) (*dialog.Dialog, error) {
	return e.execute(ctx, "engine.MarkTopicComplete", dialogID, func(d *dialog.Dialog, now time.Time) (event.Event, error) {
		return d.MarkTopicComplete(topicID, resolution, now)
	})
}

// SetMetadata sets one metadata key on the dialog.
func (e *Engine) SetMetadata(ctx context.Context, dialogID, key string, value json.RawMessage) (*dialog.Dialog, error) {
	return e.execute(ctx, "engine.SetMetadata", dialogID, func(d *dialog.Dialog, now time.Time) (event.Event, error) {
		return d.SetMetadata(key, value, now)
	})
}

// Pause pauses an active dialog.
func (e *Engine) Pause(ctx context.Context, dialogID string) (*dialog.Dialog, error) {
	return e.execute(ctx, "engine.Pause", dialogID, func(d *dialog.Dialog, now time.Time) (event.Event, error) {
		return d.Pause(now)
	})
}

// Resume resumes a paused dialog.
func (e *Engine) Resume(ctx context.Context, dialogID string) (*dialog.Dialog, error) {
	return e.execute(ctx, "engine.Resume", dialogID, func(d *dialog.Dialog, now time.Time) (event.Event, error) {
		return d.Resume(now)
	})
}

// End ends the dialog normally.
func (e *Engine) End(ctx context.Context, dialogID, reason string) (*dialog.Dialog, error) {
	return e.execute(ctx, "engine.End", dialogID, func(d *dialog.Dialog, now time.Time) (event.Event, error) {
		return d.End(reason, now)
	})
}

// Abandon ends the dialog abnormally.
func (e *Engine) Abandon(ctx context.Context, dialogID, reason string) (*dialog.Dialog, error) {
	return e.execute(ctx, "engine.Abandon", dialogID, func(d *dialog.Dialog, now time.Time) (event.Event, error) {
		return d.Abandon(reason, now)
	})
}

// GetDialog loads the current aggregate state.
func (e *Engine) GetDialog(ctx context.Context, dialogID string) (*dialog.Dialog, error) {
	return e.dialogs.Load(ctx, dialogID)
}

// RebuildProjections streams the dialog's journal through the projection
// updater. Projections skip sequence numbers they have already folded, so
// this is safe to run on a live dialog to catch up after a dropped event.
func (e *Engine) RebuildProjections(ctx context.Context, dialogID string) (uint64, error) {
	ctx, span := e.tracer.Start(ctx, "engine.RebuildProjections")
	defer span.End()
	span.SetAttributes(attribute.String("dialog.id", dialogID))

	unlock := e.lock(dialogID)
	defer unlock()

	return replay.DialogWith(ctx, e.events, e.updater, dialogID, replay.Options{
		PageSize: e.cfg.ReplayPageSize,
	})
}

// execute runs one command against the loaded aggregate and commits the
// emitted event. Commands for the same dialog are serialized here.
func (e *Engine) execute(ctx context.Context, name, dialogID string, cmd func(*dialog.Dialog, time.Time) (event.Event, error)) (*dialog.Dialog, error) {
	ctx, span := e.tracer.Start(ctx, name)
	defer span.End()
	span.SetAttributes(attribute.String("dialog.id", dialogID))

	dialogID = strings.TrimSpace(dialogID)
	if dialogID == "" {
		return nil, dialog.ErrEmptyDialogID
	}

	unlock := e.lock(dialogID)
	defer unlock()

	d, err := e.dialogs.Load(ctx, dialogID)
	if err != nil {
		return nil, err
	}
	expectedVersion := d.Version

	evt, err := cmd(d, e.clock())
	if err != nil {
		return nil, err
	}
	if err := e.commit(ctx, d, evt, expectedVersion); err != nil {
		return nil, err
	}
	return d, nil
}

// commit appends the event to the journal, saves the aggregate with a
// version check, and projects the event. The journal is the source of
// truth: if the save or projection fails after the append, the aggregate
// and projections can be rebuilt from the journal.
func (e *Engine) commit(ctx context.Context, d *dialog.Dialog, evt event.Event, expectedVersion uint64) error {
	evt, err := e.registry.ValidateForAppend(evt)
	if err != nil {
		return err
	}
	appended, err := e.events.AppendEvent(ctx, evt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if err := e.dialogs.Save(ctx, d, expectedVersion); err != nil {
		return err
	}
	if err := e.updater.Apply(ctx, appended); err != nil {
		return fmt.Errorf("project event: %w", err)
	}
	return nil
}

func (e *Engine) lock(dialogID string) func() {
	v, _ := e.locks.LoadOrStore(dialogID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
