// Package writer is the single write path for roster records: bounded
// retry against the primary store, degrading to the local fallback queue on
// persistent connectivity failure. Transient errors never escape this
// package.
package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vivassoc/roster-backend/internal/fallback"
	"github.com/vivassoc/roster-backend/internal/model"
	"github.com/vivassoc/roster-backend/internal/resolver"
	"github.com/vivassoc/roster-backend/internal/store"
)

// Method tells the caller where the write landed.
type Method string

const (
	MethodDatabase Method = "database"
	MethodFallback Method = "fallback"
)

// Outcome is the result of one robust write.
type Outcome struct {
	Success    bool
	Method     Method
	Action     resolver.Action
	StudentID  string
	FallbackID string
	Message    string
}

// Writer persists canonical records through the primary store, queueing
// them locally when it is unreachable.
type Writer struct {
	store    store.Store
	resolver *resolver.Resolver
	queue    *fallback.Queue
	log      zerolog.Logger

	retries int
	delay   time.Duration
	sleep   func(time.Duration)

	// onDatabaseWrite is invoked after every successful primary-store write
	// so the reconciler can schedule a non-blocking drain.
	onDatabaseWrite func()
}

// New creates a Writer with the given retry budget. delay separates retry
// attempts; retries counts attempts after the first.
func New(st store.Store, res *resolver.Resolver, queue *fallback.Queue, retries int, delay time.Duration, log zerolog.Logger) *Writer {
	if retries < 0 {
		retries = 0
	}
	return &Writer{
		store:    st,
		resolver: res,
		queue:    queue,
		log:      log.With().Str("component", "writer").Logger(),
		retries:  retries,
		delay:    delay,
		sleep:    time.Sleep,
	}
}

// OnDatabaseWrite registers the post-write hook. Must be set before
// concurrent use.
func (w *Writer) OnDatabaseWrite(fn func()) {
	w.onDatabaseWrite = fn
}

// WriteStudent persists one canonical record. The record is resolved
// against the roster (create vs update) and written; on persistent
// connectivity failure it is queued locally and the outcome still reports
// success, with method=fallback and a warning message.
func (w *Writer) WriteStudent(ctx context.Context, rec model.StudentRecord) Outcome {
	if err := w.store.Ping(ctx); err != nil {
		if rcErr := w.store.Reconnect(ctx); rcErr != nil {
			w.log.Warn().Err(rcErr).Msg("Primary store unreachable before write")
		}
	}

	var lastErr error
	// The classification for a write that ends up queued. When resolution
	// succeeded before the store failed we know the real action; when the
	// store was down the whole time we classify optimistically as a create
	// and let the drainer re-resolve.
	action := resolver.ActionCreate
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			w.sleep(w.delay)
			if err := w.store.Reconnect(ctx); err != nil {
				lastErr = err
				continue
			}
		}

		outcome, err := w.WriteOnce(ctx, rec)
		if outcome.Action != "" {
			action = outcome.Action
		}
		if err == nil {
			if w.onDatabaseWrite != nil {
				w.onDatabaseWrite()
			}
			return outcome
		}
		if !store.IsTransient(err) {
			w.log.Error().Err(err).Str("student", rec.Name).Msg("Write rejected by primary store")
			return Outcome{
				Success: false,
				Method:  MethodDatabase,
				Message: err.Error(),
			}
		}
		lastErr = err
	}

	fallbackID, err := w.queue.Enqueue(rec)
	if err != nil {
		// Both the primary store and the local queue failed; this is the
		// only path where a write is reported lost.
		w.log.Error().Err(err).Str("student", rec.Name).Msg("Fallback enqueue failed")
		return Outcome{
			Success: false,
			Method:  MethodFallback,
			Message: fmt.Sprintf("primary store unavailable (%v) and fallback failed: %v", lastErr, err),
		}
	}

	return Outcome{
		Success:    true,
		Method:     MethodFallback,
		Action:     action,
		FallbackID: fallbackID,
		Message:    "primary store unavailable; record queued locally and will be persisted automatically on recovery",
	}
}

// WriteOnce resolves and persists rec in a single attempt, without retry or
// fallback. The drainer uses it so re-resolution happens at drain time, after
// other writes may have landed.
func (w *Writer) WriteOnce(ctx context.Context, rec model.StudentRecord) (Outcome, error) {
	decision, err := w.resolver.Resolve(ctx, rec)
	if err != nil {
		return Outcome{}, err
	}

	switch decision.Action {
	case resolver.ActionCreate:
		id, err := w.store.InsertStudent(ctx, decision.Student)
		if err != nil {
			return Outcome{Action: resolver.ActionCreate}, err
		}
		w.log.Debug().Str("id", id).Str("student", rec.Name).Msg("Student created")
		return Outcome{
			Success:   true,
			Method:    MethodDatabase,
			Action:    resolver.ActionCreate,
			StudentID: id,
		}, nil
	default:
		if decision.Patch.IsZero() {
			// The row carries nothing the roster does not already hold;
			// touching the store would only churn updated_at.
			w.log.Debug().Str("id", decision.Existing.ID).Str("student", rec.Name).Msg("Student unchanged, write skipped")
			return Outcome{
				Success:   true,
				Method:    MethodDatabase,
				Action:    resolver.ActionUpdate,
				StudentID: decision.Existing.ID,
			}, nil
		}
		if err := w.store.UpdateStudent(ctx, decision.Existing.ID, decision.Patch); err != nil {
			return Outcome{Action: resolver.ActionUpdate}, err
		}
		w.log.Debug().Str("id", decision.Existing.ID).Str("student", rec.Name).Msg("Student updated")
		return Outcome{
			Success:   true,
			Method:    MethodDatabase,
			Action:    resolver.ActionUpdate,
			StudentID: decision.Existing.ID,
		}, nil
	}
}
