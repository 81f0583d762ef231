// Package reconcile drains the fallback queue back into the primary store.
// A drain runs at most once at a time; every successful primary-store write
// elsewhere in the system schedules an opportunistic drain so queued records
// land as soon as the store recovers.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vivassoc/roster-backend/internal/fallback"
	"github.com/vivassoc/roster-backend/internal/ident"
	"github.com/vivassoc/roster-backend/internal/metrics"
	"github.com/vivassoc/roster-backend/internal/model"
	"github.com/vivassoc/roster-backend/internal/store"
	"github.com/vivassoc/roster-backend/internal/writer"
)

// DrainReport summarises one drain pass.
type DrainReport struct {
	Processed int      `json:"processed"`
	Remaining int      `json:"remaining"`
	Errors    []string `json:"errors,omitempty"`
}

// Status is the operator-facing health snapshot.
type Status struct {
	PrimaryReachable bool      `json:"primary_reachable"`
	FallbackPending  int       `json:"fallback_pending"`
	LastCheck        time.Time `json:"last_check"`
}

// Drainer replays queued student writes against the primary store.
type Drainer struct {
	store  store.Store
	writer *writer.Writer
	queue  *fallback.Queue
	clock  ident.Clock
	log    zerolog.Logger

	// mu admits one drain pass at a time; TriggerAsync skips instead of
	// waiting when a pass is already running.
	mu sync.Mutex
}

func NewDrainer(st store.Store, w *writer.Writer, queue *fallback.Queue, clock ident.Clock, log zerolog.Logger) *Drainer {
	return &Drainer{
		store:  st,
		writer: w,
		queue:  queue,
		clock:  clock,
		log:    log.With().Str("component", "drainer").Logger(),
	}
}

// Drain replays all pending entries in enqueue order. Entries are removed
// from the queue only after the primary store accepted them; a transient
// failure aborts the pass and leaves the rest queued for the next attempt.
func (d *Drainer) Drain(ctx context.Context) DrainReport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drainLocked(ctx)
}

// TriggerAsync starts a background drain if entries are pending and no pass
// is currently running. It never blocks the caller.
func (d *Drainer) TriggerAsync() {
	if d.queue.Pending() == 0 {
		return
	}
	if !d.mu.TryLock() {
		return
	}
	go func() {
		defer d.mu.Unlock()
		report := d.drainLocked(context.Background())
		if report.Processed > 0 || len(report.Errors) > 0 {
			d.log.Info().
				Int("processed", report.Processed).
				Int("remaining", report.Remaining).
				Int("errors", len(report.Errors)).
				Msg("Background drain finished")
		}
	}()
}

// Status pings the primary store and reports reachability alongside the
// queue depth.
func (d *Drainer) Status(ctx context.Context) Status {
	reachable := d.store.Ping(ctx) == nil
	pending := d.queue.Pending()
	metrics.FallbackPending.Set(float64(pending))
	return Status{
		PrimaryReachable: reachable,
		FallbackPending:  pending,
		LastCheck:        d.clock.Now(),
	}
}

func (d *Drainer) drainLocked(ctx context.Context) DrainReport {
	entries, err := d.queue.ListPending()
	if err != nil {
		return DrainReport{Errors: []string{fmt.Sprintf("read fallback queue: %v", err)}}
	}
	if len(entries) == 0 {
		return DrainReport{}
	}

	if err := d.store.Ping(ctx); err != nil {
		if rcErr := d.store.Reconnect(ctx); rcErr != nil {
			return DrainReport{
				Remaining: len(entries),
				Errors:    []string{fmt.Sprintf("primary store unreachable: %v", rcErr)},
			}
		}
	}

	report := DrainReport{}
	for _, entry := range entries {
		// Re-resolve at drain time: the student may have been created or
		// updated through the primary path while this entry sat queued, and
		// replaying blindly would duplicate it.
		outcome, err := d.writer.WriteOnce(ctx, entry.Student)
		if err != nil {
			if store.IsTransient(err) {
				// Store went away mid-pass; keep this and all later entries.
				report.Errors = append(report.Errors,
					fmt.Sprintf("%s: primary store lost mid-drain: %v", entry.FallbackID, err))
				break
			}
			// A poisoned entry stays queued but does not block the rest.
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s: %v", entry.FallbackID, err))
			d.log.Error().Err(err).
				Str("fallback_id", entry.FallbackID).
				Str("student", entry.Student.Name).
				Msg("Queued entry rejected by primary store")
			continue
		}

		if err := d.queue.MarkConsumed(entry.FallbackID); err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s: consume: %v", entry.FallbackID, err))
			continue
		}
		report.Processed++
		metrics.DrainedEntries.Inc()
		d.log.Info().
			Str("fallback_id", entry.FallbackID).
			Str("student", entry.Student.Name).
			Str("action", string(outcome.Action)).
			Msg("Queued entry drained to primary store")
	}

	report.Remaining = d.queue.Pending()
	metrics.FallbackPending.Set(float64(report.Remaining))
	if len(report.Errors) > 0 {
		metrics.DrainErrors.Add(float64(len(report.Errors)))
	}

	if report.Processed > 0 {
		entry := &model.ActionLogEntry{
			Timestamp: d.clock.Now(),
			Actor:     "sistema",
			ActorKind: model.ActorKindSystem,
			Action:    "drain",
			Details: fmt.Sprintf("processed=%d remaining=%d errors=%d",
				report.Processed, report.Remaining, len(report.Errors)),
		}
		if err := d.store.AppendActionLog(ctx, entry); err != nil {
			d.log.Warn().Err(err).Msg("Failed to append drain audit entry")
		}
	}
	return report
}
