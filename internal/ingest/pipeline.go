// Package ingest runs a whole spreadsheet through harmonisation, identity
// resolution and the robust write path, producing a per-row report in source
// order. Rows are processed sequentially so re-running a file is always safe.
package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vivassoc/roster-backend/internal/ident"
	"github.com/vivassoc/roster-backend/internal/metrics"
	"github.com/vivassoc/roster-backend/internal/model"
	"github.com/vivassoc/roster-backend/internal/resolver"
	"github.com/vivassoc/roster-backend/internal/sheet"
	"github.com/vivassoc/roster-backend/internal/store"
	"github.com/vivassoc/roster-backend/internal/writer"
)

// RowOutcome is the report line for one source row.
type RowOutcome struct {
	RowIndex   int    `json:"row_index"`
	Success    bool   `json:"success"`
	Action     string `json:"action,omitempty"`
	Method     string `json:"method,omitempty"`
	StudentID  string `json:"student_id,omitempty"`
	FallbackID string `json:"fallback_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Report summarises one ingestion run. Created and Updated count every row
// that will end in that state, including rows that took the fallback path;
// Fallback says how many of them are still waiting on the primary store.
type Report struct {
	File         string       `json:"file"`
	RowsTotal    int          `json:"rows_total"`
	Created      int          `json:"created"`
	Updated      int          `json:"updated"`
	Fallback     int          `json:"fallback"`
	Skipped      int          `json:"skipped_no_name"`
	Errors       int          `json:"errors"`
	Rows         []RowOutcome `json:"rows"`
	ErrorDetails []string     `json:"error_details,omitempty"`
}

// Options select the input and attribution for one run.
type Options struct {
	Path string
	// Sheet picks a spreadsheet tab; empty means the first one.
	Sheet string
	// DefaultActivity is filled into rows that carry no activity column.
	DefaultActivity string
	// Actor is recorded in the audit log; empty falls back to the system
	// actor the pipeline was built with.
	Actor string
}

// Pipeline turns spreadsheet files into roster writes.
type Pipeline struct {
	store  store.Store
	writer *writer.Writer
	clock  ident.Clock
	actor  string
	log    zerolog.Logger
}

func NewPipeline(st store.Store, w *writer.Writer, clock ident.Clock, defaultActor string, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:  st,
		writer: w,
		clock:  clock,
		actor:  defaultActor,
		log:    log.With().Str("component", "ingest").Logger(),
	}
}

// Ingest processes the file at opts.Path row by row, in source order. Input
// errors (unreadable file, no data rows) are returned with an empty report;
// per-row failures are reported, never fatal.
func (p *Pipeline) Ingest(ctx context.Context, opts Options) (Report, error) {
	report := Report{File: opts.Path}

	rows, err := sheet.Open(opts.Path, opts.Sheet)
	if err != nil {
		report.Errors++
		report.ErrorDetails = append(report.ErrorDetails, err.Error())
		return report, fmt.Errorf("ingest %s: %w", opts.Path, err)
	}

	report.RowsTotal = len(rows)
	p.log.Info().Str("file", opts.Path).Int("rows", len(rows)).Msg("Ingestion started")

	for _, row := range rows {
		if !row.HasName() {
			report.Skipped++
			metrics.IngestedRows.WithLabelValues("skipped").Inc()
			report.Rows = append(report.Rows, RowOutcome{
				RowIndex: row.Index,
				Success:  false,
				Action:   "skipped",
				Message:  "row has no student name; skipped",
			})
			continue
		}

		rec := row.Record
		if rec.Activity == nil && opts.DefaultActivity != "" {
			activity := opts.DefaultActivity
			rec.Activity = &activity
		}

		out := p.writer.WriteStudent(ctx, rec)
		action := string(out.Action)
		if !out.Success {
			action = "error"
		}
		report.Rows = append(report.Rows, RowOutcome{
			RowIndex:   row.Index,
			Success:    out.Success,
			Action:     action,
			Method:     string(out.Method),
			StudentID:  out.StudentID,
			FallbackID: out.FallbackID,
			Message:    out.Message,
		})

		// A row taken by the fallback queue still counts towards its
		// eventual action; Fallback only tracks how many are deferred.
		switch {
		case !out.Success:
			report.Errors++
			metrics.IngestedRows.WithLabelValues("error").Inc()
			report.ErrorDetails = append(report.ErrorDetails,
				fmt.Sprintf("row %d (%s): %s", row.Index, rec.Name, out.Message))
		case out.Action == resolver.ActionCreate:
			report.Created++
			metrics.IngestedRows.WithLabelValues("created").Inc()
		default:
			report.Updated++
			metrics.IngestedRows.WithLabelValues("updated").Inc()
		}
		if out.Success && out.Method == writer.MethodFallback {
			report.Fallback++
		}
		metrics.StudentWrites.WithLabelValues(string(out.Method)).Inc()
	}

	p.logSummary(ctx, opts, report)
	return report, nil
}

// logSummary appends the audit entry for the run. Audit failures are logged
// and dropped; they must not fail an otherwise successful ingestion.
func (p *Pipeline) logSummary(ctx context.Context, opts Options, report Report) {
	actor := opts.Actor
	kind := model.ActorKindOperator
	if actor == "" {
		actor = p.actor
		kind = model.ActorKindSystem
	}
	entry := &model.ActionLogEntry{
		Timestamp: p.clock.Now(),
		Actor:     actor,
		ActorKind: kind,
		Action:    "ingest",
		Details: fmt.Sprintf("file=%s rows=%d created=%d updated=%d fallback=%d errors=%d skipped=%d",
			opts.Path, report.RowsTotal, report.Created, report.Updated,
			report.Fallback, report.Errors, report.Skipped),
	}
	if err := p.store.AppendActionLog(ctx, entry); err != nil {
		p.log.Warn().Err(err).Msg("Failed to append ingestion audit entry")
	}

	p.log.Info().
		Str("file", opts.Path).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("fallback", report.Fallback).
		Int("errors", report.Errors).
		Int("skipped", report.Skipped).
		Msg("Ingestion finished")
}
