// Package metrics registers the Prometheus instruments for the ingestion
// pipeline and the fallback path. Everything is registered on the default
// registry and served from /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestedRows counts pipeline rows by terminal outcome: created,
	// updated, skipped, error.
	IngestedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster",
		Name:      "ingested_rows_total",
		Help:      "Spreadsheet rows processed, by outcome.",
	}, []string{"outcome"})

	// StudentWrites counts robust writes by where they landed.
	StudentWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster",
		Name:      "student_writes_total",
		Help:      "Student writes, by destination (database or fallback).",
	}, []string{"method"})

	// FallbackPending is the current fallback queue depth.
	FallbackPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roster",
		Name:      "fallback_pending",
		Help:      "Entries waiting in the local fallback queue.",
	})

	// DrainedEntries counts queue entries successfully replayed into the
	// primary store.
	DrainedEntries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roster",
		Name:      "drained_entries_total",
		Help:      "Fallback entries persisted to the primary store.",
	})

	// DrainErrors counts drain passes that reported at least one error.
	DrainErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roster",
		Name:      "drain_errors_total",
		Help:      "Errors encountered while draining the fallback queue.",
	})
)
