// Command ingest runs one spreadsheet through the ingestion pipeline from
// the terminal, without the HTTP server. Useful for the initial roster load
// and for cron-driven imports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vivassoc/roster-backend/internal/config"
	"github.com/vivassoc/roster-backend/internal/database"
	"github.com/vivassoc/roster-backend/internal/fallback"
	"github.com/vivassoc/roster-backend/internal/ident"
	"github.com/vivassoc/roster-backend/internal/ingest"
	"github.com/vivassoc/roster-backend/internal/logger"
	"github.com/vivassoc/roster-backend/internal/reconcile"
	"github.com/vivassoc/roster-backend/internal/resolver"
	"github.com/vivassoc/roster-backend/internal/store"
	"github.com/vivassoc/roster-backend/internal/writer"
)

func main() {
	var (
		sheetName       string
		defaultActivity string
		actor           string
		drainFirst      bool
	)
	flag.StringVar(&sheetName, "sheet", "", "Spreadsheet tab to read (default: first)")
	flag.StringVar(&defaultActivity, "activity", "", "Activity for rows without one")
	flag.StringVar(&actor, "actor", "", "Operator recorded in the audit log")
	flag.BoolVar(&drainFirst, "drain", false, "Drain the fallback queue before ingesting")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: ingest [flags] <file.xlsx|file.csv|file.json>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	clock := ident.RealClock{}
	st := store.NewPostgres(pool, log)
	queue := fallback.NewQueue(cfg.FallbackFile, clock, log)
	res := resolver.New(st, clock, cfg.DefaultActor, log)
	w := writer.New(st, res, queue, cfg.WriteRetries, cfg.WriteRetryDelay, log)
	drainer := reconcile.NewDrainer(st, w, queue, clock, log)
	pipeline := ingest.NewPipeline(st, w, clock, cfg.DefaultActor, log)

	if drainFirst {
		report := drainer.Drain(ctx)
		fmt.Printf("Drained %d queued entries (%d remaining)\n", report.Processed, report.Remaining)
		for _, e := range report.Errors {
			fmt.Fprintf(os.Stderr, "drain: %s\n", e)
		}
	}

	report, err := pipeline.Ingest(ctx, ingest.Options{
		Path:            path,
		Sheet:           sheetName,
		DefaultActivity: defaultActivity,
		Actor:           actor,
	})
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Ingestion failed")
	}

	fmt.Printf("Rows: %d  Created: %d  Updated: %d  Fallback: %d  Errors: %d  Skipped: %d\n",
		report.RowsTotal, report.Created, report.Updated,
		report.Fallback, report.Errors, report.Skipped)
	for _, e := range report.ErrorDetails {
		fmt.Fprintf(os.Stderr, "row error: %s\n", e)
	}
	if report.Errors > 0 {
		os.Exit(1)
	}
}
