package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/vivassoc/roster-backend/internal/config"
	"github.com/vivassoc/roster-backend/internal/database"
	"github.com/vivassoc/roster-backend/internal/fallback"
	"github.com/vivassoc/roster-backend/internal/handler"
	"github.com/vivassoc/roster-backend/internal/ident"
	"github.com/vivassoc/roster-backend/internal/ingest"
	"github.com/vivassoc/roster-backend/internal/logger"
	"github.com/vivassoc/roster-backend/internal/reconcile"
	"github.com/vivassoc/roster-backend/internal/resolver"
	"github.com/vivassoc/roster-backend/internal/router"
	"github.com/vivassoc/roster-backend/internal/service"
	"github.com/vivassoc/roster-backend/internal/store"
	"github.com/vivassoc/roster-backend/internal/validator"
	"github.com/vivassoc/roster-backend/internal/writer"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Roster Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Ingestion Core ─────────────────────────────────────
	clock := ident.RealClock{}
	st := store.NewPostgres(pool, log)
	queue := fallback.NewQueue(cfg.FallbackFile, clock, log)
	res := resolver.New(st, clock, cfg.DefaultActor, log)
	w := writer.New(st, res, queue, cfg.WriteRetries, cfg.WriteRetryDelay, log)
	drainer := reconcile.NewDrainer(st, w, queue, clock, log)
	pipeline := ingest.NewPipeline(st, w, clock, cfg.DefaultActor, log)

	// Every successful primary-store write schedules an opportunistic drain
	// so the queue empties as soon as the store recovers.
	w.OnDatabaseWrite(drainer.TriggerAsync)

	// Anything queued by a previous run is picked up at startup.
	drainer.TriggerAsync()

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, st, rdb)
	uploadService := service.NewUploadService(cfg)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		Roster: handler.NewRosterHandler(uploadService, pipeline, drainer, st, log),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
