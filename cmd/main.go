package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedimport/internal/api"
	"feedimport/internal/config"
	"feedimport/internal/database"
	"feedimport/internal/feed"
	"feedimport/internal/ingest"
	"feedimport/internal/ratelimiter"
	"feedimport/internal/scheduler"
	"feedimport/internal/sources"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.ParseConfig()
	if err != nil {
		slog.Error("Failed to parse config",
			"error", err)

		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	if cfg.SourcesFile != "" {
		count, seedErr := sources.Seed(ctx, cfg.SourcesFile, db, log)
		if seedErr != nil {
			log.ErrorContext(ctx, "Failed to seed sources",
				"error", seedErr,
				"sourcesFile", cfg.SourcesFile)

			return
		}
		log.InfoContext(ctx, "Sources are seeded",
			"sourcesFile", cfg.SourcesFile,
			"count", count)
	}

	syncer := newSyncer(cfg, db, log)

	if cfg.RunOnce {
		runOnce(ctx, cfg, syncer, log)
		return
	}

	if cfg.SyncSpec != "" {
		sched := scheduler.New(ctx, syncer, cfg.SyncSpec, cfg.SyncTimeout, log)
		if err = sched.Start(); err != nil {
			log.ErrorContext(ctx, "Failed to start scheduler",
				"error", err,
				"spec", cfg.SyncSpec)

			return
		}
		defer sched.Stop()
		log.InfoContext(ctx, "Scheduler is started",
			"spec", cfg.SyncSpec,
			"timezone", scheduler.Timezone)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(syncer, db, cfg.TriggerToken, cfg.SyncTimeout, log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "HTTP server is started",
			"addr", cfg.HTTPAddr)

		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			serverErrCh <- serveErr
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case serveErr := <-serverErrCh:
		log.ErrorContext(ctx, "HTTP server failed",
			"error", serveErr,
			"addr", cfg.HTTPAddr)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(shutdownCtx, "Failed to shutdown HTTP server",
			"error", err)
	}

	log.InfoContext(shutdownCtx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())
}

func newSyncer(cfg config.Config, db *database.Database, log *slog.Logger) *ingest.Syncer {
	fetcher := feed.NewFetcher(feed.FetcherOptions{
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.UserAgent,
		Limiter:   ratelimiter.New(cfg.HostInterval, log),
	}, log)

	return ingest.NewSyncer(
		db,
		fetcher,
		feed.NewParser(log),
		feed.NewEnricher(fetcher, cfg.EnrichTimeout, cfg.EnrichWorkers, log),
		ingest.NewWriter(db, log),
		cfg.SourceWorkers,
		log,
	)
}

func runOnce(ctx context.Context, cfg config.Config, syncer *ingest.Syncer, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, cfg.SyncTimeout)
	defer cancel()

	result, err := syncer.RunSync(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to run sync",
			"error", err)

		return
	}

	log.InfoContext(ctx, "Sync is finished",
		"sourcesProcessed", result.SourcesProcessed,
		"itemsImported", result.ItemsImported)
}
