package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/leora-hq/leora-core/internal/common"
	"github.com/leora-hq/leora-core/internal/ingest"
	"github.com/leora-hq/leora-core/internal/queue"
	"github.com/leora-hq/leora-core/internal/repository"
	"github.com/leora-hq/leora-core/internal/storage"
	"github.com/leora-hq/leora-core/internal/vision"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database, log)
	if err != nil {
		os.Exit(1)
	}
	defer repository.Close(db, log)
	if err := repository.Migrate(db); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	jobs := repository.NewJobRepository(db, log)
	scans := repository.NewImageScanRepository(db, log)
	batches := repository.NewImportBatchRepository(db, log)

	visionClient := vision.NewClient(vision.Config{
		APIKey:          cfg.Vision.APIKey,
		BaseURL:         cfg.Vision.BaseURL,
		Model:           cfg.Vision.Model,
		ReasoningEffort: cfg.Vision.ReasoningEffort,
		MaxOutputTokens: cfg.Vision.MaxOutputTokens,
		Timeout:         cfg.Vision.Timeout,
	}, log)
	scanProc := vision.NewScanProcessor(scans, visionClient, log)
	store := storage.NewLocalStore(cfg.Storage.ImportDir, log)
	ingestSvc := ingest.NewService(db, log)

	q := queue.New(jobs, log)
	queue.NewHandlers(scanProc, batches, store, ingestSvc, log).RegisterAll(q)

	log.Info("leorad started",
		"poll_interval", cfg.Worker.PollInterval.String(),
		"cleanup_interval", cfg.Worker.CleanupInterval.String(),
		"retention_days", cfg.Worker.RetentionDays,
	)

	cleanup := time.NewTicker(cfg.Worker.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-cleanup.C:
			if _, err := q.CleanupOldJobs(ctx, cfg.Worker.RetentionDays); err != nil {
				log.Error("worker.cleanup_failed", "err", err)
			}
			if _, err := q.RequeueStale(ctx, cfg.Worker.StaleAfter); err != nil {
				log.Error("worker.requeue_stale_failed", "err", err)
			}
		default:
		}

		processed, err := q.ProcessNextJob(ctx)
		if err != nil {
			log.Error("worker.poll_failed", "err", err)
		}
		if !processed {
			select {
			case <-ctx.Done():
				log.Info("shutting down")
				return
			case <-time.After(cfg.Worker.PollInterval):
			}
		}
	}
}
