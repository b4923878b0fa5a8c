package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/thepathwise/intake/api"
	"github.com/thepathwise/intake/internal/backfill"
	"github.com/thepathwise/intake/internal/config"
	"github.com/thepathwise/intake/internal/events"
	"github.com/thepathwise/intake/internal/intake"
	"github.com/thepathwise/intake/internal/jobs"
	"github.com/thepathwise/intake/internal/repository/backend"
	"github.com/thepathwise/intake/internal/sheetsync"
	"github.com/thepathwise/intake/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	if err := cfg.ValidateStorage(); err != nil {
		logger.Error("invalid storage config", "err", err)
		os.Exit(1)
	}

	logger.Info("starting intake server", "version", version, "build_time", buildTime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg.Database.DSN, logger)
	if err != nil {
		logger.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	s3Client, err := storage.NewS3Client(ctx, cfg.Storage)
	if err != nil {
		logger.Error("failed to create s3 client", "err", err)
		os.Exit(1)
	}
	uploader, err := storage.NewUploader(s3Client, cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to create uploader", "err", err)
		os.Exit(1)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.AMQPURL != "" {
		mq, err := events.Dial(cfg.Events.AMQPURL, cfg.Events.Queue, logger)
		if err != nil {
			// submissions must keep flowing without the broker
			logger.Warn("rabbitmq unavailable, events disabled", "err", err)
		} else {
			defer mq.Close()
			publisher = mq
		}
	}

	runner := jobs.NewRunner(store, logger)
	var syncFn jobs.Func
	if err := cfg.ValidateSheets(); err != nil {
		logger.Warn("sheet sync disabled", "err", err)
	} else {
		job, err := sheetsync.NewFromConfig(ctx, cfg.Sheets, store, logger)
		if err != nil {
			logger.Error("failed to create sheet sync job", "err", err)
			os.Exit(1)
		}
		syncFn = func(ctx context.Context) (any, error) { return job.Run(ctx) }
	}
	backfillFn := func(dryRun bool) jobs.Func {
		return func(ctx context.Context) (any, error) {
			return backfill.New(store, logger).Run(ctx, dryRun)
		}
	}

	handler := api.SetupRoutes(cfg, version, buildTime, api.Handlers{
		Forms:  api.NewFormsHandler(intake.NewPipeline(uploader, store, publisher, logger), cfg.UploadDir, cfg.MaxUploadBytes),
		Admin:  api.NewAdminHandler(runner, store, syncFn, backfillFn),
		System: &api.SystemHandler{Store: store},
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}

	logger.Info("server exited")
}
