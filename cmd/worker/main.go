// Command worker keeps the spreadsheet current: it syncs on a fixed interval
// and, when RabbitMQ is configured, shortly after each new submission.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/thepathwise/intake/internal/config"
	"github.com/thepathwise/intake/internal/events"
	"github.com/thepathwise/intake/internal/jobs"
	"github.com/thepathwise/intake/internal/repository/backend"
	"github.com/thepathwise/intake/internal/sheetsync"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err == nil {
		err = cfg.ValidateSheets()
	}
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	if cfg.Sync.Interval == 0 && cfg.Events.AMQPURL == "" {
		logger.Error("nothing to do: set SYNC_INTERVAL or RABBITMQ_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg.Database.DSN, logger)
	if err != nil {
		logger.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	job, err := sheetsync.NewFromConfig(ctx, cfg.Sheets, store, logger)
	if err != nil {
		logger.Error("failed to create sheet sync job", "err", err)
		store.Close()
		os.Exit(1)
	}

	sched := jobs.NewScheduler(jobs.NewRunner(store, logger), jobs.SheetSync,
		func(ctx context.Context) (any, error) { return job.Run(ctx) },
		cfg.Sync.Interval, cfg.Sync.Debounce, logger)
	fatal := make(chan error, 1)
	sched.Fatal = func(err error) bool {
		if !sheetsync.IsFatal(err) {
			return false
		}
		fatal <- err
		stop()
		return true
	}
	sched.Start(ctx)
	defer sched.Stop()

	if cfg.Events.AMQPURL == "" {
		logger.Info("worker started", "interval", cfg.Sync.Interval)
		<-ctx.Done()
		exitOnFatal(fatal, sched)
		return
	}

	mq, err := events.Dial(cfg.Events.AMQPURL, cfg.Events.Queue, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "err", err)
		sched.Stop()
		store.Close()
		os.Exit(1)
	}
	defer mq.Close()

	logger.Info("worker started", "interval", cfg.Sync.Interval, "queue", cfg.Events.Queue)
	err = mq.Consume(ctx, func(ctx context.Context, ev events.SubmissionCreated) error {
		logger.Info("submission event", "id", ev.ID)
		sched.Trigger()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "err", err)
		sched.Stop()
		mq.Close()
		store.Close()
		os.Exit(1)
	}
	exitOnFatal(fatal, sched)
}

// exitOnFatal exits non-zero when the scheduler halted on a configuration
// error rather than a signal.
func exitOnFatal(fatal <-chan error, sched *jobs.Scheduler) {
	select {
	case err := <-fatal:
		sched.Stop()
		slog.Error("sheet sync cannot run", "err", err)
		os.Exit(1)
	default:
	}
}
