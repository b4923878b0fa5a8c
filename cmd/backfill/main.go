// Command backfill upgrades every stored submission to the current record
// shape and prints a tally.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/thepathwise/intake/internal/backfill"
	"github.com/thepathwise/intake/internal/config"
	"github.com/thepathwise/intake/internal/jobs"
	"github.com/thepathwise/intake/internal/repository/backend"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	dryRun := flag.Bool("dry-run", false, "Report planned changes without writing")
	flag.Parse()

	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg.Database.DSN, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Store error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	var sum backfill.Summary
	_, err = jobs.NewRunner(store, logger).Run(ctx, jobs.Backfill, func(ctx context.Context) (any, error) {
		var err error
		sum, err = backfill.New(store, logger).Run(ctx, *dryRun)
		return sum, err
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(sum)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Backfill failed: %v\n", err)
		store.Close()
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Backfill complete: %d total, %d migrated, %d unchanged, %d errors\n",
		sum.Total, sum.Migrated, sum.Unchanged, sum.Errors)
}
