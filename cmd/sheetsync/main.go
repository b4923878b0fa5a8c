// Command sheetsync replaces the configured spreadsheet tab with a snapshot
// of every stored submission.
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

	"github.com/thepathwise/intake/internal/config"
	"github.com/thepathwise/intake/internal/jobs"
	"github.com/thepathwise/intake/internal/repository/backend"
	"github.com/thepathwise/intake/internal/sheetsync"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.LoadConfig(*configPath)
	if err == nil {
		err = cfg.ValidateSheets()
	}
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

	job, err := sheetsync.NewFromConfig(ctx, cfg.Sheets, store, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		store.Close()
		os.Exit(1)
	}

	var res sheetsync.Result
	_, err = jobs.NewRunner(store, logger).Run(ctx, jobs.SheetSync, func(ctx context.Context) (any, error) {
		var err error
		res, err = job.Run(ctx)
		return res, err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sheet sync failed: %v\n", err)
		store.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
	fmt.Fprintf(os.Stderr, "Synced %d records (%d error rows) to %q\n", res.Records, res.ErrorRows, res.SheetName)
}
