package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/thepathwise/intake/internal/config"
	"github.com/thepathwise/intake/internal/repository/backend"
)

func main() {
	ctx := context.Background()
	_ = godotenv.Load()
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	kind, err := backend.Kind(cfg.Database.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// opening a store applies migrations (sqlite) or creates tables (postgres)
	store, err := backend.Open(ctx, cfg.Database.DSN, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Store init error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	fmt.Printf("%s store initialized successfully.\n", kind)
}
