package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/thepathwise/intake/internal/config"
	"github.com/thepathwise/intake/internal/repository/backend"
)

// Writes every stored submission, as stored, to a JSON file.
func main() {
	out := flag.String("out", "", "Output file (default submissions-<timestamp>.json)")
	flag.Parse()

	ctx := context.Background()
	_ = godotenv.Load()
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	dst := *out
	if dst == "" {
		dst = fmt.Sprintf("submissions-%s.json", time.Now().UTC().Format("20060102T150405Z"))
	}

	store, err := backend.Open(ctx, cfg.Database.DSN, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backup error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	docs, err := store.ListDocuments(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backup error: %v\n", err)
		os.Exit(1)
	}

	dstFile, err := os.Create(dst)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backup error: %v\n", err)
		os.Exit(1)
	}
	defer dstFile.Close()

	enc := json.NewEncoder(dstFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		fmt.Fprintf(os.Stderr, "Backup error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Backed up %d submissions to %s.\n", len(docs), dst)
}
