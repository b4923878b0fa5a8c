// Package backfill rewrites stored submissions to the current record shape.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/thepathwise/intake/internal/apperr"
	"github.com/thepathwise/intake/internal/schema"
	"github.com/thepathwise/intake/pkg/repository"
)

// Summary tallies one pass.
type Summary struct {
	Total     int  `json:"total"`
	Migrated  int  `json:"migrated"`
	Unchanged int  `json:"unchanged"`
	Errors    int  `json:"errors"`
	DryRun    bool `json:"dryRun"`
	// NeedsManual lists records that received a placeholder value.
	NeedsManual []string `json:"needsManual,omitempty"`
	// Rules counts how often each rule fired.
	Rules map[string]int `json:"rules,omitempty"`
}

type Migrator struct {
	store  repository.DocumentRepo
	logger *slog.Logger
}

func New(store repository.DocumentRepo, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{store: store, logger: logger}
}

// Run reconciles every stored document. Per-record failures are logged and
// counted; only a failure to list the store aborts the pass. With dryRun set
// plans are computed and reported but nothing is written.
func (m *Migrator) Run(ctx context.Context, dryRun bool) (Summary, error) {
	docs, err := m.store.ListDocuments(ctx)
	if err != nil {
		return Summary{}, &apperr.UpstreamError{Op: "list submissions", Err: err}
	}

	sum := Summary{Total: len(docs), DryRun: dryRun, Rules: map[string]int{}}
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		plan, err := schema.Reconcile(d.Fields)
		if err != nil {
			m.recordError(&sum, &apperr.RecordError{ID: d.ID, Err: err})
			continue
		}
		if plan.Empty() {
			sum.Unchanged++
			continue
		}

		if !dryRun {
			if err := m.store.PatchDocument(ctx, d.ID, plan.Patch); err != nil {
				m.recordError(&sum, &apperr.RecordError{ID: d.ID, Err: fmt.Errorf("patch: %w", err)})
				continue
			}
		}

		sum.Migrated++
		for _, r := range plan.Applied {
			sum.Rules[r]++
		}
		if plan.NeedsManualCompletion {
			sum.NeedsManual = append(sum.NeedsManual, d.ID)
		}
		m.logger.Info("record migrated", "id", d.ID, "from", plan.From.String(), "rules", plan.Applied, "dry_run", dryRun)
	}

	m.logger.Info("backfill finished",
		"total", sum.Total, "migrated", sum.Migrated, "unchanged", sum.Unchanged,
		"errors", sum.Errors, "needs_manual", len(sum.NeedsManual), "dry_run", dryRun)
	return sum, nil
}

func (m *Migrator) recordError(sum *Summary, err *apperr.RecordError) {
	sum.Errors++
	level := slog.LevelError
	if errors.Is(err, schema.ErrMalformed) {
		level = slog.LevelWarn
	}
	m.logger.Log(context.Background(), level, "record skipped", "id", err.ID, "err", err.Err)
}
