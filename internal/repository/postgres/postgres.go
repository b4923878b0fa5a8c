// Package postgres is the lib/pq backed submission store. Documents are kept
// as JSONB so legacy shapes survive until backfilled.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/thepathwise/intake/internal/schema"
	"github.com/thepathwise/intake/pkg/models"
	"github.com/thepathwise/intake/pkg/repository"
)

const (
	submissionsTableName = "intake_submissions"
	jobRunsTableName     = "intake_job_runs"
	operationTimeout     = 5 * time.Second
)

var (
	ErrInvalidDSN = errors.New("postgres dsn is empty")
	ErrNotFound   = errors.New("submission not found")
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// Repo implements repository.Store on Postgres. Tables are created on first
// use.
type Repo struct {
	dsn         string
	submissions string
	jobRuns     string
	openDB      sqlOpenFunc
	logger      *slog.Logger

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

var _ repository.Store = (*Repo)(nil)

func New(dsn string, logger *slog.Logger) (*Repo, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidDSN
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repo{
		dsn:         dsn,
		submissions: submissionsTableName,
		jobRuns:     jobRunsTableName,
		openDB:      sql.Open,
		logger:      logger,
	}, nil
}

// Ping forces table creation and checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.ensureReady(); err != nil {
		return err
	}
	return r.db.PingContext(ctx)
}

func (r *Repo) CreateSubmission(ctx context.Context, s *models.Submission) error {
	if s == nil {
		return fmt.Errorf("submission is nil")
	}
	fields := schema.Fields(*s)
	if err := schema.CheckRecord(ctx, fields); err != nil {
		return err
	}
	if err := r.ensureReady(); err != nil {
		return err
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	id := uuid.NewString()
	query := fmt.Sprintf(`
		INSERT INTO %s (id, doc, created_at, updated_at)
		VALUES ($1, $2::jsonb, NOW(), NOW())
		RETURNING created_at, updated_at`, quoteIdentifier(r.submissions))
	var created, updated time.Time
	if err := r.db.QueryRowContext(ctx, query, id, string(payload)).Scan(&created, &updated); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	s.ID = id
	s.CreatedAt, s.UpdatedAt = created.UTC(), updated.UTC()
	return nil
}

func (r *Repo) ListDocuments(ctx context.Context) ([]models.Document, error) {
	if err := r.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT id, doc::text, created_at, updated_at FROM %s ORDER BY created_at DESC, id DESC`, quoteIdentifier(r.submissions))
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var (
			d   models.Document
			raw string
		)
		if err := rows.Scan(&d.ID, &raw, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.CreatedAt, d.UpdatedAt = d.CreatedAt.UTC(), d.UpdatedAt.UTC()
		if err := json.Unmarshal([]byte(raw), &d.Fields); err != nil {
			r.logger.Warn("undecodable submission document", "id", d.ID, "err", err)
			d.Fields = nil
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repo) PatchDocument(ctx context.Context, id string, p models.Patch) error {
	if err := r.ensureReady(); err != nil {
		return err
	}
	set := p.Set
	if set == nil {
		set = map[string]any{}
	}
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	unset := p.UnsetSorted()
	if unset == nil {
		unset = []string{}
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		UPDATE %s
		SET doc = (doc || $2::jsonb) - $3::text[], updated_at = NOW()
		WHERE id = $1`, quoteIdentifier(r.submissions))
	res, err := r.db.ExecContext(ctx, query, id, string(payload), pq.Array(unset))
	if err != nil {
		return fmt.Errorf("patch submission %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (r *Repo) RecordRun(ctx context.Context, run *models.JobRun) (int64, error) {
	if run == nil {
		return 0, fmt.Errorf("job run is nil")
	}
	if err := r.ensureReady(); err != nil {
		return 0, err
	}
	summary := string(run.Summary)
	if summary == "" {
		summary = "{}"
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (name, started_at, finished_at, status, summary, error)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		RETURNING id`, quoteIdentifier(r.jobRuns))
	if err := r.db.QueryRowContext(ctx, query, run.Name, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Status, summary, run.Error).Scan(&run.ID); err != nil {
		return 0, fmt.Errorf("record job run: %w", err)
	}
	return run.ID, nil
}

func (r *Repo) ListRuns(ctx context.Context, name string, limit int) ([]models.JobRun, error) {
	if err := r.ensureReady(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, name, started_at, finished_at, status, summary::text, error
		FROM %s
		WHERE ($1 = '' OR name = $1)
		ORDER BY started_at DESC, id DESC
		LIMIT $2`, quoteIdentifier(r.jobRuns))
	rows, err := r.db.QueryContext(ctx, query, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.JobRun
	for rows.Next() {
		var (
			run     models.JobRun
			summary string
		)
		if err := rows.Scan(&run.ID, &run.Name, &run.StartedAt, &run.FinishedAt, &run.Status, &summary, &run.Error); err != nil {
			return nil, err
		}
		run.StartedAt, run.FinishedAt = run.StartedAt.UTC(), run.FinishedAt.UTC()
		run.Summary = []byte(summary)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *Repo) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repo) ensureReady() error {
	r.initOnce.Do(func() {
		db, err := r.openDB("postgres", r.dsn)
		if err != nil {
			r.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
		defer cancel()

		stmts := []string{
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT PRIMARY KEY,
					doc JSONB NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`, quoteIdentifier(r.submissions)),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (created_at DESC)`,
				quoteIdentifier(r.submissions+"_created_at_idx"), quoteIdentifier(r.submissions)),
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL,
					started_at TIMESTAMPTZ NOT NULL,
					finished_at TIMESTAMPTZ NOT NULL,
					status TEXT NOT NULL,
					summary JSONB NOT NULL DEFAULT '{}'::jsonb,
					error TEXT NOT NULL DEFAULT ''
				)`, quoteIdentifier(r.jobRuns)),
		}
		for _, q := range stmts {
			if _, err := db.ExecContext(ctx, q); err != nil {
				_ = db.Close()
				r.initErr = err
				return
			}
		}
		r.db = db
	})
	return r.initErr
}

func quoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "\"\""
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
