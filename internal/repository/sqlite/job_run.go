package sqlite

import (
	"context"
	"fmt"

	"github.com/thepathwise/intake/pkg/models"
)

// RecordRun inserts a finished job run and returns its id.
func (r *SQLiteRepo) RecordRun(ctx context.Context, run *models.JobRun) (int64, error) {
	if run == nil {
		return 0, fmt.Errorf("job run is nil")
	}
	summary := string(run.Summary)
	if summary == "" {
		summary = "{}"
	}
	res, err := r.conn.Exec(ctx, `INSERT INTO job_runs (name, started_at, finished_at, status, summary, error) VALUES (?, ?, ?, ?, ?, ?)`,
		run.Name, run.StartedAt.UTC().UnixMilli(), run.FinishedAt.UTC().UnixMilli(), run.Status, summary, run.Error)
	if err != nil {
		return 0, fmt.Errorf("record job run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	run.ID = id
	return id, nil
}

// ListRuns returns the latest runs, newest first. An empty name lists every job.
func (r *SQLiteRepo) ListRuns(ctx context.Context, name string, limit int) ([]models.JobRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.conn.Query(ctx, `SELECT id, name, started_at, finished_at, status, summary, error FROM job_runs WHERE (? = '' OR name = ?) ORDER BY started_at DESC, id DESC LIMIT ?`, name, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.JobRun
	for rows.Next() {
		var (
			run               models.JobRun
			started, finished int64
			summary           string
		)
		if err := rows.Scan(&run.ID, &run.Name, &started, &finished, &run.Status, &summary, &run.Error); err != nil {
			return nil, err
		}
		run.StartedAt, run.FinishedAt = fromMillis(started), fromMillis(finished)
		run.Summary = []byte(summary)
		out = append(out, run)
	}

	return out, rows.Err()
}
