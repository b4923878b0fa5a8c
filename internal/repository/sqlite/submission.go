package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/thepathwise/intake/internal/schema"
	"github.com/thepathwise/intake/pkg/models"
)

// ErrNotFound is returned by PatchDocument for an unknown id.
var ErrNotFound = errors.New("submission not found")

func (r *SQLiteRepo) CreateSubmission(ctx context.Context, s *models.Submission) error {
	if s == nil {
		return fmt.Errorf("submission is nil")
	}
	fields := schema.Fields(*s)
	if err := schema.CheckRecord(ctx, fields); err != nil {
		return err
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	id := uuid.NewString()
	ts := now()
	if _, err := r.conn.Exec(ctx, `INSERT INTO submissions (id, doc, created_at, updated_at) VALUES (?, ?, ?, ?)`, id, string(b), ts, ts); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	s.ID = id
	s.CreatedAt, s.UpdatedAt = fromMillis(ts), fromMillis(ts)
	return nil
}

// InsertDocument stores fields verbatim, without the record schema check.
// It exists for imports of legacy data and for tests.
func (r *SQLiteRepo) InsertDocument(ctx context.Context, d models.Document) (string, error) {
	b, err := json.Marshal(d.Fields)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	created := now()
	if !d.CreatedAt.IsZero() {
		created = d.CreatedAt.UTC().UnixMilli()
	}
	updated := created
	if !d.UpdatedAt.IsZero() {
		updated = d.UpdatedAt.UTC().UnixMilli()
	}
	if _, err := r.conn.Exec(ctx, `INSERT INTO submissions (id, doc, created_at, updated_at) VALUES (?, ?, ?, ?)`, d.ID, string(b), created, updated); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return d.ID, nil
}

func (r *SQLiteRepo) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := r.conn.Query(ctx, `SELECT id, doc, created_at, updated_at FROM submissions ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var (
			d                models.Document
			raw              string
			created, updated int64
		)
		if err := rows.Scan(&d.ID, &raw, &created, &updated); err != nil {
			return nil, err
		}
		d.CreatedAt, d.UpdatedAt = fromMillis(created), fromMillis(updated)
		if err := json.Unmarshal([]byte(raw), &d.Fields); err != nil {
			// surfaced to callers as a document without fields
			r.logger.Warn("undecodable submission document", "id", d.ID, "err", err)
			d.Fields = nil
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) PatchDocument(ctx context.Context, id string, p models.Patch) error {
	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return err
	}

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT doc FROM submissions WHERE id = ?`, id).Scan(&raw); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("decode submission %s: %w", id, err)
	}
	b, err := json.Marshal(p.Apply(fields))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("encode submission %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE submissions SET doc = ?, updated_at = ? WHERE id = ?`, string(b), now(), id); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
