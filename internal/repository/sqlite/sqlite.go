// Package sqlite is the modernc.org/sqlite backed submission store.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	dbfs "github.com/thepathwise/intake/db"
	"github.com/thepathwise/intake/internal/db"
	"github.com/thepathwise/intake/pkg/repository"
)

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.SubmissionRepo = (*SQLiteRepo)(nil)
var _ repository.DocumentRepo = (*SQLiteRepo)(nil)
var _ repository.JobRunRepo = (*SQLiteRepo)(nil)
var _ repository.Store = (*SQLiteRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRepo{conn: conn, logger: logger}
}

// Open opens dsn, applies the embedded migrations and returns a ready store
// that owns the connection.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*SQLiteRepo, error) {
	d, err := db.New(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return New(d, logger), nil
}

// Conn returns the underlying DB wrapper.
func (r *SQLiteRepo) Conn() *db.DB { return r.conn }

func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.conn.GetConn().PingContext(ctx)
}

func (r *SQLiteRepo) Close() error {
	return r.conn.Close()
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
