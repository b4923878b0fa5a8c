// Package backend selects a submission store implementation from a DSN.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thepathwise/intake/internal/repository/mongo"
	"github.com/thepathwise/intake/internal/repository/postgres"
	"github.com/thepathwise/intake/internal/repository/sqlite"
	"github.com/thepathwise/intake/pkg/repository"
)

var ErrUnsupportedScheme = errors.New("unsupported store scheme")

const (
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindMongo    = "mongo"
)

// Kind reports which backend dsn selects. Plain paths, ":memory:" and file:
// URIs are sqlite.
func Kind(dsn string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", fmt.Errorf("%w: empty dsn", ErrUnsupportedScheme)
	}
	scheme, _, found := strings.Cut(dsn, "://")
	if !found {
		return KindSQLite, nil
	}
	switch strings.ToLower(scheme) {
	case "sqlite", "file":
		return KindSQLite, nil
	case "postgres", "postgresql":
		return KindPostgres, nil
	case "mongodb", "mongodb+srv":
		return KindMongo, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

// Open returns a ready store for dsn. Postgres and Mongo are pinged so a bad
// DSN fails here rather than on the first request.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (repository.Store, error) {
	kind, err := Kind(dsn)
	if err != nil {
		return nil, err
	}
	dsn = strings.TrimSpace(dsn)
	switch kind {
	case KindPostgres:
		repo, err := postgres.New(dsn, logger)
		if err != nil {
			return nil, err
		}
		if err := repo.Ping(ctx); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return repo, nil
	case KindMongo:
		return mongo.Open(ctx, dsn, logger)
	default:
		if strings.HasPrefix(dsn, "file://") {
			dsn = strings.TrimPrefix(dsn, "file://")
		}
		return sqlite.Open(ctx, dsn, logger)
	}
}
