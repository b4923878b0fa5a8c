package backend_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/thepathwise/intake/internal/repository/backend"
)

func TestKind(t *testing.T) {
	cases := []struct {
		dsn  string
		want string
	}{
		{"./data/intake.db", backend.KindSQLite},
		{":memory:", backend.KindSQLite},
		{"file:intake.db?cache=shared", backend.KindSQLite},
		{"sqlite:///var/lib/intake.db", backend.KindSQLite},
		{"postgres://u:p@localhost/intake?sslmode=disable", backend.KindPostgres},
		{"postgresql://localhost/intake", backend.KindPostgres},
		{"mongodb://localhost:27017/pathwise", backend.KindMongo},
		{"mongodb+srv://cluster0.example.net/pathwise", backend.KindMongo},
	}
	for _, c := range cases {
		got, err := backend.Kind(c.dsn)
		if err != nil {
			t.Fatalf("Kind(%q): %v", c.dsn, err)
		}
		if got != c.want {
			t.Fatalf("Kind(%q) = %s, want %s", c.dsn, got, c.want)
		}
	}

	for _, bad := range []string{"", "redis://localhost"} {
		if _, err := backend.Kind(bad); !errors.Is(err, backend.ErrUnsupportedScheme) {
			t.Fatalf("Kind(%q): expected ErrUnsupportedScheme, got %v", bad, err)
		}
	}
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := backend.Open(ctx, filepath.Join(t.TempDir(), "intake.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	docs, err := store.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected empty store, got %d", len(docs))
	}
}
