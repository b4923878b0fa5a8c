package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thepathwise/intake/pkg/models"
)

func TestNewRejectsEmptyDSN(t *testing.T) {
	if _, err := New("  ", nil); !errors.Is(err, ErrInvalidDSN) {
		t.Fatalf("expected ErrInvalidDSN, got %v", err)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	cases := map[string]string{
		"intake_submissions": `"intake_submissions"`,
		`we"ird`:             `"we""ird"`,
		"  ":                 `""`,
	}
	for in, want := range cases {
		if got := quoteIdentifier(in); got != want {
			t.Fatalf("quoteIdentifier(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestOpenFailureIsSticky(t *testing.T) {
	repo, err := New("postgres://example", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	calls := 0
	repo.openDB = func(driverName, dsn string) (*sql.DB, error) {
		calls++
		return nil, errors.New("boom")
	}
	if _, err := repo.ListDocuments(context.Background()); err == nil {
		t.Fatalf("expected open error")
	}
	if err := repo.PatchDocument(context.Background(), "x", models.Patch{}); err == nil {
		t.Fatalf("expected open error on second call")
	}
	if calls != 1 {
		t.Fatalf("expected a single open attempt, got %d", calls)
	}
}

var integrationCounter uint64

func integrationDSN(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("INTAKE_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("set INTAKE_TEST_POSTGRES_DSN to run Postgres integration tests")
	}
	return dsn
}

func integrationRepo(t *testing.T) *Repo {
	t.Helper()
	dsn := integrationDSN(t)
	repo, err := New(dsn, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n := atomic.AddUint64(&integrationCounter, 1)
	suffix := fmt.Sprintf("_%d_%d", time.Now().UnixNano(), n)
	repo.submissions += suffix
	repo.jobRuns += suffix
	t.Cleanup(func() {
		if repo.db != nil {
			ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
			defer cancel()
			_, _ = repo.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdentifier(repo.submissions))
			_, _ = repo.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdentifier(repo.jobRuns))
		}
		_ = repo.Close()
	})
	return repo
}

func TestPostgresIntegrationSubmissionRoundTrip(t *testing.T) {
	repo := integrationRepo(t)
	ctx := context.Background()

	s := &models.Submission{
		FullName:              "Ada Lovelace",
		Email:                 "ada@example.com",
		Phone:                 "+1",
		School:                "X",
		CurrentYear:           "Senior",
		IndustryPreference:    "Software Engineering",
		LinkedIn:              "li",
		ResumeURL:             "https://b.s3.us-east-1.amazonaws.com/resumes/t-resume.pdf",
		WaitlistConsideration: "No",
	}
	if err := repo.CreateSubmission(ctx, s); err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	if s.ID == "" || s.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps, got %+v", s)
	}

	p := models.Patch{Set: map[string]any{"message": "hi"}, Unset: []string{"linkedin"}}
	if err := repo.PatchDocument(ctx, s.ID, p); err != nil {
		t.Fatalf("PatchDocument: %v", err)
	}
	docs, err := repo.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].Fields["message"] != "hi" {
		t.Fatalf("unexpected docs %+v", docs)
	}
	if _, ok := docs[0].Fields["linkedin"]; ok {
		t.Fatalf("expected linkedin removed")
	}
	if err := repo.PatchDocument(ctx, "missing", p); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	run := &models.JobRun{Name: "sheetsync", StartedAt: time.Now(), FinishedAt: time.Now(), Status: models.RunSucceeded}
	if _, err := repo.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	runs, err := repo.ListRuns(ctx, "sheetsync", 5)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns: %v %+v", err, runs)
	}
}
