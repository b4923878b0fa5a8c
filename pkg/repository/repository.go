package repository

import (
	"context"

	"github.com/thepathwise/intake/pkg/models"
)

// Repository interfaces for the submission store. These are the public
// contracts consumers should depend on; concrete implementations live under
// internal/.

// SubmissionRepo creates records in the current shape. CreateSubmission
// assigns ID, CreatedAt and UpdatedAt on s and rejects records that do not
// satisfy the current record schema.
type SubmissionRepo interface {
	CreateSubmission(ctx context.Context, s *models.Submission) error
}

// DocumentRepo exposes stored records in whatever shape they were written.
// ListDocuments returns newest first by CreatedAt. PatchDocument applies p
// and bumps UpdatedAt.
type DocumentRepo interface {
	ListDocuments(ctx context.Context) ([]models.Document, error)
	PatchDocument(ctx context.Context, id string, p models.Patch) error
}

// JobRunRepo keeps the history of batch job executions.
type JobRunRepo interface {
	RecordRun(ctx context.Context, r *models.JobRun) (int64, error)
	ListRuns(ctx context.Context, name string, limit int) ([]models.JobRun, error)
}

// Store is a complete backend.
type Store interface {
	SubmissionRepo
	DocumentRepo
	JobRunRepo
	Close() error
}
