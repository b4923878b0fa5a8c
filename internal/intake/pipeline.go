package intake

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/thepathwise/intake/internal/apperr"
	"github.com/thepathwise/intake/internal/events"
	"github.com/thepathwise/intake/internal/schema"
	"github.com/thepathwise/intake/internal/storage"
	"github.com/thepathwise/intake/pkg/models"
	"github.com/thepathwise/intake/pkg/repository"
)

const publishTimeout = 5 * time.Second

// Uploader stores attachments and can remove them again.
type Uploader interface {
	Upload(ctx context.Context, path, basename string) (storage.Object, error)
	Delete(ctx context.Context, key string) error
}

type Pipeline struct {
	uploader  Uploader
	store     repository.SubmissionRepo
	publisher events.Publisher
	logger    *slog.Logger
	remove    func(string) error
}

// NewPipeline wires the pipeline. A nil publisher disables events and a nil
// logger falls back to slog.Default().
func NewPipeline(uploader Uploader, store repository.SubmissionRepo, publisher events.Publisher, logger *slog.Logger) *Pipeline {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{uploader: uploader, store: store, publisher: publisher, logger: logger, remove: os.Remove}
}

// Submit validates, uploads, persists and cleans up one submission.
//
// A validation failure returns before anything else happens and leaves the
// staged file to the caller. Once validation passes the staged file is
// removed exactly once whatever the outcome, and any upload or store failure
// is returned as an *apperr.UpstreamError. When the store write fails after
// a successful upload the object is deleted again on a best-effort basis.
func (p *Pipeline) Submit(ctx context.Context, fields map[string]string, file *Attachment) (*models.Submission, error) {
	if err := Validate(fields, file); err != nil {
		return nil, err
	}
	defer p.cleanup(file.Path)

	obj, err := p.uploader.Upload(ctx, file.Path, file.Filename)
	if err != nil {
		return nil, &apperr.UpstreamError{Op: "upload resume", Err: err}
	}

	rec := BuildRecord(fields, obj.URL)
	if err := p.store.CreateSubmission(ctx, &rec); err != nil {
		if derr := p.uploader.Delete(context.WithoutCancel(ctx), obj.Key); derr != nil {
			p.logger.Error("orphaned resume object", "key", obj.Key, "err", derr)
		} else {
			p.logger.Warn("resume object removed after failed save", "key", obj.Key)
		}
		return nil, &apperr.UpstreamError{Op: "save submission", Err: err}
	}

	p.publish(ctx, rec)
	p.logger.Info("submission saved", "id", rec.ID, "key", obj.Key)
	return &rec, nil
}

// BuildRecord maps raw form fields onto a record. Optional fields are copied
// only when present.
func BuildRecord(fields map[string]string, resumeURL string) models.Submission {
	s := models.Submission{
		FullName:              fields[schema.FieldFullName],
		Email:                 fields[schema.FieldEmail],
		Phone:                 fields[schema.FieldPhone],
		School:                fields[schema.FieldSchool],
		CurrentYear:           fields[schema.FieldCurrentYear],
		IndustryPreference:    fields[schema.FieldIndustryPreference],
		LinkedIn:              fields[schema.FieldLinkedIn],
		ResumeURL:             resumeURL,
		WaitlistConsideration: fields[schema.FieldWaitlistConsideration],
	}
	if v, ok := fields[schema.FieldLeetcode]; ok {
		s.Leetcode = v
	}
	if v, ok := fields[schema.FieldGithub]; ok {
		s.Github = v
	}
	if v, ok := fields[schema.FieldMessage]; ok {
		s.Message = v
	}
	return s
}

func (p *Pipeline) publish(ctx context.Context, rec models.Submission) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	ev := events.SubmissionCreated{ID: rec.ID, Email: rec.Email, CreatedAt: rec.CreatedAt}
	if err := p.publisher.PublishSubmissionCreated(ctx, ev); err != nil {
		p.logger.Warn("publish submission event", "id", rec.ID, "err", err)
	}
}

func (p *Pipeline) cleanup(path string) {
	if err := p.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.logger.Warn("remove staged upload", "path", path, "err", err)
	}
}
