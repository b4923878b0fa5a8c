package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/thepathwise/intake/internal/apperr"
	"github.com/thepathwise/intake/internal/intake"
	"github.com/thepathwise/intake/pkg/models"
)

// ResumeField is the multipart part carrying the résumé file.
const ResumeField = "resume"

// maxFieldBytes bounds a single text part.
const maxFieldBytes = 64 << 10

const submitFailedMessage = "Failed to submit application. Please try again later."

// Submitter runs one submission through the intake pipeline.
type Submitter interface {
	Submit(ctx context.Context, fields map[string]string, file *intake.Attachment) (*models.Submission, error)
}

type FormsHandler struct {
	pipeline  Submitter
	uploadDir string
	maxBytes  int64
}

func NewFormsHandler(pipeline Submitter, uploadDir string, maxBytes int64) *FormsHandler {
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &FormsHandler{pipeline: pipeline, uploadDir: uploadDir, maxBytes: maxBytes}
}

// Submit handles POST /api/forms/submit. Text parts become fields and the
// resume part is streamed to a staged file in the upload directory.
func (h *FormsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	fields, file, err := h.readForm(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, fmt.Sprintf("Upload exceeds %d bytes.", tooLarge.Limit), http.StatusBadRequest)
			return
		}
		var verr *apperr.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, envelope{Success: false, Message: verr.Error(), Errors: verr.Violations}, http.StatusBadRequest)
			return
		}
		logger.Warn("read multipart form", slog.Any("err", err))
		writeError(w, "Malformed form data.", http.StatusBadRequest)
		return
	}

	rec, err := h.pipeline.Submit(r.Context(), fields, file)
	switch {
	case err == nil:
		writeJSON(w, envelope{Success: true, Data: rec}, http.StatusCreated)
	case errors.Is(err, apperr.ErrUpstream):
		logger.Error("submission failed", slog.Any("err", err))
		writeError(w, submitFailedMessage, http.StatusInternalServerError)
	case errors.Is(err, apperr.ErrValidation):
		// the pipeline only takes ownership of the staged file once
		// validation passes
		h.discard(file)
		var verr *apperr.ValidationError
		resp := envelope{Success: false, Message: err.Error()}
		if errors.As(err, &verr) {
			resp.Errors = verr.Violations
		}
		writeJSON(w, resp, http.StatusBadRequest)
	default:
		h.discard(file)
		logger.Error("submission failed", slog.Any("err", err))
		writeError(w, submitFailedMessage, http.StatusInternalServerError)
	}
}

// readForm returns the text fields and the staged attachment, nil when the
// request carried no resume part. A non-multipart body yields no fields.
func (h *FormsHandler) readForm(r *http.Request) (map[string]string, *intake.Attachment, error) {
	fields := map[string]string{}
	mr, err := r.MultipartReader()
	if errors.Is(err, http.ErrNotMultipart) {
		return fields, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var file *intake.Attachment
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return fields, file, nil
		}
		if err != nil {
			h.discard(file)
			return nil, nil, err
		}

		name := part.FormName()
		switch {
		case name == ResumeField && part.FileName() != "" && file == nil:
			file, err = h.stage(part)
		case name != "" && part.FileName() == "":
			var b []byte
			b, err = io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			if err == nil && len(b) > maxFieldBytes {
				err = fieldTooLong(name)
			}
			if _, ok := fields[name]; !ok && err == nil {
				fields[name] = string(b)
			}
		default:
			// extra resume parts and unnamed parts are dropped
			_, err = io.Copy(io.Discard, part)
		}
		part.Close()
		if err != nil {
			h.discard(file)
			return nil, nil, err
		}
	}
}

func fieldTooLong(name string) error {
	return &apperr.ValidationError{Violations: []apperr.Violation{{
		Field:   name,
		Rule:    apperr.RuleMaxLength,
		Message: fmt.Sprintf("%s must be at most %d bytes.", name, maxFieldBytes),
	}}}
}

func (h *FormsHandler) stage(part *multipart.Part) (*intake.Attachment, error) {
	f, err := os.CreateTemp(h.uploadDir, "resume-*")
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	n, err := io.Copy(f, part)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, err
	}
	return &intake.Attachment{
		Path:        f.Name(),
		Filename:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Size:        n,
	}, nil
}

func (h *FormsHandler) discard(file *intake.Attachment) {
	if file == nil {
		return
	}
	if err := os.Remove(file.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("remove staged upload", slog.String("path", file.Path), slog.Any("err", err))
	}
}
