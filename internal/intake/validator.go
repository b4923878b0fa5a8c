// Package intake validates applicant submissions and runs them through
// upload, persistence and cleanup.
package intake

import (
	"fmt"
	"mime"
	"strings"

	"github.com/thepathwise/intake/internal/apperr"
	"github.com/thepathwise/intake/internal/schema"
)

const pdfContentType = "application/pdf"

// Attachment describes the received résumé part. A nil *Attachment means no
// file was received.
type Attachment struct {
	// Path of the locally staged copy.
	Path        string
	Filename    string
	ContentType string
	Size        int64
}

// Validate checks fields and file in order: required presence, enum
// membership, attachment presence, attachment type. The first failing rule
// ends validation; presence reports every missing field at once.
func Validate(fields map[string]string, file *Attachment) error {
	var missing []apperr.Violation
	for _, f := range schema.RequiredFields {
		if strings.TrimSpace(fields[f]) == "" {
			missing = append(missing, apperr.Violation{
				Field:   f,
				Rule:    apperr.RuleRequired,
				Message: f + " is required",
			})
		}
	}
	if len(missing) > 0 {
		return &apperr.ValidationError{Violations: missing}
	}

	var invalid []apperr.Violation
	for _, e := range schema.Enums {
		v := fields[e.Field]
		if !e.Allows(v) {
			invalid = append(invalid, apperr.Violation{
				Field:   e.Field,
				Rule:    apperr.RuleEnum,
				Message: fmt.Sprintf("invalid %s %q; allowed: %s", e.Field, v, strings.Join(e.Values, ", ")),
			})
		}
	}
	if len(invalid) > 0 {
		return &apperr.ValidationError{Violations: invalid}
	}

	if file == nil {
		return &apperr.ValidationError{Violations: []apperr.Violation{{
			Field:   "resume",
			Rule:    apperr.RuleAttachment,
			Message: "Resume file is required.",
		}}}
	}

	if mediaType(file.ContentType) != pdfContentType {
		return &apperr.ValidationError{Violations: []apperr.Violation{{
			Field:   "resume",
			Rule:    apperr.RuleAttachmentType,
			Message: "Only PDF files are allowed.",
		}}}
	}
	return nil
}

// mediaType drops parameters such as "; charset=binary".
func mediaType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}
