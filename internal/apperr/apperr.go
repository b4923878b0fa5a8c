// Package apperr defines the error taxonomy shared by the intake pipeline and
// the batch jobs. Every typed error matches its sentinel through errors.Is so
// callers can branch on the category without caring about the concrete type.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks client-correctable input problems.
	ErrValidation = errors.New("validation failed")
	// ErrUpstream marks failures of object storage, the record store or the spreadsheet API.
	ErrUpstream = errors.New("upstream failure")
	// ErrPartialRecord marks a single malformed record inside a batch pass.
	ErrPartialRecord = errors.New("malformed record")
	// ErrConfiguration marks missing credentials or unresolvable targets.
	ErrConfiguration = errors.New("configuration error")
)

// Violation is one broken validation rule.
type Violation struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Rule names reported in Violation.Rule.
const (
	RuleRequired       = "required"
	RuleEnum           = "enum"
	RuleAttachment     = "attachment"
	RuleAttachmentType = "attachment_type"
	RuleSchema         = "schema"
	RuleMaxLength      = "max_length"
)

type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return ErrValidation.Error()
	}
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Fields returns the field names named by the violations, in order.
func (e *ValidationError) Fields() []string {
	out := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Field != "" {
			out = append(out, v.Field)
		}
	}
	return out
}

type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// RecordError wraps a failure tied to one stored record.
type RecordError struct {
	ID  string
	Err error
}

func (e *RecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("record: %v", e.Err)
	}
	return fmt.Sprintf("record %s: %v", e.ID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

func (e *RecordError) Is(target error) bool {
	return target == ErrPartialRecord
}

type ConfigError struct {
	Key string
	Msg string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Msg)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}
