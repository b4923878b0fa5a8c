package apperr_test

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/thepathwise/intake/internal/apperr"
)

func TestValidationError(t *testing.T) {
	err := &apperr.ValidationError{Violations: []apperr.Violation{
		{Field: "email", Rule: apperr.RuleRequired, Message: "email is required"},
		{Field: "phone", Rule: apperr.RuleRequired, Message: "phone is required"},
	}}
	if !errors.Is(err, apperr.ErrValidation) || errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("unexpected sentinel matching for %v", err)
	}
	if err.Error() != "email is required; phone is required" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !slices.Equal(err.Fields(), []string{"email", "phone"}) {
		t.Fatalf("unexpected fields %v", err.Fields())
	}
	if (&apperr.ValidationError{}).Error() != apperr.ErrValidation.Error() {
		t.Fatalf("expected sentinel text for empty violations")
	}
}

func TestUpstreamErrorUnwraps(t *testing.T) {
	cause := errors.New("timeout")
	err := fmt.Errorf("submit: %w", &apperr.UpstreamError{Op: "upload resume", Err: cause})
	if !errors.Is(err, apperr.ErrUpstream) || !errors.Is(err, cause) {
		t.Fatalf("expected upstream error to match sentinel and cause: %v", err)
	}
}

func TestRecordAndConfigErrors(t *testing.T) {
	rec := &apperr.RecordError{ID: "abc", Err: errors.New("bad phone")}
	if !errors.Is(rec, apperr.ErrPartialRecord) {
		t.Fatalf("expected record error to match ErrPartialRecord")
	}
	cfg := &apperr.ConfigError{Key: "GOOGLE_SPREADSHEET_ID", Msg: "required"}
	var target *apperr.ConfigError
	if !errors.Is(cfg, apperr.ErrConfiguration) || !errors.As(fmt.Errorf("wrap: %w", cfg), &target) || target.Key != "GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected config error matching")
	}
}
