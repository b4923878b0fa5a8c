package intake_test

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/thepathwise/intake/internal/apperr"
	"github.com/thepathwise/intake/internal/intake"
)

func validFields() map[string]string {
	return map[string]string{
		"fullName":              "Ada Lovelace",
		"email":                 "ada@example.com",
		"phone":                 "+1 555 0100",
		"school":                "X",
		"currentYear":           "Senior",
		"industryPreference":    "Software Engineering",
		"linkedin":              "https://linkedin.com/in/ada",
		"waitlistConsideration": "No",
	}
}

func pdf() *intake.Attachment {
	return &intake.Attachment{Path: "/tmp/x", Filename: "resume.pdf", ContentType: "application/pdf", Size: 10}
}

func violations(t *testing.T, err error) *apperr.ValidationError {
	t.Helper()
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *apperr.ValidationError, got %v", err)
	}
	return verr
}

func TestValidate_OK(t *testing.T) {
	if err := intake.Validate(validFields(), pdf()); err != nil {
		t.Fatalf("expected valid submission, got %v", err)
	}
}

func TestValidate_ReportsEveryMissingField(t *testing.T) {
	fields := validFields()
	delete(fields, "phone")
	fields["school"] = "   "
	fields["linkedin"] = ""

	verr := violations(t, intake.Validate(fields, nil))
	want := []string{"phone", "school", "linkedin"}
	if !slices.Equal(verr.Fields(), want) {
		t.Fatalf("missing fields: got %v want %v", verr.Fields(), want)
	}
	for _, v := range verr.Violations {
		if v.Rule != apperr.RuleRequired {
			t.Fatalf("expected only required violations, got %+v", v)
		}
	}
}

func TestValidate_EnumViolationNamesValueAndSet(t *testing.T) {
	fields := validFields()
	fields["currentYear"] = "Graduate"
	fields["waitlistConsideration"] = "yes"

	verr := violations(t, intake.Validate(fields, pdf()))
	if !slices.Equal(verr.Fields(), []string{"waitlistConsideration", "currentYear"}) {
		t.Fatalf("unexpected fields %v", verr.Fields())
	}
	msg := verr.Violations[1].Message
	if !strings.Contains(msg, `"Graduate"`) || !strings.Contains(msg, "Freshman, Sophomore, Junior, Senior") {
		t.Fatalf("expected value and allowed set in message, got %q", msg)
	}
}

func TestValidate_Attachment(t *testing.T) {
	verr := violations(t, intake.Validate(validFields(), nil))
	if verr.Violations[0].Rule != apperr.RuleAttachment {
		t.Fatalf("expected attachment rule, got %+v", verr.Violations)
	}

	for _, ct := range []string{"application/octet-stream", "image/png", "", "application/pdfx"} {
		a := pdf()
		a.ContentType = ct
		verr := violations(t, intake.Validate(validFields(), a))
		if verr.Violations[0].Rule != apperr.RuleAttachmentType {
			t.Fatalf("content type %q: expected attachment_type, got %+v", ct, verr.Violations)
		}
	}

	a := pdf()
	a.ContentType = "application/pdf; charset=binary"
	if err := intake.Validate(validFields(), a); err != nil {
		t.Fatalf("expected parameters to be ignored, got %v", err)
	}
}

func TestValidate_OptionalFieldsNeverRequired(t *testing.T) {
	fields := validFields()
	fields["github"] = ""
	if err := intake.Validate(fields, pdf()); err != nil {
		t.Fatalf("optional fields must not fail validation: %v", err)
	}
}
