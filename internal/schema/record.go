package schema

import (
	"fmt"

	"github.com/thepathwise/intake/pkg/models"
)

// Fields maps a submission to its stored document form. Optional fields are
// only present when non-empty; id and timestamps belong to the store.
func Fields(s models.Submission) map[string]any {
	out := map[string]any{
		FieldFullName:              s.FullName,
		FieldEmail:                 s.Email,
		FieldPhone:                 s.Phone,
		FieldSchool:                s.School,
		FieldCurrentYear:           s.CurrentYear,
		FieldIndustryPreference:    s.IndustryPreference,
		FieldLinkedIn:              s.LinkedIn,
		FieldResumeURL:             s.ResumeURL,
		FieldWaitlistConsideration: s.WaitlistConsideration,
	}
	if s.Leetcode != "" {
		out[FieldLeetcode] = s.Leetcode
	}
	if s.Github != "" {
		out[FieldGithub] = s.Github
	}
	if s.Message != "" {
		out[FieldMessage] = s.Message
	}
	return out
}

// Decode reads a stored document into the current record shape. Missing
// fields decode as empty strings; a known field holding a non-string value is
// an error.
func Decode(d models.Document) (models.Submission, error) {
	if d.Fields == nil {
		return models.Submission{}, fmt.Errorf("%w: no fields", ErrMalformed)
	}
	s := models.Submission{ID: d.ID, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
	targets := []struct {
		key string
		dst *string
	}{
		{FieldFullName, &s.FullName},
		{FieldEmail, &s.Email},
		{FieldPhone, &s.Phone},
		{FieldSchool, &s.School},
		{FieldCurrentYear, &s.CurrentYear},
		{FieldIndustryPreference, &s.IndustryPreference},
		{FieldLinkedIn, &s.LinkedIn},
		{FieldLeetcode, &s.Leetcode},
		{FieldGithub, &s.Github},
		{FieldResumeURL, &s.ResumeURL},
		{FieldWaitlistConsideration, &s.WaitlistConsideration},
		{FieldMessage, &s.Message},
	}
	for _, t := range targets {
		v, err := stringField(d.Fields, t.key)
		if err != nil {
			return models.Submission{}, err
		}
		*t.dst = v
	}
	return s, nil
}

// StringValue returns doc[key] when it is a string, "" otherwise.
func StringValue(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

func stringField(doc map[string]any, key string) (string, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, want string", ErrMalformed, key, v)
	}
	return s, nil
}
