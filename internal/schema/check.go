package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/qri-io/jsonschema"

	"github.com/thepathwise/intake/internal/apperr"
)

// RecordSchema returns the JSON Schema document for a freshly created record,
// derived from RequiredFields, OptionalFields and Enums.
func RecordSchema() []byte {
	props := map[string]any{}
	required := append([]string{}, RequiredFields...)
	required = append(required, FieldResumeURL)
	for _, f := range required {
		props[f] = map[string]any{"type": "string", "minLength": 1}
	}
	for _, f := range OptionalFields {
		props[f] = map[string]any{"type": "string"}
	}
	for _, e := range Enums {
		props[e.Field] = map[string]any{"type": "string", "enum": e.Values}
	}
	doc := map[string]any{
		"$id":                  "https://thepathwise.org/schemas/submission-" + Current.String() + ".json",
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
	b, _ := json.Marshal(doc)
	return b
}

var compiledRecordSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(RecordSchema(), rs); err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	return rs, nil
})

// CheckRecord validates a document about to be created against the current
// schema. Stores call it before every insert.
func CheckRecord(ctx context.Context, fields map[string]any) error {
	rs, err := compiledRecordSchema()
	if err != nil {
		return err
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	keyErrs, err := rs.ValidateBytes(ctx, b)
	if err != nil {
		return fmt.Errorf("validate record: %w", err)
	}
	if len(keyErrs) == 0 {
		return nil
	}
	verr := &apperr.ValidationError{}
	for _, ke := range keyErrs {
		verr.Violations = append(verr.Violations, apperr.Violation{
			Field:   strings.TrimPrefix(ke.PropertyPath, "/"),
			Rule:    apperr.RuleSchema,
			Message: ke.Message,
		})
	}
	return verr
}
