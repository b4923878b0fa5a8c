package models

import (
	"encoding/json"
	"slices"
	"time"
)

// Submission is an applicant entry in the current record shape.
type Submission struct {
	ID                    string    `json:"id"`
	FullName              string    `json:"fullName"`
	Email                 string    `json:"email"`
	Phone                 string    `json:"phone"`
	School                string    `json:"school"`
	CurrentYear           string    `json:"currentYear"`
	IndustryPreference    string    `json:"industryPreference"`
	LinkedIn              string    `json:"linkedin"`
	Leetcode              string    `json:"leetcode,omitempty"`
	Github                string    `json:"github,omitempty"`
	ResumeURL             string    `json:"resumeUrl"`
	WaitlistConsideration string    `json:"waitlistConsideration"`
	Message               string    `json:"message,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// Document is a stored submission in whatever shape it was written with.
// Fields is nil when the stored payload could not be decoded at all.
type Document struct {
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Patch is a set/unset update against a document's fields.
type Patch struct {
	Set   map[string]any `json:"set,omitempty"`
	Unset []string       `json:"unset,omitempty"`
}

func (p Patch) Empty() bool {
	return len(p.Set) == 0 && len(p.Unset) == 0
}

// Apply returns a copy of fields with the patch applied. The input is not modified.
func (p Patch) Apply(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+len(p.Set))
	for k, v := range fields {
		out[k] = v
	}
	for k, v := range p.Set {
		out[k] = v
	}
	for _, k := range p.Unset {
		delete(out, k)
	}
	return out
}

// UnsetSorted returns the unset keys in lexical order.
func (p Patch) UnsetSorted() []string {
	out := slices.Clone(p.Unset)
	slices.Sort(out)
	return out
}

// JobRun statuses.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// JobRun is one finished execution of a batch job.
type JobRun struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Status     string          `json:"status"`
	Summary    json.RawMessage `json:"summary,omitempty"`
	Error      string          `json:"error,omitempty"`
}
