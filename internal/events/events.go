// Package events carries "submission created" notifications from the HTTP
// server to background workers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SubmissionCreated is published after a submission has been persisted.
type SubmissionCreated struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type Publisher interface {
	PublishSubmissionCreated(ctx context.Context, ev SubmissionCreated) error
}

// Handler processes one delivered event.
type Handler func(ctx context.Context, ev SubmissionCreated) error

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishSubmissionCreated(context.Context, SubmissionCreated) error { return nil }

func Encode(ev SubmissionCreated) ([]byte, error) {
	return json.Marshal(ev)
}

func Decode(b []byte) (SubmissionCreated, error) {
	var ev SubmissionCreated
	if err := json.Unmarshal(b, &ev); err != nil {
		return SubmissionCreated{}, fmt.Errorf("decode submission event: %w", err)
	}
	if ev.ID == "" {
		return SubmissionCreated{}, fmt.Errorf("decode submission event: missing id")
	}
	return ev, nil
}
