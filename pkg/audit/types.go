package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a single compliance log entry describing a subscription lifecycle
// action or credit mutation.
type Event struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	SubscriptionID uuid.UUID      `json:"subscription_id,omitzero"`
	UserID         uuid.UUID      `json:"user_id,omitzero"`
	Timestamp      time.Time      `json:"timestamp"`
	Details        map[string]any `json:"details,omitempty"`
}

// Validate checks that the event carries the required fields.
func (e *Event) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("%w: type is required", ErrEventValidation)
	}
	return nil
}

// EventOption applies configuration to an Event during recording.
type EventOption func(*Event)

// WithSubscription attaches the subscription the event concerns.
func WithSubscription(id uuid.UUID) EventOption {
	return func(e *Event) {
		e.SubscriptionID = id
	}
}

// WithUser attaches the owning user.
func WithUser(id uuid.UUID) EventOption {
	return func(e *Event) {
		e.UserID = id
	}
}

// WithDetail adds a key/value pair to the event details.
func WithDetail(key string, value any) EventOption {
	return func(e *Event) {
		if e.Details == nil {
			e.Details = make(map[string]any)
		}
		e.Details[key] = value
	}
}

// WithError records the failure that caused the event.
func WithError(err error) EventOption {
	return func(e *Event) {
		if err == nil {
			return
		}
		if e.Details == nil {
			e.Details = make(map[string]any)
		}
		e.Details["error"] = err.Error()
	}
}
