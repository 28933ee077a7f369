package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Subscription represents a user's paid membership state.
// Each user has at most one subscription in active or paused status.
type Subscription struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	PlanID          string
	BillingCycle    BillingCycle
	Status          Status
	AutoRenew       bool
	DateCreated     time.Time
	NextBillingDate time.Time
	DateExpired     *time.Time // set only when status is expired
	DateStopped     *time.Time // set only when status is cancelled
	DiscountCode    string
	Metadata        map[string]string // keys prefixed "sub." are reserved for the engine
	Version         int64             // optimistic concurrency token, bumped on every save
}

func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

func (s *Subscription) IsPaused() bool {
	return s.Status == StatusPaused
}

func (s *Subscription) IsCancelled() bool {
	return s.Status == StatusCancelled
}

func (s *Subscription) IsExpired() bool {
	return s.Status == StatusExpired
}

// IsCurrent reports whether the subscription occupies the user's single
// active-or-paused slot.
func (s *Subscription) IsCurrent() bool {
	return s.Status == StatusActive || s.Status == StatusPaused
}

// IsDueAt reports whether the subscription should be picked up by a
// reconciliation sweep running at now. Paused subscriptions retain their
// billing date but are never due.
func (s *Subscription) IsDueAt(now time.Time) bool {
	return s.Status == StatusActive && !s.NextBillingDate.After(now)
}

// Meta returns the metadata value for key, or "" if unset.
func (s *Subscription) Meta(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}

// SetMeta sets a metadata key, allocating the map on first use.
func (s *Subscription) SetMeta(key, value string) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]string)
	}
	s.Metadata[key] = value
}

// ClearMeta removes a metadata key if present.
func (s *Subscription) ClearMeta(key string) {
	delete(s.Metadata, key)
}

// clone returns a deep copy so stores and callers never share mutable state.
func (s *Subscription) clone() *Subscription {
	dup := *s
	if s.DateExpired != nil {
		t := *s.DateExpired
		dup.DateExpired = &t
	}
	if s.DateStopped != nil {
		t := *s.DateStopped
		dup.DateStopped = &t
	}
	if s.Metadata != nil {
		dup.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			dup.Metadata[k] = v
		}
	}
	return &dup
}
