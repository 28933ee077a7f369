package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStorage keeps audit events in memory. Intended for tests and
// development; production deployments should use MongoStorage or another
// durable backend.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of all recorded events in insertion order.
func (s *MemoryStorage) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// EventsBySubscription returns recorded events for one subscription.
func (s *MemoryStorage) EventsBySubscription(id uuid.UUID) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.SubscriptionID == id {
			out = append(out, e)
		}
	}
	return out
}
