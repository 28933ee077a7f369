package subscription

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded in-memory Store for tests and development.
// It implements the same optimistic concurrency contract as the PostgreSQL
// adapter, including the one-current-subscription-per-user check on Create.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs: make(map[uuid.UUID]*Subscription),
	}
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sub.clone(), nil
}

func (s *MemoryStore) FindByUser(_ context.Context, userID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if sub.UserID == userID && sub.IsCurrent() {
			return sub.clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindDue(_ context.Context, now time.Time, afterID uuid.UUID, limit int) ([]*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*Subscription
	for _, sub := range s.subs {
		if sub.IsDueAt(now) && bytes.Compare(sub.ID[:], afterID[:]) > 0 {
			due = append(due, sub.clone())
		}
	}
	// Keyset order so the caller's cursor resumes after the last ID.
	sort.Slice(due, func(i, j int) bool {
		return bytes.Compare(due[i].ID[:], due[j].ID[:]) < 0
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryStore) Create(_ context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Same re-check the partial unique index performs in PostgreSQL.
	if sub.IsCurrent() {
		for _, existing := range s.subs {
			if existing.UserID == sub.UserID && existing.IsCurrent() {
				return ErrAlreadySubscribed
			}
		}
	}

	sub.Version = 1
	s.subs[sub.ID] = sub.clone()
	return nil
}

func (s *MemoryStore) ConditionalSave(_ context.Context, sub *Subscription, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.subs[sub.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != expectedVersion {
		return ErrConcurrentModification
	}
	if sub.IsCurrent() && !existing.IsCurrent() {
		// Re-entering the current slot must respect the per-user invariant.
		for _, other := range s.subs {
			if other.UserID == sub.UserID && other.ID != sub.ID && other.IsCurrent() {
				return ErrAlreadySubscribed
			}
		}
	}

	sub.Version = expectedVersion + 1
	s.subs[sub.ID] = sub.clone()
	return nil
}
