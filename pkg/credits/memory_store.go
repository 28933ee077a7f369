package credits

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps balances in memory behind a mutex. Intended for tests
// and development.
type MemoryStore struct {
	mu       sync.RWMutex
	balances map[uuid.UUID]*Balance
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[uuid.UUID]*Balance),
	}
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.balances[userID]
	if !ok {
		// A user without ledger activity has a zero balance.
		return &Balance{UserID: userID}, nil
	}
	dup := *b
	return &dup, nil
}

func (s *MemoryStore) Apply(_ context.Context, userID uuid.UUID, delta int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[userID]
	if !ok {
		b = &Balance{UserID: userID}
		s.balances[userID] = b
	}

	next := b.Balance + delta
	if next < 0 {
		return 0, ErrInsufficientCredits
	}

	b.Balance = next
	b.LastAdjusted = at
	return next, nil
}
