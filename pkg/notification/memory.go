package notification

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Sent is a captured notification, kept by MemoryDispatcher for assertions.
type Sent struct {
	UserID  uuid.UUID
	Event   Type
	Payload map[string]any
}

// MemoryDispatcher captures notifications in memory for tests.
type MemoryDispatcher struct {
	mu   sync.RWMutex
	sent []Sent
}

func NewMemoryDispatcher() *MemoryDispatcher {
	return &MemoryDispatcher{}
}

func (d *MemoryDispatcher) Notify(_ context.Context, userID uuid.UUID, event Type, payload map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, Sent{UserID: userID, Event: event, Payload: payload})
	return nil
}

// Sent returns a snapshot of captured notifications in dispatch order.
func (d *MemoryDispatcher) Sent() []Sent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Sent, len(d.sent))
	copy(out, d.sent)
	return out
}
