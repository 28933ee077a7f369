package credits

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Balance is a user's current credit balance. The balance is never negative.
type Balance struct {
	UserID       uuid.UUID
	Balance      int64
	LastAdjusted time.Time
}

// BalanceStore persists per-user credit balances.
//
// Apply is the single mutation primitive: it atomically adds delta (which may
// be negative) to the user's balance and returns the new value, rejecting any
// change that would drive the balance below zero with ErrInsufficientCredits.
// Atomicity at the store level is what keeps the non-negative invariant true
// under concurrent grants and debits.
type BalanceStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*Balance, error)
	Apply(ctx context.Context, userID uuid.UUID, delta int64, at time.Time) (int64, error)
}
