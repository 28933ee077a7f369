package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the persistence contract for subscriptions.
//
// The store is the single source of truth: every transition commits through
// ConditionalSave using the subscription's version as an optimistic
// concurrency token, so the engine is correct under real parallelism without
// locks. Implementations must bump Version by exactly 1 on every successful
// write and reject stale writes with ErrConcurrentModification.
type Store interface {
	// Get retrieves a subscription by ID.
	// Returns ErrNotFound if no subscription exists.
	Get(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// FindByUser returns the user's current (active or paused) subscription.
	// Returns ErrNotFound if the user has no current subscription; terminal
	// subscriptions (cancelled, expired) are not surfaced here.
	FindByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// FindDue returns up to limit active subscriptions whose next billing
	// date has passed at now and whose ID sorts strictly after afterID,
	// ordered by ID ascending. The bounded batch keeps sweep memory flat on
	// large catalogs; callers page with a keyset cursor (uuid.Nil starts
	// from the beginning, the last returned ID continues), so items that
	// stay due after a failed reconciliation cannot pin a page in place.
	FindDue(ctx context.Context, now time.Time, afterID uuid.UUID, limit int) ([]*Subscription, error)

	// Create persists a new subscription with Version set to 1.
	// Returns ErrAlreadySubscribed if the user already holds an active or
	// paused subscription.
	Create(ctx context.Context, sub *Subscription) error

	// ConditionalSave persists sub only if the stored version equals
	// expectedVersion, then bumps sub.Version to expectedVersion+1.
	// Returns ErrConcurrentModification on a version mismatch and
	// ErrNotFound if the subscription does not exist.
	ConditionalSave(ctx context.Context, sub *Subscription, expectedVersion int64) error
}
