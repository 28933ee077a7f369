package notification

import (
	"context"

	"github.com/google/uuid"
)

// Type identifies a user-facing billing notification.
type Type string

const (
	TypeSubscriptionActivated Type = "subscription_activated"
	TypeSubscriptionUpgraded  Type = "subscription_upgraded"
	TypeSubscriptionPaused    Type = "subscription_paused"
	TypeSubscriptionResumed   Type = "subscription_resumed"
	TypeSubscriptionCancelled Type = "subscription_cancelled"
	TypeSubscriptionExpired   Type = "subscription_expired"
	TypeRenewalSucceeded      Type = "renewal_succeeded"
	TypeRenewalFailed         Type = "renewal_failed"
)

// Dispatcher informs a user about a billing event. Delivery is best-effort:
// the engine logs dispatch failures but never fails a transition over them.
type Dispatcher interface {
	Notify(ctx context.Context, userID uuid.UUID, event Type, payload map[string]any) error
}

// DispatcherFunc adapts a plain function to a Dispatcher.
type DispatcherFunc func(ctx context.Context, userID uuid.UUID, event Type, payload map[string]any) error

func (f DispatcherFunc) Notify(ctx context.Context, userID uuid.UUID, event Type, payload map[string]any) error {
	return f(ctx, userID, event, payload)
}

// NopDispatcher discards all notifications. Used when no delivery channel is
// configured.
func NopDispatcher() Dispatcher {
	return DispatcherFunc(func(context.Context, uuid.UUID, Type, map[string]any) error {
		return nil
	})
}
