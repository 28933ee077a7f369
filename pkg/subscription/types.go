package subscription

import "time"

// Status represents the current state of a subscription in its lifecycle.
type Status string

const (
	StatusNotActive Status = "not_active" // created but never charged
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusNotActive, StatusActive, StatusPaused, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// BillingCycle represents the recurring time unit governing renewal cadence.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// Duration returns the length of one billing cycle.
// Whole-cycle billing uses fixed 30/365 day periods rather than calendar
// months so that renewal arithmetic is independent of the start date.
func (c BillingCycle) Duration() time.Duration {
	switch c {
	case CycleYearly:
		return 365 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// Next returns the billing date one full cycle after from.
func (c BillingCycle) Next(from time.Time) time.Time {
	return from.Add(c.Duration())
}

// Valid reports whether the cycle is a known billing cadence.
func (c BillingCycle) Valid() bool {
	return c == CycleMonthly || c == CycleYearly
}

// Event identifies a lifecycle transition trigger.
type Event string

const (
	EventActivate Event = "activate"
	EventUpgrade  Event = "upgrade"
	EventPause    Event = "pause"
	EventResume   Event = "resume"
	EventCancel   Event = "cancel"
	EventRenew    Event = "renew"
	EventExpire   Event = "expire"
)

// Clock returns the current time. Injected into the engine and sweeper so
// billing arithmetic is testable without real wall-clock waiting.
type Clock func() time.Time

func defaultClock() time.Time {
	return time.Now().UTC()
}

// Metadata key namespace: keys prefixed "sub." are reserved for the engine.
const (
	// MetaPrevAutoRenew records the auto-renew flag across a pause so that
	// resume can restore it.
	MetaPrevAutoRenew = "sub.prev_auto_renew"
)
