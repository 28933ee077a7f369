package subscription

import "errors"

var (
	ErrNotFound               = errors.New("subscription not found")
	ErrAlreadySubscribed      = errors.New("user already has an active or paused subscription")
	ErrInvalidTransition      = errors.New("invalid subscription transition for current status")
	ErrConcurrentModification = errors.New("subscription was modified concurrently, reload and retry")
	ErrPaymentFailed          = errors.New("payment charge failed")

	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load subscription plans")

	ErrSweepAborted = errors.New("reconciliation sweep aborted")
)
