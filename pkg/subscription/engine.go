package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subkit/pkg/audit"
	"github.com/dmitrymomot/subkit/pkg/credits"
	"github.com/dmitrymomot/subkit/pkg/logger"
	"github.com/dmitrymomot/subkit/pkg/notification"
	"github.com/dmitrymomot/subkit/pkg/payment"
)

// Engine is the subscription lifecycle state machine. It validates and
// executes transitions, computes billing dates, adjusts credit allowances,
// and emits audit events and user notifications.
//
// Every transition commits as a single conditional write against the Store
// using the subscription version as the optimistic concurrency token, so the
// engine is correct when user calls and the renewal sweep race each other.
type Engine struct {
	plans           map[string]Plan
	store           Store
	gateway         payment.Gateway
	ledger          *credits.Ledger
	recorder        audit.Recorder
	notifier        notification.Dispatcher
	clock           Clock
	log             *slog.Logger
	chargeTimeout   time.Duration
	conflictRetries int
}

// Metadata keys reserved by the engine (see the "sub." namespace in types.go).
const (
	// MetaPaymentInstrument stores the opaque payment instrument reference
	// so sweeper-driven renewals can charge without user interaction.
	MetaPaymentInstrument = "sub.payment_instrument"
)

// NewEngine creates a lifecycle engine. Plans are loaded once from src and
// validated; panics on nil required dependencies to fail fast during
// initialization.
func NewEngine(ctx context.Context, src PlanSource, store Store, gateway payment.Gateway, ledger *credits.Ledger, opts ...EngineOption) (*Engine, error) {
	if src == nil {
		panic("subscription: PlanSource is required")
	}
	if store == nil {
		panic("subscription: Store is required")
	}
	if gateway == nil {
		panic("subscription: payment gateway is required")
	}
	if ledger == nil {
		panic("subscription: credit ledger is required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	e := &Engine{
		plans:           plans,
		store:           store,
		gateway:         gateway,
		ledger:          ledger,
		recorder:        audit.NopRecorder(),
		notifier:        notification.NopDispatcher(),
		clock:           defaultClock,
		log:             slog.Default(),
		chargeTimeout:   payment.DefaultChargeTimeout,
		conflictRetries: 3,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Plan returns the plan descriptor for planID.
func (e *Engine) Plan(planID string) (Plan, error) {
	plan, ok := e.plans[planID]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return plan, nil
}

// Get retrieves a subscription by ID.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return e.store.Get(ctx, id)
}

// GetByUser returns the user's current (active or paused) subscription.
func (e *Engine) GetByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return e.store.FindByUser(ctx, userID)
}

// Create signs a user up for a plan. The subscription is persisted in
// not_active status, the first cycle is charged, and on authorization the
// subscription activates with a full billing cycle and the plan's credit
// allowance granted. A failed charge leaves the subscription not_active and
// returns ErrPaymentFailed for the caller to retry.
func (e *Engine) Create(ctx context.Context, userID uuid.UUID, planID string, instrumentRef string) (*Subscription, error) {
	plan, err := e.Plan(planID)
	if err != nil {
		return nil, err
	}

	// Invariant: at most one active or paused subscription per user. The
	// store re-checks on Create under the same conditional-write discipline;
	// this lookup just fails earlier with a cleaner error.
	if _, err := e.store.FindByUser(ctx, userID); err == nil {
		return nil, ErrAlreadySubscribed
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := e.clock()
	sub := &Subscription{
		ID:           uuid.New(),
		UserID:       userID,
		PlanID:       plan.ID,
		BillingCycle: plan.Interval,
		Status:       StatusNotActive,
		AutoRenew:    true,
		DateCreated:  now,
	}
	sub.SetMeta(MetaPaymentInstrument, instrumentRef)

	if err := e.store.Create(ctx, sub); err != nil {
		return nil, err
	}
	e.audit(ctx, "subscription.created", sub, audit.WithDetail("plan_id", plan.ID))

	if err := e.charge(ctx, sub, plan, "subscription signup"); err != nil {
		e.audit(ctx, "subscription.payment_failed", sub, audit.WithError(err))
		return nil, errors.Join(ErrPaymentFailed, err)
	}

	return e.apply(ctx, sub, EventActivate, func(s *Subscription) error {
		s.NextBillingDate = s.BillingCycle.Next(e.clock())
		return nil
	}, func(ctx context.Context, s *Subscription) {
		e.grantAllowance(ctx, s, plan, "plan allowance on activation")
		e.notify(ctx, s, notification.TypeSubscriptionActivated)
	})
}

// Upgrade switches an active subscription to a different plan or billing
// cycle, effective immediately. The next billing date restarts a full cycle
// from now (no proration, no remainder carry-over) and the credit allowance
// is adjusted by the delta between the plans.
func (e *Engine) Upgrade(ctx context.Context, id uuid.UUID, newPlanID string, newCycle BillingCycle) (*Subscription, error) {
	newPlan, err := e.Plan(newPlanID)
	if err != nil {
		return nil, err
	}
	if !newCycle.Valid() {
		return nil, fmt.Errorf("%w: invalid billing cycle %q", ErrInvalidTransition, newCycle)
	}

	sub, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.PlanID == newPlanID && sub.BillingCycle == newCycle {
		return nil, fmt.Errorf("%w: subscription already on plan %s (%s)", ErrInvalidTransition, newPlanID, newCycle)
	}
	if !canFire(sub.Status, EventUpgrade) {
		return nil, fmt.Errorf("%w: cannot upgrade a %s subscription", ErrInvalidTransition, sub.Status)
	}

	oldPlan, err := e.Plan(sub.PlanID)
	if err != nil {
		return nil, err
	}

	if err := e.charge(ctx, sub, newPlan, "plan change"); err != nil {
		e.audit(ctx, "subscription.payment_failed", sub, audit.WithError(err))
		return nil, errors.Join(ErrPaymentFailed, err)
	}

	oldPlanID := sub.PlanID
	return e.apply(ctx, sub, EventUpgrade, func(s *Subscription) error {
		s.PlanID = newPlan.ID
		s.BillingCycle = newCycle
		s.NextBillingDate = newCycle.Next(e.clock())
		return nil
	}, func(ctx context.Context, s *Subscription) {
		e.adjustAllowance(ctx, s, oldPlan, newPlan)
		e.audit(ctx, "subscription.upgraded", s,
			audit.WithDetail("from_plan", oldPlanID),
			audit.WithDetail("to_plan", newPlan.ID))
		e.notify(ctx, s, notification.TypeSubscriptionUpgraded)
	})
}

// Pause suspends billing for an active subscription. The next billing date
// is retained but not enforced by the sweep while paused; auto-renew is
// forced off and the prior value remembered for resume.
func (e *Engine) Pause(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	sub, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return e.apply(ctx, sub, EventPause, func(s *Subscription) error {
		s.SetMeta(MetaPrevAutoRenew, fmt.Sprintf("%t", s.AutoRenew))
		s.AutoRenew = false
		return nil
	}, func(ctx context.Context, s *Subscription) {
		e.audit(ctx, "subscription.paused", s)
		e.notify(ctx, s, notification.TypeSubscriptionPaused)
	})
}

// Resume reactivates a paused subscription. A full billing cycle restarts
// from now and the auto-renew flag recorded at pause time is restored.
func (e *Engine) Resume(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	sub, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return e.apply(ctx, sub, EventResume, func(s *Subscription) error {
		s.NextBillingDate = s.BillingCycle.Next(e.clock())
		s.AutoRenew = s.Meta(MetaPrevAutoRenew) != "false"
		s.ClearMeta(MetaPrevAutoRenew)
		return nil
	}, func(ctx context.Context, s *Subscription) {
		e.audit(ctx, "subscription.resumed", s)
		e.notify(ctx, s, notification.TypeSubscriptionResumed)
	})
}

// Cancel terminates an active or paused subscription immediately. Credits
// already granted are frozen, not reclaimed. No gateway call is made.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	sub, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return e.apply(ctx, sub, EventCancel, func(s *Subscription) error {
		now := e.clock()
		s.DateStopped = &now
		s.AutoRenew = false
		return nil
	}, func(ctx context.Context, s *Subscription) {
		e.audit(ctx, "subscription.cancelled", s)
		e.notify(ctx, s, notification.TypeSubscriptionCancelled)
	})
}

// Renew charges the next billing cycle for an active subscription. On a
// successful charge the next billing date advances one full cycle from the
// previous due date and the plan allowance is replenished. On a declined or
// timed-out charge the subscription expires immediately; layering retry or
// grace-period policies on top is the caller's concern.
func (e *Engine) Renew(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	sub, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.renew(ctx, sub)
}

func (e *Engine) renew(ctx context.Context, sub *Subscription) (*Subscription, error) {
	if !canFire(sub.Status, EventRenew) {
		return nil, fmt.Errorf("%w: cannot renew a %s subscription", ErrInvalidTransition, sub.Status)
	}

	plan, err := e.Plan(sub.PlanID)
	if err != nil {
		return nil, err
	}

	if chargeErr := e.charge(ctx, sub, plan, "subscription renewal"); chargeErr != nil {
		// A declined renewal charge expires the subscription immediately.
		// Any retry policy lives in the payment gateway decorators.
		expired, err := e.expire(ctx, sub, "renewal payment failed")
		if err != nil {
			return nil, err
		}
		e.notify(ctx, expired, notification.TypeRenewalFailed)
		return nil, errors.Join(ErrPaymentFailed, chargeErr)
	}

	return e.apply(ctx, sub, EventRenew, func(s *Subscription) error {
		s.NextBillingDate = s.BillingCycle.Next(s.NextBillingDate)
		return nil
	}, func(ctx context.Context, s *Subscription) {
		e.grantAllowance(ctx, s, plan, "plan allowance on renewal")
		e.audit(ctx, "subscription.renewed", s,
			audit.WithDetail("next_billing_date", s.NextBillingDate))
		e.notify(ctx, s, notification.TypeRenewalSucceeded)
	})
}

// expire transitions an active subscription to expired, setting DateExpired.
// Used for failed renewals and for due subscriptions with auto-renew off.
// Notification is left to the caller, which knows whether this is a payment
// failure or a natural lapse.
func (e *Engine) expire(ctx context.Context, sub *Subscription, reason string) (*Subscription, error) {
	return e.apply(ctx, sub, EventExpire, func(s *Subscription) error {
		now := e.clock()
		s.DateExpired = &now
		return nil
	}, func(ctx context.Context, s *Subscription) {
		e.audit(ctx, "subscription.expired", s, audit.WithDetail("reason", reason))
	})
}

// apply executes a transition: it validates legality, runs mutate on a copy,
// flips the status, and commits through a single conditional save keyed on
// the version the subscription was loaded with. The after hook runs only on
// a committed write and carries the non-transactional side effects (ledger,
// audit, notification).
func (e *Engine) apply(ctx context.Context, sub *Subscription, event Event, mutate func(*Subscription) error, after func(context.Context, *Subscription)) (*Subscription, error) {
	to, err := nextStatus(sub.Status, event)
	if err != nil {
		return nil, err
	}

	next := sub.clone()
	if mutate != nil {
		if err := mutate(next); err != nil {
			return nil, err
		}
	}
	next.Status = to

	if err := e.store.ConditionalSave(ctx, next, sub.Version); err != nil {
		return nil, err
	}

	if after != nil {
		after(ctx, next)
	}
	return next, nil
}

// charge runs a single bounded charge attempt against the gateway. Free
// plans (zero price) skip the gateway entirely.
func (e *Engine) charge(ctx context.Context, sub *Subscription, plan Plan, description string) error {
	if plan.Price.IsZero() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.chargeTimeout)
	defer cancel()

	_, err := e.gateway.Charge(ctx, payment.ChargeRequest{
		InstrumentRef:  sub.Meta(MetaPaymentInstrument),
		Amount:         plan.Price,
		PriceRef:       plan.ID,
		Description:    description,
		IdempotencyKey: fmt.Sprintf("%s:%d:%s", sub.ID, sub.Version, description),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.Join(payment.ErrGatewayTimeout, err)
		}
		return err
	}
	return nil
}

// grantAllowance credits the plan allowance, logging instead of failing the
// already-committed transition when the ledger write goes wrong.
func (e *Engine) grantAllowance(ctx context.Context, sub *Subscription, plan Plan, reason string) {
	if plan.CreditAllowance == 0 {
		return
	}
	if _, err := e.ledger.Grant(ctx, sub.UserID, plan.CreditAllowance, reason); err != nil {
		e.log.ErrorContext(ctx, "credit allowance grant failed",
			logger.SubscriptionID(sub.ID),
			logger.UserID(sub.UserID),
			logger.Error(err))
		e.audit(ctx, "credit_adjustment_failed", sub, audit.WithError(err))
	}
}

// adjustAllowance applies the allowance delta between two plans. Downgrades
// debit at most the user's remaining balance; credits already spent are not
// clawed back.
func (e *Engine) adjustAllowance(ctx context.Context, sub *Subscription, oldPlan, newPlan Plan) {
	delta := newPlan.CreditAllowance - oldPlan.CreditAllowance
	reason := fmt.Sprintf("plan change %s -> %s", oldPlan.ID, newPlan.ID)

	var err error
	switch {
	case delta > 0:
		_, err = e.ledger.Grant(ctx, sub.UserID, delta, reason)
	case delta < 0:
		_, err = e.ledger.DebitUpTo(ctx, sub.UserID, -delta, reason)
	default:
		return
	}
	if err != nil {
		e.log.ErrorContext(ctx, "credit allowance adjustment failed",
			logger.SubscriptionID(sub.ID),
			logger.UserID(sub.UserID),
			logger.Error(err))
		e.audit(ctx, "credit_adjustment_failed", sub, audit.WithError(err))
	}
}

func (e *Engine) audit(ctx context.Context, eventType string, sub *Subscription, opts ...audit.EventOption) {
	opts = append([]audit.EventOption{
		audit.WithSubscription(sub.ID),
		audit.WithUser(sub.UserID),
	}, opts...)
	if err := e.recorder.Record(ctx, eventType, opts...); err != nil {
		e.log.WarnContext(ctx, "audit record failed",
			logger.EventType(eventType),
			logger.SubscriptionID(sub.ID),
			logger.Error(err))
	}
}

func (e *Engine) notify(ctx context.Context, sub *Subscription, event notification.Type) {
	payload := map[string]any{
		"subscription_id": sub.ID.String(),
		"plan_id":         sub.PlanID,
		"status":          string(sub.Status),
	}
	if err := e.notifier.Notify(ctx, sub.UserID, event, payload); err != nil {
		e.log.WarnContext(ctx, "notification dispatch failed",
			logger.Event(string(event)),
			logger.UserID(sub.UserID),
			logger.Error(err))
	}
}
