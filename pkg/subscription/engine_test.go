package subscription_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subkit/pkg/audit"
	"github.com/dmitrymomot/subkit/pkg/credits"
	"github.com/dmitrymomot/subkit/pkg/notification"
	"github.com/dmitrymomot/subkit/pkg/payment"
	"github.com/dmitrymomot/subkit/pkg/subscription"
)

var testPlans = map[string]subscription.Plan{
	"basic": {
		ID:              "basic",
		Name:            "Basic",
		Price:           payment.Money{Amount: 500, Currency: "USD"},
		CreditAllowance: 50,
		Interval:        subscription.CycleMonthly,
		Public:          true,
	},
	"pro": {
		ID:              "pro",
		Name:            "Pro",
		Price:           payment.Money{Amount: 1500, Currency: "USD"},
		CreditAllowance: 100,
		Interval:        subscription.CycleMonthly,
		Public:          true,
	},
	"pro-yearly": {
		ID:              "pro-yearly",
		Name:            "Pro (yearly)",
		Price:           payment.Money{Amount: 15000, Currency: "USD"},
		CreditAllowance: 100,
		Interval:        subscription.CycleYearly,
		Public:          true,
	},
	"free": {
		ID:       "free",
		Name:     "Free",
		Interval: subscription.CycleMonthly,
		Public:   true,
	},
}

// stubGateway records charges and fails on demand.
type stubGateway struct {
	mu      sync.Mutex
	charges []payment.ChargeRequest
	err     error
}

func (g *stubGateway) Charge(_ context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.charges = append(g.charges, req)
	return &payment.ChargeResult{TransactionID: uuid.NewString()}, nil
}

func (g *stubGateway) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *stubGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charges)
}

type engineFixture struct {
	engine     *subscription.Engine
	store      *subscription.MemoryStore
	balances   *credits.MemoryStore
	ledger     *credits.Ledger
	gateway    *stubGateway
	storage    *audit.MemoryStorage
	dispatcher *notification.MemoryDispatcher
	now        time.Time
}

func (f *engineFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{
		store:      subscription.NewMemoryStore(),
		balances:   credits.NewMemoryStore(),
		gateway:    &stubGateway{},
		storage:    audit.NewMemoryStorage(),
		dispatcher: notification.NewMemoryDispatcher(),
		now:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	recorder := audit.NewRecorder(f.storage)
	f.ledger = credits.NewLedger(f.balances, recorder)

	engine, err := subscription.NewEngine(
		context.Background(),
		subscription.StaticPlans(testPlans),
		f.store,
		f.gateway,
		f.ledger,
		subscription.WithClock(func() time.Time { return f.now }),
		subscription.WithAuditRecorder(recorder),
		subscription.WithNotifier(f.dispatcher),
	)
	require.NoError(t, err)
	f.engine = engine
	return f
}

func (f *engineFixture) mustCreate(t *testing.T, userID uuid.UUID, planID string) *subscription.Subscription {
	t.Helper()
	sub, err := f.engine.Create(context.Background(), userID, planID, "ctm_test")
	require.NoError(t, err)
	return sub
}

func (f *engineFixture) lastNotification(t *testing.T) notification.Sent {
	t.Helper()
	sent := f.dispatcher.Sent()
	require.NotEmpty(t, sent)
	return sent[len(sent)-1]
}

func (f *engineFixture) balance(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func TestEngineCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("activates with a full cycle and grants allowance", func(t *testing.T) {
		f := newEngineFixture(t)
		userID := uuid.New()

		sub := f.mustCreate(t, userID, "pro")

		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.True(t, sub.AutoRenew)
		assert.Equal(t, f.now, sub.DateCreated)
		assert.Equal(t, f.now.Add(30*24*time.Hour), sub.NextBillingDate)
		assert.EqualValues(t, 100, f.balance(t, userID))
		assert.Equal(t, 1, f.gateway.count())
		assert.Equal(t, notification.TypeSubscriptionActivated, f.lastNotification(t).Event)
	})

	t.Run("yearly plan gets a yearly cycle", func(t *testing.T) {
		f := newEngineFixture(t)

		sub := f.mustCreate(t, uuid.New(), "pro-yearly")
		assert.Equal(t, subscription.CycleYearly, sub.BillingCycle)
		assert.Equal(t, f.now.Add(365*24*time.Hour), sub.NextBillingDate)
	})

	t.Run("free plan skips the gateway", func(t *testing.T) {
		f := newEngineFixture(t)

		sub := f.mustCreate(t, uuid.New(), "free")
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Zero(t, f.gateway.count())
	})

	t.Run("unknown plan", func(t *testing.T) {
		f := newEngineFixture(t)
		_, err := f.engine.Create(ctx, uuid.New(), "nope", "ctm_test")
		assert.ErrorIs(t, err, subscription.ErrPlanNotFound)
	})

	t.Run("second subscription for the same user is rejected", func(t *testing.T) {
		f := newEngineFixture(t)
		userID := uuid.New()
		f.mustCreate(t, userID, "pro")

		_, err := f.engine.Create(ctx, userID, "basic", "ctm_test")
		assert.ErrorIs(t, err, subscription.ErrAlreadySubscribed)
	})
}

func TestEngineCreatePaymentFailure(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.gateway.fail(payment.ErrDeclined)
	userID := uuid.New()

	_, err := f.engine.Create(ctx, userID, "pro", "ctm_test")
	require.ErrorIs(t, err, subscription.ErrPaymentFailed)

	// The record survives in not_active for a later retry, no credits, no
	// activation notification.
	_, err = f.engine.GetByUser(ctx, userID)
	assert.ErrorIs(t, err, subscription.ErrNotFound)
	assert.Zero(t, f.balance(t, userID))
	assert.Empty(t, f.dispatcher.Sent())

	// A retry with a working gateway succeeds.
	f.gateway.fail(nil)
	sub, err := f.engine.Create(ctx, userID, "pro", "ctm_test")
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, sub.Status)
}

func TestEngineUpgrade(t *testing.T) {
	ctx := context.Background()

	t.Run("restarts a full cycle and adjusts allowance", func(t *testing.T) {
		f := newEngineFixture(t)
		userID := uuid.New()
		sub := f.mustCreate(t, userID, "basic") // allowance 50

		f.advance(10 * 24 * time.Hour)

		upgraded, err := f.engine.Upgrade(ctx, sub.ID, "pro", subscription.CycleMonthly)
		require.NoError(t, err)

		assert.Equal(t, "pro", upgraded.PlanID)
		assert.Equal(t, subscription.StatusActive, upgraded.Status)
		// No proration: the 20 unused days are discarded and a full cycle
		// starts from the upgrade time.
		assert.Equal(t, f.now.Add(30*24*time.Hour), upgraded.NextBillingDate)
		// 50 from basic + (100-50) upgrade delta.
		assert.EqualValues(t, 100, f.balance(t, userID))
		assert.Equal(t, 2, f.gateway.count())
		assert.Equal(t, notification.TypeSubscriptionUpgraded, f.lastNotification(t).Event)
	})

	t.Run("switching cycle on the same plan is a valid change", func(t *testing.T) {
		f := newEngineFixture(t)
		sub := f.mustCreate(t, uuid.New(), "pro")

		upgraded, err := f.engine.Upgrade(ctx, sub.ID, "pro", subscription.CycleYearly)
		require.NoError(t, err)
		assert.Equal(t, subscription.CycleYearly, upgraded.BillingCycle)
		assert.Equal(t, f.now.Add(365*24*time.Hour), upgraded.NextBillingDate)
	})

	t.Run("downgrade debits at most the remaining balance", func(t *testing.T) {
		f := newEngineFixture(t)
		userID := uuid.New()
		sub := f.mustCreate(t, userID, "pro") // allowance 100

		// Spend most of the allowance before downgrading.
		_, err := f.ledger.Debit(ctx, userID, 80, "usage")
		require.NoError(t, err)

		_, err = f.engine.Upgrade(ctx, sub.ID, "basic", subscription.CycleMonthly)
		require.NoError(t, err)

		// Delta is -50 but only 20 remain; the balance floors at zero.
		assert.EqualValues(t, 0, f.balance(t, userID))
	})

	t.Run("returning to the original plan restarts its cycle from now", func(t *testing.T) {
		f := newEngineFixture(t)
		userID := uuid.New()
		sub := f.mustCreate(t, userID, "basic")
		originalDue := sub.NextBillingDate

		f.advance(5 * 24 * time.Hour)
		_, err := f.engine.Upgrade(ctx, sub.ID, "pro", subscription.CycleMonthly)
		require.NoError(t, err)

		f.advance(5 * 24 * time.Hour)
		back, err := f.engine.Upgrade(ctx, sub.ID, "basic", subscription.CycleMonthly)
		require.NoError(t, err)

		assert.Equal(t, "basic", back.PlanID)
		assert.Equal(t, subscription.StatusActive, back.Status)
		// The restored plan gets a fresh cycle from the second change, not
		// the billing date the subscription started out with.
		assert.Equal(t, f.now.Add(30*24*time.Hour), back.NextBillingDate)
		assert.NotEqual(t, originalDue, back.NextBillingDate)
	})

	t.Run("same plan and cycle is rejected", func(t *testing.T) {
		f := newEngineFixture(t)
		sub := f.mustCreate(t, uuid.New(), "pro")

		_, err := f.engine.Upgrade(ctx, sub.ID, "pro", subscription.CycleMonthly)
		assert.ErrorIs(t, err, subscription.ErrInvalidTransition)
	})

	t.Run("paused subscription cannot upgrade", func(t *testing.T) {
		f := newEngineFixture(t)
		sub := f.mustCreate(t, uuid.New(), "pro")
		_, err := f.engine.Pause(ctx, sub.ID)
		require.NoError(t, err)

		_, err = f.engine.Upgrade(ctx, sub.ID, "basic", subscription.CycleMonthly)
		assert.ErrorIs(t, err, subscription.ErrInvalidTransition)
	})

	t.Run("failed charge keeps the current plan", func(t *testing.T) {
		f := newEngineFixture(t)
		sub := f.mustCreate(t, uuid.New(), "basic")
		f.gateway.fail(payment.ErrDeclined)

		_, err := f.engine.Upgrade(ctx, sub.ID, "pro", subscription.CycleMonthly)
		require.ErrorIs(t, err, subscription.ErrPaymentFailed)

		got, err := f.engine.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, "basic", got.PlanID)
		assert.Equal(t, subscription.StatusActive, got.Status)
	})
}

func TestEnginePauseResume(t *testing.T) {
	ctx := context.Background()

	t.Run("pause suspends auto-renew, resume restores it", func(t *testing.T) {
		f := newEngineFixture(t)
		sub := f.mustCreate(t, uuid.New(), "pro")

		paused, err := f.engine.Pause(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusPaused, paused.Status)
		assert.False(t, paused.AutoRenew)
		// The billing date is retained while paused.
		assert.Equal(t, sub.NextBillingDate, paused.NextBillingDate)
		assert.Equal(t, notification.TypeSubscriptionPaused, f.lastNotification(t).Event)

		f.advance(45 * 24 * time.Hour)

		resumed, err := f.engine.Resume(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, resumed.Status)
		assert.True(t, resumed.AutoRenew)
		// Resume restarts a full cycle from now, not from the stale date.
		assert.Equal(t, f.now.Add(30*24*time.Hour), resumed.NextBillingDate)
		assert.Equal(t, notification.TypeSubscriptionResumed, f.lastNotification(t).Event)
	})

	t.Run("resume does not re-enable auto-renew the user had off", func(t *testing.T) {
		f := newEngineFixture(t)
		sub := f.mustCreate(t, uuid.New(), "pro")

		// Simulate a user who disabled auto-renew before pausing.
		loaded, err := f.engine.Get(ctx, sub.ID)
		require.NoError(t, err)
		loaded.AutoRenew = false
		require.NoError(t, f.store.ConditionalSave(ctx, loaded, loaded.Version))

		_, err = f.engine.Pause(ctx, sub.ID)
		require.NoError(t, err)

		resumed, err := f.engine.Resume(ctx, sub.ID)
		require.NoError(t, err)
		assert.False(t, resumed.AutoRenew)
	})

	t.Run("pause rejects a subscription that never activated", func(t *testing.T) {
		f := newEngineFixture(t)

		// A signup whose first charge was declined leaves a not_active
		// record behind; pausing it is not a valid transition.
		stub := &subscription.Subscription{
			ID:           uuid.New(),
			UserID:       uuid.New(),
			PlanID:       "pro",
			BillingCycle: subscription.CycleMonthly,
			Status:       subscription.StatusNotActive,
			DateCreated:  f.now,
		}
		require.NoError(t, f.store.Create(ctx, stub))

		_, err := f.engine.Pause(ctx, stub.ID)
		assert.ErrorIs(t, err, subscription.ErrInvalidTransition)
	})

	t.Run("pause is active-only, resume is paused-only", func(t *testing.T) {
		f := newEngineFixture(t)
		sub := f.mustCreate(t, uuid.New(), "pro")

		_, err := f.engine.Resume(ctx, sub.ID)
		assert.ErrorIs(t, err, subscription.ErrInvalidTransition)

		_, err = f.engine.Pause(ctx, sub.ID)
		require.NoError(t, err)
		_, err = f.engine.Pause(ctx, sub.ID)
		assert.ErrorIs(t, err, subscription.ErrInvalidTransition)
	})
}

func TestEngineCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel is immediate and terminal", func(t *testing.T) {
		f := newEngineFixture(t)
		userID := uuid.New()
		sub := f.mustCreate(t, userID, "pro")

		cancelled, err := f.engine.Cancel(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.DateStopped)
		assert.Equal(t, f.now, *cancelled.DateStopped)
		assert.False(t, cancelled.AutoRenew)
		assert.Equal(t, notification.TypeSubscriptionCancelled, f.lastNotification(t).Event)

		// Credits are frozen, not reclaimed.
		assert.EqualValues(t, 100, f.balance(t, userID))

		// The user can subscribe again afterwards.
		_, err = f.engine.Create(ctx, userID, "basic", "ctm_test")
		assert.NoError(t, err)
	})

	t.Run("double cancel fails with ErrInvalidTransition", func(t *testing.T) {
		f := newEngineFixture(t)
		sub := f.mustCreate(t, uuid.New(), "pro")

		_, err := f.engine.Cancel(ctx, sub.ID)
		require.NoError(t, err)
		_, err = f.engine.Cancel(ctx, sub.ID)
		assert.ErrorIs(t, err, subscription.ErrInvalidTransition)
	})

	t.Run("paused subscription can cancel", func(t *testing.T) {
		f := newEngineFixture(t)
		sub := f.mustCreate(t, uuid.New(), "pro")
		_, err := f.engine.Pause(ctx, sub.ID)
		require.NoError(t, err)

		cancelled, err := f.engine.Cancel(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCancelled, cancelled.Status)
	})
}

func TestEngineRenew(t *testing.T) {
	ctx := context.Background()

	t.Run("extends from the previous due date, not from now", func(t *testing.T) {
		f := newEngineFixture(t)
		userID := uuid.New()
		sub := f.mustCreate(t, userID, "pro")
		firstDue := sub.NextBillingDate

		// The sweep runs a day late; the schedule must not drift.
		f.advance(31 * 24 * time.Hour)

		renewed, err := f.engine.Renew(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, firstDue.Add(30*24*time.Hour), renewed.NextBillingDate)
		assert.EqualValues(t, 200, f.balance(t, userID)) // activation + renewal allowance
		assert.Equal(t, notification.TypeRenewalSucceeded, f.lastNotification(t).Event)
	})

	t.Run("failed charge expires immediately", func(t *testing.T) {
		f := newEngineFixture(t)
		sub := f.mustCreate(t, uuid.New(), "pro")
		f.advance(31 * 24 * time.Hour)
		f.gateway.fail(payment.ErrDeclined)

		_, err := f.engine.Renew(ctx, sub.ID)
		require.ErrorIs(t, err, subscription.ErrPaymentFailed)

		got, getErr := f.engine.Get(ctx, sub.ID)
		require.NoError(t, getErr)
		assert.Equal(t, subscription.StatusExpired, got.Status)
		require.NotNil(t, got.DateExpired)
		assert.Equal(t, f.now, *got.DateExpired)
		assert.Equal(t, notification.TypeRenewalFailed, f.lastNotification(t).Event)
	})

	t.Run("renew is active-only", func(t *testing.T) {
		f := newEngineFixture(t)
		sub := f.mustCreate(t, uuid.New(), "pro")
		_, err := f.engine.Pause(ctx, sub.ID)
		require.NoError(t, err)

		_, err = f.engine.Renew(ctx, sub.ID)
		assert.ErrorIs(t, err, subscription.ErrInvalidTransition)
	})

	t.Run("charge idempotency key changes across versions", func(t *testing.T) {
		f := newEngineFixture(t)
		sub := f.mustCreate(t, uuid.New(), "pro")
		f.advance(31 * 24 * time.Hour)

		_, err := f.engine.Renew(ctx, sub.ID)
		require.NoError(t, err)

		require.Equal(t, 2, f.gateway.count())
		assert.NotEqual(t, f.gateway.charges[0].IdempotencyKey, f.gateway.charges[1].IdempotencyKey)
	})
}

func TestEngineAuditTrail(t *testing.T) {
	f := newEngineFixture(t)
	sub := f.mustCreate(t, uuid.New(), "pro")

	types := make([]string, 0)
	for _, e := range f.storage.EventsBySubscription(sub.ID) {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, "subscription.created")
}
