package credits

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subkit/pkg/audit"
)

// Ledger tracks per-user credit balances tied to plan allowances and ad-hoc
// credit purchases. Every mutation carries a reason and is appended to the
// audit trail with its delta, so the balance history is reconstructable.
type Ledger struct {
	store    BalanceStore
	recorder audit.Recorder
	clock    func() time.Time
	log      *slog.Logger
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClock overrides the mutation timestamp source, for tests.
func WithClock(clock func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithLogger sets the logger used for audit write failures.
func WithLogger(log *slog.Logger) LedgerOption {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLedger creates a credit ledger over the given store.
// Panics on nil store to fail fast during initialization; pass
// audit.NopRecorder() when no audit backend is configured.
func NewLedger(store BalanceStore, recorder audit.Recorder, opts ...LedgerOption) *Ledger {
	if store == nil {
		panic("credits: balance store cannot be nil")
	}
	if recorder == nil {
		recorder = audit.NopRecorder()
	}

	l := &Ledger{
		store:    store,
		recorder: recorder,
		clock:    func() time.Time { return time.Now().UTC() },
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Grant adds amount credits to the user's balance.
func (l *Ledger) Grant(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if reason == "" {
		return 0, ErrReasonRequired
	}

	newBalance, err := l.store.Apply(ctx, userID, amount, l.clock())
	if err != nil {
		return 0, err
	}

	l.record(ctx, "credits.granted", userID, amount, newBalance, reason)
	return newBalance, nil
}

// Debit removes amount credits from the user's balance. Fails with
// ErrInsufficientCredits when the debit would drive the balance negative;
// the balance is left untouched in that case.
func (l *Ledger) Debit(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if reason == "" {
		return 0, ErrReasonRequired
	}

	newBalance, err := l.store.Apply(ctx, userID, -amount, l.clock())
	if err != nil {
		return 0, err
	}

	l.record(ctx, "credits.debited", userID, -amount, newBalance, reason)
	return newBalance, nil
}

// DebitUpTo removes up to amount credits, stopping at zero. Returns the
// actually debited amount. Used on downgrades where the allowance shrink may
// exceed what the user still holds.
func (l *Ledger) DebitUpTo(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if reason == "" {
		return 0, ErrReasonRequired
	}

	if _, err := l.Debit(ctx, userID, amount, reason); err == nil {
		return amount, nil
	} else if !errors.Is(err, ErrInsufficientCredits) {
		return 0, err
	}

	// Not enough for the full debit: take the remaining balance instead.
	// Bounded retries tolerate concurrent mutations between read and debit.
	for range 3 {
		current, err := l.Balance(ctx, userID)
		if err != nil {
			return 0, err
		}
		if current == 0 {
			return 0, nil
		}
		if _, err := l.Debit(ctx, userID, current, reason); err == nil {
			return current, nil
		} else if !errors.Is(err, ErrInsufficientCredits) {
			return 0, err
		}
	}
	return 0, ErrInsufficientCredits
}

// Balance returns the user's current credit balance. A user without any
// ledger activity has a zero balance.
func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	b, err := l.store.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return b.Balance, nil
}

func (l *Ledger) record(ctx context.Context, eventType string, userID uuid.UUID, delta, newBalance int64, reason string) {
	err := l.recorder.Record(ctx, eventType,
		audit.WithUser(userID),
		audit.WithDetail("delta", delta),
		audit.WithDetail("balance", newBalance),
		audit.WithDetail("reason", reason),
	)
	if err != nil {
		l.log.ErrorContext(ctx, "failed to record credit mutation",
			slog.String("event_type", eventType),
			slog.String("user_id", userID.String()),
			slog.Int64("delta", delta),
			slog.Any("error", err))
	}
}
