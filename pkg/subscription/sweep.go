package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subkit/pkg/audit"
	"github.com/dmitrymomot/subkit/pkg/logger"
	"github.com/dmitrymomot/subkit/pkg/notification"
)

// SweepResult aggregates per-item outcomes of one reconciliation pass.
// Outcomes are returned to the caller for observability, never raised as a
// batch-level error: a single failing subscription must not block the rest.
type SweepResult struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Renewed    []uuid.UUID
	Expired    []uuid.UUID
	Skipped    []uuid.UUID // advanced concurrently or no longer due; benign
	Failed     map[uuid.UUID]error
}

// Sweeper is the time-triggered reconciler: it scans for active
// subscriptions whose next billing date has passed and drives them through
// renewal or expiration via the same engine code path as user-triggered
// calls.
//
// Overlapping sweep runs are safe: the sweep holds no lock of its own and
// relies entirely on the store's optimistic version check, so the second
// writer's stale version is rejected and counted as a skip.
type Sweeper struct {
	engine      *Engine
	batchSize   int
	itemTimeout time.Duration
	log         *slog.Logger
	metrics     *SweepMetrics
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithBatchSize bounds how many due subscriptions one store query returns.
func WithBatchSize(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithItemTimeout bounds the reconciliation of a single subscription,
// keeping total sweep duration at batch size times this bound even when the
// gateway stalls.
func WithItemTimeout(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.itemTimeout = d
		}
	}
}

// WithSweepLogger sets the sweep logger.
func WithSweepLogger(log *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if log != nil {
			s.log = log
		}
	}
}

// WithSweepMetrics attaches prometheus metrics to the sweeper.
func WithSweepMetrics(m *SweepMetrics) SweeperOption {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// NewSweeper creates a reconciliation sweeper driving the given engine.
func NewSweeper(engine *Engine, opts ...SweeperOption) *Sweeper {
	if engine == nil {
		panic("subscription: engine is required")
	}

	s := &Sweeper{
		engine:      engine,
		batchSize:   100,
		itemTimeout: 15 * time.Second,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one reconciliation pass at the injected time. A store failure
// while listing due subscriptions aborts the pass with ErrSweepAborted so
// the scheduler can alert and retry on the next run; per-item failures are
// recorded in the result and never abort the batch.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (*SweepResult, error) {
	res := &SweepResult{
		StartedAt: now,
		Failed:    make(map[uuid.UUID]error),
	}
	defer func() {
		res.FinishedAt = s.engine.clock()
		if s.metrics != nil {
			s.metrics.observe(res)
		}
	}()

	// Keyset paging by ID: the cursor advances past every item regardless of
	// outcome, so a page full of items that failed and stayed due cannot pin
	// the scan in place and strand the pages behind it. Failed items get
	// another attempt on the next scheduled run.
	cursor := uuid.Nil
	for {
		batch, err := s.engine.store.FindDue(ctx, now, cursor, s.batchSize)
		if err != nil {
			return res, errors.Join(ErrSweepAborted, err)
		}
		if len(batch) == 0 {
			break
		}

		for _, sub := range batch {
			s.reconcile(ctx, now, sub, res)
		}
		cursor = batch[len(batch)-1].ID

		if len(batch) < s.batchSize {
			break
		}
	}

	s.log.InfoContext(ctx, "reconciliation sweep finished",
		slog.Time("sweep_time", now),
		slog.Int("renewed", len(res.Renewed)),
		slog.Int("expired", len(res.Expired)),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int("failed", len(res.Failed)))

	return res, nil
}

// reconcile drives a single due subscription through renewal or expiration
// in isolation: its own timeout, its own outcome slot.
func (s *Sweeper) reconcile(ctx context.Context, now time.Time, sub *Subscription, res *SweepResult) {
	ctx, cancel := context.WithTimeout(ctx, s.itemTimeout)
	defer cancel()

	if sub.AutoRenew {
		s.renewDue(ctx, now, sub, res)
		return
	}

	// Auto-renew off: the subscription lapses without a gateway call.
	expired, err := s.engine.expire(ctx, sub, "billing date passed with auto-renew off")
	switch {
	case err == nil:
		s.engine.notify(ctx, expired, notification.TypeSubscriptionExpired)
		res.Expired = append(res.Expired, sub.ID)
	case errors.Is(err, ErrConcurrentModification), errors.Is(err, ErrInvalidTransition):
		// Another writer advanced it first; converged, nothing to do.
		res.Skipped = append(res.Skipped, sub.ID)
	default:
		s.fail(ctx, sub, err, res)
	}
}

// renewDue renews with the engine's automatic conflict retry budget:
// a version mismatch triggers a reload, and if the subscription is still due
// the renewal is retried; once the budget is spent the item is skipped as
// benign for this pass.
func (s *Sweeper) renewDue(ctx context.Context, now time.Time, sub *Subscription, res *SweepResult) {
	current := sub
	for attempt := 0; ; attempt++ {
		_, err := s.engine.renew(ctx, current)
		switch {
		case err == nil:
			res.Renewed = append(res.Renewed, current.ID)
			return
		case errors.Is(err, ErrPaymentFailed):
			// The engine already expired the subscription.
			res.Expired = append(res.Expired, current.ID)
			return
		case errors.Is(err, ErrInvalidTransition):
			res.Skipped = append(res.Skipped, current.ID)
			return
		case errors.Is(err, ErrConcurrentModification):
			if attempt >= s.engine.conflictRetries {
				res.Skipped = append(res.Skipped, current.ID)
				return
			}
			reloaded, loadErr := s.engine.store.Get(ctx, current.ID)
			if loadErr != nil {
				s.fail(ctx, current, loadErr, res)
				return
			}
			if !reloaded.IsDueAt(now) {
				// A concurrent request already advanced it past due.
				res.Skipped = append(res.Skipped, current.ID)
				return
			}
			current = reloaded
		default:
			s.fail(ctx, current, err, res)
			return
		}
	}
}

func (s *Sweeper) fail(ctx context.Context, sub *Subscription, err error, res *SweepResult) {
	res.Failed[sub.ID] = err
	s.engine.audit(ctx, "sweep.item_failed", sub, audit.WithError(err))
	s.log.ErrorContext(ctx, "sweep item reconciliation failed",
		logger.SubscriptionID(sub.ID),
		logger.Error(err))
}
