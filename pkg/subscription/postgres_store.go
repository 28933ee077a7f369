package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/subkit/pkg/pg"
)

// PostgresStore persists subscriptions in PostgreSQL.
//
// Concurrency contract: ConditionalSave compiles to a single UPDATE guarded
// by `version = expected`, so stale writers lose without locks. The
// one-current-subscription-per-user invariant is enforced by a partial
// unique index on user_id over active/paused rows (see migrations), which
// makes Create and reactivating saves race-safe as well.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const subscriptionColumns = `
	id, user_id, plan_id, billing_cycle, status, auto_renew,
	date_created, next_billing_date, date_expired, date_stopped,
	discount_code, metadata, version
`

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE id = $1
	`, id)
	return scanSubscription(row)
}

func (s *PostgresStore) FindByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1 AND status IN ('active', 'paused')
	`, userID)
	return scanSubscription(row)
}

func (s *PostgresStore) FindDue(ctx context.Context, now time.Time, afterID uuid.UUID, limit int) ([]*Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE status = 'active' AND next_billing_date <= $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`, now, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, sub)
	}
	return due, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, sub *Subscription) error {
	sub.Version = 1
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (
			id, user_id, plan_id, billing_cycle, status, auto_renew,
			date_created, next_billing_date, date_expired, date_stopped,
			discount_code, metadata, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		sub.ID, sub.UserID, sub.PlanID, string(sub.BillingCycle), string(sub.Status),
		sub.AutoRenew, sub.DateCreated, sub.NextBillingDate, sub.DateExpired,
		sub.DateStopped, sub.DiscountCode, sub.Metadata, sub.Version,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrAlreadySubscribed
		}
		return err
	}
	return nil
}

func (s *PostgresStore) ConditionalSave(ctx context.Context, sub *Subscription, expectedVersion int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE subscriptions SET
			plan_id = $2,
			billing_cycle = $3,
			status = $4,
			auto_renew = $5,
			next_billing_date = $6,
			date_expired = $7,
			date_stopped = $8,
			discount_code = $9,
			metadata = $10,
			version = version + 1
		WHERE id = $1 AND version = $11
	`,
		sub.ID, sub.PlanID, string(sub.BillingCycle), string(sub.Status),
		sub.AutoRenew, sub.NextBillingDate, sub.DateExpired, sub.DateStopped,
		sub.DiscountCode, sub.Metadata, expectedVersion,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrAlreadySubscribed
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a stale version for the caller.
		if _, err := s.Get(ctx, sub.ID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConcurrentModification
	}

	sub.Version = expectedVersion + 1
	return nil
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var sub Subscription
	var cycle, status string
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &cycle, &status, &sub.AutoRenew,
		&sub.DateCreated, &sub.NextBillingDate, &sub.DateExpired, &sub.DateStopped,
		&sub.DiscountCode, &sub.Metadata, &sub.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sub.BillingCycle = BillingCycle(cycle)
	sub.Status = Status(status)
	return &sub, nil
}
