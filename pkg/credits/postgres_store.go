package credits

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists balances in PostgreSQL. The non-negative invariant
// is enforced inside a single conditional UPDATE, so concurrent debits
// serialize on the row without application-level locking.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	query := `
		SELECT user_id, balance, last_adjusted
		FROM credit_balances
		WHERE user_id = $1
	`
	var b Balance
	err := s.pool.QueryRow(ctx, query, userID).Scan(&b.UserID, &b.Balance, &b.LastAdjusted)
	if errors.Is(err, pgx.ErrNoRows) {
		return &Balance{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) Apply(ctx context.Context, userID uuid.UUID, delta int64, at time.Time) (int64, error) {
	// Upsert then guard: the WHERE clause rejects a negative result without
	// a round trip, and ON CONFLICT handles first-touch users.
	query := `
		INSERT INTO credit_balances (user_id, balance, last_adjusted)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			balance = credit_balances.balance + EXCLUDED.balance,
			last_adjusted = EXCLUDED.last_adjusted
		WHERE credit_balances.balance + EXCLUDED.balance >= 0
		RETURNING balance
	`
	if delta < 0 {
		// The INSERT arm must never create a negative row.
		var newBalance int64
		err := s.pool.QueryRow(ctx, `
			UPDATE credit_balances
			SET balance = balance + $2, last_adjusted = $3
			WHERE user_id = $1 AND balance + $2 >= 0
			RETURNING balance
		`, userID, delta, at).Scan(&newBalance)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrInsufficientCredits
		}
		if err != nil {
			return 0, err
		}
		return newBalance, nil
	}

	var newBalance int64
	err := s.pool.QueryRow(ctx, query, userID, delta, at).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrInsufficientCredits
	}
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}
