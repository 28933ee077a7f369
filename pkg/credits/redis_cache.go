package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CachedStore decorates a BalanceStore with a redis read-through cache for
// balance lookups. Balance reads happen on hot paths (usage checks on every
// request in the layer above), while mutations are comparatively rare, so a
// short TTL plus invalidate-on-write keeps reads cheap without risking a
// stale non-negative check: Apply always goes to the underlying store.
type CachedStore struct {
	next   BalanceStore
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

const defaultCacheTTL = 5 * time.Minute

// NewCachedStore wraps next with a redis cache.
func NewCachedStore(next BalanceStore, client *redis.Client, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedStore{
		next:   next,
		client: client,
		ttl:    ttl,
		log:    slog.Default(),
	}
}

func cacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("credits:balance:%s", userID)
}

func (s *CachedStore) Get(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	cached, err := s.client.Get(ctx, cacheKey(userID)).Result()
	if err == nil {
		if balance, parseErr := strconv.ParseInt(cached, 10, 64); parseErr == nil {
			return &Balance{UserID: userID, Balance: balance}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		// Cache trouble is not a reason to fail a read; fall through.
		s.log.WarnContext(ctx, "credits cache read failed",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
	}

	b, err := s.next.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.client.Set(ctx, cacheKey(userID), strconv.FormatInt(b.Balance, 10), s.ttl).Err(); err != nil {
		s.log.WarnContext(ctx, "credits cache write failed",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
	}
	return b, nil
}

func (s *CachedStore) Apply(ctx context.Context, userID uuid.UUID, delta int64, at time.Time) (int64, error) {
	newBalance, err := s.next.Apply(ctx, userID, delta, at)
	if err != nil {
		return 0, err
	}

	// Invalidate rather than update: the next read repopulates from the
	// authoritative store, avoiding write races between cache and DB.
	if err := s.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		s.log.WarnContext(ctx, "credits cache invalidation failed",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
	}
	return newBalance, nil
}
