package credits_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subkit/pkg/credits"
)

func newCachedStore(t *testing.T) (*credits.CachedStore, *credits.MemoryStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	next := credits.NewMemoryStore()
	return credits.NewCachedStore(next, client, time.Minute), next, mr
}

func TestCachedStoreReadThrough(t *testing.T) {
	ctx := context.Background()
	cached, next, mr := newCachedStore(t)
	userID := uuid.New()

	_, err := next.Apply(ctx, userID, 100, time.Now().UTC())
	require.NoError(t, err)

	// First read populates the cache.
	b, err := cached.Get(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 100, b.Balance)
	assert.True(t, mr.Exists("credits:balance:"+userID.String()))

	// A second read is served from the cache even if the backing store
	// moved on underneath.
	_, err = next.Apply(ctx, userID, 50, time.Now().UTC())
	require.NoError(t, err)

	b, err = cached.Get(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 100, b.Balance)
}

func TestCachedStoreApplyInvalidates(t *testing.T) {
	ctx := context.Background()
	cached, _, mr := newCachedStore(t)
	userID := uuid.New()

	balance, err := cached.Apply(ctx, userID, 100, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 100, balance)

	// Warm the cache, then mutate through the cache: the key must be gone.
	_, err = cached.Get(ctx, userID)
	require.NoError(t, err)
	require.True(t, mr.Exists("credits:balance:"+userID.String()))

	_, err = cached.Apply(ctx, userID, -30, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, mr.Exists("credits:balance:"+userID.String()))

	b, err := cached.Get(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 70, b.Balance)
}

func TestCachedStorePropagatesInsufficientCredits(t *testing.T) {
	ctx := context.Background()
	cached, _, _ := newCachedStore(t)
	userID := uuid.New()

	_, err := cached.Apply(ctx, userID, -10, time.Now().UTC())
	assert.ErrorIs(t, err, credits.ErrInsufficientCredits)
}

func TestCachedStoreSurvivesRedisOutage(t *testing.T) {
	ctx := context.Background()
	cached, next, mr := newCachedStore(t)
	userID := uuid.New()

	_, err := next.Apply(ctx, userID, 42, time.Now().UTC())
	require.NoError(t, err)

	mr.Close()

	// Reads and writes fall through to the authoritative store.
	b, err := cached.Get(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 42, b.Balance)

	balance, err := cached.Apply(ctx, userID, 8, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 50, balance)
}

func TestCachedStoreEntriesExpire(t *testing.T) {
	ctx := context.Background()
	cached, next, mr := newCachedStore(t)
	userID := uuid.New()

	_, err := next.Apply(ctx, userID, 10, time.Now().UTC())
	require.NoError(t, err)

	_, err = cached.Get(ctx, userID)
	require.NoError(t, err)
	require.True(t, mr.Exists("credits:balance:"+userID.String()))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("credits:balance:"+userID.String()))
}
