package payment

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultIdempotencyTTL bounds how long a charge result is replayed for its
// idempotency key.
const DefaultIdempotencyTTL = 24 * time.Hour

type idempotentGateway struct {
	next  Gateway
	ttl   time.Duration
	clock func() time.Time

	flight singleflight.Group

	mu      sync.Mutex
	results map[string]cachedCharge
}

type cachedCharge struct {
	result   ChargeResult
	storedAt time.Time
}

// WithIdempotency wraps a gateway so that charges sharing an idempotency key
// execute at most once within ttl: concurrent duplicates collapse into a
// single provider call and sequential duplicates replay the cached result.
// This is what lets overlapping renewal sweeps converge on one charge when
// the provider itself does not dedupe on the key. Failed charges are not
// cached, so a retry after a decline reaches the provider again. Requests
// without a key pass through untouched.
func WithIdempotency(next Gateway, ttl time.Duration) Gateway {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &idempotentGateway{
		next:    next,
		ttl:     ttl,
		clock:   func() time.Time { return time.Now().UTC() },
		results: make(map[string]cachedCharge),
	}
}

func (g *idempotentGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.IdempotencyKey == "" {
		return g.next.Charge(ctx, req)
	}

	// Late joiners of an in-flight charge share the first caller's context;
	// the per-charge deadline is applied by WithTimeout beneath this layer.
	v, err, _ := g.flight.Do(req.IdempotencyKey, func() (any, error) {
		if cached, ok := g.lookup(req.IdempotencyKey); ok {
			return cached, nil
		}
		res, err := g.next.Charge(ctx, req)
		if err != nil {
			return nil, err
		}
		g.store(req.IdempotencyKey, *res)
		return *res, nil
	})
	if err != nil {
		return nil, err
	}

	result := v.(ChargeResult)
	return &result, nil
}

func (g *idempotentGateway) lookup(key string) (ChargeResult, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cached, ok := g.results[key]
	if !ok {
		return ChargeResult{}, false
	}
	if g.clock().Sub(cached.storedAt) > g.ttl {
		delete(g.results, key)
		return ChargeResult{}, false
	}
	return cached.result, true
}

func (g *idempotentGateway) store(key string, res ChargeResult) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Evict stale entries on write so the map stays bounded by the number of
	// distinct keys charged within one TTL window.
	now := g.clock()
	for k, cached := range g.results {
		if now.Sub(cached.storedAt) > g.ttl {
			delete(g.results, k)
		}
	}
	g.results[key] = cachedCharge{result: res, storedAt: now}
}
