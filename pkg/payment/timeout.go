package payment

import (
	"context"
	"errors"
	"time"
)

// DefaultChargeTimeout bounds a single charge attempt so a stalled provider
// cannot stall the caller indefinitely.
const DefaultChargeTimeout = 10 * time.Second

type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

// WithTimeout wraps a gateway with a per-charge deadline. A charge that does
// not complete within the timeout fails with ErrGatewayTimeout and is treated
// as not applied by the caller.
func WithTimeout(next Gateway, timeout time.Duration) Gateway {
	if timeout <= 0 {
		timeout = DefaultChargeTimeout
	}
	return &timeoutGateway{next: next, timeout: timeout}
}

func (g *timeoutGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err := g.next.Charge(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Join(ErrGatewayTimeout, err)
		}
		return nil, err
	}
	return res, nil
}
