package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker wrapped around a gateway.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // probes allowed in half-open state
	Interval         time.Duration // failure count reset window while closed
	Timeout          time.Duration // open -> half-open cooldown
	FailureThreshold uint32        // consecutive failures before tripping
	Logger           *slog.Logger
}

type breakerGateway struct {
	next    Gateway
	breaker *gobreaker.CircuitBreaker[*ChargeResult]
}

// WithBreaker wraps a gateway with a circuit breaker so a flapping provider
// fails fast instead of holding every renewal on a doomed charge attempt.
// Declined charges do not trip the breaker: a decline is a provider answer,
// not a provider outage.
func WithBreaker(next Gateway, cfg BreakerConfig) Gateway {
	if cfg.Name == "" {
		cfg.Name = "payment-gateway"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrDeclined)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("payment gateway circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &breakerGateway{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*ChargeResult](settings),
	}
}

func (g *breakerGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	res, err := g.breaker.Execute(func() (*ChargeResult, error) {
		return g.next.Charge(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.Join(ErrGatewayUnavailable, err)
		}
		return nil, err
	}
	return res, nil
}
