package payment

import (
	"context"
	"time"
)

// Money represents a monetary amount in the smallest currency unit.
// For example, $10.99 USD would be Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  // amount in smallest currency unit (cents for USD)
	Currency string // ISO 4217 currency code
}

// IsZero reports whether the amount is zero (free plans skip the gateway).
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// ChargeRequest describes a single charge against a stored payment instrument.
type ChargeRequest struct {
	InstrumentRef  string // opaque reference to the stored payment instrument
	Amount         Money
	PriceRef       string // provider catalog price ID, for providers that bill from catalog
	Description    string
	IdempotencyKey string // dedupes retried charges at the provider
}

// ChargeResult describes a successfully authorized charge.
type ChargeResult struct {
	TransactionID string
	ChargedAt     time.Time
}

// Gateway abstracts the payment provider. The engine treats it as a black
// box: a charge either authorizes, is declined, or times out. Provider
// implementations handle vendor specifics (Paddle transactions, Stripe
// payment intents) behind this interface.
type Gateway interface {
	// Charge authorizes and captures a payment against the instrument.
	// Returns ErrDeclined when the provider rejects the charge and
	// ErrGatewayTimeout when the provider does not answer in time.
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// GatewayFunc adapts a plain function to a Gateway. Handy in tests.
type GatewayFunc func(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

func (f GatewayFunc) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	return f(ctx, req)
}
