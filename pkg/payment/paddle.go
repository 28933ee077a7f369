package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle payment gateway.
type PaddleConfig struct {
	APIKey      string `env:"PADDLE_API_KEY,required"`
	Environment string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleGateway implements Gateway on top of Paddle transactions.
//
// ChargeRequest.InstrumentRef must be the Paddle customer ID (ctm_xxx) whose
// saved payment method is billed, and ChargeRequest.PriceRef the catalog
// price ID (pri_xxx) for the amount being charged. Billing from catalog
// prices keeps amounts defined in one place (the provider dashboard) and
// matches how plan IDs map to provider price IDs.
type PaddleGateway struct {
	client *paddle.SDK
}

// NewPaddleGateway creates a Paddle-backed payment gateway.
func NewPaddleGateway(cfg PaddleConfig) (*PaddleGateway, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvironment, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleGateway{client: client}, nil
}

// Charge creates an automatically-collected Paddle transaction against the
// customer's saved payment method.
//
// The idempotency key is attached as custom data for reconciliation in the
// provider dashboard only; Paddle does not dedupe transactions on it, so
// this adapter performs no provider-side deduplication. Callers that may
// issue the same charge concurrently must wrap it with WithIdempotency.
func (g *PaddleGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.InstrumentRef == "" {
		return nil, ErrMissingInstrumentRef
	}
	if req.PriceRef == "" {
		return nil, errors.New("paddle: price reference is required")
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceRef,
		Quantity: 1,
	})

	txnReq := &paddle.CreateTransactionRequest{
		Items:          []paddle.CreateTransactionItems{*item},
		CustomerID:     paddle.PtrTo(req.InstrumentRef),
		CollectionMode: paddle.PtrTo(paddle.CollectionModeAutomatic),
		CustomData: paddle.CustomData{
			"description":     req.Description,
			"idempotency_key": req.IdempotencyKey,
		},
	}

	txn, err := g.client.TransactionsClient.CreateTransaction(ctx, txnReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Join(ErrGatewayTimeout, err)
		}
		return nil, errors.Join(ErrDeclined, err)
	}

	return &ChargeResult{
		TransactionID: txn.ID,
		ChargedAt:     time.Now().UTC(),
	}, nil
}
