// Package payment abstracts the payment provider behind a minimal Gateway
// interface: a charge either authorizes, is declined, or times out.
//
// The billing engine only ever needs a single operation, Charge, executed
// with a bounded timeout. Vendor complexity (Paddle transactions, saved
// payment methods, idempotency) lives in provider implementations behind the
// interface, so the engine stays testable with a GatewayFunc stub.
//
// Three decorators compose around any Gateway:
//
//   - WithTimeout bounds a single charge attempt with a context deadline so
//     a stalled provider cannot stall a renewal sweep.
//   - WithBreaker adds a circuit breaker that fails fast during provider
//     outages. Declined charges are provider answers, not outages, and do
//     not trip the breaker.
//   - WithIdempotency executes charges sharing an idempotency key at most
//     once within a TTL, collapsing concurrent duplicates and replaying
//     cached results for sequential ones.
//
// Typical wiring, idempotency outermost:
//
//	gw, err := payment.NewPaddleGateway(cfg)
//	if err != nil { ... }
//	charged := payment.WithIdempotency(
//		payment.WithBreaker(payment.WithTimeout(gw, 10*time.Second), payment.BreakerConfig{}),
//		time.Hour,
//	)
package payment
