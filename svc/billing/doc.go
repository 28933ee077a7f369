// Package billing assembles the subscription lifecycle stack into a
// runnable service: postgres-backed stores, the Paddle payment gateway
// wrapped in timeout and circuit-breaker decorators, the credit ledger
// (optionally redis-cached), the audit recorder (optionally Mongo-backed),
// Postmark notifications, and the scheduled renewal sweep.
//
// Construction is toggle-driven: disabled subsystems are neither connected
// nor configured, and every collaborator can be overridden through Options,
// which is how the tests run the full wiring against in-memory
// implementations.
//
//	var cfg billing.Config
//	config.MustLoad(&cfg)
//	svc, err := billing.New(ctx, cfg,
//	    billing.WithAddressResolver(accounts.EmailByUserID),
//	)
//	if err != nil { ... }
//	defer svc.Close(ctx)
//	go svc.Start(ctx)
package billing
