// Package pg bootstraps the PostgreSQL layer for the billing engine: a pgx
// connection pool with startup retries, goose schema migrations, a health
// probe, and SQLSTATE classification helpers.
//
// The package is deliberately thin. It configures and hands back upstream
// types (*pgxpool.Pool) rather than wrapping them, so stores built on top of
// it keep full access to the driver.
//
// # Usage
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//		return err
//	}
//
// # Error classification
//
// Stores map driver errors to domain errors with the Is* helpers. The one
// that matters most here is [IsDuplicateKeyError]: the subscriptions table
// enforces at most one current subscription per user with a partial unique
// index, and a 23505 on insert or reactivation becomes the domain's
// "already subscribed" error.
package pg
