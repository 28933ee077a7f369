package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/subkit/pkg/audit"
	"github.com/dmitrymomot/subkit/pkg/config"
	"github.com/dmitrymomot/subkit/pkg/credits"
	"github.com/dmitrymomot/subkit/pkg/logger"
	"github.com/dmitrymomot/subkit/pkg/mongo"
	"github.com/dmitrymomot/subkit/pkg/notification"
	"github.com/dmitrymomot/subkit/pkg/payment"
	"github.com/dmitrymomot/subkit/pkg/pg"
	"github.com/dmitrymomot/subkit/pkg/redis"
	"github.com/dmitrymomot/subkit/pkg/schedule"
	"github.com/dmitrymomot/subkit/pkg/subscription"
)

// SweepJobName is the name the renewal reconciliation job is registered
// under in the schedule runner.
const SweepJobName = "billing.renewal_sweep"

// Service is the assembled billing stack: lifecycle engine, credit ledger,
// renewal sweeper, and the schedule runner driving the sweep. Construct it
// with New and run Start in a goroutine; Close releases infrastructure
// connections.
type Service struct {
	Engine  *subscription.Engine
	Ledger  *credits.Ledger
	Sweeper *subscription.Sweeper
	Runner  *schedule.Runner

	healthchecks []func(context.Context) error
	closers      []func(context.Context) error
	log          *slog.Logger
}

// Option overrides a collaborator during assembly. Overrides replace the
// corresponding infrastructure wiring entirely: supplying a Store skips the
// postgres connection, supplying a Gateway skips Paddle, and so on.
type Option func(*assembly)

type assembly struct {
	store      subscription.Store
	balances   credits.BalanceStore
	gateway    payment.Gateway
	recorder   audit.Recorder
	dispatcher notification.Dispatcher
	resolver   notification.AddressResolver
	planSource subscription.PlanSource
	registry   prometheus.Registerer
	log        *slog.Logger
	clock      func() time.Time
}

func WithStore(s subscription.Store) Option {
	return func(a *assembly) { a.store = s }
}

func WithBalanceStore(s credits.BalanceStore) Option {
	return func(a *assembly) { a.balances = s }
}

func WithGateway(g payment.Gateway) Option {
	return func(a *assembly) { a.gateway = g }
}

func WithRecorder(r audit.Recorder) Option {
	return func(a *assembly) { a.recorder = r }
}

func WithDispatcher(d notification.Dispatcher) Option {
	return func(a *assembly) { a.dispatcher = d }
}

// WithAddressResolver supplies the user-to-email lookup required when email
// notifications are enabled. Account data lives outside this service.
func WithAddressResolver(r notification.AddressResolver) Option {
	return func(a *assembly) { a.resolver = r }
}

func WithPlanSource(src subscription.PlanSource) Option {
	return func(a *assembly) { a.planSource = src }
}

// WithMetricsRegistry registers sweep metrics with the given registerer
// instead of the default global one.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(a *assembly) { a.registry = reg }
}

func WithLogger(log *slog.Logger) Option {
	return func(a *assembly) { a.log = log }
}

// WithClock overrides the time source for the engine, ledger, and sweep
// job. Tests drive lifecycle timelines through this.
func WithClock(clock func() time.Time) Option {
	return func(a *assembly) { a.clock = clock }
}

// New assembles the billing service from configuration. Infrastructure
// subsystems (postgres, redis, mongo, paddle, postmark) are connected only
// when no override is supplied and the relevant toggle is on; their configs
// are loaded lazily from the environment so a disabled subsystem never
// demands credentials.
func New(ctx context.Context, cfg Config, opts ...Option) (*Service, error) {
	a := &assembly{
		clock: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = buildLogger(cfg)
	}

	svc := &Service{log: a.log}

	if a.planSource == nil {
		a.planSource = NewYAMLPlanSource(cfg.PlansPath)
	}

	if a.store == nil || a.balances == nil {
		pool, err := connectPostgres(ctx, a.log)
		if err != nil {
			return nil, err
		}
		svc.closers = append(svc.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		svc.healthchecks = append(svc.healthchecks, pg.Healthcheck(pool))

		if a.store == nil {
			a.store = subscription.NewPostgresStore(pool)
		}
		if a.balances == nil {
			a.balances = credits.NewPostgresStore(pool)
		}
	}

	if cfg.CreditCacheEnabled {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, err
		}
		svc.closers = append(svc.closers, func(context.Context) error {
			return client.Close()
		})
		svc.healthchecks = append(svc.healthchecks, redis.Healthcheck(client))
		a.balances = credits.NewCachedStore(a.balances, client, cfg.CreditCacheTTL)
	}

	if a.recorder == nil {
		recorder, err := buildRecorder(ctx, cfg, svc)
		if err != nil {
			return nil, err
		}
		a.recorder = recorder
	}

	if a.dispatcher == nil {
		dispatcher, err := buildDispatcher(cfg, a.resolver)
		if err != nil {
			return nil, err
		}
		a.dispatcher = dispatcher
	}

	if a.gateway == nil {
		var paddleCfg payment.PaddleConfig
		if err := config.Load(&paddleCfg); err != nil {
			return nil, err
		}
		gateway, err := payment.NewPaddleGateway(paddleCfg)
		if err != nil {
			return nil, err
		}
		// Idempotency sits outermost so overlapping sweeps collapse into a
		// single provider call; the TTL matches the sweep interval since a
		// renewal key can only race within one sweep window.
		a.gateway = payment.WithIdempotency(
			payment.WithBreaker(
				payment.WithTimeout(gateway, cfg.ChargeTimeout),
				payment.BreakerConfig{Name: "paddle", Logger: a.log},
			),
			cfg.SweepInterval,
		)
	}

	svc.Ledger = credits.NewLedger(a.balances, a.recorder,
		credits.WithClock(a.clock),
		credits.WithLogger(a.log),
	)

	engine, err := subscription.NewEngine(ctx, a.planSource, a.store, a.gateway, svc.Ledger,
		subscription.WithClock(a.clock),
		subscription.WithAuditRecorder(a.recorder),
		subscription.WithNotifier(a.dispatcher),
		subscription.WithLogger(a.log),
		subscription.WithChargeTimeout(cfg.ChargeTimeout),
	)
	if err != nil {
		return nil, err
	}
	svc.Engine = engine

	sweepOpts := []subscription.SweeperOption{
		subscription.WithBatchSize(cfg.SweepBatchSize),
		subscription.WithItemTimeout(cfg.SweepItemTimeout),
		subscription.WithSweepLogger(a.log),
	}
	if a.registry != nil {
		sweepOpts = append(sweepOpts, subscription.WithSweepMetrics(subscription.NewSweepMetrics(a.registry)))
	}
	svc.Sweeper = subscription.NewSweeper(engine, sweepOpts...)

	svc.Runner = schedule.NewRunner(
		schedule.WithClock(a.clock),
		schedule.WithLogger(a.log),
	)
	err = svc.Runner.AddJob(SweepJobName, schedule.Every(cfg.SweepInterval),
		func(ctx context.Context, now time.Time) error {
			_, err := svc.Sweeper.Run(ctx, now)
			return err
		})
	if err != nil {
		return nil, err
	}

	return svc, nil
}

// Start runs the schedule runner until the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	return s.Runner.Start(ctx)
}

// SweepNow triggers an immediate reconciliation pass outside the schedule.
func (s *Service) SweepNow(ctx context.Context) error {
	return s.Runner.RunJobNow(ctx, SweepJobName)
}

// Healthcheck pings every connected infrastructure dependency.
func (s *Service) Healthcheck(ctx context.Context) error {
	var errs []error
	for _, check := range s.healthchecks {
		if err := check(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases infrastructure connections in reverse acquisition order.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildLogger is the default logger when WithLogger is not supplied:
// format and level follow Environment (text/debug in development, JSON/info
// elsewhere) and ServiceName is stamped onto every record.
func buildLogger(cfg Config) *slog.Logger {
	return logger.New(logger.WithEnvironment(cfg.Environment, cfg.ServiceName))
}

func connectPostgres(ctx context.Context, log *slog.Logger) (*pgxpool.Pool, error) {
	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return nil, err
	}
	conn, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx, conn, pgCfg, log); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func buildRecorder(ctx context.Context, cfg Config, svc *Service) (audit.Recorder, error) {
	if !cfg.MongoAuditEnabled {
		return audit.NewRecorder(audit.NewMemoryStorage()), nil
	}

	var mongoCfg mongo.Config
	if err := config.Load(&mongoCfg); err != nil {
		return nil, err
	}
	client, err := mongo.New(ctx, mongoCfg)
	if err != nil {
		return nil, err
	}
	svc.closers = append(svc.closers, func(ctx context.Context) error {
		return client.Disconnect(ctx)
	})
	svc.healthchecks = append(svc.healthchecks, mongo.Healthcheck(client))

	storage := audit.NewMongoStorage(client.Database(cfg.AuditDatabase).Collection(cfg.AuditCollection))
	return audit.NewRecorder(storage, audit.WithAsyncBuffer(cfg.AuditBufferSize)), nil
}

func buildDispatcher(cfg Config, resolver notification.AddressResolver) (notification.Dispatcher, error) {
	if !cfg.EmailEnabled {
		return notification.NopDispatcher(), nil
	}
	if resolver == nil {
		return nil, ErrMissingAddressResolver
	}

	var emailCfg notification.EmailConfig
	if err := config.Load(&emailCfg); err != nil {
		return nil, err
	}
	return notification.NewEmailDispatcher(emailCfg, resolver)
}
