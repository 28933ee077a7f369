package billing

import "time"

// Config holds service-level settings. Infrastructure configs (postgres,
// redis, mongo, paddle, postmark) are loaded separately from their own env
// namespaces, gated by the toggles below, so disabled subsystems don't
// demand credentials at startup.
type Config struct {
	// ServiceName is stamped onto every log record.
	ServiceName string `env:"BILLING_SERVICE_NAME" envDefault:"billing"`
	Environment string `env:"BILLING_ENVIRONMENT" envDefault:"development"`

	// PlansPath points at the YAML plan catalog.
	PlansPath string `env:"BILLING_PLANS_PATH" envDefault:"plans.yaml"`

	// SweepInterval is how often the renewal reconciliation job runs.
	SweepInterval    time.Duration `env:"BILLING_SWEEP_INTERVAL" envDefault:"1h"`
	SweepBatchSize   int           `env:"BILLING_SWEEP_BATCH_SIZE" envDefault:"100"`
	SweepItemTimeout time.Duration `env:"BILLING_SWEEP_ITEM_TIMEOUT" envDefault:"15s"`

	// ChargeTimeout bounds a single payment gateway charge attempt.
	ChargeTimeout time.Duration `env:"BILLING_CHARGE_TIMEOUT" envDefault:"10s"`

	// CreditCacheEnabled puts a redis read-through cache in front of the
	// credit balance store.
	CreditCacheEnabled bool          `env:"BILLING_CREDIT_CACHE_ENABLED" envDefault:"false"`
	CreditCacheTTL     time.Duration `env:"BILLING_CREDIT_CACHE_TTL" envDefault:"5m"`

	// MongoAuditEnabled persists the audit trail to MongoDB; without it the
	// trail is kept in process memory (dev only).
	MongoAuditEnabled bool   `env:"BILLING_MONGO_AUDIT_ENABLED" envDefault:"false"`
	AuditDatabase     string `env:"BILLING_AUDIT_DATABASE" envDefault:"billing"`
	AuditCollection   string `env:"BILLING_AUDIT_COLLECTION" envDefault:"audit_events"`
	AuditBufferSize   int    `env:"BILLING_AUDIT_BUFFER_SIZE" envDefault:"256"`

	// EmailEnabled turns on Postmark notification delivery. Requires an
	// address resolver to be supplied via WithAddressResolver.
	EmailEnabled bool `env:"BILLING_EMAIL_ENABLED" envDefault:"false"`
}
