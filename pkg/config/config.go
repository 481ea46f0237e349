package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Fees         FeesConfig
	Checkout     CheckoutConfig
	Stripe       StripeConfig
	Outbox       OutboxConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Fees.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MERCADITO_APP_ENV" required:"true"`
	Port         string `envconfig:"MERCADITO_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"MERCADITO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MERCADITO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"MERCADITO_DB_DSN" required:"true"`

	MaxOpenConns    int           `envconfig:"MERCADITO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MERCADITO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MERCADITO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MERCADITO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MERCADITO_REDIS_URL"`
	Address      string        `envconfig:"MERCADITO_REDIS_ADDR"`
	Password     string        `envconfig:"MERCADITO_REDIS_PASSWORD"`
	DB           int           `envconfig:"MERCADITO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MERCADITO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MERCADITO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MERCADITO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MERCADITO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MERCADITO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MERCADITO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MERCADITO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MERCADITO_JWT_EXPIRATION_MINUTES" default:"60"`
}

// FeesConfig centralizes every money knob the ledger and pricing functions
// consume. The platform fee rate is read here and nowhere else.
type FeesConfig struct {
	PlatformFeeRate       float64 `envconfig:"MERCADITO_PLATFORM_FEE_RATE" default:"0.05"`
	CardProcessingFeeRate float64 `envconfig:"MERCADITO_CARD_PROCESSING_FEE_RATE" default:"0.029"`
	TaxRate               float64 `envconfig:"MERCADITO_TAX_RATE" default:"0"`
	FlatShippingCents     int64   `envconfig:"MERCADITO_FLAT_SHIPPING_CENTS" default:"6000"`
	FreeShippingThreshold int64   `envconfig:"MERCADITO_FREE_SHIPPING_THRESHOLD_CENTS" default:"100000"`
}

func (f FeesConfig) validate() error {
	if f.PlatformFeeRate < 0 || f.PlatformFeeRate >= 1 {
		return fmt.Errorf("platform fee rate %v out of range [0,1)", f.PlatformFeeRate)
	}
	if f.FlatShippingCents < 0 {
		return fmt.Errorf("flat shipping must be non-negative")
	}
	return nil
}

// TaxRateClamped returns the configured tax rate clamped to [0,1].
func (f FeesConfig) TaxRateClamped() float64 {
	if f.TaxRate < 0 {
		return 0
	}
	if f.TaxRate > 1 {
		return 1
	}
	return f.TaxRate
}

type CheckoutConfig struct {
	Deadline time.Duration `envconfig:"MERCADITO_CHECKOUT_DEADLINE" default:"8s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"MERCADITO_STRIPE_API_KEY"`
	Secret string `envconfig:"MERCADITO_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"MERCADITO_STRIPE_ENV" default:"test"`

	// WebhookIdempotencyTTL bounds the redis fast-path dedup window; the
	// webhook_events table remains the durable fence.
	WebhookIdempotencyTTL time.Duration `envconfig:"MERCADITO_STRIPE_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

func (s StripeConfig) Environment() string {
	return s.Env
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MERCADITO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MERCADITO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MERCADITO_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"MERCADITO_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"MERCADITO_PUBSUB_DOMAIN_TOPIC" default:"mc-domain-events"`
	DomainSubscription string `envconfig:"MERCADITO_PUBSUB_DOMAIN_SUBSCRIPTION" default:"mc-domain-events-worker"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MERCADITO_AUTO_MIGRATE" default:"false"`
}
