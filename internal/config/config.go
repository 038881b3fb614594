package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	pkgconfig "github.com/nainu25/ELEMENT-01/pkg/config"
	"github.com/nainu25/ELEMENT-01/pkg/database"
)

// Inventory backends.
const (
	InventoryPostgres = "postgres"
	InventoryREST     = "rest"
)

// Reconcile modes.
const (
	ReconcileReadWrite   = "read-write"
	ReconcileConditional = "conditional"
)

// Payment providers.
const (
	PaymentMock   = "mock"
	PaymentStripe = "stripe"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`

	// Redis
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Cart TTL in hours (default: 30 days)
	CartTTL int `env:"CART_TTL_HOURS" envDefault:"720"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront"`
	PostgresDB   string `env:"STOREFRONT_DB_NAME" envDefault:"storefront"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	RunMigrations bool `env:"RUN_MIGRATIONS" envDefault:"true"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Inventory
	InventoryBackend    string `env:"INVENTORY_BACKEND" envDefault:"postgres"`
	InventoryRESTURL    string `env:"INVENTORY_REST_URL" envDefault:""`
	InventoryRESTAPIKey string `env:"INVENTORY_REST_API_KEY" envDefault:""`
	ReconcileMode       string `env:"RECONCILE_MODE" envDefault:"read-write"`

	// Promotion
	PromoThreshold decimal.Decimal `env:"PROMO_THRESHOLD" envDefault:"100.00"`

	// Payments
	PaymentProvider string `env:"PAYMENT_PROVIDER" envDefault:"mock"`
	StripeSecretKey string `env:"STRIPE_SECRET_KEY" envDefault:""`
	PaymentCurrency string `env:"PAYMENT_CURRENCY" envDefault:"usd"`

	// Checkout rate limit per session (0 disables)
	CheckoutRateLimitRPS   float64 `env:"CHECKOUT_RATE_LIMIT_RPS" envDefault:"1"`
	CheckoutRateLimitBurst int     `env:"CHECKOUT_RATE_LIMIT_BURST" envDefault:"5"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.CartTTL <= 0 {
		return fmt.Errorf("CART_TTL_HOURS must be > 0, got %d", c.CartTTL)
	}
	if err := pkgconfig.OneOf("INVENTORY_BACKEND", c.InventoryBackend, InventoryPostgres, InventoryREST); err != nil {
		return err
	}
	if c.InventoryBackend == InventoryREST {
		if c.InventoryRESTURL == "" {
			return fmt.Errorf("INVENTORY_REST_URL is required when INVENTORY_BACKEND=rest")
		}
		if u, err := url.Parse(c.InventoryRESTURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("INVENTORY_REST_URL must be an absolute URL, got %q", c.InventoryRESTURL)
		}
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if err := pkgconfig.OneOf("RECONCILE_MODE", c.ReconcileMode, ReconcileReadWrite, ReconcileConditional); err != nil {
		return err
	}
	if c.PromoThreshold.IsNegative() {
		return fmt.Errorf("PROMO_THRESHOLD must not be negative, got %s", c.PromoThreshold)
	}
	if err := pkgconfig.OneOf("PAYMENT_PROVIDER", c.PaymentProvider, PaymentMock, PaymentStripe); err != nil {
		return err
	}
	if c.PaymentProvider == PaymentStripe && c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required when PAYMENT_PROVIDER=stripe")
	}
	if len(c.PaymentCurrency) != 3 {
		return fmt.Errorf("PAYMENT_CURRENCY must be a 3-letter ISO code, got %q", c.PaymentCurrency)
	}
	if c.CheckoutRateLimitRPS < 0 || c.CheckoutRateLimitBurst < 0 {
		return fmt.Errorf("checkout rate limit must not be negative")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Postgres returns the pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the Redis connection configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPass,
		DB:       c.RedisDB,
	}
}

// CartTTLDuration returns the cart expiry as a duration.
func (c *Config) CartTTLDuration() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}
