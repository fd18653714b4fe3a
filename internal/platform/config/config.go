package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "taxbridge/pkg/platform/strings"
)

// Config captures process level configuration so main stays lean.
type Config struct {
	Addr string

	// DatabaseURL selects the postgres-backed stores; empty falls back to the
	// in-memory stores (development and tests).
	DatabaseURL string

	// RedisURL enables the attempt idempotency cache; empty disables it.
	RedisURL string

	// AttemptCacheTTL bounds how long cached terminal outcomes live.
	AttemptCacheTTL time.Duration

	// KafkaBrokers enables the reconciliation report sink; empty disables it.
	KafkaBrokers []string
	KafkaTopic   string

	// AdminJWTSigningKey verifies tokens on the admin routes.
	AdminJWTSigningKey string

	// AdminTokenHash is the bcrypt hash of the break-glass token that guards
	// the token issuing endpoint.
	AdminTokenHash string

	// PendingTTL is how long a Pending reservation may sit before a later
	// caller may reclaim it as abandoned.
	PendingTTL time.Duration

	// InFlightGrace is how old a committed event must be before a missing
	// artifact counts as a reconciliation finding.
	InFlightGrace time.Duration

	// AmountTolerance bounds acceptable rounding drift between the event
	// amount and the committed artifact amount.
	AmountTolerance float64

	// ProducerConfigPath points at the YAML file declaring the producer
	// priority list and per-producer eligibility parameters.
	ProducerConfigPath string

	// ReconcileInterval runs the background reconciliation loop when > 0.
	ReconcileInterval time.Duration
	// ReconcileWindow sizes the scanned window for the background loop.
	ReconcileWindow time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:               getEnv("TAXBRIDGE_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		KafkaTopic:         getEnv("KAFKA_FINDINGS_TOPIC", "taxbridge.reconciliation.findings"),
		AdminJWTSigningKey: os.Getenv("ADMIN_JWT_SIGNING_KEY"),
		AdminTokenHash:     os.Getenv("ADMIN_TOKEN_HASH"),
		AttemptCacheTTL:    getDuration("ATTEMPT_CACHE_TTL", 24*time.Hour),
		PendingTTL:         getDuration("PENDING_TTL", 15*time.Minute),
		InFlightGrace:      getDuration("INFLIGHT_GRACE", time.Hour),
		AmountTolerance:    getFloat("AMOUNT_TOLERANCE", 0.01),
		ProducerConfigPath: getEnv("PRODUCER_CONFIG", "producers.yaml"),
		ReconcileInterval:  getDuration("RECONCILE_INTERVAL", 0),
		ReconcileWindow:    getDuration("RECONCILE_WINDOW", 24*time.Hour),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = platformstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}

	if cfg.AdminJWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.AdminJWTSigningKey = "dev-secret-key-change-in-production"
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
