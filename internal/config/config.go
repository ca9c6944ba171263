// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/soyaya/boardling-sub008/internal/analytics/aggregator"
	entservice "github.com/soyaya/boardling-sub008/internal/entitlement/service"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// JWTPublicKey is the PEM-encoded public key (RSA or ECDSA) or a path to it; verifies access tokens.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTPrivateKey is only needed by tools that mint tokens (cmd/seed).
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	JWTIssuer     string `mapstructure:"JWT_ISSUER"`
	JWTAudience   string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the lifetime of minted access tokens (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`

	// TrialDays is the free trial length granted to new accounts.
	TrialDays int `mapstructure:"TRIAL_DAYS"`
	// BaseMonthlyPrice is the one-month premium price in ZEC, as a decimal string.
	BaseMonthlyPrice string `mapstructure:"BASE_MONTHLY_PRICE"`
	// WalletAccessPrice is what a non-owner pays to read one monetizable wallet, in ZEC.
	WalletAccessPrice string `mapstructure:"WALLET_ACCESS_PRICE"`

	ScoreWeightRetention    float64 `mapstructure:"SCORE_WEIGHT_RETENTION"`
	ScoreWeightActivity     float64 `mapstructure:"SCORE_WEIGHT_ACTIVITY"`
	ScoreWeightAdoption     float64 `mapstructure:"SCORE_WEIGHT_ADOPTION"`
	SegmentHealthyThreshold float64 `mapstructure:"SEGMENT_HEALTHY_THRESHOLD"`
	SegmentAtRiskThreshold  float64 `mapstructure:"SEGMENT_AT_RISK_THRESHOLD"`
	// SampleLookbackDays bounds how far back activity samples are loaded for an analytics request.
	SampleLookbackDays int `mapstructure:"SAMPLE_LOOKBACK_DAYS"`

	// AccessPolicyFile optionally replaces the built-in wallet access Rego policy.
	AccessPolicyFile string `mapstructure:"ACCESS_POLICY_FILE"`

	// RedisAddr enables the shared rate limiter; empty means per-process limiting only.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RateLimitPerMinute is the per-requester request budget; 0 disables rate limiting.
	RateLimitPerMinute int `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	// OTelEndpoint is the OTLP gRPC collector; empty disables export.
	OTelEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
	OTelInsecure    bool   `mapstructure:"OTEL_INSECURE"`

	// KafkaBrokers is a comma-separated broker list; empty disables domain event publishing.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// EventsTopic receives privacy, entitlement and payment events.
	EventsTopic string `mapstructure:"EVENTS_KAFKA_TOPIC"`
	// IngestTopic carries pre-aggregated activity samples consumed by cmd/worker.
	IngestTopic  string `mapstructure:"INGEST_KAFKA_TOPIC"`
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// SettlementTopic carries observed shielded payments ({intent_id, tx_ref}) consumed by cmd/worker.
	SettlementTopic   string `mapstructure:"SETTLEMENT_KAFKA_TOPIC"`
	SettlementGroupID string `mapstructure:"SETTLEMENT_KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()

	def := aggregator.DefaultConfig()
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_ISSUER", "boardling-auth")
	v.SetDefault("JWT_AUDIENCE", "boardling-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("TRIAL_DAYS", entservice.DefaultTrialDays)
	v.SetDefault("BASE_MONTHLY_PRICE", entservice.DefaultBaseMonthlyPrice.String())
	v.SetDefault("WALLET_ACCESS_PRICE", entservice.DefaultWalletAccessPrice.String())
	v.SetDefault("SCORE_WEIGHT_RETENTION", def.Weights.Retention)
	v.SetDefault("SCORE_WEIGHT_ACTIVITY", def.Weights.Activity)
	v.SetDefault("SCORE_WEIGHT_ADOPTION", def.Weights.Adoption)
	v.SetDefault("SEGMENT_HEALTHY_THRESHOLD", def.HealthyThreshold)
	v.SetDefault("SEGMENT_AT_RISK_THRESHOLD", def.AtRiskThreshold)
	v.SetDefault("SAMPLE_LOOKBACK_DAYS", 180)
	v.SetDefault("ACCESS_POLICY_FILE", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_SERVICE_NAME", "boardling-api")
	v.SetDefault("OTEL_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("EVENTS_KAFKA_TOPIC", "boardling-events")
	v.SetDefault("INGEST_KAFKA_TOPIC", "boardling-activity-samples")
	v.SetDefault("KAFKA_GROUP_ID", "boardling-ingest-worker")
	v.SetDefault("SETTLEMENT_KAFKA_TOPIC", "boardling-payment-settlements")
	v.SetDefault("SETTLEMENT_KAFKA_GROUP_ID", "boardling-settlement-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.TrialDays <= 0 {
		return nil, errors.New("config: TRIAL_DAYS must be positive")
	}
	if _, err := cfg.BaseMonthlyPriceDecimal(); err != nil {
		return nil, err
	}
	if _, err := cfg.WalletAccessPriceDecimal(); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute < 0 {
		return nil, errors.New("config: RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if cfg.SampleLookbackDays <= 0 {
		return nil, errors.New("config: SAMPLE_LOOKBACK_DAYS must be positive")
	}
	if err := cfg.AggregatorConfig().Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// BaseMonthlyPriceDecimal parses BaseMonthlyPrice; it must be a positive decimal.
func (c *Config) BaseMonthlyPriceDecimal() (decimal.Decimal, error) {
	return positiveDecimal("BASE_MONTHLY_PRICE", c.BaseMonthlyPrice)
}

// WalletAccessPriceDecimal parses WalletAccessPrice; it must be a positive decimal.
func (c *Config) WalletAccessPriceDecimal() (decimal.Decimal, error) {
	return positiveDecimal("WALLET_ACCESS_PRICE", c.WalletAccessPrice)
}

func positiveDecimal(key, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: %s: %w", key, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("config: %s must be positive", key)
	}
	return d, nil
}

// GateConfig returns the entitlement rules configuration. Load has already validated the prices.
func (c *Config) GateConfig() entservice.GateConfig {
	price, _ := c.BaseMonthlyPriceDecimal()
	access, _ := c.WalletAccessPriceDecimal()
	return entservice.GateConfig{TrialDays: c.TrialDays, BaseMonthlyPrice: price, WalletAccessPrice: access}
}

// AggregatorConfig overlays the configured weights and segment cut-offs on the aggregator defaults.
func (c *Config) AggregatorConfig() aggregator.Config {
	ac := aggregator.DefaultConfig()
	ac.Weights = aggregator.ScoreWeights{
		Retention: c.ScoreWeightRetention,
		Activity:  c.ScoreWeightActivity,
		Adoption:  c.ScoreWeightAdoption,
	}
	ac.HealthyThreshold = c.SegmentHealthyThreshold
	ac.AtRiskThreshold = c.SegmentAtRiskThreshold
	return ac
}

// SampleLookback returns SampleLookbackDays as a duration.
func (c *Config) SampleLookback() time.Duration {
	return time.Duration(c.SampleLookbackDays) * 24 * time.Hour
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
