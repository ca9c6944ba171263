package config

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.JWTIssuer != "boardling-auth" || cfg.JWTAudience != "boardling-api" {
		t.Errorf("issuer/audience = %q/%q", cfg.JWTIssuer, cfg.JWTAudience)
	}
	if cfg.TrialDays != 30 {
		t.Errorf("TrialDays = %d, want 30", cfg.TrialDays)
	}
	if cfg.RateLimitPerMinute != 120 {
		t.Errorf("RateLimitPerMinute = %d, want 120", cfg.RateLimitPerMinute)
	}
	if cfg.EventsTopic != "boardling-events" {
		t.Errorf("EventsTopic = %q", cfg.EventsTopic)
	}
	if cfg.IngestTopic != "boardling-activity-samples" || cfg.KafkaGroupID != "boardling-ingest-worker" {
		t.Errorf("ingest topic/group = %q/%q", cfg.IngestTopic, cfg.KafkaGroupID)
	}
	if cfg.SettlementTopic != "boardling-payment-settlements" || cfg.SettlementGroupID != "boardling-settlement-worker" {
		t.Errorf("settlement topic/group = %q/%q", cfg.SettlementTopic, cfg.SettlementGroupID)
	}
	price, err := cfg.BaseMonthlyPriceDecimal()
	if err != nil {
		t.Fatalf("BaseMonthlyPriceDecimal: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("price = %s, want 0.1", price)
	}
	if gc := cfg.GateConfig(); !gc.WalletAccessPrice.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("WalletAccessPrice = %s, want 0.01", gc.WalletAccessPrice)
	}
	ac := cfg.AggregatorConfig()
	if ac.Weights.Retention != 0.4 || ac.Weights.Activity != 0.3 || ac.Weights.Adoption != 0.3 {
		t.Errorf("weights = %+v", ac.Weights)
	}
	if ac.HealthyThreshold != 75 || ac.AtRiskThreshold != 50 {
		t.Errorf("thresholds = %v/%v", ac.HealthyThreshold, ac.AtRiskThreshold)
	}
	if cfg.SampleLookback() != 180*24*time.Hour {
		t.Errorf("SampleLookback = %v", cfg.SampleLookback())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("TRIAL_DAYS", "14")
	os.Setenv("BASE_MONTHLY_PRICE", "0.25")
	os.Setenv("WALLET_ACCESS_PRICE", "0.02")
	os.Setenv("SCORE_WEIGHT_RETENTION", "0.5")
	os.Setenv("SCORE_WEIGHT_ACTIVITY", "0.25")
	os.Setenv("SCORE_WEIGHT_ADOPTION", "0.25")
	os.Setenv("SEGMENT_HEALTHY_THRESHOLD", "80")
	os.Setenv("SEGMENT_AT_RISK_THRESHOLD", "40")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	gc := cfg.GateConfig()
	if gc.TrialDays != 14 || !gc.BaseMonthlyPrice.Equal(decimal.RequireFromString("0.25")) || !gc.WalletAccessPrice.Equal(decimal.RequireFromString("0.02")) {
		t.Errorf("GateConfig = %+v", gc)
	}
	ac := cfg.AggregatorConfig()
	if ac.Weights.Retention != 0.5 || ac.HealthyThreshold != 80 || ac.AtRiskThreshold != 40 {
		t.Errorf("AggregatorConfig = %+v", ac)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"non-numeric price", "BASE_MONTHLY_PRICE", "cheap"},
		{"zero price", "BASE_MONTHLY_PRICE", "0"},
		{"negative wallet access price", "WALLET_ACCESS_PRICE", "-0.01"},
		{"zero trial", "TRIAL_DAYS", "0"},
		{"negative rate limit", "RATE_LIMIT_PER_MINUTE", "-1"},
		{"weights off", "SCORE_WEIGHT_RETENTION", "0.9"},
		{"inverted thresholds", "SEGMENT_AT_RISK_THRESHOLD", "90"},
		{"zero lookback", "SAMPLE_LOOKBACK_DAYS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv(tt.key, tt.val)
			defer os.Clearenv()
			if _, err := Load(); err == nil {
				t.Errorf("Load with %s=%s: expected error", tt.key, tt.val)
			}
		})
	}
}

func TestAccessTTL(t *testing.T) {
	cfg := &Config{JWTAccessTTL: "30m"}
	if cfg.AccessTTL() != 30*time.Minute {
		t.Errorf("AccessTTL = %v", cfg.AccessTTL())
	}
	cfg.JWTAccessTTL = "soon"
	if cfg.AccessTTL() != 15*time.Minute {
		t.Errorf("invalid AccessTTL fallback = %v", cfg.AccessTTL())
	}
}

func TestKafkaBrokersList(t *testing.T) {
	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should have no brokers")
	}
	cfg := &Config{KafkaBrokers: " k1:9092, ,k2:9092 "}
	got := cfg.KafkaBrokersList()
	if len(got) != 2 || got[0] != "k1:9092" || got[1] != "k2:9092" {
		t.Errorf("KafkaBrokersList = %v", got)
	}
}
