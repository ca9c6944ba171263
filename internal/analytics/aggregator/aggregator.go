// Package aggregator turns raw per-wallet activity samples into cohorts, funnels,
// productivity scores and segments. Every function is a pure function of its arguments:
// nothing is retained between calls, so an Aggregator is safe for concurrent use.
package aggregator

import (
	"errors"
	"math"
	"time"
)

// ScoreWeights weights the productivity sub-scores in the total score.
type ScoreWeights struct {
	Retention float64
	Activity  float64
	Adoption  float64
}

// Config holds the tunable parameters of the aggregations.
type Config struct {
	Weights ScoreWeights
	// HealthyThreshold and AtRiskThreshold are the segment cut-offs on the total score:
	// score >= HealthyThreshold is healthy, >= AtRiskThreshold is at risk, below is churn.
	HealthyThreshold float64
	AtRiskThreshold  float64

	// PeriodDays is the length of one activity sample period; retention is active days over it.
	PeriodDays int
	// TargetTransactions is the per-period transaction count that earns a full activity score.
	TargetTransactions int

	// Funnel stage thresholds.
	FeatureUsageMinComplexity float64
	RecurringMinWeeks         int
	HighValueMinVolume        float64

	// Risk thresholds on total-score trend (drop from first to last period) and volatility (std-dev).
	HighRiskDrop         float64
	HighRiskVolatility   float64
	MediumRiskDrop       float64
	MediumRiskVolatility float64
}

// DefaultConfig returns the defaults: weights 0.4/0.3/0.3 and cut-offs 75/50.
func DefaultConfig() Config {
	return Config{
		Weights:                   ScoreWeights{Retention: 0.4, Activity: 0.3, Adoption: 0.3},
		HealthyThreshold:          75,
		AtRiskThreshold:           50,
		PeriodDays:                30,
		TargetTransactions:        50,
		FeatureUsageMinComplexity: 20,
		RecurringMinWeeks:         2,
		HighValueMinVolume:        100,
		HighRiskDrop:              20,
		HighRiskVolatility:        20,
		MediumRiskDrop:            5,
		MediumRiskVolatility:      10,
	}
}

// Validate reports the first inconsistent parameter.
func (c Config) Validate() error {
	w := c.Weights
	if w.Retention < 0 || w.Activity < 0 || w.Adoption < 0 {
		return errors.New("score weights must be non-negative")
	}
	if math.Abs(w.Retention+w.Activity+w.Adoption-1) > 1e-9 {
		return errors.New("score weights must sum to 1")
	}
	if c.AtRiskThreshold < 0 || c.HealthyThreshold > 100 || c.AtRiskThreshold >= c.HealthyThreshold {
		return errors.New("segment thresholds must satisfy 0 <= at_risk < healthy <= 100")
	}
	if c.PeriodDays <= 0 || c.TargetTransactions <= 0 {
		return errors.New("period days and target transactions must be positive")
	}
	if c.RecurringMinWeeks < 1 {
		return errors.New("recurring min weeks must be at least 1")
	}
	return nil
}

// Aggregator computes derived analytics with a fixed configuration.
type Aggregator struct {
	cfg Config
}

// New returns an Aggregator. It returns an error if cfg is inconsistent.
func New(cfg Config) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{cfg: cfg}, nil
}

// Config returns the aggregator's configuration.
func (a *Aggregator) Config() Config { return a.cfg }

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

// weekStart returns Monday 00:00 UTC of t's calendar week.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}

func uniqueIDs(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
