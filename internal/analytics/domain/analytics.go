package domain

import "time"

// ActivitySample is one pre-aggregated activity period for a wallet, produced by ingestion.
type ActivitySample struct {
	WalletID                string    `json:"wallet_id"`
	PeriodStart             time.Time `json:"period_start"`
	TransactionCount        int       `json:"transaction_count"`
	ActiveDays              int       `json:"active_days"`
	TotalVolume             float64   `json:"total_volume"`
	SequenceComplexityScore float64   `json:"sequence_complexity_score"`
}

// Active reports whether the sample shows any activity.
func (s ActivitySample) Active() bool {
	return s.TransactionCount > 0 || s.ActiveDays > 0
}

// ProductivityScore is a derived per-period score; every component is in [0,100].
type ProductivityScore struct {
	WalletID       string    `json:"wallet_id"`
	PeriodStart    time.Time `json:"period_start"`
	RetentionScore float64   `json:"retention_score"`
	ActivityScore  float64   `json:"activity_score"`
	AdoptionScore  float64   `json:"adoption_score"`
	TotalScore     float64   `json:"total_score"`
}

// CohortRecord tracks retention for wallets whose first activity fell in the same calendar week.
// A nil retention week has not been reached yet and carries no data.
type CohortRecord struct {
	CohortPeriod   string    `json:"cohort_period"`
	CohortStart    time.Time `json:"cohort_start"`
	WalletCount    int       `json:"wallet_count"`
	RetentionWeek0 *float64  `json:"retention_week_0"`
	RetentionWeek1 *float64  `json:"retention_week_1"`
	RetentionWeek2 *float64  `json:"retention_week_2"`
	RetentionWeek3 *float64  `json:"retention_week_3"`
	RetentionWeek4 *float64  `json:"retention_week_4"`
}

// Retention returns the retention for week n (0..4), or nil when unavailable.
func (c CohortRecord) Retention(n int) *float64 {
	switch n {
	case 0:
		return c.RetentionWeek0
	case 1:
		return c.RetentionWeek1
	case 2:
		return c.RetentionWeek2
	case 3:
		return c.RetentionWeek3
	case 4:
		return c.RetentionWeek4
	}
	return nil
}

// FunnelStageName is one step of the fixed adoption funnel.
type FunnelStageName string

const (
	StageCreated      FunnelStageName = "created"
	StageFirstTx      FunnelStageName = "first_tx"
	StageFeatureUsage FunnelStageName = "feature_usage"
	StageRecurring    FunnelStageName = "recurring"
	StageHighValue    FunnelStageName = "high_value"
)

// FunnelStages is the fixed stage order.
var FunnelStages = []FunnelStageName{StageCreated, StageFirstTx, StageFeatureUsage, StageRecurring, StageHighValue}

type FunnelStage struct {
	Stage                      FunnelStageName `json:"stage"`
	WalletCount                int             `json:"wallet_count"`
	PercentageOfTotal          float64         `json:"percentage_of_total"`
	ConversionRateFromPrevious float64         `json:"conversion_rate_from_previous"`
}

type SegmentStatus string

const (
	SegmentHealthy SegmentStatus = "healthy"
	SegmentAtRisk  SegmentStatus = "at_risk"
	SegmentChurn   SegmentStatus = "churn"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// SegmentBucket aggregates the wallets sharing a status and risk level.
type SegmentBucket struct {
	Status       SegmentStatus `json:"status"`
	RiskLevel    RiskLevel     `json:"risk_level"`
	WalletCount  int           `json:"wallet_count"`
	AvgScore     float64       `json:"avg_score"`
	AvgRetention float64       `json:"avg_retention"`
	AvgAdoption  float64       `json:"avg_adoption"`
	AvgActivity  float64       `json:"avg_activity"`
}
