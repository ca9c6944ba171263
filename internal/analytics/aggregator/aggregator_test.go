package aggregator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyaya/boardling-sub008/internal/analytics/domain"
)

// monday is the start of ISO week 2026-W02.
var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func newAggregator(t *testing.T) *Aggregator {
	t.Helper()
	a, err := New(DefaultConfig())
	require.NoError(t, err)
	return a
}

func walletIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("w%02d", i)
	}
	return ids
}

func active(walletID string, at time.Time) domain.ActivitySample {
	return domain.ActivitySample{WalletID: walletID, PeriodStart: at, TransactionCount: 3, ActiveDays: 2}
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative weight", func(c *Config) { c.Weights.Activity = -0.1; c.Weights.Adoption = 0.7 }},
		{"weights do not sum to one", func(c *Config) { c.Weights.Retention = 0.5 }},
		{"thresholds inverted", func(c *Config) { c.AtRiskThreshold = 80 }},
		{"healthy above 100", func(c *Config) { c.HealthyThreshold = 101 }},
		{"zero period", func(c *Config) { c.PeriodDays = 0 }},
		{"zero recurring weeks", func(c *Config) { c.RecurringMinWeeks = 0 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestComputeCohorts_RetentionWeek1(t *testing.T) {
	a := newAggregator(t)
	ids := walletIDs(10)
	var samples []domain.ActivitySample
	for i, id := range ids {
		samples = append(samples, active(id, monday.Add(time.Duration(i)*time.Hour)))
		if i < 6 {
			samples = append(samples, active(id, monday.AddDate(0, 0, 8)))
		}
	}
	asOf := monday.AddDate(0, 0, 14)

	cohorts := a.ComputeCohorts(ids, samples, asOf)

	require.Len(t, cohorts, 1)
	c := cohorts[0]
	assert.Equal(t, "2026-W02", c.CohortPeriod)
	assert.Equal(t, monday, c.CohortStart)
	assert.Equal(t, 10, c.WalletCount)
	require.NotNil(t, c.RetentionWeek0)
	assert.Equal(t, 100.0, *c.RetentionWeek0)
	require.NotNil(t, c.RetentionWeek1)
	assert.Equal(t, 60.0, *c.RetentionWeek1)
	assert.Nil(t, c.RetentionWeek2, "week 2 has not elapsed and must carry no data")
	assert.Nil(t, c.RetentionWeek3)
	assert.Nil(t, c.RetentionWeek4)
}

func TestComputeCohorts_WeekInProgressHasNoData(t *testing.T) {
	a := newAggregator(t)
	samples := []domain.ActivitySample{active("w1", monday), active("w2", monday.Add(time.Hour))}
	weekOne := monday.AddDate(0, 0, 7)

	for _, asOf := range []time.Time{weekOne.Add(time.Hour), weekOne.AddDate(0, 0, 3), weekOne.AddDate(0, 0, 7).Add(-time.Second)} {
		cohorts := a.ComputeCohorts([]string{"w1", "w2"}, samples, asOf)
		require.Len(t, cohorts, 1)
		assert.Nil(t, cohorts[0].RetentionWeek1, "asOf %s", asOf)
	}

	cohorts := a.ComputeCohorts([]string{"w1", "w2"}, samples, weekOne.AddDate(0, 0, 7))
	require.NotNil(t, cohorts[0].RetentionWeek1)
	assert.Equal(t, 0.0, *cohorts[0].RetentionWeek1)
}

func TestComputeCohorts_ReachedWeekWithNoActivityIsZero(t *testing.T) {
	a := newAggregator(t)
	cohorts := a.ComputeCohorts([]string{"w1"}, []domain.ActivitySample{active("w1", monday)}, monday.AddDate(0, 0, 60))

	require.Len(t, cohorts, 1)
	for n := 1; n <= 4; n++ {
		r := cohorts[0].Retention(n)
		require.NotNil(t, r, "week %d", n)
		assert.Equal(t, 0.0, *r)
	}
}

func TestComputeCohorts_GroupsByFirstActiveWeek(t *testing.T) {
	a := newAggregator(t)
	later := monday.AddDate(0, 0, 14)
	samples := []domain.ActivitySample{
		active("a", monday.AddDate(0, 0, 3)),
		{WalletID: "b", PeriodStart: monday},
		active("b", later),
		active("c", later.AddDate(0, 0, 6)),
		active("outsider", monday),
	}

	cohorts := a.ComputeCohorts([]string{"a", "b", "c", "idle"}, samples, later.AddDate(0, 1, 0))

	require.Len(t, cohorts, 2)
	assert.Equal(t, monday, cohorts[0].CohortStart)
	assert.Equal(t, 1, cohorts[0].WalletCount)
	assert.Equal(t, later, cohorts[1].CohortStart)
	assert.Equal(t, 2, cohorts[1].WalletCount)
}

func TestComputeCohorts_Empty(t *testing.T) {
	a := newAggregator(t)
	assert.Empty(t, a.ComputeCohorts(nil, nil, monday))
}

func TestComputeFunnel_StagesAreMonotonic(t *testing.T) {
	a := newAggregator(t)
	samples := []domain.ActivitySample{
		// high value: every stage
		{WalletID: "hv", PeriodStart: monday, TransactionCount: 5, ActiveDays: 3, TotalVolume: 80, SequenceComplexityScore: 40},
		{WalletID: "hv", PeriodStart: monday.AddDate(0, 0, 7), TransactionCount: 5, ActiveDays: 3, TotalVolume: 40},
		// recurring but low volume
		{WalletID: "rec", PeriodStart: monday, TransactionCount: 1, ActiveDays: 1, SequenceComplexityScore: 25},
		{WalletID: "rec", PeriodStart: monday.AddDate(0, 0, 14), TransactionCount: 1, ActiveDays: 1},
		// feature usage, single week
		{WalletID: "feat", PeriodStart: monday, TransactionCount: 2, ActiveDays: 1, SequenceComplexityScore: 30},
		// first tx only
		{WalletID: "tx", PeriodStart: monday, TransactionCount: 1, ActiveDays: 1},
		// big volume without the earlier stages stays out of high_value
		{WalletID: "skip", PeriodStart: monday, TotalVolume: 1000, SequenceComplexityScore: 90},
	}
	ids := []string{"hv", "rec", "feat", "tx", "skip", "created"}

	funnel := a.ComputeFunnel(ids, samples)

	require.Len(t, funnel, 5)
	want := map[domain.FunnelStageName]int{
		domain.StageCreated: 6, domain.StageFirstTx: 4, domain.StageFeatureUsage: 3,
		domain.StageRecurring: 2, domain.StageHighValue: 1,
	}
	for i, st := range funnel {
		assert.Equal(t, domain.FunnelStages[i], st.Stage)
		assert.Equal(t, want[st.Stage], st.WalletCount, st.Stage)
		assert.GreaterOrEqual(t, st.PercentageOfTotal, 0.0)
		assert.LessOrEqual(t, st.PercentageOfTotal, 100.0)
		if i > 0 {
			assert.LessOrEqual(t, st.WalletCount, funnel[i-1].WalletCount)
		}
	}
	assert.Equal(t, 100.0, funnel[0].PercentageOfTotal)
	assert.Equal(t, 0.0, funnel[0].ConversionRateFromPrevious)
	assert.InDelta(t, 66.67, funnel[1].PercentageOfTotal, 0.001)
	assert.InDelta(t, 75.0, funnel[2].ConversionRateFromPrevious, 0.001)
	assert.InDelta(t, 50.0, funnel[4].ConversionRateFromPrevious, 0.001)
}

func TestComputeFunnel_Empty(t *testing.T) {
	a := newAggregator(t)
	funnel := a.ComputeFunnel(nil, nil)
	require.Len(t, funnel, 5)
	for _, st := range funnel {
		assert.Zero(t, st.WalletCount)
		assert.Zero(t, st.PercentageOfTotal)
		assert.Zero(t, st.ConversionRateFromPrevious)
	}
}

func TestComputeProductivityScore(t *testing.T) {
	a := newAggregator(t)
	s := a.ComputeProductivityScore(domain.ActivitySample{
		WalletID: "w1", PeriodStart: monday, ActiveDays: 30, TransactionCount: 25, SequenceComplexityScore: 80,
	})
	assert.InDelta(t, 100, s.RetentionScore, 0.001)
	assert.InDelta(t, 50, s.ActivityScore, 0.001)
	assert.InDelta(t, 80, s.AdoptionScore, 0.001)
	assert.InDelta(t, 79, s.TotalScore, 0.001)
	assert.Equal(t, "w1", s.WalletID)
}

func TestComputeProductivityScore_Clamps(t *testing.T) {
	a := newAggregator(t)
	high := a.ComputeProductivityScore(domain.ActivitySample{ActiveDays: 90, TransactionCount: 5000, SequenceComplexityScore: 250})
	assert.Equal(t, 100.0, high.RetentionScore)
	assert.Equal(t, 100.0, high.ActivityScore)
	assert.Equal(t, 100.0, high.AdoptionScore)
	assert.Equal(t, 100.0, high.TotalScore)

	low := a.ComputeProductivityScore(domain.ActivitySample{ActiveDays: -3, TransactionCount: -1, SequenceComplexityScore: -20})
	assert.Zero(t, low.TotalScore)
	assert.Zero(t, low.RetentionScore)
}

func TestScoreHistory_OrdersByPeriod(t *testing.T) {
	a := newAggregator(t)
	history := a.ScoreHistory([]domain.ActivitySample{
		{WalletID: "w1", PeriodStart: monday.AddDate(0, 1, 0), ActiveDays: 10},
		{WalletID: "w1", PeriodStart: monday, ActiveDays: 20},
		{WalletID: "w2", PeriodStart: monday},
	})
	require.Len(t, history["w1"], 2)
	assert.True(t, history["w1"][0].PeriodStart.Before(history["w1"][1].PeriodStart))
	assert.Len(t, history["w2"], 1)
}

func score(total float64, at time.Time) domain.ProductivityScore {
	return domain.ProductivityScore{PeriodStart: at, TotalScore: total, RetentionScore: total, ActivityScore: total, AdoptionScore: total}
}

func TestSegment_StatusCutoffs(t *testing.T) {
	a := newAggregator(t)
	testCases := []struct {
		total float64
		want  domain.SegmentStatus
	}{
		{100, domain.SegmentHealthy},
		{75, domain.SegmentHealthy},
		{74.99, domain.SegmentAtRisk},
		{50, domain.SegmentAtRisk},
		{49.99, domain.SegmentChurn},
		{0, domain.SegmentChurn},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprint(tc.total), func(t *testing.T) {
			buckets := a.Segment(map[string][]domain.ProductivityScore{"w": {score(tc.total, monday)}})
			require.Len(t, buckets, 1)
			assert.Equal(t, tc.want, buckets[0].Status)
			assert.Equal(t, domain.RiskLow, buckets[0].RiskLevel)
		})
	}
}

func TestSegment_RiskFromTrendAndVolatility(t *testing.T) {
	a := newAggregator(t)
	w2 := monday.AddDate(0, 0, 7)
	w3 := monday.AddDate(0, 0, 14)
	buckets := a.Segment(map[string][]domain.ProductivityScore{
		"steady":   {score(80, monday), score(81, w2), score(80, w3)},
		"sliding":  {score(90, monday), score(86, w2), score(82, w3)},
		"crashing": {score(95, monday), score(70, w2), score(40, w3)},
	})

	got := map[domain.SegmentStatus]domain.RiskLevel{}
	for _, b := range buckets {
		got[b.Status] = b.RiskLevel
	}
	assert.Equal(t, domain.RiskHigh, got[domain.SegmentChurn])
	require.Len(t, buckets, 3)
	assert.Equal(t, domain.SegmentHealthy, buckets[0].Status)
	assert.Equal(t, domain.RiskLow, buckets[0].RiskLevel)
	assert.Equal(t, domain.SegmentHealthy, buckets[1].Status)
	assert.Equal(t, domain.RiskMedium, buckets[1].RiskLevel)
}

func TestSegment_PartitionIsComplete(t *testing.T) {
	a := newAggregator(t)
	input := map[string][]domain.ProductivityScore{
		"a":     {score(90, monday)},
		"b":     {score(91, monday)},
		"c":     {score(60, monday)},
		"d":     {score(10, monday)},
		"empty": nil,
	}
	buckets := a.Segment(input)

	sum := 0
	for _, b := range buckets {
		sum += b.WalletCount
	}
	assert.Equal(t, len(input), sum)

	healthy := buckets[0]
	assert.Equal(t, domain.SegmentHealthy, healthy.Status)
	assert.Equal(t, 2, healthy.WalletCount)
	assert.InDelta(t, 90.5, healthy.AvgScore, 0.001)
	assert.InDelta(t, 90.5, healthy.AvgRetention, 0.001)

	last := buckets[len(buckets)-1]
	assert.Equal(t, domain.SegmentChurn, last.Status)
	assert.Equal(t, domain.RiskHigh, last.RiskLevel)
	assert.Equal(t, 1, last.WalletCount)
	assert.Zero(t, last.AvgScore)
}

func TestSegment_Empty(t *testing.T) {
	a := newAggregator(t)
	assert.Empty(t, a.Segment(nil))
}

func TestSegment_DoesNotMutateInput(t *testing.T) {
	a := newAggregator(t)
	history := []domain.ProductivityScore{score(50, monday.AddDate(0, 0, 7)), score(90, monday)}
	a.Segment(map[string][]domain.ProductivityScore{"w": history})
	assert.Equal(t, 50.0, history[0].TotalScore)
}
