package aggregator

import (
	"time"

	"github.com/soyaya/boardling-sub008/internal/analytics/domain"
)

type walletTotals struct {
	transactions  int
	maxComplexity float64
	volume        float64
	activeWeeks   map[time.Time]struct{}
}

// ComputeFunnel counts walletIDs through the fixed stage order. A wallet reaches a stage only if it
// reached every earlier one, so counts never increase down the funnel.
func (a *Aggregator) ComputeFunnel(walletIDs []string, samples []domain.ActivitySample) []domain.FunnelStage {
	wanted := uniqueIDs(walletIDs)
	totals := make(map[string]*walletTotals, len(wanted))
	for id := range wanted {
		totals[id] = &walletTotals{activeWeeks: make(map[time.Time]struct{})}
	}
	for _, s := range samples {
		t, ok := totals[s.WalletID]
		if !ok {
			continue
		}
		t.transactions += s.TransactionCount
		t.volume += s.TotalVolume
		if s.SequenceComplexityScore > t.maxComplexity {
			t.maxComplexity = s.SequenceComplexityScore
		}
		if s.Active() {
			t.activeWeeks[weekStart(s.PeriodStart)] = struct{}{}
		}
	}

	reached := func(t *walletTotals, stage domain.FunnelStageName) bool {
		switch stage {
		case domain.StageCreated:
			return true
		case domain.StageFirstTx:
			return t.transactions > 0
		case domain.StageFeatureUsage:
			return t.maxComplexity >= a.cfg.FeatureUsageMinComplexity
		case domain.StageRecurring:
			return len(t.activeWeeks) >= a.cfg.RecurringMinWeeks
		case domain.StageHighValue:
			return t.volume >= a.cfg.HighValueMinVolume
		}
		return false
	}

	counts := make([]int, len(domain.FunnelStages))
	for _, t := range totals {
		for i, stage := range domain.FunnelStages {
			if !reached(t, stage) {
				break
			}
			counts[i]++
		}
	}

	total := len(wanted)
	out := make([]domain.FunnelStage, len(domain.FunnelStages))
	for i, stage := range domain.FunnelStages {
		fs := domain.FunnelStage{
			Stage:             stage,
			WalletCount:       counts[i],
			PercentageOfTotal: percent(counts[i], total),
		}
		if i > 0 {
			fs.ConversionRateFromPrevious = percent(counts[i], counts[i-1])
		}
		out[i] = fs
	}
	return out
}
