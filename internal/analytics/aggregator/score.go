package aggregator

import (
	"sort"

	"github.com/soyaya/boardling-sub008/internal/analytics/domain"
)

// ComputeProductivityScore scores one sample. Sub-scores and the weighted total are clamped to [0,100].
func (a *Aggregator) ComputeProductivityScore(s domain.ActivitySample) domain.ProductivityScore {
	retention := clamp(float64(s.ActiveDays) / float64(a.cfg.PeriodDays) * 100)
	activity := clamp(float64(s.TransactionCount) / float64(a.cfg.TargetTransactions) * 100)
	adoption := clamp(s.SequenceComplexityScore)

	w := a.cfg.Weights
	total := clamp(w.Retention*retention + w.Activity*activity + w.Adoption*adoption)

	return domain.ProductivityScore{
		WalletID:       s.WalletID,
		PeriodStart:    s.PeriodStart,
		RetentionScore: round2(retention),
		ActivityScore:  round2(activity),
		AdoptionScore:  round2(adoption),
		TotalScore:     round2(total),
	}
}

// ScoreHistory scores every sample and groups the results per wallet in period order.
func (a *Aggregator) ScoreHistory(samples []domain.ActivitySample) map[string][]domain.ProductivityScore {
	out := make(map[string][]domain.ProductivityScore)
	for _, s := range samples {
		out[s.WalletID] = append(out[s.WalletID], a.ComputeProductivityScore(s))
	}
	for id := range out {
		scores := out[id]
		sort.SliceStable(scores, func(i, j int) bool { return scores[i].PeriodStart.Before(scores[j].PeriodStart) })
	}
	return out
}
