package aggregator

import (
	"math"
	"sort"

	"github.com/soyaya/boardling-sub008/internal/analytics/domain"
)

var (
	statusOrder = []domain.SegmentStatus{domain.SegmentHealthy, domain.SegmentAtRisk, domain.SegmentChurn}
	riskOrder   = []domain.RiskLevel{domain.RiskLow, domain.RiskMedium, domain.RiskHigh}
)

type bucketKey struct {
	status domain.SegmentStatus
	risk   domain.RiskLevel
}

type bucketSums struct {
	count                                int
	score, retention, adoption, activity float64
}

// Segment partitions wallets by the status of their latest score and the risk implied by their
// score history. Wallets with no scores fall into churn/high. The bucket counts always sum to
// len(scoresByWallet); only non-empty buckets are returned.
func (a *Aggregator) Segment(scoresByWallet map[string][]domain.ProductivityScore) []domain.SegmentBucket {
	ids := make([]string, 0, len(scoresByWallet))
	for id := range scoresByWallet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	sums := make(map[bucketKey]*bucketSums)
	for _, id := range ids {
		history := sortedByPeriod(scoresByWallet[id])
		var latest domain.ProductivityScore
		key := bucketKey{status: domain.SegmentChurn, risk: domain.RiskHigh}
		if len(history) > 0 {
			latest = history[len(history)-1]
			key = bucketKey{status: a.status(latest.TotalScore), risk: a.risk(history)}
		}
		b := sums[key]
		if b == nil {
			b = &bucketSums{}
			sums[key] = b
		}
		b.count++
		b.score += latest.TotalScore
		b.retention += latest.RetentionScore
		b.adoption += latest.AdoptionScore
		b.activity += latest.ActivityScore
	}

	out := make([]domain.SegmentBucket, 0, len(sums))
	for _, st := range statusOrder {
		for _, rl := range riskOrder {
			b, ok := sums[bucketKey{status: st, risk: rl}]
			if !ok {
				continue
			}
			n := float64(b.count)
			out = append(out, domain.SegmentBucket{
				Status:       st,
				RiskLevel:    rl,
				WalletCount:  b.count,
				AvgScore:     round2(b.score / n),
				AvgRetention: round2(b.retention / n),
				AvgAdoption:  round2(b.adoption / n),
				AvgActivity:  round2(b.activity / n),
			})
		}
	}
	return out
}

func (a *Aggregator) status(score float64) domain.SegmentStatus {
	switch {
	case score >= a.cfg.HealthyThreshold:
		return domain.SegmentHealthy
	case score >= a.cfg.AtRiskThreshold:
		return domain.SegmentAtRisk
	default:
		return domain.SegmentChurn
	}
}

// risk grades a chronological score history by its overall drop and its volatility.
func (a *Aggregator) risk(history []domain.ProductivityScore) domain.RiskLevel {
	drop := history[0].TotalScore - history[len(history)-1].TotalScore
	vol := volatility(history)
	switch {
	case drop >= a.cfg.HighRiskDrop || vol >= a.cfg.HighRiskVolatility:
		return domain.RiskHigh
	case drop >= a.cfg.MediumRiskDrop || vol >= a.cfg.MediumRiskVolatility:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// volatility is the population standard deviation of the total scores.
func volatility(history []domain.ProductivityScore) float64 {
	if len(history) < 2 {
		return 0
	}
	var mean float64
	for _, s := range history {
		mean += s.TotalScore
	}
	mean /= float64(len(history))
	var sq float64
	for _, s := range history {
		d := s.TotalScore - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(history)))
}

func sortedByPeriod(scores []domain.ProductivityScore) []domain.ProductivityScore {
	out := make([]domain.ProductivityScore, len(scores))
	copy(out, scores)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out
}
