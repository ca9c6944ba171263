package aggregator

import (
	"fmt"
	"sort"
	"time"

	"github.com/soyaya/boardling-sub008/internal/analytics/domain"
)

const retentionWeeks = 4

// ComputeCohorts groups walletIDs by the calendar week of their first active sample and reports,
// for weeks 1..4 after it, the percentage of the cohort active in that week. A week counts only once
// it has fully elapsed by asOf; until then it is nil. Wallets without any active sample belong to no cohort.
func (a *Aggregator) ComputeCohorts(walletIDs []string, samples []domain.ActivitySample, asOf time.Time) []domain.CohortRecord {
	wanted := uniqueIDs(walletIDs)
	activeWeeks := make(map[string]map[time.Time]bool)
	first := make(map[string]time.Time)

	for _, s := range samples {
		if _, ok := wanted[s.WalletID]; !ok || !s.Active() {
			continue
		}
		wk := weekStart(s.PeriodStart)
		if activeWeeks[s.WalletID] == nil {
			activeWeeks[s.WalletID] = make(map[time.Time]bool)
		}
		activeWeeks[s.WalletID][wk] = true
		if f, ok := first[s.WalletID]; !ok || wk.Before(f) {
			first[s.WalletID] = wk
		}
	}

	members := make(map[time.Time][]string)
	for walletID, wk := range first {
		members[wk] = append(members[wk], walletID)
	}
	starts := make([]time.Time, 0, len(members))
	for wk := range members {
		starts = append(starts, wk)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	asOf = asOf.UTC()
	out := make([]domain.CohortRecord, 0, len(starts))
	for _, start := range starts {
		wallets := members[start]
		var weeks [retentionWeeks + 1]*float64
		full := 100.0
		weeks[0] = &full
		for n := 1; n <= retentionWeeks; n++ {
			target := start.AddDate(0, 0, 7*n)
			if target.AddDate(0, 0, 7).After(asOf) {
				continue
			}
			active := 0
			for _, w := range wallets {
				if activeWeeks[w][target] {
					active++
				}
			}
			pct := percent(active, len(wallets))
			weeks[n] = &pct
		}
		year, week := start.ISOWeek()
		out = append(out, domain.CohortRecord{
			CohortPeriod:   fmt.Sprintf("%04d-W%02d", year, week),
			CohortStart:    start,
			WalletCount:    len(wallets),
			RetentionWeek0: weeks[0],
			RetentionWeek1: weeks[1],
			RetentionWeek2: weeks[2],
			RetentionWeek3: weeks[3],
			RetentionWeek4: weeks[4],
		})
	}
	return out
}
