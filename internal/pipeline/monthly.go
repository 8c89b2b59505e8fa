package pipeline

import (
	"fmt"
	"time"

	"github.com/salescrm/crm-api/internal/domain"
)

var monthAbbrev = [12]string{"Jan", "Fev", "Mar", "Abr", "Mai", "Jun", "Jul", "Ago", "Set", "Out", "Nov", "Dez"}

// MonthLabel formats t as "Mon/YYYY", for example "Mar/2025"
func MonthLabel(t time.Time) string {
	return fmt.Sprintf("%s/%d", monthAbbrev[t.Month()-1], t.Year())
}

// MonthRange returns the first day of each of the n months ending at ref's month, oldest first
func MonthRange(n int, ref time.Time) []time.Time {
	if n <= 0 {
		return []time.Time{}
	}
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[i] = time.Date(ref.Year(), ref.Month()-time.Month(n-1-i), 1, 0, 0, 0, 0, ref.Location())
	}
	return out
}

// MonthlyBuckets sums ops into n monthly buckets ending at now's month, keyed by
// creation time. Months without opportunities are present with zero value.
// Opportunities outside the window are ignored.
func MonthlyBuckets(ops []domain.OpportunityDTO, n int, now time.Time) []domain.MonthlySales {
	return MonthlyBucketsBy(ops, n, now, CreatedAt)
}

// MonthlyBucketsBy is MonthlyBuckets keyed by the timestamp at returns.
// Opportunities for which at returns nil are skipped.
func MonthlyBucketsBy(ops []domain.OpportunityDTO, n int, now time.Time, at func(domain.OpportunityDTO) *time.Time) []domain.MonthlySales {
	months := MonthRange(n, now)
	out := make([]domain.MonthlySales, len(months))
	index := make(map[string]int, len(months))
	for i, m := range months {
		label := MonthLabel(m)
		out[i] = domain.MonthlySales{Month: label}
		index[label] = i
	}

	for _, op := range ops {
		ts := at(op)
		if ts == nil {
			continue
		}
		i, ok := index[MonthLabel(ts.In(now.Location()))]
		if !ok {
			continue
		}
		out[i].Value += op.TotalValue
		out[i].Count++
	}
	return out
}

// CreatedAt selects the creation time of an opportunity
func CreatedAt(op domain.OpportunityDTO) *time.Time {
	return &op.CreatedAt
}

// ClosedAt selects the closing time of an opportunity, nil while it is open
func ClosedAt(op domain.OpportunityDTO) *time.Time {
	return op.ClosedAt
}
