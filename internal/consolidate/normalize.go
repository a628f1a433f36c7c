package consolidate

import "github.com/dvloznov/report-consolidator/internal/domain"

// NormalizeTransactions drops transactions whose value is missing or zero and
// fills a missing date with domain.DateUnknown. An empty date string is kept.
func NormalizeTransactions(txs []domain.Transaction, stats *Stats) []domain.Transaction {
	if stats == nil {
		stats = &Stats{}
	}
	out := make([]domain.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Value == nil || *t.Value == 0 {
			stats.ZeroValueDropped++
			continue
		}
		if t.Date == nil {
			t.Date = domain.StringPtr(domain.DateUnknown)
			stats.DatesDefaulted++
		}
		out = append(out, t)
	}
	return out
}
