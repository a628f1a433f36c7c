package consolidate

import (
	"fmt"

	"github.com/dvloznov/report-consolidator/internal/domain"
)

// FlattenMixed removes every descendant of a category that has both children
// and attached transactions, moving the descendants' transactions onto it.
// Passes repeat until one finds no mixed category.
func FlattenMixed(cats []domain.Category, txs []domain.Transaction, stats *Stats) ([]domain.Category, []domain.Transaction, error) {
	if stats == nil {
		stats = &Stats{}
	}
	g := newGraph(append([]domain.Category(nil), cats...))
	txs = append([]domain.Transaction(nil), txs...)
	limit := len(cats) + 1

	for pass := 1; ; pass++ {
		if pass > limit {
			return nil, nil, fmt.Errorf("FlattenMixed: %w: still changing after %d passes", ErrIterationLimit, limit)
		}
		stats.FlattenPasses = pass

		ix := g.index(txs)
		changed := false
		for i, c := range g.cats {
			if g.removed[i] || c.ID == "" {
				continue
			}
			if len(ix.children[c.ID]) == 0 || len(ix.attached[c.ID]) == 0 {
				continue
			}

			absorbed := make(map[string]bool)
			for _, d := range g.descendants(i, ix) {
				g.removed[d] = true
				stats.CategoriesFlattened++
				if id := g.cats[d].ID; id != "" {
					absorbed[id] = true
				}
			}
			for j := range txs {
				if absorbed[txs[j].CategoryID] {
					txs[j].CategoryID = c.ID
					stats.TransactionsReassigned++
				}
			}
			changed = true
		}
		if !changed {
			break
		}
	}

	return g.survivors(), txs, nil
}
