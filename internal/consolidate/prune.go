package consolidate

import (
	"fmt"

	"github.com/dvloznov/report-consolidator/internal/domain"
)

// PruneEmpty repeatedly removes non-root categories that have neither children
// nor attached transactions. Each pass decides against a snapshot taken at its
// start, so a parent emptied by this pass is only removed by the next one.
func PruneEmpty(cats []domain.Category, txs []domain.Transaction, rootID string, stats *Stats) ([]domain.Category, error) {
	if stats == nil {
		stats = &Stats{}
	}
	g := newGraph(append([]domain.Category(nil), cats...))
	limit := len(cats) + 1

	for pass := 1; ; pass++ {
		if pass > limit {
			return nil, fmt.Errorf("PruneEmpty: %w: still changing after %d passes", ErrIterationLimit, limit)
		}
		stats.PrunePasses = pass

		ix := g.index(txs)
		var marked []int
		for i, c := range g.cats {
			if g.removed[i] || c.ID == rootID {
				continue
			}
			if c.ID != "" && (len(ix.children[c.ID]) > 0 || len(ix.attached[c.ID]) > 0) {
				continue
			}
			marked = append(marked, i)
		}
		if len(marked) == 0 {
			break
		}
		for _, i := range marked {
			g.removed[i] = true
		}
		stats.CategoriesPruned += len(marked)
	}

	return g.survivors(), nil
}
