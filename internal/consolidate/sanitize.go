package consolidate

import "github.com/dvloznov/report-consolidator/internal/domain"

// Sanitize repairs the parent graph and transaction references of the
// deduplicated categories. cats must already contain the root category.
//
// Order matters: self-loops are cleared before remapping, and remapping happens
// before orphans are anchored because a survivor may itself need anchoring.
// Parents that still resolve to nothing are anchored like null parents, and any
// cycle that survives is cut at the node that closes it. Transactions whose
// category cannot be resolved are returned separately as dropped.
func Sanitize(
	cats []domain.Category,
	txs []domain.Transaction,
	remap map[string]string,
	rootID string,
	stats *Stats,
) (outCats []domain.Category, outTxs []domain.Transaction, dropped []domain.Transaction) {
	if stats == nil {
		stats = &Stats{}
	}
	outCats = append([]domain.Category(nil), cats...)

	// 1. Self-loops.
	for i, c := range outCats {
		if c.ID != "" && c.Parent != nil && *c.Parent == c.ID {
			outCats[i].Parent = nil
			stats.SelfLoopsCleared++
		}
	}

	// 2. Parents pointing at discarded duplicates.
	for i, c := range outCats {
		if c.Parent == nil {
			continue
		}
		if survivor, ok := remap[*c.Parent]; ok && survivor != *c.Parent {
			outCats[i].Parent = domain.StringPtr(survivor)
			stats.ParentsRemapped++
		}
	}

	known := make(map[string]int, len(outCats))
	for i, c := range outCats {
		if c.ID == "" {
			continue
		}
		if _, dup := known[c.ID]; !dup {
			known[c.ID] = i
		}
	}

	// 3. Anchor orphans and dangling parents to the root.
	for i, c := range outCats {
		if c.ID == rootID {
			outCats[i].Parent = nil
			continue
		}
		if c.Parent == nil {
			outCats[i].Parent = domain.StringPtr(rootID)
			stats.OrphansAnchored++
			continue
		}
		if _, ok := known[*c.Parent]; !ok {
			outCats[i].Parent = domain.StringPtr(rootID)
			stats.DanglingParents++
		}
	}

	breakCycles(outCats, known, rootID, stats)

	// 4. Transactions.
	outTxs = make([]domain.Transaction, 0, len(txs))
	for _, t := range txs {
		if survivor, ok := remap[t.CategoryID]; ok && survivor != t.CategoryID {
			t.CategoryID = survivor
			stats.TransactionsRemapped++
		}
		if _, ok := known[t.CategoryID]; !ok || t.CategoryID == "" {
			dropped = append(dropped, t)
			continue
		}
		outTxs = append(outTxs, t)
	}
	stats.DanglingTransactions += len(dropped)

	return outCats, outTxs, dropped
}

// breakCycles walks every parent chain towards the root. A chain that revisits
// one of its own nodes is cut by re-anchoring the last node walked.
func breakCycles(cats []domain.Category, known map[string]int, rootID string, stats *Stats) {
	const (
		unvisited = iota
		onPath
		reachesRoot
	)
	state := map[string]int{rootID: reachesRoot}

	for i := range cats {
		if cats[i].ID == "" {
			continue
		}
		var path []int
		cur := i
		for {
			id := cats[cur].ID
			if state[id] == reachesRoot {
				break
			}
			if state[id] == onPath {
				last := path[len(path)-1]
				cats[last].Parent = domain.StringPtr(rootID)
				stats.CyclesBroken++
				break
			}
			state[id] = onPath
			path = append(path, cur)
			next, ok := known[cats[cur].ParentID()]
			if !ok {
				// Only the root is parentless after anchoring.
				break
			}
			cur = next
		}
		for _, p := range path {
			state[cats[p].ID] = reachesRoot
		}
	}
}
