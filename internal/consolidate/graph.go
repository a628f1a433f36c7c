package consolidate

import "github.com/dvloznov/report-consolidator/internal/domain"

// graph is a flat arena over a category slice. Categories are addressed by
// position and removal only flips a flag, so an index rebuilt each pass never
// points at a node that has gone away.
type graph struct {
	cats    []domain.Category
	removed []bool
}

func newGraph(cats []domain.Category) *graph {
	return &graph{cats: cats, removed: make([]bool, len(cats))}
}

// passIndex is the per-pass snapshot of active children and attached transactions.
type passIndex struct {
	children map[string][]int // parent ID -> child positions
	attached map[string][]int // category ID -> transaction positions
}

func (g *graph) index(txs []domain.Transaction) passIndex {
	ix := passIndex{
		children: make(map[string][]int),
		attached: make(map[string][]int),
	}
	for i, c := range g.cats {
		if g.removed[i] || c.Parent == nil {
			continue
		}
		ix.children[*c.Parent] = append(ix.children[*c.Parent], i)
	}
	for i, t := range txs {
		if t.CategoryID == "" {
			continue
		}
		ix.attached[t.CategoryID] = append(ix.attached[t.CategoryID], i)
	}
	return ix
}

// descendants returns the positions of every active category below start.
// The walk is iterative and keeps a visited set so a residual cycle cannot loop.
func (g *graph) descendants(start int, ix passIndex) []int {
	visited := map[int]bool{start: true}
	queue := []int{start}
	var out []int
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		id := g.cats[cur].ID
		if id == "" {
			continue
		}
		for _, child := range ix.children[id] {
			if visited[child] || g.removed[child] {
				continue
			}
			visited[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

func (g *graph) survivors() []domain.Category {
	out := make([]domain.Category, 0, len(g.cats))
	for i, c := range g.cats {
		if !g.removed[i] {
			out = append(out, c)
		}
	}
	return out
}
