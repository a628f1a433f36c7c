package consolidate

import "github.com/dvloznov/report-consolidator/internal/domain"

// Deduplicate collapses categories sharing a display name into the first one seen.
// It returns the survivors in input order and a map from each discarded ID to its
// survivor's ID. A category whose ID already belongs to a survivor is folded into
// that survivor as well, so nameless repeats of one ID end up as a single node.
// Categories without an ID are never treated as duplicates.
func Deduplicate(cats []domain.Category) ([]domain.Category, map[string]string) {
	survivorByName := make(map[string]string)
	survivorIDs := make(map[string]bool)
	remap := make(map[string]string)
	out := make([]domain.Category, 0, len(cats))

	for _, c := range cats {
		if c.ID == "" {
			out = append(out, c)
			continue
		}
		if c.Name != nil {
			if survivorID, seen := survivorByName[*c.Name]; seen {
				// A discarded duplicate must not hijack references to a different
				// survivor that happens to own the same ID.
				if c.ID == survivorID || !survivorIDs[c.ID] {
					remap[c.ID] = survivorID
				}
				continue
			}
		}
		if survivorIDs[c.ID] {
			remap[c.ID] = c.ID
			continue
		}
		if c.Name != nil {
			survivorByName[*c.Name] = c.ID
		}
		survivorIDs[c.ID] = true
		out = append(out, c)
	}

	return out, remap
}
