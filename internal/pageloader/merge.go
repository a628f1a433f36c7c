package pageloader

import (
	"fmt"

	"github.com/dvloznov/report-consolidator/internal/domain"
)

// Rename records a category ID rewritten while merging.
type Rename struct {
	Page string `json:"page"`
	From string `json:"from"`
	To   string `json:"to"`
}

type claim struct {
	name     *string
	page     int
	reserved bool
}

func (c claim) sameName(name *string) bool {
	if c.reserved {
		return false
	}
	if c.name == nil || name == nil {
		return c.name == nil && name == nil
	}
	return *c.name == *name
}

// Merge concatenates pages in order. The first page's year and basic_info are
// kept. Reserved IDs are never used by merged categories.
//
// A category reusing an ID already claimed for a different name is renamed
// "<id>@p<n>". If the earlier claim came from another page, that page's own
// parent and category_id references are rewritten to follow the rename.
// Same-name reuse is left alone for the deduplicator.
func Merge(pages []Page, reserved ...string) (domain.Document, []Rename) {
	var doc domain.Document
	var renames []Rename

	claims := make(map[string]claim)
	for _, id := range reserved {
		claims[id] = claim{reserved: true, page: -1}
	}

	for k, page := range pages {
		if k == 0 {
			doc.Year = page.Year
			doc.BasicInfo = page.BasicInfo
		}

		local := make(map[string]string)
		cats := make([]domain.Category, len(page.Categories))
		for i, c := range page.Categories {
			c = c.Clone()
			if c.ID != "" {
				if prior, taken := claims[c.ID]; taken && !prior.sameName(c.Name) {
					newID := uniqueID(c.ID, k, claims)
					renames = append(renames, Rename{Page: page.Name, From: c.ID, To: newID})
					if prior.page != k {
						if _, seen := local[c.ID]; !seen {
							local[c.ID] = newID
						}
					}
					c.ID = newID
				}
				if _, taken := claims[c.ID]; !taken {
					claims[c.ID] = claim{name: c.Name, page: k}
				}
			}
			cats[i] = c
		}

		for i := range cats {
			if cats[i].Parent == nil {
				continue
			}
			if to, ok := local[*cats[i].Parent]; ok {
				cats[i].Parent = domain.StringPtr(to)
			}
		}
		doc.Categories = append(doc.Categories, cats...)

		for _, t := range page.Transactions {
			t = t.Clone()
			if to, ok := local[t.CategoryID]; ok {
				t.CategoryID = to
			}
			doc.Transactions = append(doc.Transactions, t)
		}
	}

	return doc, renames
}

func uniqueID(id string, page int, claims map[string]claim) string {
	candidate := fmt.Sprintf("%s@p%d", id, page+1)
	for n := 2; ; n++ {
		if _, taken := claims[candidate]; !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s@p%d.%d", id, page+1, n)
	}
}
