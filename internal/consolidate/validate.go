package consolidate

import (
	"errors"
	"fmt"

	"github.com/dvloznov/report-consolidator/internal/domain"
)

// Validate checks the structural invariants of a consolidated document:
// unique IDs, a single parentless root, resolvable acyclic parents, no category
// with both children and transactions, no empty non-root category, and clean
// transactions. All violations are reported together.
func Validate(doc *domain.Document, rootID string) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	byID := make(map[string]domain.Category, len(doc.Categories))
	children := make(map[string]int)
	attached := make(map[string]int)
	var order []string
	roots := 0

	for i, c := range doc.Categories {
		if c.ID == "" {
			add("category at index %d has no id", i)
			continue
		}
		if _, dup := byID[c.ID]; dup {
			add("category id %q is not unique", c.ID)
			continue
		}
		byID[c.ID] = c
		order = append(order, c.ID)
		if c.ID == rootID {
			roots++
			if c.Parent != nil {
				add("root category %q has parent %q", c.ID, *c.Parent)
			}
		}
	}
	if roots == 0 {
		add("root category %q is missing", rootID)
	}

	for _, c := range doc.Categories {
		if c.ID == "" || c.ID == rootID {
			continue
		}
		switch {
		case c.Parent == nil:
			add("category %q has no parent", c.ID)
		case *c.Parent == c.ID:
			add("category %q is its own parent", c.ID)
		default:
			if _, ok := byID[*c.Parent]; !ok {
				add("category %q references missing parent %q", c.ID, *c.Parent)
			} else {
				children[*c.Parent]++
			}
		}
	}

	for _, id := range order {
		if id == rootID {
			continue
		}
		if !reachesRoot(id, byID, rootID) {
			add("category %q does not reach the root", id)
		}
	}

	for _, t := range doc.Transactions {
		if _, ok := byID[t.CategoryID]; !ok {
			add("transaction %q references missing category %q", t.ID, t.CategoryID)
		} else {
			attached[t.CategoryID]++
		}
		if t.Value == nil || *t.Value == 0 {
			add("transaction %q has a null or zero value", t.ID)
		}
		if t.Date == nil {
			add("transaction %q has no date", t.ID)
		}
	}

	for _, id := range order {
		if children[id] > 0 && attached[id] > 0 {
			add("category %q has both children and transactions", id)
		}
		if id != rootID && children[id] == 0 && attached[id] == 0 {
			add("category %q is empty", id)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvariantViolation, errors.Join(errs...))
}

func reachesRoot(id string, byID map[string]domain.Category, rootID string) bool {
	seen := make(map[string]bool)
	for cur := id; ; {
		if cur == rootID {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		c, ok := byID[cur]
		if !ok || c.Parent == nil {
			return false
		}
		cur = *c.Parent
	}
}
