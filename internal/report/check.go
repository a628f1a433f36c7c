package report

import (
	"fmt"

	"github.com/dvloznov/report-consolidator/internal/domain"
)

// Check reports problems that do not break the tree but make the figures
// suspicious: a non-numeric year, categories without a name or direction,
// missing carry-over categories, and unbalanced totals.
func Check(doc *domain.Document) []string {
	var issues []string
	if _, ok := doc.YearInt(); !ok {
		issues = append(issues, "year is not a number")
	}

	roots := 0
	for _, c := range doc.Categories {
		if c.Parent == nil {
			roots++
		}
		if c.Name == nil || *c.Name == "" {
			issues = append(issues, fmt.Sprintf("category %q has no name", c.ID))
		}
		if c.Direction == nil {
			issues = append(issues, fmt.Sprintf("category %q has no direction", c.ID))
		}
	}
	if roots != 1 {
		issues = append(issues, fmt.Sprintf("expected exactly one root category, found %d", roots))
	}

	for _, name := range []string{CarryOverFromPrevious, CarryOverToNext} {
		c, ok := categoryNamed(doc, name)
		if !ok {
			issues = append(issues, fmt.Sprintf("category %s is missing", name))
			continue
		}
		if n := len(transactionsIn(doc, c.ID)); n != 1 {
			issues = append(issues, fmt.Sprintf("category %s should have exactly one transaction, has %d", name, n))
		}
	}

	ix := newIndex(doc)
	income := total(ix.side(doc, domain.DirectionIncome))
	expense := total(ix.side(doc, domain.DirectionExpense))
	if !income.Equal(expense) {
		issues = append(issues, fmt.Sprintf("income total %s does not match expense total %s", income, expense))
	}
	return issues
}
