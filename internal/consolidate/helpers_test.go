package consolidate

import (
	"sort"
	"testing"

	"github.com/dvloznov/report-consolidator/internal/domain"
)

// cat builds a category; an empty parent means null.
func cat(id, name, parent string) domain.Category {
	c := domain.Category{ID: id, Name: domain.StringPtr(name)}
	if parent != "" {
		c.Parent = domain.StringPtr(parent)
	}
	return c
}

func tx(id, categoryID string, value float64) domain.Transaction {
	return domain.Transaction{ID: id, CategoryID: categoryID, Value: domain.FloatPtr(value)}
}

func root() domain.Category {
	return DefaultRoot()
}

func categoryIDs(cats []domain.Category) []string {
	ids := make([]string, 0, len(cats))
	for _, c := range cats {
		ids = append(ids, c.ID)
	}
	return ids
}

func categoriesByID(cats []domain.Category) map[string]domain.Category {
	out := make(map[string]domain.Category, len(cats))
	for _, c := range cats {
		out[c.ID] = c
	}
	return out
}

func txCategories(txs []domain.Transaction) map[string]string {
	out := make(map[string]string, len(txs))
	for _, t := range txs {
		out[t.ID] = t.CategoryID
	}
	return out
}

func txIDs(txs []domain.Transaction) []string {
	ids := make([]string, 0, len(txs))
	for _, t := range txs {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids
}

func assertIDs(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got ids %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got ids %v, want %v", got, want)
		}
	}
}

func parentOf(t *testing.T, cats []domain.Category, id string) string {
	t.Helper()
	c, ok := categoriesByID(cats)[id]
	if !ok {
		t.Fatalf("category %q not found", id)
	}
	if c.Parent == nil {
		return ""
	}
	return *c.Parent
}
