// Package report derives totals, category flows and ledgers from a
// consolidated document, and exports them as a workbook.
package report

import (
	"github.com/dvloznov/report-consolidator/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// CarryOverFromPrevious is the income category holding last year's balance.
	CarryOverFromPrevious = "前年からの繰越額"
	// CarryOverToNext is the expense category holding the balance passed to next year.
	CarryOverToNext = "翌年への繰越額"
)

var hundred = decimal.NewFromInt(100)

// Summary is the headline figures of a report.
type Summary struct {
	Year    int             `json:"year"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// Flow is one category with the value of every transaction at or below it.
type Flow struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Direction domain.Direction `json:"direction"`
	Value     decimal.Decimal  `json:"value"`
	Parent    *string          `json:"parent"`
}

// LedgerEntry is a transaction with its category name and share of its side's total.
type LedgerEntry struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Date       string          `json:"date"`
	Value      decimal.Decimal `json:"value"`
	Category   string          `json:"category"`
	Percentage decimal.Decimal `json:"percentage"`
}

type index struct {
	byID      map[string]domain.Category
	direction map[string]domain.Direction
}

func newIndex(doc *domain.Document) index {
	ix := index{
		byID:      make(map[string]domain.Category, len(doc.Categories)),
		direction: make(map[string]domain.Direction, len(doc.Categories)),
	}
	for _, c := range doc.Categories {
		ix.byID[c.ID] = c
		if c.Direction != nil {
			ix.direction[c.ID] = *c.Direction
		}
	}
	return ix
}

// side returns the transactions whose category has direction d.
func (ix index) side(doc *domain.Document, d domain.Direction) []domain.Transaction {
	var out []domain.Transaction
	for _, t := range doc.Transactions {
		if ix.direction[t.CategoryID] == d {
			out = append(out, t)
		}
	}
	return out
}

func value(t domain.Transaction) decimal.Decimal {
	if t.Value == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*t.Value)
}

func total(txs []domain.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		sum = sum.Add(value(t))
	}
	return sum
}

// categoryNamed returns the first category called name.
func categoryNamed(doc *domain.Document, name string) (domain.Category, bool) {
	for _, c := range doc.Categories {
		if c.Name != nil && *c.Name == name {
			return c, true
		}
	}
	return domain.Category{}, false
}

func transactionsIn(doc *domain.Document, categoryID string) []domain.Transaction {
	var out []domain.Transaction
	for _, t := range doc.Transactions {
		if t.CategoryID == categoryID {
			out = append(out, t)
		}
	}
	return out
}

// Summarize totals income and expense. The balance is the amount carried to
// next year, and it is excluded from the expense total.
func Summarize(doc *domain.Document) Summary {
	ix := newIndex(doc)
	s := Summary{
		Income:  total(ix.side(doc, domain.DirectionIncome)),
		Expense: total(ix.side(doc, domain.DirectionExpense)),
		Balance: decimal.Zero,
	}
	s.Year, _ = doc.YearInt()
	if c, ok := categoryNamed(doc, CarryOverToNext); ok {
		if txs := transactionsIn(doc, c.ID); len(txs) > 0 {
			s.Balance = value(txs[0])
		}
	}
	s.Expense = s.Expense.Sub(s.Balance)
	return s
}

// Flows rolls every transaction's value up through all ancestors of its
// category. The root collects both sides, so its value is halved.
func Flows(doc *domain.Document) []Flow {
	ix := newIndex(doc)
	flows := make([]Flow, len(doc.Categories))
	pos := make(map[string]int, len(doc.Categories))
	for i, c := range doc.Categories {
		flows[i] = Flow{ID: c.ID, Name: c.NameOr(""), Direction: ix.direction[c.ID], Value: decimal.Zero}
		if c.Parent != nil {
			flows[i].Parent = domain.StringPtr(*c.Parent)
		}
		pos[c.ID] = i
	}

	for _, t := range doc.Transactions {
		if _, ok := ix.direction[t.CategoryID]; !ok {
			continue
		}
		v := value(t)
		seen := make(map[string]bool)
		for id := t.CategoryID; id != "" && !seen[id]; {
			seen[id] = true
			i, ok := pos[id]
			if !ok {
				break
			}
			flows[i].Value = flows[i].Value.Add(v)
			id = flows[i].parentID()
		}
	}

	for i := range flows {
		if flows[i].Parent == nil {
			flows[i].Value = flows[i].Value.Div(decimal.NewFromInt(2))
			break
		}
	}
	return flows
}

func (f Flow) parentID() string {
	if f.Parent == nil {
		return ""
	}
	return *f.Parent
}

// Ledger lists income and expense transactions with their category name and
// percentage of the side total.
func Ledger(doc *domain.Document) (income, expense []LedgerEntry) {
	ix := newIndex(doc)
	build := func(d domain.Direction) []LedgerEntry {
		txs := ix.side(doc, d)
		sum := total(txs)
		entries := make([]LedgerEntry, 0, len(txs))
		for _, t := range txs {
			e := LedgerEntry{
				ID:         t.ID,
				Name:       t.Name,
				Value:      value(t),
				Category:   ix.byID[t.CategoryID].NameOr(""),
				Percentage: decimal.Zero,
			}
			if t.Date != nil {
				e.Date = *t.Date
			}
			if !sum.IsZero() {
				e.Percentage = e.Value.Mul(hundred).Div(sum)
			}
			entries = append(entries, e)
		}
		return entries
	}
	return build(domain.DirectionIncome), build(domain.DirectionExpense)
}
