package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dvloznov/report-consolidator/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func category(id, name, parent string, d domain.Direction) domain.Category {
	c := domain.Category{ID: id, Name: domain.StringPtr(name), Direction: domain.DirectionPtr(d)}
	if parent != "" {
		c.Parent = domain.StringPtr(parent)
	}
	return c
}

func transaction(id, categoryID string, v float64) domain.Transaction {
	return domain.Transaction{ID: id, CategoryID: categoryID, Name: id, Date: domain.StringPtr("R5.4.1"), Value: domain.FloatPtr(v)}
}

func balancedDoc() *domain.Document {
	return &domain.Document{
		Year: json.RawMessage(`2023`),
		Categories: []domain.Category{
			category("root", "総収入", "", domain.DirectionIncome),
			category("inc", "個人からの寄附", "root", domain.DirectionIncome),
			category("prev", CarryOverFromPrevious, "root", domain.DirectionIncome),
			category("exp", "組織活動費", "root", domain.DirectionExpense),
			category("next", CarryOverToNext, "root", domain.DirectionExpense),
		},
		Transactions: []domain.Transaction{
			transaction("t1", "inc", 100),
			transaction("t2", "prev", 50),
			transaction("t3", "exp", 120),
			transaction("t4", "next", 30),
		},
	}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestSummarize(t *testing.T) {
	s := Summarize(balancedDoc())
	if s.Year != 2023 {
		t.Errorf("Year = %d, want 2023", s.Year)
	}
	tests := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"income", s.Income, "150"},
		{"expense", s.Expense, "120"},
		{"balance", s.Balance, "30"},
	}
	for _, tt := range tests {
		if !tt.got.Equal(dec(t, tt.want)) {
			t.Errorf("%s = %s, want %s", tt.name, tt.got, tt.want)
		}
	}
}

func TestSummarize_NoCarryOver(t *testing.T) {
	doc := balancedDoc()
	doc.Categories = doc.Categories[:4]
	doc.Transactions = doc.Transactions[:3]
	s := Summarize(doc)
	if !s.Balance.IsZero() || !s.Expense.Equal(dec(t, "120")) {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestSummarize_DecimalTotals(t *testing.T) {
	doc := &domain.Document{
		Categories: []domain.Category{category("a", "a", "", domain.DirectionIncome)},
		Transactions: []domain.Transaction{
			transaction("t1", "a", 0.1),
			transaction("t2", "a", 0.2),
		},
	}
	if got := Summarize(doc).Income; !got.Equal(dec(t, "0.3")) {
		t.Errorf("Income = %s, want 0.3", got)
	}
}

func TestFlows(t *testing.T) {
	doc := balancedDoc()
	doc.Categories = append(doc.Categories, category("sub", "田中", "inc", domain.DirectionIncome))
	doc.Transactions = append(doc.Transactions, transaction("t5", "sub", 40))

	want := map[string]string{
		"root": "170",
		"inc":  "140",
		"prev": "50",
		"exp":  "120",
		"next": "30",
		"sub":  "40",
	}
	flows := Flows(doc)
	if len(flows) != len(want) {
		t.Fatalf("got %d flows, want %d", len(flows), len(want))
	}
	for _, f := range flows {
		if !f.Value.Equal(dec(t, want[f.ID])) {
			t.Errorf("flow %s = %s, want %s", f.ID, f.Value, want[f.ID])
		}
	}
	if flows[0].Parent != nil || *flows[1].Parent != "root" {
		t.Error("parents not carried into flows")
	}
}

func TestFlows_ToleratesCycles(t *testing.T) {
	doc := &domain.Document{
		Categories: []domain.Category{
			category("a", "a", "b", domain.DirectionIncome),
			category("b", "b", "a", domain.DirectionIncome),
		},
		Transactions: []domain.Transaction{transaction("t1", "a", 10)},
	}
	flows := Flows(doc)
	if !flows[0].Value.Equal(dec(t, "10")) || !flows[1].Value.Equal(dec(t, "10")) {
		t.Errorf("unexpected flows %+v", flows)
	}
}

func TestLedger(t *testing.T) {
	income, expense := Ledger(balancedDoc())
	if len(income) != 2 || len(expense) != 2 {
		t.Fatalf("got %d income and %d expense entries", len(income), len(expense))
	}

	tests := []struct {
		entry    LedgerEntry
		category string
		pct      string
	}{
		{income[0], "個人からの寄附", "66.67"},
		{income[1], CarryOverFromPrevious, "33.33"},
		{expense[0], "組織活動費", "80"},
		{expense[1], CarryOverToNext, "20"},
	}
	for _, tt := range tests {
		if tt.entry.Category != tt.category {
			t.Errorf("%s category = %q, want %q", tt.entry.ID, tt.entry.Category, tt.category)
		}
		if got := tt.entry.Percentage.Round(2); !got.Equal(dec(t, tt.pct)) {
			t.Errorf("%s percentage = %s, want %s", tt.entry.ID, got, tt.pct)
		}
		if tt.entry.Date != "R5.4.1" {
			t.Errorf("%s date = %q", tt.entry.ID, tt.entry.Date)
		}
	}
}

func TestLedger_ZeroTotal(t *testing.T) {
	doc := &domain.Document{
		Categories:   []domain.Category{category("a", "a", "", domain.DirectionExpense)},
		Transactions: []domain.Transaction{{ID: "t1", CategoryID: "a"}},
	}
	_, expense := Ledger(doc)
	if len(expense) != 1 || !expense[0].Percentage.IsZero() {
		t.Errorf("unexpected ledger %+v", expense)
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Document)
		want   []string
	}{
		{
			name:   "balanced",
			mutate: func(*domain.Document) {},
		},
		{
			name: "unbalanced",
			mutate: func(d *domain.Document) {
				d.Transactions[0].Value = domain.FloatPtr(101)
			},
			want: []string{"income total 151 does not match expense total 150"},
		},
		{
			name: "missing carry-over",
			mutate: func(d *domain.Document) {
				d.Categories = d.Categories[:4]
				d.Transactions = append(d.Transactions[:3], transaction("t4", "exp", 30))
			},
			want: []string{"category 翌年への繰越額 is missing"},
		},
		{
			name: "two carry-over transactions",
			mutate: func(d *domain.Document) {
				d.Transactions = append(d.Transactions, transaction("t5", "prev", 0), transaction("t6", "exp", 0))
			},
			want: []string{"category 前年からの繰越額 should have exactly one transaction, has 2"},
		},
		{
			name: "string year and nameless category",
			mutate: func(d *domain.Document) {
				d.Year = json.RawMessage(`"令和5年"`)
				d.Categories[1].Name = nil
			},
			want: []string{"year is not a number", `category "inc" has no name`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := balancedDoc()
			tt.mutate(doc)
			got := Check(doc)
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") {
				t.Errorf("Check() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, balancedDoc()); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); strings.Join(got, ",") != "Summary,Categories,Transactions" {
		t.Errorf("sheets = %v", got)
	}
	income, err := f.GetCellValue(SheetSummary, "B3")
	if err != nil || income != "150" {
		t.Errorf("income cell = %q, %v", income, err)
	}
	rows, err := f.GetRows(SheetTransactions)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d transaction rows, want 5", len(rows))
	}
	if rows[1][2] != "個人からの寄附" || rows[1][3] != "income" {
		t.Errorf("unexpected first transaction row %v", rows[1])
	}
	cats, err := f.GetRows(SheetCategories)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(cats) != 6 || cats[1][4] != "150" {
		t.Errorf("unexpected categories sheet %v", cats)
	}
}
