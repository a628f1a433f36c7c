package report

import (
	"fmt"
	"io"

	"github.com/dvloznov/report-consolidator/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the exported workbook.
const (
	SheetSummary      = "Summary"
	SheetCategories   = "Categories"
	SheetTransactions = "Transactions"
)

// WriteXLSX writes a workbook with the summary, the category flows and every
// transaction.
func WriteXLSX(w io.Writer, doc *domain.Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("WriteXLSX: renaming sheet: %w", err)
	}
	for _, name := range []string{SheetCategories, SheetTransactions} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("WriteXLSX: creating sheet %s: %w", name, err)
		}
	}

	s := Summarize(doc)
	summaryRows := [][]any{
		{"項目", "金額"},
		{"年", s.Year},
		{"収入", s.Income.InexactFloat64()},
		{"支出", s.Expense.InexactFloat64()},
		{"翌年への繰越額", s.Balance.InexactFloat64()},
	}
	if err := writeRows(f, SheetSummary, summaryRows); err != nil {
		return err
	}

	catRows := [][]any{{"ID", "名称", "親ID", "区分", "金額"}}
	for _, fl := range Flows(doc) {
		catRows = append(catRows, []any{fl.ID, fl.Name, fl.parentID(), string(fl.Direction), fl.Value.InexactFloat64()})
	}
	if err := writeRows(f, SheetCategories, catRows); err != nil {
		return err
	}

	ix := newIndex(doc)
	txRows := [][]any{{"ID", "カテゴリID", "カテゴリ", "区分", "名称", "日付", "金額"}}
	for _, t := range doc.Transactions {
		date := ""
		if t.Date != nil {
			date = *t.Date
		}
		txRows = append(txRows, []any{
			t.ID, t.CategoryID, ix.byID[t.CategoryID].NameOr(""), string(ix.direction[t.CategoryID]),
			t.Name, date, value(t).InexactFloat64(),
		})
	}
	if err := writeRows(f, SheetTransactions, txRows); err != nil {
		return err
	}

	if err := f.SetColWidth(SheetTransactions, "E", "E", 32); err != nil {
		return fmt.Errorf("WriteXLSX: setting column width: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteXLSX: writing workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("writeRows: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writeRows: %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
