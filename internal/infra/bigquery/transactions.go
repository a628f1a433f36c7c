package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/report-consolidator/internal/domain"
	"github.com/shopspring/decimal"
)

type TransactionRow struct {
	RunID         string `bigquery:"run_id"`         // REQUIRED
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	CategoryID    string `bigquery:"category_id"`    // REQUIRED

	Name string `bigquery:"name"` // REQUIRED STRING

	// RawDate keeps the date as transcribed ("R6.9.30", "unknown").
	RawDate         string            `bigquery:"raw_date"`         // REQUIRED STRING
	TransactionDate bigquery.NullDate `bigquery:"transaction_date"` // NULLABLE, set when RawDate parses

	Value *big.Rat `bigquery:"value"` // REQUIRED NUMERIC

	Position  int64     `bigquery:"position"`   // REQUIRED
	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// NewTransactionRows maps the document's ledger to rows of one run.
// Values go through decimal so the NUMERIC column holds the transcribed
// amount rather than its binary float approximation.
func NewTransactionRows(runID string, doc *domain.Document, now time.Time) []*TransactionRow {
	rows := make([]*TransactionRow, 0, len(doc.Transactions))
	for i, tx := range doc.Transactions {
		row := &TransactionRow{
			RunID:         runID,
			TransactionID: tx.ID,
			CategoryID:    tx.CategoryID,
			Name:          tx.Name,
			RawDate:       domain.DateUnknown,
			Value:         new(big.Rat),
			Position:      int64(i),
			CreatedTS:     now,
		}
		if tx.Date != nil {
			row.RawDate = *tx.Date
			if d, ok := domain.ParseDate(*tx.Date); ok {
				row.TransactionDate = bigquery.NullDate{Date: d, Valid: true}
			}
		}
		if tx.Value != nil {
			row.Value = decimal.NewFromFloat(*tx.Value).Rat()
		}
		rows = append(rows, row)
	}
	return rows
}
