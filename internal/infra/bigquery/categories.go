package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/report-consolidator/internal/domain"
)

type CategoryRow struct {
	RunID      string `bigquery:"run_id"`      // REQUIRED
	CategoryID string `bigquery:"category_id"` // REQUIRED

	Name      bigquery.NullString `bigquery:"name"`      // NULLABLE
	ParentID  bigquery.NullString `bigquery:"parent_id"` // NULLABLE, null for the root
	Direction bigquery.NullString `bigquery:"direction"` // NULLABLE

	Position  int64     `bigquery:"position"`   // REQUIRED, order in the document
	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// NewCategoryRows maps the document's category tree to rows of one run.
func NewCategoryRows(runID string, doc *domain.Document, now time.Time) []*CategoryRow {
	rows := make([]*CategoryRow, 0, len(doc.Categories))
	for i, c := range doc.Categories {
		row := &CategoryRow{
			RunID:      runID,
			CategoryID: c.ID,
			Position:   int64(i),
			CreatedTS:  now,
		}
		if c.Name != nil {
			row.Name = bigquery.NullString{StringVal: *c.Name, Valid: true}
		}
		if c.Parent != nil {
			row.ParentID = bigquery.NullString{StringVal: *c.Parent, Valid: true}
		}
		if c.Direction != nil {
			row.Direction = bigquery.NullString{StringVal: string(*c.Direction), Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}
