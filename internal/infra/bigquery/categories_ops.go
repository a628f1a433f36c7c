package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// InsertCategoriesWithClient streams category rows into report_categories.
func InsertCategoriesWithClient(ctx context.Context, client *bigquery.Client, t Tables, rows []*CategoryRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := t.table(client, categoriesTable).Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertCategories: inserting rows: %w", err)
	}
	return nil
}

// ListRunCategoriesWithClient returns the category tree stored for a run, in document order.
func ListRunCategoriesWithClient(ctx context.Context, client *bigquery.Client, t Tables, runID string) ([]*CategoryRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT run_id, category_id, name, parent_id, direction, position, created_ts
		FROM %s
		WHERE run_id = @run_id
		ORDER BY position
	`, t.Qualified(categoriesTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "run_id", Value: runID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRunCategories: query read: %w", err)
	}

	var rows []*CategoryRow
	for {
		var r CategoryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRunCategories: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
