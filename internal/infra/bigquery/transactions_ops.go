package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// InsertTransactionsWithClient streams transaction rows into report_transactions.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, t Tables, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := t.table(client, transactionsTable).Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}
	return nil
}

// QueryLatestTransactionsWithClient returns the ledger of the most recent
// successful run for a report year.
func QueryLatestTransactionsWithClient(ctx context.Context, client *bigquery.Client, t Tables, year int) ([]*TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		WITH latest AS (
			SELECT run_id
			FROM %s
			WHERE year = @year AND status = @status
			ORDER BY finished_ts DESC
			LIMIT 1
		)
		SELECT
			t.run_id,
			t.transaction_id,
			t.category_id,
			t.name,
			t.raw_date,
			t.transaction_date,
			t.value,
			t.position,
			t.created_ts
		FROM %s t
		INNER JOIN latest l ON t.run_id = l.run_id
		ORDER BY t.position
	`, t.Qualified(runsTable), t.Qualified(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "year", Value: year},
		{Name: "status", Value: RunStatusSuccess},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryLatestTransactions: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryLatestTransactions: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
