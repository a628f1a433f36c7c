package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	runsTable         = "consolidation_runs"
	categoriesTable   = "report_categories"
	transactionsTable = "report_transactions"
)

// Tables locates the dataset every operation reads and writes.
type Tables struct {
	ProjectID string
	DatasetID string
}

// Qualified returns the backquoted `project.dataset.table` name for SQL.
func (t Tables) Qualified(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", t.ProjectID, t.DatasetID, table)
}

func (t Tables) table(client *bigquery.Client, name string) *bigquery.Table {
	return client.DatasetInProject(t.ProjectID, t.DatasetID).Table(name)
}

// runStatement runs a DML or DDL query and waits for it to finish.
func runStatement(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
