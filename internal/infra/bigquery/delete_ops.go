package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/report-consolidator/internal/logger"
)

// DeleteRunWithClient removes a run and everything it published.
// Child tables go first so a partial failure never leaves rows without their run.
func DeleteRunWithClient(ctx context.Context, client *bigquery.Client, t Tables, runID string) error {
	log := logger.FromContext(ctx).With().Str("run_id", runID).Logger()

	for _, table := range []string{transactionsTable, categoriesTable, runsTable} {
		q := client.Query(fmt.Sprintf(`DELETE FROM %s WHERE run_id = @run_id`, t.Qualified(table)))
		q.Parameters = []bigquery.QueryParameter{{Name: "run_id", Value: runID}}
		if err := runStatement(ctx, q); err != nil {
			return fmt.Errorf("DeleteRun: deleting from %s: %w", table, err)
		}
		log.Debug().Str("table", table).Msg("Deleted run rows")
	}

	log.Info().Msg("Run deleted")
	return nil
}
