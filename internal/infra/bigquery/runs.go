package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Run statuses stored in consolidation_runs.status.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

type RunRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Source string             `bigquery:"source"` // REQUIRED
	Year   bigquery.NullInt64 `bigquery:"year"`   // NULLABLE

	Status       string `bigquery:"status"`        // REQUIRED
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	Stats bigquery.NullJSON `bigquery:"stats"` // NULLABLE
}
