package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/report-consolidator/internal/logger"
)

const maxErrorMessageLen = 2000

// StartRunWithClient inserts a consolidation_runs row with status=RUNNING.
func StartRunWithClient(ctx context.Context, client *bigquery.Client, t Tables, runID, source string, year int) error {
	q := client.Query(fmt.Sprintf(`
		INSERT %s (run_id, started_ts, source, year, status)
		VALUES (@run_id, @started_ts, @source, @year, @status)
	`, t.Qualified(runsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "source", Value: source},
		{Name: "year", Value: bigquery.NullInt64{Int64: int64(year), Valid: year != 0}},
		{Name: "status", Value: RunStatusRunning},
	}

	if err := runStatement(ctx, q); err != nil {
		return fmt.Errorf("StartRun: %w", err)
	}
	return nil
}

// MarkRunSucceededWithClient sets status=SUCCESS, finished_ts and the run statistics.
func MarkRunSucceededWithClient(ctx context.Context, client *bigquery.Client, t Tables, runID string, stats any) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("MarkRunSucceeded: encoding stats: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = "",
		    stats = PARSE_JSON(@stats)
		WHERE run_id = @run_id
	`, t.Qualified(runsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "stats", Value: string(raw)},
		{Name: "run_id", Value: runID},
	}

	if err := runStatement(ctx, q); err != nil {
		return fmt.Errorf("MarkRunSucceeded: %w", err)
	}
	return nil
}

// MarkRunFailedWithClient sets status=FAILED, finished_ts and error_message.
// Failures are logged rather than returned, since the caller is already
// handling an error.
func MarkRunFailedWithClient(ctx context.Context, client *bigquery.Client, t Tables, runID string, runErr error) {
	log := logger.FromContext(ctx).With().Str("run_id", runID).Logger()

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, t.Qualified(runsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: truncateError(runErr)},
		{Name: "run_id", Value: runID},
	}

	if err := runStatement(ctx, q); err != nil {
		log.Error().Err(err).Msg("MarkRunFailed: updating run")
	}
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}
