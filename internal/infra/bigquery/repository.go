package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/report-consolidator/internal/domain"
)

// RunRepository records consolidation runs and their output.
type RunRepository interface {
	StartRun(ctx context.Context, runID, source string, year int) error
	MarkRunSucceeded(ctx context.Context, runID string, stats any) error
	MarkRunFailed(ctx context.Context, runID string, runErr error)
	InsertCategories(ctx context.Context, rows []*CategoryRow) error
	InsertTransactions(ctx context.Context, rows []*TransactionRow) error
}

// Repository is the BigQuery RunRepository. It holds one client for all operations.
type Repository struct {
	client *bigquery.Client
	tables Tables
}

// NewRepository connects to BigQuery for the given project and dataset.
func NewRepository(ctx context.Context, t Tables) (*Repository, error) {
	if t.ProjectID == "" || t.DatasetID == "" {
		return nil, fmt.Errorf("NewRepository: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, t.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, tables: t}, nil
}

// Close releases the BigQuery client.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Repository) StartRun(ctx context.Context, runID, source string, year int) error {
	return StartRunWithClient(ctx, r.client, r.tables, runID, source, year)
}

func (r *Repository) MarkRunSucceeded(ctx context.Context, runID string, stats any) error {
	return MarkRunSucceededWithClient(ctx, r.client, r.tables, runID, stats)
}

func (r *Repository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkRunFailedWithClient(ctx, r.client, r.tables, runID, runErr)
}

func (r *Repository) InsertCategories(ctx context.Context, rows []*CategoryRow) error {
	return InsertCategoriesWithClient(ctx, r.client, r.tables, rows)
}

func (r *Repository) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	return InsertTransactionsWithClient(ctx, r.client, r.tables, rows)
}

func (r *Repository) ListRunCategories(ctx context.Context, runID string) ([]*CategoryRow, error) {
	return ListRunCategoriesWithClient(ctx, r.client, r.tables, runID)
}

func (r *Repository) QueryLatestTransactions(ctx context.Context, year int) ([]*TransactionRow, error) {
	return QueryLatestTransactionsWithClient(ctx, r.client, r.tables, year)
}

func (r *Repository) DeleteRun(ctx context.Context, runID string) error {
	return DeleteRunWithClient(ctx, r.client, r.tables, runID)
}

// Migrate applies the embedded schema migrations.
func (r *Repository) Migrate(ctx context.Context, appliedBy string) (int, error) {
	migrations, err := ReadMigrations(ctx, EmbeddedMigrations(), r.tables)
	if err != nil {
		return 0, err
	}
	return MigrateWithClient(ctx, r.client, r.tables, migrations, appliedBy)
}

// Publish records a finished consolidation as one run: the run row, then the
// category tree and the ledger. A failure after StartRun marks the run FAILED.
func Publish(ctx context.Context, repo RunRepository, runID, source string, doc *domain.Document, stats any) error {
	year, _ := doc.YearInt()
	if err := repo.StartRun(ctx, runID, source, year); err != nil {
		return fmt.Errorf("Publish: %w", err)
	}

	now := time.Now()
	if err := repo.InsertCategories(ctx, NewCategoryRows(runID, doc, now)); err != nil {
		repo.MarkRunFailed(ctx, runID, err)
		return fmt.Errorf("Publish: %w", err)
	}
	if err := repo.InsertTransactions(ctx, NewTransactionRows(runID, doc, now)); err != nil {
		repo.MarkRunFailed(ctx, runID, err)
		return fmt.Errorf("Publish: %w", err)
	}
	if err := repo.MarkRunSucceeded(ctx, runID, stats); err != nil {
		return fmt.Errorf("Publish: %w", err)
	}
	return nil
}

var _ RunRepository = (*Repository)(nil)
