package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvloznov/report-consolidator/internal/consolidate"
	"github.com/dvloznov/report-consolidator/internal/domain"
	infra "github.com/dvloznov/report-consolidator/internal/infra/bigquery"
	"github.com/dvloznov/report-consolidator/internal/notionsync"
	"github.com/dvloznov/report-consolidator/internal/pageloader"
	"github.com/dvloznov/report-consolidator/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jomei/notionapi"
)

const page1 = `{
  "year": 2023,
  "categories": [{"id": "c1", "name": "個人からの寄附", "parent": null, "direction": "income"}],
  "transactions": [{"id": "t1", "category_id": "c1", "name": "田中 & 佐藤", "date": "R5.1.1", "value": 1000}]
}`

const page2 = `{
  "categories": [{"id": "c2", "name": "組織活動費", "parent": null, "direction": "expense"}],
  "transactions": [{"id": "t2", "category_id": "c2", "name": "会議費", "date": null, "value": 500}]
}`

func writePages(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// mockUploader records uploads in memory.
type mockUploader struct {
	objects map[string][]byte
}

func (m *mockUploader) Upload(ctx context.Context, uri string, data []byte, contentType string) error {
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[uri] = data
	return nil
}

func (m *mockUploader) Fetch(ctx context.Context, uri string) ([]byte, error) {
	data, ok := m.objects[uri]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func TestConsolidationPipeline_LocalOutput(t *testing.T) {
	in := writePages(t, map[string]string{"page_001.json": page1, "page_002.json": page2, "page_003.json": "{not json"})
	out := filepath.Join(t.TempDir(), "nested", "consolidated.json")

	state := pipeline.NewState(in, out)
	if err := pipeline.NewConsolidationPipeline(pipeline.Options{}).Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if state.RunID == "" {
		t.Error("run ID not assigned")
	}
	if len(state.Pages) != 2 || !pageloader.HasErrors(state.Diagnostics) {
		t.Errorf("got %d pages and diagnostics %v", len(state.Pages), state.Diagnostics)
	}

	doc, err := pipeline.ReadDocument(context.Background(), out, nil)
	if err != nil {
		t.Fatalf("ReadDocument() error = %v", err)
	}
	var ids []string
	for _, c := range doc.Categories {
		ids = append(ids, c.ID+"<"+c.ParentID())
	}
	if diff := cmp.Diff([]string{"root<", "c1<root", "c2<root"}, ids); diff != "" {
		t.Errorf("category tree mismatch (-want +got):\n%s", diff)
	}
	if got := *doc.Transactions[1].Date; got != domain.DateUnknown {
		t.Errorf("missing date became %q", got)
	}
	if y, ok := doc.YearInt(); !ok || y != 2023 {
		t.Errorf("year = %d, %v", y, ok)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"田中 & 佐藤", "総収入", "\n  \"categories\""} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("output does not contain %q", want)
		}
	}
}

func TestConsolidationPipeline_DegeneratePages(t *testing.T) {
	in := writePages(t, map[string]string{
		"page_001.json": `{"year": 2023, "categories": [
			{"id": "cat1", "name": "収入", "parent": null, "direction": "income"},
			{"id": "cat2", "parent": "cat1"}
		], "transactions": [{"id": "t1", "category_id": "cat2", "name": "a", "date": "R5.1.1", "value": 100}]}`,
		"page_002.json": `{"categories": [{"id": "cat2", "parent": "cat1"}], "transactions": [
			{"id": "t2", "category_id": "cat2", "name": "b", "date": "R5.1.2", "value": "NaN"},
			{"id": "t3", "category_id": "cat2", "name": "c", "date": "R5.1.3", "value": 300}
		]}`,
	})
	out := filepath.Join(t.TempDir(), "consolidated.json")

	state := pipeline.NewState(in, out)
	if err := pipeline.NewConsolidationPipeline(pipeline.Options{}).Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	doc, err := pipeline.ReadDocument(context.Background(), out, nil)
	if err != nil {
		t.Fatalf("ReadDocument() error = %v", err)
	}
	var ids []string
	for _, c := range doc.Categories {
		ids = append(ids, c.ID+"<"+c.ParentID())
	}
	if diff := cmp.Diff([]string{"root<", "cat1<root", "cat2<cat1"}, ids); diff != "" {
		t.Errorf("category tree mismatch (-want +got):\n%s", diff)
	}
	var txIDs []string
	for _, tx := range doc.Transactions {
		txIDs = append(txIDs, tx.ID)
	}
	if diff := cmp.Diff([]string{"t1", "t3"}, txIDs); diff != "" {
		t.Errorf("transactions mismatch (-want +got):\n%s", diff)
	}
}

func TestConsolidationPipeline_StrictRejectsBrokenPages(t *testing.T) {
	in := writePages(t, map[string]string{"page_001.json": page1, "page_002.json": "[1,"})

	state := pipeline.NewState(in, "")
	err := pipeline.NewConsolidationPipeline(pipeline.Options{Strict: true}).Execute(context.Background(), state)
	if !errors.Is(err, pipeline.ErrUnreadablePages) {
		t.Fatalf("Execute() error = %v, want ErrUnreadablePages", err)
	}
	if state.Result != nil {
		t.Error("consolidation ran after a strict load failure")
	}
}

func TestConsolidationPipeline_CustomRootAndGCSOutput(t *testing.T) {
	in := writePages(t, map[string]string{"page_001.json": page1})
	up := &mockUploader{}
	root := domain.Category{ID: "total", Name: domain.StringPtr("収入総額"), Direction: domain.DirectionPtr(domain.DirectionIncome)}

	state := pipeline.NewState(in, "gs://bucket/out/report.json")
	p := pipeline.NewConsolidationPipeline(pipeline.Options{Uploader: up, Consolidator: consolidate.New(root)})
	if err := p.Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	doc, err := pipeline.ReadDocument(context.Background(), "gs://bucket/out/report.json", up)
	if err != nil {
		t.Fatalf("ReadDocument() error = %v", err)
	}
	if doc.Categories[0].ID != "total" || doc.Categories[1].ParentID() != "total" {
		t.Errorf("custom root not applied: %+v", doc.Categories)
	}
}

func TestConsolidationPipeline_GCSOutputNeedsUploader(t *testing.T) {
	in := writePages(t, map[string]string{"page_001.json": page1})
	state := pipeline.NewState(in, "gs://bucket/report.json")
	if err := pipeline.NewConsolidationPipeline(pipeline.Options{}).Execute(context.Background(), state); err == nil {
		t.Fatal("expected error without an uploader")
	}
}

// mockRunRepository captures what the BigQuery step publishes.
type mockRunRepository struct {
	runID        string
	categories   int
	transactions int
	succeeded    bool
}

func (m *mockRunRepository) StartRun(ctx context.Context, runID, source string, year int) error {
	m.runID = runID
	return nil
}
func (m *mockRunRepository) MarkRunSucceeded(ctx context.Context, runID string, stats any) error {
	m.succeeded = true
	return nil
}
func (m *mockRunRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {}
func (m *mockRunRepository) InsertCategories(ctx context.Context, rows []*infra.CategoryRow) error {
	m.categories = len(rows)
	return nil
}
func (m *mockRunRepository) InsertTransactions(ctx context.Context, rows []*infra.TransactionRow) error {
	m.transactions = len(rows)
	return nil
}

// emptyNotion is a Notion database with no pages.
type emptyNotion struct {
	created int
}

func (n *emptyNotion) CreatePage(ctx context.Context, databaseID string, props notionapi.Properties) (*notionapi.Page, error) {
	n.created++
	return &notionapi.Page{ID: "p"}, nil
}
func (n *emptyNotion) UpdatePage(ctx context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error) {
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}
func (n *emptyNotion) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return &notionapi.DatabaseQueryResponse{}, nil
}
func (n *emptyNotion) ArchivePage(ctx context.Context, pageID string) error { return nil }

func TestConsolidationPipeline_Publishes(t *testing.T) {
	in := writePages(t, map[string]string{"page_001.json": page1, "page_002.json": page2})
	repo := &mockRunRepository{}
	notion := &emptyNotion{}

	state := pipeline.NewState(in, "")
	p := pipeline.NewConsolidationPipeline(pipeline.Options{
		BigQuery:         repo,
		Notion:           notion,
		NotionDatabaseID: "db",
	})
	if err := p.Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if repo.runID != state.RunID || !repo.succeeded {
		t.Errorf("run not published: %+v", repo)
	}
	if repo.categories != 3 || repo.transactions != 2 {
		t.Errorf("published %d categories and %d transactions", repo.categories, repo.transactions)
	}
	if notion.created != 2 || state.NotionStats == nil || state.NotionStats.Created != 2 {
		t.Errorf("notion created %d pages, stats %+v", notion.created, state.NotionStats)
	}
}

type failingStep struct{}

func (failingStep) Execute(context.Context, *pipeline.PipelineState) error {
	return errors.New("boom")
}

func TestPipeline_WrapsStepErrors(t *testing.T) {
	err := pipeline.NewPipeline(failingStep{}).Execute(context.Background(), pipeline.NewState("", ""))
	if err == nil || err.Error() != "pipeline step 1 failed: boom" {
		t.Errorf("Execute() error = %v", err)
	}
}

var _ notionsync.NotionService = (*emptyNotion)(nil)
