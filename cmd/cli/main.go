package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dvloznov/report-consolidator/internal/config"
	"github.com/dvloznov/report-consolidator/internal/consolidate"
	"github.com/dvloznov/report-consolidator/internal/domain"
	"github.com/dvloznov/report-consolidator/internal/extract"
	"github.com/dvloznov/report-consolidator/internal/gcs"
	infraBQ "github.com/dvloznov/report-consolidator/internal/infra/bigquery"
	"github.com/dvloznov/report-consolidator/internal/jobs/inmemory"
	"github.com/dvloznov/report-consolidator/internal/logger"
	"github.com/dvloznov/report-consolidator/internal/notionsync"
	"github.com/dvloznov/report-consolidator/internal/pageloader"
	"github.com/dvloznov/report-consolidator/internal/pipeline"
	"github.com/dvloznov/report-consolidator/internal/report"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Log.Level)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "consolidate":
		runConsolidate(log, cfg)
	case "extract":
		runExtract(log, cfg)
	case "summary":
		runSummary(log, cfg)
	case "export":
		runExport(log, cfg)
	case "validate":
		runValidate(log, cfg)
	case "upload":
		runUpload(log, cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Political fund report consolidator")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  consolidate  Merge page extractions into one consolidated report")
	fmt.Println("  extract      Extract page images into per-page JSON with Gemini")
	fmt.Println("  summary      Print totals and advisory checks of a consolidated report")
	fmt.Println("  export       Export a consolidated report as an xlsx workbook")
	fmt.Println("  validate     Check a consolidated report against the tree invariants")
	fmt.Println("  upload       Upload page files to GCS")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// storage opens a GCS client when any of the locations is a gs:// URI.
func storage(ctx context.Context, log zerolog.Logger, locations ...string) *gcs.Client {
	for _, loc := range locations {
		if gcs.IsURI(loc) {
			client, err := gcs.NewClient(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to create storage client")
			}
			return client
		}
	}
	return nil
}

func runConsolidate(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("consolidate", flag.ExitOnError)
	input := fs.String("input", "", "Directory or gs://bucket/prefix holding page JSON files")
	output := fs.String("output", "", "Output file or gs:// URI for the consolidated report")
	strict := fs.Bool("strict", false, "Fail when any page file cannot be read")
	strip := fs.Bool("strip-numbering", cfg.Loader.StripNumbering, "Strip leading list numbering from names")
	concurrency := fs.Int("concurrency", cfg.Loader.Concurrency, "Parallel page reads")
	toBigQuery := fs.Bool("bigquery", false, "Publish the run to BigQuery")
	toNotion := fs.Bool("notion", false, "Sync the ledger to Notion")
	dryRun := fs.Bool("dry-run", false, "Preview the Notion sync without writing")
	fs.Parse(os.Args[2:])

	if *input == "" || *output == "" {
		log.Fatal().Msg("Usage: cli consolidate -input DIR|gs://... -output FILE|gs://...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	opts := pipeline.Options{
		Loader:       &pageloader.Loader{Concurrency: *concurrency, Options: pageloader.DecodeOptions{StripNumbering: *strip}},
		Consolidator: consolidate.New(cfg.Root.Apply(consolidate.DefaultRoot())),
		Strict:       *strict,
	}
	if client := storage(ctx, log, *input, *output); client != nil {
		defer client.Close()
		opts.Store = client
		opts.Uploader = client
	}

	if *toBigQuery {
		repo, err := infraBQ.NewRepository(ctx, infraBQ.Tables{ProjectID: cfg.GCP.ProjectID, DatasetID: cfg.GCP.Dataset})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize BigQuery repository")
		}
		defer repo.Close()
		opts.BigQuery = repo
	}
	if *toNotion {
		if cfg.Notion.Token == "" || cfg.Notion.DatabaseID == "" {
			log.Fatal().Msg("NOTION_TOKEN and NOTION_DATABASE_ID are required for -notion")
		}
		opts.Notion = notionsync.NewNotionClient(cfg.Notion.Token)
		opts.NotionDatabaseID = cfg.Notion.DatabaseID
		opts.DryRun = *dryRun
	}

	state := pipeline.NewState(*input, *output)
	if err := pipeline.NewConsolidationPipeline(opts).Execute(ctx, state); err != nil {
		log.Fatal().Err(err).Str("run_id", state.RunID).Msg("Consolidation failed")
	}

	stats, _ := json.MarshalIndent(state.Result.Stats, "", "  ")
	fmt.Printf("Run %s: %d pages, %d diagnostics\n%s\n", state.RunID, len(state.Pages), len(state.Diagnostics), stats)
	fmt.Printf("Consolidated report written to %s\n", *output)
}

func runExtract(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	images := fs.String("images", "", "Directory of page images")
	output := fs.String("output", "", "Directory for per-page JSON")
	workers := fs.Int("workers", cfg.Extract.Workers, "Concurrent extraction workers")
	retries := fs.Int("retries", cfg.Extract.MaxRetries, "Retries per page")
	model := fs.String("model", cfg.Gemini.Model, "Gemini model name")
	overwrite := fs.Bool("overwrite", false, "Re-extract pages that already have JSON")
	fs.Parse(os.Args[2:])

	if *images == "" || *output == "" {
		log.Fatal().Msg("Usage: cli extract -images DIR -output DIR")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	extractor, err := extract.NewGeminiExtractor(ctx, cfg.Gemini.APIKey, *model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	runner := &extract.Runner{
		Extractor: extractor,
		Queue:     inmemory.Config{Workers: *workers, MaxRetries: *retries},
		Overwrite: *overwrite,
	}
	rep, err := runner.Run(ctx, *images, *output)
	if err != nil {
		log.Fatal().Err(err).Msg("Extraction failed")
	}

	fmt.Printf("Extracted %d of %d pages (%d skipped, %d failed)\n", rep.Extracted, rep.Total, rep.Skipped, len(rep.Failed))
	if len(rep.Failed) > 0 {
		fmt.Printf("See %s\n", filepath.Join(*output, extract.ErrorLogFile))
		os.Exit(1)
	}
}

func loadDocument(ctx context.Context, log zerolog.Logger, input string) *domain.Document {
	client := storage(ctx, log, input)
	if client != nil {
		defer client.Close()
	}
	var f pipeline.Fetcher
	if client != nil {
		f = client
	}
	doc, err := pipeline.ReadDocument(ctx, input, f)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read report")
	}
	return doc
}

func runSummary(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	input := fs.String("input", "", "Consolidated report (file or gs:// URI)")
	fs.Parse(os.Args[2:])

	if *input == "" {
		log.Fatal().Msg("Usage: cli summary -input FILE")
	}
	ctx := logger.WithContext(context.Background(), log)
	doc := loadDocument(ctx, log, *input)

	s := report.Summarize(doc)
	fmt.Printf("Year:    %d\n", s.Year)
	fmt.Printf("Income:  %s\n", s.Income.StringFixed(0))
	fmt.Printf("Expense: %s\n", s.Expense.StringFixed(0))
	fmt.Printf("Balance: %s\n", s.Balance.StringFixed(0))

	issues := report.Check(doc)
	if len(issues) == 0 {
		fmt.Println("\nNo issues found.")
		return
	}
	fmt.Println("\nIssues:")
	for _, issue := range issues {
		fmt.Printf("  - %s\n", issue)
	}
}

func runExport(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	input := fs.String("input", "", "Consolidated report (file or gs:// URI)")
	output := fs.String("output", "", "Workbook path or gs:// URI (.xlsx)")
	fs.Parse(os.Args[2:])

	if *input == "" || *output == "" {
		log.Fatal().Msg("Usage: cli export -input FILE -output FILE.xlsx")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)
	doc := loadDocument(ctx, log, *input)

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, doc); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	if gcs.IsURI(*output) {
		client := storage(ctx, log, *output)
		defer client.Close()
		const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		if err := client.Upload(ctx, *output, buf.Bytes(), xlsxType); err != nil {
			log.Fatal().Err(err).Msg("Upload failed")
		}
	} else if err := os.WriteFile(*output, buf.Bytes(), 0o644); err != nil {
		log.Fatal().Err(err).Msg("Writing workbook failed")
	}

	fmt.Printf("Workbook written to %s\n", *output)
}

func runValidate(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	input := fs.String("input", "", "Consolidated report (file or gs:// URI)")
	rootID := fs.String("root-id", cfg.Root.Apply(consolidate.DefaultRoot()).ID, "Expected root category ID")
	fs.Parse(os.Args[2:])

	if *input == "" {
		log.Fatal().Msg("Usage: cli validate -input FILE")
	}
	ctx := logger.WithContext(context.Background(), log)
	doc := loadDocument(ctx, log, *input)

	err := consolidate.Validate(doc, *rootID)
	if err == nil {
		fmt.Println("Report is valid.")
		return
	}
	if !errors.Is(err, consolidate.ErrInvariantViolation) {
		log.Fatal().Err(err).Msg("Validation could not run")
	}
	fmt.Println(err)
	os.Exit(1)
}

func runUpload(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucket := fs.String("bucket", cfg.GCP.Bucket, "GCS bucket name")
	dir := fs.String("dir", "", "Local directory of page files")
	prefix := fs.String("prefix", "", "Object name prefix")
	fs.Parse(os.Args[2:])

	if *bucket == "" || *dir == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -dir DIR [-prefix P]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	entries, err := os.ReadDir(*dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read directory")
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer client.Close()

	uploaded := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		object := path.Join(*prefix, e.Name())
		if err := client.UploadFile(ctx, *bucket, object, filepath.Join(*dir, e.Name())); err != nil {
			log.Fatal().Err(err).Str("file", e.Name()).Msg("Upload failed")
		}
		log.Debug().Str("object", object).Msg("Uploaded")
		uploaded++
	}

	fmt.Printf("Uploaded %d files to %s\n", uploaded, gcs.URI(*bucket, *prefix))
}
