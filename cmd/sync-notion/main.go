package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/report-consolidator/internal/config"
	"github.com/dvloznov/report-consolidator/internal/gcs"
	"github.com/dvloznov/report-consolidator/internal/logger"
	"github.com/dvloznov/report-consolidator/internal/notionsync"
	"github.com/dvloznov/report-consolidator/internal/pipeline"
	"github.com/google/uuid"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Log.Level)

	input := flag.String("input", "", "Consolidated report, file or gs:// URI (required)")
	notionToken := flag.String("notion-token", cfg.Notion.Token, "Notion API token (or set NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", cfg.Notion.DatabaseID, "Notion database ID (or set NOTION_DATABASE_ID)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	if *input == "" {
		log.Fatal().Msg("Error: -input is required")
	}
	if *notionToken == "" || *notionDBID == "" {
		log.Fatal().Msg("Error: a Notion token and database ID are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var fetcher pipeline.Fetcher
	if gcs.IsURI(*input) {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer client.Close()
		fetcher = client
	}

	doc, err := pipeline.ReadDocument(ctx, *input, fetcher)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read report")
	}

	stats, err := notionsync.SyncLedger(ctx, notionsync.NewNotionClient(*notionToken), *notionDBID, doc, uuid.NewString(), *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed\n",
		stats.Created, stats.Updated, stats.Archived, stats.Failed)
}
