package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/report-consolidator/internal/domain"
	"github.com/dvloznov/report-consolidator/internal/logger"
	"github.com/jomei/notionapi"
)

// BatchSize is the number of transactions logged as one progress step,
// and the page size used when listing the database.
const BatchSize = 100

// SyncStats counts what a ledger sync did (or would do, on a dry run).
type SyncStats struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// SyncLedger mirrors the document's transactions into a Notion database keyed
// by Transaction ID:
// 1. Pages whose transaction is no longer in the document, or that repeat an
// ID already seen, are archived.
// 2. Pages for known transactions are updated in place.
// 3. Remaining transactions get new pages.
// Per-page API failures are logged and counted; only listing the database is fatal.
func SyncLedger(ctx context.Context, svc NotionService, databaseID string, doc *domain.Document, runID string, dryRun bool) (SyncStats, error) {
	log := logger.FromContext(ctx).With().Str("run_id", runID).Bool("dry_run", dryRun).Logger()
	var stats SyncStats

	log.Info().Int("transactions", len(doc.Transactions)).Msg("Starting ledger sync to Notion")

	pages, err := queryAllNotionPages(ctx, svc, databaseID)
	if err != nil {
		return stats, fmt.Errorf("SyncLedger: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	wanted := make(map[string]bool, len(doc.Transactions))
	for _, tx := range doc.Transactions {
		wanted[tx.ID] = true
	}

	existing := make(map[string]string)
	for _, page := range pages {
		txID := extractTransactionID(page)
		pageID := string(page.ID)
		if _, dup := existing[txID]; txID != "" && wanted[txID] && !dup {
			existing[txID] = pageID
			continue
		}
		if dryRun {
			log.Info().Str("transaction_id", txID).Str("page_id", pageID).Msg("[DRY RUN] Would archive stale Notion page")
			stats.Archived++
			continue
		}
		if err := svc.ArchivePage(ctx, pageID); err != nil {
			log.Warn().Err(err).Str("transaction_id", txID).Str("page_id", pageID).Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		stats.Archived++
	}

	categories := make(map[string]domain.Category, len(doc.Categories))
	for _, c := range doc.Categories {
		categories[c.ID] = c
	}

	for i, tx := range doc.Transactions {
		if i%BatchSize == 0 {
			log.Debug().Int("batch_start", i).Msg("Processing batch")
		}

		pageID, found := existing[tx.ID]
		if dryRun {
			if found {
				stats.Updated++
			} else {
				existing[tx.ID] = ""
				stats.Created++
			}
			continue
		}

		props := TransactionToProperties(tx, categories[tx.CategoryID], runID)
		if found {
			// A repeated transaction ID in the document maps to the same page.
			if _, err := svc.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("transaction_id", tx.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
				stats.Failed++
				continue
			}
			stats.Updated++
			continue
		}

		page, err := svc.CreatePage(ctx, databaseID, props)
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to create Notion page")
			stats.Failed++
			continue
		}
		existing[tx.ID] = string(page.ID)
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("archived", stats.Archived).
		Int("failed", stats.Failed).
		Msg("Ledger sync completed")

	return stats, nil
}

// queryAllNotionPages follows the cursor until the database is exhausted.
func queryAllNotionPages(ctx context.Context, svc NotionService, databaseID string) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: BatchSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := svc.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return all, nil
}
