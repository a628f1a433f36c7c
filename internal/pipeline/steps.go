package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/report-consolidator/internal/consolidate"
	infra "github.com/dvloznov/report-consolidator/internal/infra/bigquery"
	"github.com/dvloznov/report-consolidator/internal/logger"
	"github.com/dvloznov/report-consolidator/internal/notionsync"
	"github.com/dvloznov/report-consolidator/internal/pageloader"
)

// Step 1: LoadPagesStep reads every page file of the input and merges them.
type LoadPagesStep struct {
	Loader *pageloader.Loader
	Store  pageloader.ObjectStore
	// Strict fails the run when any file had to be excluded.
	Strict bool
	// Reserved IDs are never handed to page categories.
	Reserved []string
}

func (s *LoadPagesStep) Execute(ctx context.Context, state *PipelineState) error {
	src, err := pageloader.NewSource(state.Input, s.Store)
	if err != nil {
		return err
	}
	pages, diags, err := s.Loader.Load(ctx, src)
	if err != nil {
		return err
	}
	state.Pages = pages
	state.Diagnostics = diags
	if s.Strict && pageloader.HasErrors(diags) {
		return ErrUnreadablePages
	}

	doc, renames := pageloader.Merge(pages, s.Reserved...)
	log := logger.FromContext(ctx)
	for _, r := range renames {
		log.Debug().Str("page", r.Page).Str("from", r.From).Str("to", r.To).Msg("Category ID scoped to its page")
	}
	state.Raw = &doc
	state.Renames = renames
	return nil
}

// Step 2: ConsolidateStep repairs the merged document into a valid tree.
type ConsolidateStep struct {
	Consolidator *consolidate.Consolidator
}

func (s *ConsolidateStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Raw == nil {
		return fmt.Errorf("ConsolidateStep: no merged document")
	}
	result, err := s.Consolidator.Run(ctx, state.Raw)
	if err != nil {
		return err
	}
	state.Result = result
	return nil
}

// Step 3: WriteOutputStep writes the consolidated document. An empty Output skips it.
type WriteOutputStep struct {
	Uploader Uploader
}

func (s *WriteOutputStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Output == "" {
		return nil
	}
	if err := WriteDocument(ctx, state.Output, state.Result.Document, s.Uploader); err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Info().Str("output", state.Output).Msg("Consolidated document written")
	return nil
}

// Step 4: PublishBigQueryStep records the run and its output in BigQuery.
type PublishBigQueryStep struct {
	Repo infra.RunRepository
}

func (s *PublishBigQueryStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := infra.Publish(ctx, s.Repo, state.RunID, state.Input, state.Result.Document, state.Result.Stats); err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Info().Msg("Run published to BigQuery")
	return nil
}

// Step 5: PublishNotionStep mirrors the ledger into a Notion database.
type PublishNotionStep struct {
	Service    notionsync.NotionService
	DatabaseID string
	DryRun     bool
}

func (s *PublishNotionStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.DatabaseID == "" {
		return fmt.Errorf("PublishNotionStep: no database ID configured")
	}
	stats, err := notionsync.SyncLedger(ctx, s.Service, s.DatabaseID, state.Result.Document, state.RunID, s.DryRun)
	if err != nil {
		return err
	}
	state.NotionStats = &stats
	return nil
}
