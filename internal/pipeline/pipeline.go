// Package pipeline runs a full consolidation: load the page files, merge and
// consolidate them, write the document, and optionally publish it.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/report-consolidator/internal/consolidate"
	"github.com/dvloznov/report-consolidator/internal/domain"
	infra "github.com/dvloznov/report-consolidator/internal/infra/bigquery"
	"github.com/dvloznov/report-consolidator/internal/logger"
	"github.com/dvloznov/report-consolidator/internal/notionsync"
	"github.com/dvloznov/report-consolidator/internal/pageloader"
	"github.com/google/uuid"
)

// ErrUnreadablePages is returned in strict mode when any page file was excluded.
var ErrUnreadablePages = errors.New("some page files could not be read")

// PipelineStep is one stage of a run.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState is shared by all steps of one run.
type PipelineState struct {
	RunID  string
	Input  string
	Output string

	Pages       []pageloader.Page
	Diagnostics []pageloader.Diagnostic
	Renames     []pageloader.Rename
	Raw         *domain.Document
	Result      *consolidate.Result
	NotionStats *notionsync.SyncStats
}

// NewState starts a run with a fresh run ID.
func NewState(input, output string) *PipelineState {
	return &PipelineState{RunID: uuid.NewString(), Input: input, Output: output}
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially, stopping at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).With().Str("run_id", state.RunID).Logger())
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Options selects the collaborators of a consolidation run. Nil publishers
// leave their step out.
type Options struct {
	Loader       *pageloader.Loader
	Store        pageloader.ObjectStore
	Uploader     Uploader
	Consolidator *consolidate.Consolidator
	Strict       bool

	BigQuery infra.RunRepository

	Notion           notionsync.NotionService
	NotionDatabaseID string
	DryRun           bool
}

// NewConsolidationPipeline builds load → consolidate → write, followed by the
// configured publish steps.
func NewConsolidationPipeline(opts Options) *Pipeline {
	if opts.Loader == nil {
		opts.Loader = &pageloader.Loader{}
	}
	if opts.Consolidator == nil {
		opts.Consolidator = consolidate.New(consolidate.DefaultRoot())
	}

	steps := []PipelineStep{
		&LoadPagesStep{Loader: opts.Loader, Store: opts.Store, Strict: opts.Strict, Reserved: []string{opts.Consolidator.Root().ID}},
		&ConsolidateStep{Consolidator: opts.Consolidator},
		&WriteOutputStep{Uploader: opts.Uploader},
	}
	if opts.BigQuery != nil {
		steps = append(steps, &PublishBigQueryStep{Repo: opts.BigQuery})
	}
	if opts.Notion != nil {
		steps = append(steps, &PublishNotionStep{Service: opts.Notion, DatabaseID: opts.NotionDatabaseID, DryRun: opts.DryRun})
	}
	return NewPipeline(steps...)
}
