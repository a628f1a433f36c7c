// Package consolidate turns the merged per-page extraction of a fund report
// into a single well-formed category tree with a clean transaction ledger.
package consolidate

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/report-consolidator/internal/domain"
	"github.com/dvloznov/report-consolidator/internal/logger"
)

var (
	// ErrInvariantViolation is returned when a consolidated document fails validation.
	ErrInvariantViolation = errors.New("consolidated document violates invariants")
	// ErrReservedID is returned when an input category already uses the root's ID.
	ErrReservedID = errors.New("category id is reserved for the root")
	// ErrIterationLimit is returned when a fixed-point stage fails to settle.
	ErrIterationLimit = errors.New("iteration limit exceeded")
)

// Default identity of the injected root category.
const (
	DefaultRootID   = "root"
	DefaultRootName = "総収入"
)

// DefaultRoot returns the root category used when none is configured.
func DefaultRoot() domain.Category {
	return domain.Category{
		ID:        DefaultRootID,
		Name:      domain.StringPtr(DefaultRootName),
		Direction: domain.DirectionPtr(domain.DirectionIncome),
	}
}

// Stats counts the repairs made during one run.
type Stats struct {
	InputCategories   int `json:"input_categories"`
	InputTransactions int `json:"input_transactions"`

	DuplicatesMerged int `json:"duplicates_merged"`

	SelfLoopsCleared     int `json:"self_loops_cleared"`
	ParentsRemapped      int `json:"parents_remapped"`
	OrphansAnchored      int `json:"orphans_anchored"`
	DanglingParents      int `json:"dangling_parents"`
	CyclesBroken         int `json:"cycles_broken"`
	TransactionsRemapped int `json:"transactions_remapped"`
	DanglingTransactions int `json:"dangling_transactions"`

	CategoriesFlattened    int `json:"categories_flattened"`
	TransactionsReassigned int `json:"transactions_reassigned"`
	FlattenPasses          int `json:"flatten_passes"`

	ZeroValueDropped int `json:"zero_value_dropped"`
	DatesDefaulted   int `json:"dates_defaulted"`

	CategoriesPruned int `json:"categories_pruned"`
	PrunePasses      int `json:"prune_passes"`

	OutputCategories   int `json:"output_categories"`
	OutputTransactions int `json:"output_transactions"`
}

// Result is the outcome of a consolidation run.
type Result struct {
	Document *domain.Document
	Stats    Stats
	// Dropped holds transactions whose category could not be resolved.
	Dropped []domain.Transaction
}

// State is shared by the steps of one run.
type State struct {
	Root     domain.Category
	Document *domain.Document
	Remap    map[string]string
	Dropped  []domain.Transaction
	Stats    Stats
}

// Step is one stage of the consolidation.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// Consolidator runs the consolidation steps in order.
type Consolidator struct {
	root  domain.Category
	steps []Step
}

// New creates a Consolidator anchoring the tree at root. A zero root ID falls
// back to DefaultRoot.
func New(root domain.Category) *Consolidator {
	if root.ID == "" {
		root = DefaultRoot()
	}
	root = root.Clone()
	root.Parent = nil
	return &Consolidator{
		root: root,
		steps: []Step{
			&DeduplicateStep{},
			&SanitizeStep{},
			&FlattenStep{},
			&NormalizeStep{},
			&PruneStep{},
			&ValidateStep{},
		},
	}
}

// Root returns the root category injected by this Consolidator.
func (c *Consolidator) Root() domain.Category {
	return c.root.Clone()
}

// Run consolidates doc. doc is not modified.
func (c *Consolidator) Run(ctx context.Context, doc *domain.Document) (*Result, error) {
	log := logger.FromContext(ctx)

	if doc == nil {
		doc = &domain.Document{}
	}
	for _, cat := range doc.Categories {
		if cat.ID == c.root.ID {
			return nil, fmt.Errorf("Run: category %q: %w", cat.ID, ErrReservedID)
		}
	}

	working := doc.Clone()
	state := &State{
		Root:     c.root.Clone(),
		Document: &working,
	}
	state.Stats.InputCategories = len(doc.Categories)
	state.Stats.InputTransactions = len(doc.Transactions)

	for i, step := range c.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Debug().Int("step", i+1).Str("name", step.Name()).Msg("Running consolidation step")
		if err := step.Execute(ctx, state); err != nil {
			return nil, fmt.Errorf("consolidation step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}

	state.Stats.OutputCategories = len(state.Document.Categories)
	state.Stats.OutputTransactions = len(state.Document.Transactions)

	log.Info().
		Int("categories_in", state.Stats.InputCategories).
		Int("categories_out", state.Stats.OutputCategories).
		Int("transactions_in", state.Stats.InputTransactions).
		Int("transactions_out", state.Stats.OutputTransactions).
		Msg("Consolidation finished")

	return &Result{Document: state.Document, Stats: state.Stats, Dropped: state.Dropped}, nil
}

// DeduplicateStep merges categories that share a name and injects the root
// ahead of the survivors.
type DeduplicateStep struct{}

func (s *DeduplicateStep) Name() string { return "deduplicate" }

func (s *DeduplicateStep) Execute(ctx context.Context, state *State) error {
	survivors, remap := Deduplicate(state.Document.Categories)
	state.Stats.DuplicatesMerged = len(state.Document.Categories) - len(survivors)
	state.Remap = remap
	state.Document.Categories = append([]domain.Category{state.Root.Clone()}, survivors...)
	return nil
}

// SanitizeStep repairs parents and transaction references.
type SanitizeStep struct{}

func (s *SanitizeStep) Name() string { return "sanitize" }

func (s *SanitizeStep) Execute(ctx context.Context, state *State) error {
	cats, txs, dropped := Sanitize(state.Document.Categories, state.Document.Transactions, state.Remap, state.Root.ID, &state.Stats)
	if len(dropped) > 0 {
		ids := make([]string, 0, len(dropped))
		for _, t := range dropped {
			ids = append(ids, t.ID)
		}
		log := logger.FromContext(ctx)
		log.Warn().
			Int("count", len(dropped)).
			Strs("transaction_ids", ids).
			Msg("Dropping transactions with unresolvable category")
	}
	state.Document.Categories = cats
	state.Document.Transactions = txs
	state.Dropped = dropped
	return nil
}

// FlattenStep collapses the subtrees of mixed categories.
type FlattenStep struct{}

func (s *FlattenStep) Name() string { return "flatten" }

func (s *FlattenStep) Execute(ctx context.Context, state *State) error {
	cats, txs, err := FlattenMixed(state.Document.Categories, state.Document.Transactions, &state.Stats)
	if err != nil {
		return err
	}
	state.Document.Categories = cats
	state.Document.Transactions = txs
	return nil
}

// NormalizeStep cleans transaction values and dates.
type NormalizeStep struct{}

func (s *NormalizeStep) Name() string { return "normalize" }

func (s *NormalizeStep) Execute(ctx context.Context, state *State) error {
	state.Document.Transactions = NormalizeTransactions(state.Document.Transactions, &state.Stats)
	return nil
}

// PruneStep removes empty categories.
type PruneStep struct{}

func (s *PruneStep) Name() string { return "prune" }

func (s *PruneStep) Execute(ctx context.Context, state *State) error {
	cats, err := PruneEmpty(state.Document.Categories, state.Document.Transactions, state.Root.ID, &state.Stats)
	if err != nil {
		return err
	}
	state.Document.Categories = cats
	return nil
}

// ValidateStep rejects output that breaks a structural invariant.
type ValidateStep struct{}

func (s *ValidateStep) Name() string { return "validate" }

func (s *ValidateStep) Execute(ctx context.Context, state *State) error {
	return Validate(state.Document, state.Root.ID)
}
