// Package pageloader reads per-page extraction documents and merges them into
// one raw document for consolidation.
package pageloader

import (
	"context"
	"fmt"

	"github.com/dvloznov/report-consolidator/internal/logger"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel page reads when none is configured.
const DefaultConcurrency = 8

// Loader reads every page of a Source.
type Loader struct {
	Concurrency int
	Options     DecodeOptions
}

// Load reads and decodes all pages. Pages come back in listing order no matter
// which read finishes first. Files that fail to read or parse are excluded and
// reported as error diagnostics; only listing failures and cancellation abort.
func (l *Loader) Load(ctx context.Context, src Source) ([]Page, []Diagnostic, error) {
	log := logger.FromContext(ctx).With().Str("source", src.String()).Logger()

	names, err := src.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("Load: listing pages: %w", err)
	}
	log.Info().Int("files", len(names)).Msg("Loading pages")

	type result struct {
		page  Page
		diags []Diagnostic
		ok    bool
	}
	results := make([]result, len(names))

	limit := l.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := src.Read(gctx, name)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				results[i] = result{diags: []Diagnostic{{File: name, Severity: SeverityError, Message: fmt.Sprintf("read failed: %v", err)}}}
				return nil
			}
			page, diags, err := DecodePage(name, raw, l.Options)
			if err != nil {
				results[i] = result{diags: append(diags, Diagnostic{File: name, Severity: SeverityError, Message: err.Error()})}
				return nil
			}
			results[i] = result{page: page, diags: diags, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("Load: %w", err)
	}

	var pages []Page
	var diags []Diagnostic
	for _, r := range results {
		diags = append(diags, r.diags...)
		if r.ok {
			pages = append(pages, r.page)
		}
	}

	for _, d := range diags {
		ev := log.Warn()
		if d.Severity == SeverityError {
			ev = log.Error()
		}
		ev.Str("file", d.File).Msg(d.Message)
	}
	log.Info().Int("pages", len(pages)).Int("excluded", len(names)-len(pages)).Msg("Pages loaded")

	return pages, diags, nil
}

// HasErrors reports whether any diagnostic excluded a file.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
