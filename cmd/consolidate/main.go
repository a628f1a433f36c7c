package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/report-consolidator/internal/config"
	"github.com/dvloznov/report-consolidator/internal/consolidate"
	"github.com/dvloznov/report-consolidator/internal/gcs"
	"github.com/dvloznov/report-consolidator/internal/logger"
	"github.com/dvloznov/report-consolidator/internal/pageloader"
	"github.com/dvloznov/report-consolidator/internal/pipeline"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Log.Level)

	input := flag.String("input", "", "Directory or gs://bucket/prefix holding page JSON files (required)")
	output := flag.String("output", "", "Output file or gs:// URI (required)")
	strict := flag.Bool("strict", false, "Fail when any page file cannot be read")
	flag.Parse()

	if *input == "" || *output == "" {
		log.Fatal().Msg("Usage: consolidate -input DIR|gs://... -output FILE|gs://...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	opts := pipeline.Options{
		Loader: &pageloader.Loader{
			Concurrency: cfg.Loader.Concurrency,
			Options:     pageloader.DecodeOptions{StripNumbering: cfg.Loader.StripNumbering},
		},
		Consolidator: consolidate.New(cfg.Root.Apply(consolidate.DefaultRoot())),
		Strict:       *strict,
	}
	if gcs.IsURI(*input) || gcs.IsURI(*output) {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer client.Close()
		opts.Store = client
		opts.Uploader = client
	}

	state := pipeline.NewState(*input, *output)
	if err := pipeline.NewConsolidationPipeline(opts).Execute(ctx, state); err != nil {
		log.Fatal().Err(err).Str("run_id", state.RunID).Msg("Consolidation failed")
	}

	fmt.Printf("Consolidated %d pages into %d categories and %d transactions: %s\n",
		len(state.Pages), state.Result.Stats.OutputCategories, state.Result.Stats.OutputTransactions, *output)
}
