package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/report-consolidator/internal/config"
	infraBQ "github.com/dvloznov/report-consolidator/internal/infra/bigquery"
	"github.com/dvloznov/report-consolidator/internal/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Log.Level)

	projectID := flag.String("project", cfg.GCP.ProjectID, "GCP project ID (or set GCP_PROJECT_ID)")
	datasetID := flag.String("dataset", cfg.GCP.Dataset, "BigQuery dataset ID (or set BQ_DATASET)")
	appliedBy := flag.String("applied-by", "migrate-cli", "Name recorded for applied migrations")
	flag.Parse()

	if *projectID == "" {
		log.Fatal().Msg("Error: -project is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewRepository(ctx, infraBQ.Tables{ProjectID: *projectID, DatasetID: *datasetID})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize BigQuery repository")
	}
	defer repo.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Applying migrations")

	n, err := repo.Migrate(ctx, *appliedBy)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	if n == 0 {
		fmt.Println("No new migrations to apply. Dataset is up to date.")
		return
	}
	fmt.Printf("Successfully applied %d migration(s)\n", n)
}
