package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/report-consolidator/internal/jobs"
	"github.com/dvloznov/report-consolidator/internal/jobs/inmemory"
	"github.com/dvloznov/report-consolidator/internal/logger"
	"github.com/google/uuid"
)

// ErrorLogFile is written to the output directory when any page fails.
const ErrorLogFile = "error_log.json"

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// Runner extracts every page image in a directory through a job queue.
type Runner struct {
	Extractor Extractor
	Queue     inmemory.Config
	// Overwrite re-extracts pages whose JSON already exists.
	Overwrite bool
}

// PageError is one entry of the error log.
type PageError struct {
	File         string    `json:"file"`
	ErrorMessage string    `json:"error_message"`
	Attempts     int       `json:"attempts"`
	Timestamp    time.Time `json:"timestamp"`
}

// Report summarizes an extraction run.
type Report struct {
	RunID     string      `json:"run_id"`
	Total     int         `json:"total"`
	Extracted int         `json:"extracted"`
	Skipped   int         `json:"skipped"`
	Failed    []PageError `json:"failed,omitempty"`
}

// Run extracts imageDir/* into outputDir/<stem>.json. Individual page failures
// are collected in the report and error_log.json rather than returned.
func (r *Runner) Run(ctx context.Context, imageDir, outputDir string) (*Report, error) {
	if r.Extractor == nil {
		return nil, errors.New("Run: no extractor configured")
	}
	runID := uuid.New().String()
	log := logger.FromContext(ctx).With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx, log)

	images, err := ListImages(imageDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("Run: creating %s: %w", outputDir, err)
	}

	report := &Report{RunID: runID, Total: len(images)}
	var pending []*jobs.ExtractPageJob
	for _, img := range images {
		out := filepath.Join(outputDir, OutputName(img))
		if !r.Overwrite {
			if _, err := os.Stat(out); err == nil {
				report.Skipped++
				continue
			}
		}
		pending = append(pending, &jobs.ExtractPageJob{
			RunID:      runID,
			ImagePath:  filepath.Join(imageDir, img),
			OutputPath: out,
		})
	}
	log.Info().Int("images", len(images)).Int("pending", len(pending)).Int("skipped", report.Skipped).Msg("Starting extraction")

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(len(pending)+1, store, r.Queue)
	if err := queue.Start(ctx, r.handle); err != nil {
		return nil, fmt.Errorf("Run: starting queue: %w", err)
	}
	defer queue.Close()

	for _, job := range pending {
		if err := queue.PublishExtractPage(ctx, job); err != nil {
			return nil, fmt.Errorf("Run: publishing %s: %w", job.ImagePath, err)
		}
	}
	if err := queue.Drain(ctx); err != nil {
		return nil, fmt.Errorf("Run: waiting for jobs: %w", err)
	}

	done, err := store.ListJobs(ctx, jobs.JobFilter{RunID: runID})
	if err != nil {
		return nil, fmt.Errorf("Run: listing jobs: %w", err)
	}
	for _, job := range done {
		switch job.Status {
		case jobs.JobStatusCompleted:
			report.Extracted++
		case jobs.JobStatusFailed:
			ts := job.CreatedAt
			if job.CompletedAt != nil {
				ts = *job.CompletedAt
			}
			report.Failed = append(report.Failed, PageError{
				File:         filepath.Base(job.ImagePath),
				ErrorMessage: job.Error,
				Attempts:     job.RetryCount + 1,
				Timestamp:    ts,
			})
		}
	}
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].File < report.Failed[j].File })

	if len(report.Failed) > 0 {
		if err := writeErrorLog(filepath.Join(outputDir, ErrorLogFile), report.Failed); err != nil {
			return report, err
		}
	}
	log.Info().Int("extracted", report.Extracted).Int("failed", len(report.Failed)).Msg("Extraction finished")
	return report, nil
}

func (r *Runner) handle(ctx context.Context, job jobs.Job) error {
	j, ok := job.(*jobs.ExtractPageJob)
	if !ok {
		return fmt.Errorf("handle: unexpected job type %s", job.GetType())
	}
	image, err := os.ReadFile(j.ImagePath)
	if err != nil {
		return fmt.Errorf("handle: reading image: %w", err)
	}
	out, err := r.Extractor.ExtractPage(ctx, image, imageTypes[strings.ToLower(filepath.Ext(j.ImagePath))])
	if err != nil {
		return err
	}
	if err := os.WriteFile(j.OutputPath, out, 0o644); err != nil {
		return fmt.Errorf("handle: writing %s: %w", j.OutputPath, err)
	}
	log := logger.FromContext(ctx)
	log.Debug().Str("image", j.ImagePath).Str("output", j.OutputPath).Msg("Page extracted")
	return nil
}

// ListImages returns the page image names in dir, sorted.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ListImages: reading %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageTypes[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// OutputName maps page_001.png to page_001.json.
func OutputName(image string) string {
	return strings.TrimSuffix(image, filepath.Ext(image)) + ".json"
}

func writeErrorLog(path string, errs []PageError) error {
	data, err := json.MarshalIndent(map[string]any{"errors": errs}, "", "  ")
	if err != nil {
		return fmt.Errorf("writeErrorLog: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writeErrorLog: %w", err)
	}
	return nil
}
