package inmemory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/report-consolidator/internal/jobs"
)

func fastConfig(retries int) Config {
	return Config{Workers: 3, MaxRetries: retries, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestQueue_ProcessesAllJobs(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewStore()
	q := NewQueue(10, store, fastConfig(1))
	defer q.Close()

	var mu sync.Mutex
	seen := map[string]bool{}
	if err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen[job.(*jobs.ExtractPageJob).ImagePath] = true
		return nil
	}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, img := range []string{"p1.png", "p2.png", "p3.png", "p4.png"} {
		if err := q.PublishExtractPage(ctx, &jobs.ExtractPageJob{RunID: "run", ImagePath: img}); err != nil {
			t.Fatalf("PublishExtractPage() error = %v", err)
		}
	}
	if err := q.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	if len(seen) != 4 {
		t.Errorf("handled %d jobs, want 4", len(seen))
	}
	completed, _ := store.ListJobs(ctx, jobs.JobFilter{RunID: "run", Status: jobs.JobStatusCompleted})
	if len(completed) != 4 {
		t.Errorf("store has %d completed jobs, want 4", len(completed))
	}
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewStore()
	q := NewQueue(4, store, fastConfig(3))
	defer q.Close()

	var attempts int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("rate limited")
		}
		return nil
	})

	job := &jobs.ExtractPageJob{JobID: "j1", ImagePath: "p1.png"}
	if err := q.PublishExtractPage(ctx, job); err != nil {
		t.Fatalf("PublishExtractPage() error = %v", err)
	}
	if err := q.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	got, err := store.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != jobs.JobStatusCompleted || got.RetryCount != 2 || got.Error != "" {
		t.Errorf("unexpected job state: %+v", got)
	}
}

func TestQueue_FailsAfterMaxRetries(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewStore()
	q := NewQueue(4, store, fastConfig(2))
	defer q.Close()

	var attempts int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("model returned garbage")
	})

	_ = q.PublishExtractPage(ctx, &jobs.ExtractPageJob{JobID: "j1"})
	if err := q.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
	got, _ := store.GetJob(ctx, "j1")
	if got.Status != jobs.JobStatusFailed || got.Error != "model returned garbage" {
		t.Errorf("unexpected job state: %+v", got)
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, nil, Config{})
	_ = q.Close()

	if err := q.PublishExtractPage(context.Background(), &jobs.ExtractPageJob{}); err == nil {
		t.Error("expected error publishing to a closed queue")
	}
	if err := q.Start(context.Background(), nil); err == nil {
		t.Error("expected error starting a closed queue")
	}
	// Nothing outstanding after the failed publish.
	if err := q.Drain(context.Background()); err != nil {
		t.Errorf("Drain() error = %v", err)
	}
}

func TestQueue_DrainHonorsContext(t *testing.T) {
	q := NewQueue(1, nil, Config{})
	defer q.Close()

	if err := q.PublishExtractPage(context.Background(), &jobs.ExtractPageJob{}); err != nil {
		t.Fatalf("PublishExtractPage() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain() error = %v, want deadline exceeded", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Workers != DefaultWorkers || cfg.MaxRetries != DefaultMaxRetries ||
		cfg.BaseBackoff != DefaultBaseBackoff || cfg.MaxBackoff != DefaultMaxBackoff {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if got := (Config{MaxRetries: -1}).withDefaults().MaxRetries; got != 0 {
		t.Errorf("negative MaxRetries should disable retries, got %d", got)
	}
}
