package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/report-consolidator/internal/jobs"
)

func TestStore_SaveAndGetCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	job := &jobs.ExtractPageJob{JobID: "j1", Status: jobs.JobStatusPending}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}
	job.Status = jobs.JobStatusRunning

	got, err := s.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != jobs.JobStatusPending {
		t.Errorf("stored job changed through caller's pointer: %s", got.Status)
	}

	if err := s.SaveJob(ctx, &jobs.ExtractPageJob{}); err == nil {
		t.Error("expected error saving a job without ID")
	}
	if _, err := s.GetJob(ctx, "missing"); err == nil {
		t.Error("expected error for missing job")
	}
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, j := range []*jobs.ExtractPageJob{
		{JobID: "a", RunID: "r1", ImagePath: "p2.png", Status: jobs.JobStatusCompleted},
		{JobID: "b", RunID: "r1", ImagePath: "p1.png", Status: jobs.JobStatusFailed},
		{JobID: "c", RunID: "r2", ImagePath: "p1.png", Status: jobs.JobStatusCompleted},
		{JobID: "d", RunID: "r1", ImagePath: "p3.png", Status: jobs.JobStatusCompleted},
	} {
		j.CreatedAt = base
		if i == 3 {
			j.CreatedAt = base.Add(time.Second)
		}
		_ = s.SaveJob(ctx, j)
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{name: "by run", filter: jobs.JobFilter{RunID: "r1"}, want: []string{"b", "a", "d"}},
		{name: "by status", filter: jobs.JobFilter{RunID: "r1", Status: jobs.JobStatusCompleted}, want: []string{"a", "d"}},
		{name: "limit and offset", filter: jobs.JobFilter{RunID: "r1", Offset: 1, Limit: 1}, want: []string{"a"}},
		{name: "offset past end", filter: jobs.JobFilter{Offset: 10}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d jobs, want %v", len(got), tt.want)
			}
			for i, id := range tt.want {
				if got[i].JobID != id {
					t.Errorf("position %d = %s, want %s", i, got[i].JobID, id)
				}
			}
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.SaveJob(ctx, &jobs.ExtractPageJob{JobID: "j1"})

	if err := s.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus() error = %v", err)
	}
	got, _ := s.GetJob(ctx, "j1")
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" {
		t.Errorf("unexpected job: %+v", got)
	}
	if err := s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""); err == nil {
		t.Error("expected error for missing job")
	}
}
