package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/statement-ledger/internal/jobs"
)

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	job := &jobs.ImportFileJob{JobID: "a", SourceURI: "jan.csv", Status: jobs.JobStatusPending}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error: %v", err)
	}
	job.Status = jobs.JobStatusFailed

	got, err := s.GetJob(ctx, "a")
	if err != nil {
		t.Fatalf("GetJob() error: %v", err)
	}
	if got.Status != jobs.JobStatusPending {
		t.Errorf("stored job changed through caller pointer: %s", got.Status)
	}

	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("GetJob(missing) error = %v", err)
	}
	if err := s.SaveJob(ctx, &jobs.ImportFileJob{}); err == nil {
		t.Error("SaveJob() expected error for empty ID")
	}
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, j := range []struct {
		id, uri string
		status  jobs.JobStatus
	}{
		{"1", "jan.csv", jobs.JobStatusCompleted},
		{"2", "feb.csv", jobs.JobStatusFailed},
		{"3", "jan.csv", jobs.JobStatusPending},
		{"4", "mar.csv", jobs.JobStatusCompleted},
	} {
		s.SaveJob(ctx, &jobs.ImportFileJob{
			JobID:     j.id,
			SourceURI: j.uri,
			Status:    j.status,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	tests := []struct {
		name    string
		filter  jobs.JobFilter
		wantIDs []string
	}{
		{name: "all newest first", wantIDs: []string{"4", "3", "2", "1"}},
		{name: "by source", filter: jobs.JobFilter{SourceURI: "jan.csv"}, wantIDs: []string{"3", "1"}},
		{name: "by status", filter: jobs.JobFilter{Status: jobs.JobStatusCompleted}, wantIDs: []string{"4", "1"}},
		{name: "limit", filter: jobs.JobFilter{Limit: 2}, wantIDs: []string{"4", "3"}},
		{name: "offset", filter: jobs.JobFilter{Offset: 3}, wantIDs: []string{"1"}},
		{name: "offset past end", filter: jobs.JobFilter{Offset: 10}, wantIDs: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs() error: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("ListJobs() returned %d jobs, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].JobID != id {
					t.Errorf("job[%d] = %s, want %s", i, got[i].JobID, id)
				}
			}
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.SaveJob(ctx, &jobs.ImportFileJob{JobID: "a", Status: jobs.JobStatusRunning})

	if err := s.UpdateJobStatus(ctx, "a", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus() error: %v", err)
	}
	got, _ := s.GetJob(ctx, "a")
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" {
		t.Errorf("job = %+v", got)
	}
	if err := s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("UpdateJobStatus(missing) error = %v", err)
	}
}

func startQueue(t *testing.T, handler jobs.JobHandler) (*Queue, *Store) {
	t.Helper()
	store := NewStore()
	q := NewQueue(10, store, WithWorkers(2), WithRetryDelay(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() {
		q.Stop(context.Background())
		cancel()
	})
	return q, store
}

func waitFor(t *testing.T, store *Store, id string) *jobs.ImportFileJob {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done, err := jobs.WaitForJobs(ctx, store, []string{id}, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForJobs() error: %v", err)
	}
	return done[0]
}

func TestQueue_ProcessesJob(t *testing.T) {
	q, store := startQueue(t, func(ctx context.Context, job jobs.Job) error {
		j := job.(*jobs.ImportFileJob)
		j.Result = &jobs.ImportResult{Format: "chase", Inserted: 3}
		return nil
	})

	job := &jobs.ImportFileJob{SourceURI: "jan.csv"}
	if err := q.PublishImportFile(context.Background(), job); err != nil {
		t.Fatalf("PublishImportFile() error: %v", err)
	}
	if job.JobID == "" || job.MaxRetries != DefaultMaxRetries {
		t.Errorf("published job = %+v", job)
	}

	got := waitFor(t, store, job.JobID)
	if got.Status != jobs.JobStatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Result == nil || got.Result.Inserted != 3 {
		t.Errorf("Result = %+v", got.Result)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("timestamps not recorded")
	}
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	q, store := startQueue(t, func(ctx context.Context, job jobs.Job) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})

	job := &jobs.ImportFileJob{SourceURI: "jan.csv"}
	if err := q.PublishImportFile(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	got := waitFor(t, store, job.JobID)
	if got.Status != jobs.JobStatusCompleted || got.RetryCount != 2 || got.Error != "" {
		t.Errorf("job = %+v", got)
	}
}

func TestQueue_FailsAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	q, store := startQueue(t, func(ctx context.Context, job jobs.Job) error {
		calls.Add(1)
		return errors.New("file missing")
	})

	job := &jobs.ImportFileJob{SourceURI: "gone.csv", MaxRetries: 1}
	if err := q.PublishImportFile(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	got := waitFor(t, store, job.JobID)
	if got.Status != jobs.JobStatusFailed || got.Error != "file missing" {
		t.Errorf("job = %+v", got)
	}
	if calls.Load() != 2 {
		t.Errorf("handler called %d times, want 2", calls.Load())
	}
}

func TestQueue_PermanentErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	q, store := startQueue(t, func(ctx context.Context, job jobs.Job) error {
		calls.Add(1)
		return jobs.Permanent(errors.New("no registered format"))
	})

	job := &jobs.ImportFileJob{SourceURI: "notes.txt"}
	if err := q.PublishImportFile(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	got := waitFor(t, store, job.JobID)
	if got.Status != jobs.JobStatusFailed || got.RetryCount != 0 {
		t.Errorf("job = %+v", got)
	}
	if calls.Load() != 1 {
		t.Errorf("handler called %d times, want 1", calls.Load())
	}
}

func TestQueue_PublishErrors(t *testing.T) {
	q := NewQueue(1, NewStore())
	if err := q.PublishImportFile(context.Background(), &jobs.ImportFileJob{}); err == nil {
		t.Error("PublishImportFile() expected error for missing source")
	}

	if err := q.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	err := q.PublishImportFile(context.Background(), &jobs.ImportFileJob{SourceURI: "jan.csv"})
	if !errors.Is(err, jobs.ErrQueueClosed) {
		t.Errorf("PublishImportFile() after close error = %v", err)
	}
	if err := q.Start(context.Background(), nil); !errors.Is(err, jobs.ErrQueueClosed) {
		t.Errorf("Start() after close error = %v", err)
	}
}
