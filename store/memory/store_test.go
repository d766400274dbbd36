package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/dlq"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/metadata"
)

func newTestJob(name, queue string) *job.Job {
	return &job.Job{
		Entity:     courier.NewEntity(),
		ID:         id.NewJobID(),
		Name:       name,
		Queue:      queue,
		Payload:    []byte(`{"x":1}`),
		Metadata:   metadata.Snapshot{metadata.TenantKey: "100"},
		State:      job.StatePending,
		MaxRetries: 3,
		RunAt:      time.Now().UTC(),
	}
}

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

func TestStore_EnqueueAndGetJob(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newTestJob("send-email", "default")
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Name != "send-email" {
		t.Errorf("Name = %q, want %q", got.Name, "send-email")
	}
	if got.State != job.StatePending {
		t.Errorf("State = %q, want pending", got.State)
	}
	if got.TenantID() != "100" {
		t.Errorf("TenantID = %q, want %q", got.TenantID(), "100")
	}
}

func TestStore_EnqueueJobDuplicate(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newTestJob("dup", "default")
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if err := s.EnqueueJob(ctx, j); !errors.Is(err, courier.ErrJobAlreadyExists) {
		t.Fatalf("second EnqueueJob = %v, want ErrJobAlreadyExists", err)
	}
}

func TestStore_GetJobNotFound(t *testing.T) {
	t.Parallel()
	s := New()

	if _, err := s.GetJob(context.Background(), id.NewJobID()); !errors.Is(err, courier.ErrJobNotFound) {
		t.Fatalf("GetJob = %v, want ErrJobNotFound", err)
	}
}

func TestStore_GetMetadata(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newTestJob("meta", "default")
	j.Metadata = metadata.Snapshot{metadata.TenantKey: "200", "origin": "api"}
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	snap, err := s.GetMetadata(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if snap.Value(metadata.TenantKey) != "200" {
		t.Errorf("tenant = %q, want %q", snap.Value(metadata.TenantKey), "200")
	}
	if snap.Value("origin") != "api" {
		t.Errorf("origin = %q, want %q", snap.Value("origin"), "api")
	}

	if _, err := s.GetMetadata(ctx, id.NewJobID()); !errors.Is(err, courier.ErrMetadataNotFound) {
		t.Fatalf("GetMetadata(unknown) = %v, want ErrMetadataNotFound", err)
	}
}

func TestStore_DequeueJobs(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	low := newTestJob("low", "default")
	low.Priority = 1
	high := newTestJob("high", "default")
	high.Priority = 10
	other := newTestJob("other", "reports")

	for _, j := range []*job.Job{low, high, other} {
		if err := s.EnqueueJob(ctx, j); err != nil {
			t.Fatalf("EnqueueJob: %v", err)
		}
	}

	jobs, err := s.DequeueJobs(ctx, []string{"default"}, 10)
	if err != nil {
		t.Fatalf("DequeueJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].Name != "high" {
		t.Errorf("first job = %q, want %q (priority order)", jobs[0].Name, "high")
	}
	for _, j := range jobs {
		if j.State != job.StateRunning {
			t.Errorf("dequeued job %s state = %q, want running", j.Name, j.State)
		}
		if j.StartedAt == nil {
			t.Errorf("dequeued job %s has nil StartedAt", j.Name)
		}
	}

	// Claimed jobs are not handed out again.
	again, err := s.DequeueJobs(ctx, []string{"default"}, 10)
	if err != nil {
		t.Fatalf("DequeueJobs: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second dequeue returned %d jobs, want 0", len(again))
	}
}

func TestStore_DequeueJobsSkipsFuture(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	future := newTestJob("later", "default")
	future.RunAt = time.Now().UTC().Add(time.Hour)
	if err := s.EnqueueJob(ctx, future); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	jobs, err := s.DequeueJobs(ctx, []string{"default"}, 10)
	if err != nil {
		t.Fatalf("DequeueJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("got %d jobs, want 0 (RunAt in the future)", len(jobs))
	}
}

func TestStore_DequeueJobsClaimsRetrying(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newTestJob("retry-me", "default")
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	j.State = job.StateRetrying
	j.RetryCount = 1
	j.RunAt = time.Now().UTC().Add(-time.Second)
	if err := s.UpdateJob(ctx, j); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	jobs, err := s.DequeueJobs(ctx, []string{"default"}, 10)
	if err != nil {
		t.Fatalf("DequeueJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1 (retrying jobs are due)", len(jobs))
	}
	if jobs[0].RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", jobs[0].RetryCount)
	}
}

func TestStore_UpdateJobPreservesDescriptor(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newTestJob("immutable", "default")
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	// A caller mutating descriptor fields has no effect on the stored job.
	mod := *j
	mod.Name = "hacked"
	mod.Payload = []byte("tampered")
	mod.Metadata = metadata.Snapshot{metadata.TenantKey: "999"}
	mod.State = job.StateRetrying
	mod.RetryCount = 2
	if err := s.UpdateJob(ctx, &mod); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Name != "immutable" {
		t.Errorf("Name = %q, want %q", got.Name, "immutable")
	}
	if string(got.Payload) != `{"x":1}` {
		t.Errorf("Payload = %q, want original", got.Payload)
	}
	if got.TenantID() != "100" {
		t.Errorf("TenantID = %q, want %q", got.TenantID(), "100")
	}
	if got.State != job.StateRetrying {
		t.Errorf("State = %q, want retrying (lifecycle fields do update)", got.State)
	}
	if got.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", got.RetryCount)
	}
}

func TestStore_MarkTerminal(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newTestJob("finish", "default")
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	if err := s.MarkTerminal(ctx, j.ID, job.OutcomeCompleted, ""); err != nil {
		t.Fatalf("MarkTerminal: %v", err)
	}
	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.State != job.StateCompleted {
		t.Errorf("State = %q, want completed", got.State)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}

	if err := s.MarkTerminal(ctx, j.ID, job.Outcome("bogus"), ""); !errors.Is(err, courier.ErrInvalidState) {
		t.Fatalf("MarkTerminal(bogus) = %v, want ErrInvalidState", err)
	}
	if err := s.MarkTerminal(ctx, id.NewJobID(), job.OutcomeFailed, "boom"); !errors.Is(err, courier.ErrJobNotFound) {
		t.Fatalf("MarkTerminal(unknown) = %v, want ErrJobNotFound", err)
	}
}

func TestStore_MarkTerminalFailedRecordsError(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newTestJob("explode", "default")
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if err := s.MarkTerminal(ctx, j.ID, job.OutcomeFailed, "connection refused"); err != nil {
		t.Fatalf("MarkTerminal: %v", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.State != job.StateFailed {
		t.Errorf("State = %q, want failed", got.State)
	}
	if got.LastError != "connection refused" {
		t.Errorf("LastError = %q, want %q", got.LastError, "connection refused")
	}
}

func TestStore_DeleteJob(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newTestJob("gone", "default")
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if err := s.DeleteJob(ctx, j.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := s.GetJob(ctx, j.ID); !errors.Is(err, courier.ErrJobNotFound) {
		t.Fatalf("GetJob after delete = %v, want ErrJobNotFound", err)
	}
	if err := s.DeleteJob(ctx, j.ID); !errors.Is(err, courier.ErrJobNotFound) {
		t.Fatalf("second DeleteJob = %v, want ErrJobNotFound", err)
	}
}

func TestStore_ListJobsByState(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		j := newTestJob("listed", "default")
		if err := s.EnqueueJob(ctx, j); err != nil {
			t.Fatalf("EnqueueJob: %v", err)
		}
	}
	other := newTestJob("elsewhere", "reports")
	if err := s.EnqueueJob(ctx, other); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	all, err := s.ListJobsByState(ctx, job.StatePending, job.ListOpts{})
	if err != nil {
		t.Fatalf("ListJobsByState: %v", err)
	}
	if len(all) != 6 {
		t.Errorf("got %d jobs, want 6", len(all))
	}

	byQueue, err := s.ListJobsByState(ctx, job.StatePending, job.ListOpts{Queue: "reports"})
	if err != nil {
		t.Fatalf("ListJobsByState: %v", err)
	}
	if len(byQueue) != 1 {
		t.Errorf("got %d jobs in reports queue, want 1", len(byQueue))
	}

	paged, err := s.ListJobsByState(ctx, job.StatePending, job.ListOpts{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("ListJobsByState: %v", err)
	}
	if len(paged) != 2 {
		t.Errorf("got %d jobs with limit 2 offset 4, want 2", len(paged))
	}

	past, err := s.ListJobsByState(ctx, job.StatePending, job.ListOpts{Offset: 100})
	if err != nil {
		t.Fatalf("ListJobsByState: %v", err)
	}
	if len(past) != 0 {
		t.Errorf("got %d jobs past the end, want 0", len(past))
	}
}

func TestStore_HeartbeatAndReap(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newTestJob("beating", "default")
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	jobs, err := s.DequeueJobs(ctx, []string{"default"}, 1)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("DequeueJobs: %v (%d jobs)", err, len(jobs))
	}

	workerID := id.NewWorkerID()
	if err := s.HeartbeatJob(ctx, j.ID, workerID); err != nil {
		t.Fatalf("HeartbeatJob: %v", err)
	}
	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.HeartbeatAt == nil {
		t.Fatal("HeartbeatAt should be set")
	}

	// A fresh heartbeat is not stale.
	stale, err := s.ReapStaleJobs(ctx, time.Minute)
	if err != nil {
		t.Fatalf("ReapStaleJobs: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("got %d stale jobs, want 0", len(stale))
	}

	// With a zero threshold every heartbeat is in the past.
	time.Sleep(5 * time.Millisecond)
	stale, err = s.ReapStaleJobs(ctx, 0)
	if err != nil {
		t.Fatalf("ReapStaleJobs: %v", err)
	}
	if len(stale) != 1 {
		t.Errorf("got %d stale jobs, want 1", len(stale))
	}

	if err := s.HeartbeatJob(ctx, id.NewJobID(), workerID); !errors.Is(err, courier.ErrJobNotFound) {
		t.Fatalf("HeartbeatJob(unknown) = %v, want ErrJobNotFound", err)
	}
}

func TestStore_CountJobs(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.EnqueueJob(ctx, newTestJob("counted", "default")); err != nil {
			t.Fatalf("EnqueueJob: %v", err)
		}
	}
	done := newTestJob("done", "default")
	if err := s.EnqueueJob(ctx, done); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if err := s.MarkTerminal(ctx, done.ID, job.OutcomeCompleted, ""); err != nil {
		t.Fatalf("MarkTerminal: %v", err)
	}

	total, err := s.CountJobs(ctx, job.CountOpts{})
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}

	pending, err := s.CountJobs(ctx, job.CountOpts{State: job.StatePending})
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if pending != 3 {
		t.Errorf("pending = %d, want 3", pending)
	}
}

// ──────────────────────────────────────────────────
// DLQ Store
// ──────────────────────────────────────────────────

func newDLQEntry(queue, tenantID string, failedAt time.Time) *dlq.Entry {
	return &dlq.Entry{
		ID:       id.NewDLQID(),
		JobID:    id.NewJobID(),
		JobName:  "doomed",
		Queue:    queue,
		Metadata: metadata.Snapshot{metadata.TenantKey: tenantID},
		Error:    "boom",
		FailedAt: failedAt,
	}
}

func TestStore_DLQPushListGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	now := time.Now().UTC()
	older := newDLQEntry("default", "100", now.Add(-time.Hour))
	newer := newDLQEntry("default", "200", now)
	for _, e := range []*dlq.Entry{newer, older} {
		if err := s.PushDLQ(ctx, e); err != nil {
			t.Fatalf("PushDLQ: %v", err)
		}
	}

	entries, err := s.ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ID != older.ID {
		t.Error("entries should be ordered oldest first")
	}

	got, err := s.GetDLQ(ctx, older.ID)
	if err != nil {
		t.Fatalf("GetDLQ: %v", err)
	}
	if got.TenantID() != "100" {
		t.Errorf("TenantID = %q, want %q", got.TenantID(), "100")
	}

	if _, err := s.GetDLQ(ctx, id.NewDLQID()); !errors.Is(err, courier.ErrDLQNotFound) {
		t.Fatalf("GetDLQ(unknown) = %v, want ErrDLQNotFound", err)
	}
}

func TestStore_DLQListFilters(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	now := time.Now().UTC()
	for _, e := range []*dlq.Entry{
		newDLQEntry("default", "100", now),
		newDLQEntry("default", "200", now),
		newDLQEntry("reports", "100", now),
	} {
		if err := s.PushDLQ(ctx, e); err != nil {
			t.Fatalf("PushDLQ: %v", err)
		}
	}

	byQueue, err := s.ListDLQ(ctx, dlq.ListOpts{Queue: "reports"})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}
	if len(byQueue) != 1 {
		t.Errorf("queue filter returned %d entries, want 1", len(byQueue))
	}

	byTenant, err := s.ListDLQ(ctx, dlq.ListOpts{Tenant: "100"})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}
	if len(byTenant) != 2 {
		t.Errorf("tenant filter returned %d entries, want 2", len(byTenant))
	}
	for _, e := range byTenant {
		if e.TenantID() != "100" {
			t.Errorf("entry tenant = %q, want %q", e.TenantID(), "100")
		}
	}
}

func TestStore_DLQReplayAndPurge(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	now := time.Now().UTC()
	old := newDLQEntry("default", "100", now.Add(-48*time.Hour))
	fresh := newDLQEntry("default", "100", now)
	for _, e := range []*dlq.Entry{old, fresh} {
		if err := s.PushDLQ(ctx, e); err != nil {
			t.Fatalf("PushDLQ: %v", err)
		}
	}

	if err := s.ReplayDLQ(ctx, fresh.ID); err != nil {
		t.Fatalf("ReplayDLQ: %v", err)
	}
	got, err := s.GetDLQ(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetDLQ: %v", err)
	}
	if got.ReplayedAt == nil {
		t.Error("ReplayedAt should be set after replay")
	}

	if err := s.ReplayDLQ(ctx, id.NewDLQID()); !errors.Is(err, courier.ErrDLQNotFound) {
		t.Fatalf("ReplayDLQ(unknown) = %v, want ErrDLQNotFound", err)
	}

	purged, err := s.PurgeDLQ(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeDLQ: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
	count, err := s.CountDLQ(ctx)
	if err != nil {
		t.Fatalf("CountDLQ: %v", err)
	}
	if count != 1 {
		t.Errorf("count after purge = %d, want 1", count)
	}
}
