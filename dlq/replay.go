package dlq

import (
	"context"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
)

// Replay turns a DLQ entry back into a pending job and stamps the entry
// as replayed. The new job carries a fresh ID and a reset retry budget;
// payload and the frozen metadata come from the entry, so the replayed
// run executes under the tenant that originally submitted the job, not
// whoever triggered the replay.
func (s *Service) Replay(ctx context.Context, entryID id.DLQID) (*job.Job, error) {
	entry, err := s.store.GetDLQ(ctx, entryID)
	if err != nil {
		return nil, err
	}

	j := &job.Job{
		Entity:     courier.NewEntity(),
		ID:         id.NewJobID(),
		Name:       entry.JobName,
		Queue:      entry.Queue,
		Payload:    entry.Payload,
		Metadata:   entry.Metadata.Clone(),
		State:      job.StatePending,
		MaxRetries: entry.MaxRetries,
		RunAt:      time.Now().UTC(),
	}
	if err := s.jobStore.EnqueueJob(ctx, j); err != nil {
		return nil, err
	}

	// The job is in the queue either way; a failed stamp is reported to
	// the caller alongside the enqueued job.
	if err := s.store.ReplayDLQ(ctx, entryID); err != nil {
		return j, err
	}
	return j, nil
}
