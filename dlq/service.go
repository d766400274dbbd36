package dlq

import (
	"context"
	"time"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
)

// Service layers the DLQ operations that need both stores: pushing a
// failed job in, and replaying an entry back onto the job queue.
type Service struct {
	store    Store
	jobStore job.Store
}

// NewService creates a DLQ service.
func NewService(store Store, jobStore job.Store) *Service {
	return &Service{store: store, jobStore: jobStore}
}

// Push converts a terminally failed job into a DLQ entry. The job's
// frozen metadata snapshot travels with the entry, so a later replay
// runs under the same tenant the job was submitted with.
func (s *Service) Push(ctx context.Context, j *job.Job, jobErr error) error {
	now := time.Now().UTC()
	entry := &Entry{
		ID:         id.NewDLQID(),
		JobID:      j.ID,
		JobName:    j.Name,
		Queue:      j.Queue,
		Payload:    j.Payload,
		Metadata:   j.Metadata.Clone(),
		Error:      jobErr.Error(),
		RetryCount: j.RetryCount,
		MaxRetries: j.MaxRetries,
		FailedAt:   now,
		CreatedAt:  now,
	}
	return s.store.PushDLQ(ctx, entry)
}

// DLQStore exposes the underlying store for List, Get, Purge, and Count.
func (s *Service) DLQStore() Store {
	return s.store
}
