// Package memory provides a fully in-memory store backend. It is safe for
// concurrent access and intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/dlq"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/metadata"
)

// The composite store interface lives in the store package, which this
// package cannot import without a cycle; each subsystem contract is
// verified separately.
var (
	_ job.Store = (*Store)(nil)
	_ dlq.Store = (*Store)(nil)
)

// Store keeps all jobs and DLQ entries in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	jobs map[id.JobID]*job.Job
	dlqs map[id.DLQID]*dlq.Entry
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs: make(map[id.JobID]*job.Job),
		dlqs: make(map[id.DLQID]*dlq.Entry),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// cloneJob returns a copy whose metadata map is detached from the stored
// one, so callers can mutate the result without racing with the store.
func cloneJob(j *job.Job) *job.Job {
	cp := *j
	cp.Metadata = j.Metadata.Clone()
	return &cp
}

// paginate applies offset and limit to an already sorted slice.
func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// EnqueueJob persists a new job in pending state. The descriptor and its
// metadata snapshot are stored together; there is no window in which a
// dequeuer can observe the job without its metadata.
func (m *Store) EnqueueJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[j.ID]; exists {
		return courier.ErrJobAlreadyExists
	}
	m.jobs[j.ID] = cloneJob(j)
	return nil
}

// DequeueJobs atomically claims up to limit due pending or retrying jobs
// from the given queues, sets them to running, and returns them.
func (m *Store) DequeueJobs(_ context.Context, queues []string, limit int) ([]*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queueSet := make(map[string]struct{}, len(queues))
	for _, q := range queues {
		queueSet[q] = struct{}{}
	}

	now := time.Now().UTC()

	var claimable []*job.Job
	for _, j := range m.jobs {
		if j.State != job.StatePending && j.State != job.StateRetrying {
			continue
		}
		if !j.RunAt.IsZero() && j.RunAt.After(now) {
			continue
		}
		if len(queueSet) > 0 {
			if _, ok := queueSet[j.Queue]; !ok {
				continue
			}
		}
		claimable = append(claimable, j)
	}

	sort.Slice(claimable, func(i, k int) bool {
		if claimable[i].Priority != claimable[k].Priority {
			return claimable[i].Priority > claimable[k].Priority
		}
		return claimable[i].RunAt.Before(claimable[k].RunAt)
	})

	if limit > 0 && len(claimable) > limit {
		claimable = claimable[:limit]
	}

	claimed := make([]*job.Job, len(claimable))
	for i, j := range claimable {
		startedAt := now
		j.State = job.StateRunning
		j.StartedAt = &startedAt
		claimed[i] = cloneJob(j)
	}
	return claimed, nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, courier.ErrJobNotFound
	}
	return cloneJob(j), nil
}

// GetMetadata returns the metadata snapshot persisted with the job.
func (m *Store) GetMetadata(_ context.Context, jobID id.JobID) (metadata.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, courier.ErrMetadataNotFound
	}
	return j.Metadata.Clone(), nil
}

// UpdateJob persists changes to an existing job's lifecycle fields.
// Name, Payload, and Metadata keep their originally persisted values.
func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.jobs[j.ID]
	if !ok {
		return courier.ErrJobNotFound
	}

	cp := *j
	cp.Name = existing.Name
	cp.Payload = existing.Payload
	cp.Metadata = existing.Metadata
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[j.ID] = &cp
	return nil
}

// MarkTerminal records the terminal outcome of an execution attempt.
func (m *Store) MarkTerminal(_ context.Context, jobID id.JobID, outcome job.Outcome, lastError string) error {
	state, err := outcome.State()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return courier.ErrJobNotFound
	}

	now := time.Now().UTC()
	j.State = state
	j.LastError = lastError
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// DeleteJob removes a job by ID.
func (m *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[jobID]; !ok {
		return courier.ErrJobNotFound
	}
	delete(m.jobs, jobID)
	return nil
}

// ListJobsByState returns jobs matching the given state, oldest first.
func (m *Store) ListJobsByState(_ context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*job.Job
	for _, j := range m.jobs {
		if j.State != state {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		matched = append(matched, cloneJob(j))
	}

	sort.Slice(matched, func(i, k int) bool {
		return matched[i].CreatedAt.Before(matched[k].CreatedAt)
	})

	return paginate(matched, opts.Offset, opts.Limit), nil
}

// HeartbeatJob records a heartbeat and the owning worker for a running job.
func (m *Store) HeartbeatJob(_ context.Context, jobID id.JobID, workerID id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return courier.ErrJobNotFound
	}
	now := time.Now().UTC()
	j.HeartbeatAt = &now
	j.WorkerID = workerID
	return nil
}

// ReapStaleJobs returns running jobs whose last heartbeat is older than
// the given threshold.
func (m *Store) ReapStaleJobs(_ context.Context, threshold time.Duration) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-threshold)
	var stale []*job.Job
	for _, j := range m.jobs {
		if j.State != job.StateRunning {
			continue
		}
		if j.HeartbeatAt != nil && j.HeartbeatAt.Before(cutoff) {
			stale = append(stale, cloneJob(j))
		}
	}
	return stale, nil
}

// CountJobs returns the number of jobs matching the given options.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, j := range m.jobs {
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		if opts.State != "" && j.State != opts.State {
			continue
		}
		count++
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// DLQ Store
// ──────────────────────────────────────────────────

// PushDLQ adds a failed job entry to the dead letter queue.
func (m *Store) PushDLQ(_ context.Context, entry *dlq.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dlqs[entry.ID] = entry
	return nil
}

// ListDLQ returns DLQ entries matching the given options, oldest failure
// first. The Tenant filter matches the tenant recorded in each entry's
// metadata snapshot.
func (m *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*dlq.Entry
	for _, e := range m.dlqs {
		if opts.Queue != "" && e.Queue != opts.Queue {
			continue
		}
		if opts.Tenant != "" && e.TenantID() != opts.Tenant {
			continue
		}
		matched = append(matched, e)
	}

	sort.Slice(matched, func(i, k int) bool {
		return matched[i].FailedAt.Before(matched[k].FailedAt)
	})

	return paginate(matched, opts.Offset, opts.Limit), nil
}

// GetDLQ retrieves a DLQ entry by ID.
func (m *Store) GetDLQ(_ context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.dlqs[entryID]
	if !ok {
		return nil, courier.ErrDLQNotFound
	}
	return e, nil
}

// ReplayDLQ marks a DLQ entry as replayed.
func (m *Store) ReplayDLQ(_ context.Context, entryID id.DLQID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.dlqs[entryID]
	if !ok {
		return courier.ErrDLQNotFound
	}
	now := time.Now().UTC()
	e.ReplayedAt = &now
	return nil
}

// PurgeDLQ removes DLQ entries that failed before the given time and
// returns how many were removed.
func (m *Store) PurgeDLQ(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key, e := range m.dlqs {
		if e.FailedAt.Before(before) {
			delete(m.dlqs, key)
			count++
		}
	}
	return count, nil
}

// CountDLQ returns the total number of entries in the dead letter queue.
func (m *Store) CountDLQ(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.dlqs)), nil
}
