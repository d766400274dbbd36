package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/metadata"
)

// stamp renders a time in the canonical hash field format.
func stamp(t time.Time) string { return t.Format(time.RFC3339Nano) }

// jobExists reports whether a job hash is present.
func (s *Store) jobExists(ctx context.Context, key, op string) error {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("courier/redis: %s exists: %w", op, err)
	}
	if n == 0 {
		return courier.ErrJobNotFound
	}
	return nil
}

// EnqueueJob stores the job as a hash and indexes it into its queue's
// sorted set. The metadata snapshot is a field of the same hash, written
// in the same transaction as the descriptor, so no reader can observe
// the job without its metadata.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	switch err := s.jobExists(ctx, key, "enqueue"); {
	case err == nil:
		return courier.ErrJobAlreadyExists
	case !errors.Is(err, courier.ErrJobNotFound):
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, jobToMap(j))
	pipe.SAdd(ctx, jobIDsKey, jID)
	pipe.ZAdd(ctx, queueKey(j.Queue), goredis.Z{Score: jobScore(j.Priority, j.RunAt), Member: jID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: enqueue job: %w", err)
	}
	return nil
}

// DequeueJobs pops up to limit due jobs from the given queues and marks
// them running. Jobs popped before their RunAt are pushed back with
// their original score; jobs no longer in a claimable state are dropped
// from the queue set.
func (s *Store) DequeueJobs(ctx context.Context, queues []string, limit int) ([]*job.Job, error) {
	now := time.Now().UTC()
	var claimed []*job.Job

	for _, q := range queues {
		if len(claimed) >= limit {
			break
		}
		qk := queueKey(q)

		// Lowest score first: highest priority, then earliest RunAt.
		members, err := s.client.ZPopMin(ctx, qk, int64(limit-len(claimed))).Result()
		if err != nil {
			return nil, fmt.Errorf("courier/redis: dequeue zpopmin: %w", err)
		}

		for _, z := range members {
			jID, ok := z.Member.(string)
			if !ok {
				continue
			}

			key := jobKey(jID)
			j, err := s.getJobByKey(ctx, key)
			if err != nil {
				continue
			}

			// A cancelled or otherwise non-claimable job may still sit in
			// the queue set; popping it here is the cleanup.
			if j.State != job.StatePending && j.State != job.StateRetrying {
				continue
			}

			// Not due yet: return it to the queue untouched.
			if !j.RunAt.IsZero() && j.RunAt.After(now) {
				if err := s.client.ZAdd(ctx, qk, goredis.Z{Score: z.Score, Member: jID}).Err(); err != nil {
					return claimed, fmt.Errorf("courier/redis: dequeue requeue: %w", err)
				}
				continue
			}

			if err := s.client.HSet(ctx, key,
				"state", string(job.StateRunning),
				"started_at", stamp(now),
				"updated_at", stamp(now),
			).Err(); err != nil {
				return nil, fmt.Errorf("courier/redis: dequeue update: %w", err)
			}

			started := now
			j.State = job.StateRunning
			j.StartedAt = &started
			claimed = append(claimed, j)
		}
	}
	return claimed, nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, jobKey(jobID.String()))
}

// GetMetadata returns the metadata snapshot persisted with the job.
func (s *Store) GetMetadata(ctx context.Context, jobID id.JobID) (metadata.Snapshot, error) {
	raw, err := s.client.HGet(ctx, jobKey(jobID.String()), "metadata").Result()
	if errors.Is(err, goredis.Nil) {
		return nil, courier.ErrMetadataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("courier/redis: get metadata: %w", err)
	}
	return metadata.Snapshot(unmarshalMap(raw)), nil
}

// UpdateJob persists lifecycle changes to an existing job. Name, Payload,
// and Metadata keep their originally persisted values. A job moved back
// to a dequeueable state is re-indexed into its queue's sorted set.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	if err := s.jobExists(ctx, key, "update job"); err != nil {
		return err
	}

	fields := jobToMap(j)
	delete(fields, "name")
	delete(fields, "payload")
	delete(fields, "metadata")
	fields["updated_at"] = stamp(time.Now().UTC())

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if j.State == job.StatePending || j.State == job.StateRetrying {
		pipe.ZAdd(ctx, queueKey(j.Queue), goredis.Z{Score: jobScore(j.Priority, j.RunAt), Member: jID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: update job: %w", err)
	}
	return nil
}

// MarkTerminal records the terminal outcome of an execution attempt.
func (s *Store) MarkTerminal(ctx context.Context, jobID id.JobID, outcome job.Outcome, lastError string) error {
	state, err := outcome.State()
	if err != nil {
		return err
	}

	key := jobKey(jobID.String())
	if err := s.jobExists(ctx, key, "mark terminal"); err != nil {
		return err
	}

	now := stamp(time.Now().UTC())
	if err := s.client.HSet(ctx, key,
		"state", string(state),
		"last_error", lastError,
		"completed_at", now,
		"updated_at", now,
	).Err(); err != nil {
		return fmt.Errorf("courier/redis: mark terminal: %w", err)
	}
	return nil
}

// DeleteJob removes a job and all its index entries.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()
	key := jobKey(jID)

	// The queue name is needed to clear the sorted-set entry.
	q, err := s.client.HGet(ctx, key, "queue").Result()
	if errors.Is(err, goredis.Nil) {
		return courier.ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("courier/redis: delete job get queue: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, jobIDsKey, jID)
	pipe.ZRem(ctx, queueKey(q), jID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: delete job: %w", err)
	}
	return nil
}

// scanJobs walks every indexed job and collects those keep admits.
// Unreadable hashes are skipped.
func (s *Store) scanJobs(ctx context.Context, op string, keep func(*job.Job) bool) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redis: %s smembers: %w", op, err)
	}

	var jobs []*job.Job
	for _, jID := range ids {
		j, err := s.getJobByKey(ctx, jobKey(jID))
		if err != nil {
			continue
		}
		if keep(j) {
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

// ListJobsByState returns jobs matching the given state.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	jobs, err := s.scanJobs(ctx, "list jobs", func(j *job.Job) bool {
		return j.State == state && (opts.Queue == "" || j.Queue == opts.Queue)
	})
	if err != nil {
		return nil, err
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(jobs) {
			return nil, nil
		}
		jobs = jobs[opts.Offset:]
	}
	if opts.Limit > 0 && len(jobs) > opts.Limit {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}

// HeartbeatJob records a heartbeat and the owning worker for a running job.
func (s *Store) HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error {
	key := jobKey(jobID.String())
	if err := s.jobExists(ctx, key, "heartbeat"); err != nil {
		return err
	}

	now := stamp(time.Now().UTC())
	if err := s.client.HSet(ctx, key,
		"heartbeat_at", now,
		"worker_id", workerID.String(),
		"updated_at", now,
	).Err(); err != nil {
		return fmt.Errorf("courier/redis: heartbeat job: %w", err)
	}
	return nil
}

// ReapStaleJobs returns running jobs whose last heartbeat is older than
// the threshold.
func (s *Store) ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*job.Job, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	return s.scanJobs(ctx, "reap", func(j *job.Job) bool {
		return j.State == job.StateRunning && j.HeartbeatAt != nil && j.HeartbeatAt.Before(cutoff)
	})
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	jobs, err := s.scanJobs(ctx, "count", func(j *job.Job) bool {
		return (opts.State == "" || j.State == opts.State) && (opts.Queue == "" || j.Queue == opts.Queue)
	})
	if err != nil {
		return 0, err
	}
	return int64(len(jobs)), nil
}

// ── hash codec ──

// jobScore orders the queue sorted set: priority is negated so higher
// priority sorts first, with a fractional run-time component breaking
// ties FIFO.
func jobScore(priority int, runAt time.Time) float64 {
	return float64(-priority) + float64(runAt.UnixMilli())/1e15
}

func jobToMap(j *job.Job) map[string]interface{} {
	m := map[string]interface{}{
		"id":          j.ID.String(),
		"name":        j.Name,
		"queue":       j.Queue,
		"payload":     string(j.Payload),
		"metadata":    marshalJSON(j.Metadata),
		"state":       string(j.State),
		"priority":    strconv.Itoa(j.Priority),
		"max_retries": strconv.Itoa(j.MaxRetries),
		"retry_count": strconv.Itoa(j.RetryCount),
		"last_error":  j.LastError,
		"worker_id":   j.WorkerID.String(),
		"run_at":      stamp(j.RunAt),
		"timeout":     strconv.FormatInt(int64(j.Timeout), 10),
		"created_at":  stamp(j.CreatedAt),
		"updated_at":  stamp(j.UpdatedAt),
	}
	if j.StartedAt != nil {
		m["started_at"] = stamp(*j.StartedAt)
	}
	if j.CompletedAt != nil {
		m["completed_at"] = stamp(*j.CompletedAt)
	}
	if j.HeartbeatAt != nil {
		m["heartbeat_at"] = stamp(*j.HeartbeatAt)
	}
	return m
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, courier.ErrJobNotFound
	}
	return mapToJob(vals)
}

// mapToJob decodes a job hash. Only the ID must parse; the rest decodes
// best effort since this store wrote the fields.
func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("courier/redis: parse job id: %w", err)
	}

	priority, _ := strconv.Atoi(m["priority"])           //nolint:errcheck // best-effort parse from trusted Redis data
	maxRetries, _ := strconv.Atoi(m["max_retries"])      //nolint:errcheck // best-effort parse from trusted Redis data
	retryCount, _ := strconv.Atoi(m["retry_count"])      //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data

	runAt, _ := time.Parse(time.RFC3339Nano, m["run_at"])         //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	j := &job.Job{
		Entity: courier.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:         jID,
		Name:       m["name"],
		Queue:      m["queue"],
		Payload:    []byte(m["payload"]),
		Metadata:   metadata.Snapshot(unmarshalMap(m["metadata"])),
		State:      job.State(m["state"]),
		Priority:   priority,
		MaxRetries: maxRetries,
		RetryCount: retryCount,
		LastError:  m["last_error"],
		RunAt:      runAt,
		Timeout:    time.Duration(timeout),
	}

	if wid := m["worker_id"]; wid != "" {
		j.WorkerID, _ = id.ParseWorkerID(wid) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if v := m["started_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.StartedAt = &t
	}
	if v := m["completed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.CompletedAt = &t
	}
	if v := m["heartbeat_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.HeartbeatAt = &t
	}

	return j, nil
}

func marshalJSON(v interface{}) string {
	b, _ := json.Marshal(v) //nolint:errcheck // marshal should not fail for basic types
	return string(b)
}

func unmarshalMap(s string) map[string]string {
	if s == "" || s == "null" {
		return nil
	}
	out := make(map[string]string)
	_ = json.Unmarshal([]byte(s), &out) //nolint:errcheck // best-effort parse from trusted Redis data
	return out
}
