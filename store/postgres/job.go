package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/metadata"
)

const jobColumns = `id, name, queue, payload, metadata, state, priority,
	max_retries, retry_count, last_error, worker_id,
	run_at, started_at, completed_at, heartbeat_at, timeout,
	created_at, updated_at`

// EnqueueJob persists a new job in pending state. The metadata snapshot is a
// JSONB column of the same row, so descriptor and metadata commit atomically.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO courier_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18)`,
		j.ID.String(), j.Name, j.Queue, j.Payload, j.Metadata, string(j.State),
		j.Priority, j.MaxRetries, j.RetryCount, j.LastError, j.WorkerID.String(),
		j.RunAt, j.StartedAt, j.CompletedAt, j.HeartbeatAt, j.Timeout.Nanoseconds(),
		j.CreatedAt, j.UpdatedAt,
	)
	if isDuplicateKey(err) {
		return courier.ErrJobAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("courier/postgres: enqueue job: %w", err)
	}
	return nil
}

// DequeueJobs atomically claims up to limit due jobs from the given queues,
// flips them to running, and returns them. SKIP LOCKED keeps concurrent
// pollers from blocking on each other's claims.
func (s *Store) DequeueJobs(ctx context.Context, queues []string, limit int) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx, `
		WITH dequeued AS (
			UPDATE courier_jobs
			SET state = 'running', started_at = NOW(), updated_at = NOW()
			WHERE id IN (
				SELECT id FROM courier_jobs
				WHERE state IN ('pending', 'retrying')
				  AND queue = ANY($1)
				  AND run_at <= NOW()
				ORDER BY priority DESC, run_at ASC
				FOR UPDATE SKIP LOCKED
				LIMIT $2
			)
			RETURNING `+jobColumns+`
		)
		SELECT * FROM dequeued ORDER BY priority DESC, run_at ASC`,
		queues, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("courier/postgres: dequeue jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM courier_jobs WHERE id = $1`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if isNoRows(err) {
		return nil, courier.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("courier/postgres: get job: %w", err)
	}
	return j, nil
}

// GetMetadata returns the metadata snapshot persisted with the job.
func (s *Store) GetMetadata(ctx context.Context, jobID id.JobID) (metadata.Snapshot, error) {
	var snap metadata.Snapshot
	err := s.pool.QueryRow(ctx,
		`SELECT metadata FROM courier_jobs WHERE id = $1`,
		jobID.String(),
	).Scan(&snap)
	if isNoRows(err) {
		return nil, courier.ErrMetadataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("courier/postgres: get metadata: %w", err)
	}
	return snap, nil
}

// UpdateJob persists lifecycle changes to an existing job. The name, payload,
// and metadata columns are never touched after the insert.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE courier_jobs SET
			queue = $2, state = $3, priority = $4,
			max_retries = $5, retry_count = $6, last_error = $7,
			worker_id = $8, run_at = $9, started_at = $10,
			completed_at = $11, heartbeat_at = $12, timeout = $13,
			updated_at = NOW()
		WHERE id = $1`,
		j.ID.String(), j.Queue, string(j.State), j.Priority,
		j.MaxRetries, j.RetryCount, j.LastError,
		j.WorkerID.String(), j.RunAt, j.StartedAt,
		j.CompletedAt, j.HeartbeatAt, j.Timeout.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("courier/postgres: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return courier.ErrJobNotFound
	}
	return nil
}

// MarkTerminal records the terminal outcome of an execution attempt.
func (s *Store) MarkTerminal(ctx context.Context, jobID id.JobID, outcome job.Outcome, lastError string) error {
	state, err := outcome.State()
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE courier_jobs SET
			state = $2, last_error = $3, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1`,
		jobID.String(), string(state), lastError,
	)
	if err != nil {
		return fmt.Errorf("courier/postgres: mark terminal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return courier.ErrJobNotFound
	}
	return nil
}

// DeleteJob removes a job by ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM courier_jobs WHERE id = $1`, jobID.String())
	if err != nil {
		return fmt.Errorf("courier/postgres: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return courier.ErrJobNotFound
	}
	return nil
}

// ListJobsByState returns jobs in the given state, oldest first.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where := []string{"state = " + arg(string(state))}
	if opts.Queue != "" {
		where = append(where, "queue = "+arg(opts.Queue))
	}

	query := `SELECT ` + jobColumns + ` FROM courier_jobs WHERE ` +
		strings.Join(where, " AND ") + " ORDER BY created_at ASC"
	if opts.Limit > 0 {
		query += " LIMIT " + arg(opts.Limit)
	}
	if opts.Offset > 0 {
		query += " OFFSET " + arg(opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("courier/postgres: list jobs by state: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// HeartbeatJob updates the heartbeat timestamp for a running job.
func (s *Store) HeartbeatJob(ctx context.Context, jobID id.JobID, _ id.WorkerID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE courier_jobs SET heartbeat_at = NOW(), updated_at = NOW() WHERE id = $1`,
		jobID.String(),
	)
	if err != nil {
		return fmt.Errorf("courier/postgres: heartbeat job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return courier.ErrJobNotFound
	}
	return nil
}

// ReapStaleJobs returns running jobs whose last heartbeat is older than
// the given threshold.
func (s *Store) ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM courier_jobs
		WHERE state = 'running'
		  AND heartbeat_at IS NOT NULL
		  AND heartbeat_at < NOW() - $1::interval`,
		threshold.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("courier/postgres: reap stale jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	var (
		where = []string{"1=1"}
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Queue != "" {
		where = append(where, "queue = "+arg(opts.Queue))
	}
	if opts.State != "" {
		where = append(where, "state = "+arg(string(opts.State)))
	}

	var count int64
	query := `SELECT COUNT(*) FROM courier_jobs WHERE ` + strings.Join(where, " AND ")
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("courier/postgres: count jobs: %w", err)
	}
	return count, nil
}

// scanJob decodes one job row. TypeID and enum columns come back as text
// and are parsed after the scan; a worker_id that fails to parse (e.g. the
// empty string on an unclaimed job) is left as the zero WorkerID.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j         job.Job
		idStr     string
		stateStr  string
		workerStr string
		timeoutNs int64
	)
	err := row.Scan(
		&idStr, &j.Name, &j.Queue, &j.Payload, &j.Metadata, &stateStr,
		&j.Priority, &j.MaxRetries, &j.RetryCount, &j.LastError, &workerStr,
		&j.RunAt, &j.StartedAt, &j.CompletedAt, &j.HeartbeatAt, &timeoutNs,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.State = job.State(stateStr)
	j.Timeout = time.Duration(timeoutNs)

	if j.ID, err = id.ParseJobID(idStr); err != nil {
		return nil, fmt.Errorf("courier/postgres: parse job id %q: %w", idStr, err)
	}
	if wid, err := id.ParseWorkerID(workerStr); err == nil {
		j.WorkerID = wid
	}

	return &j, nil
}

// collectJobs drains query rows into a slice.
func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("courier/postgres: scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("courier/postgres: iterate job rows: %w", err)
	}
	return jobs, nil
}
