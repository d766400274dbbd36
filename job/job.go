package job

import (
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/metadata"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StatePending means the job is waiting to be picked up by a worker.
	StatePending State = "pending"
	// StateRunning means a worker is currently executing the job.
	StateRunning State = "running"
	// StateCompleted means the job finished successfully.
	StateCompleted State = "completed"
	// StateFailed means the job failed and will not be retried.
	StateFailed State = "failed"
	// StateRetrying means the job failed but is scheduled for retry.
	StateRetrying State = "retrying"
	// StateCancelled means the job was explicitly cancelled.
	StateCancelled State = "cancelled"
)

// Outcome is the terminal result of an execution attempt, reported to the
// store via MarkTerminal.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// State maps the outcome to the terminal job state.
func (o Outcome) State() (State, error) {
	switch o {
	case OutcomeCompleted:
		return StateCompleted, nil
	case OutcomeFailed:
		return StateFailed, nil
	case OutcomeCancelled:
		return StateCancelled, nil
	default:
		return "", courier.ErrInvalidState
	}
}

// Job is the descriptor of a unit of work: what to run, with what
// arguments, under which metadata. Name, Payload, and Metadata are immutable
// once the job is persisted; retries reuse the same ID and mutate only the
// lifecycle fields (State, RetryCount, timestamps).
type Job struct {
	courier.Entity

	ID         id.JobID          `json:"id"`
	Name       string            `json:"name"`
	Queue      string            `json:"queue"`
	Payload    []byte            `json:"payload"`
	Metadata   metadata.Snapshot `json:"metadata,omitempty"`
	State      State             `json:"state"`
	Priority   int               `json:"priority"`
	MaxRetries int               `json:"max_retries"`
	RetryCount int               `json:"retry_count"`
	LastError  string            `json:"last_error,omitempty"`
	WorkerID   id.WorkerID       `json:"worker_id,omitempty"`

	RunAt       time.Time     `json:"run_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	HeartbeatAt *time.Time    `json:"heartbeat_at,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// Terminal reports whether the job has reached a terminal state.
func (j *Job) Terminal() bool {
	switch j.State {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// TenantID returns the tenant captured at submission time, or the empty
// string when the job carries no tenant metadata.
func (j *Job) TenantID() string {
	return j.Metadata.Value(metadata.TenantKey)
}
