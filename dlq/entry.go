package dlq

import (
	"time"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/metadata"
)

// Entry represents a job that has exhausted its retry budget and been
// moved to the dead letter queue for inspection or replay.
type Entry struct {
	ID         id.DLQID          `json:"id"`
	JobID      id.JobID          `json:"job_id"`
	JobName    string            `json:"job_name"`
	Queue      string            `json:"queue"`
	Payload    []byte            `json:"payload"`
	Metadata   metadata.Snapshot `json:"metadata,omitempty"`
	Error      string            `json:"error"`
	RetryCount int               `json:"retry_count"`
	MaxRetries int               `json:"max_retries"`
	FailedAt   time.Time         `json:"failed_at"`
	ReplayedAt *time.Time        `json:"replayed_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// TenantID returns the tenant recorded in the entry's metadata, or the
// empty string if the original job carried none.
func (e *Entry) TenantID() string {
	return e.Metadata.Value(metadata.TenantKey)
}
