package cron

import (
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/metadata"
)

// Entry represents a recurring job schedule. Entries live in the process
// that registered them; each tick of the scheduler enqueues the configured
// job through the normal creation pipeline.
type Entry struct {
	courier.Entity

	ID       id.CronID `json:"id"`
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	JobName  string    `json:"job_name"`
	Queue    string    `json:"queue,omitempty"`
	Payload  []byte    `json:"payload,omitempty"`

	// Metadata is the template stamped onto every job this entry fires.
	// Recurring jobs have no submitting request, so the tenant and any
	// other contextual values are fixed at registration time.
	Metadata metadata.Snapshot `json:"metadata,omitempty"`

	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	Enabled   bool       `json:"enabled"`
}
