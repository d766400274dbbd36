package cron

// Definition declares one recurring enqueue. T is the payload type
// enqueued on every firing and must round-trip through JSON.
type Definition[T any] struct {
	// Name uniquely identifies this cron entry.
	Name string

	// Schedule is a cron expression ("*/5 * * * *") or an interval
	// shorthand ("@every 30s").
	Schedule string

	// JobName is the job type enqueued on each tick.
	JobName string

	// Payload is enqueued verbatim with every fired job.
	Payload T

	// Queue overrides the job definition's queue when non-empty.
	Queue string

	// Metadata is stamped onto every fired job's metadata, e.g. the
	// tenant the recurring work belongs to.
	Metadata map[string]string
}
