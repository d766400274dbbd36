// Package dlq provides the dead letter queue for jobs that have exhausted
// their retry budget. It supports inspection, replay, and purging.
//
// When a job fails and MaxRetries has been reached, the executor calls
// [Service.Push] to move it into the DLQ. The original payload, error
// message, retry counts, and frozen metadata are preserved, so a dead
// entry still records which tenant submitted it.
//
// # Entry
//
// A [Entry] captures:
//   - JobID / JobName / Queue: original job identity
//   - Payload: the raw JSON payload at time of failure
//   - Metadata: the frozen metadata snapshot, including the tenant
//   - Error: the final error message
//   - RetryCount / MaxRetries: exhausted retry budget
//   - FailedAt: when the terminal failure occurred
//   - ReplayedAt: set when the entry is replayed (nil if not yet replayed)
//
// # Service
//
// [Service] wraps the DLQ store with high-level operations:
//
//	svc := dlq.NewService(store, jobStore)
//
//	// Push is called automatically by the executor on terminal failure.
//	svc.Push(ctx, failedJob, err)
//
//	// Access the underlying store for list/get/purge/count.
//	svc.DLQStore().ListDLQ(ctx, dlq.ListOpts{Limit: 50, Tenant: "100"})
//
// # Replay
//
// Replaying an entry re-enqueues the original payload under the original
// metadata: the replayed job executes with the same tenant as the failed
// one, not the tenant of whoever triggered the replay. Replay sets
// ReplayedAt on the DLQ entry.
package dlq
