// Package job defines the job descriptor, state machine, typed definitions,
// and the store interface forming the queue boundary.
//
// # Descriptor
//
// A [Job] is an immutable record of what to execute: a registered handler
// name, a JSON payload, and the metadata snapshot captured at submission.
// It embeds [courier.Entity] for timestamps and progresses through a state
// machine:
//
//	pending → running → completed
//	pending → running → retrying → running → ...
//	pending → running → failed
//	pending → cancelled
//
// Identity is stable: a retry re-runs the same descriptor, it never clones
// it. Fields of note:
//   - Queue: which queue the job belongs to (default: "default")
//   - Priority: higher values are dequeued first
//   - Metadata: frozen key/value snapshot, read-only after persistence
//   - MaxRetries / RetryCount: controls the retry budget
//   - RunAt: earliest time the job may be dequeued
//
// # Defining a Job
//
// Use [Definition] with a typed handler. The payload is JSON-serialized at
// enqueue time and deserialized before the handler runs. Handlers execute
// inside a dependency scope:
//
//	var SendInvoice = job.NewDefinition("send_invoice",
//	    func(ctx context.Context, input InvoiceInput) error {
//	        acc, _ := tenant.Current(ctx)
//	        return billing.Send(ctx, acc.TenantID(), input)
//	    },
//	)
//
// # Registry
//
// [Registry] maps job names to type-erased [HandlerFunc] values. Register
// definitions at startup via [RegisterDefinition]; the engine package
// provides higher-level engine.Register and engine.Enqueue wrappers.
package job
