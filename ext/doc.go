// Package ext lets external components observe the job lifecycle —
// metrics exporters, webhook emitters, audit writers, and similar.
// Every lifecycle event has its own small hook interface, so an
// extension implements only what it needs.
//
// # Implementing an Extension
//
//	type auditLog struct{}
//
//	func (a *auditLog) Name() string { return "audit-log" }
//
//	// Implementing a hook interface opts in to that event.
//	func (a *auditLog) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
//	    log.Printf("job %s done in %s (tenant %s)", j.ID, elapsed, j.TenantID())
//	    return nil
//	}
//
// # Hooks
//
// Job lifecycle: [JobEnqueued], [JobStarted], [JobCompleted], [JobFailed]
// (terminal, retries exhausted), [JobRetrying], [JobDLQ].
//
// Engine lifecycle: [CronFired] when a cron entry enqueues its job, and
// [Shutdown] during graceful stop.
//
// The [Registry] probes each registered extension for the hook
// interfaces it implements and fans each event out in registration
// order. Hooks see the full job descriptor with its frozen metadata, so
// an extension can always tell which tenant a notification belongs to.
// A hook returning an error is logged and skipped; it never interrupts
// job processing or the other extensions.
package ext
