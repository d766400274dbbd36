// Package cron provides process-local scheduling of recurring jobs.
//
// Each [Entry] pairs a cron expression with a registered job definition.
// On every due tick the scheduler enqueues the job through the engine's
// normal creation pipeline, so enqueue stages and extensions run exactly
// as for ad-hoc submissions.
//
// # Metadata template
//
// A recurring job has no submitting request to capture a tenant from.
// Instead the entry carries a metadata template fixed at registration
// time; the template is stamped onto every fired job, so the handler
// observes the same tenant on every occurrence:
//
//	engine.RegisterCron(eng, &cron.Definition[InvoiceInput]{
//	    Name:     "nightly-invoices",
//	    Schedule: "0 2 * * *",
//	    JobName:  "generate-invoices",
//	    Metadata: map[string]string{metadata.TenantKey: "100"},
//	})
//
// # Schedules
//
// Schedules use the standard 5-field cron syntax plus descriptors such as
// "@every 30s" and "@hourly" (github.com/robfig/cron/v3).
//
// # Scope
//
// Entries are local to the process that registered them. Running the same
// entries on multiple instances fires them on each instance; deploy cron
// registration to a single instance when at-most-once firing matters.
package cron
