// Package observability provides OpenTelemetry-based metrics extensions
// for Courier. The MetricsExtension implements lifecycle hooks to record
// system-wide counters for job enqueue, completion, failure, retry, DLQ,
// and cron events, labeled by queue and tenant.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
