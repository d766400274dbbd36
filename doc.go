// Package courier provides a background-job execution engine with per-job
// isolated dependency scopes and contextual metadata propagation.
//
// A job is submitted in one execution context (for example an HTTP request
// carrying a tenant identity), persisted together with a frozen metadata
// snapshot, and executed later on a worker. At execution time the engine
// reconstructs an equivalent ambient context inside a per-attempt dependency
// scope, so job code and its dependencies observe the same metadata without
// it being threaded through every call.
//
// Courier is designed as a library, not a service. Import it, configure a
// store, register jobs as ordinary Go functions, and start the dispatcher.
//
// # Quick Start
//
//	d, err := courier.New(
//	    courier.WithStore(memStore),
//	    courier.WithConcurrency(20),
//	)
//
// # Architecture
//
// Submission runs an ordered chain of enqueue stages that write to the job's
// metadata store before descriptor and metadata are persisted atomically.
// Execution opens a fresh scope, runs the execution stages (which seed the
// scope from the persisted metadata), resolves the handler's dependencies
// from the scope, invokes the handler, and disposes the scope
// unconditionally — success, failure, or panic.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package courier
