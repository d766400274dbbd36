// Package queue groups jobs into named channels and throttles them per
// queue and per tenant.
//
// A job's Queue field decides which queue it lands in; the dispatcher
// polls the queues named in [courier.Config.Queues] (just "default"
// unless configured). A [Config] attaches limits to one queue:
//
//	queue.Config{
//	    Name:           "email",
//	    MaxConcurrency: 5,  // at most 5 email jobs in flight
//	    RateLimit:      10, // sustained dequeues per second
//	    RateBurst:      20, // short bursts up to 20
//	}
//
// and is handed to the engine at build time:
//
//	engine.Build(d,
//	    engine.WithQueueConfig(
//	        queue.Config{Name: "critical", MaxConcurrency: 20},
//	        queue.Config{Name: "bulk", RateLimit: 5, RateBurst: 10},
//	    ),
//	)
//
// [Manager] is the enforcement point, consulted by workers at dequeue
// time. Rate limits ride on golang.org/x/time/rate token buckets;
// concurrency caps are active-job counts. Tenant limits work the same
// way but key on the tenant recorded in the job's frozen metadata, which
// lets an operator throttle one noisy tenant without touching handler
// code:
//
//	m := queue.NewManager(configs...)
//	m.SetTenantConfig(queue.TenantConfig{QueueName: "email", TenantID: "100", RateLimit: 2})
//	if m.Acquire(queueName, j.TenantID()) {
//	    defer m.Release(queueName, j.TenantID())
//	    // process the job
//	}
//
// A queue with no Config is unlimited apart from the pool-wide
// concurrency cap.
package queue
