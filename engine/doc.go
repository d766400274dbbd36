// Package engine wires all Courier subsystems together and provides
// the primary application-level API for registering and enqueuing work.
//
// The engine package exists to break a fundamental import cycle: the root
// courier package defines Entity (imported by job, dlq, cron, etc.) and
// therefore cannot import those packages back. Engine sits above all
// subsystem packages and below the application layer.
//
// # Building an Engine
//
//	d, err := courier.New(
//	    courier.WithStore(pgStore),
//	    courier.WithConcurrency(20),
//	)
//
//	eng, err := engine.Build(d,
//	    engine.WithExtension(myExtension),
//	    engine.WithMiddleware(myMiddleware),
//	    engine.WithBackoff(backoff.NewConstant(time.Second)),
//	    engine.WithQueueConfig(queue.Config{
//	        Name:      "critical",
//	        RateLimit: 100,
//	    }),
//	)
//
// # Registering Work
//
//	// Jobs
//	engine.Register(eng, job.NewDefinition("send-email", sendEmail))
//
//	// Crons
//	engine.RegisterCron(eng, &cron.Definition[ReportInput]{
//	    Name:     "daily-report",
//	    Schedule: "0 9 * * *",
//	    JobName:  "generate-report",
//	})
//
//	// Scoped dependencies, resolved fresh per execution attempt
//	scope.Register(eng.Providers(), func(s *scope.Scope) (*TenantDB, error) {
//	    id, _ := s.Seeded(metadata.TenantKey)
//	    return openTenantDB(id)
//	})
//
// # Enqueuing Jobs
//
// The submission context carries the ambient tenant; the enqueue chain
// stamps it into the job's metadata before the descriptor is persisted:
//
//	ctx = tenant.WithID(ctx, "100")
//	engine.Enqueue(ctx, eng, "send-email", EmailInput{To: "user@example.com"})
//
//	// With options
//	engine.Enqueue(ctx, eng, "send-email", input,
//	    job.WithQueue("critical"),
//	    job.WithRunAt(time.Now().Add(5*time.Minute)),
//	)
//
// # Options
//
//   - [WithExtension] — register a lifecycle extension
//   - [WithMiddleware] — add a middleware to the execution chain
//   - [WithEnqueueStage] — add a stage to the creation-side chain
//   - [WithBackoff] — set the retry backoff strategy
//   - [WithQueueConfig] — configure per-queue rate limits and concurrency
//   - [WithTracerProvider] — set the OpenTelemetry tracer provider
//   - [WithMeterProvider] — set the OpenTelemetry meter provider
package engine
