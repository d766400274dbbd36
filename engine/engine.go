// Package engine wires all Courier subsystems together. It creates the
// extension registry, job registry, scope provider registry, middleware
// chains, worker pool, and cron scheduler, and provides Register/Enqueue
// operations.
//
// This package exists to break the import cycle: the root courier package
// defines Entity (imported by job, dlq, etc.) and so cannot import those
// packages back. The engine package sits above all subsystem packages and
// below the application layer.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/courier"
	"github.com/xraph/courier/backoff"
	"github.com/xraph/courier/cron"
	"github.com/xraph/courier/dlq"
	"github.com/xraph/courier/ext"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/metadata"
	mw "github.com/xraph/courier/middleware"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/queue"
	"github.com/xraph/courier/scope"
	"github.com/xraph/courier/tenant"
	"github.com/xraph/courier/worker"
)

// Engine is the assembled system: a Dispatcher plus typed handles on
// every subsystem Build wired into it.
type Engine struct {
	d          *courier.Dispatcher
	extensions *ext.Registry
	registry   *job.Registry
	providers  *scope.Registry
	jobStore   job.Store
	dlqService *dlq.Service
	bo         backoff.Strategy
	pool       *worker.Pool
	scheduler  *cron.Scheduler
	mws        []mw.Middleware
	stages     []mw.Enqueue
	enqueue    mw.Enqueue
	logger     *slog.Logger

	// Per-queue throttling; the manager stays nil when no configs are given.
	queueConfigs []queue.Config
	queueManager *queue.Manager

	// Explicit OTel providers. Nil falls back to the process globals.
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option customizes an Engine during Build.
type Option func(*Engine)

// WithExtension adds a lifecycle extension before the engine starts.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds execution middleware to the engine's chain, after the
// default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithEnqueueStage adds a creation-side stage to the enqueue chain, after
// the default tenant stamping stage. Stages run once per submission and are
// the only code allowed to write job metadata.
func WithEnqueueStage(s mw.Enqueue) Option {
	return func(eng *Engine) {
		eng.stages = append(eng.stages, s)
	}
}

// WithBackoff overrides the retry delay strategy. Without it the engine
// uses backoff.DefaultStrategy, exponential with jitter.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithQueueConfig declares rate and concurrency limits per queue. A queue
// with no config runs unthrottled.
func WithQueueConfig(configs ...queue.Config) Option {
	return func(eng *Engine) {
		eng.queueConfigs = append(eng.queueConfigs, configs...)
	}
}

// WithTracerProvider routes the tracing middleware through the given
// provider rather than otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider routes the metrics middleware and the observability
// extension through the given provider rather than otel.GetMeterProvider().
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build assembles an Engine around an existing Dispatcher. The
// Dispatcher's store must implement job.Store and dlq.Store; the concrete
// backends under store/ all do.
func Build(d *courier.Dispatcher, opts ...Option) (*Engine, error) {
	logger := d.Logger()
	store := d.Store()

	if store == nil {
		return nil, courier.ErrNoStore
	}

	// The Dispatcher only sees the lifecycle slice of the store; recover
	// the subsystem interfaces the engine wires directly.
	js, ok := store.(job.Store)
	if !ok {
		return nil, fmt.Errorf("courier: store does not implement job.Store")
	}
	ds, ok := store.(dlq.Store)
	if !ok {
		return nil, fmt.Errorf("courier: store does not implement dlq.Store")
	}

	eng := &Engine{
		d:          d,
		extensions: ext.NewRegistry(logger),
		registry:   job.NewRegistry(),
		providers:  scope.NewRegistry(),
		jobStore:   js,
		logger:     logger,
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.bo == nil {
		eng.bo = backoff.DefaultStrategy()
	}

	// The execution-side tenant accessor is always resolvable.
	tenant.RegisterProvider(eng.providers)

	eng.dlqService = dlq.NewService(ds, js)
	eng.extensions.Register(eng.metricsExtension())

	// Build default middleware stack: recover → tracing → metrics → logging
	// → seed → timeout. Seed must precede the handler so metadata-derived
	// dependencies resolve against the attempt's scope.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		eng.tracingMiddleware(),
		eng.metricsMiddleware(),
		mw.Logging(logger),
		mw.Seed(),
		mw.Timeout(logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	// Build the enqueue chain: tenant stamping first, then user stages.
	allStages := make([]mw.Enqueue, 0, 1+len(eng.stages))
	allStages = append(allStages, mw.StampTenant())
	allStages = append(allStages, eng.stages...)
	eng.enqueue = mw.EnqueueChain(allStages...)

	config := d.Config()
	executor := worker.NewExecutor(eng.registry, eng.providers, eng.extensions, eng.jobStore, eng.dlqService, eng.bo, logger, allMws...)

	poolOpts := []worker.PoolOption{
		worker.WithPoolConcurrency(config.Concurrency),
		worker.WithPoolQueues(config.Queues),
		worker.WithPollInterval(config.PollInterval),
		worker.WithHeartbeatInterval(config.HeartbeatInterval),
		worker.WithStaleJobThreshold(config.StaleJobThreshold),
	}

	if len(eng.queueConfigs) > 0 {
		eng.queueManager = queue.NewManager(eng.queueConfigs...)
		poolOpts = append(poolOpts, worker.WithQueueManager(eng.queueManager))
	}

	eng.pool = worker.NewPool(
		eng.jobStore,
		executor,
		eng.extensions,
		logger,
		poolOpts...,
	)

	// Hand the assembled pool and extension registry back to the
	// Dispatcher, which drives them through Start and Stop.
	d.SetPool(eng.pool)
	d.SetExtensions(eng.extensions)

	// Create the process-local cron scheduler.
	enqueueFunc := func(ctx context.Context, name string, payload []byte, opts ...job.Option) (id.JobID, error) {
		j, err := eng.EnqueueRaw(ctx, name, payload, opts...)
		if err != nil {
			return id.Nil, err
		}
		return j.ID, nil
	}
	eng.scheduler = cron.NewScheduler(enqueueFunc, eng.extensions, logger)

	return eng, nil
}

// tracingMiddleware picks the explicit tracer provider when one was
// configured, the process global otherwise.
func (eng *Engine) tracingMiddleware() mw.Middleware {
	if eng.tracerProvider == nil {
		return mw.Tracing()
	}
	return mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/xraph/courier"))
}

func (eng *Engine) metricsMiddleware() mw.Middleware {
	if eng.meterProvider == nil {
		return mw.Metrics()
	}
	return mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/xraph/courier"))
}

func (eng *Engine) metricsExtension() *observability.MetricsExtension {
	if eng.meterProvider == nil {
		return observability.NewMetricsExtension()
	}
	meter := eng.meterProvider.Meter("github.com/xraph/courier/observability")
	return observability.NewMetricsExtensionWithMeter(meter)
}

// Register lowers a typed job definition into the engine's registry.
// Package-level because Go disallows generic methods.
func Register[T any](eng *Engine, def *job.Definition[T]) {
	job.RegisterDefinition(eng.registry, def)
}

// Enqueue JSON-encodes the payload and submits a job under the given name.
func Enqueue[T any](ctx context.Context, eng *Engine, name string, payload T, opts ...job.Option) (*job.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for job %q: %w", name, err)
	}

	return eng.EnqueueRaw(ctx, name, data, opts...)
}

// EnqueueRaw enqueues a job with a pre-serialized payload. The submission
// runs through the enqueue chain; when the terminal handler returns, the
// metadata is frozen and the descriptor is persisted with its snapshot in a
// single store write.
func (eng *Engine) EnqueueRaw(ctx context.Context, name string, payload []byte, opts ...job.Option) (*job.Job, error) {
	now := time.Now().UTC()
	j := &job.Job{
		Entity:  courier.NewEntity(),
		ID:      id.NewJobID(),
		Name:    name,
		Payload: payload,
		State:   job.StatePending,
		RunAt:   now,
	}

	jobOpts := job.DefaultOptions()
	for _, opt := range opts {
		opt(&jobOpts)
	}
	j.Queue = jobOpts.Queue
	j.Priority = jobOpts.Priority
	j.MaxRetries = jobOpts.MaxRetries
	j.Timeout = jobOpts.Timeout
	if !jobOpts.RunAt.IsZero() {
		j.RunAt = jobOpts.RunAt
	}

	// Option-provided metadata seeds the writable view; enqueue stages may
	// add to or overwrite it before the freeze.
	md := metadata.New()
	for k, v := range jobOpts.Metadata {
		if err := md.Set(k, v); err != nil {
			return nil, err
		}
	}

	persist := func(ctx context.Context) error {
		j.Metadata = md.Freeze()
		return eng.jobStore.EnqueueJob(ctx, j)
	}
	if err := eng.enqueue(ctx, j, md, persist); err != nil {
		return nil, err
	}

	eng.extensions.EmitJobEnqueued(ctx, j)
	return j, nil
}

// CancelJob cancels a job that has not started running. Only pending and
// retrying jobs can be cancelled; anything else returns
// courier.ErrJobNotCancellable.
func (eng *Engine) CancelJob(ctx context.Context, jobID id.JobID) error {
	j, err := eng.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if j.State != job.StatePending && j.State != job.StateRetrying {
		return fmt.Errorf("%w: current state %s", courier.ErrJobNotCancellable, j.State)
	}

	now := time.Now().UTC()
	j.State = job.StateCancelled
	j.CompletedAt = &now
	if err := eng.jobStore.UpdateJob(ctx, j); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	return nil
}

// Start begins job processing by starting the cron scheduler and the worker
// pool.
func (eng *Engine) Start(ctx context.Context) error {
	if err := eng.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start cron scheduler: %w", err)
	}

	return eng.d.Start(ctx)
}

// Stop drains the scheduler, then the dispatcher: pool, shutdown hooks,
// store close.
func (eng *Engine) Stop(ctx context.Context) error {
	if err := eng.scheduler.Stop(ctx); err != nil {
		eng.logger.Error("cron scheduler stop error", slog.String("error", err.Error()))
	}

	return eng.d.Stop(ctx)
}

// Extensions returns the lifecycle extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the registry of job handlers.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Providers returns the scope provider registry. Applications register
// per-attempt dependency factories on it with scope.Register.
func (eng *Engine) Providers() *scope.Registry { return eng.providers }

// Dispatcher returns the Dispatcher the engine was built around.
func (eng *Engine) Dispatcher() *courier.Dispatcher { return eng.d }

// DLQService exposes dead-letter inspection and replay.
func (eng *Engine) DLQService() *dlq.Service { return eng.dlqService }

// Scheduler returns the process-local cron scheduler.
func (eng *Engine) Scheduler() *cron.Scheduler { return eng.scheduler }

// QueueManager returns the per-queue throttle manager; nil when no queue
// configs were given to Build.
func (eng *Engine) QueueManager() *queue.Manager { return eng.queueManager }

// RegisterCron registers a typed cron definition with the engine.
// It validates the schedule expression, computes the initial NextRunAt, and
// adds the entry to the process-local scheduler. Re-registration of the same
// name is idempotent.
func RegisterCron[T any](eng *Engine, def *cron.Definition[T]) error {
	// Marshal the default payload.
	payload, err := json.Marshal(def.Payload)
	if err != nil {
		return fmt.Errorf("marshal cron payload: %w", err)
	}

	entry := &cron.Entry{
		Entity:   courier.NewEntity(),
		ID:       id.NewCronID(),
		Name:     def.Name,
		Schedule: def.Schedule,
		JobName:  def.JobName,
		Queue:    def.Queue,
		Payload:  payload,
		Metadata: metadata.Snapshot(def.Metadata),
		Enabled:  true,
	}

	if err := eng.scheduler.Add(entry); err != nil {
		// Idempotent: ignore duplicate cron entries.
		if errors.Is(err, courier.ErrDuplicateCron) {
			return nil
		}
		return fmt.Errorf("register cron %q: %w", def.Name, err)
	}

	eng.logger.Info("cron registered",
		slog.String("name", def.Name),
		slog.String("schedule", def.Schedule),
		slog.String("job_name", def.JobName),
	)

	return nil
}
