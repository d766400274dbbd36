package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/courier/ext"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
)

// QueueManager gates execution of dequeued jobs. Acquire runs before a job
// executes, Release after it finishes. The tenant passed to both is the one
// recorded in the job's metadata at enqueue time.
type QueueManager interface {
	// Acquire reports whether the queue/tenant combination may run another
	// job right now.
	Acquire(queue, tenantID string) bool
	// Release returns the slot taken by Acquire.
	Release(queue, tenantID string)
}

// Pool runs a fixed number of worker goroutines that poll the store for
// claimable jobs and hand them to the Executor. One Pool holds one worker
// identity; heartbeats and stale-job recovery run as side loops on the
// same lifecycle.
type Pool struct {
	store      job.Store
	executor   *Executor
	extensions *ext.Registry
	logger     *slog.Logger

	workerID     id.WorkerID
	concurrency  int
	queues       []string
	pollInterval time.Duration

	heartbeatInterval time.Duration
	staleJobThreshold time.Duration

	queueManager QueueManager

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	activeMu sync.Mutex
	active   map[id.JobID]context.CancelFunc
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPoolQueues sets the queues the pool will poll.
func WithPoolQueues(queues []string) PoolOption {
	return func(p *Pool) { p.queues = queues }
}

// WithPollInterval sets how often idle workers re-poll the store.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithHeartbeatInterval sets how often heartbeats are recorded for jobs
// currently executing. Zero disables heartbeats.
func WithHeartbeatInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.heartbeatInterval = d }
}

// WithStaleJobThreshold sets how long a running job may go without a
// heartbeat before it is reset to pending. Zero disables the reaper.
func WithStaleJobThreshold(d time.Duration) PoolOption {
	return func(p *Pool) { p.staleJobThreshold = d }
}

// WithQueueManager sets the admission controller for rate limiting and
// per-queue concurrency.
func WithQueueManager(m QueueManager) PoolOption {
	return func(p *Pool) { p.queueManager = m }
}

// NewPool creates a worker pool with a fresh worker identity.
func NewPool(
	store job.Store,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		store:        store,
		executor:     executor,
		extensions:   extensions,
		logger:       logger,
		workerID:     id.NewWorkerID(),
		concurrency:  10,
		queues:       []string{"default"},
		pollInterval: time.Second,
		stopCh:       make(chan struct{}),
		active:       make(map[id.JobID]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines and, when configured, the heartbeat
// and reaper loops. It returns immediately; calling Start twice is a no-op.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
		slog.Any("queues", p.queues),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runWorker()
		}()
	}

	if p.heartbeatInterval > 0 {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runTicker(p.heartbeatInterval, p.heartbeatActive)
		}()
	}

	if p.staleJobThreshold > 0 {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runTicker(p.staleJobThreshold, p.resetStaleJobs)
		}()
	}

	return nil
}

// Stop signals all loops to finish and waits for them. When ctx expires
// before the drain completes, the contexts of still-running jobs are
// cancelled and Stop waits for the workers to observe that.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))
	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActive()
		p.wg.Wait()
	}

	return nil
}

// runWorker polls for one job at a time until the pool stops.
func (p *Pool) runWorker() {
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		if !p.claimAndRun() {
			p.idle()
		}
	}
}

// claimAndRun dequeues a single job and executes it. It reports whether a
// job was claimed, so the caller knows when to back off.
func (p *Pool) claimAndRun() bool {
	jobs, err := p.store.DequeueJobs(context.Background(), p.queues, 1)
	if err != nil {
		p.logger.Error("dequeue error", slog.String("error", err.Error()))
		return false
	}
	if len(jobs) == 0 {
		return false
	}

	j := jobs[0]
	tenantID := j.TenantID()

	if p.queueManager != nil && !p.queueManager.Acquire(j.Queue, tenantID) {
		p.deferJob(j)
		return false
	}

	p.extensions.EmitJobStarted(context.Background(), j)

	ctx, cancel := context.WithCancel(context.Background())
	p.track(j.ID, cancel)

	if execErr := p.executor.Execute(ctx, j); execErr != nil {
		p.logger.Debug("job execution failed",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("error", execErr.Error()),
		)
	}

	p.untrack(j.ID)
	cancel()

	if p.queueManager != nil {
		p.queueManager.Release(j.Queue, tenantID)
	}
	return true
}

// deferJob pushes a rate-limited job back to pending with a short delay so
// another poll cycle picks it up once a slot frees.
func (p *Pool) deferJob(j *job.Job) {
	j.State = job.StatePending
	j.RunAt = time.Now().Add(p.pollInterval)
	if err := p.store.UpdateJob(context.Background(), j); err != nil {
		p.logger.Error("failed to re-enqueue rate-limited job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// runTicker invokes fn on every interval tick until the pool stops.
func (p *Pool) runTicker(interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			fn()
		}
	}
}

// heartbeatActive records a heartbeat for every job currently executing.
func (p *Pool) heartbeatActive() {
	p.activeMu.Lock()
	ids := make([]id.JobID, 0, len(p.active))
	for jobID := range p.active {
		ids = append(ids, jobID)
	}
	p.activeMu.Unlock()

	for _, jobID := range ids {
		if err := p.store.HeartbeatJob(context.Background(), jobID, p.workerID); err != nil {
			p.logger.Warn("heartbeat failed",
				slog.String("job_id", jobID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// resetStaleJobs returns jobs abandoned by a dead worker to pending so any
// pool can claim them again.
func (p *Pool) resetStaleJobs() {
	stale, err := p.store.ReapStaleJobs(context.Background(), p.staleJobThreshold)
	if err != nil {
		p.logger.Error("reap stale jobs error", slog.String("error", err.Error()))
		return
	}

	for _, j := range stale {
		j.State = job.StatePending
		j.RunAt = time.Now().UTC()
		j.WorkerID = id.WorkerID{}
		j.HeartbeatAt = nil
		j.StartedAt = nil

		if err := p.store.UpdateJob(context.Background(), j); err != nil {
			p.logger.Error("reap: failed to reset stale job",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		p.logger.Info("reaped stale job",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
		)
	}
}

// idle waits one poll interval, or less if the pool stops first.
func (p *Pool) idle() {
	select {
	case <-time.After(p.pollInterval):
	case <-p.stopCh:
	}
}

func (p *Pool) track(jobID id.JobID, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.active[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrack(jobID id.JobID) {
	p.activeMu.Lock()
	delete(p.active, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActive() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, cancel := range p.active {
		p.logger.Warn("cancelling active job", slog.String("job_id", jobID.String()))
		cancel()
	}
}
