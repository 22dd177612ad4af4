// Cross-run worker pool (spec.md §5's concurrent-runs model): the
// validation harness fans a closed set of deterministic plays out across
// many (Play, symbol, window) jobs and wants them bounded by a worker
// count, not by goroutine-per-job. Grounded on internal/workers/pool.go's
// Pool/Task/worker design — task queue, timeout-per-task, panic recovery,
// graceful Stop — trimmed to what a validation sweep actually needs: the
// donor's BatchProcessor and Pipeline types exist for its own streaming
// tick-processing pipeline, which this package has no equivalent of, so
// they're dropped (see DESIGN.md). The P99-latency/throughput machinery
// is dropped too; validation jobs report pass/fail, not a throughput SLA.
package validation

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

func numCPU() int { return runtime.NumCPU() }

// Job is one unit of validation work (one audit, one walk-forward window,
// one Monte Carlo sweep) submitted to the Pool.
type Job func(ctx context.Context) error

// Pool runs Jobs across a bounded set of worker goroutines.
type Pool struct {
	logger *zap.Logger

	numWorkers int
	jobTimeout time.Duration

	queue  chan Job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	running atomic.Bool

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// PoolConfig configures a validation worker Pool.
type PoolConfig struct {
	NumWorkers int
	QueueSize  int
	JobTimeout time.Duration
}

// DefaultPoolConfig sizes the pool to the host's CPU count — validation
// jobs are CPU-bound (each runs its own Engine), unlike the donor's
// I/O-bound default of 2x NumCPU.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{NumWorkers: 0, QueueSize: 1024, JobTimeout: 2 * time.Minute}
}

// NewPool builds a stopped Pool; call Start to begin processing.
func NewPool(logger *zap.Logger, cfg PoolConfig) *Pool {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = numCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		logger:     logger,
		numWorkers: cfg.NumWorkers,
		jobTimeout: cfg.JobTimeout,
		queue:      make(chan Job, cfg.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the worker goroutines. No-op if already running.
func (p *Pool) Start() {
	if p.running.Swap(true) {
		return
	}
	p.logger.Info("starting validation worker pool", zap.Int("workers", p.numWorkers))
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()
	log := p.logger.With(zap.Int("worker_id", id))
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.runJob(log, job)
		}
	}
}

func (p *Pool) runJob(log *zap.Logger, job Job) {
	ctx, cancel := context.WithTimeout(p.ctx, p.jobTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("validation job panicked", zap.Any("panic", r))
				done <- errPanic
			}
		}()
		done <- job(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			p.failed.Add(1)
			log.Warn("validation job failed", zap.Error(err))
		} else {
			p.completed.Add(1)
		}
	case <-ctx.Done():
		p.failed.Add(1)
		log.Warn("validation job timed out", zap.Duration("timeout", p.jobTimeout))
	}
}

// Submit enqueues a job. Returns ErrPoolStopped if the pool isn't
// running, ErrQueueFull if the queue is saturated.
func (p *Pool) Submit(job Job) error {
	if !p.running.Load() {
		return ErrPoolStopped
	}
	select {
	case p.queue <- job:
		p.submitted.Add(1)
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop signals all workers to exit and waits for them to drain.
func (p *Pool) Stop() {
	if !p.running.Swap(false) {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.logger.Info("validation worker pool stopped",
		zap.Int64("submitted", p.submitted.Load()),
		zap.Int64("completed", p.completed.Load()),
		zap.Int64("failed", p.failed.Load()),
	)
}

// Stats reports the pool's running totals.
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
}

func (p *Pool) Stats() Stats {
	return Stats{Submitted: p.submitted.Load(), Completed: p.completed.Load(), Failed: p.failed.Load()}
}

var errPanic = &poolError{"validation job panicked"}

type poolError struct{ msg string }

func (e *poolError) Error() string { return e.msg }

var (
	ErrPoolStopped = &poolError{"validation pool is stopped"}
	ErrQueueFull   = &poolError{"validation job queue is full"}
)
