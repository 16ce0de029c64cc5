package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrShutdownTimeout is returned when workers don't stop within timeout.
	ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

	// ErrPoolFull is returned when every slot and pending place is taken.
	ErrPoolFull = errors.New("worker pool is full")

	// ErrPoolStopped is returned by Submit after Stop.
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Task is a unit of work. ctx is canceled when a shutdown runs out of time.
type Task func(ctx context.Context)

// Config holds worker pool configuration.
type Config struct {
	// MaxConcurrent is the number of tasks that run at once.
	MaxConcurrent int

	// MaxPending is the number of tasks that may wait for a slot.
	MaxPending int
}

// Stats is a snapshot of the pool.
type Stats struct {
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Completed int64 `json:"completed"`
	Panicked  int64 `json:"panicked"`
	Rejected  int64 `json:"rejected"`
}

// Pool runs submitted tasks with bounded concurrency.
type Pool struct {
	maxConcurrent int
	maxPending    int
	sem           *semaphore.Weighted
	logger        *slog.Logger

	// queueCtx is canceled on Stop so waiting tasks give up their place;
	// runCtx is canceled only when the shutdown deadline passes.
	queueCtx    context.Context
	cancelQueue context.CancelFunc
	runCtx      context.Context
	cancelRun   context.CancelFunc

	wg sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	active  int
	queued  int
	stats   Stats
}

// NewPool creates a new worker pool.
func NewPool(cfg Config, logger *slog.Logger) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.MaxPending < 0 {
		cfg.MaxPending = 0
	}

	queueCtx, cancelQueue := context.WithCancel(context.Background())
	runCtx, cancelRun := context.WithCancel(context.Background())

	return &Pool{
		maxConcurrent: cfg.MaxConcurrent,
		maxPending:    cfg.MaxPending,
		sem:           semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:        logger,
		queueCtx:      queueCtx,
		cancelQueue:   cancelQueue,
		runCtx:        runCtx,
		cancelRun:     cancelRun,
	}
}

// Submit schedules task. It never blocks: when the pool is saturated it
// returns ErrPoolFull.
func (p *Pool) Submit(name string, task Task) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	if p.active+p.queued >= p.maxConcurrent+p.maxPending {
		p.stats.Rejected++
		p.mu.Unlock()
		return ErrPoolFull
	}
	p.queued++
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(name, task)
	return nil
}

func (p *Pool) run(name string, task Task) {
	defer p.wg.Done()
	logger := p.logger.With("task", name)

	if err := p.sem.Acquire(p.queueCtx, 1); err != nil {
		p.mu.Lock()
		p.queued--
		p.mu.Unlock()
		logger.Warn("task dropped before start", "error", err)
		return
	}
	defer p.sem.Release(1)

	p.mu.Lock()
	p.queued--
	p.active++
	p.mu.Unlock()

	start := time.Now()
	panicked := p.execute(logger, task)

	p.mu.Lock()
	p.active--
	p.stats.Completed++
	if panicked {
		p.stats.Panicked++
	}
	p.mu.Unlock()

	logger.Debug("task finished", "duration_ms", time.Since(start).Milliseconds())
}

func (p *Pool) execute(logger *slog.Logger, task Task) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", "panic", r)
			panicked = true
		}
	}()
	task(p.runCtx)
	return false
}

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Active = p.active
	s.Queued = p.queued
	return s
}

// Stop refuses new tasks, drops queued ones and waits for running tasks.
// If they are still running after timeout their context is canceled and
// ErrShutdownTimeout is returned.
func (p *Pool) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	active, queued := p.active, p.queued
	p.mu.Unlock()

	p.logger.Info("stopping worker pool", "active", active, "queued", queued)
	p.cancelQueue()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		p.cancelRun()
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-timer.C:
		p.cancelRun()
		return ErrShutdownTimeout
	}
}
