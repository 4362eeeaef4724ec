package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrShutdownTimeout is returned when tasks don't stop within timeout.
var ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

// ErrStopped is returned when a task is submitted after Stop.
var ErrStopped = errors.New("worker pool stopped")

// Pool tracks background tasks, bounds batch parallelism and caps the
// number of runs holding a slot at once.
type Pool struct {
	batchSize int
	slots     chan struct{}
	logger    *slog.Logger

	mu      sync.Mutex
	stopped bool
	active  atomic.Int64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds worker pool configuration.
type Config struct {
	// BatchSize is how many tasks RunBatches runs at once.
	BatchSize int

	// MaxRuns is how many slots Acquire hands out at once, across all
	// callers.
	MaxRuns int
}

// NewPool creates a new worker pool.
func NewPool(cfg Config, logger *slog.Logger) *Pool {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 3
	}
	if cfg.MaxRuns <= 0 {
		cfg.MaxRuns = 4
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		batchSize: cfg.BatchSize,
		slots:     make(chan struct{}, cfg.MaxRuns),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// BatchSize returns the sub-batch size used by RunBatches.
func (p *Pool) BatchSize() int {
	return p.batchSize
}

// MaxRuns returns the number of slots Acquire hands out.
func (p *Pool) MaxRuns() int {
	return cap(p.slots)
}

// Acquire blocks until a run slot is free or ctx is done. The returned
// release func gives the slot back and is safe to call more than once.
func (p *Pool) Acquire(ctx context.Context) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-p.slots })
	}, nil
}

// Active returns the number of running background tasks.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Context returns the pool context, canceled by Stop.
func (p *Pool) Context() context.Context {
	return p.ctx
}

// Go runs fn on a tracked goroutine with the pool context. Panics are
// recovered and logged.
func (p *Pool) Go(name string, fn func(ctx context.Context)) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.wg.Add(1)
	p.mu.Unlock()

	p.active.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.active.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("task panicked",
					"task", name,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn(p.ctx)
	}()
	return nil
}

// RunBatches calls fn for every index in [0, n). Indices run in consecutive
// sub-batches of BatchSize; a sub-batch starts only after the previous one
// has fully finished. Every index is visited even if ctx is canceled or fn
// fails, so fn must handle cancellation itself. The first error is returned.
func (p *Pool) RunBatches(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	var firstErr error

	for start := 0; start < n; start += p.batchSize {
		end := min(start+p.batchSize, n)

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				return fn(ctx, i)
			})
		}
		if err := g.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}

		p.logger.Debug("sub-batch finished", "from", start+1, "to", end, "total", n)
	}

	return firstErr
}

// Stop cancels the pool context and waits for running tasks.
func (p *Pool) Stop(timeout time.Duration) error {
	p.logger.Info("stopping worker pool", "active", p.Active())

	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}
