package taskgraph

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// WorkerPool is a bounded-concurrency executor for task bodies. Concurrency
// is enforced with a weighted semaphore rather than a hand-rolled buffered
// channel, the ecosystem-idiomatic way to bound concurrency with
// context-aware acquisition.
type WorkerPool struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

// PoolOption configures a WorkerPool at construction.
type PoolOption func(*WorkerPool)

// WithPoolLogger attaches a structured logger to the pool.
func WithPoolLogger(l *slog.Logger) PoolOption {
	return func(p *WorkerPool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewWorkerPool returns a pool that runs at most concurrency work items at
// once. A concurrency of 0 or less defaults to the host's GOMAXPROCS.
func NewWorkerPool(concurrency int, opts ...PoolOption) *WorkerPool {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		sem:    semaphore.NewWeighted(int64(concurrency)),
		ctx:    ctx,
		cancel: cancel,
		logger: nopLogger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue schedules fn to run on a pool worker once a concurrency slot is
// available. Enqueue returns immediately; fn runs asynchronously on its own
// goroutine, gated by the pool's semaphore. The happens-before relation
// between the call to Enqueue and fn's execution is established by the go
// statement that starts fn's goroutine.
func (p *WorkerPool) Enqueue(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			p.logger.Warn("worker pool enqueue dropped", "reason", err)
			return
		}
		defer p.sem.Release(1)
		fn()
	}()
}

// Close stops accepting new acquisitions and waits for in-flight work items
// to finish. Work items already blocked waiting for a semaphore slot are
// released immediately without running.
func (p *WorkerPool) Close() {
	p.cancel()
	p.wg.Wait()
}
