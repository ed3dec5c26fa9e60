// Package worker runs the write-behind flushers that reconcile dirty
// rounds from the live store into the durable one.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/tenring/quiver/internal/adapters/mq/queue"
	"github.com/tenring/quiver/pkg/logger"
	"github.com/tenring/quiver/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Flusher reconciles one round from the live store into durable
// storage. A round missing from the live store is treated as deleted.
type Flusher interface {
	FlushRound(ctx context.Context, roundID string) error
}

// Queue defines how workers receive flush requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.FlushRequest
}

// Worker processes flush requests using the provided Flusher.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing flush requests.
type InMemoryWorker struct {
	queue   Queue
	flusher Flusher
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, flusher Flusher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		flusher:  flusher,
		name:     "flush-worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("flush-worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "flush-worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			if err := w.process(ctx, req); err != nil {
				w.logger.Error(ctx, "flush failed",
					logger.String("round_id", req.RoundID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process flushes a single round.
func (w *InMemoryWorker) process(ctx context.Context, req queue.FlushRequest) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.flusher.FlushRound(ctx, req.RoundID); err != nil {
		metrics.RecordFlushError()
		metrics.RecordWorkerError()
		return fmt.Errorf("flush round %s: %w", req.RoundID, err)
	}

	if !req.EnqueuedAt.IsZero() {
		metrics.RecordFlushLatency(float64(time.Since(req.EnqueuedAt).Milliseconds()))
	}
	return nil
}

// Pool manages multiple flush workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	flusher Flusher

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count sizes the
// pool from the CPU count.
func NewPool(workerCount int, q Queue, flusher Flusher) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		flusher: flusher,
		logger:  logger.Get().Named("flush-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			q,
			flusher,
			WithName("flush-worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerActiveCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Shutdown closes the queue, lets the workers drain it and waits for
// them to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	metrics.UpdateWorkerActiveCount(0)
	return nil
}
