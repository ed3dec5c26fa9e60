// Package queue provides the bounded buffer between dirty-round
// signals and the flush workers. Enqueue is non-blocking so score
// entry never stalls on persistence backpressure.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/tenring/quiver/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
	defaultBufferSize    = 10000
)

// FlushRequest asks the flush workers to reconcile one round into the
// durable store.
type FlushRequest struct {
	RoundID    string
	EnqueuedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a flush request to the queue.
	// Returns false if the queue is full or closed and the request was dropped.
	Enqueue(ctx context.Context, req FlushRequest) bool

	// Dequeue returns a channel that will receive requests as they become
	// available. The channel closes when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan FlushRequest

	// Len returns the current number of queued requests.
	Len(ctx context.Context) int

	// Close shuts down the queue. After closing, no new requests can be
	// enqueued and the dequeue channel drains then closes.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	requests   chan FlushRequest
	capacity   int
	bufferSize int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:   defaultQueueCapacity,
		bufferSize: defaultBufferSize,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.requests = make(chan FlushRequest, q.bufferSize)

	metrics.UpdateFlushQueueCapacity(q.capacity)
	metrics.UpdateFlushQueueSize(0)
	metrics.UpdateFlushQueueUtilization(0.0)

	return q
}

// Enqueue adds a flush request to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, req FlushRequest) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordFlushEnqueueError()
		return false
	}

	if len(q.requests) >= q.capacity {
		metrics.RecordFlushEnqueueError()
		return false
	}

	select {
	case q.requests <- req:
		metrics.RecordFlushEnqueue()
		q.publishUtilization()
		return true
	case <-ctx.Done():
		metrics.RecordFlushEnqueueError()
		return false
	default:
		metrics.RecordFlushEnqueueError()
		return false
	}
}

// Dequeue returns a channel that will receive requests as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan FlushRequest {
	out := make(chan FlushRequest)
	go func() {
		defer close(out)
		for req := range q.requests {
			select {
			case out <- req:
				metrics.RecordFlushDequeue()
				q.publishUtilization()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued requests.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.requests)
	q.publishUtilization()
	return size
}

// Close shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.requests)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) publishUtilization() {
	size := len(q.requests)
	metrics.UpdateFlushQueueSize(size)
	metrics.UpdateFlushQueueUtilization(float64(size) / float64(q.capacity))
}
