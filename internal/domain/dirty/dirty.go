// Package dirty tracks which rounds have unflushed in-memory changes.
// The tracker coalesces repeated signals for the same round so a burst
// of shot entries turns into a single pending flush.
package dirty

import (
	"context"
	"sync"
	"sync/atomic"
)

// Tracker records rounds awaiting a durable flush.
type Tracker interface {
	// MarkPending atomically checks whether the round is already
	// pending and records it if not. Returns true if the round was
	// newly marked, meaning the caller should enqueue a flush, and
	// false when an earlier signal already covers it.
	MarkPending(ctx context.Context, roundID string) bool

	// Clear removes a round from the pending set. Called by the
	// flusher after its snapshot has been taken, so signals arriving
	// during the flush re-mark the round.
	Clear(ctx context.Context, roundID string)

	Size() int64
}

// inMemoryTracker implements Tracker with a mutex-guarded set.
type inMemoryTracker struct {
	mu              sync.Mutex
	pending         map[string]struct{}
	size            atomic.Int64
	initialCapacity int
}

// NewInMemoryTracker creates an empty tracker.
func NewInMemoryTracker(opts ...Option) Tracker {
	t := &inMemoryTracker{
		initialCapacity: defaultInitialCapacity,
	}

	for _, opt := range opts {
		opt(t)
	}

	t.pending = make(map[string]struct{}, t.initialCapacity)
	return t
}

func (t *inMemoryTracker) MarkPending(ctx context.Context, roundID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.pending[roundID]; exists {
		return false
	}
	t.pending[roundID] = struct{}{}
	t.size.Add(1)
	return true
}

func (t *inMemoryTracker) Clear(ctx context.Context, roundID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.pending[roundID]; exists {
		delete(t.pending, roundID)
		t.size.Add(-1)
	}
}

// Size returns the number of rounds currently pending.
func (t *inMemoryTracker) Size() int64 {
	return t.size.Load()
}
