package dirty

// defaultInitialCapacity sizes the pending set for a typical live
// session count.
const defaultInitialCapacity = 1024

// Option configures the in-memory tracker.
type Option func(*inMemoryTracker)

// WithInitialCapacity presizes the pending set.
func WithInitialCapacity(capacity int) Option {
	return func(t *inMemoryTracker) {
		if capacity > 0 {
			t.initialCapacity = capacity
		}
	}
}
