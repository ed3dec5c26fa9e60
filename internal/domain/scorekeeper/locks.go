package scorekeeper

import "sync"

// roundLocks serializes mutations per round id so each aggregate has a
// single writer while different rounds proceed concurrently. Entries
// are dropped once no goroutine holds or waits on them.
type roundLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newRoundLocks() *roundLocks {
	return &roundLocks{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the round's lock is held and returns the
// release function.
func (l *roundLocks) acquire(roundID string) func() {
	l.mu.Lock()
	entry := l.locks[roundID]
	if entry == nil {
		entry = &lockEntry{}
		l.locks[roundID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, roundID)
		}
		l.mu.Unlock()
	}
}
