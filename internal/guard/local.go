package guard

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

type localEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// LocalGuard serializes callers inside one process. Waiters on a key are served FIFO.
type LocalGuard struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	timeout time.Duration
}

// NewLocalGuard constructs an in-process guard; timeout bounds every acquisition.
func NewLocalGuard(timeout time.Duration) *LocalGuard {
	if timeout <= 0 {
		timeout = defaultAcquireTimeout
	}
	return &LocalGuard{entries: map[string]*localEntry{}, timeout: timeout}
}

// Acquire implements Guard.
func (g *LocalGuard) Acquire(ctx context.Context, key string) (func(), error) {
	entry := g.ref(key)

	acquireCtx, cancel := withAcquireTimeout(ctx, g.timeout)
	defer cancel()

	if err := entry.sem.Acquire(acquireCtx, 1); err != nil {
		g.unref(key, entry)
		return nil, timeoutError(key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.sem.Release(1)
			g.unref(key, entry)
		})
	}, nil
}

// Len reports how many keys currently have holders or waiters.
func (g *LocalGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func (g *LocalGuard) ref(key string) *localEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.entries[key]
	if !ok {
		entry = &localEntry{sem: semaphore.NewWeighted(1)}
		g.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (g *LocalGuard) unref(key string, entry *localEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry.refs--
	if entry.refs <= 0 {
		delete(g.entries, key)
	}
}
