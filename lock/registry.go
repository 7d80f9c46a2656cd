package lock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Handle is a single mutual-exclusion slot shared by every caller that
// acquired the same key while the registry entry was live.
type Handle struct {
	key  string
	sem  *semaphore.Weighted
	refs int
}

// Key returns the registry key the handle was created for.
func (h *Handle) Key() string {
	return h.key
}

// Lock blocks until the handle is held or ctx is done.
func (h *Handle) Lock(ctx context.Context) error {
	return h.sem.Acquire(ctx, 1)
}

// TryLock acquires the handle only if it is free.
func (h *Handle) TryLock() bool {
	return h.sem.TryAcquire(1)
}

// Unlock releases a held handle. Unlocking a handle that is not held panics.
func (h *Handle) Unlock() {
	h.sem.Release(1)
}

// Registry is a concurrency-safe map from key to [Handle].
//
// Acquire and Release bracket a caller's interest in a key, not the lock
// itself; a caller takes a reference, locks, unlocks, then releases.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Handle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Handle)}
}

// Acquire returns the handle for key, creating it if needed, and records a
// reference. Concurrent callers with the same key always observe the same
// handle.
func (r *Registry) Acquire(key string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.entries[key]
	if !ok {
		h = &Handle{key: key, sem: semaphore.NewWeighted(1)}
		r.entries[key] = h
	}
	h.refs++
	return h
}

// Release drops a reference taken by Acquire. The map entry is evicted when
// the last reference goes away; the handle object itself stays valid for
// anyone still holding a pointer to it.
func (r *Registry) Release(key string, h *Handle) {
	if h == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h.refs > 0 {
		h.refs--
	}
	if h.refs == 0 && r.entries[key] == h {
		delete(r.entries, key)
	}
}

// Len reports the number of keys with at least one live reference.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
