package correlate

import (
	"context"
	"sync"
)

// Registry tracks outstanding background calls by correlation id so a session
// reset can cancel them.
type Registry struct {
	mu    sync.Mutex
	calls map[string]context.CancelFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{calls: make(map[string]context.CancelFunc)}
}

// Register derives a cancellable context for the call identified by id. The
// returned release func must be called when the call finishes.
func (r *Registry) Register(parent context.Context, id string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	r.mu.Lock()
	r.calls[id] = cancel
	r.mu.Unlock()

	return ctx, func() {
		r.mu.Lock()
		delete(r.calls, id)
		r.mu.Unlock()
		cancel()
	}
}

// CancelAll cancels every outstanding call and returns how many there were.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.calls)
	for id, cancel := range r.calls {
		cancel()
		delete(r.calls, id)
	}
	return n
}

// Len returns the number of outstanding calls.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
