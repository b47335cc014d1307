package search

import (
	"sync"

	"github.com/desertthunder/fedsearch/internal/models"
)

// Registry is the set of in-flight query handles of the current search. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	handles map[*models.QueryHandle]struct{}
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[*models.QueryHandle]struct{})}
}

// Add registers h. Adding a registered handle or nil is a no-op.
func (r *Registry) Add(h *models.QueryHandle) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h] = struct{}{}
}

func (r *Registry) Contains(h *models.QueryHandle) bool {
	if h == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[h]
	return ok
}

// Remove unregisters h and reports whether it was present.
func (r *Registry) Remove(h *models.QueryHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[h]; !ok {
		return false
	}
	delete(r.handles, h)
	return true
}

func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.handles)
}

// Snapshot returns the registered handles in no particular order.
func (r *Registry) Snapshot() []*models.QueryHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.QueryHandle, 0, len(r.handles))
	for h := range r.handles {
		out = append(out, h)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
