package surface

import "sync"

// Registry maps handles to driver-side instances. Handles are allocated from
// a counter and never reused, so a stale handle cannot reach a newer window.
type Registry[T any] struct {
	mu    sync.RWMutex
	next  Handle
	items map[Handle]T
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[Handle]T)}
}

// Add stores v and returns its new handle.
func (r *Registry[T]) Add(v T) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.items[r.next] = v
	return r.next
}

// Get looks up h.
func (r *Registry[T]) Get(h Handle) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[h]
	return v, ok
}

// Remove deletes h and returns what was stored under it.
func (r *Registry[T]) Remove(h Handle) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[h]
	if ok {
		delete(r.items, h)
	}
	return v, ok
}

// Len returns the number of live handles.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Each calls fn for every live handle. fn must not modify the registry.
func (r *Registry[T]) Each(fn func(Handle, T)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for h, v := range r.items {
		fn(h, v)
	}
}
