package surface

import "sync"

// Callbacks is the driver-side table of trampolines for one window.
// Registering a kind again replaces the previous trampoline, matching the
// native layer; the one-registration rule is enforced by the session.
type Callbacks struct {
	mu    sync.Mutex
	table map[Kind]Trampoline
}

// NewCallbacks returns a table holding only the close trampoline.
func NewCallbacks(onClose Trampoline) *Callbacks {
	c := &Callbacks{table: make(map[Kind]Trampoline)}
	if onClose != nil {
		c.table[KindClose] = onClose
	}
	return c
}

// Set binds t to kind.
func (c *Callbacks) Set(kind Kind, t Trampoline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.table == nil {
		return
	}
	c.table[kind] = t
}

// Has reports whether kind has a trampoline.
func (c *Callbacks) Has(kind Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.table[kind]
	return ok
}

// Invoke calls the trampoline for kind. It returns false when none is bound.
func (c *Callbacks) Invoke(kind Kind, inv Invocation) bool {
	c.mu.Lock()
	t := c.table[kind]
	c.mu.Unlock()
	if t == nil {
		return false
	}
	return t(inv)
}

// Clear drops every reference. Later Set and Invoke calls are no-ops.
func (c *Callbacks) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = nil
}
