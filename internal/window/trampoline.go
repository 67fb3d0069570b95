package window

import (
	"sync"

	"github.com/bryanchriswhite/pixview/internal/surface"
)

// trampoline is the native-invokable stub bound to one callback kind. It
// only records what happened; handlers run later, outside the session lock.
type trampoline struct {
	kind surface.Kind
	mu   sync.Mutex
	fn   func(surface.Invocation)
}

func newTrampoline(kind surface.Kind, fn func(surface.Invocation)) *trampoline {
	return &trampoline{kind: kind, fn: fn}
}

// invoke is handed to the driver as a surface.Trampoline. The lock is held
// across fn so dispose cannot complete while an invocation is in flight.
func (t *trampoline) invoke(inv surface.Invocation) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fn == nil {
		return false
	}
	t.fn(inv)
	return true
}

func (t *trampoline) dispose() {
	t.mu.Lock()
	t.fn = nil
	t.mu.Unlock()
}
