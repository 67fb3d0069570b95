package surface

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Opener constructs a driver. It is called at most once per name.
type Opener func() (Driver, error)

// BindingTable is the process-wide set of native surface drivers. Drivers
// are registered by the host and opened lazily on first use.
type BindingTable struct {
	mu      sync.Mutex
	openers map[string]Opener
	opened  map[string]Driver
	closed  bool
}

var (
	bindings     *BindingTable
	bindingsOnce sync.Once
)

// Bindings returns the process-wide binding table, creating it on first use.
func Bindings() *BindingTable {
	bindingsOnce.Do(func() {
		bindings = NewBindingTable()
	})
	return bindings
}

// NewBindingTable returns an empty table. Most callers want Bindings.
func NewBindingTable() *BindingTable {
	return &BindingTable{
		openers: make(map[string]Opener),
		opened:  make(map[string]Driver),
	}
}

// Register makes a driver available under name. Registering a name twice
// replaces the opener unless the driver has already been opened.
func (b *BindingTable) Register(name string, open Opener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.opened[name]; ok {
		return
	}
	b.openers[name] = open
}

// Open returns the driver registered under name, opening it on first call.
func (b *BindingTable) Open(name string) (Driver, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if drv, ok := b.opened[name]; ok {
		return drv, nil
	}
	open, ok := b.openers[name]
	if !ok {
		return nil, fmt.Errorf("surface: unknown backend %q (available: %v)", name, b.namesLocked())
	}
	drv, err := open()
	if err != nil {
		return nil, fmt.Errorf("surface: failed to open %s backend: %w", name, err)
	}
	b.opened[name] = drv
	return drv, nil
}

// Names returns the registered driver names in sorted order.
func (b *BindingTable) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.namesLocked()
}

func (b *BindingTable) namesLocked() []string {
	names := make([]string, 0, len(b.openers))
	for name := range b.openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every opened driver. Later Opens fail with ErrClosed.
func (b *BindingTable) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for name, drv := range b.opened {
		if err := drv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	b.opened = make(map[string]Driver)
	b.closed = true
	return errors.Join(errs...)
}
