// Package surfacetest provides an in-memory surface.Driver that records
// every native call and lets tests inject platform events.
package surfacetest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bryanchriswhite/pixview/internal/surface"
)

// Call is one recorded native call.
type Call struct {
	Op     string
	Handle surface.Handle
	Arg    string
}

func (c Call) String() string {
	if c.Arg == "" {
		return fmt.Sprintf("%s(%d)", c.Op, c.Handle)
	}
	return fmt.Sprintf("%s(%d, %s)", c.Op, c.Handle, c.Arg)
}

type window struct {
	title     string
	width     int
	height    int
	managed   bool
	clipboard string
	blits     int
	fb        *surface.Framebuffer
	queue     *surface.Queue
	callbacks *surface.Callbacks
}

// Driver is a recording surface.Driver. The zero value is not usable; call New.
type Driver struct {
	mu       sync.Mutex
	calls    []Call
	failures map[string]surface.Status
	windows  *surface.Registry[*window]
	retained map[surface.Handle]map[surface.Kind]surface.Trampoline
	closed   bool
}

// New returns an empty recording driver.
func New() *Driver {
	return &Driver{
		failures: make(map[string]surface.Status),
		windows:  surface.NewRegistry[*window](),
		retained: make(map[surface.Handle]map[surface.Kind]surface.Trampoline),
	}
}

func (d *Driver) record(op string, h surface.Handle, arg string) surface.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: op, Handle: h, Arg: arg})
	return d.failures[op]
}

func (d *Driver) lookup(h surface.Handle) (*window, bool) {
	return d.windows.Get(h)
}

// Fail makes every later call of op return st. StatusOK clears it.
func (d *Driver) Fail(op string, st surface.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st == surface.StatusOK {
		delete(d.failures, op)
		return
	}
	d.failures[op] = st
}

// Calls returns a copy of the call log.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// Count returns how many times op was called.
func (d *Driver) Count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Last returns the most recent call of op.
func (d *Driver) Last(op string) (Call, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.calls) - 1; i >= 0; i-- {
		if d.calls[i].Op == op {
			return d.calls[i], true
		}
	}
	return Call{}, false
}

// Windows returns the live handles in creation order.
func (d *Driver) Windows() []surface.Handle {
	var hs []surface.Handle
	d.windows.Each(func(h surface.Handle, _ *window) {
		hs = append(hs, h)
	})
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// Live reports whether h is a live window.
func (d *Driver) Live(h surface.Handle) bool {
	_, ok := d.lookup(h)
	return ok
}

// Title returns the current title of h.
func (d *Driver) Title(h surface.Handle) string {
	if w, ok := d.lookup(h); ok {
		return w.title
	}
	return ""
}

// Blits returns how many buffers were blitted into h.
func (d *Driver) Blits(h surface.Handle) int {
	if w, ok := d.lookup(h); ok {
		return w.blits
	}
	return 0
}

// Framebuffer exposes the framebuffer of h.
func (d *Driver) Framebuffer(h surface.Handle) *surface.Framebuffer {
	if w, ok := d.lookup(h); ok {
		return w.fb
	}
	return nil
}

// Trampoline returns the trampoline registered for kind on h. It stays
// available after Destroy so tests can invoke stale trampolines.
func (d *Driver) Trampoline(h surface.Handle, kind surface.Kind) surface.Trampoline {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.retained[h][kind]
}

// Emit queues an event for h. It is delivered by the next pump.
func (d *Driver) Emit(h surface.Handle, kind surface.Kind, inv surface.Invocation) bool {
	w, ok := d.lookup(h)
	if !ok {
		return false
	}
	inv.Handle = h
	return w.queue.Push(surface.Pending{Kind: kind, Inv: inv})
}

// RequestClose queues an OS close request for h.
func (d *Driver) RequestClose(h surface.Handle) bool {
	return d.Emit(h, surface.KindClose, surface.Invocation{})
}

// Key queues a key event.
func (d *Driver) Key(h surface.Handle, key, scancode, action, mods int) bool {
	return d.Emit(h, surface.KindKey, surface.Invocation{
		Ints: [4]int32{int32(key), int32(scancode), int32(action), int32(mods)},
	})
}

// Text queues a character event.
func (d *Driver) Text(h surface.Handle, r rune) bool {
	return d.Emit(h, surface.KindText, surface.Invocation{Ints: [4]int32{int32(r)}})
}

// Resize queues a framebuffer-size event.
func (d *Driver) Resize(h surface.Handle, width, height int, xscale, yscale float64) bool {
	return d.Emit(h, surface.KindFramebufferSize, surface.Invocation{
		Ints:   [4]int32{int32(width), int32(height)},
		Floats: [2]float64{xscale, yscale},
	})
}

// MouseMove queues a cursor-position event.
func (d *Driver) MouseMove(h surface.Handle, x, y float64) bool {
	return d.Emit(h, surface.KindMousePosition, surface.Invocation{Floats: [2]float64{x, y}})
}

// MouseButton queues a mouse-button event.
func (d *Driver) MouseButton(h surface.Handle, button, action, mods int) bool {
	return d.Emit(h, surface.KindMouseButton, surface.Invocation{
		Ints: [4]int32{int32(button), int32(action), int32(mods)},
	})
}

// Focus queues a focus event.
func (d *Driver) Focus(h surface.Handle, focused bool) bool {
	inv := surface.Invocation{}
	if focused {
		inv.Ints[0] = 1
	}
	return d.Emit(h, surface.KindWindowFocus, inv)
}

func (d *Driver) Name() string { return "test" }

func (d *Driver) Create(title string, width, height, initWidth, initHeight int, onClose surface.Trampoline) (surface.Handle, error) {
	if st := d.record("create", 0, title); st != surface.StatusOK {
		return 0, fmt.Errorf("create window: %s", st)
	}
	if d.isClosed() {
		return 0, surface.ErrClosed
	}
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("create window: invalid size %dx%d", width, height)
	}

	w := &window{
		title:     title,
		width:     initWidth,
		height:    initHeight,
		managed:   true,
		fb:        surface.NewFramebuffer(),
		queue:     surface.NewQueue(0),
		callbacks: surface.NewCallbacks(onClose),
	}
	h := d.windows.Add(w)

	d.mu.Lock()
	d.retained[h] = map[surface.Kind]surface.Trampoline{surface.KindClose: onClose}
	d.mu.Unlock()
	return h, nil
}

func (d *Driver) Destroy(h surface.Handle) surface.Status {
	if st := d.record("destroy", h, ""); st != surface.StatusOK {
		return st
	}
	w, ok := d.windows.Remove(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	w.queue.Shutdown()
	w.callbacks.Clear()
	return surface.StatusOK
}

func (d *Driver) Render(h surface.Handle) surface.Status {
	if st := d.record("render", h, ""); st != surface.StatusOK {
		return st
	}
	w, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	if w.managed {
		w.queue.Drain(w.callbacks)
	}
	return surface.StatusOK
}

func (d *Driver) Blit(h surface.Handle, buf []byte, width, height int) surface.Status {
	if st := d.record("blit", h, fmt.Sprintf("%dx%d", width, height)); st != surface.StatusOK {
		return st
	}
	w, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	if st := w.fb.Blit(buf, width, height); st != surface.StatusOK {
		return st
	}
	w.blits++
	return surface.StatusOK
}

func (d *Driver) SetFormat(h surface.Handle, format string) surface.Status {
	if st := d.record("set_format", h, format); st != surface.StatusOK {
		return st
	}
	w, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	return w.fb.SetFormat(format)
}

func (d *Driver) SetTitle(h surface.Handle, title string) surface.Status {
	if st := d.record("set_title", h, title); st != surface.StatusOK {
		return st
	}
	w, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	w.title = title
	return surface.StatusOK
}

func (d *Driver) SetClearColor(h surface.Handle, r, g, b uint8) surface.Status {
	if st := d.record("set_clear_color", h, fmt.Sprintf("%d,%d,%d", r, g, b)); st != surface.StatusOK {
		return st
	}
	w, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	w.fb.SetClearColor(r, g, b)
	return surface.StatusOK
}

func (d *Driver) SetManaged(h surface.Handle, managed bool) surface.Status {
	if st := d.record("set_managed", h, fmt.Sprint(managed)); st != surface.StatusOK {
		return st
	}
	w, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	w.managed = managed
	return surface.StatusOK
}

func (d *Driver) AwaitEvents(h surface.Handle) surface.Status {
	if st := d.record("await_events", h, ""); st != surface.StatusOK {
		return st
	}
	w, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	w.queue.Wait(w.callbacks, -1)
	return surface.StatusOK
}

func (d *Driver) AwaitEventsTimeout(h surface.Handle, seconds float64) surface.Status {
	if st := d.record("await_events_timeout", h, fmt.Sprint(seconds)); st != surface.StatusOK {
		return st
	}
	w, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	w.queue.Wait(w.callbacks, surface.SecondsToDuration(seconds))
	return surface.StatusOK
}

func (d *Driver) GetClipboard(h surface.Handle) (string, surface.Status) {
	if st := d.record("get_clipboard", h, ""); st != surface.StatusOK {
		return "", st
	}
	w, ok := d.lookup(h)
	if !ok {
		return "", surface.StatusUnknownHandle
	}
	return w.clipboard, surface.StatusOK
}

func (d *Driver) SetClipboard(h surface.Handle, text string) surface.Status {
	if st := d.record("set_clipboard", h, text); st != surface.StatusOK {
		return st
	}
	w, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	w.clipboard = text
	return surface.StatusOK
}

func (d *Driver) RegisterCallback(h surface.Handle, kind surface.Kind, t surface.Trampoline) surface.Status {
	if st := d.record("register", h, kind.String()); st != surface.StatusOK {
		return st
	}
	w, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	w.callbacks.Set(kind, t)

	d.mu.Lock()
	d.retained[h][kind] = t
	d.mu.Unlock()
	return surface.StatusOK
}

func (d *Driver) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.windows.Each(func(_ surface.Handle, w *window) {
		w.queue.Shutdown()
	})
	return nil
}

func (d *Driver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

var _ surface.Driver = (*Driver)(nil)
