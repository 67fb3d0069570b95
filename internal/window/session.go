// Package window owns the lifecycle of one native window: creation, buffer
// updates, event delivery and teardown, in managed or unmanaged mode.
package window

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/pixview/internal/logger"
	"github.com/bryanchriswhite/pixview/internal/pixel"
	"github.com/bryanchriswhite/pixview/internal/surface"
	"github.com/rs/zerolog"
)

// DefaultTickInterval is the render period of managed sessions.
const DefaultTickInterval = 50 * time.Millisecond

// State is the creation state of a Session.
type State uint8

const (
	Uncreated State = iota
	Created
	Disposed
)

func (s State) String() string {
	switch s {
	case Uncreated:
		return "uncreated"
	case Created:
		return "created"
	case Disposed:
		return "disposed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Options configures a new Session.
type Options struct {
	Title         string
	Width, Height int

	// Unmanaged hands event pumping to the caller, who must call
	// AwaitEvents or AwaitEventsTimeout.
	Unmanaged bool

	// TickInterval is the managed render period. Zero means
	// DefaultTickInterval.
	TickInterval time.Duration

	Logger *zerolog.Logger
}

// Session wraps one native window handle.
//
// Every driver call is made under the session mutex. Trampolines invoked by
// the driver during those calls only queue events; handlers run after the
// mutex is released, so a handler may call any Session method, Close
// included.
type Session struct {
	drv      surface.Driver
	log      zerolog.Logger
	managed  bool
	interval time.Duration
	width    int
	height   int

	mu             sync.Mutex
	state          State
	handle         surface.Handle
	title          string
	format         pixel.Format
	stop           chan struct{}
	done           chan struct{}
	closeTramp     *trampoline
	slots          map[surface.Kind]*trampoline
	onClose        func()
	onCloseRequest func()

	pendingClose   atomic.Bool
	closeRequested atomic.Bool
	disposed       atomic.Bool

	qmu        sync.Mutex
	queue      []func()
	delivering atomic.Bool
}

// NewSession returns an uncreated session bound to drv.
func NewSession(drv surface.Driver, opts Options) *Session {
	interval := opts.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	log := opts.Logger
	if log == nil {
		log = logger.WithComponent("window")
	}

	return &Session{
		drv:      drv,
		log:      log.With().Str("title", opts.Title).Logger(),
		managed:  !opts.Unmanaged,
		interval: interval,
		width:    opts.Width,
		height:   opts.Height,
		title:    opts.Title,
		format:   pixel.RGBA,
		done:     make(chan struct{}),
		slots:    make(map[surface.Kind]*trampoline),
	}
}

// Create allocates the native window. Managed sessions start rendering on
// every tick; unmanaged sessions tell the driver the caller pumps events.
func (s *Session) Create() error {
	s.mu.Lock()
	switch s.state {
	case Created:
		s.mu.Unlock()
		return ErrAlreadyCreated
	case Disposed:
		s.mu.Unlock()
		return ErrDisposed
	}

	s.closeTramp = newTrampoline(surface.KindClose, s.nativeClose)
	h, err := s.drv.Create(s.title, s.width, s.height, s.width, s.height, s.closeTramp.invoke)
	if err != nil {
		s.closeTramp.dispose()
		s.closeTramp = nil
		s.mu.Unlock()
		s.log.Warn().Err(err).Str("backend", s.drv.Name()).Msg("Failed to create window")
		return fmt.Errorf("window: create %q: %w", s.title, err)
	}
	s.handle = h
	s.state = Created

	if s.managed {
		s.stop = make(chan struct{})
		go s.run(s.stop)
	} else {
		err = s.native("set managed", s.drv.SetManaged(h, false))
	}
	s.mu.Unlock()

	s.log.Debug().
		Uint64("handle", uint64(h)).
		Bool("managed", s.managed).
		Int("width", s.width).
		Int("height", s.height).
		Msg("Window created")

	s.deliver()
	return err
}

// UpdateBuffer blits buf, a width x height image in format, into the window
// and renders it. An empty format means rgba. buf is not retained.
func (s *Session) UpdateBuffer(buf []byte, width, height int, format string) error {
	s.mu.Lock()
	if err := s.requireCreated(); err != nil {
		s.mu.Unlock()
		return err
	}

	f, err := pixel.ParseFormat(format)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	need := f.Len(width, height)
	if need == 0 || len(buf) < need {
		s.mu.Unlock()
		return fmt.Errorf("%w: %dx%d %s needs %d bytes, got %d", ErrBufferSize, width, height, f, need, len(buf))
	}

	if f != s.format {
		if err := s.native("set format", s.drv.SetFormat(s.handle, f.String())); err != nil {
			s.mu.Unlock()
			return err
		}
		s.format = f
	}

	err = s.native("blit", s.drv.Blit(s.handle, buf, width, height))
	if err == nil {
		err = s.native("render", s.drv.Render(s.handle))
	}
	s.mu.Unlock()

	s.deliver()
	return err
}

// UpdateImage is UpdateBuffer for an image.Image.
func (s *Session) UpdateImage(img image.Image) error {
	buf, w, h := pixel.FromImage(img, pixel.RGBA)
	return s.UpdateBuffer(buf, w, h, pixel.RGBA.String())
}

// ForceRender presents the window immediately.
func (s *Session) ForceRender() error {
	return s.call("render", func(h surface.Handle) surface.Status {
		return s.drv.Render(h)
	})
}

// UpdateTitle sets the title. Before Create the title is kept and used
// when the window is created.
func (s *Session) UpdateTitle(title string) error {
	s.mu.Lock()
	s.title = title
	if s.state != Created {
		s.mu.Unlock()
		return nil
	}
	err := s.native("set title", s.drv.SetTitle(s.handle, title))
	s.mu.Unlock()
	return err
}

func (s *Session) SetClearColor(r, g, b uint8) error {
	return s.call("set clear color", func(h surface.Handle) surface.Status {
		return s.drv.SetClearColor(h, r, g, b)
	})
}

// Clipboard returns the system clipboard text.
func (s *Session) Clipboard() (string, error) {
	var text string
	err := s.call("get clipboard", func(h surface.Handle) surface.Status {
		var st surface.Status
		text, st = s.drv.GetClipboard(h)
		return st
	})
	return text, err
}

func (s *Session) SetClipboard(text string) error {
	return s.call("set clipboard", func(h surface.Handle) surface.Status {
		return s.drv.SetClipboard(h, text)
	})
}

// AwaitEvents blocks until the driver reports at least one event, then
// delivers what arrived. Only valid on unmanaged sessions. Other session
// calls block while it waits.
func (s *Session) AwaitEvents() error {
	return s.await("await events", func(h surface.Handle) surface.Status {
		return s.drv.AwaitEvents(h)
	})
}

// AwaitEventsTimeout is AwaitEvents bounded by d.
func (s *Session) AwaitEventsTimeout(d time.Duration) error {
	return s.await("await events timeout", func(h surface.Handle) surface.Status {
		return s.drv.AwaitEventsTimeout(h, d.Seconds())
	})
}

func (s *Session) await(op string, fn func(surface.Handle) surface.Status) error {
	s.mu.Lock()
	if err := s.requireCreated(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.managed {
		s.mu.Unlock()
		return ErrManaged
	}
	err := s.native(op, fn(s.handle))
	s.mu.Unlock()

	s.deliver()
	return err
}

// call runs one driver operation that requires a live handle, then delivers
// whatever events it produced.
func (s *Session) call(op string, fn func(surface.Handle) surface.Status) error {
	s.mu.Lock()
	if err := s.requireCreated(); err != nil {
		s.mu.Unlock()
		return err
	}
	err := s.native(op, fn(s.handle))
	s.mu.Unlock()

	s.deliver()
	return err
}

// Close destroys the native window. It stops the render tick, destroys the
// handle, disposes every trampoline with the close trampoline last, then
// calls the close handler. Calling Close on a session that is not created
// does nothing.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state != Created {
		s.mu.Unlock()
		return nil
	}

	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}

	err := s.native("destroy", s.drv.Destroy(s.handle))

	for _, kind := range surface.Kinds {
		if t, ok := s.slots[kind]; ok {
			t.dispose()
		}
	}
	s.closeTramp.dispose()

	h := s.handle
	s.handle = 0
	s.state = Disposed
	s.disposed.Store(true)
	close(s.done)
	onClose := s.onClose
	s.mu.Unlock()

	s.dropQueued()
	s.log.Debug().Uint64("handle", uint64(h)).Msg("Window closed")

	if onClose != nil {
		onClose()
	}
	return err
}

// SetCloseCallback registers fn to run once after the session is disposed.
// It may be called before Create.
func (s *Session) SetCloseCallback(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Disposed {
		return ErrDisposed
	}
	if s.onClose != nil {
		return ErrAlreadyRegistered
	}
	s.onClose = fn
	return nil
}

// SetCloseRequestCallback registers fn to run when the OS asks an unmanaged
// window to close. The session stays created; fn decides whether to call
// Close. It may be called before Create.
func (s *Session) SetCloseRequestCallback(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Disposed {
		return ErrDisposed
	}
	if s.onCloseRequest != nil {
		return ErrAlreadyRegistered
	}
	s.onCloseRequest = fn
	return nil
}

func (s *Session) SetKeyCallback(fn func(KeyEvent)) error {
	return s.bind(surface.KindKey, func(ev Event) { fn(ev.(KeyEvent)) })
}

func (s *Session) SetTextCallback(fn func(TextEvent)) error {
	return s.bind(surface.KindText, func(ev Event) { fn(ev.(TextEvent)) })
}

func (s *Session) SetSizeCallback(fn func(ResizeEvent)) error {
	return s.bind(surface.KindFramebufferSize, func(ev Event) { fn(ev.(ResizeEvent)) })
}

func (s *Session) SetMousePositionCallback(fn func(MousePositionEvent)) error {
	return s.bind(surface.KindMousePosition, func(ev Event) { fn(ev.(MousePositionEvent)) })
}

func (s *Session) SetMouseButtonCallback(fn func(MouseButtonEvent)) error {
	return s.bind(surface.KindMouseButton, func(ev Event) { fn(ev.(MouseButtonEvent)) })
}

func (s *Session) SetFocusCallback(fn func(FocusEvent)) error {
	return s.bind(surface.KindWindowFocus, func(ev Event) { fn(ev.(FocusEvent)) })
}

// bind creates the trampoline for kind and registers it with the driver.
// The first registration of a kind wins.
func (s *Session) bind(kind surface.Kind, handler func(Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireCreated(); err != nil {
		return err
	}
	if _, ok := s.slots[kind]; ok {
		return ErrAlreadyRegistered
	}

	t := newTrampoline(kind, func(inv surface.Invocation) {
		ev := Decode(kind, inv)
		s.enqueue(func() { handler(ev) })
	})
	if err := s.native("register "+kind.String(), s.drv.RegisterCallback(s.handle, kind, t.invoke)); err != nil {
		t.dispose()
		return err
	}
	s.slots[kind] = t
	return nil
}

// nativeClose runs inside a driver call, with s.mu held by the caller.
func (s *Session) nativeClose(surface.Invocation) {
	if s.managed {
		s.pendingClose.Store(true)
		return
	}
	s.closeRequested.Store(true)
	if fn := s.onCloseRequest; fn != nil {
		s.enqueue(fn)
	}
}

func (s *Session) run(stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.tick() {
				return
			}
		}
	}
}

// tick closes the session if the OS asked for it, otherwise renders. It
// reports whether the loop should keep going.
func (s *Session) tick() bool {
	if s.pendingClose.Load() {
		if err := s.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Close after close request failed")
		}
		return false
	}

	s.mu.Lock()
	if s.state != Created {
		s.mu.Unlock()
		return false
	}
	st := s.drv.Render(s.handle)
	s.mu.Unlock()

	if st != surface.StatusOK {
		s.log.Warn().Str("status", st.String()).Msg("Render tick failed")
	}
	s.deliver()
	return true
}

func (s *Session) requireCreated() error {
	switch s.state {
	case Uncreated:
		return ErrNotCreated
	case Disposed:
		return ErrDisposed
	}
	return nil
}

func (s *Session) native(op string, st surface.Status) error {
	if st == surface.StatusOK {
		return nil
	}
	s.log.Warn().Str("op", op).Str("status", st.String()).Msg("Native call failed")
	return &NativeError{Op: op, Status: st}
}

func (s *Session) enqueue(fn func()) {
	if s.disposed.Load() {
		return
	}
	s.qmu.Lock()
	s.queue = append(s.queue, fn)
	s.qmu.Unlock()
}

func (s *Session) dequeue() (func(), bool) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if len(s.queue) == 0 || s.disposed.Load() {
		return nil, false
	}
	fn := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return fn, true
}

func (s *Session) queued() bool {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return len(s.queue) > 0 && !s.disposed.Load()
}

func (s *Session) dropQueued() {
	s.qmu.Lock()
	s.queue = nil
	s.qmu.Unlock()
}

// deliver runs queued handlers in order. Only one goroutine delivers at a
// time; events queued while another goroutine delivers are picked up by it.
func (s *Session) deliver() {
	for s.queued() {
		if !s.delivering.CompareAndSwap(false, true) {
			return
		}
		for {
			fn, ok := s.dequeue()
			if !ok {
				break
			}
			fn()
		}
		s.delivering.Store(false)
	}
}

// State returns the creation state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Format returns the pixel format of the last buffer update.
func (s *Session) Format() pixel.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Session) Managed() bool { return s.managed }

// CloseRequested reports whether the OS asked an unmanaged window to close.
func (s *Session) CloseRequested() bool { return s.closeRequested.Load() }

// Done is closed when the session is disposed.
func (s *Session) Done() <-chan struct{} { return s.done }
