package window

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bryanchriswhite/pixview/internal/input"
	"github.com/bryanchriswhite/pixview/internal/pixel"
	"github.com/bryanchriswhite/pixview/internal/surface"
	"github.com/bryanchriswhite/pixview/internal/surface/surfacetest"
	"github.com/rs/zerolog"
)

func quietLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTestSession(t *testing.T, opts Options) (*Session, *surfacetest.Driver) {
	t.Helper()
	drv := surfacetest.New()
	if opts.Width == 0 {
		opts.Width, opts.Height = 200, 200
	}
	if opts.TickInterval == 0 {
		opts.TickInterval = 5 * time.Millisecond
	}
	opts.Logger = quietLogger()
	return NewSession(drv, opts), drv
}

func handleOf(s *Session) surface.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session not disposed, state %v", s.State())
	}
}

func TestCreateStateTransitions(t *testing.T) {
	s, drv := newTestSession(t, Options{Title: "W", Unmanaged: true})

	if s.State() != Uncreated {
		t.Fatalf("state = %v, want uncreated", s.State())
	}
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(); !errors.Is(err, ErrAlreadyCreated) {
		t.Fatalf("second create: %v", err)
	}
	if drv.Count("create") != 1 {
		t.Fatalf("driver create called %d times", drv.Count("create"))
	}
	if c, _ := drv.Last("set_managed"); c.Arg != "false" {
		t.Fatalf("unmanaged session did not hand over event pumping: %v", drv.Calls())
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Create(); !errors.Is(err, ErrDisposed) {
		t.Fatalf("create after close: %v", err)
	}
}

func TestOperationsRequireCreated(t *testing.T) {
	s, drv := newTestSession(t, Options{Unmanaged: true})
	buf := make([]byte, 4)

	if err := s.UpdateBuffer(buf, 1, 1, "rgba"); !errors.Is(err, ErrNotCreated) {
		t.Fatalf("update before create: %v", err)
	}
	if err := s.ForceRender(); !errors.Is(err, ErrNotCreated) {
		t.Fatalf("render before create: %v", err)
	}
	if err := s.SetKeyCallback(func(KeyEvent) {}); !errors.Is(err, ErrNotCreated) {
		t.Fatalf("register before create: %v", err)
	}
	if _, err := s.Clipboard(); !errors.Is(err, ErrNotCreated) {
		t.Fatalf("clipboard before create: %v", err)
	}
	if err := s.AwaitEventsTimeout(0); !errors.Is(err, ErrNotCreated) {
		t.Fatalf("await before create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close before create: %v", err)
	}
	if n := len(drv.Calls()); n != 0 {
		t.Fatalf("expected no native calls, got %v", drv.Calls())
	}
}

func TestNoNativeCallsAfterClose(t *testing.T) {
	s, drv := newTestSession(t, Options{})
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	h := handleOf(s)
	if err := s.SetKeyCallback(func(KeyEvent) {}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	after := len(drv.Calls())

	time.Sleep(30 * time.Millisecond)
	if err := s.UpdateBuffer(make([]byte, 4), 1, 1, ""); !errors.Is(err, ErrDisposed) {
		t.Fatalf("update after close: %v", err)
	}
	if err := s.ForceRender(); !errors.Is(err, ErrDisposed) {
		t.Fatalf("render after close: %v", err)
	}
	if err := s.SetClearColor(1, 2, 3); !errors.Is(err, ErrDisposed) {
		t.Fatalf("clear color after close: %v", err)
	}
	if err := s.SetClipboard("x"); !errors.Is(err, ErrDisposed) {
		t.Fatalf("clipboard after close: %v", err)
	}
	if err := s.SetTextCallback(func(TextEvent) {}); !errors.Is(err, ErrDisposed) {
		t.Fatalf("register after close: %v", err)
	}
	if err := s.UpdateTitle("later"); err != nil {
		t.Fatalf("title after close: %v", err)
	}

	if got := len(drv.Calls()); got != after {
		t.Fatalf("native calls after close: %v", drv.Calls()[after:])
	}

	for _, kind := range []surface.Kind{surface.KindClose, surface.KindKey} {
		if tr := drv.Trampoline(h, kind); tr == nil || tr(surface.Invocation{Handle: h}) {
			t.Fatalf("%s trampoline still live after close", kind)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s, drv := newTestSession(t, Options{Unmanaged: true})
	var closed int32
	if err := s.SetCloseCallback(func() { atomic.AddInt32(&closed, 1) }); err != nil {
		t.Fatalf("close callback: %v", err)
	}
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.Close(); err != nil {
			t.Fatalf("close #%d: %v", i, err)
		}
	}
	if drv.Count("destroy") != 1 {
		t.Fatalf("destroy called %d times", drv.Count("destroy"))
	}
	if n := atomic.LoadInt32(&closed); n != 1 {
		t.Fatalf("close handler called %d times", n)
	}
	if s.State() != Disposed {
		t.Fatalf("state = %v", s.State())
	}
}

func TestSecondRegistrationIsIgnored(t *testing.T) {
	s, drv := newTestSession(t, Options{Unmanaged: true})
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer s.Close()

	var first, second int
	if err := s.SetKeyCallback(func(KeyEvent) { first++ }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.SetKeyCallback(func(KeyEvent) { second++ }); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second register: %v", err)
	}
	if drv.Count("register") != 1 {
		t.Fatalf("driver saw %d registrations", drv.Count("register"))
	}

	drv.Key(handleOf(s), int(input.KeyA), 38, int(input.Press), 0)
	if err := s.AwaitEventsTimeout(10 * time.Millisecond); err != nil {
		t.Fatalf("await: %v", err)
	}
	if first != 1 || second != 0 {
		t.Fatalf("first = %d, second = %d", first, second)
	}

	if err := s.SetCloseCallback(func() {}); err != nil {
		t.Fatalf("close callback: %v", err)
	}
	if err := s.SetCloseCallback(func() {}); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second close callback: %v", err)
	}
}

func TestInvalidFormatPerformsNoBlit(t *testing.T) {
	s, drv := newTestSession(t, Options{Unmanaged: true})
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer s.Close()

	err := s.UpdateBuffer(make([]byte, 16), 2, 2, "argb")
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
	if s.Format() != pixel.RGBA {
		t.Fatalf("format changed to %v", s.Format())
	}
	if drv.Count("blit") != 0 || drv.Count("set_format") != 0 {
		t.Fatalf("unexpected native calls: %v", drv.Calls())
	}

	if err := s.UpdateBuffer(make([]byte, 3), 2, 2, "rgb"); !errors.Is(err, ErrBufferSize) {
		t.Fatalf("expected ErrBufferSize, got %v", err)
	}
	if drv.Count("blit") != 0 {
		t.Fatalf("short buffer was blitted")
	}
}

func TestManagedBufferScenario(t *testing.T) {
	s, drv := newTestSession(t, Options{Title: "W", Width: 200, Height: 200})
	var closed int32
	if err := s.SetCloseCallback(func() { atomic.AddInt32(&closed, 1) }); err != nil {
		t.Fatalf("close callback: %v", err)
	}
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	h := handleOf(s)

	renders := drv.Count("render")
	if err := s.UpdateBuffer(make([]byte, 128*128*3), 128, 128, "RGB"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if s.Format() != pixel.RGB {
		t.Fatalf("format = %v, want rgb", s.Format())
	}
	if c, ok := drv.Last("set_format"); !ok || c.Arg != "rgb" {
		t.Fatalf("set_format call = %v", c)
	}
	if drv.Count("render") <= renders {
		t.Fatalf("no render after update")
	}
	if drv.Blits(h) != 1 {
		t.Fatalf("blits = %d", drv.Blits(h))
	}
	if size := drv.Framebuffer(h).Size(); size.X != 128 || size.Y != 128 {
		t.Fatalf("framebuffer size %v", size)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := atomic.LoadInt32(&closed); n != 1 {
		t.Fatalf("close handler called %d times", n)
	}
}

func TestManagedCloseRequestDisposes(t *testing.T) {
	s, drv := newTestSession(t, Options{TickInterval: 10 * time.Millisecond})
	var closed int32
	s.SetCloseCallback(func() { atomic.AddInt32(&closed, 1) })
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}

	if !drv.RequestClose(handleOf(s)) {
		t.Fatalf("request close not queued")
	}
	waitDone(t, s)

	renders := drv.Count("render")
	time.Sleep(50 * time.Millisecond)
	if drv.Count("render") != renders {
		t.Fatalf("render ticks continued after close")
	}
	if n := atomic.LoadInt32(&closed); n != 1 {
		t.Fatalf("close handler called %d times", n)
	}
	if drv.Count("destroy") != 1 {
		t.Fatalf("destroy called %d times", drv.Count("destroy"))
	}
}

func TestUnmanagedCloseRequestOnlyNotifies(t *testing.T) {
	s, drv := newTestSession(t, Options{Unmanaged: true})
	var requested, closed int
	s.SetCloseRequestCallback(func() { requested++ })
	s.SetCloseCallback(func() { closed++ })
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}

	drv.RequestClose(handleOf(s))
	if err := s.AwaitEventsTimeout(10 * time.Millisecond); err != nil {
		t.Fatalf("await: %v", err)
	}
	if requested != 1 || closed != 0 {
		t.Fatalf("requested = %d, closed = %d", requested, closed)
	}
	if s.State() != Created || !s.CloseRequested() {
		t.Fatalf("state = %v, close requested = %v", s.State(), s.CloseRequested())
	}
	if drv.Count("destroy") != 0 {
		t.Fatalf("session tore itself down")
	}

	if err := s.ForceRender(); err != nil {
		t.Fatalf("render after close request: %v", err)
	}
	s.Close()
	if closed != 1 {
		t.Fatalf("close handler called %d times", closed)
	}
}

func TestCloseFromHandler(t *testing.T) {
	s, drv := newTestSession(t, Options{Unmanaged: true})
	var closed int
	s.SetCloseCallback(func() { closed++ })
	s.SetCloseRequestCallback(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close from handler: %v", err)
		}
	})
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}

	drv.RequestClose(handleOf(s))
	if err := s.AwaitEventsTimeout(10 * time.Millisecond); err != nil {
		t.Fatalf("await: %v", err)
	}
	if s.State() != Disposed || closed != 1 {
		t.Fatalf("state = %v, closed = %d", s.State(), closed)
	}
}

func TestCloseFromManagedHandler(t *testing.T) {
	s, drv := newTestSession(t, Options{})
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	s.SetKeyCallback(func(ev KeyEvent) {
		if ev.Key == input.KeyEscape {
			s.Close()
		}
	})

	drv.Key(handleOf(s), int(input.KeyEscape), 9, int(input.Press), 0)
	waitDone(t, s)
}

func TestQueuedEventsDroppedOnDispose(t *testing.T) {
	s, drv := newTestSession(t, Options{Unmanaged: true})
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	h := handleOf(s)

	var seen []rune
	s.SetTextCallback(func(ev TextEvent) {
		seen = append(seen, ev.Codepoint)
		s.Close()
	})
	drv.Text(h, 'a')
	drv.Text(h, 'b')
	if err := s.AwaitEventsTimeout(10 * time.Millisecond); err != nil {
		t.Fatalf("await: %v", err)
	}
	if len(seen) != 1 || seen[0] != 'a' {
		t.Fatalf("seen = %q", seen)
	}
}

func TestEventsAreDecoded(t *testing.T) {
	s, drv := newTestSession(t, Options{Unmanaged: true})
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer s.Close()
	h := handleOf(s)

	var (
		size   ResizeEvent
		pos    MousePositionEvent
		button MouseButtonEvent
		focus  FocusEvent
		key    KeyEvent
	)
	s.SetSizeCallback(func(ev ResizeEvent) { size = ev })
	s.SetMousePositionCallback(func(ev MousePositionEvent) { pos = ev })
	s.SetMouseButtonCallback(func(ev MouseButtonEvent) { button = ev })
	s.SetFocusCallback(func(ev FocusEvent) { focus = ev })
	s.SetKeyCallback(func(ev KeyEvent) { key = ev })

	drv.Resize(h, 640, 480, 2, 2)
	drv.MouseMove(h, 10.5, 20.25)
	drv.MouseButton(h, int(input.MouseRight), int(input.Press), int(input.ModShift))
	drv.Focus(h, true)
	drv.Key(h, int(input.KeyRight), 114, int(input.Repeat), int(input.ModControl|input.ModAlt))
	if err := s.AwaitEventsTimeout(10 * time.Millisecond); err != nil {
		t.Fatalf("await: %v", err)
	}

	if size != (ResizeEvent{Width: 640, Height: 480, XScale: 2, YScale: 2}) {
		t.Fatalf("resize = %+v", size)
	}
	if pos != (MousePositionEvent{X: 10.5, Y: 20.25}) {
		t.Fatalf("mouse position = %+v", pos)
	}
	if button.Button != input.MouseRight || button.Action != input.Press || !button.Mods.Has(input.ModShift) {
		t.Fatalf("mouse button = %+v", button)
	}
	if !focus.Focused {
		t.Fatalf("focus not decoded")
	}
	if key.Key != input.KeyRight || key.Scancode != 114 || key.Action != input.Repeat || !key.Mods.Has(input.ModAlt) {
		t.Fatalf("key = %+v", key)
	}
}

func TestAwaitRejectsManagedSession(t *testing.T) {
	s, _ := newTestSession(t, Options{})
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer s.Close()
	if err := s.AwaitEvents(); !errors.Is(err, ErrManaged) {
		t.Fatalf("expected ErrManaged, got %v", err)
	}
}

func TestNativeFailureIsReported(t *testing.T) {
	s, drv := newTestSession(t, Options{Unmanaged: true})
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer s.Close()

	drv.Fail("blit", surface.StatusFailed)
	err := s.UpdateBuffer(make([]byte, 4), 1, 1, "rgba")
	if !errors.Is(err, ErrNativeCall) {
		t.Fatalf("expected ErrNativeCall, got %v", err)
	}
	var nerr *NativeError
	if !errors.As(err, &nerr) || nerr.Status != surface.StatusFailed || nerr.Op != "blit" {
		t.Fatalf("unexpected error %#v", err)
	}
}

func TestOverflowingBufferSizeIsRejected(t *testing.T) {
	s, drv := newTestSession(t, Options{Unmanaged: true})
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer s.Close()

	sizes := [][2]int{
		{math.MaxInt / 2, 3},
		{3, math.MaxInt / 2},
		{1 << 20, 1 << 20},
	}
	for _, sz := range sizes {
		err := s.UpdateBuffer(make([]byte, 4), sz[0], sz[1], "rgba")
		if !errors.Is(err, ErrBufferSize) {
			t.Fatalf("UpdateBuffer(%dx%d) = %v, want ErrBufferSize", sz[0], sz[1], err)
		}
	}
	if n := drv.Count("blit"); n != 0 {
		t.Fatalf("blit called %d times", n)
	}
}

func TestTitleBeforeCreateIsUsed(t *testing.T) {
	s, drv := newTestSession(t, Options{Title: "first", Unmanaged: true})
	if err := s.UpdateTitle("second"); err != nil {
		t.Fatalf("title: %v", err)
	}
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer s.Close()
	h := handleOf(s)

	if drv.Title(h) != "second" {
		t.Fatalf("window title = %q", drv.Title(h))
	}
	if drv.Count("set_title") != 0 {
		t.Fatalf("title pushed before create")
	}
	s.UpdateTitle("third")
	if drv.Title(h) != "third" {
		t.Fatalf("window title = %q", drv.Title(h))
	}
}

func TestClipboardRoundTrip(t *testing.T) {
	s, _ := newTestSession(t, Options{Unmanaged: true})
	if err := s.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer s.Close()

	if err := s.SetClipboard("hello"); err != nil {
		t.Fatalf("set clipboard: %v", err)
	}
	text, err := s.Clipboard()
	if err != nil || text != "hello" {
		t.Fatalf("clipboard = %q, %v", text, err)
	}
}

func TestDecodeKinds(t *testing.T) {
	if _, ok := Decode(surface.KindClose, surface.Invocation{}).(CloseRequested); !ok {
		t.Fatalf("close invocation not decoded as CloseRequested")
	}
	ev := Decode(surface.KindText, surface.Invocation{Ints: [4]int32{'é'}})
	if text, ok := ev.(TextEvent); !ok || text.Codepoint != 'é' {
		t.Fatalf("text decoded as %#v", ev)
	}
	if ev := Decode(surface.Kind(200), surface.Invocation{}); ev != nil {
		t.Fatalf("unknown kind decoded as %#v", ev)
	}
}
