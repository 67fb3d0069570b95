// Package term draws native window surfaces into a terminal with tcell.
// Every cell shows two pixels stacked with an upper half block, so a
// window is as wide as the terminal and twice as tall as it has rows.
//
// A terminal hosts one window at a time.
package term

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/bryanchriswhite/pixview/internal/logger"
	"github.com/bryanchriswhite/pixview/internal/surface"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
)

// Name is the backend name used in the binding table.
const Name = "term"

// ErrBusy is returned by Create while another window owns the terminal.
var ErrBusy = errors.New("term: terminal already hosts a window")

// ScreenFactory returns a fresh, uninitialized screen.
type ScreenFactory func() (tcell.Screen, error)

// Driver hosts windows on the controlling terminal.
type Driver struct {
	newScreen ScreenFactory
	log       *zerolog.Logger

	windows *surface.Registry[*instance]

	mu     sync.Mutex
	active *instance
	clip   string
	closed bool
}

// Register adds the terminal backend to b.
func Register(b *surface.BindingTable) {
	b.Register(Name, func() (surface.Driver, error) {
		return Open(), nil
	})
}

// Open returns a driver on the process terminal. The terminal is not taken
// over until a window is created.
func Open() *Driver {
	return OpenScreen(tcell.NewScreen)
}

// OpenScreen returns a driver whose windows draw into screens made by
// newScreen.
func OpenScreen(newScreen ScreenFactory) *Driver {
	return &Driver{
		newScreen: newScreen,
		log:       logger.WithComponent("term"),
		windows:   surface.NewRegistry[*instance](),
	}
}

func (d *Driver) Name() string { return Name }

func (d *Driver) lookup(h surface.Handle) (*instance, bool) {
	return d.windows.Get(h)
}

// instance is the window currently shown on the terminal.
type instance struct {
	handle surface.Handle
	screen tcell.Screen

	fb        *surface.Framebuffer
	queue     *surface.Queue
	callbacks *surface.Callbacks
	pollDone  chan struct{}

	mu      sync.Mutex
	title   string
	width   int
	height  int
	managed bool
	buttons tcell.ButtonMask
	canvas  *image.RGBA
}

func (inst *instance) push(kind surface.Kind, inv surface.Invocation) {
	inv.Handle = inst.handle
	inst.queue.Push(surface.Pending{Kind: kind, Inv: inv})
}

// pixelSize converts a terminal size in cells to window pixels.
func pixelSize(cols, rows int) (int, int) {
	return cols, rows * 2
}

// Create takes over the terminal. The requested size is ignored; the window
// always covers the whole terminal.
func (d *Driver) Create(title string, width, height, initWidth, initHeight int, onClose surface.Trampoline) (surface.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, surface.ErrClosed
	}
	if d.active != nil {
		return 0, ErrBusy
	}

	screen, err := d.newScreen()
	if err != nil {
		return 0, fmt.Errorf("failed to create terminal screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return 0, fmt.Errorf("failed to initialize terminal: %w", err)
	}
	screen.HideCursor()
	screen.EnableMouse()
	screen.EnableFocus()
	screen.EnablePaste()
	screen.SetStyle(tcell.StyleDefault)
	screen.Clear()

	cols, rows := screen.Size()
	w, h := pixelSize(cols, rows)
	inst := &instance{
		screen:    screen,
		fb:        surface.NewFramebuffer(),
		queue:     surface.NewQueue(0),
		callbacks: surface.NewCallbacks(onClose),
		pollDone:  make(chan struct{}),
		title:     title,
		width:     w,
		height:    h,
		managed:   true,
	}
	inst.handle = d.windows.Add(inst)
	d.active = inst

	go d.poll(inst)

	d.log.Info().
		Uint64("handle", uint64(inst.handle)).
		Str("title", title).
		Int("width", w).
		Int("height", h).
		Msg("Window created")
	return inst.handle, nil
}

// Destroy gives the terminal back.
func (d *Driver) Destroy(h surface.Handle) surface.Status {
	inst, ok := d.windows.Remove(h)
	if !ok {
		return surface.StatusUnknownHandle
	}

	d.mu.Lock()
	if d.active == inst {
		d.active = nil
	}
	d.mu.Unlock()

	inst.queue.Shutdown()
	inst.callbacks.Clear()
	inst.screen.Fini()
	<-inst.pollDone

	d.log.Debug().Uint64("handle", uint64(h)).Msg("Window destroyed")
	return surface.StatusOK
}

// Render draws the composed frame and, for managed windows, delivers
// pending terminal input.
func (d *Driver) Render(h surface.Handle) surface.Status {
	inst, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}

	inst.mu.Lock()
	inst.canvas = inst.fb.Compose(inst.canvas, image.Pt(inst.width, inst.height))
	draw(inst.screen, inst.canvas)
	managed := inst.managed
	inst.mu.Unlock()

	if managed {
		inst.queue.Drain(inst.callbacks)
	}
	return surface.StatusOK
}

// draw paints canvas two rows per cell.
func draw(screen tcell.Screen, canvas *image.RGBA) {
	if canvas == nil {
		return
	}
	b := canvas.Bounds()
	for y := 0; y*2 < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			top := canvas.RGBAAt(x, y*2)
			bottom := top
			if y*2+1 < b.Dy() {
				bottom = canvas.RGBAAt(x, y*2+1)
			}
			style := tcell.StyleDefault.
				Foreground(tcell.NewRGBColor(int32(top.R), int32(top.G), int32(top.B))).
				Background(tcell.NewRGBColor(int32(bottom.R), int32(bottom.G), int32(bottom.B)))
			screen.SetContent(x, y, '▀', nil, style)
		}
	}
	screen.Show()
}

func (d *Driver) Blit(h surface.Handle, buf []byte, width, height int) surface.Status {
	inst, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	return inst.fb.Blit(buf, width, height)
}

func (d *Driver) SetFormat(h surface.Handle, format string) surface.Status {
	inst, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	return inst.fb.SetFormat(format)
}

// SetTitle records the title. Terminals have no reliable title bar.
func (d *Driver) SetTitle(h surface.Handle, title string) surface.Status {
	inst, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	inst.mu.Lock()
	inst.title = title
	inst.mu.Unlock()
	return surface.StatusOK
}

func (d *Driver) SetClearColor(h surface.Handle, r, g, b uint8) surface.Status {
	inst, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	inst.fb.SetClearColor(r, g, b)
	return surface.StatusOK
}

func (d *Driver) SetManaged(h surface.Handle, managed bool) surface.Status {
	inst, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	inst.mu.Lock()
	inst.managed = managed
	inst.mu.Unlock()
	return surface.StatusOK
}

func (d *Driver) AwaitEvents(h surface.Handle) surface.Status {
	inst, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	inst.queue.Wait(inst.callbacks, -1)
	return surface.StatusOK
}

func (d *Driver) AwaitEventsTimeout(h surface.Handle, seconds float64) surface.Status {
	inst, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	inst.queue.Wait(inst.callbacks, surface.SecondsToDuration(seconds))
	return surface.StatusOK
}

// GetClipboard returns text stored by SetClipboard or pasted into the
// terminal.
func (d *Driver) GetClipboard(h surface.Handle) (string, surface.Status) {
	if _, ok := d.lookup(h); !ok {
		return "", surface.StatusUnknownHandle
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clip, surface.StatusOK
}

func (d *Driver) SetClipboard(h surface.Handle, text string) surface.Status {
	if _, ok := d.lookup(h); !ok {
		return surface.StatusUnknownHandle
	}
	d.mu.Lock()
	d.clip = text
	d.mu.Unlock()
	return surface.StatusOK
}

func (d *Driver) RegisterCallback(h surface.Handle, kind surface.Kind, t surface.Trampoline) surface.Status {
	inst, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	inst.callbacks.Set(kind, t)
	return surface.StatusOK
}

// Close restores the terminal if a window is still open.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	active := d.active
	d.mu.Unlock()

	if active != nil {
		d.Destroy(active.handle)
	}
	return nil
}

var _ surface.Driver = (*Driver)(nil)
