package x11

import (
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/pixview/internal/surface"
)

const eventMask = xproto.EventMaskExposure |
	xproto.EventMaskStructureNotify |
	xproto.EventMaskKeyPress |
	xproto.EventMaskKeyRelease |
	xproto.EventMaskButtonPress |
	xproto.EventMaskButtonRelease |
	xproto.EventMaskPointerMotion |
	xproto.EventMaskFocusChange

// instance is one X window and its framebuffer.
type instance struct {
	handle surface.Handle
	win    xproto.Window
	gc     xproto.Gcontext

	fb        *surface.Framebuffer
	queue     *surface.Queue
	callbacks *surface.Callbacks

	// selection replies for GetClipboard
	selections chan xproto.SelectionNotifyEvent

	mu      sync.Mutex
	width   int
	height  int
	managed bool
	canvas  *image.RGBA
	data    []byte
}

func (inst *instance) push(kind surface.Kind, inv surface.Invocation) {
	inv.Handle = inst.handle
	inst.queue.Push(surface.Pending{Kind: kind, Inv: inv})
}

func (d *Driver) Create(title string, width, height, initWidth, initHeight int, onClose surface.Trampoline) (surface.Handle, error) {
	if d.isClosed() {
		return 0, surface.ErrClosed
	}
	if initWidth <= 0 || initHeight <= 0 {
		initWidth, initHeight = width, height
	}
	if initWidth <= 0 || initHeight <= 0 || initWidth > 0xffff || initHeight > 0xffff {
		return 0, fmt.Errorf("invalid window size %dx%d", initWidth, initHeight)
	}

	win, err := xproto.NewWindowId(d.conn)
	if err != nil {
		return 0, fmt.Errorf("failed to create window ID: %w", err)
	}

	mask := uint32(xproto.CwBackPixel | xproto.CwEventMask)
	values := []uint32{
		d.screen.BlackPixel,
		eventMask,
	}
	err = xproto.CreateWindowChecked(
		d.conn,
		d.screen.RootDepth,
		win,
		d.screen.Root,
		0, 0,
		uint16(initWidth), uint16(initHeight),
		0,
		xproto.WindowClassInputOutput,
		d.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return 0, fmt.Errorf("failed to create window: %w", err)
	}

	if err := d.setWindowTitle(win, title); err != nil {
		d.log.Warn().Err(err).Msg("Failed to set window title")
	}
	if err := d.setWindowClass(win, "pixview", "Pixview"); err != nil {
		d.log.Warn().Err(err).Msg("Failed to set window class")
	}
	if err := d.setProtocols(win); err != nil {
		d.log.Warn().Err(err).Msg("Failed to set WM_PROTOCOLS")
	}

	gc, err := xproto.NewGcontextId(d.conn)
	if err != nil {
		xproto.DestroyWindow(d.conn, win)
		return 0, fmt.Errorf("failed to create graphics context ID: %w", err)
	}
	if err := xproto.CreateGCChecked(d.conn, gc, xproto.Drawable(win), 0, nil).Check(); err != nil {
		xproto.DestroyWindow(d.conn, win)
		return 0, fmt.Errorf("failed to create GC: %w", err)
	}

	inst := &instance{
		win:        win,
		gc:         gc,
		fb:         surface.NewFramebuffer(),
		queue:      surface.NewQueue(0),
		callbacks:  surface.NewCallbacks(onClose),
		selections: make(chan xproto.SelectionNotifyEvent, 1),
		width:      initWidth,
		height:     initHeight,
		managed:    true,
	}
	inst.handle = d.windows.Add(inst)

	d.mu.Lock()
	d.byWindow[win] = inst
	d.mu.Unlock()

	if err := xproto.MapWindowChecked(d.conn, win).Check(); err != nil {
		d.Destroy(inst.handle)
		return 0, fmt.Errorf("failed to map window: %w", err)
	}
	d.conn.Sync()

	d.log.Debug().
		Uint64("handle", uint64(inst.handle)).
		Uint32("window_id", uint32(win)).
		Int("width", initWidth).
		Int("height", initHeight).
		Msg("Window created")
	return inst.handle, nil
}

func (d *Driver) Destroy(h surface.Handle) surface.Status {
	inst, ok := d.windows.Remove(h)
	if !ok {
		return surface.StatusUnknownHandle
	}

	d.mu.Lock()
	delete(d.byWindow, inst.win)
	d.mu.Unlock()

	inst.queue.Shutdown()
	inst.callbacks.Clear()

	xproto.FreeGC(d.conn, inst.gc)
	xproto.DestroyWindow(d.conn, inst.win)
	d.conn.Sync()

	d.log.Debug().Uint64("handle", uint64(h)).Msg("Window destroyed")
	return surface.StatusOK
}

// Render composes the framebuffer at the window size and sends it to the
// server. Managed windows then deliver pending events.
func (d *Driver) Render(h surface.Handle) surface.Status {
	inst, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}

	st := d.present(inst)

	inst.mu.Lock()
	managed := inst.managed
	inst.mu.Unlock()
	if managed {
		inst.queue.Drain(inst.callbacks)
	}
	return st
}

func (d *Driver) present(inst *instance) surface.Status {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	size := image.Pt(inst.width, inst.height)
	inst.canvas = inst.fb.Compose(inst.canvas, size)
	if inst.canvas == nil {
		return surface.StatusOK
	}

	data, err := d.format.encode(inst.canvas, inst.data)
	if err != nil {
		d.log.Warn().Err(err).Msg("Failed to encode frame")
		return surface.StatusFailed
	}
	inst.data = data

	stride := d.format.stride(size.X)
	for _, band := range strips(size.Y, stride, d.maxRequest) {
		err := xproto.PutImageChecked(
			d.conn,
			xproto.ImageFormatZPixmap,
			xproto.Drawable(inst.win),
			inst.gc,
			uint16(size.X),
			uint16(band[1]-band[0]),
			0, int16(band[0]),
			0,
			d.format.depth,
			data[band[0]*stride:band[1]*stride],
		).Check()
		if err != nil {
			d.log.Warn().Err(err).Uint32("window_id", uint32(inst.win)).Msg("Failed to put image")
			return surface.StatusFailed
		}
	}
	return surface.StatusOK
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

func (d *Driver) SetTitle(h surface.Handle, title string) surface.Status {
	inst, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	if err := d.setWindowTitle(inst.win, title); err != nil {
		d.log.Warn().Err(err).Msg("Failed to set window title")
		return surface.StatusFailed
	}
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

func (d *Driver) RegisterCallback(h surface.Handle, kind surface.Kind, t surface.Trampoline) surface.Status {
	inst, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	inst.callbacks.Set(kind, t)
	return surface.StatusOK
}

// setWindowTitle sets both the EWMH and the legacy title
func (d *Driver) setWindowTitle(win xproto.Window, title string) error {
	err := xproto.ChangePropertyChecked(
		d.conn,
		xproto.PropModeReplace,
		win,
		d.atoms.netWMName,
		d.atoms.utf8String,
		8,
		uint32(len(title)),
		[]byte(title),
	).Check()
	if err != nil {
		return err
	}

	return xproto.ChangePropertyChecked(
		d.conn,
		xproto.PropModeReplace,
		win,
		xproto.AtomWmName,
		xproto.AtomString,
		8,
		uint32(len(title)),
		[]byte(title),
	).Check()
}

// setWindowClass sets the window class
func (d *Driver) setWindowClass(win xproto.Window, instance, class string) error {
	// WM_CLASS format: instance\0class\0
	classStr := instance + "\x00" + class + "\x00"

	return xproto.ChangePropertyChecked(
		d.conn,
		xproto.PropModeReplace,
		win,
		xproto.AtomWmClass,
		xproto.AtomString,
		8,
		uint32(len(classStr)),
		[]byte(classStr),
	).Check()
}

// setProtocols asks the window manager to send WM_DELETE_WINDOW instead of
// killing the client when the user closes the window.
func (d *Driver) setProtocols(win xproto.Window) error {
	return xproto.ChangePropertyChecked(
		d.conn,
		xproto.PropModeReplace,
		win,
		d.atoms.wmProtocols,
		xproto.AtomAtom,
		32,
		1,
		atomBytes(d.atoms.wmDelete),
	).Check()
}
