package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/bryanchriswhite/pixview/internal/surface"
)

// instance is one browser-hosted window.
type instance struct {
	handle surface.Handle

	fb        *surface.Framebuffer
	queue     *surface.Queue
	callbacks *surface.Callbacks
	gone      chan struct{}

	mu      sync.Mutex
	title   string
	width   int
	height  int
	managed bool
	canvas  *image.RGBA
	frame   []byte

	// Connected MJPEG viewers and websocket peers
	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}
	peers     map[*peer]struct{}
}

func (inst *instance) push(kind surface.Kind, inv surface.Invocation) {
	inv.Handle = inst.handle
	inst.queue.Push(surface.Pending{Kind: kind, Inv: inv})
}

// broadcast sends msg as JSON to every websocket peer.
func (inst *instance) broadcast(msg outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	inst.clientsMu.RLock()
	defer inst.clientsMu.RUnlock()
	for p := range inst.peers {
		p.send(data)
	}
}

func (d *Driver) Create(title string, width, height, initWidth, initHeight int, onClose surface.Trampoline) (surface.Handle, error) {
	if d.isClosed() {
		return 0, surface.ErrClosed
	}
	if initWidth <= 0 || initHeight <= 0 {
		initWidth, initHeight = width, height
	}
	if initWidth <= 0 || initHeight <= 0 {
		return 0, fmt.Errorf("invalid window size %dx%d", initWidth, initHeight)
	}

	inst := &instance{
		fb:        surface.NewFramebuffer(),
		queue:     surface.NewQueue(0),
		callbacks: surface.NewCallbacks(onClose),
		gone:      make(chan struct{}),
		title:     title,
		width:     initWidth,
		height:    initHeight,
		managed:   true,
		clients:   make(map[chan []byte]struct{}),
		peers:     make(map[*peer]struct{}),
	}
	inst.handle = d.windows.Add(inst)

	ev := d.log.Info().Uint64("handle", uint64(inst.handle)).Str("title", title)
	if d.addr != "" {
		ev = ev.Str("url", fmt.Sprintf("http://%s/windows/%d", d.addr, inst.handle))
	}
	ev.Msg("Window created")
	return inst.handle, nil
}

func (d *Driver) Destroy(h surface.Handle) surface.Status {
	inst, ok := d.windows.Remove(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	inst.queue.Shutdown()
	inst.callbacks.Clear()
	close(inst.gone)

	inst.clientsMu.Lock()
	for ch := range inst.clients {
		close(ch)
	}
	inst.clients = make(map[chan []byte]struct{})
	for p := range inst.peers {
		p.close()
	}
	inst.peers = make(map[*peer]struct{})
	inst.clientsMu.Unlock()

	d.log.Debug().Uint64("handle", uint64(h)).Msg("Window destroyed")
	return surface.StatusOK
}

// Render composes the frame at the viewer size, encodes it as JPEG and
// sends it to every connected viewer. Managed windows then deliver pending
// browser input.
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
	inst.canvas = inst.fb.Compose(inst.canvas, image.Pt(inst.width, inst.height))
	canvas := inst.canvas
	inst.mu.Unlock()
	if canvas == nil {
		return surface.StatusOK
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, canvas, &jpeg.Options{Quality: d.cfg.JPEGQuality}); err != nil {
		d.log.Warn().Err(err).Msg("Failed to encode JPEG")
		return surface.StatusFailed
	}
	jpegData := buf.Bytes()

	inst.mu.Lock()
	inst.frame = jpegData
	inst.mu.Unlock()

	inst.clientsMu.RLock()
	for ch := range inst.clients {
		select {
		case ch <- jpegData:
		default:
			// Client is slow, skip this frame
		}
	}
	inst.clientsMu.RUnlock()
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
	inst.mu.Lock()
	inst.title = title
	inst.mu.Unlock()
	inst.broadcast(outbound{Type: "title", Title: title})
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

// GetClipboard returns the text last copied by a viewer or by SetClipboard.
func (d *Driver) GetClipboard(h surface.Handle) (string, surface.Status) {
	if _, ok := d.lookup(h); !ok {
		return "", surface.StatusUnknownHandle
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.clip, surface.StatusOK
}

// SetClipboard stores text and pushes it to the viewers of h.
func (d *Driver) SetClipboard(h surface.Handle, text string) surface.Status {
	inst, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}
	d.mu.Lock()
	d.clip = text
	d.mu.Unlock()
	inst.broadcast(outbound{Type: "clipboard", Text: text})
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
