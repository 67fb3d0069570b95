// Package x11 implements native window surfaces on an X11 display using
// the pure Go X protocol bindings.
package x11

import (
	"fmt"
	"sync"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/pixview/internal/logger"
	"github.com/bryanchriswhite/pixview/internal/surface"
	"github.com/rs/zerolog"
)

// Name is the backend name used in the binding table.
const Name = "x11"

type atoms struct {
	wmProtocols xproto.Atom
	wmDelete    xproto.Atom
	netWMName   xproto.Atom
	utf8String  xproto.Atom
	clipboard   xproto.Atom
	targets     xproto.Atom
	property    xproto.Atom
}

// Driver owns one connection to the X server and every window created
// through it.
type Driver struct {
	conn       *xgb.Conn
	screen     *xproto.ScreenInfo
	format     pixmapFormat
	maxRequest int
	keys       *keymap
	atoms      atoms
	log        *zerolog.Logger

	windows *surface.Registry[*instance]

	mu       sync.RWMutex
	byWindow map[xproto.Window]*instance
	clip     string

	closeOnce  sync.Once
	closed     chan struct{}
	readerDone chan struct{}
}

// Register adds the X11 backend to b.
func Register(b *surface.BindingTable) {
	b.Register(Name, func() (surface.Driver, error) {
		d, err := Open()
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}

// Open connects to the display named by $DISPLAY.
func Open() (*Driver, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	d := &Driver{
		conn:       conn,
		screen:     screen,
		maxRequest: int(setup.MaximumRequestLength) * 4,
		log:        logger.WithComponent("x11"),
		windows:    surface.NewRegistry[*instance](),
		byWindow:   make(map[xproto.Window]*instance),
		closed:     make(chan struct{}),
		readerDone: make(chan struct{}),
	}

	for _, f := range setup.PixmapFormats {
		if f.Depth == screen.RootDepth {
			d.format = pixmapFormat{
				depth:        f.Depth,
				bitsPerPixel: int(f.BitsPerPixel),
				scanlinePad:  int(f.ScanlinePad),
			}
			break
		}
	}
	if d.format.bitsPerPixel == 0 {
		conn.Close()
		return nil, fmt.Errorf("no pixmap format for depth %d", screen.RootDepth)
	}

	if err := d.internAtoms(); err != nil {
		conn.Close()
		return nil, err
	}

	count := int(setup.MaxKeycode) - int(setup.MinKeycode) + 1
	km, err := xproto.GetKeyboardMapping(conn, setup.MinKeycode, byte(count)).Reply()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get keyboard mapping: %w", err)
	}
	d.keys = &keymap{
		min:     setup.MinKeycode,
		perCode: int(km.KeysymsPerKeycode),
		syms:    km.Keysyms,
	}

	go d.readEvents()

	d.log.Info().
		Uint8("depth", d.format.depth).
		Int("bits_per_pixel", d.format.bitsPerPixel).
		Int("max_request_bytes", d.maxRequest).
		Msg("Connected to X server")
	return d, nil
}

func (d *Driver) internAtoms() error {
	names := []struct {
		name string
		dst  *xproto.Atom
	}{
		{"WM_PROTOCOLS", &d.atoms.wmProtocols},
		{"WM_DELETE_WINDOW", &d.atoms.wmDelete},
		{"_NET_WM_NAME", &d.atoms.netWMName},
		{"UTF8_STRING", &d.atoms.utf8String},
		{"CLIPBOARD", &d.atoms.clipboard},
		{"TARGETS", &d.atoms.targets},
		{"PIXVIEW_SELECTION", &d.atoms.property},
	}
	for _, n := range names {
		atom, err := d.getAtom(n.name)
		if err != nil {
			return fmt.Errorf("failed to intern atom %s: %w", n.name, err)
		}
		*n.dst = atom
	}
	return nil
}

// getAtom gets an atom ID by name
func (d *Driver) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(d.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}

func (d *Driver) Name() string { return Name }

func (d *Driver) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

func (d *Driver) lookup(h surface.Handle) (*instance, bool) {
	return d.windows.Get(h)
}

func (d *Driver) byXID(win xproto.Window) *instance {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byWindow[win]
}

// Close destroys every window and disconnects from the server.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		close(d.closed)

		var handles []surface.Handle
		d.windows.Each(func(h surface.Handle, _ *instance) {
			handles = append(handles, h)
		})
		for _, h := range handles {
			d.Destroy(h)
		}

		d.conn.Close()
		select {
		case <-d.readerDone:
		case <-time.After(time.Second):
			d.log.Warn().Msg("Event reader did not stop")
		}
		d.log.Info().Msg("Disconnected from X server")
	})
	return nil
}

var _ surface.Driver = (*Driver)(nil)
