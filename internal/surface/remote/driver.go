// Package remote implements native window surfaces that live in a browser.
// Each window is streamed as Motion JPEG over HTTP and receives keyboard,
// mouse and focus input back over a websocket.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bryanchriswhite/pixview/internal/logger"
	"github.com/bryanchriswhite/pixview/internal/surface"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Name is the backend name used in the binding table.
const Name = "remote"

// Config holds the HTTP settings of the remote backend.
type Config struct {
	// Listen is the TCP address to serve on. Empty disables the listener;
	// Handler can still be mounted elsewhere.
	Listen      string
	JPEGQuality int
}

// Driver serves every window it creates from one HTTP server.
type Driver struct {
	cfg      Config
	router   *mux.Router
	upgrader websocket.Upgrader
	log      *zerolog.Logger

	windows *surface.Registry[*instance]

	mu   sync.RWMutex
	clip string

	server   *http.Server
	addr     string
	serveErr chan error

	closeOnce sync.Once
	closed    chan struct{}
}

// Register adds the remote backend to b. cfg is read when the backend is
// first opened.
func Register(b *surface.BindingTable, cfg func() Config) {
	b.Register(Name, func() (surface.Driver, error) {
		d, err := Open(cfg())
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}

// Open creates the driver and starts listening on cfg.Listen.
func Open(cfg Config) (*Driver, error) {
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 90
	}

	d := &Driver{
		cfg:    cfg,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log:     logger.WithComponent("remote"),
		windows: surface.NewRegistry[*instance](),
		closed:  make(chan struct{}),
	}
	d.setupRoutes()

	if cfg.Listen == "" {
		return d, nil
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}
	d.addr = ln.Addr().String()
	d.server = &http.Server{
		Handler:           d.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	d.serveErr = make(chan error, 1)
	go func() {
		err := d.server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Error().Err(err).Msg("HTTP server stopped")
		}
		d.serveErr <- err
	}()

	d.log.Info().Str("addr", d.addr).Msgf("Serving windows on http://%s/", d.addr)
	return d, nil
}

func (d *Driver) Name() string { return Name }

// Handler returns the HTTP handler serving windows and their streams.
func (d *Driver) Handler() http.Handler { return d.router }

// Addr returns the address the server listens on, or "" without a listener.
func (d *Driver) Addr() string { return d.addr }

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

// Close destroys every window and stops the HTTP server.
func (d *Driver) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.closed)

		var handles []surface.Handle
		d.windows.Each(func(h surface.Handle, _ *instance) {
			handles = append(handles, h)
		})
		for _, h := range handles {
			d.Destroy(h)
		}

		if d.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = d.server.Shutdown(ctx)
			<-d.serveErr
		}
		d.log.Info().Msg("Remote backend stopped")
	})
	return err
}

var _ surface.Driver = (*Driver)(nil)
