// Package present builds small conveniences on top of window sessions:
// showing one buffer until the window closes and stepping through an
// indexed sequence of frames with the arrow keys.
package present

import (
	"fmt"
	"image/color"
	"time"

	"github.com/bryanchriswhite/pixview/internal/logger"
	"github.com/bryanchriswhite/pixview/internal/surface"
	"github.com/bryanchriswhite/pixview/internal/window"
	"github.com/rs/zerolog"
)

type options struct {
	windowWidth  int
	windowHeight int
	clear        color.RGBA
	tick         time.Duration
	log          *zerolog.Logger
}

// Option customizes Show and NewStepper.
type Option func(*options)

// WithBounds opens the window at width x height instead of the buffer size.
func WithBounds(width, height int) Option {
	return func(o *options) {
		o.windowWidth = width
		o.windowHeight = height
	}
}

// WithClearColor overrides the background around letterboxed frames.
func WithClearColor(c color.RGBA) Option {
	return func(o *options) {
		o.clear = c
	}
}

// WithTickInterval sets the render period of the managed session.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) {
		o.tick = d
	}
}

func WithLogger(l *zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

func buildOptions(width, height int, opts []Option) options {
	o := options{
		windowWidth:  width,
		windowHeight: height,
		clear:        surface.DefaultClearColor,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.WithComponent("present")
	}
	return o
}

// Show opens a managed window displaying buf and returns a channel that is
// closed once the window has been closed, by the user or through the
// returned session.
func Show(drv surface.Driver, title string, buf []byte, width, height int, format string, opts ...Option) (<-chan struct{}, *window.Session, error) {
	o := buildOptions(width, height, opts)

	s := window.NewSession(drv, window.Options{
		Title:        title,
		Width:        o.windowWidth,
		Height:       o.windowHeight,
		TickInterval: o.tick,
		Logger:       o.log,
	})

	closed := make(chan struct{})
	if err := s.SetCloseCallback(func() { close(closed) }); err != nil {
		return nil, nil, err
	}
	if err := s.Create(); err != nil {
		return nil, nil, fmt.Errorf("failed to open window: %w", err)
	}
	if err := s.SetClearColor(o.clear.R, o.clear.G, o.clear.B); err != nil {
		o.log.Warn().Err(err).Msg("Failed to set clear color")
	}
	if err := s.UpdateBuffer(buf, width, height, format); err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("failed to display buffer: %w", err)
	}

	o.log.Info().
		Str("title", title).
		Str("backend", drv.Name()).
		Int("width", width).
		Int("height", height).
		Msg("Showing buffer")
	return closed, s, nil
}
