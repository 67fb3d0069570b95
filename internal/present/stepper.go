package present

import (
	"fmt"
	"sync"

	"github.com/bryanchriswhite/pixview/internal/input"
	"github.com/bryanchriswhite/pixview/internal/surface"
	"github.com/bryanchriswhite/pixview/internal/window"
	"github.com/rs/zerolog"
)

// Frame is one buffer produced by a StepFunc.
type Frame struct {
	Pixels        []byte
	Width, Height int
	Format        string

	// Index, when set, replaces the index the stepper computed. Step
	// functions use it to clamp or wrap.
	Index *int
}

// StepFunc returns the frame for index, or nil to leave the window as is.
type StepFunc func(index int) *Frame

// Stepper shows an indexed sequence of frames. Right or keypad 6 moves to
// the next index, Left or keypad 4 to the previous one, on press or repeat.
type Stepper struct {
	session *window.Session
	step    StepFunc
	log     zerolog.Logger
	closed  chan struct{}

	mu    sync.Mutex
	index int
}

// NewStepper opens a managed width x height window and renders the frame
// for start.
func NewStepper(drv surface.Driver, title string, width, height, start int, step StepFunc, opts ...Option) (*Stepper, error) {
	o := buildOptions(width, height, opts)

	st := &Stepper{
		step:   step,
		log:    o.log.With().Str("title", title).Logger(),
		closed: make(chan struct{}),
		index:  start,
	}
	st.session = window.NewSession(drv, window.Options{
		Title:        title,
		Width:        o.windowWidth,
		Height:       o.windowHeight,
		TickInterval: o.tick,
		Logger:       o.log,
	})

	if err := st.session.SetCloseCallback(func() { close(st.closed) }); err != nil {
		return nil, err
	}
	if err := st.session.Create(); err != nil {
		return nil, fmt.Errorf("failed to open window: %w", err)
	}
	if err := st.session.SetClearColor(o.clear.R, o.clear.G, o.clear.B); err != nil {
		st.log.Warn().Err(err).Msg("Failed to set clear color")
	}
	if err := st.session.SetKeyCallback(st.onKey); err != nil {
		st.session.Close()
		return nil, err
	}
	if err := st.show(start); err != nil {
		st.session.Close()
		return nil, err
	}
	return st, nil
}

func (st *Stepper) onKey(ev window.KeyEvent) {
	if ev.Action != input.Press && ev.Action != input.Repeat {
		return
	}

	var err error
	switch ev.Key {
	case input.KeyRight, input.KeyKP6:
		err = st.Next()
	case input.KeyLeft, input.KeyKP4:
		err = st.Prev()
	default:
		return
	}
	if err != nil {
		st.log.Warn().Err(err).Msg("Failed to step")
	}
}

// Next shows the frame after the current index.
func (st *Stepper) Next() error {
	return st.show(st.Index() + 1)
}

// Prev shows the frame before the current index.
func (st *Stepper) Prev() error {
	return st.show(st.Index() - 1)
}

// show asks the step function for index and displays the result. A nil
// frame, or one the window rejects, keeps the current index.
func (st *Stepper) show(index int) error {
	frame := st.step(index)
	if frame == nil {
		st.log.Debug().Int("index", index).Msg("Step skipped")
		return nil
	}
	if frame.Index != nil {
		index = *frame.Index
	}

	if err := st.session.UpdateBuffer(frame.Pixels, frame.Width, frame.Height, frame.Format); err != nil {
		return err
	}

	st.mu.Lock()
	st.index = index
	st.mu.Unlock()

	st.log.Debug().Int("index", index).Msg("Step")
	return nil
}

// Index returns the index of the frame on screen.
func (st *Stepper) Index() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.index
}

func (st *Stepper) Session() *window.Session { return st.session }

// Done is closed once the window has been closed.
func (st *Stepper) Done() <-chan struct{} { return st.closed }

func (st *Stepper) Close() error { return st.session.Close() }
