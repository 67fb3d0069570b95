package window

import (
	"github.com/bryanchriswhite/pixview/internal/input"
	"github.com/bryanchriswhite/pixview/internal/surface"
)

// Event is one structured event delivered to a handler.
type Event interface {
	Kind() surface.Kind
}

// CloseRequested is raised when the OS asks the window to close.
type CloseRequested struct{}

type KeyEvent struct {
	Key      input.Key
	Scancode int
	Action   input.Action
	Mods     input.Mod
}

type TextEvent struct {
	Codepoint rune
}

// ResizeEvent reports the framebuffer size in pixels and the content scale.
type ResizeEvent struct {
	Width, Height  int
	XScale, YScale float64
}

type MousePositionEvent struct {
	X, Y float64
}

type MouseButtonEvent struct {
	Button input.MouseButton
	Action input.Action
	Mods   input.Mod
}

type FocusEvent struct {
	Focused bool
}

func (CloseRequested) Kind() surface.Kind     { return surface.KindClose }
func (KeyEvent) Kind() surface.Kind           { return surface.KindKey }
func (TextEvent) Kind() surface.Kind          { return surface.KindText }
func (ResizeEvent) Kind() surface.Kind        { return surface.KindFramebufferSize }
func (MousePositionEvent) Kind() surface.Kind { return surface.KindMousePosition }
func (MouseButtonEvent) Kind() surface.Kind   { return surface.KindMouseButton }
func (FocusEvent) Kind() surface.Kind         { return surface.KindWindowFocus }

// decoders turns raw invocation tuples into events, one entry per kind.
var decoders = map[surface.Kind]func(surface.Invocation) Event{
	surface.KindClose: func(surface.Invocation) Event {
		return CloseRequested{}
	},
	surface.KindKey: func(inv surface.Invocation) Event {
		return KeyEvent{
			Key:      input.Key(inv.Ints[0]),
			Scancode: int(inv.Ints[1]),
			Action:   input.Action(inv.Ints[2]),
			Mods:     input.Mod(inv.Ints[3]),
		}
	},
	surface.KindText: func(inv surface.Invocation) Event {
		return TextEvent{Codepoint: rune(inv.Ints[0])}
	},
	surface.KindFramebufferSize: func(inv surface.Invocation) Event {
		return ResizeEvent{
			Width:  int(inv.Ints[0]),
			Height: int(inv.Ints[1]),
			XScale: inv.Floats[0],
			YScale: inv.Floats[1],
		}
	},
	surface.KindMousePosition: func(inv surface.Invocation) Event {
		return MousePositionEvent{X: inv.Floats[0], Y: inv.Floats[1]}
	},
	surface.KindMouseButton: func(inv surface.Invocation) Event {
		return MouseButtonEvent{
			Button: input.MouseButton(inv.Ints[0]),
			Action: input.Action(inv.Ints[1]),
			Mods:   input.Mod(inv.Ints[2]),
		}
	},
	surface.KindWindowFocus: func(inv surface.Invocation) Event {
		return FocusEvent{Focused: inv.Ints[0] != 0}
	},
}

// Decode converts a raw invocation for kind into its event. Unknown kinds
// yield nil.
func Decode(kind surface.Kind, inv surface.Invocation) Event {
	dec, ok := decoders[kind]
	if !ok {
		return nil
	}
	return dec(inv)
}
