// Package surface is the boundary toward native window surfaces. A Driver
// owns OS windows, their framebuffers and the platform event pump; callers
// address windows through opaque Handles and receive events through
// Trampolines.
package surface

import (
	"errors"
	"fmt"
)

// Handle identifies one native window inside a Driver. Zero is never valid.
type Handle uint64

// Status is the result code of a native call.
type Status uint8

const (
	StatusOK Status = iota
	// StatusUnknownHandle means the handle was never created or is destroyed.
	StatusUnknownHandle
	StatusInvalidArgument
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnknownHandle:
		return "unknown handle"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Kind selects the event a trampoline is registered for.
type Kind uint8

const (
	KindClose Kind = iota
	KindKey
	KindText
	KindFramebufferSize
	KindMousePosition
	KindMouseButton
	KindWindowFocus
)

// Kinds lists every callback kind in registration-table order.
var Kinds = []Kind{KindClose, KindKey, KindText, KindFramebufferSize, KindMousePosition, KindMouseButton, KindWindowFocus}

func (k Kind) String() string {
	switch k {
	case KindClose:
		return "close"
	case KindKey:
		return "key"
	case KindText:
		return "text"
	case KindFramebufferSize:
		return "framebuffer-size"
	case KindMousePosition:
		return "mouse-position"
	case KindMouseButton:
		return "mouse-button"
	case KindWindowFocus:
		return "window-focus"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Invocation is the positional argument tuple a driver hands to a
// trampoline. Field use per kind:
//
//	key:              Ints = key, scancode, action, mods
//	text:             Ints[0] = codepoint
//	framebuffer-size: Ints = width, height; Floats = xscale, yscale
//	mouse-position:   Floats = x, y
//	mouse-button:     Ints = button, action, mods
//	window-focus:     Ints[0] = 1 focused, 0 unfocused
type Invocation struct {
	Handle Handle
	Ints   [4]int32
	Floats [2]float64
}

// Trampoline receives native invocations. The return value acknowledges
// delivery; a disposed trampoline returns false.
type Trampoline func(Invocation) bool

// Driver is a native surface implementation.
//
// Drivers invoke trampolines only from inside Create, Render, AwaitEvents,
// AwaitEventsTimeout and GetClipboard, on the calling goroutine, and only
// for the handle the call was made with. OS events arriving in between are
// buffered per handle.
type Driver interface {
	Name() string

	Create(title string, width, height, initWidth, initHeight int, onClose Trampoline) (Handle, error)
	Destroy(h Handle) Status
	Render(h Handle) Status
	Blit(h Handle, buf []byte, width, height int) Status
	SetFormat(h Handle, format string) Status
	SetTitle(h Handle, title string) Status
	SetClearColor(h Handle, r, g, b uint8) Status
	SetManaged(h Handle, managed bool) Status
	AwaitEvents(h Handle) Status
	AwaitEventsTimeout(h Handle, seconds float64) Status
	GetClipboard(h Handle) (string, Status)
	SetClipboard(h Handle, text string) Status
	RegisterCallback(h Handle, kind Kind, t Trampoline) Status

	// Close releases the driver's connection to the platform.
	Close() error
}

// ErrClosed is returned by drivers used after Close.
var ErrClosed = errors.New("surface: driver closed")
