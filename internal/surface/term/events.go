package term

import (
	"strings"

	"github.com/bryanchriswhite/pixview/internal/input"
	"github.com/bryanchriswhite/pixview/internal/surface"
	"github.com/gdamore/tcell/v2"
)

var tcellKeys = map[tcell.Key]input.Key{
	tcell.KeyUp:         input.KeyUp,
	tcell.KeyDown:       input.KeyDown,
	tcell.KeyLeft:       input.KeyLeft,
	tcell.KeyRight:      input.KeyRight,
	tcell.KeyEnter:      input.KeyEnter,
	tcell.KeyTab:        input.KeyTab,
	tcell.KeyBackspace:  input.KeyBackspace,
	tcell.KeyBackspace2: input.KeyBackspace,
	tcell.KeyDelete:     input.KeyDelete,
	tcell.KeyInsert:     input.KeyInsert,
	tcell.KeyHome:       input.KeyHome,
	tcell.KeyEnd:        input.KeyEnd,
	tcell.KeyPgUp:       input.KeyPageUp,
	tcell.KeyPgDn:       input.KeyPageDown,
}

func modsFor(m tcell.ModMask) input.Mod {
	var mods input.Mod
	if m&tcell.ModShift != 0 {
		mods |= input.ModShift
	}
	if m&tcell.ModCtrl != 0 {
		mods |= input.ModControl
	}
	if m&tcell.ModAlt != 0 {
		mods |= input.ModAlt
	}
	if m&tcell.ModMeta != 0 {
		mods |= input.ModSuper
	}
	return mods
}

// keyFor translates a tcell key event. typed reports whether r should also
// be delivered as text.
func keyFor(ev *tcell.EventKey) (key input.Key, mods input.Mod, r rune, typed bool) {
	mods = modsFor(ev.Modifiers())
	k := ev.Key()

	if k == tcell.KeyRune {
		r = ev.Rune()
		typed = !mods.Has(input.ModControl) && !mods.Has(input.ModAlt)
		return input.KeyForRune(r), mods, r, typed
	}
	if key, ok := tcellKeys[k]; ok {
		return key, mods, 0, false
	}
	if k >= tcell.KeyF1 && k <= tcell.KeyF12 {
		return input.KeyF1 + input.Key(k-tcell.KeyF1), mods, 0, false
	}
	if k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ {
		return input.KeyA + input.Key(k-tcell.KeyCtrlA), mods | input.ModControl, 0, false
	}
	return input.KeyUnknown, mods, 0, false
}

// closeKey reports whether ev asks to close the window.
func closeKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		return ev.Rune() == 'c' && ev.Modifiers()&tcell.ModCtrl != 0
	}
	return false
}

var mouseButtons = []struct {
	mask   tcell.ButtonMask
	button input.MouseButton
}{
	{tcell.Button1, input.MouseLeft},
	{tcell.Button2, input.MouseRight},
	{tcell.Button3, input.MouseMiddle},
}

// poll reads terminal events until the screen is finalized.
func (d *Driver) poll(inst *instance) {
	defer close(inst.pollDone)

	var paste strings.Builder
	pasting := false

	for {
		ev := inst.screen.PollEvent()
		if ev == nil {
			return
		}

		switch ev := ev.(type) {
		case *tcell.EventKey:
			if pasting && ev.Key() == tcell.KeyRune {
				paste.WriteRune(ev.Rune())
				continue
			}
			if closeKey(ev) {
				d.log.Debug().Uint64("handle", uint64(inst.handle)).Msg("Close requested")
				inst.push(surface.KindClose, surface.Invocation{})
				continue
			}
			d.keyEvent(inst, ev)

		case *tcell.EventPaste:
			if ev.Start() {
				pasting = true
				paste.Reset()
			} else if ev.End() {
				pasting = false
				d.mu.Lock()
				d.clip = paste.String()
				d.mu.Unlock()
			}

		case *tcell.EventMouse:
			d.mouseEvent(inst, ev)

		case *tcell.EventResize:
			cols, rows := inst.screen.Size()
			w, h := pixelSize(cols, rows)
			inst.mu.Lock()
			changed := w != inst.width || h != inst.height
			inst.width, inst.height = w, h
			inst.mu.Unlock()
			inst.screen.Sync()
			if changed {
				inst.push(surface.KindFramebufferSize, surface.Invocation{
					Ints:   [4]int32{int32(w), int32(h)},
					Floats: [2]float64{1, 1},
				})
			}

		case *tcell.EventFocus:
			var focused int32
			if ev.Focused {
				focused = 1
			}
			inst.push(surface.KindWindowFocus, surface.Invocation{Ints: [4]int32{focused}})
		}
	}
}

// keyEvent reports a press immediately followed by a release; terminals do
// not report key releases.
func (d *Driver) keyEvent(inst *instance, ev *tcell.EventKey) {
	key, mods, r, typed := keyFor(ev)
	for _, action := range []input.Action{input.Press, input.Release} {
		inst.push(surface.KindKey, surface.Invocation{
			Ints: [4]int32{int32(key), int32(ev.Key()), int32(action), int32(mods)},
		})
		if action == input.Press && typed {
			inst.push(surface.KindText, surface.Invocation{Ints: [4]int32{int32(r)}})
		}
	}
}

func (d *Driver) mouseEvent(inst *instance, ev *tcell.EventMouse) {
	x, y := ev.Position()
	inst.push(surface.KindMousePosition, surface.Invocation{
		Floats: [2]float64{float64(x), float64(y * 2)},
	})

	buttons := ev.Buttons()
	inst.mu.Lock()
	prev := inst.buttons
	inst.buttons = buttons
	inst.mu.Unlock()

	mods := modsFor(ev.Modifiers())
	for _, mb := range mouseButtons {
		was, is := prev&mb.mask != 0, buttons&mb.mask != 0
		if was == is {
			continue
		}
		action := input.Release
		if is {
			action = input.Press
		}
		inst.push(surface.KindMouseButton, surface.Invocation{
			Ints: [4]int32{int32(mb.button), int32(action), int32(mods)},
		})
	}
}
