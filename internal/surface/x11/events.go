package x11

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/pixview/internal/input"
	"github.com/bryanchriswhite/pixview/internal/surface"
)

// readEvents demultiplexes server events to the windows they belong to.
// It exits when the connection is closed.
func (d *Driver) readEvents() {
	defer close(d.readerDone)

	var next xgb.Event
	for {
		ev := next
		next = nil
		if ev == nil {
			e, xerr := d.conn.WaitForEvent()
			if e == nil && xerr == nil {
				return
			}
			if xerr != nil {
				d.protocolError(xerr)
				continue
			}
			ev = e
		}
		next = d.handleEvent(ev)
	}
}

// handleEvent translates one event. It returns an event it read ahead and
// did not consume.
func (d *Driver) handleEvent(ev xgb.Event) xgb.Event {
	switch e := ev.(type) {
	case xproto.KeyPressEvent:
		if inst := d.byXID(e.Event); inst != nil {
			d.keyEvent(inst, e.Detail, e.State, input.Press)
		}

	case xproto.KeyReleaseEvent:
		inst := d.byXID(e.Event)
		if inst == nil {
			return nil
		}
		// Auto-repeat arrives as a release immediately followed by a press
		// with the same timestamp.
		peek, xerr := d.conn.PollForEvent()
		if xerr != nil {
			d.protocolError(xerr)
		}
		if press, ok := peek.(xproto.KeyPressEvent); ok &&
			press.Event == e.Event && press.Detail == e.Detail && press.Time == e.Time {
			d.keyEvent(inst, press.Detail, press.State, input.Repeat)
			return nil
		}
		d.keyEvent(inst, e.Detail, e.State, input.Release)
		return peek

	case xproto.ButtonPressEvent:
		if inst := d.byXID(e.Event); inst != nil {
			d.buttonEvent(inst, e.Detail, e.State, input.Press)
		}

	case xproto.ButtonReleaseEvent:
		if inst := d.byXID(e.Event); inst != nil {
			d.buttonEvent(inst, e.Detail, e.State, input.Release)
		}

	case xproto.MotionNotifyEvent:
		if inst := d.byXID(e.Event); inst != nil {
			inst.push(surface.KindMousePosition, surface.Invocation{
				Floats: [2]float64{float64(e.EventX), float64(e.EventY)},
			})
		}

	case xproto.FocusInEvent:
		if inst := d.byXID(e.Event); inst != nil && !grabMode(e.Mode) {
			inst.push(surface.KindWindowFocus, surface.Invocation{Ints: [4]int32{1}})
		}

	case xproto.FocusOutEvent:
		if inst := d.byXID(e.Event); inst != nil && !grabMode(e.Mode) {
			inst.push(surface.KindWindowFocus, surface.Invocation{})
		}

	case xproto.ConfigureNotifyEvent:
		if inst := d.byXID(e.Window); inst != nil {
			d.configure(inst, int(e.Width), int(e.Height))
		}

	case xproto.ClientMessageEvent:
		inst := d.byXID(e.Window)
		if inst != nil && e.Type == d.atoms.wmProtocols && e.Format == 32 &&
			len(e.Data.Data32) > 0 && xproto.Atom(e.Data.Data32[0]) == d.atoms.wmDelete {
			d.log.Debug().Uint64("handle", uint64(inst.handle)).Msg("Close requested")
			inst.push(surface.KindClose, surface.Invocation{})
		}

	case xproto.SelectionRequestEvent:
		d.serveSelection(e)

	case xproto.SelectionNotifyEvent:
		if inst := d.byXID(e.Requestor); inst != nil {
			select {
			case inst.selections <- e:
			default:
			}
		}

	case xproto.SelectionClearEvent:
		d.log.Debug().Msg("Lost clipboard ownership")
	}
	return nil
}

func grabMode(mode byte) bool {
	return mode == xproto.NotifyModeGrab || mode == xproto.NotifyModeUngrab
}

func (d *Driver) keyEvent(inst *instance, code xproto.Keycode, state uint16, action input.Action) {
	key, r, typed := d.keys.translate(code, state)
	mods := modsForState(state)
	inst.push(surface.KindKey, surface.Invocation{
		Ints: [4]int32{int32(key), int32(code), int32(action), int32(mods)},
	})

	if action == input.Release || !typed {
		return
	}
	if mods.Has(input.ModControl) || mods.Has(input.ModAlt) {
		return
	}
	inst.push(surface.KindText, surface.Invocation{Ints: [4]int32{int32(r)}})
}

// buttonForDetail maps core pointer buttons. 4 to 7 are scroll wheel
// clicks and have no button.
func buttonForDetail(detail xproto.Button) (input.MouseButton, bool) {
	switch detail {
	case 1:
		return input.MouseLeft, true
	case 2:
		return input.MouseMiddle, true
	case 3:
		return input.MouseRight, true
	}
	if detail >= 8 {
		// extra buttons follow the three standard ones
		return input.MouseButton(detail - 5), true
	}
	return 0, false
}

func (d *Driver) buttonEvent(inst *instance, detail xproto.Button, state uint16, action input.Action) {
	button, ok := buttonForDetail(detail)
	if !ok {
		return
	}
	inst.push(surface.KindMouseButton, surface.Invocation{
		Ints: [4]int32{int32(button), int32(action), int32(modsForState(state))},
	})
}

func (d *Driver) configure(inst *instance, width, height int) {
	inst.mu.Lock()
	changed := width != inst.width || height != inst.height
	inst.width, inst.height = width, height
	inst.mu.Unlock()

	if changed {
		inst.push(surface.KindFramebufferSize, surface.Invocation{
			Ints:   [4]int32{int32(width), int32(height)},
			Floats: [2]float64{1, 1},
		})
	}
}

func (d *Driver) protocolError(xerr xgb.Error) {
	d.log.Debug().Str("error", xerr.Error()).Msg("X protocol error")
}
