package x11

import (
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/pixview/internal/surface"
)

// selectionTimeout bounds how long GetClipboard waits for the owner.
const selectionTimeout = time.Second

func atomBytes(atoms ...xproto.Atom) []byte {
	buf := make([]byte, 4*len(atoms))
	for i, a := range atoms {
		xgb.Put32(buf[i*4:], uint32(a))
	}
	return buf
}

// SetClipboard takes ownership of CLIPBOARD with text. Requests from other
// clients are answered by the event reader.
func (d *Driver) SetClipboard(h surface.Handle, text string) surface.Status {
	inst, ok := d.lookup(h)
	if !ok {
		return surface.StatusUnknownHandle
	}

	d.mu.Lock()
	d.clip = text
	d.mu.Unlock()

	err := xproto.SetSelectionOwnerChecked(d.conn, inst.win, d.atoms.clipboard, xproto.TimeCurrentTime).Check()
	if err != nil {
		d.log.Warn().Err(err).Msg("Failed to take clipboard ownership")
		return surface.StatusFailed
	}
	return surface.StatusOK
}

// GetClipboard returns the CLIPBOARD text, converting it from the owning
// client when that is not this driver.
func (d *Driver) GetClipboard(h surface.Handle) (string, surface.Status) {
	inst, ok := d.lookup(h)
	if !ok {
		return "", surface.StatusUnknownHandle
	}

	owner, err := xproto.GetSelectionOwner(d.conn, d.atoms.clipboard).Reply()
	if err != nil {
		d.log.Warn().Err(err).Msg("Failed to query clipboard owner")
		return "", surface.StatusFailed
	}
	if owner.Owner == xproto.WindowNone {
		return "", surface.StatusOK
	}
	if d.byXID(owner.Owner) != nil {
		d.mu.RLock()
		defer d.mu.RUnlock()
		return d.clip, surface.StatusOK
	}

	// drop a stale reply from an earlier timed out request
	select {
	case <-inst.selections:
	default:
	}

	xproto.ConvertSelection(d.conn, inst.win, d.atoms.clipboard, d.atoms.utf8String, d.atoms.property, xproto.TimeCurrentTime)

	var notify xproto.SelectionNotifyEvent
	select {
	case notify = <-inst.selections:
	case <-time.After(selectionTimeout):
		d.log.Warn().Msg("Clipboard owner did not respond")
		return "", surface.StatusFailed
	}
	if notify.Property == xproto.AtomNone {
		return "", surface.StatusOK
	}

	reply, err := xproto.GetProperty(d.conn, true, inst.win, notify.Property, xproto.AtomAny, 0, 1<<24).Reply()
	if err != nil {
		d.log.Warn().Err(err).Msg("Failed to read clipboard property")
		return "", surface.StatusFailed
	}
	return string(reply.Value), surface.StatusOK
}

// serveSelection answers another client's request for our clipboard.
func (d *Driver) serveSelection(e xproto.SelectionRequestEvent) {
	notify := xproto.SelectionNotifyEvent{
		Time:      e.Time,
		Requestor: e.Requestor,
		Selection: e.Selection,
		Target:    e.Target,
		Property:  e.Property,
	}
	if notify.Property == xproto.AtomNone {
		notify.Property = e.Target
	}

	d.mu.RLock()
	text := d.clip
	d.mu.RUnlock()

	switch {
	case e.Selection != d.atoms.clipboard:
		notify.Property = xproto.AtomNone
	case e.Target == d.atoms.targets:
		targets := atomBytes(d.atoms.targets, d.atoms.utf8String, xproto.AtomString)
		xproto.ChangeProperty(d.conn, xproto.PropModeReplace, e.Requestor, notify.Property,
			xproto.AtomAtom, 32, uint32(len(targets)/4), targets)
	case e.Target == d.atoms.utf8String || e.Target == xproto.AtomString:
		xproto.ChangeProperty(d.conn, xproto.PropModeReplace, e.Requestor, notify.Property,
			e.Target, 8, uint32(len(text)), []byte(text))
	default:
		notify.Property = xproto.AtomNone
	}

	xproto.SendEvent(d.conn, false, e.Requestor, xproto.EventMaskNoEvent, string(notify.Bytes()))
}
