package x11

import (
	"unicode"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/pixview/internal/input"
)

// keysyms from X11/keysymdef.h
const (
	xkBackSpace = 0xff08
	xkTab       = 0xff09
	xkReturn    = 0xff0d
	xkEscape    = 0xff1b
	xkHome      = 0xff50
	xkLeft      = 0xff51
	xkUp        = 0xff52
	xkRight     = 0xff53
	xkDown      = 0xff54
	xkPageUp    = 0xff55
	xkPageDown  = 0xff56
	xkEnd       = 0xff57
	xkInsert    = 0xff63
	xkKPEnter   = 0xff8d
	xkKPHome    = 0xff95
	xkKPLeft    = 0xff96
	xkKPUp      = 0xff97
	xkKPRight   = 0xff98
	xkKPDown    = 0xff99
	xkKPPrior   = 0xff9a
	xkKPNext    = 0xff9b
	xkKPEnd     = 0xff9c
	xkKPBegin   = 0xff9d
	xkKPInsert  = 0xff9e
	xkKP0       = 0xffb0
	xkKP9       = 0xffb9
	xkF1        = 0xffbe
	xkF12       = 0xffc9
	xkShiftL    = 0xffe1
	xkShiftR    = 0xffe2
	xkControlL  = 0xffe3
	xkControlR  = 0xffe4
	xkAltL      = 0xffe9
	xkAltR      = 0xffea
	xkSuperL    = 0xffeb
	xkSuperR    = 0xffec
	xkDelete    = 0xffff

	// keysyms above this carry a Unicode code point in the low 24 bits
	xkUnicodeOffset = 0x01000000
)

var keysymKeys = map[xproto.Keysym]input.Key{
	xkBackSpace: input.KeyBackspace,
	xkTab:       input.KeyTab,
	xkReturn:    input.KeyEnter,
	xkEscape:    input.KeyEscape,
	xkHome:      input.KeyHome,
	xkLeft:      input.KeyLeft,
	xkUp:        input.KeyUp,
	xkRight:     input.KeyRight,
	xkDown:      input.KeyDown,
	xkPageUp:    input.KeyPageUp,
	xkPageDown:  input.KeyPageDown,
	xkEnd:       input.KeyEnd,
	xkInsert:    input.KeyInsert,
	xkDelete:    input.KeyDelete,
	xkKPEnter:   input.KeyKPEnter,
	xkKPInsert:  input.KeyKP0,
	xkKPEnd:     input.KeyKP0 + 1,
	xkKPDown:    input.KeyKP0 + 2,
	xkKPNext:    input.KeyKP0 + 3,
	xkKPLeft:    input.KeyKP4,
	xkKPBegin:   input.KeyKP0 + 5,
	xkKPRight:   input.KeyKP6,
	xkKPHome:    input.KeyKP0 + 7,
	xkKPUp:      input.KeyKP0 + 8,
	xkKPPrior:   input.KeyKP9,
	xkShiftL:    input.KeyLeftShift,
	xkShiftR:    input.KeyRightShift,
	xkControlL:  input.KeyLeftControl,
	xkControlR:  input.KeyRightControl,
	xkAltL:      input.KeyLeftAlt,
	xkAltR:      input.KeyRightAlt,
	xkSuperL:    input.KeyLeftSuper,
	xkSuperR:    input.KeyRightSuper,
}

// keyForKeysym maps the unshifted keysym of a keycode to a key code.
func keyForKeysym(sym xproto.Keysym) input.Key {
	if k, ok := keysymKeys[sym]; ok {
		return k
	}
	switch {
	case sym >= xkKP0 && sym <= xkKP9:
		return input.KeyKP0 + input.Key(sym-xkKP0)
	case sym >= xkF1 && sym <= xkF12:
		return input.KeyF1 + input.Key(sym-xkF1)
	case sym >= 0x20 && sym <= 0x7e:
		return input.KeyForRune(rune(sym))
	}
	return input.KeyUnknown
}

// runeForKeysym returns the character a keysym types, if any.
func runeForKeysym(sym xproto.Keysym) (rune, bool) {
	var r rune
	switch {
	case sym >= 0x20 && sym <= 0x7e, sym >= 0xa0 && sym <= 0xff:
		r = rune(sym)
	case sym >= xkUnicodeOffset && sym <= xkUnicodeOffset+0x10ffff:
		r = rune(sym - xkUnicodeOffset)
	case sym >= xkKP0 && sym <= xkKP9:
		r = rune('0' + sym - xkKP0)
	default:
		return 0, false
	}
	if !unicode.IsPrint(r) {
		return 0, false
	}
	return r, true
}

// modsForState converts an X modifier state to modifier bits. Mod1 is Alt,
// Mod2 NumLock and Mod4 Super on every common layout.
func modsForState(state uint16) input.Mod {
	var m input.Mod
	if state&xproto.ModMaskShift != 0 {
		m |= input.ModShift
	}
	if state&xproto.ModMaskControl != 0 {
		m |= input.ModControl
	}
	if state&xproto.ModMask1 != 0 {
		m |= input.ModAlt
	}
	if state&xproto.ModMask4 != 0 {
		m |= input.ModSuper
	}
	if state&xproto.ModMaskLock != 0 {
		m |= input.ModCapsLock
	}
	if state&xproto.ModMask2 != 0 {
		m |= input.ModNumLock
	}
	return m
}

// keymap is the server's keycode to keysym table.
type keymap struct {
	min     xproto.Keycode
	perCode int
	syms    []xproto.Keysym
}

// lookup returns the keysym in column col for code, falling back to the
// first column when col is empty.
func (km *keymap) lookup(code xproto.Keycode, col int) xproto.Keysym {
	if km == nil || km.perCode == 0 || code < km.min {
		return 0
	}
	base := int(code-km.min) * km.perCode
	if base+km.perCode > len(km.syms) {
		return 0
	}
	if col < km.perCode {
		if sym := km.syms[base+col]; sym != 0 {
			return sym
		}
	}
	return km.syms[base]
}

// translate returns the key code and, when the key types a character, the
// rune for a key event with the given state.
func (km *keymap) translate(code xproto.Keycode, state uint16) (input.Key, rune, bool) {
	key := keyForKeysym(km.lookup(code, 0))

	col := 0
	if state&xproto.ModMaskShift != 0 {
		col = 1
	}
	if shifted := km.lookup(code, 1); shifted >= xkKP0 && shifted <= xkKP9 && state&xproto.ModMask2 != 0 {
		col ^= 1
	}
	r, ok := runeForKeysym(km.lookup(code, col))
	if ok && col == 0 && state&xproto.ModMaskLock != 0 {
		r = unicode.ToUpper(r)
	}
	return key, r, ok
}
