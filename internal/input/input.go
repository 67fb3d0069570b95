// Package input defines the key codes, actions and modifier bits carried by
// keyboard and mouse events. Values follow the GLFW numbering so buffers of
// events recorded on one surface can be replayed on another.
package input

import "fmt"

// Key identifies a physical key independent of keyboard layout.
type Key int32

const (
	KeyUnknown Key = -1

	KeySpace      Key = 32
	KeyApostrophe Key = 39
	KeyComma      Key = 44
	KeyMinus      Key = 45
	KeyPeriod     Key = 46
	KeySlash      Key = 47
	Key0          Key = 48
	Key9          Key = 57
	KeySemicolon  Key = 59
	KeyEqual      Key = 61
	KeyA          Key = 65
	KeyZ          Key = 90

	KeyLeftBracket  Key = 91
	KeyBackslash    Key = 92
	KeyRightBracket Key = 93
	KeyGraveAccent  Key = 96

	KeyEscape    Key = 256
	KeyEnter     Key = 257
	KeyTab       Key = 258
	KeyBackspace Key = 259
	KeyInsert    Key = 260
	KeyDelete    Key = 261
	KeyRight     Key = 262
	KeyLeft      Key = 263
	KeyDown      Key = 264
	KeyUp        Key = 265
	KeyPageUp    Key = 266
	KeyPageDown  Key = 267
	KeyHome      Key = 268
	KeyEnd       Key = 269

	KeyF1  Key = 290
	KeyF12 Key = 301

	KeyKP0     Key = 320
	KeyKP4     Key = 324
	KeyKP6     Key = 326
	KeyKP9     Key = 329
	KeyKPEnter Key = 335

	KeyLeftShift    Key = 340
	KeyLeftControl  Key = 341
	KeyLeftAlt      Key = 342
	KeyLeftSuper    Key = 343
	KeyRightShift   Key = 344
	KeyRightControl Key = 345
	KeyRightAlt     Key = 346
	KeyRightSuper   Key = 347
)

var keyNames = map[Key]string{
	KeySpace:        "space",
	KeyEscape:       "escape",
	KeyEnter:        "enter",
	KeyTab:          "tab",
	KeyBackspace:    "backspace",
	KeyInsert:       "insert",
	KeyDelete:       "delete",
	KeyRight:        "right",
	KeyLeft:         "left",
	KeyDown:         "down",
	KeyUp:           "up",
	KeyPageUp:       "page_up",
	KeyPageDown:     "page_down",
	KeyHome:         "home",
	KeyEnd:          "end",
	KeyKPEnter:      "kp_enter",
	KeyLeftShift:    "left_shift",
	KeyLeftControl:  "left_control",
	KeyLeftAlt:      "left_alt",
	KeyLeftSuper:    "left_super",
	KeyRightShift:   "right_shift",
	KeyRightControl: "right_control",
	KeyRightAlt:     "right_alt",
	KeyRightSuper:   "right_super",
}

func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	switch {
	case k >= KeyA && k <= KeyZ, k >= Key0 && k <= Key9:
		return string(rune(k))
	case k >= KeyF1 && k <= KeyF12:
		return fmt.Sprintf("f%d", k-KeyF1+1)
	case k >= KeyKP0 && k <= KeyKP9:
		return fmt.Sprintf("kp_%d", k-KeyKP0)
	case k == KeyUnknown:
		return "unknown"
	}
	return fmt.Sprintf("key(%d)", int32(k))
}

// KeyForRune returns the key that produces r on a US layout, or KeyUnknown.
func KeyForRune(r rune) Key {
	switch {
	case r >= 'a' && r <= 'z':
		return Key(r - 'a' + 'A')
	case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return Key(r)
	}
	switch r {
	case ' ':
		return KeySpace
	case '\'':
		return KeyApostrophe
	case ',':
		return KeyComma
	case '-':
		return KeyMinus
	case '.':
		return KeyPeriod
	case '/':
		return KeySlash
	case ';':
		return KeySemicolon
	case '=':
		return KeyEqual
	}
	return KeyUnknown
}

// Action is the transition reported for a key or mouse button.
type Action int32

const (
	Release Action = 0
	Press   Action = 1
	Repeat  Action = 2
)

func (a Action) String() string {
	switch a {
	case Release:
		return "release"
	case Press:
		return "press"
	case Repeat:
		return "repeat"
	}
	return fmt.Sprintf("action(%d)", int32(a))
}

// Mod is a bit set of held modifier keys.
type Mod int32

const (
	ModShift    Mod = 0x0001
	ModControl  Mod = 0x0002
	ModAlt      Mod = 0x0004
	ModSuper    Mod = 0x0008
	ModCapsLock Mod = 0x0010
	ModNumLock  Mod = 0x0020
)

// Has reports whether every bit of m2 is set in m.
func (m Mod) Has(m2 Mod) bool {
	return m&m2 == m2
}

// MouseButton identifies a mouse button.
type MouseButton int32

const (
	MouseLeft   MouseButton = 0
	MouseRight  MouseButton = 1
	MouseMiddle MouseButton = 2
)
