package remote

import (
	"github.com/bryanchriswhite/pixview/internal/input"
	"github.com/bryanchriswhite/pixview/internal/surface"
)

// inbound is a message sent by the viewer page over the events socket.
type inbound struct {
	Type    string  `json:"type"`
	Code    string  `json:"code,omitempty"`
	Text    string  `json:"text,omitempty"`
	Action  int     `json:"action,omitempty"`
	Mods    int     `json:"mods,omitempty"`
	Button  int     `json:"button,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Width   int     `json:"width,omitempty"`
	Height  int     `json:"height,omitempty"`
	Scale   float64 `json:"scale,omitempty"`
	Focused bool    `json:"focused,omitempty"`
}

// outbound is a message pushed to the viewer page.
type outbound struct {
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

// windowInfo is one entry of GET /api/windows.
type windowInfo struct {
	ID      uint64 `json:"id"`
	Title   string `json:"title"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Viewers int    `json:"viewers"`
	URL     string `json:"url"`
}

// codeKeys maps KeyboardEvent.code values that are not letters, digits or
// function keys.
var codeKeys = map[string]input.Key{
	"Space":        input.KeySpace,
	"Quote":        input.KeyApostrophe,
	"Comma":        input.KeyComma,
	"Minus":        input.KeyMinus,
	"Period":       input.KeyPeriod,
	"Slash":        input.KeySlash,
	"Semicolon":    input.KeySemicolon,
	"Equal":        input.KeyEqual,
	"BracketLeft":  input.KeyLeftBracket,
	"Backslash":    input.KeyBackslash,
	"BracketRight": input.KeyRightBracket,
	"Backquote":    input.KeyGraveAccent,
	"Escape":       input.KeyEscape,
	"Enter":        input.KeyEnter,
	"Tab":          input.KeyTab,
	"Backspace":    input.KeyBackspace,
	"Insert":       input.KeyInsert,
	"Delete":       input.KeyDelete,
	"ArrowRight":   input.KeyRight,
	"ArrowLeft":    input.KeyLeft,
	"ArrowDown":    input.KeyDown,
	"ArrowUp":      input.KeyUp,
	"PageUp":       input.KeyPageUp,
	"PageDown":     input.KeyPageDown,
	"Home":         input.KeyHome,
	"End":          input.KeyEnd,
	"NumpadEnter":  input.KeyKPEnter,
	"ShiftLeft":    input.KeyLeftShift,
	"ControlLeft":  input.KeyLeftControl,
	"AltLeft":      input.KeyLeftAlt,
	"MetaLeft":     input.KeyLeftSuper,
	"ShiftRight":   input.KeyRightShift,
	"ControlRight": input.KeyRightControl,
	"AltRight":     input.KeyRightAlt,
	"MetaRight":    input.KeyRightSuper,
}

// keyForCode translates a DOM KeyboardEvent.code.
func keyForCode(code string) input.Key {
	if k, ok := codeKeys[code]; ok {
		return k
	}
	switch {
	case len(code) == 4 && code[:3] == "Key" && code[3] >= 'A' && code[3] <= 'Z':
		return input.KeyA + input.Key(code[3]-'A')
	case len(code) == 6 && code[:5] == "Digit" && code[5] >= '0' && code[5] <= '9':
		return input.Key0 + input.Key(code[5]-'0')
	case len(code) == 7 && code[:6] == "Numpad" && code[6] >= '0' && code[6] <= '9':
		return input.KeyKP0 + input.Key(code[6]-'0')
	case len(code) >= 2 && code[0] == 'F':
		n := 0
		for _, c := range code[1:] {
			if c < '0' || c > '9' {
				return input.KeyUnknown
			}
			n = n*10 + int(c-'0')
		}
		if n >= 1 && n <= 12 {
			return input.KeyF1 + input.Key(n-1)
		}
	}
	return input.KeyUnknown
}

// translate turns msg into the events it describes. Clipboard messages are
// handled by the caller.
func translate(msg inbound) []surface.Pending {
	switch msg.Type {
	case "key":
		return []surface.Pending{{Kind: surface.KindKey, Inv: surface.Invocation{
			Ints: [4]int32{int32(keyForCode(msg.Code)), 0, int32(msg.Action), int32(msg.Mods)},
		}}}

	case "text":
		var out []surface.Pending
		for _, r := range msg.Text {
			out = append(out, surface.Pending{Kind: surface.KindText, Inv: surface.Invocation{
				Ints: [4]int32{int32(r)},
			}})
		}
		return out

	case "mouse_move":
		return []surface.Pending{{Kind: surface.KindMousePosition, Inv: surface.Invocation{
			Floats: [2]float64{msg.X, msg.Y},
		}}}

	case "mouse_button":
		return []surface.Pending{{Kind: surface.KindMouseButton, Inv: surface.Invocation{
			Ints: [4]int32{int32(msg.Button), int32(msg.Action), int32(msg.Mods)},
		}}}

	case "focus":
		var focused int32
		if msg.Focused {
			focused = 1
		}
		return []surface.Pending{{Kind: surface.KindWindowFocus, Inv: surface.Invocation{
			Ints: [4]int32{focused},
		}}}

	case "close":
		return []surface.Pending{{Kind: surface.KindClose}}
	}
	return nil
}
