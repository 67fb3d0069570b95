package term

import (
	"errors"
	"testing"
	"time"

	"github.com/bryanchriswhite/pixview/internal/input"
	"github.com/bryanchriswhite/pixview/internal/surface"
	"github.com/gdamore/tcell/v2"
)

func newSimDriver(t *testing.T) (*Driver, tcell.SimulationScreen) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	d := OpenScreen(func() (tcell.Screen, error) { return sim, nil })
	t.Cleanup(func() { d.Close() })
	return d, sim
}

type recorder struct {
	invs map[surface.Kind][]surface.Invocation
}

func (r *recorder) on(d *Driver, h surface.Handle, kinds ...surface.Kind) {
	if r.invs == nil {
		r.invs = make(map[surface.Kind][]surface.Invocation)
	}
	for _, kind := range kinds {
		kind := kind
		d.RegisterCallback(h, kind, func(inv surface.Invocation) bool {
			r.invs[kind] = append(r.invs[kind], inv)
			return true
		})
	}
}

// await pumps events until count reports at least n or two seconds pass.
func await(t *testing.T, d *Driver, h surface.Handle, count func() int, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for count() < n && time.Now().Before(deadline) {
		d.AwaitEventsTimeout(h, 0.1)
	}
}

func TestCreateCoversTerminal(t *testing.T) {
	d, sim := newSimDriver(t)
	h, err := d.Create("sim", 200, 200, 0, 0, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	cols, rows := sim.Size()
	inst, _ := d.lookup(h)
	if inst.width != cols || inst.height != rows*2 {
		t.Fatalf("window %dx%d on %dx%d terminal", inst.width, inst.height, cols, rows)
	}

	if _, err := d.Create("second", 10, 10, 0, 0, nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Create err = %v, want ErrBusy", err)
	}
}

func TestRenderDrawsHalfBlocks(t *testing.T) {
	d, sim := newSimDriver(t)
	h, err := d.Create("sim", 0, 0, 0, 0, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	d.SetFormat(h, "rgb")
	red := []byte{255, 0, 0, 255, 0, 0, 255, 0, 0, 255, 0, 0}
	if st := d.Blit(h, red, 2, 2); st != surface.StatusOK {
		t.Fatalf("Blit = %v", st)
	}
	if st := d.Render(h); st != surface.StatusOK {
		t.Fatalf("Render = %v", st)
	}

	cols, rows := sim.Size()
	mainc, _, style, _ := sim.GetContent(cols/2, rows/2)
	if mainc != '▀' {
		t.Fatalf("center cell rune = %q", mainc)
	}
	fg, bg, _ := style.Decompose()
	if fg != tcell.NewRGBColor(255, 0, 0) || bg != tcell.NewRGBColor(255, 0, 0) {
		t.Fatalf("center cell colors = %v %v", fg, bg)
	}

	_, _, style, _ = sim.GetContent(0, 0)
	fg, _, _ = style.Decompose()
	c := surface.DefaultClearColor
	if fg != tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)) {
		t.Fatalf("letterbox cell = %v", fg)
	}
}

func TestKeysReachTrampolines(t *testing.T) {
	d, sim := newSimDriver(t)
	h, _ := d.Create("sim", 0, 0, 0, 0, nil)
	var rec recorder
	rec.on(d, h, surface.KindKey, surface.KindText)

	sim.InjectKey(tcell.KeyRight, 0, tcell.ModNone)
	await(t, d, h, func() int { return len(rec.invs[surface.KindKey]) }, 2)

	keys := rec.invs[surface.KindKey]
	if len(keys) != 2 {
		t.Fatalf("got %d key events, want press and release", len(keys))
	}
	if input.Key(keys[0].Ints[0]) != input.KeyRight || input.Action(keys[0].Ints[2]) != input.Press {
		t.Fatalf("first key event %+v", keys[0])
	}
	if input.Action(keys[1].Ints[2]) != input.Release {
		t.Fatalf("second key event %+v", keys[1])
	}

	sim.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	await(t, d, h, func() int { return len(rec.invs[surface.KindText]) }, 1)
	text := rec.invs[surface.KindText]
	if len(text) != 1 || rune(text[0].Ints[0]) != 'q' {
		t.Fatalf("text events %+v", text)
	}
}

func TestEscapeRequestsClose(t *testing.T) {
	d, sim := newSimDriver(t)
	closed := 0
	h, _ := d.Create("sim", 0, 0, 0, 0, func(surface.Invocation) bool {
		closed++
		return true
	})

	sim.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)
	d.AwaitEventsTimeout(h, 2)
	if closed != 1 {
		t.Fatalf("close trampoline ran %d times", closed)
	}
}

func TestMouseButtonsFromMaskChanges(t *testing.T) {
	d, sim := newSimDriver(t)
	h, _ := d.Create("sim", 0, 0, 0, 0, nil)
	var rec recorder
	rec.on(d, h, surface.KindMouseButton, surface.KindMousePosition)

	sim.InjectMouse(3, 4, tcell.Button1, tcell.ModNone)
	await(t, d, h, func() int { return len(rec.invs[surface.KindMouseButton]) }, 1)

	pos := rec.invs[surface.KindMousePosition]
	if len(pos) == 0 || pos[0].Floats != [2]float64{3, 8} {
		t.Fatalf("mouse positions %+v", pos)
	}
	buttons := rec.invs[surface.KindMouseButton]
	if len(buttons) != 1 || input.MouseButton(buttons[0].Ints[0]) != input.MouseLeft ||
		input.Action(buttons[0].Ints[1]) != input.Press {
		t.Fatalf("mouse buttons %+v", buttons)
	}
}

func TestKeyForCtrlLetter(t *testing.T) {
	key, mods, _, typed := keyFor(tcell.NewEventKey(tcell.KeyCtrlA, 0, tcell.ModCtrl))
	if key != input.KeyA || !mods.Has(input.ModControl) || typed {
		t.Fatalf("ctrl+a = %v %v %v", key, mods, typed)
	}
	key, _, _, _ = keyFor(tcell.NewEventKey(tcell.KeyF5, 0, tcell.ModNone))
	if key != input.KeyF1+4 {
		t.Fatalf("f5 = %v", key)
	}
}

func TestDestroyReleasesTerminal(t *testing.T) {
	d, _ := newSimDriver(t)
	h, _ := d.Create("sim", 0, 0, 0, 0, nil)
	if st := d.Destroy(h); st != surface.StatusOK {
		t.Fatalf("Destroy = %v", st)
	}
	if st := d.Render(h); st != surface.StatusUnknownHandle {
		t.Fatalf("Render after destroy = %v", st)
	}
}
