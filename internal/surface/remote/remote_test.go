package remote

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bryanchriswhite/pixview/internal/input"
	"github.com/bryanchriswhite/pixview/internal/surface"
	"github.com/gorilla/websocket"
)

func newTestDriver(t *testing.T) (*Driver, *httptest.Server) {
	t.Helper()
	d, err := Open(Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(func() {
		d.Close()
		srv.Close()
	})
	return d, srv
}

func createWindow(t *testing.T, d *Driver, title string) surface.Handle {
	t.Helper()
	h, err := d.Create(title, 64, 48, 0, 0, func(surface.Invocation) bool { return true })
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return h
}

func dialEvents(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readOutbound(t *testing.T, conn *websocket.Conn) outbound {
	t.Helper()
	var msg outbound
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestKeyFromViewerReachesTrampoline(t *testing.T) {
	d, srv := newTestDriver(t)
	h := createWindow(t, d, "keys")

	var got []surface.Invocation
	d.RegisterCallback(h, surface.KindKey, func(inv surface.Invocation) bool {
		got = append(got, inv)
		return true
	})

	conn := dialEvents(t, srv, "/windows/1/events")
	if msg := readOutbound(t, conn); msg.Type != "title" || msg.Title != "keys" {
		t.Fatalf("greeting = %+v", msg)
	}

	if err := conn.WriteJSON(inbound{Type: "key", Code: "ArrowRight", Action: int(input.Press), Mods: int(input.ModShift)}); err != nil {
		t.Fatalf("write: %v", err)
	}

	d.AwaitEventsTimeout(h, 2)
	if len(got) != 1 {
		t.Fatalf("got %d key events, want 1", len(got))
	}
	inv := got[0]
	if inv.Handle != h || input.Key(inv.Ints[0]) != input.KeyRight ||
		input.Action(inv.Ints[2]) != input.Press || input.Mod(inv.Ints[3]) != input.ModShift {
		t.Fatalf("unexpected invocation %+v", inv)
	}
}

func TestResizeFromViewerChangesWindowSize(t *testing.T) {
	d, srv := newTestDriver(t)
	h := createWindow(t, d, "resize")

	var got surface.Invocation
	d.RegisterCallback(h, surface.KindFramebufferSize, func(inv surface.Invocation) bool {
		got = inv
		return true
	})

	conn := dialEvents(t, srv, "/windows/1/events")
	readOutbound(t, conn)
	conn.WriteJSON(inbound{Type: "resize", Width: 320, Height: 200, Scale: 2})

	d.AwaitEventsTimeout(h, 2)
	if got.Ints[0] != 320 || got.Ints[1] != 200 || got.Floats[0] != 2 {
		t.Fatalf("unexpected resize %+v", got)
	}

	list := d.listWindows()
	if len(list) != 1 || list[0].Width != 320 || list[0].Height != 200 {
		t.Fatalf("window size not updated: %+v", list)
	}
}

func TestOversizedViewerResizeIsIgnored(t *testing.T) {
	d, _ := newTestDriver(t)
	h := createWindow(t, d, "huge")
	inst, ok := d.lookup(h)
	if !ok {
		t.Fatalf("window %d not registered", h)
	}
	before := d.listWindows()[0]

	d.receive(inst, inbound{Type: "resize", Width: 1 << 30, Height: 1 << 30})
	d.receive(inst, inbound{Type: "resize", Width: surface.MaxDimension + 1, Height: 10})

	after := d.listWindows()[0]
	if after.Width != before.Width || after.Height != before.Height {
		t.Fatalf("size changed to %dx%d", after.Width, after.Height)
	}
	if st := d.Render(h); st != surface.StatusOK {
		t.Fatalf("render: %v", st)
	}
}

func TestSetTitleAndClipboardReachViewer(t *testing.T) {
	d, srv := newTestDriver(t)
	h := createWindow(t, d, "before")

	conn := dialEvents(t, srv, "/windows/1/events")
	readOutbound(t, conn)

	d.SetTitle(h, "after")
	if msg := readOutbound(t, conn); msg.Type != "title" || msg.Title != "after" {
		t.Fatalf("title message = %+v", msg)
	}

	d.SetClipboard(h, "copied")
	if msg := readOutbound(t, conn); msg.Type != "clipboard" || msg.Text != "copied" {
		t.Fatalf("clipboard message = %+v", msg)
	}
	if text, st := d.GetClipboard(h); st != surface.StatusOK || text != "copied" {
		t.Fatalf("GetClipboard = %q, %v", text, st)
	}
}

func TestListWindows(t *testing.T) {
	d, srv := newTestDriver(t)
	createWindow(t, d, "first")
	second := createWindow(t, d, "second")
	d.Destroy(second)
	createWindow(t, d, "third")

	resp, err := http.Get(srv.URL + "/api/windows")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var list []windowInfo
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 || list[0].ID != 1 || list[1].ID != 3 || list[1].Title != "third" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[0].URL != "/windows/1" || list[0].Width != 64 {
		t.Fatalf("unexpected entry %+v", list[0])
	}
}

func TestStreamSendsLatestFrame(t *testing.T) {
	d, srv := newTestDriver(t)
	h := createWindow(t, d, "stream")

	buf := make([]byte, 4*4*4)
	if st := d.Blit(h, buf, 4, 4); st != surface.StatusOK {
		t.Fatalf("Blit = %v", st)
	}
	if st := d.Render(h); st != surface.StatusOK {
		t.Fatalf("Render = %v", st)
	}

	resp, err := http.Get(srv.URL + "/windows/1/stream")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("content type %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	if err != nil || line != "--frame\r\n" {
		t.Fatalf("boundary = %q, %v", line, err)
	}
	line, _ = r.ReadString('\n')
	if line != "Content-Type: image/jpeg\r\n" {
		t.Fatalf("part header = %q", line)
	}
}

func TestUnknownWindowIsNotFound(t *testing.T) {
	_, srv := newTestDriver(t)

	resp, err := http.Get(srv.URL + "/windows/7")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestDestroyedWindowRejectsCalls(t *testing.T) {
	d, _ := newTestDriver(t)
	h := createWindow(t, d, "gone")
	if st := d.Destroy(h); st != surface.StatusOK {
		t.Fatalf("Destroy = %v", st)
	}
	if st := d.Render(h); st != surface.StatusUnknownHandle {
		t.Fatalf("Render after destroy = %v", st)
	}
	if st := d.Destroy(h); st != surface.StatusUnknownHandle {
		t.Fatalf("second Destroy = %v", st)
	}
}

func TestKeyForCode(t *testing.T) {
	cases := map[string]input.Key{
		"KeyA":          input.KeyA,
		"KeyZ":          input.KeyZ,
		"Digit9":        input.Key9,
		"Numpad4":       input.KeyKP4,
		"Numpad6":       input.KeyKP6,
		"ArrowLeft":     input.KeyLeft,
		"F12":           input.KeyF12,
		"F13":           input.KeyUnknown,
		"Fn":            input.KeyUnknown,
		"MetaRight":     input.KeyRightSuper,
		"IntlBackslash": input.KeyUnknown,
	}
	for code, want := range cases {
		if got := keyForCode(code); got != want {
			t.Fatalf("keyForCode(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestTranslateTextSplitsRunes(t *testing.T) {
	events := translate(inbound{Type: "text", Text: "hé"})
	if len(events) != 2 || events[1].Kind != surface.KindText || rune(events[1].Inv.Ints[0]) != 'é' {
		t.Fatalf("unexpected events %+v", events)
	}
	if translate(inbound{Type: "bogus"}) != nil {
		t.Fatalf("unknown message produced events")
	}
}
