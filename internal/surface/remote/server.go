package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bryanchriswhite/pixview/internal/surface"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 5 * time.Second
	peerBacklog = 16
)

func (d *Driver) setupRoutes() {
	api := d.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/windows", d.handleListWindows).Methods("GET")
	api.HandleFunc("/health", d.handleHealth).Methods("GET")

	d.router.HandleFunc("/windows/{id:[0-9]+}", d.handleViewer).Methods("GET")
	d.router.HandleFunc("/windows/{id:[0-9]+}/stream", d.handleStream).Methods("GET")
	d.router.HandleFunc("/windows/{id:[0-9]+}/events", d.handleEvents)
	d.router.HandleFunc("/", d.handleIndex).Methods("GET")

	d.router.Use(corsMiddleware)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// windowFor resolves the {id} route variable.
func (d *Driver) windowFor(w http.ResponseWriter, r *http.Request) (*instance, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid window id", http.StatusBadRequest)
		return nil, false
	}
	inst, ok := d.lookup(surface.Handle(id))
	if !ok {
		http.Error(w, "window not found", http.StatusNotFound)
		return nil, false
	}
	return inst, true
}

func (d *Driver) listWindows() []windowInfo {
	var list []windowInfo
	d.windows.Each(func(h surface.Handle, inst *instance) {
		inst.mu.Lock()
		info := windowInfo{
			ID:     uint64(h),
			Title:  inst.title,
			Width:  inst.width,
			Height: inst.height,
			URL:    fmt.Sprintf("/windows/%d", h),
		}
		inst.mu.Unlock()
		inst.clientsMu.RLock()
		info.Viewers = len(inst.clients)
		inst.clientsMu.RUnlock()
		list = append(list, info)
	})
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (d *Driver) handleListWindows(w http.ResponseWriter, r *http.Request) {
	list := d.listWindows()
	if list == nil {
		list = []windowInfo{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

func (d *Driver) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"windows": d.windows.Len(),
	})
}

// handleIndex redirects to the only window, or lists them.
func (d *Driver) handleIndex(w http.ResponseWriter, r *http.Request) {
	list := d.listWindows()
	if len(list) == 1 {
		http.Redirect(w, r, list[0].URL, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexPage.Execute(w, list); err != nil {
		d.log.Warn().Err(err).Msg("Failed to render index")
	}
}

func (d *Driver) handleViewer(w http.ResponseWriter, r *http.Request) {
	inst, ok := d.windowFor(w, r)
	if !ok {
		return
	}
	inst.mu.Lock()
	data := struct {
		ID     uint64
		Title  string
		Width  int
		Height int
	}{uint64(inst.handle), inst.title, inst.width, inst.height}
	inst.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := viewerPage.Execute(w, data); err != nil {
		d.log.Warn().Err(err).Msg("Failed to render viewer")
	}
}

// handleStream serves the window as multipart/x-mixed-replace JPEG frames.
func (d *Driver) handleStream(w http.ResponseWriter, r *http.Request) {
	inst, ok := d.windowFor(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	frameChan := make(chan []byte, 2)
	inst.clientsMu.Lock()
	select {
	case <-inst.gone:
		inst.clientsMu.Unlock()
		return
	default:
	}
	inst.clients[frameChan] = struct{}{}
	viewers := len(inst.clients)
	inst.clientsMu.Unlock()

	d.log.Info().Uint64("handle", uint64(inst.handle)).Int("viewers", viewers).Msg("Viewer connected")
	defer func() {
		inst.clientsMu.Lock()
		if _, ok := inst.clients[frameChan]; ok {
			delete(inst.clients, frameChan)
		}
		viewers := len(inst.clients)
		inst.clientsMu.Unlock()
		d.log.Info().Uint64("handle", uint64(inst.handle)).Int("viewers", viewers).Msg("Viewer disconnected")
	}()

	writeFrame := func(jpegData []byte) bool {
		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpegData)); err != nil {
			return false
		}
		if _, err := w.Write(jpegData); err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	inst.mu.Lock()
	last := inst.frame
	inst.mu.Unlock()
	if last != nil && !writeFrame(last) {
		return
	}

	for {
		select {
		case jpegData, ok := <-frameChan:
			if !ok || !writeFrame(jpegData) {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// peer is one websocket connection to a viewer page.
type peer struct {
	conn *websocket.Conn
	out  chan []byte
	once sync.Once
	done chan struct{}
}

func (p *peer) send(data []byte) {
	select {
	case p.out <- data:
	case <-p.done:
	default:
	}
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

func (p *peer) writeLoop() {
	for {
		select {
		case data := <-p.out:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.close()
				return
			}
		case <-p.done:
			return
		}
	}
}

// handleEvents upgrades to a websocket and queues the viewer's input for
// the window.
func (d *Driver) handleEvents(w http.ResponseWriter, r *http.Request) {
	inst, ok := d.windowFor(w, r)
	if !ok {
		return
	}

	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.log.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	p := &peer{conn: conn, out: make(chan []byte, peerBacklog), done: make(chan struct{})}
	inst.clientsMu.Lock()
	select {
	case <-inst.gone:
		inst.clientsMu.Unlock()
		p.close()
		return
	default:
	}
	inst.peers[p] = struct{}{}
	inst.clientsMu.Unlock()

	defer func() {
		inst.clientsMu.Lock()
		delete(inst.peers, p)
		inst.clientsMu.Unlock()
		p.close()
	}()

	go p.writeLoop()

	inst.mu.Lock()
	title := inst.title
	inst.mu.Unlock()
	if data, err := json.Marshal(outbound{Type: "title", Title: title}); err == nil {
		p.send(data)
	}

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				d.log.Debug().Err(err).Msg("Events socket closed")
			}
			return
		}
		d.receive(inst, msg)
	}
}

// receive applies one viewer message to inst.
func (d *Driver) receive(inst *instance, msg inbound) {
	switch msg.Type {
	case "clipboard":
		d.mu.Lock()
		d.clip = msg.Text
		d.mu.Unlock()
		return

	case "resize":
		if msg.Width <= 0 || msg.Height <= 0 || msg.Width > surface.MaxDimension || msg.Height > surface.MaxDimension {
			d.log.Debug().Int("width", msg.Width).Int("height", msg.Height).Msg("Ignoring viewer resize")
			return
		}
		inst.mu.Lock()
		changed := msg.Width != inst.width || msg.Height != inst.height
		inst.width, inst.height = msg.Width, msg.Height
		inst.mu.Unlock()
		if changed {
			scale := msg.Scale
			if scale <= 0 {
				scale = 1
			}
			inst.push(surface.KindFramebufferSize, surface.Invocation{
				Ints:   [4]int32{int32(msg.Width), int32(msg.Height)},
				Floats: [2]float64{scale, scale},
			})
		}
		return
	}

	events := translate(msg)
	if events == nil {
		d.log.Debug().Str("type", msg.Type).Msg("Ignoring unknown viewer message")
		return
	}
	for _, ev := range events {
		inst.push(ev.Kind, ev.Inv)
	}
}
