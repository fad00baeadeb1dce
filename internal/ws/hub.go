package ws

import (
	"encoding/json"
	"image"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"

	"github.com/coreman2200/arcaluminis-layout/internal/app"
	diag "github.com/coreman2200/arcaluminis-layout/internal/diagnostics"
	"github.com/coreman2200/arcaluminis-layout/internal/layout"
	"github.com/coreman2200/arcaluminis-layout/internal/render"
	"github.com/coreman2200/arcaluminis-layout/internal/tests"
)

// MaxPreviewWidth caps the width of frames sent to preview clients.
const MaxPreviewWidth = 128

const writeWait = 200 * time.Millisecond

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Hub serves the live preview, diagnostics and control sockets plus the
// health and layout endpoints.
type Hub struct {
	Reg  *layout.Registry
	Cond *app.Conductor

	log       zerolog.Logger
	startTime time.Time
	frameID   atomic.Uint64

	mu          sync.RWMutex
	clients     map[*client]bool
	diagClients map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(reg *layout.Registry, cond *app.Conductor, log zerolog.Logger) *Hub {
	return &Hub{
		Reg:         reg,
		Cond:        cond,
		log:         log,
		startTime:   time.Now(),
		clients:     map[*client]bool{},
		diagClients: map[*client]bool{},
	}
}

type frameMsg struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	W       int    `json:"w"`
	H       int    `json:"h"`
	RGB     []byte `json:"rgb"`
}

// Attach subscribes the hub to rendered frames and layout changes.
func (h *Hub) Attach() (cancel func()) {
	stopFrames := h.Reg.OnFrameRendered(h.broadcastFrame)
	stopLayouts := h.Reg.OnLayoutChanged(h.broadcastTopology)
	return func() {
		stopFrames()
		stopLayouts()
	}
}

// broadcastTopology tells preview clients the device layout changed.
func (h *Hub) broadcastTopology() {
	b, err := h.topology()
	if err != nil {
		h.log.Debug().Err(err).Msg("encode topology")
		return
	}
	h.fanout(h.clients, b)
}

func (h *Hub) broadcastFrame(c *render.Canvas) {
	id := h.frameID.Add(1)
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n == 0 {
		return
	}

	img := preview(c.Image())
	b, err := json.Marshal(frameMsg{
		T:       time.Now().UnixNano(),
		FrameID: id,
		W:       img.Rect.Dx(),
		H:       img.Rect.Dy(),
		RGB:     render.PackRGB(img),
	})
	if err != nil {
		h.log.Debug().Err(err).Msg("encode frame")
		return
	}
	h.fanout(h.clients, b)
}

// preview downsizes frames wider than MaxPreviewWidth.
func preview(img *image.NRGBA) *image.NRGBA {
	w, hh := img.Rect.Dx(), img.Rect.Dy()
	if w <= MaxPreviewWidth || w == 0 {
		return img
	}
	nh := hh * MaxPreviewWidth / w
	if nh < 1 {
		nh = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, MaxPreviewWidth, nh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Rect, img, img.Rect, xdraw.Src, nil)
	return dst
}

// fanout never blocks the render loop; slow clients lose frames.
func (h *Hub) fanout(set map[*client]bool, b []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range set {
		select {
		case c.send <- b:
		default:
		}
	}
}

// PushDiag broadcasts d to every diagnostics client.
func (h *Hub) PushDiag(d diag.Diagnostic) {
	b, err := json.Marshal(d)
	if err != nil {
		return
	}
	h.fanout(h.diagClients, b)
}

// ReportFrameError is meant for Conductor.OnError.
func (h *Hub) ReportFrameError(err error) {
	for _, d := range diag.FromFrameError(err) {
		h.PushDiag(d)
	}
}

func (h *Hub) register(set map[*client]bool, conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, 4)}
	h.mu.Lock()
	set[c] = true
	h.mu.Unlock()
	return c
}

// serve pumps c.send to the socket and drains reads until the peer leaves.
func (h *Hub) serve(set map[*client]bool, c *client) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	defer func() {
		h.mu.Lock()
		delete(set, c)
		h.mu.Unlock()
		c.conn.Close()
	}()
	for {
		select {
		case <-done:
			return
		case b := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				h.log.Debug().Err(err).Msg("write frame")
				return
			}
		}
	}
}

func (h *Hub) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := h.register(h.clients, conn)
	if err := h.sendTopology(conn); err != nil {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		conn.Close()
		return
	}
	go h.serve(h.clients, c)
}

func (h *Hub) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := h.register(h.diagClients, conn)
	go h.serve(h.diagClients, c)
}

func (h *Hub) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		h.applyControl(msg)
		if err := h.sendTopology(conn); err != nil {
			return
		}
	}
}

func (h *Hub) applyControl(msg map[string]any) {
	if v, ok := msg["brightness"].(float64); ok {
		if err := h.Reg.SetBrightness(v); err != nil {
			h.PushDiag(diag.Diagnostic{
				Severity: diag.Warn, Code: "CONTROL.BRIGHTNESS", Summary: "Brightness rejected",
				Detail: err.Error(), Evidence: map[string]any{"value": v},
			})
		}
	}
	if v, ok := msg["reload"].(bool); ok && v {
		if err := h.reload(); err != nil {
			h.ReportFrameError(err)
		} else {
			h.PushDiag(diag.Diagnostic{Severity: diag.Info, Code: "LAYOUT.RELOADED", Summary: "Layouts reloaded"})
		}
	}
	if h.Cond == nil {
		return
	}
	if v, ok := msg["runTest"].(string); ok {
		if err := h.Cond.RunTest(tests.Kind(v), 0); err != nil {
			h.PushDiag(diag.Diagnostic{
				Severity: diag.Warn, Code: "TEST.UNKNOWN", Summary: "Unknown test name",
				Evidence: map[string]any{"name": v},
			})
		} else {
			h.PushDiag(diag.Diagnostic{Severity: diag.Info, Code: "TEST.RUNNING", Summary: "Running test", Detail: v})
		}
	}
	if v, ok := msg["source"].(string); ok {
		preset, _ := msg["preset"].(string)
		fade, _ := msg["fade"].(float64)
		if err := h.Cond.FadeTo(v, preset, fade); err != nil {
			h.PushDiag(diag.Diagnostic{Severity: diag.Warn, Code: "SOURCE.UNKNOWN", Summary: err.Error()})
		}
	}
}

// reload goes through the conductor when there is one, so it lands between
// frames.
func (h *Hub) reload() error {
	if h.Cond != nil {
		return h.Cond.Reload()
	}
	return h.Reg.Reload()
}

// LedInfo and DeviceInfo are the JSON shape of /layouts.
type LedInfo struct {
	ID   int16       `json:"id"`
	Name string      `json:"name"`
	Rect layout.Rect `json:"rect"`
}

type DeviceInfo struct {
	Type     uint8       `json:"type"`
	Index    uint8       `json:"index"`
	Name     string      `json:"name"`
	Location image.Point `json:"location"`
	Size     image.Point `json:"size"`
	Leds     []LedInfo   `json:"leds"`
}

// Layouts describes every device in index order.
func (h *Hub) Layouts() []DeviceInfo {
	all := h.Reg.AllLayouts()
	out := make([]DeviceInfo, 0, len(all))
	for _, d := range all {
		dj := DeviceInfo{
			Type: d.Key.Type, Index: d.Key.Index, Name: d.Name,
			Location: d.Location, Size: d.Size,
		}
		for _, led := range d.Group.Leds() {
			name, _ := d.Group.Name(led)
			r, _ := d.Group.RegionFor(led)
			dj.Leds = append(dj.Leds, LedInfo{ID: led, Name: name, Rect: r})
		}
		out = append(out, dj)
	}
	return out
}

func (h *Hub) topology() ([]byte, error) {
	b := h.Reg.Bounds()
	top := map[string]any{
		"canvas":     map[string]int{"w": b.Dx(), "h": b.Dy()},
		"brightness": h.Reg.Brightness(),
		"devices":    h.Layouts(),
	}
	if h.Cond != nil {
		top["sources"] = h.Cond.Sources.List()
		top["test"] = h.Cond.Testing()
	}
	return json.Marshal(top)
}

func (h *Hub) sendTopology(conn *websocket.Conn) error {
	data, err := h.topology()
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"frame_id":   h.frameID.Load(),
		"uptime_s":   time.Since(h.startTime).Seconds(),
		"devices":    len(h.Reg.Keys()),
		"brightness": h.Reg.Brightness(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Hub) HandleLayouts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.Layouts())
}

// Routes mounts every handler on mux.
func (h *Hub) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/frames", h.HandleFramesWS)
	mux.HandleFunc("/ws/diag", h.HandleDiagWS)
	mux.HandleFunc("/ws/control", h.HandleControlWS)
	mux.HandleFunc("/healthz", h.HandleHealth)
	mux.HandleFunc("/layouts", h.HandleLayouts)
}
