package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dkeye/Dash/internal/adapters/viewer"
	"github.com/dkeye/Dash/internal/app/hud"
	"github.com/dkeye/Dash/internal/app/orch"
	"github.com/dkeye/Dash/internal/app/telemetry"
	"github.com/dkeye/Dash/internal/app/video"
	"github.com/dkeye/Dash/internal/config"
	"github.com/dkeye/Dash/internal/core"
	"github.com/dkeye/Dash/internal/loop"
	"github.com/dkeye/Dash/internal/metrics"
)

type nopMedia struct{}

func (nopMedia) Offer(context.Context, time.Duration) (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{}, context.Canceled
}
func (nopMedia) ApplyAnswer(webrtc.SessionDescription) error  { return nil }
func (nopMedia) OnTrack(func(core.RemoteTrack))               {}
func (nopMedia) OnPeerState(func(webrtc.PeerConnectionState)) {}
func (nopMedia) OnICEState(func(webrtc.ICEConnectionState))   {}
func (nopMedia) Close() error                                 { return nil }

type countingDialer struct{ n int }

func (d *countingDialer) NewMedia() (core.MediaConnection, error) {
	d.n++
	return nopMedia{}, nil
}

type visible struct{ on bool }

func (v *visible) Show(core.RemoteTrack) error { v.on = true; return nil }
func (v *visible) Hide()                       {}
func (v *visible) Visible() bool               { return v.on }

type env struct {
	loop   *loop.Loop
	dialer *countingDialer
	surf   *visible
	hub    *viewer.Hub
	orch   *orch.Orchestrator
	router *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	static := t.TempDir()
	if err := os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>dash</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Mode: "test", StaticPath: static, Secret: "test-secret"}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	l := loop.NewManual(loop.NewManualClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	e := &env{loop: l, dialer: &countingDialer{}, surf: &visible{}}
	e.hub = viewer.NewHub(ctx, viewer.DefaultOptions(), nil, m)

	dock := hud.NewController(l, e.surf, e.hub, m, 0)
	tl := telemetry.New(l, telemetry.Deps{Sink: e.hub, Dock: dock, Status: e.hub, Metrics: m}, 0)
	vm := video.New(l, video.Deps{
		Dialer:    e.dialer,
		Surface:   e.surf,
		Telemetry: tl,
		Dock:      dock,
		Status:    e.hub,
		Metrics:   m,
	}, video.DefaultOptions())
	e.orch = &orch.Orchestrator{Video: vm, Telemetry: tl, Dock: dock, Surface: e.surf}
	e.hub.Bind(e.orch)
	e.router = SetupRouter(cfg, e.orch, e.hub, reg)
	return e
}

func (e *env) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) doWithCookie(method, path, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Cookie", strings.SplitN(cookie, ";", 2)[0])
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestIndexAndSessionCookie(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "dash") {
		t.Fatalf("GET / = %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Set-Cookie"), sessionName) {
		t.Fatalf("no session cookie: %v", w.Header())
	}
}

func TestStatus(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["video"] != "idle" || got["telemetry"] != "disconnected" || got["dock"] != "card" || got["videoVisible"] != false {
		t.Fatalf("status = %v", got)
	}
}

func TestReconnect(t *testing.T) {
	e := newEnv(t)
	if w := e.do(http.MethodPost, "/api/reconnect", ""); w.Code != http.StatusAccepted {
		t.Fatalf("reconnect = %d", w.Code)
	}
	e.loop.Flush()
	if e.dialer.n != 1 {
		t.Fatalf("media dials = %d, want 1", e.dialer.n)
	}
}

func TestReconnectIsRateLimitedPerViewer(t *testing.T) {
	e := newEnv(t)
	limit := viewer.DefaultOptions().ReconnectLimit

	first := e.do(http.MethodPost, "/api/reconnect", "")
	if first.Code != http.StatusAccepted {
		t.Fatalf("reconnect = %d", first.Code)
	}
	cookie := first.Header().Get("Set-Cookie")
	if cookie == "" {
		t.Fatal("no session cookie")
	}

	for i := 1; i < limit; i++ {
		if w := e.doWithCookie(http.MethodPost, "/api/reconnect", cookie); w.Code != http.StatusAccepted {
			t.Fatalf("reconnect %d = %d", i+1, w.Code)
		}
	}
	if w := e.doWithCookie(http.MethodPost, "/api/reconnect", cookie); w.Code != http.StatusTooManyRequests {
		t.Fatalf("reconnect over limit = %d, want 429", w.Code)
	}

	// another browser has its own budget
	if w := e.do(http.MethodPost, "/api/reconnect", ""); w.Code != http.StatusAccepted {
		t.Fatalf("other viewer = %d", w.Code)
	}
}

func TestViewport(t *testing.T) {
	e := newEnv(t)
	for _, body := range []string{`{`, `{"width":0,"height":10}`} {
		if w := e.do(http.MethodPost, "/api/viewport", body); w.Code != http.StatusBadRequest {
			t.Fatalf("viewport %s = %d, want 400", body, w.Code)
		}
	}

	e.surf.on = true
	if w := e.do(http.MethodPost, "/api/viewport", `{"width":1920,"height":1080,"fullscreen":true}`); w.Code != http.StatusNoContent {
		t.Fatalf("viewport = %d", w.Code)
	}
	e.loop.Flush()
	if got := e.orch.Snapshot().Dock.String(); got != "bottom_left" {
		t.Fatalf("dock = %s", got)
	}
}

func TestMetrics(t *testing.T) {
	e := newEnv(t)
	e.do(http.MethodPost, "/api/reconnect", "")
	e.loop.Flush()

	w := e.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "dash_video_attempts_total 1") {
		t.Fatalf("attempt counter missing:\n%s", w.Body.String())
	}
}

func TestHUDWebSocket(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws/hud", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	deadline := time.Now().Add(5 * time.Second)
	for e.hub.Viewers() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("viewer never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := c.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatal(err)
	}
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f struct {
		Type string `json:"type"`
	}
	if err := c.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	if f.Type != "pong" {
		t.Fatalf("frame = %+v", f)
	}
}
