// Package viewer fans HUD state out to local browser viewers over WebSocket
// and turns their reports into controller calls.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Dash/internal/core"
	"github.com/dkeye/Dash/internal/domain"
	"github.com/dkeye/Dash/internal/loop"
	"github.com/dkeye/Dash/internal/metrics"
)

// Frame types.
const (
	TypeHUD    = "hud"
	TypeDock   = "dock"
	TypeStatus = "status"
	TypePong   = "pong"
	TypeError  = "error"
)

// Controller receives what viewers report.
type Controller interface {
	Viewport(domain.Viewport)
	Visibility(visible bool)
	Reconnect()
}

type Options struct {
	ReadLimit       int64
	PingPeriod      time.Duration
	SendBuffer      int
	ReconnectLimit  int
	ReconnectWindow time.Duration
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:       4096,
		PingPeriod:      30 * time.Second,
		SendBuffer:      32,
		ReconnectLimit:  3,
		ReconnectWindow: 10 * time.Second,
	}
}

type hudFrame struct {
	Type    string            `json:"type"`
	Payload domain.HUDPayload `json:"payload"`
}

type dockFrame struct {
	Type string      `json:"type"`
	Dock domain.Dock `json:"dock"`
}

type statusFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Hub implements core.RenderSink, core.DockSink and core.StatusSink.
type Hub struct {
	ctx      context.Context
	opts     Options
	registry *Registry
	policy   Policy
	limiter  *RateLimiter
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	ctlMu sync.RWMutex
	ctl   Controller

	stateMu sync.Mutex
	dock    []byte
	status  map[string][]byte
}

var (
	_ core.RenderSink = (*Hub)(nil)
	_ core.DockSink   = (*Hub)(nil)
	_ core.StatusSink = (*Hub)(nil)
)

// NewHub creates a hub whose viewer pumps live until ctx ends.
func NewHub(ctx context.Context, opts Options, clock loop.Clock, m *metrics.Metrics) *Hub {
	if m == nil {
		m = metrics.Discard()
	}
	return &Hub{
		ctx:      ctx,
		opts:     opts,
		registry: NewRegistry(),
		policy:   SimplePolicy{},
		limiter:  NewRateLimiter(clock, opts.ReconnectLimit, opts.ReconnectWindow),
		metrics:  m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		status: make(map[string][]byte),
	}
}

// Bind sets the controller viewer reports are forwarded to.
func (h *Hub) Bind(ctl Controller) {
	h.ctlMu.Lock()
	defer h.ctlMu.Unlock()
	h.ctl = ctl
}

func (h *Hub) controller() Controller {
	h.ctlMu.RLock()
	defer h.ctlMu.RUnlock()
	return h.ctl
}

func (h *Hub) Viewers() int { return h.registry.Len() }

func (h *Hub) Render(p domain.HUDPayload) {
	h.fanout(TypeHUD, h.marshal(TypeHUD, hudFrame{Type: TypeHUD, Payload: p}))
}

func (h *Hub) Dock(d domain.Dock) {
	b := h.marshal(TypeDock, dockFrame{Type: TypeDock, Dock: d})
	h.stateMu.Lock()
	h.dock = b
	h.stateMu.Unlock()
	h.fanout(TypeDock, b)
}

func (h *Hub) Status(channel, text string) {
	b := h.marshal(TypeStatus, statusFrame{Type: TypeStatus, Channel: channel, Text: text})
	h.stateMu.Lock()
	h.status[channel] = b
	h.stateMu.Unlock()
	h.fanout(TypeStatus, b)
}

func (h *Hub) marshal(frameType string, v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "viewer").Str("type", frameType).Msg("marshal")
		return nil
	}
	return b
}

func (h *Hub) fanout(frameType string, b []byte) {
	if b == nil {
		return
	}
	for _, snap := range h.registry.Snapshot() {
		h.deliver(snap.Token, snap.Conn, frameType, b)
	}
}

func (h *Hub) deliver(token string, c *Conn, frameType string, b []byte) {
	err := c.TrySend(b)
	if !errors.Is(err, ErrBackpressure) {
		return
	}
	h.metrics.ViewerDrops.Inc()
	switch h.policy.OnBackpressure(token, frameType) {
	case KickViewer:
		log.Warn().Str("module", "viewer").Str("token", token).Str("type", frameType).Msg("slow viewer kicked")
		h.registry.Cancel(token)
		c.Close()
	case DropFrame:
		log.Debug().Str("module", "viewer").Str("token", token).Msg("frame dropped")
	}
}

// ServeWS upgrades the request and runs the viewer until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, token string) {
	if token == "" {
		token = uuid.NewString()
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "viewer").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "viewer").Str("token", token).Msg("new WS connection")

	conn := newConn(token, ws, h.opts.SendBuffer)
	ctx, cancel := context.WithCancel(h.ctx)
	if old, oldCancel := h.registry.Bind(token, conn, cancel); old != nil {
		oldCancel()
		old.Close()
	}
	h.metrics.Viewers.Set(float64(h.registry.Len()))

	h.stateMu.Lock()
	if h.dock != nil {
		_ = conn.TrySend(h.dock)
	}
	for _, b := range h.status {
		_ = conn.TrySend(b)
	}
	h.stateMu.Unlock()

	go conn.writePump(ctx, h.opts.PingPeriod)
	go func() {
		defer func() {
			cancel()
			conn.Close()
			h.registry.Unbind(token, conn)
			h.metrics.Viewers.Set(float64(h.registry.Len()))
			log.Info().Str("module", "viewer").Str("token", token).Msg("viewer gone")
		}()
		conn.readPump(ctx, h.opts.ReadLimit, h.opts.PingPeriod, func(data []byte) {
			h.handleMessage(token, conn, data)
		})
	}()
}

func (h *Hub) handleMessage(token string, c *Conn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "viewer").Msg("bad json")
		return
	}

	ctl := h.controller()
	switch env.Type {
	case "viewport":
		var v domain.Viewport
		if err := json.Unmarshal(data, &v); err != nil {
			log.Warn().Err(err).Str("module", "viewer").Msg("bad viewport")
			return
		}
		if ctl != nil {
			ctl.Viewport(v)
		}
	case "visibility":
		var msg struct {
			Visible bool `json:"visible"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Str("module", "viewer").Msg("bad visibility")
			return
		}
		if ctl != nil {
			ctl.Visibility(msg.Visible)
		}
	case "reconnect":
		if !h.Reconnect(token) {
			h.sendJSON(c, errorFrame{Type: TypeError, Error: "rate_limited"})
		}
	case "ping":
		h.sendJSON(c, struct {
			Type string `json:"type"`
		}{Type: TypePong})
	default:
		log.Warn().Str("module", "viewer").Str("type", env.Type).Msg("unknown message")
	}
}

// Reconnect asks for a new video session on behalf of token. It reports
// false when token is over its reconnect limit.
func (h *Hub) Reconnect(token string) bool {
	if !h.limiter.Allow(token) {
		log.Warn().Str("module", "viewer").Str("token", token).Msg("reconnect rate limited")
		return false
	}
	if ctl := h.controller(); ctl != nil {
		ctl.Reconnect()
	}
	return true
}

func (h *Hub) sendJSON(c *Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "viewer").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
