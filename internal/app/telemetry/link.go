// Package telemetry keeps the best-effort vehicle state feed open and pushes
// every snapshot to the HUD.
package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Dash/internal/app/hud"
	"github.com/dkeye/Dash/internal/core"
	"github.com/dkeye/Dash/internal/domain"
	"github.com/dkeye/Dash/internal/loop"
	"github.com/dkeye/Dash/internal/metrics"
	"github.com/dkeye/Dash/internal/retry"
)

var ErrMalformed = errors.New("malformed snapshot")

const DefaultReconnectDelay = time.Second

type Deps struct {
	Dialer  core.LinkDialer
	Sink    core.RenderSink
	Dock    core.DockEvaluator
	Status  core.StatusSink
	Metrics *metrics.Metrics
}

// Link owns the telemetry socket and its reconnect timer.
type Link struct {
	loop           *loop.Loop
	deps           Deps
	reconnectDelay time.Duration
	retry          *retry.Scheduler

	published atomic.Int32

	state   domain.LinkState
	conn    core.LinkConn
	attempt uint64
}

func New(l *loop.Loop, deps Deps, reconnectDelay time.Duration) *Link {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Discard()
	}
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Link{
		loop:           l,
		deps:           deps,
		reconnectDelay: reconnectDelay,
		retry:          retry.New(l),
	}
}

// Start opens the link unless it is already connecting or open.
func (k *Link) Start() { k.loop.Post(k.start) }

// Stop closes the link without reconnecting.
func (k *Link) Stop() {
	k.loop.Post(func() {
		k.retry.Cancel()
		k.attempt++
		k.release()
		k.setState(domain.LinkDisconnected)
	})
}

func (k *Link) State() domain.LinkState { return domain.LinkState(k.published.Load()) }

func (k *Link) start() {
	if k.state == domain.LinkConnecting || k.state == domain.LinkOpen {
		return
	}
	k.retry.Cancel()
	k.attempt++
	attempt := k.attempt
	k.setState(domain.LinkConnecting)
	k.deps.Metrics.TelemetryDials.Inc()

	ctx := k.loop.Context()
	k.loop.Go(func() {
		conn, err := k.deps.Dialer.Dial(ctx)
		k.loop.Post(func() { k.onDialed(attempt, conn, err) })
	})
}

func (k *Link) onDialed(attempt uint64, conn core.LinkConn, err error) {
	if attempt != k.attempt || k.state != domain.LinkConnecting {
		// superseded by Stop; nobody owns this socket
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "telemetry").Msg("dial failed")
		k.onClosed(attempt, err)
		return
	}

	k.conn = conn
	k.setState(domain.LinkOpen)
	log.Info().Str("module", "telemetry").Msg("open")
	k.status("connected")

	conn.Run(
		func(data []byte) { k.loop.Post(func() { k.onMessage(attempt, data) }) },
		func(err error) { k.loop.Post(func() { k.onClosed(attempt, err) }) },
	)
}

func (k *Link) onMessage(attempt uint64, data []byte) {
	if attempt != k.attempt || k.state != domain.LinkOpen {
		return
	}
	snap, err := Decode(data)
	if err != nil {
		k.deps.Metrics.TelemetryMalformed.Inc()
		log.Warn().Err(err).Str("module", "telemetry").Int("bytes", len(data)).Msg("bad msg")
		return
	}
	k.deps.Metrics.TelemetrySnapshots.Inc()
	k.deps.Sink.Render(hud.Normalize(snap))
	k.deps.Dock.Evaluate()
}

// onClosed handles the end of a socket, clean or not. It is the only path to a reconnect.
func (k *Link) onClosed(attempt uint64, err error) {
	if attempt != k.attempt || k.state == domain.LinkDisconnected {
		return
	}
	k.deps.Metrics.TelemetryCloses.Inc()
	log.Info().Err(err).Str("module", "telemetry").Dur("retry_in", k.reconnectDelay).Msg("close -> reconnect")

	k.release()
	k.setState(domain.LinkDisconnected)
	k.status("disconnected (reconnecting...)")
	k.retry.Ensure(k.reconnectDelay, k.start)
}

func (k *Link) release() {
	if k.conn == nil {
		return
	}
	conn := k.conn
	k.conn = nil
	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Str("module", "telemetry").Msg("close error")
	}
}

func (k *Link) setState(s domain.LinkState) {
	k.state = s
	k.published.Store(int32(s))
	k.deps.Metrics.SetLinkState(s)
}

func (k *Link) status(text string) {
	if k.deps.Status != nil {
		k.deps.Status.Status(core.ChannelTelemetry, text)
	}
}

// Decode parses one device message. Anything but a JSON object is malformed.
// A vEgo that is not a number leaves the speed unset instead of failing.
func Decode(data []byte) (domain.Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.Snapshot{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	var msg struct {
		domain.Snapshot
		VEgo json.RawMessage `json:"vEgo"`
	}
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	snap := msg.Snapshot
	snap.VEgo = nil
	var v any
	if json.Unmarshal(msg.VEgo, &v) == nil {
		if f, ok := v.(float64); ok {
			snap.VEgo = &f
		}
	}
	return snap, nil
}
