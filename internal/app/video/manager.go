// Package video keeps at most one live camera session with the device and
// recovers it without operator action.
package video

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Dash/internal/core"
	"github.com/dkeye/Dash/internal/domain"
	"github.com/dkeye/Dash/internal/loop"
	"github.com/dkeye/Dash/internal/metrics"
	"github.com/dkeye/Dash/internal/retry"
)

var (
	ErrNegotiation = errors.New("negotiation failed")
	ErrNoTrack     = errors.New("no track")
	ErrTransport   = errors.New("transport failed")
)

type Options struct {
	Cameras           []string
	GatherTimeout     time.Duration
	TrackTimeout      time.Duration
	RetryDelay        time.Duration
	NoTrackRetryDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Cameras:           []string{"road"},
		GatherTimeout:     8 * time.Second,
		TrackTimeout:      6 * time.Second,
		RetryDelay:        2 * time.Second,
		NoTrackRetryDelay: time.Second,
	}
}

type Deps struct {
	Dialer    core.MediaDialer
	Signal    core.SignalExchange
	Surface   core.Surface
	Telemetry core.TelemetryStarter
	Dock      core.DockEvaluator
	Status    core.StatusSink
	Metrics   *metrics.Metrics
}

// Manager owns the media connection, the track-arrival timer and the retry
// timer. All fields below published are touched only on the loop.
type Manager struct {
	loop  *loop.Loop
	deps  Deps
	opts  Options
	retry *retry.Scheduler

	published atomic.Int32
	status    atomic.Value

	state      domain.PeerState
	conn       core.MediaConnection
	attempt    string
	cancel     context.CancelFunc
	trackTimer loop.Timer
}

func New(l *loop.Loop, deps Deps, opts Options) *Manager {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Discard()
	}
	m := &Manager{
		loop:  l,
		deps:  deps,
		opts:  opts,
		retry: retry.New(l),
	}
	m.status.Store("")
	return m
}

// Connect requests a new session. Ignored while one is being set up or active.
func (m *Manager) Connect() { m.loop.Post(m.connect) }

// Disconnect tears the session down and drops any pending retry.
func (m *Manager) Disconnect() {
	m.loop.Post(func() {
		m.retry.Cancel()
		m.teardown()
		m.setState(domain.PeerIdle)
		m.setStatus("disconnected")
	})
}

func (m *Manager) State() domain.PeerState { return domain.PeerState(m.published.Load()) }

func (m *Manager) Status() string { return m.status.Load().(string) }

func (m *Manager) connect() {
	if m.state.Busy() {
		log.Debug().Str("module", "video").Str("state", m.state.String()).Msg("connect ignored")
		return
	}

	m.retry.Cancel()
	m.teardown()

	m.attempt = uuid.NewString()[:8]
	m.deps.Metrics.VideoAttempts.Inc()
	m.setState(domain.PeerNegotiating)
	m.setStatus("connecting...")

	conn, err := m.deps.Dialer.NewMedia()
	if err != nil {
		m.fail(fmt.Errorf("%w: new media: %w", ErrNegotiation, err), m.opts.RetryDelay)
		return
	}
	m.conn = conn
	ctx, cancel := context.WithCancel(m.loop.Context())
	m.cancel = cancel

	conn.OnTrack(func(t core.RemoteTrack) {
		m.loop.Post(func() { m.onTrack(conn, t) })
	})
	conn.OnPeerState(func(s webrtc.PeerConnectionState) {
		m.loop.Post(func() { m.onPeerState(conn, s) })
	})
	conn.OnICEState(func(s webrtc.ICEConnectionState) {
		m.loop.Post(func() { m.onICEState(conn, s) })
	})

	req := core.OfferRequest{
		Cameras:           m.opts.Cameras,
		BridgeServicesIn:  []string{},
		BridgeServicesOut: []string{},
	}
	m.loop.Go(func() {
		answer, err := m.negotiate(ctx, conn, req)
		m.loop.Post(func() { m.onAnswer(conn, answer, err) })
	})
}

// negotiate runs off the loop and must only touch its arguments.
func (m *Manager) negotiate(ctx context.Context, conn core.MediaConnection, req core.OfferRequest) (webrtc.SessionDescription, error) {
	offer, err := conn.Offer(ctx, m.opts.GatherTimeout)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	req.SDP = offer.SDP
	return m.deps.Signal.Exchange(ctx, req)
}

func (m *Manager) onAnswer(conn core.MediaConnection, answer webrtc.SessionDescription, err error) {
	if !m.current(conn, domain.PeerNegotiating) {
		m.stale("answer")
		return
	}
	if err != nil {
		m.fail(fmt.Errorf("%w: %w", ErrNegotiation, err), m.opts.RetryDelay)
		return
	}
	if err := conn.ApplyAnswer(answer); err != nil {
		m.fail(fmt.Errorf("%w: apply answer: %w", ErrNegotiation, err), m.opts.RetryDelay)
		return
	}

	m.setState(domain.PeerAwaitingTrack)
	m.setStatus("connected (waiting track...)")
	m.trackTimer = m.loop.AfterFunc(m.opts.TrackTimeout, func() { m.onTrackTimeout(conn) })
}

func (m *Manager) onTrack(conn core.MediaConnection, track core.RemoteTrack) {
	if !m.current(conn, domain.PeerAwaitingTrack) {
		m.stale("track")
		return
	}
	m.stopTrackTimer()

	if err := m.deps.Surface.Show(track); err != nil {
		log.Warn().Err(err).Str("module", "video").Str("attempt", m.attempt).Msg("playback failed")
	}
	log.Info().
		Str("module", "video").
		Str("attempt", m.attempt).
		Str("kind", track.Kind().String()).
		Str("track_id", track.ID()).
		Str("stream_id", track.StreamID()).
		Msg("track arrived")

	m.setState(domain.PeerActive)
	m.setStatus("track: " + track.Kind().String())
	m.deps.Telemetry.Start()
}

func (m *Manager) onTrackTimeout(conn core.MediaConnection) {
	if !m.current(conn, domain.PeerAwaitingTrack) {
		m.stale("track timeout")
		return
	}
	m.trackTimer = nil
	m.setStatus("no track, retry...")
	m.fail(ErrNoTrack, m.opts.NoTrackRetryDelay)
}

func (m *Manager) onPeerState(conn core.MediaConnection, s webrtc.PeerConnectionState) {
	if conn != m.conn {
		m.stale("peer state")
		return
	}
	log.Info().Str("module", "video").Str("attempt", m.attempt).Str("peer_connection_state", s.String()).Msg("Peer state")
	m.setStatus("conn: " + s.String())
	switch s {
	case webrtc.PeerConnectionStateFailed,
		webrtc.PeerConnectionStateDisconnected,
		webrtc.PeerConnectionStateClosed:
		m.fail(fmt.Errorf("%w: connection %s", ErrTransport, s), m.opts.RetryDelay)
	}
}

func (m *Manager) onICEState(conn core.MediaConnection, s webrtc.ICEConnectionState) {
	if conn != m.conn {
		m.stale("ice state")
		return
	}
	log.Info().Str("module", "video").Str("attempt", m.attempt).Str("ice_state", s.String()).Msg("ICE state")
	m.setStatus("ice: " + s.String())
	switch s {
	case webrtc.ICEConnectionStateFailed,
		webrtc.ICEConnectionStateDisconnected,
		webrtc.ICEConnectionStateClosed:
		m.fail(fmt.Errorf("%w: ice %s", ErrTransport, s), m.opts.RetryDelay)
	}
}

// fail is the single exit path for every failure: teardown, then one retry.
func (m *Manager) fail(err error, delay time.Duration) {
	m.setState(domain.PeerFailed)
	m.deps.Metrics.VideoFailures.WithLabelValues(reason(err)).Inc()
	log.Warn().Err(err).Str("module", "video").Str("attempt", m.attempt).Dur("retry_in", delay).Msg("session failed")
	if errors.Is(err, ErrNegotiation) {
		m.setStatus("error: " + err.Error())
	}

	m.teardown()
	m.retry.Schedule(delay, m.connect)
	m.setState(domain.PeerIdle)
}

func (m *Manager) teardown() {
	m.stopTrackTimer()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.conn != nil {
		conn := m.conn
		m.conn = nil
		if err := conn.Close(); err != nil {
			log.Error().Err(err).Str("module", "video").Str("attempt", m.attempt).Msg("close error")
		}
	}
	m.deps.Surface.Hide()
}

func (m *Manager) stopTrackTimer() {
	if m.trackTimer != nil {
		m.trackTimer.Stop()
		m.trackTimer = nil
	}
}

func (m *Manager) current(conn core.MediaConnection, want domain.PeerState) bool {
	return conn == m.conn && m.state == want
}

func (m *Manager) stale(what string) {
	log.Debug().Str("module", "video").Str("event", what).Str("state", m.state.String()).Msg("stale callback dropped")
}

func (m *Manager) setState(s domain.PeerState) {
	prev := m.state
	m.state = s
	m.published.Store(int32(s))
	m.deps.Metrics.SetPeerState(s)
	if prev != s {
		log.Debug().Str("module", "video").Str("from", prev.String()).Str("to", s.String()).Msg("state")
	}
	m.deps.Dock.Evaluate()
}

func (m *Manager) setStatus(text string) {
	m.status.Store(text)
	if m.deps.Status != nil {
		m.deps.Status.Status(core.ChannelVideo, text)
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrNoTrack):
		return "no_track"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "negotiation"
	}
}
