package video

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Dash/internal/core"
	"github.com/dkeye/Dash/internal/loop"
	"github.com/dkeye/Dash/internal/metrics"
)

type fakeMedia struct {
	id      int
	closed  bool
	applied []webrtc.SessionDescription
	applyFn func() error

	onTrack func(core.RemoteTrack)
	onPeer  func(webrtc.PeerConnectionState)
	onICE   func(webrtc.ICEConnectionState)
}

func (f *fakeMedia) Offer(context.Context, time.Duration) (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (f *fakeMedia) ApplyAnswer(a webrtc.SessionDescription) error {
	f.applied = append(f.applied, a)
	if f.applyFn != nil {
		return f.applyFn()
	}
	return nil
}

func (f *fakeMedia) OnTrack(fn func(core.RemoteTrack))               { f.onTrack = fn }
func (f *fakeMedia) OnPeerState(fn func(webrtc.PeerConnectionState)) { f.onPeer = fn }
func (f *fakeMedia) OnICEState(fn func(webrtc.ICEConnectionState))   { f.onICE = fn }

func (f *fakeMedia) Close() error {
	f.closed = true
	// pion reports closed on Close; it must be ignored as stale
	if f.onPeer != nil {
		f.onPeer(webrtc.PeerConnectionStateClosed)
	}
	return nil
}

type fakeDialer struct {
	conns []*fakeMedia
	err   error
}

func (d *fakeDialer) NewMedia() (core.MediaConnection, error) {
	if d.err != nil {
		return nil, d.err
	}
	c := &fakeMedia{id: len(d.conns) + 1}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) open() int {
	n := 0
	for _, c := range d.conns {
		if !c.closed {
			n++
		}
	}
	return n
}

func (d *fakeDialer) last() *fakeMedia { return d.conns[len(d.conns)-1] }

type fakeSignal struct {
	calls  []core.OfferRequest
	err    error
	during func()
}

func (s *fakeSignal) Exchange(_ context.Context, req core.OfferRequest) (webrtc.SessionDescription, error) {
	s.calls = append(s.calls, req)
	if s.during != nil {
		s.during()
	}
	if s.err != nil {
		return webrtc.SessionDescription{}, s.err
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

type fakeSurface struct {
	visible bool
	shown   int
}

func (s *fakeSurface) Show(core.RemoteTrack) error { s.visible = true; s.shown++; return nil }
func (s *fakeSurface) Hide()                       { s.visible = false }
func (s *fakeSurface) Visible() bool               { return s.visible }

type fakeTelemetry struct{ starts int }

func (t *fakeTelemetry) Start() { t.starts++ }

// fakeDock records the surface visibility seen at every evaluation.
type fakeDock struct {
	surface *fakeSurface
	seen    []bool
}

func (d *fakeDock) Evaluate() { d.seen = append(d.seen, d.surface.Visible()) }

func (d *fakeDock) lastVisible() bool { return len(d.seen) > 0 && d.seen[len(d.seen)-1] }

type fakeStatus struct{ lines []string }

func (s *fakeStatus) Status(_ string, text string) { s.lines = append(s.lines, text) }

func (s *fakeStatus) last() string {
	if len(s.lines) == 0 {
		return ""
	}
	return s.lines[len(s.lines)-1]
}

type fakeTrack struct{}

func (fakeTrack) ID() string                { return "video0" }
func (fakeTrack) StreamID() string          { return "road" }
func (fakeTrack) Kind() webrtc.RTPCodecType { return webrtc.RTPCodecTypeVideo }
func (fakeTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	return nil, nil, io.EOF
}

type harness struct {
	clock     *loop.ManualClock
	loop      *loop.Loop
	dialer    *fakeDialer
	signal    *fakeSignal
	surface   *fakeSurface
	telemetry *fakeTelemetry
	dock      *fakeDock
	status    *fakeStatus
	metrics   *metrics.Metrics
	m         *Manager
}

func newHarness() *harness {
	clock := loop.NewManualClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	l := loop.NewManual(clock)
	surface := &fakeSurface{}
	h := &harness{
		clock:     clock,
		loop:      l,
		dialer:    &fakeDialer{},
		signal:    &fakeSignal{},
		surface:   surface,
		telemetry: &fakeTelemetry{},
		dock:      &fakeDock{surface: surface},
		status:    &fakeStatus{},
		metrics:   metrics.Discard(),
	}
	h.m = New(l, Deps{
		Dialer:    h.dialer,
		Signal:    h.signal,
		Surface:   h.surface,
		Telemetry: h.telemetry,
		Dock:      h.dock,
		Status:    h.status,
		Metrics:   h.metrics,
	}, DefaultOptions())
	return h
}

func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.loop.Flush()
}

// fire runs an adapter callback and lets the loop process it.
func (h *harness) fire(fn func()) {
	fn()
	h.loop.Flush()
}

// toAwaitingTrack drives a fresh manager through a successful exchange.
func (h *harness) toAwaitingTrack() *fakeMedia {
	h.m.Connect()
	h.loop.Flush()
	return h.dialer.last()
}

var errNetwork = errors.New("dial tcp 192.168.0.10:7000: connect: connection refused")
