// Package metrics exposes prometheus collectors for both live channels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dkeye/Dash/internal/domain"
)

const namespace = "dash"

type Metrics struct {
	VideoAttempts   prometheus.Counter
	VideoFailures   *prometheus.CounterVec
	VideoState      prometheus.Gauge
	VideoRTPPackets prometheus.Counter
	VideoRTPBytes   prometheus.Counter

	TelemetryDials     prometheus.Counter
	TelemetryCloses    prometheus.Counter
	TelemetrySnapshots prometheus.Counter
	TelemetryMalformed prometheus.Counter
	TelemetryState     prometheus.Gauge

	DockChanges *prometheus.CounterVec
	Viewers     prometheus.Gauge
	ViewerDrops prometheus.Counter
}

// New registers every collector on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		VideoAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "video", Name: "attempts_total",
			Help: "Negotiation attempts started.",
		}),
		VideoFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "video", Name: "failures_total",
			Help: "Session failures by reason.",
		}, []string{"reason"}),
		VideoState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "video", Name: "state",
			Help: "Current peer state (0 idle, 1 negotiating, 2 awaiting_track, 3 active, 4 failed).",
		}),
		VideoRTPPackets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "video", Name: "rtp_packets_total",
			Help: "RTP packets received on the active track.",
		}),
		VideoRTPBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "video", Name: "rtp_payload_bytes_total",
			Help: "RTP payload bytes received on the active track.",
		}),
		TelemetryDials: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "telemetry", Name: "dials_total",
			Help: "Telemetry socket dial attempts.",
		}),
		TelemetryCloses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "telemetry", Name: "closes_total",
			Help: "Telemetry socket closes, clean or not.",
		}),
		TelemetrySnapshots: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "telemetry", Name: "snapshots_total",
			Help: "Snapshots pushed to the HUD.",
		}),
		TelemetryMalformed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "telemetry", Name: "malformed_total",
			Help: "Telemetry messages dropped because they did not parse.",
		}),
		TelemetryState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "telemetry", Name: "state",
			Help: "Current link state (0 disconnected, 1 connecting, 2 open).",
		}),
		DockChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "hud", Name: "dock_changes_total",
			Help: "HUD dock transitions by target.",
		}, []string{"dock"}),
		Viewers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "viewer", Name: "connected",
			Help: "Connected HUD viewers.",
		}),
		ViewerDrops: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "viewer", Name: "dropped_frames_total",
			Help: "Frames not delivered to a viewer because of backpressure.",
		}),
	}
}

// Discard returns collectors registered nowhere.
func Discard() *Metrics { return New(prometheus.NewRegistry()) }

func (m *Metrics) SetPeerState(s domain.PeerState) { m.VideoState.Set(float64(s)) }

func (m *Metrics) SetLinkState(s domain.LinkState) { m.TelemetryState.Set(float64(s)) }
