package core

import "github.com/dkeye/Dash/internal/domain"

// Channel names used in status lines.
const (
	ChannelVideo     = "video"
	ChannelTelemetry = "telemetry"
)

// RenderSink paints telemetry. It must not be assumed to retry or buffer.
type RenderSink interface {
	Render(domain.HUDPayload)
}

// DockSink moves the HUD overlay.
type DockSink interface {
	Dock(domain.Dock)
}

// StatusSink shows a transient status line for a channel.
type StatusSink interface {
	Status(channel, text string)
}

// DockEvaluator asks for a docking re-evaluation.
type DockEvaluator interface {
	Evaluate()
}

// TelemetryStarter starts the telemetry link. Idempotent.
type TelemetryStarter interface {
	Start()
}
