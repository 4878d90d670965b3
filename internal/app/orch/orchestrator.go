// Package orch wires the video session, the telemetry link and the dock
// controller together and fields what viewers ask for.
package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Dash/internal/app/hud"
	"github.com/dkeye/Dash/internal/app/telemetry"
	"github.com/dkeye/Dash/internal/app/video"
	"github.com/dkeye/Dash/internal/core"
	"github.com/dkeye/Dash/internal/domain"
)

// Prober waits for the device backend to answer.
type Prober interface {
	WaitReady(ctx context.Context) bool
}

type Orchestrator struct {
	Video     *video.Manager
	Telemetry *telemetry.Link
	Dock      *hud.Controller
	Surface   core.VideoVisibility
	Probe     Prober
	Status    core.StatusSink
}

// Boot waits for the device, bounded by the probe, then brings both
// channels up whatever the probe said.
func (o *Orchestrator) Boot(ctx context.Context) {
	if o.Status != nil {
		o.Status.Status(core.ChannelVideo, "waiting server...")
	}
	o.Dock.StartSweep()
	o.Dock.Evaluate()

	ready := true
	if o.Probe != nil {
		ready = o.Probe.WaitReady(ctx)
	}
	if ctx.Err() != nil {
		return
	}
	log.Info().Str("module", "orch").Bool("device_ready", ready).Msg("boot")

	o.Video.Connect()
	o.Telemetry.Start()
}

func (o *Orchestrator) Shutdown() {
	o.Video.Disconnect()
	o.Telemetry.Stop()
	o.Dock.Stop()
}

func (o *Orchestrator) Viewport(v domain.Viewport) {
	o.Dock.SetViewport(v)
}

// Visibility reconnects video when a viewer comes back to the page.
func (o *Orchestrator) Visibility(visible bool) {
	if !visible {
		return
	}
	log.Debug().Str("module", "orch").Msg("viewer visible, connect")
	o.Video.Connect()
}

func (o *Orchestrator) Reconnect() {
	log.Info().Str("module", "orch").Msg("reconnect requested")
	o.Video.Connect()
}

type Status struct {
	Video        domain.PeerState `json:"video"`
	VideoStatus  string           `json:"videoStatus"`
	VideoVisible bool             `json:"videoVisible"`
	Telemetry    domain.LinkState `json:"telemetry"`
	Dock         domain.Dock      `json:"dock"`
}

// Snapshot is safe from any goroutine.
func (o *Orchestrator) Snapshot() Status {
	return Status{
		Video:        o.Video.State(),
		VideoStatus:  o.Video.Status(),
		VideoVisible: o.Surface.Visible(),
		Telemetry:    o.Telemetry.State(),
		Dock:         o.Dock.Current(),
	}
}
