// Package hud decides where the HUD overlay docks and shapes telemetry into
// the payload the overlay paints.
package hud

import "github.com/dkeye/Dash/internal/domain"

// Inputs are everything the dock depends on.
type Inputs struct {
	VideoVisible bool
	Fullscreen   bool
	Landscape    bool
}

// Resolve is a pure function of its inputs.
func Resolve(in Inputs) domain.Dock {
	switch {
	case !in.VideoVisible:
		return domain.DockCard
	case in.Fullscreen && in.Landscape:
		return domain.DockBottomLeft
	default:
		return domain.DockTop
	}
}
