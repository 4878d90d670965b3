package hud

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Dash/internal/core"
	"github.com/dkeye/Dash/internal/domain"
	"github.com/dkeye/Dash/internal/loop"
	"github.com/dkeye/Dash/internal/metrics"
)

const DefaultSweepInterval = 800 * time.Millisecond

// Controller re-resolves the dock on demand and on a slow sweep, and pushes
// only actual changes to the sink.
type Controller struct {
	loop    *loop.Loop
	video   core.VideoVisibility
	sink    core.DockSink
	metrics *metrics.Metrics
	sweep   time.Duration

	current atomic.Int32

	viewport  domain.Viewport
	applied   bool
	last      domain.Dock
	stopSweep func()
}

func NewController(l *loop.Loop, video core.VideoVisibility, sink core.DockSink, m *metrics.Metrics, sweep time.Duration) *Controller {
	if m == nil {
		m = metrics.Discard()
	}
	if sweep <= 0 {
		sweep = DefaultSweepInterval
	}
	return &Controller{loop: l, video: video, sink: sink, metrics: m, sweep: sweep}
}

// Evaluate schedules a re-resolution on the loop. Safe from any goroutine.
func (c *Controller) Evaluate() { c.loop.Post(c.evaluate) }

// SetViewport records what a viewer reported and re-resolves.
func (c *Controller) SetViewport(v domain.Viewport) {
	c.loop.Post(func() {
		c.viewport = v
		c.evaluate()
	})
}

// StartSweep re-resolves periodically to catch anything an event missed.
func (c *Controller) StartSweep() {
	c.loop.Post(func() {
		if c.stopSweep != nil {
			return
		}
		c.stopSweep = c.loop.Every(c.sweep, c.evaluate)
	})
}

func (c *Controller) Stop() {
	c.loop.Post(func() {
		if c.stopSweep != nil {
			c.stopSweep()
			c.stopSweep = nil
		}
	})
}

// Current is the dock last pushed to the sink.
func (c *Controller) Current() domain.Dock { return domain.Dock(c.current.Load()) }

func (c *Controller) evaluate() {
	dock := Resolve(Inputs{
		VideoVisible: c.video.Visible(),
		Fullscreen:   c.viewport.Fullscreen,
		Landscape:    c.viewport.Landscape(),
	})
	if c.applied && dock == c.last {
		return
	}
	log.Debug().Str("module", "hud").Str("from", c.last.String()).Str("to", dock.String()).Msg("dock")
	c.applied = true
	c.last = dock
	c.current.Store(int32(dock))
	c.metrics.DockChanges.WithLabelValues(dock.String()).Inc()
	c.sink.Dock(dock)
}
