package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Dash/internal/adapters/device"
	router "github.com/dkeye/Dash/internal/adapters/http"
	"github.com/dkeye/Dash/internal/adapters/rtc"
	"github.com/dkeye/Dash/internal/adapters/viewer"
	"github.com/dkeye/Dash/internal/adapters/ws"
	"github.com/dkeye/Dash/internal/app/hud"
	"github.com/dkeye/Dash/internal/app/orch"
	"github.com/dkeye/Dash/internal/app/telemetry"
	"github.com/dkeye/Dash/internal/app/video"
	"github.com/dkeye/Dash/internal/config"
	"github.com/dkeye/Dash/internal/logging"
	"github.com/dkeye/Dash/internal/loop"
	"github.com/dkeye/Dash/internal/metrics"
)

func loadConfig(cmd *cobra.Command) (*config.Loader, *config.Config, error) {
	loader, err := config.NewLoader(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return loader, cfg, nil
}

func endpointsOf(cfg *config.Config) device.Endpoints {
	return device.Endpoints{
		BaseURL:       cfg.Device.BaseURL,
		StreamPath:    cfg.Device.StreamPath,
		TelemetryPath: cfg.Device.TelemetryPath,
		ProbePath:     cfg.Device.ProbePath,
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loader, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logFile := logging.Setup(cfg.Mode, cfg.Log)
	defer logFile.Close()
	loader.Watch(func(c *config.Config) {
		logging.SetLevel(c.Log.Level)
		log.Info().Str("module", "main").Str("level", c.Log.Level).Msg("log level reloaded")
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// The loop outlives ctx so shutdown work still runs on it.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	l := loop.New(loopCtx, loop.SystemClock)

	endpoints := endpointsOf(cfg)
	telemetryURL, err := endpoints.TelemetryURL()
	if err != nil {
		return fmt.Errorf("telemetry url: %w", err)
	}
	factory, err := rtc.NewFactory(rtc.DefaultConfig(), logging.PionFactory{})
	if err != nil {
		return fmt.Errorf("webrtc: %w", err)
	}

	surface := rtc.NewSurface(m)
	hub := viewer.NewHub(ctx, viewer.Options{
		ReadLimit:       cfg.ReadLimit,
		PingPeriod:      cfg.PingPeriod,
		SendBuffer:      viewer.DefaultOptions().SendBuffer,
		ReconnectLimit:  cfg.Viewer.ReconnectLimit,
		ReconnectWindow: cfg.Viewer.ReconnectWindow,
	}, loop.SystemClock, m)

	dock := hud.NewController(l, surface, hub, m, cfg.HUD.SweepInterval)
	link := telemetry.New(l, telemetry.Deps{
		Dialer:  ws.NewDialer(telemetryURL, cfg.Telemetry.ReadLimit),
		Sink:    hub,
		Dock:    dock,
		Status:  hub,
		Metrics: m,
	}, cfg.Telemetry.ReconnectDelay)
	sessions := video.New(l, video.Deps{
		Dialer:    factory,
		Signal:    device.NewClient(endpoints, nil),
		Surface:   surface,
		Telemetry: link,
		Dock:      dock,
		Status:    hub,
		Metrics:   m,
	}, video.Options{
		Cameras:           cfg.Video.Cameras,
		GatherTimeout:     cfg.Video.GatherTimeout,
		TrackTimeout:      cfg.Video.TrackTimeout,
		RetryDelay:        cfg.Video.RetryDelay,
		NoTrackRetryDelay: cfg.Video.NoTrackRetryDelay,
	})

	o := &orch.Orchestrator{
		Video:     sessions,
		Telemetry: link,
		Dock:      dock,
		Surface:   surface,
		Probe:     device.NewProbe(endpoints, nil, cfg.Probe.Interval, cfg.Probe.Timeout),
		Status:    hub,
	}
	hub.Bind(o)

	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		gatherer = reg
	}
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router.SetupRouter(cfg, o, hub, gatherer),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := l.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info().Str("module", "main").Str("addr", addr).Str("device", endpoints.BaseURL).Msg("Dash started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		o.Boot(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("module", "main").Msg("Shutting down")
		o.Shutdown()
		l.Post(stopLoop)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Str("module", "main").Msg("Server forced to shutdown")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Str("module", "main").Msg("Dash exited")
	return err
}
