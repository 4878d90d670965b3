// Package rtc backs the video session with pion.
package rtc

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/ice/v4"
	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Dash/internal/core"
)

// DefaultConfig has no ICE servers: the device is on the local network and
// host candidates are enough.
func DefaultConfig() webrtc.Configuration {
	return webrtc.Configuration{
		SDPSemantics:         webrtc.SDPSemanticsUnifiedPlan,
		ICECandidatePoolSize: 1,
	}
}

// Factory creates receive-only video connections. It implements core.MediaDialer.
type Factory struct {
	api    *webrtc.API
	config webrtc.Configuration
}

// NewFactory builds the pion API once. loggerFactory may be nil.
func NewFactory(config webrtc.Configuration, loggerFactory logging.LoggerFactory) (*Factory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	s := webrtc.SettingEngine{}
	if loggerFactory != nil {
		s.LoggerFactory = loggerFactory
	}
	// devices advertise themselves as <name>.local
	s.SetICEMulticastDNSMode(ice.MulticastDNSModeQueryOnly)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(i),
		webrtc.WithSettingEngine(s),
	)
	return &Factory{api: api, config: config}, nil
}

func (f *Factory) NewMedia() (core.MediaConnection, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, err
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add video transceiver: %w", err)
	}
	return newConnection(pc, uuid.NewString()[:8]), nil
}
