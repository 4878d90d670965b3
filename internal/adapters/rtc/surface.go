package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Dash/internal/core"
	"github.com/dkeye/Dash/internal/metrics"
)

var ErrNotVideo = errors.New("track is not video")

// Surface plays the active track. Its pump drains RTP so the interceptors
// keep sending receiver reports, and counts what arrives.
type Surface struct {
	metrics *metrics.Metrics
	visible atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSurface(m *metrics.Metrics) *Surface {
	if m == nil {
		m = metrics.Discard()
	}
	return &Surface{metrics: m}
}

func (s *Surface) Visible() bool { return s.visible.Load() }

// Show stops any previous playback and starts pumping track.
func (s *Surface) Show(track core.RemoteTrack) error {
	if track.Kind() != webrtc.RTPCodecTypeVideo {
		return fmt.Errorf("%w: %s", ErrNotVideo, track.Kind())
	}
	s.stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.visible.Store(true)
	go s.pump(ctx, track, done)
	return nil
}

// Hide stops playback. The pump exits once the track read fails, which
// happens when the owning connection closes.
func (s *Surface) Hide() {
	s.stop()
	s.visible.Store(false)
}

func (s *Surface) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Surface) pump(ctx context.Context, track core.RemoteTrack, done chan struct{}) {
	defer close(done)
	logger := log.With().Str("module", "surface").Str("track_id", track.ID()).Logger()
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("playback stopped")
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("track read ended")
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.metrics.VideoRTPPackets.Inc()
		s.metrics.VideoRTPBytes.Add(float64(len(pkt.Payload)))
	}
}
