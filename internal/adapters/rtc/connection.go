package rtc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Dash/internal/core"
)

var ErrNoLocalDescription = errors.New("no local description")

// Connection wraps a receive-only *webrtc.PeerConnection.
type Connection struct {
	pc *webrtc.PeerConnection
	id string

	closeOnce sync.Once
	closeErr  error
}

func newConnection(pc *webrtc.PeerConnection, id string) *Connection {
	return &Connection{pc: pc, id: id}
}

func (c *Connection) Offer(ctx context.Context, gatherTimeout time.Duration) (webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}

	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}

	timer := time.NewTimer(gatherTimeout)
	defer timer.Stop()
	select {
	case <-gatherComplete:
	case <-timer.C:
		log.Warn().Str("module", "webrtc").Str("conn", c.id).Dur("after", gatherTimeout).Msg("ICE gathering incomplete, sending partial offer")
	case <-ctx.Done():
		return webrtc.SessionDescription{}, ctx.Err()
	}

	local := c.pc.LocalDescription()
	if local == nil {
		return webrtc.SessionDescription{}, ErrNoLocalDescription
	}
	return *local, nil
}

func (c *Connection) ApplyAnswer(answer webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(answer)
}

func (c *Connection) OnTrack(fn func(core.RemoteTrack)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "webrtc").
			Str("conn", c.id).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		fn(track)
	})
}

func (c *Connection) OnPeerState(fn func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(fn)
}

func (c *Connection) OnICEState(fn func(webrtc.ICEConnectionState)) {
	c.pc.OnICEConnectionStateChange(fn)
}

// Close is safe to call more than once.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.pc.Close()
		if c.closeErr != nil {
			log.Error().Err(c.closeErr).Str("module", "webrtc").Str("conn", c.id).Msg("close error")
			return
		}
		log.Info().Str("module", "webrtc").Str("conn", c.id).Msg("closed")
	})
	return c.closeErr
}
