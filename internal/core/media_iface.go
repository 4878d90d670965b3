package core

import (
	"context"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// RemoteTrack is the inbound media a session delivers.
// *webrtc.TrackRemote satisfies it.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// MediaConnection is one receive-only peer session.
// Callbacks may fire on any goroutine; the owner is expected to hop onto its loop.
type MediaConnection interface {
	// Offer creates and applies the local offer, then waits for ICE gathering
	// to complete or gatherTimeout to pass, whichever comes first.
	Offer(ctx context.Context, gatherTimeout time.Duration) (webrtc.SessionDescription, error)
	// ApplyAnswer sets the remote description.
	ApplyAnswer(webrtc.SessionDescription) error
	// OnTrack sets a callback invoked when a remote track arrives.
	OnTrack(func(RemoteTrack))
	// OnPeerState sets a callback for aggregate connection state changes.
	OnPeerState(func(webrtc.PeerConnectionState))
	// OnICEState sets a callback for ICE transport state changes.
	OnICEState(func(webrtc.ICEConnectionState))
	// Close releases every underlying media resource.
	Close() error
}

// MediaDialer creates fresh media connections.
type MediaDialer interface {
	NewMedia() (MediaConnection, error)
}

// Surface displays the active video track.
type Surface interface {
	// Show makes the surface visible and starts playback of track.
	Show(track RemoteTrack) error
	// Hide stops playback and hides the surface. Safe when already hidden.
	Hide()
	VideoVisibility
}

// VideoVisibility reports whether the video surface is currently shown.
type VideoVisibility interface {
	Visible() bool
}
