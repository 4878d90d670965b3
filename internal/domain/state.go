// Package domain holds the values the connection state machines and the
// HUD exchange. No behavior beyond naming.
package domain

import "fmt"

// PeerState is the lifecycle of one video session.
type PeerState int32

const (
	PeerIdle PeerState = iota
	PeerNegotiating
	PeerAwaitingTrack
	PeerActive
	PeerFailed
)

var peerStateNames = [...]string{
	PeerIdle:          "idle",
	PeerNegotiating:   "negotiating",
	PeerAwaitingTrack: "awaiting_track",
	PeerActive:        "active",
	PeerFailed:        "failed",
}

func (s PeerState) String() string {
	if s < 0 || int(s) >= len(peerStateNames) {
		return fmt.Sprintf("PeerState(%d)", int32(s))
	}
	return peerStateNames[s]
}

func (s PeerState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Busy reports whether a new connect request must be ignored.
func (s PeerState) Busy() bool {
	return s == PeerNegotiating || s == PeerAwaitingTrack || s == PeerActive
}

// LinkState is the lifecycle of the telemetry socket.
type LinkState int32

const (
	LinkDisconnected LinkState = iota
	LinkConnecting
	LinkOpen
)

var linkStateNames = [...]string{
	LinkDisconnected: "disconnected",
	LinkConnecting:   "connecting",
	LinkOpen:         "open",
}

func (s LinkState) String() string {
	if s < 0 || int(s) >= len(linkStateNames) {
		return fmt.Sprintf("LinkState(%d)", int32(s))
	}
	return linkStateNames[s]
}

func (s LinkState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
