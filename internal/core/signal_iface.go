package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// OfferRequest is what the device needs to answer a session.
type OfferRequest struct {
	SDP               string   `json:"sdp"`
	Cameras           []string `json:"cameras"`
	BridgeServicesIn  []string `json:"bridge_services_in"`
	BridgeServicesOut []string `json:"bridge_services_out"`
}

// SignalExchange performs the single offer/answer round trip.
type SignalExchange interface {
	Exchange(ctx context.Context, req OfferRequest) (webrtc.SessionDescription, error)
}
