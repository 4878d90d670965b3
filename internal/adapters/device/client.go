// Package device talks HTTP to the vehicle device: the signaling exchange and
// the readiness probe.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Dash/internal/core"
)

var (
	ErrStatus    = errors.New("unexpected status")
	ErrBadAnswer = errors.New("bad answer")
)

type Endpoints struct {
	BaseURL       string
	StreamPath    string
	TelemetryPath string
	ProbePath     string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		BaseURL:       "http://127.0.0.1:7000",
		StreamPath:    "/stream",
		TelemetryPath: "/ws/carstate",
		ProbePath:     "/api/settings",
	}
}

// URL joins base and path.
func (e Endpoints) URL(path string) string {
	return strings.TrimRight(e.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// TelemetryURL maps the base scheme to ws or wss.
func (e Endpoints) TelemetryURL() (string, error) {
	u, err := url.Parse(e.URL(e.TelemetryPath))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// Client implements core.SignalExchange.
type Client struct {
	endpoints Endpoints
	http      *http.Client
}

func NewClient(endpoints Endpoints, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{endpoints: endpoints, http: hc}
}

type answerResponse struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Exchange posts the offer and returns the device's answer.
func (c *Client) Exchange(ctx context.Context, req core.OfferRequest) (webrtc.SessionDescription, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	target := c.endpoints.URL(c.endpoints.StreamPath)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("post %s: %w", c.endpoints.StreamPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var ans answerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %w", ErrBadAnswer, err)
	}
	return parseAnswer(ans)
}

func parseAnswer(ans answerResponse) (webrtc.SessionDescription, error) {
	if ans.SDP == "" {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: missing sdp", ErrBadAnswer)
	}
	typ := webrtc.SDPTypeAnswer
	if ans.Type != "" {
		typ = webrtc.NewSDPType(ans.Type)
		if typ != webrtc.SDPTypeAnswer && typ != webrtc.SDPTypePranswer {
			return webrtc.SessionDescription{}, fmt.Errorf("%w: type %q", ErrBadAnswer, ans.Type)
		}
	}

	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(ans.SDP)); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %w", ErrBadAnswer, err)
	}
	log.Debug().Str("module", "device").Int("media", len(parsed.MediaDescriptions)).Msg("answer parsed")
	return webrtc.SessionDescription{Type: typ, SDP: ans.SDP}, nil
}
