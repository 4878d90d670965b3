package device

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Dash/internal/core"
)

const answerSDP = "v=0\r\n" +
	"o=- 4215 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n" +
	"a=sendonly\r\n" +
	"a=rtpmap:96 H264/90000\r\n"

func endpointsFor(srv *httptest.Server) Endpoints {
	e := DefaultEndpoints()
	e.BaseURL = srv.URL
	return e
}

func TestExchangePostsOffer(t *testing.T) {
	var got core.OfferRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/stream" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"sdp": answerSDP})
	}))
	defer srv.Close()

	c := NewClient(endpointsFor(srv), srv.Client())
	ans, err := c.Exchange(context.Background(), core.OfferRequest{
		SDP:               "v=0 offer",
		Cameras:           []string{"road"},
		BridgeServicesIn:  []string{},
		BridgeServicesOut: []string{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Type != webrtc.SDPTypeAnswer {
		t.Fatalf("type = %s, want answer when omitted", ans.Type)
	}
	if ans.SDP != answerSDP {
		t.Fatal("sdp not passed through")
	}
	if got.SDP != "v=0 offer" || len(got.Cameras) != 1 || got.Cameras[0] != "road" {
		t.Fatalf("request = %+v", got)
	}
	if got.BridgeServicesIn == nil || got.BridgeServicesOut == nil {
		t.Fatal("bridge service lists must be sent as empty arrays")
	}
}

func TestExchangeErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, `boom`, ErrStatus},
		{"not json", http.StatusOK, `<html>`, ErrBadAnswer},
		{"missing sdp", http.StatusOK, `{"type":"answer"}`, ErrBadAnswer},
		{"wrong type", http.StatusOK, `{"type":"offer","sdp":"v=0\r\n"}`, ErrBadAnswer},
		{"garbage sdp", http.StatusOK, `{"type":"answer","sdp":"hello"}`, ErrBadAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(endpointsFor(srv), srv.Client()).Exchange(context.Background(), core.OfferRequest{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExchangeHonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(endpointsFor(srv), srv.Client()).Exchange(ctx, core.OfferRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestTelemetryURL(t *testing.T) {
	tests := []struct{ base, want string }{
		{"http://10.0.0.5:7000", "ws://10.0.0.5:7000/ws/carstate"},
		{"https://car.local/", "wss://car.local/ws/carstate"},
	}
	for _, tt := range tests {
		e := DefaultEndpoints()
		e.BaseURL = tt.base
		got, err := e.TelemetryURL()
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Fatalf("TelemetryURL(%s) = %s, want %s", tt.base, got, tt.want)
		}
	}
}

func TestWaitReadyPollsUntilUp(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/settings" {
			http.NotFound(w, r)
			return
		}
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := NewProbe(endpointsFor(srv), srv.Client(), 10*time.Millisecond, 5*time.Second)
	if !p.WaitReady(context.Background()) {
		t.Fatal("probe gave up on a device that came up")
	}
	if hits.Load() != 3 {
		t.Fatalf("hits = %d, want 3", hits.Load())
	}
}

func TestWaitReadyGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewProbe(endpointsFor(srv), srv.Client(), 10*time.Millisecond, 100*time.Millisecond)
	start := time.Now()
	if p.WaitReady(context.Background()) {
		t.Fatal("probe reported ready")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("probe waited %s", elapsed)
	}
}
