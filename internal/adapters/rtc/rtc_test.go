package rtc

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dkeye/Dash/internal/metrics"
)

type scriptedTrack struct {
	kind    webrtc.RTPCodecType
	packets chan *rtp.Packet
}

func (t *scriptedTrack) ID() string                { return "video0" }
func (t *scriptedTrack) StreamID() string          { return "road" }
func (t *scriptedTrack) Kind() webrtc.RTPCodecType { return t.kind }
func (t *scriptedTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	pkt, ok := <-t.packets
	if !ok {
		return nil, nil, io.EOF
	}
	return pkt, nil, nil
}

func TestSurfaceDrainsTrack(t *testing.T) {
	m := metrics.Discard()
	s := NewSurface(m)

	track := &scriptedTrack{kind: webrtc.RTPCodecTypeVideo, packets: make(chan *rtp.Packet, 3)}
	for i := range 3 {
		track.packets <- &rtp.Packet{Header: rtp.Header{SequenceNumber: uint16(i)}, Payload: []byte{1, 2, 3, 4}}
	}
	close(track.packets)

	if err := s.Show(track); err != nil {
		t.Fatal(err)
	}
	if !s.Visible() {
		t.Fatal("surface not visible after Show")
	}
	<-s.done

	if got := testutil.ToFloat64(m.VideoRTPPackets); got != 3 {
		t.Fatalf("packets = %v", got)
	}
	if got := testutil.ToFloat64(m.VideoRTPBytes); got != 12 {
		t.Fatalf("bytes = %v", got)
	}

	s.Hide()
	if s.Visible() {
		t.Fatal("surface visible after Hide")
	}
	s.Hide()
}

func TestSurfaceRejectsAudio(t *testing.T) {
	s := NewSurface(nil)
	err := s.Show(&scriptedTrack{kind: webrtc.RTPCodecTypeAudio})
	if !errors.Is(err, ErrNotVideo) {
		t.Fatalf("err = %v, want ErrNotVideo", err)
	}
	if s.Visible() {
		t.Fatal("audio made the surface visible")
	}
}

func TestFactoryCreatesRecvOnlyOffer(t *testing.T) {
	f, err := NewFactory(DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	conn, err := f.NewMedia()
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	offer, err := conn.Offer(ctx, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if offer.Type != webrtc.SDPTypeOffer {
		t.Fatalf("type = %s", offer.Type)
	}
	if !strings.Contains(offer.SDP, "m=video") || !strings.Contains(offer.SDP, "a=recvonly") {
		t.Fatalf("offer is not a recvonly video offer:\n%s", offer.SDP)
	}

	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
