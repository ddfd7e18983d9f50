package server

import (
	"context"
	"math/rand/v2"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/skypro1111/binaural-intercom/internal/audio"
	"github.com/skypro1111/binaural-intercom/internal/config"
	"github.com/skypro1111/binaural-intercom/internal/metrics"
	"github.com/skypro1111/binaural-intercom/internal/protocol"
)

const (
	testFrames    = 16
	testChannels  = 2
	testBitplanes = 15
)

func testAnnounce() protocol.Announce {
	a := protocol.Announce{
		Frames:    testFrames,
		Channels:  testChannels,
		Bitplanes: testBitplanes,
		Levels:    1,
		Mode:      3,
	}
	a.SetWavelet("bior3.5")
	return a
}

func testTransportConfig() *config.TransportConfig {
	return &config.TransportConfig{
		ListenAddress:    "127.0.0.1",
		ListenPort:       0,
		PeerAddress:      "127.0.0.1:9",
		BufferSize:       65536,
		Workers:          2,
		QueueSize:        256,
		AnnounceInterval: 0.05,
	}
}

func newTestPeer(t *testing.T, cfg *config.TransportConfig) (*Peer, *audio.Buffer, *metrics.Metrics) {
	t.Helper()

	logger := testLogger()
	buffer, err := audio.NewBuffer(4, testFrames, testChannels)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}
	m := metrics.NewMetrics(prometheus.NewRegistry())

	return NewPeer(cfg, testAnnounce(), buffer, m, logger), buffer, m
}

func bitplanePacket(t *testing.T, chunk uint16, channel, plane, planes int, payload []byte) *incomingPacket {
	t.Helper()

	data, err := protocol.AppendBitplane(nil, chunk, channel, plane, planes, payload)
	if err != nil {
		t.Fatalf("Failed to build bitplane packet: %v", err)
	}
	return &incomingPacket{
		data:       data,
		remoteAddr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5000},
		timestamp:  time.Now(),
	}
}

func announcePacket(t *testing.T, a protocol.Announce) *incomingPacket {
	t.Helper()

	data, err := a.MarshalBinary()
	if err != nil {
		t.Fatalf("Failed to build announce packet: %v", err)
	}
	return &incomingPacket{
		data:       data,
		remoteAddr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5000},
		timestamp:  time.Now(),
	}
}

func TestPeerStateString(t *testing.T) {
	tests := []struct {
		state    PeerState
		expected string
	}{
		{PeerUnknown, "unknown"},
		{PeerAccepted, "accepted"},
		{PeerRejected, "rejected"},
		{PeerState(9), "PeerState(9)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, got)
		}
	}
}

func TestPeerHandleBitplane(t *testing.T) {
	planes := testBitplanes + 1
	payload := []byte{0xA5, 0x0F}

	tests := []struct {
		name   string
		packet func(t *testing.T) *incomingPacket
		reason string
	}{
		{
			name: "wrong plane count",
			packet: func(t *testing.T) *incomingPacket {
				return bitplanePacket(t, 1, 0, 3, planes-1, payload)
			},
			reason: DropLayout,
		},
		{
			name: "channel out of range",
			packet: func(t *testing.T) *incomingPacket {
				return bitplanePacket(t, 1, 2, 3, planes, payload)
			},
			reason: DropLayout,
		},
		{
			name: "payload size",
			packet: func(t *testing.T) *incomingPacket {
				return bitplanePacket(t, 1, 0, 3, planes, []byte{0xA5, 0x0F, 0x00})
			},
			reason: DropLayout,
		},
		{
			name: "duplicate",
			packet: func(t *testing.T) *incomingPacket {
				return bitplanePacket(t, 1, 0, 15, planes, payload)
			},
			reason: DropDuplicate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peer, buffer, m := newTestPeer(t, testTransportConfig())

			peer.handlePacket(bitplanePacket(t, 1, 0, 15, planes, payload), 0)
			if got := buffer.GetStats().StoredBitplanes; got != 1 {
				t.Fatalf("Expected 1 stored bitplane, got %d", got)
			}

			peer.handlePacket(tt.packet(t), 0)

			if got := testutil.ToFloat64(m.BitplanesDropped.WithLabelValues(tt.reason)); got != 1 {
				t.Errorf("Expected 1 bitplane dropped as %s, got %v", tt.reason, got)
			}
			if got := buffer.GetStats().StoredBitplanes; got != 1 {
				t.Errorf("Expected 1 stored bitplane, got %d", got)
			}

			stats := peer.GetStatistics()
			if stats.PacketsProcessed != 2 {
				t.Errorf("Expected 2 processed packets, got %d", stats.PacketsProcessed)
			}
			if stats.BitplanesStored != 1 || stats.BitplanesDropped != 1 {
				t.Errorf("Expected 1 stored and 1 dropped, got %d and %d",
					stats.BitplanesStored, stats.BitplanesDropped)
			}
		})
	}
}

func TestPeerHandleLateBitplane(t *testing.T) {
	peer, _, m := newTestPeer(t, testTransportConfig())
	planes := testBitplanes + 1
	payload := []byte{0xFF, 0xFF}

	// Playback starts two chunks behind chunk 10
	peer.handlePacket(bitplanePacket(t, 10, 0, 0, planes, payload), 0)
	peer.handlePacket(bitplanePacket(t, 7, 0, 0, planes, payload), 0)

	if got := testutil.ToFloat64(m.BitplanesDropped.WithLabelValues(DropLate)); got != 1 {
		t.Errorf("Expected 1 late bitplane, got %v", got)
	}
	if got := testutil.ToFloat64(m.BitplanesReceived); got != 1 {
		t.Errorf("Expected 1 received bitplane, got %v", got)
	}
}

func TestPeerAnnounce(t *testing.T) {
	peer, buffer, m := newTestPeer(t, testTransportConfig())
	planes := testBitplanes + 1

	if peer.State() != PeerUnknown {
		t.Fatalf("Expected unknown peer, got %s", peer.State())
	}

	other := testAnnounce()
	other.Frames = 32
	peer.handlePacket(announcePacket(t, other), 0)

	if peer.State() != PeerRejected {
		t.Fatalf("Expected rejected peer, got %s", peer.State())
	}
	if got := testutil.ToFloat64(m.PeersRejected); got != 1 {
		t.Errorf("Expected 1 rejected announce, got %v", got)
	}

	peer.handlePacket(bitplanePacket(t, 1, 0, 0, planes, []byte{1, 1}), 0)
	if got := testutil.ToFloat64(m.BitplanesDropped.WithLabelValues(DropRejected)); got != 1 {
		t.Errorf("Expected 1 bitplane dropped from rejected peer, got %v", got)
	}

	peer.handlePacket(announcePacket(t, testAnnounce()), 0)
	if peer.State() != PeerAccepted {
		t.Fatalf("Expected accepted peer, got %s", peer.State())
	}

	peer.handlePacket(bitplanePacket(t, 1, 0, 0, planes, []byte{1, 1}), 0)
	if got := buffer.GetStats().StoredBitplanes; got != 1 {
		t.Errorf("Expected 1 stored bitplane, got %d", got)
	}

	stats := peer.GetStatistics()
	if stats.PeerState != "accepted" {
		t.Errorf("Expected peer state accepted, got %s", stats.PeerState)
	}
	if stats.PeerAnnounce == "" {
		t.Error("Expected peer announce in statistics")
	}
}

func TestPeerHandleInvalidPacket(t *testing.T) {
	peer, _, m := newTestPeer(t, testTransportConfig())

	packet := &incomingPacket{
		data:       []byte{0x07, 0x00, 0x08, 0, 0, 0, 0, 0},
		remoteAddr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5000},
	}
	peer.handlePacket(packet, 0)

	if got := peer.GetStatistics().ParseErrors; got != 1 {
		t.Errorf("Expected 1 parse error, got %d", got)
	}
	if got := testutil.ToFloat64(m.ParseErrors); got != 1 {
		t.Errorf("Expected parse error metric 1, got %v", got)
	}
}

func TestPeerSendBeforeStart(t *testing.T) {
	peer, _, _ := newTestPeer(t, testTransportConfig())

	if err := peer.SendAnnounce(); err == nil {
		t.Error("Expected error sending before Start")
	}
}

// startPair starts a receiving peer and a sender aimed at it
func startPair(t *testing.T, maxBitplanes int) (sender *Peer, receiver *Peer, buffer *audio.Buffer) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	receiver, buffer, _ = newTestPeer(t, testTransportConfig())
	if err := receiver.Start(ctx); err != nil {
		t.Fatalf("Failed to start receiver: %v", err)
	}
	t.Cleanup(func() { receiver.Stop() })

	cfg := testTransportConfig()
	cfg.PeerAddress = receiver.LocalAddr().String()
	cfg.MaxBitplanes = maxBitplanes
	sender, _, _ = newTestPeer(t, cfg)
	if err := sender.Start(ctx); err != nil {
		t.Fatalf("Failed to start sender: %v", err)
	}
	t.Cleanup(func() { sender.Stop() })

	return sender, receiver, buffer
}

func waitStored(t *testing.T, buffer *audio.Buffer, expected uint64) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for buffer.GetStats().StoredBitplanes < expected {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d stored bitplanes, got %d", expected, buffer.GetStats().StoredBitplanes)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func randomPacked(planes int) *audio.Chunk {
	rng := rand.New(rand.NewPCG(3, 4))
	packed := audio.NewChunk(testFrames, testChannels)
	for i := range packed.Samples {
		packed.Samples[i] = int32(rng.Uint32N(1 << planes))
	}
	return packed
}

// playChunk plays the buffer until chunkNumber comes up and returns a copy of it
func playChunk(buffer *audio.Buffer, chunkNumber uint16) *audio.Chunk {
	var out *audio.Chunk
	for i := 0; i < buffer.Cells() && out == nil; i++ {
		buffer.Play(func(slot *audio.Slot) {
			if slot.ReceivedBitplanes > 0 && slot.ChunkNumber == chunkNumber {
				out = slot.Chunk.Clone()
			}
			slot.Reset()
		})
	}
	return out
}

func TestPeerLoopback(t *testing.T) {
	planes := testBitplanes + 1
	sender, receiver, buffer := startPair(t, 0)
	packed := randomPacked(planes)

	n, err := sender.SendChunk(7, packed, planes)
	if err != nil {
		t.Fatalf("SendChunk failed: %v", err)
	}
	if n != planes*testChannels {
		t.Errorf("Expected %d packets, got %d", planes*testChannels, n)
	}

	waitStored(t, buffer, uint64(planes*testChannels))

	got := playChunk(buffer, 7)
	if got == nil {
		t.Fatal("Expected chunk 7 to be played")
	}
	if diff := cmp.Diff(packed.Samples, got.Samples); diff != "" {
		t.Errorf("Received chunk mismatch (-sent +received):\n%s", diff)
	}

	if got := sender.GetStatistics().PacketsSent; got < uint64(n) {
		t.Errorf("Expected at least %d packets sent, got %d", n, got)
	}

	deadline := time.Now().Add(3 * time.Second)
	for receiver.State() != PeerAccepted {
		if time.Now().After(deadline) {
			t.Fatalf("Expected sender announce to be accepted, got %s", receiver.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPeerMaxBitplanes(t *testing.T) {
	planes := testBitplanes + 1
	sender, _, buffer := startPair(t, 4)
	packed := randomPacked(planes)

	n, err := sender.SendChunk(3, packed, planes)
	if err != nil {
		t.Fatalf("SendChunk failed: %v", err)
	}
	if n != 4*testChannels {
		t.Errorf("Expected %d packets, got %d", 4*testChannels, n)
	}

	waitStored(t, buffer, uint64(4*testChannels))

	got := playChunk(buffer, 3)
	if got == nil {
		t.Fatal("Expected chunk 3 to be played")
	}

	// Only the sign plane and the three planes below it arrive
	mask := int32(0xF) << (planes - 4)
	expected := make([]int32, len(packed.Samples))
	for i, v := range packed.Samples {
		expected[i] = v & mask
	}
	if diff := cmp.Diff(expected, got.Samples); diff != "" {
		t.Errorf("Received chunk mismatch (-expected +received):\n%s", diff)
	}
}
