package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expected    *Header
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid announce header",
			data: []byte{
				0x01,       // PacketType: Announce
				0x00, 0x1E, // PacketLen: 30 (8 + 22)
				0x00, 0x00, // ChunkNumber: 0
				0x00, 0x00, 0x00, // Channel, Bitplane, Planes
			},
			expected: &Header{
				PacketType: PacketTypeAnnounce,
				PacketLen:  30,
			},
			expectError: false,
		},
		{
			name: "valid bitplane header",
			data: []byte{
				0x02,       // PacketType: Bitplane
				0x00, 0x88, // PacketLen: 136 (8 + 128)
				0x30, 0x39, // ChunkNumber: 12345
				0x01, // Channel: 1
				0x11, // Bitplane: 17
				0x12, // Planes: 18
			},
			expected: &Header{
				PacketType:  PacketTypeBitplane,
				PacketLen:   136,
				ChunkNumber: 12345,
				Channel:     1,
				Bitplane:    17,
				Planes:      18,
			},
			expectError: false,
		},
		{
			name:        "header too short",
			data:        []byte{0x01, 0x00},
			expected:    nil,
			expectError: true,
			errorMsg:    "header too short",
		},
		{
			name:        "empty data",
			data:        []byte{},
			expected:    nil,
			expectError: true,
			errorMsg:    "header too short",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseHeader(tt.data)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				} else if *result != *tt.expected {
					t.Errorf("Expected header %+v, got %+v", tt.expected, result)
				}
			}
		})
	}
}

func TestPutHeaderRoundTrip(t *testing.T) {
	h := &Header{PacketType: PacketTypeBitplane, PacketLen: 1000, ChunkNumber: 0xFFFF, Channel: 1, Bitplane: 3, Planes: 17}
	buf := make([]byte, HeaderSize)
	PutHeader(buf, h)

	parsed, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if *parsed != *h {
		t.Errorf("Expected header %+v, got %+v", h, parsed)
	}
}

func TestAnnounceRoundTrip(t *testing.T) {
	a := &Announce{Frames: 1024, Channels: 2, Bitplanes: 17, Levels: 4, Mode: 2}
	a.SetWavelet("bior3.5")

	data, err := a.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	if len(data) != HeaderSize+AnnouncePayloadSize {
		t.Fatalf("Expected %d bytes, got %d", HeaderSize+AnnouncePayloadSize, len(data))
	}

	packet, err := ParsePacket(data)
	if err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}
	if packet.Announce == nil {
		t.Fatal("Expected announce payload")
	}
	if *packet.Announce != *a {
		t.Errorf("Expected %v, got %v", a, packet.Announce)
	}
	if packet.Announce.GetWavelet() != "bior3.5" {
		t.Errorf("Expected wavelet 'bior3.5', got '%s'", packet.Announce.GetWavelet())
	}
}

func TestSetWaveletTruncates(t *testing.T) {
	var a Announce
	a.SetWavelet("a-very-long-wavelet-name")
	if got := a.GetWavelet(); got != "a-very-long-wav" {
		t.Errorf("Expected truncated name, got '%s'", got)
	}
	a.SetWavelet("haar")
	if got := a.GetWavelet(); got != "haar" {
		t.Errorf("Expected 'haar' after reset, got '%s'", got)
	}
}

func TestAppendBitplane(t *testing.T) {
	plane := []byte{0xAA, 0x55, 0x0F}

	data, err := AppendBitplane(nil, 7, 1, 4, 18, plane)
	if err != nil {
		t.Fatalf("AppendBitplane failed: %v", err)
	}

	packet, err := ParsePacket(data)
	if err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}
	want := Header{PacketType: PacketTypeBitplane, PacketLen: 11, ChunkNumber: 7, Channel: 1, Bitplane: 4, Planes: 18}
	if *packet.Header != want {
		t.Errorf("Expected header %+v, got %+v", want, packet.Header)
	}
	if string(packet.Plane) != string(plane) {
		t.Errorf("Expected plane %v, got %v", plane, packet.Plane)
	}

	// Appending reuses the destination buffer
	buf := make([]byte, 0, 64)
	buf, _ = AppendBitplane(buf, 1, 0, 0, 1, plane)
	buf, _ = AppendBitplane(buf, 2, 0, 0, 1, plane)
	if len(buf) != 2*(HeaderSize+len(plane)) {
		t.Errorf("Expected %d bytes, got %d", 2*(HeaderSize+len(plane)), len(buf))
	}
}

func TestAppendBitplaneErrors(t *testing.T) {
	tests := []struct {
		name     string
		channel  int
		bitplane int
		planes   int
		size     int
	}{
		{name: "bitplane above planes", bitplane: 18, planes: 18, size: 1},
		{name: "negative bitplane", bitplane: -1, planes: 18, size: 1},
		{name: "too many planes", bitplane: 0, planes: 300, size: 1},
		{name: "channel out of range", channel: 256, planes: 1, size: 1},
		{name: "payload too large", planes: 1, size: MaxPacketSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := AppendBitplane(nil, 0, tt.channel, tt.bitplane, tt.planes, make([]byte, tt.size)); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestParsePacket(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		errorMsg string
	}{
		{
			name:     "too short",
			data:     []byte{0x02, 0x00},
			errorMsg: "packet too short",
		},
		{
			name:     "length mismatch",
			data:     []byte{0x02, 0x00, 0x20, 0, 0, 0, 0, 1, 0xFF},
			errorMsg: "packet length mismatch",
		},
		{
			name:     "unknown type",
			data:     []byte{0x07, 0x00, 0x09, 0, 0, 0, 0, 1, 0xFF},
			errorMsg: "invalid packet type",
		},
		{
			name:     "bitplane without payload",
			data:     []byte{0x02, 0x00, 0x08, 0, 0, 0, 0, 1},
			errorMsg: "no payload",
		},
		{
			name:     "bitplane out of range",
			data:     []byte{0x02, 0x00, 0x09, 0, 0, 0, 5, 5, 0xFF},
			errorMsg: "out of range",
		},
		{
			name:     "zero planes",
			data:     []byte{0x02, 0x00, 0x09, 0, 0, 0, 0, 0, 0xFF},
			errorMsg: "zero planes",
		},
		{
			name:     "short announce",
			data:     []byte{0x01, 0x00, 0x0A, 0, 0, 0, 0, 0, 0x04, 0x00},
			errorMsg: "announce packet payload size mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePacket(tt.data)
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestAnnounceMatches(t *testing.T) {
	base := Announce{Frames: 1024, Channels: 2, Bitplanes: 17, Levels: 4, Mode: 2}
	base.SetWavelet("bior3.5")

	tests := []struct {
		name    string
		mutate  func(a *Announce)
		wantErr bool
	}{
		{name: "identical", mutate: func(a *Announce) {}},
		{name: "frames", mutate: func(a *Announce) { a.Frames = 512 }, wantErr: true},
		{name: "channels", mutate: func(a *Announce) { a.Channels = 1 }, wantErr: true},
		{name: "bitplanes", mutate: func(a *Announce) { a.Bitplanes = 16 }, wantErr: true},
		{name: "levels", mutate: func(a *Announce) { a.Levels = 5 }, wantErr: true},
		{name: "mode", mutate: func(a *Announce) { a.Mode = 1 }, wantErr: true},
		{name: "wavelet", mutate: func(a *Announce) { a.SetWavelet("db2") }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.mutate(&other)
			err := base.Matches(&other)
			if tt.wantErr && !errors.Is(err, ErrLayoutMismatch) {
				t.Errorf("Expected ErrLayoutMismatch, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestExtractString(t *testing.T) {
	tests := []struct {
		input    []byte
		expected string
	}{
		{input: []byte("haar\x00\x00\x00"), expected: "haar"},
		{input: []byte("cdf53"), expected: "cdf53"},
		{input: []byte{0, 'x'}, expected: ""},
		{input: nil, expected: ""},
	}

	for _, tt := range tests {
		if got := ExtractString(tt.input); got != tt.expected {
			t.Errorf("Expected '%s', got '%s'", tt.expected, got)
		}
	}
}

func TestHeaderString(t *testing.T) {
	h := &Header{PacketType: PacketTypeBitplane, PacketLen: 136, ChunkNumber: 5, Channel: 1, Bitplane: 2, Planes: 18}
	want := "Header{Type:Bitplane, Len:136, Chunk:5, Channel:1, Bitplane:2/18}"
	if h.String() != want {
		t.Errorf("Expected '%s', got '%s'", want, h.String())
	}
}
