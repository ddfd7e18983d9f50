package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Protocol constants
const (
	// Packet types
	PacketTypeAnnounce = 0x01
	PacketTypeBitplane = 0x02

	// Packet structure sizes
	HeaderSize          = 8  // 1 + 2 + 2 + 1 + 1 + 1 bytes
	AnnouncePayloadSize = 22 // 2 + 1 + 1 + 1 + 1 + 16 bytes

	// String field sizes in announce payload
	WaveletNameSize = 16

	// MaxPacketSize bounds a datagram; the length field is 16 bits
	MaxPacketSize = 0xFFFF
)

// ErrLayoutMismatch indicates a peer announced a session layout that differs
// from the local one
var ErrLayoutMismatch = errors.New("protocol: peer session layout mismatch")

// Header represents the 8-byte packet header
// Layout: [PacketType:1][PacketLen:2][ChunkNumber:2][Channel:1][Bitplane:1][Planes:1]
type Header struct {
	PacketType  uint8  // 0x01=Announce, 0x02=Bitplane
	PacketLen   uint16 // Total packet size (header + payload)
	ChunkNumber uint16 // Wrapping chunk counter
	Channel     uint8  // Channel the bitplane belongs to
	Bitplane    uint8  // Bit position carried by the payload
	Planes      uint8  // Planes per word, sign included
}

// Announce describes the chunk layout of the sending session
// Layout: [Frames:2][Channels:1][Bitplanes:1][Levels:1][Mode:1][Wavelet:16]
type Announce struct {
	Frames    uint16                // Frames per chunk
	Channels  uint8                 // Channels per chunk
	Bitplanes uint8                 // Magnitude bitplanes per word
	Levels    uint8                 // Decomposition levels
	Mode      uint8                 // Pipeline mode identifier
	Wavelet   [WaveletNameSize]byte // Null-terminated string (16 bytes)
}

// ParsedPacket represents a fully parsed packet
type ParsedPacket struct {
	Header   *Header
	Announce *Announce // Only set for announce packets
	Plane    []byte    // Only set for bitplane packets, aliases the input
}

// ParseHeader parses the 8-byte packet header
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("header too short: expected %d bytes, got %d", HeaderSize, len(data))
	}

	header := &Header{
		PacketType:  data[0],
		PacketLen:   binary.BigEndian.Uint16(data[1:3]),
		ChunkNumber: binary.BigEndian.Uint16(data[3:5]),
		Channel:     data[5],
		Bitplane:    data[6],
		Planes:      data[7],
	}

	return header, nil
}

// PutHeader writes the header into the first HeaderSize bytes of dst
func PutHeader(dst []byte, h *Header) {
	dst[0] = h.PacketType
	binary.BigEndian.PutUint16(dst[1:3], h.PacketLen)
	binary.BigEndian.PutUint16(dst[3:5], h.ChunkNumber)
	dst[5] = h.Channel
	dst[6] = h.Bitplane
	dst[7] = h.Planes
}

// ParseAnnouncePayload parses the 22-byte announce payload
func ParseAnnouncePayload(data []byte) (*Announce, error) {
	if len(data) < AnnouncePayloadSize {
		return nil, fmt.Errorf("announce payload too short: expected %d bytes, got %d",
			AnnouncePayloadSize, len(data))
	}

	a := &Announce{
		Frames:    binary.BigEndian.Uint16(data[0:2]),
		Channels:  data[2],
		Bitplanes: data[3],
		Levels:    data[4],
		Mode:      data[5],
	}
	copy(a.Wavelet[:], data[6:6+WaveletNameSize])

	return a, nil
}

// ParsePacket parses a complete packet (header + payload)
func ParsePacket(data []byte) (*ParsedPacket, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("packet too short: expected at least %d bytes, got %d", HeaderSize, len(data))
	}

	header, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if int(header.PacketLen) != len(data) {
		return nil, fmt.Errorf("packet length mismatch: header says %d bytes, got %d bytes",
			header.PacketLen, len(data))
	}

	if err := ValidateHeader(header); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	packet := &ParsedPacket{Header: header}
	payloadData := data[HeaderSize:]

	switch header.PacketType {
	case PacketTypeAnnounce:
		payload, err := ParseAnnouncePayload(payloadData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse announce payload: %w", err)
		}
		packet.Announce = payload

	case PacketTypeBitplane:
		packet.Plane = payloadData

	default:
		return nil, fmt.Errorf("unknown packet type: 0x%02x", header.PacketType)
	}

	return packet, nil
}

// ValidateHeader validates the packet header fields
func ValidateHeader(header *Header) error {
	if !IsValidPacketType(header.PacketType) {
		return fmt.Errorf("invalid packet type: 0x%02x", header.PacketType)
	}

	if header.PacketLen < HeaderSize {
		return fmt.Errorf("packet length too small: %d (minimum %d)", header.PacketLen, HeaderSize)
	}

	expectedPayloadSize := int(header.PacketLen) - HeaderSize
	switch header.PacketType {
	case PacketTypeAnnounce:
		if expectedPayloadSize != AnnouncePayloadSize {
			return fmt.Errorf("announce packet payload size mismatch: expected %d, got %d",
				AnnouncePayloadSize, expectedPayloadSize)
		}
	case PacketTypeBitplane:
		if expectedPayloadSize == 0 {
			return fmt.Errorf("bitplane packet has no payload")
		}
		if header.Planes == 0 {
			return fmt.Errorf("bitplane packet declares zero planes")
		}
		if header.Bitplane >= header.Planes {
			return fmt.Errorf("bitplane %d out of range (planes %d)", header.Bitplane, header.Planes)
		}
	}

	return nil
}

// IsValidPacketType checks if the packet type is valid
func IsValidPacketType(ptype uint8) bool {
	return ptype == PacketTypeAnnounce || ptype == PacketTypeBitplane
}

// AppendBitplane appends a bitplane packet carrying plane to dst
func AppendBitplane(dst []byte, chunkNumber uint16, channel, bitplane, planes int, plane []byte) ([]byte, error) {
	size := HeaderSize + len(plane)
	if size > MaxPacketSize {
		return dst, fmt.Errorf("bitplane payload too large: %d bytes", len(plane))
	}
	if bitplane < 0 || bitplane >= planes || planes > 0xFF || channel < 0 || channel > 0xFF {
		return dst, fmt.Errorf("invalid bitplane header: channel=%d bitplane=%d planes=%d", channel, bitplane, planes)
	}

	start := len(dst)
	dst = append(dst, make([]byte, HeaderSize)...)
	PutHeader(dst[start:], &Header{
		PacketType:  PacketTypeBitplane,
		PacketLen:   uint16(size),
		ChunkNumber: chunkNumber,
		Channel:     uint8(channel),
		Bitplane:    uint8(bitplane),
		Planes:      uint8(planes),
	})
	return append(dst, plane...), nil
}

// MarshalBinary encodes a complete announce packet
func (a *Announce) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize+AnnouncePayloadSize)
	PutHeader(buf, &Header{
		PacketType: PacketTypeAnnounce,
		PacketLen:  uint16(len(buf)),
	})

	p := buf[HeaderSize:]
	binary.BigEndian.PutUint16(p[0:2], a.Frames)
	p[2] = a.Channels
	p[3] = a.Bitplanes
	p[4] = a.Levels
	p[5] = a.Mode
	copy(p[6:], a.Wavelet[:])

	return buf, nil
}

// SetWavelet stores name as a null-terminated string, truncating if needed
func (a *Announce) SetWavelet(name string) {
	a.Wavelet = [WaveletNameSize]byte{}
	copy(a.Wavelet[:WaveletNameSize-1], name)
}

// GetWavelet extracts the wavelet name as a string
func (a *Announce) GetWavelet() string {
	return ExtractString(a.Wavelet[:])
}

// Matches reports whether a peer announcing other can exchange chunks with
// the session described by a
func (a *Announce) Matches(other *Announce) error {
	switch {
	case a.Frames != other.Frames:
		return fmt.Errorf("%w: frames %d != %d", ErrLayoutMismatch, other.Frames, a.Frames)
	case a.Channels != other.Channels:
		return fmt.Errorf("%w: channels %d != %d", ErrLayoutMismatch, other.Channels, a.Channels)
	case a.Bitplanes != other.Bitplanes:
		return fmt.Errorf("%w: bitplanes %d != %d", ErrLayoutMismatch, other.Bitplanes, a.Bitplanes)
	case a.Levels != other.Levels:
		return fmt.Errorf("%w: levels %d != %d", ErrLayoutMismatch, other.Levels, a.Levels)
	case a.Mode != other.Mode:
		return fmt.Errorf("%w: mode %d != %d", ErrLayoutMismatch, other.Mode, a.Mode)
	case a.Wavelet != other.Wavelet:
		return fmt.Errorf("%w: wavelet %q != %q", ErrLayoutMismatch, other.GetWavelet(), a.GetWavelet())
	}
	return nil
}

// ExtractString extracts a null-terminated string from a fixed-size byte array
func ExtractString(buf []byte) string {
	nullPos := len(buf)
	for i, b := range buf {
		if b == 0 {
			nullPos = i
			break
		}
	}
	return string(buf[:nullPos])
}

// String returns a human-readable representation of the header
func (h *Header) String() string {
	var packetType string

	switch h.PacketType {
	case PacketTypeAnnounce:
		packetType = "Announce"
	case PacketTypeBitplane:
		packetType = "Bitplane"
	default:
		packetType = fmt.Sprintf("Unknown(0x%02x)", h.PacketType)
	}

	return fmt.Sprintf("Header{Type:%s, Len:%d, Chunk:%d, Channel:%d, Bitplane:%d/%d}",
		packetType, h.PacketLen, h.ChunkNumber, h.Channel, h.Bitplane, h.Planes)
}

// String returns a human-readable representation of the announce payload
func (a *Announce) String() string {
	return fmt.Sprintf("Announce{Frames:%d, Channels:%d, Bitplanes:%d, Levels:%d, Mode:%d, Wavelet:%q}",
		a.Frames, a.Channels, a.Bitplanes, a.Levels, a.Mode, a.GetWavelet())
}
