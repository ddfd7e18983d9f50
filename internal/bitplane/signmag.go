// Package bitplane converts signed coefficients to the sign-magnitude words
// sent progressively over the network, one bitplane at a time, and back.
//
// A word with B magnitude bitplanes keeps the sign at bit B and the magnitude
// in bits [0, B). Losing low-order planes only shrinks magnitudes toward zero;
// it never flips a sign or disturbs other bits.
package bitplane

import (
	"errors"
	"fmt"
)

// MaxBitplanes is the widest magnitude that still fits an int32 word with its sign
const MaxBitplanes = 30

// ErrInvalidBitplanes indicates a magnitude width outside [1, MaxBitplanes]
var ErrInvalidBitplanes = errors.New("bitplane: bitplane count must be between 1 and 30")

// OverflowPolicy decides what happens to magnitudes wider than the codec
type OverflowPolicy int

const (
	// Saturate clamps the magnitude to the largest representable value
	Saturate OverflowPolicy = iota
	// Truncate masks off the magnitude bits above the codec width
	Truncate
)

// String returns the configuration name of the policy
func (p OverflowPolicy) String() string {
	switch p {
	case Saturate:
		return "saturate"
	case Truncate:
		return "truncate"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParseOverflowPolicy maps a configuration name to a policy
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "saturate", "":
		return Saturate, nil
	case "truncate":
		return Truncate, nil
	default:
		return 0, fmt.Errorf("bitplane: unknown overflow policy %q", s)
	}
}

// Codec packs and unpacks sign-magnitude words of a fixed width
type Codec struct {
	bitplanes int
	sign      uint32
	mask      uint32
	policy    OverflowPolicy
}

// NewCodec creates a codec with bitplanes magnitude bits plus one sign bit
func NewCodec(bitplanes int, policy OverflowPolicy) (*Codec, error) {
	if bitplanes < 1 || bitplanes > MaxBitplanes {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBitplanes, bitplanes)
	}
	return &Codec{
		bitplanes: bitplanes,
		sign:      1 << bitplanes,
		mask:      1<<bitplanes - 1,
		policy:    policy,
	}, nil
}

// Bitplanes returns the number of magnitude bitplanes
func (c *Codec) Bitplanes() int {
	return c.bitplanes
}

// Planes returns the number of planes in a word, sign included
func (c *Codec) Planes() int {
	return c.bitplanes + 1
}

// SignPlane returns the bit position of the sign
func (c *Codec) SignPlane() int {
	return c.bitplanes
}

// MaxMagnitude returns the largest magnitude a word can carry
func (c *Codec) MaxMagnitude() int32 {
	return int32(c.mask)
}

// Policy returns the overflow policy
func (c *Codec) Policy() OverflowPolicy {
	return c.policy
}

// Pack writes the sign-magnitude word of every src value to dst and returns
// how many magnitudes did not fit. dst may alias src.
func (c *Codec) Pack(src, dst []int32) int {
	overflows := 0
	dst = dst[:len(src)]
	for i, v := range src {
		var w uint32
		mag := int64(v)
		if mag < 0 {
			mag = -mag
			w = c.sign
		}
		if mag > int64(c.mask) {
			overflows++
			if c.policy == Saturate {
				mag = int64(c.mask)
			}
		}
		w |= uint32(mag) & c.mask
		dst[i] = int32(w)
	}
	return overflows
}

// Unpack restores signed values from sign-magnitude words. Bits above the
// sign plane are ignored. dst may alias src.
func (c *Codec) Unpack(src, dst []int32) {
	dst = dst[:len(src)]
	for i, v := range src {
		w := uint32(v)
		s := int32(w>>c.bitplanes) & 1
		m := int32(w & c.mask)
		dst[i] = m - 2*m*s
	}
}

// KeepPlanes zeroes every plane except the received most significant ones,
// counting the sign plane first. It models a chunk for which only a prefix of
// the transmitted planes arrived.
func (c *Codec) KeepPlanes(words []int32, received int) {
	if received >= c.Planes() {
		return
	}
	var keep uint32
	if received > 0 {
		// Planes bitplanes down to bitplanes-received+1
		low := c.bitplanes - received + 1
		keep = (c.sign | c.mask) &^ (1<<low - 1)
	}
	for i, v := range words {
		words[i] = int32(uint32(v) & keep)
	}
}
