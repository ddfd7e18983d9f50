// Package binaural removes the redundancy between the two channels of a
// stereo chunk by replacing one channel with its difference against the other.
package binaural

import (
	"fmt"

	"github.com/skypro1111/binaural-intercom/internal/audio"
)

// Variant selects which channel becomes the residue
type Variant int

const (
	// Plain keeps channel 1 as reference: channel0 -= channel1
	Plain Variant = iota
	// Transform keeps channel 0 as reference, because channel 0 is the one
	// handed to the subband transform: channel1 -= channel0
	Transform
)

// String returns the configuration name of the variant
func (v Variant) String() string {
	switch v {
	case Plain:
		return "plain"
	case Transform:
		return "transform"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Decorrelator replaces the residue channel with the difference against the
// reference channel and restores it again. Arithmetic wraps at the sample
// precision, so Inverse(Forward(c)) == c for every chunk.
type Decorrelator struct {
	variant Variant
	bits    int
}

// New creates a decorrelator whose arithmetic wraps at sampleBits
func New(variant Variant, sampleBits int) *Decorrelator {
	return &Decorrelator{variant: variant, bits: sampleBits}
}

// Variant returns the configured variant
func (d *Decorrelator) Variant() Variant {
	return d.variant
}

// channels returns (residue, reference) for the variant
func (d *Decorrelator) channels() (int, int) {
	if d.variant == Transform {
		return 1, 0
	}
	return 0, 1
}

// Name implements the pipeline stage naming
func (d *Decorrelator) Name() string {
	return "binaural-" + d.variant.String()
}

// Forward turns the residue channel into residue - reference, in place.
// One-channel chunks are left untouched.
func (d *Decorrelator) Forward(c *audio.Chunk) {
	if c.Channels < 2 {
		return
	}
	res, ref := d.channels()
	s := c.Samples
	for i := 0; i < len(s); i += c.Channels {
		s[i+res] = audio.Wrap(s[i+res]-s[i+ref], d.bits)
	}
}

// Inverse adds the reference channel back onto the residue channel, in place
func (d *Decorrelator) Inverse(c *audio.Chunk) {
	if c.Channels < 2 {
		return
	}
	res, ref := d.channels()
	s := c.Samples
	for i := 0; i < len(s); i += c.Channels {
		s[i+res] = audio.Wrap(s[i+res]+s[i+ref], d.bits)
	}
}
