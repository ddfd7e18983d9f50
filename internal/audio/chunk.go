package audio

import (
	"fmt"
	"math"
)

// Chunk is one audio period of interleaved samples (frames × channels).
// Samples hold either PCM samples or, once packed, sign-magnitude words.
type Chunk struct {
	Frames   int
	Channels int
	Samples  []int32 // Interleaved: frame i, channel c at i*Channels+c
}

// NewChunk allocates a zeroed chunk
func NewChunk(frames, channels int) *Chunk {
	return &Chunk{
		Frames:   frames,
		Channels: channels,
		Samples:  make([]int32, frames*channels),
	}
}

// At returns the sample of channel ch at frame i
func (c *Chunk) At(i, ch int) int32 {
	return c.Samples[i*c.Channels+ch]
}

// Set stores the sample of channel ch at frame i
func (c *Chunk) Set(i, ch int, v int32) {
	c.Samples[i*c.Channels+ch] = v
}

// CopyChannel deinterleaves channel ch into dst, which must hold Frames values
func (c *Chunk) CopyChannel(ch int, dst []int32) {
	dst = dst[:c.Frames]
	for i, j := 0, ch; i < len(dst); i, j = i+1, j+c.Channels {
		dst[i] = c.Samples[j]
	}
}

// SetChannel interleaves src back into channel ch
func (c *Chunk) SetChannel(ch int, src []int32) {
	src = src[:c.Frames]
	for i, j := 0, ch; i < len(src); i, j = i+1, j+c.Channels {
		c.Samples[j] = src[i]
	}
}

// CopyFrom overwrites c with the samples of src. Shapes must match.
func (c *Chunk) CopyFrom(src *Chunk) error {
	if !c.SameShape(src) {
		return fmt.Errorf("chunk shape mismatch: have %dx%d, got %dx%d",
			c.Frames, c.Channels, src.Frames, src.Channels)
	}
	copy(c.Samples, src.Samples)
	return nil
}

// Clone returns a deep copy of the chunk
func (c *Chunk) Clone() *Chunk {
	out := NewChunk(c.Frames, c.Channels)
	copy(out.Samples, c.Samples)
	return out
}

// Zero clears every sample
func (c *Chunk) Zero() {
	clear(c.Samples)
}

// SameShape reports whether both chunks have the same frames and channels
func (c *Chunk) SameShape(o *Chunk) bool {
	return o != nil && c.Frames == o.Frames && c.Channels == o.Channels && len(c.Samples) == len(o.Samples)
}

// Equal reports whether both chunks have the same shape and samples
func (c *Chunk) Equal(o *Chunk) bool {
	if !c.SameShape(o) {
		return false
	}
	for i, v := range c.Samples {
		if o.Samples[i] != v {
			return false
		}
	}
	return true
}

// FromInt16 fills the chunk from interleaved PCM-16 samples.
// Missing samples (short input) are zeroed.
func (c *Chunk) FromInt16(pcm []int16) {
	n := copyInt16(c.Samples, pcm)
	clear(c.Samples[n:])
}

func copyInt16(dst []int32, src []int16) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = int32(src[i])
	}
	return n
}

// ToInt16 writes the chunk as interleaved PCM-16, clipping out-of-range samples
func (c *Chunk) ToInt16(dst []int16) []int16 {
	if cap(dst) < len(c.Samples) {
		dst = make([]int16, len(c.Samples))
	}
	dst = dst[:len(c.Samples)]
	for i, v := range c.Samples {
		dst[i] = int16(Clip(v, 16))
	}
	return dst
}

// Clip clamps v to the signed range of the given bit width
func Clip(v int32, bits int) int32 {
	if bits >= 32 {
		return v
	}
	hi := int32(1)<<(bits-1) - 1
	lo := -hi - 1
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

// ClipFloat rounds v to the nearest integer (half away from zero) and clamps
// it to the signed range of the given bit width
func ClipFloat(v float64, bits int) int32 {
	r := math.Round(v)
	if bits > 32 {
		bits = 32
	}
	hi := float64(int64(1)<<(bits-1) - 1)
	lo := -hi - 1
	if r > hi {
		return int32(hi)
	}
	if r < lo {
		return int32(lo)
	}
	return int32(r)
}

// Wrap reduces v modulo 2^bits into the signed range of that width, the way a
// fixed-width integer register would
func Wrap(v int32, bits int) int32 {
	if bits >= 32 {
		return v
	}
	shift := 32 - bits
	return (v << shift) >> shift
}
