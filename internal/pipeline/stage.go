package pipeline

import (
	"github.com/skypro1111/binaural-intercom/internal/audio"
	"github.com/skypro1111/binaural-intercom/internal/bitplane"
	"github.com/skypro1111/binaural-intercom/internal/wavelet"
)

// Stage is one invertible, in-place chunk transform
type Stage interface {
	Name() string
	Forward(c *audio.Chunk)
	Inverse(c *audio.Chunk)
}

// Pipeline is an ordered list of stages. Forward runs them in order and
// Inverse in reverse order.
type Pipeline []Stage

// Forward runs every stage on c
func (p Pipeline) Forward(c *audio.Chunk) {
	for _, s := range p {
		s.Forward(c)
	}
}

// Inverse undoes every stage on c
func (p Pipeline) Inverse(c *audio.Chunk) {
	for i := len(p) - 1; i >= 0; i-- {
		p[i].Inverse(c)
	}
}

// Names returns the stage names in forward order
func (p Pipeline) Names() []string {
	names := make([]string, len(p))
	for i, s := range p {
		names[i] = s.Name()
	}
	return names
}

// SubbandStage decomposes one channel of the chunk into subband coefficients.
// The other channels are left untouched.
type SubbandStage struct {
	t       *wavelet.Transform
	channel int
	samples []int32
	coeffs  []int32
}

// NewSubbandStage wraps t for channel, allocating its scratch once
func NewSubbandStage(t *wavelet.Transform, channel int) *SubbandStage {
	return &SubbandStage{
		t:       t,
		channel: channel,
		samples: make([]int32, t.Config().Frames),
		coeffs:  make([]int32, t.Coefficients()),
	}
}

// Name implements Stage
func (s *SubbandStage) Name() string {
	return "subband-" + s.t.Config().Wavelet
}

// Forward implements Stage
func (s *SubbandStage) Forward(c *audio.Chunk) {
	c.CopyChannel(s.channel, s.samples)
	s.t.Forward(s.samples, s.coeffs)
	c.SetChannel(s.channel, s.coeffs)
}

// Inverse implements Stage
func (s *SubbandStage) Inverse(c *audio.Chunk) {
	c.CopyChannel(s.channel, s.coeffs)
	s.t.Inverse(s.coeffs, s.samples)
	c.SetChannel(s.channel, s.samples)
}

// PackStage converts every value of the chunk to a sign-magnitude word and
// back. It remembers how many values overflowed on the last Forward.
type PackStage struct {
	codec     *bitplane.Codec
	overflows int
}

// NewPackStage wraps codec
func NewPackStage(codec *bitplane.Codec) *PackStage {
	return &PackStage{codec: codec}
}

// Name implements Stage
func (s *PackStage) Name() string {
	return "bitplane-" + s.codec.Policy().String()
}

// Forward implements Stage
func (s *PackStage) Forward(c *audio.Chunk) {
	s.overflows = s.codec.Pack(c.Samples, c.Samples)
}

// Inverse implements Stage
func (s *PackStage) Inverse(c *audio.Chunk) {
	s.codec.Unpack(c.Samples, c.Samples)
}

// Overflows returns the overflow count of the last Forward
func (s *PackStage) Overflows() int {
	return s.overflows
}

// Codec returns the underlying codec
func (s *PackStage) Codec() *bitplane.Codec {
	return s.codec
}
