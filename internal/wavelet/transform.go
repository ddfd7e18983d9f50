package wavelet

import "fmt"

// Config fixes the transform of one session
type Config struct {
	Wavelet    string
	Levels     int
	Frames     int
	Padding    string
	SampleBits int // Precision samples are clipped to on reconstruction
}

type kernel interface {
	forward(samples, coeffs []int32)
	inverse(coeffs, samples []int32, bits int)
}

// Transform maps one channel of a chunk to subband coefficients and back.
// It owns its scratch buffers and is not safe for concurrent use.
type Transform struct {
	cfg    Config
	slices SliceMap
	k      kernel
}

// New validates cfg, computes the slice map and allocates the kernel scratch
func New(cfg Config) (*Transform, error) {
	if cfg.Padding == "" {
		cfg.Padding = PaddingPeriodization
	}
	if cfg.Padding != PaddingPeriodization {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPadding, cfg.Padding)
	}
	if cfg.SampleBits <= 0 || cfg.SampleBits > 32 {
		return nil, fmt.Errorf("wavelet: sample bits must be between 1 and 32, got %d", cfg.SampleBits)
	}

	slices, err := NewSliceMap(cfg.Frames, cfg.Levels)
	if err != nil {
		return nil, err
	}

	t := &Transform{cfg: cfg, slices: slices}
	if cfg.Wavelet == CDF53 {
		t.k = newLifting53(slices)
		return t, nil
	}

	f, err := LookupFilter(cfg.Wavelet)
	if err != nil {
		return nil, err
	}
	t.k = newFilterBank(f, slices)
	return t, nil
}

// Config returns the configuration the transform was built from
func (t *Transform) Config() Config {
	return t.cfg
}

// SliceMap returns the subband layout. Callers must not modify it.
func (t *Transform) SliceMap() SliceMap {
	return t.slices
}

// Coefficients returns the length of the coefficient array
func (t *Transform) Coefficients() int {
	return t.slices.Total()
}

// Forward decomposes samples (Frames values) into coeffs (Coefficients values)
func (t *Transform) Forward(samples, coeffs []int32) {
	t.k.forward(samples, coeffs)
}

// Inverse reconstructs samples from coeffs, rounding to the nearest integer and
// clipping to the configured sample precision. Coefficients zeroed by lost
// bitplanes are valid input.
func (t *Transform) Inverse(coeffs, samples []int32) {
	t.k.inverse(coeffs, samples, t.cfg.SampleBits)
}
