package wavelet

import (
	"fmt"
	"math/bits"
	"math/rand/v2"
)

// Probe returns a deterministic random chunk spanning the full signed range of
// sampleBits, used to estimate the worst-case coefficient range
func Probe(frames, sampleBits int, seed uint64) []int32 {
	rng := rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb))
	span := int64(1) << sampleBits
	lo := -(span / 2)
	probe := make([]int32, frames)
	for i := range probe {
		probe[i] = int32(lo + rng.Int64N(span))
	}
	return probe
}

// Calibrate transforms probe and returns the number of bitplanes needed to
// represent the observed coefficient range, floor(log2(max-min)). The result
// is a probabilistic bound: real audio may exceed it.
func (t *Transform) Calibrate(probe []int32) (int, error) {
	if len(probe) != t.cfg.Frames {
		return 0, fmt.Errorf("wavelet: probe has %d samples, expected %d", len(probe), t.cfg.Frames)
	}
	coeffs := make([]int32, t.Coefficients())
	t.Forward(probe, coeffs)
	lo, hi := coeffs[0], coeffs[0]
	for _, c := range coeffs[1:] {
		lo = min(lo, c)
		hi = max(hi, c)
	}
	return BitplanesForRange(lo, hi)
}

// BitplanesForRange returns floor(log2(hi-lo)). A range below 2 cannot yield
// a positive bitplane count and is reported as ErrDegenerateRange.
func BitplanesForRange(lo, hi int32) (int, error) {
	r := int64(hi) - int64(lo)
	if r < 2 {
		return 0, fmt.Errorf("%w: max-min=%d", ErrDegenerateRange, r)
	}
	return bits.Len64(uint64(r)) - 1, nil
}
