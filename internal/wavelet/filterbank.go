package wavelet

import "github.com/skypro1111/binaural-intercom/internal/audio"

// filterBank runs a Filter as a periodized, critically sampled two-channel
// bank. All scratch is allocated once for a fixed chunk length.
type filterBank struct {
	f      *Filter
	slices SliceMap
	work   []float64 // approximation of the current level
	tmp    []float64 // synthesis output / analysis low-pass
	coef   []float64 // flattened coefficients
}

func newFilterBank(f *Filter, slices SliceMap) *filterBank {
	n := slices.Total()
	return &filterBank{
		f:      f,
		slices: slices,
		work:   make([]float64, n),
		tmp:    make([]float64, n),
		coef:   make([]float64, n),
	}
}

// wrapIndex maps i into [0, n) for periodic extension
func wrapIndex(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// analyze splits x into low and high halves:
//
//	low[k]  = sum_j DecLo[j] * x[(2k+1-j) mod N]
//	high[k] = sum_j DecHi[j] * x[(2k+1-j) mod N]
func (b *filterBank) analyze(x, low, high []float64) {
	n := len(x)
	lo, hi := b.f.DecLo, b.f.DecHi
	for k := range low {
		var sl, sh float64
		for j := range lo {
			v := x[wrapIndex(2*k+1-j, n)]
			sl += lo[j] * v
			sh += hi[j] * v
		}
		low[k] = sl
		high[k] = sh
	}
}

// synthesize merges low and high halves back into y. The bank delays the
// signal by len-1 samples; the output index is advanced to cancel it.
func (b *filterBank) synthesize(low, high, y []float64) {
	n := len(y)
	lo, hi := b.f.RecLo, b.f.RecHi
	shift := 2 - len(lo)
	clear(y)
	for k := range low {
		a, d := low[k], high[k]
		for j := range lo {
			y[wrapIndex(2*k+j+shift, n)] += a*lo[j] + d*hi[j]
		}
	}
}

func (b *filterBank) forward(samples, coeffs []int32) {
	n := b.slices.Total()
	cur := b.work[:n]
	for i, v := range samples[:n] {
		cur[i] = float64(v)
	}

	levels := b.slices.Levels()
	for level := 1; level <= levels; level++ {
		half := len(cur) / 2
		d := b.slices.Detail(level)
		low := b.tmp[:half]
		b.analyze(cur, low, b.coef[d.Offset:d.Offset+d.Length])
		copy(cur[:half], low)
		cur = cur[:half]
	}
	copy(b.coef[:len(cur)], cur)

	for i, v := range b.coef[:n] {
		coeffs[i] = audio.ClipFloat(v, 32)
	}
}

func (b *filterBank) inverse(coeffs, samples []int32, bits int) {
	n := b.slices.Total()
	for i, v := range coeffs[:n] {
		b.coef[i] = float64(v)
	}

	a := b.slices.Approximation()
	cur := b.work[:a.Length]
	copy(cur, b.coef[:a.Length])

	for level := b.slices.Levels(); level >= 1; level-- {
		d := b.slices.Detail(level)
		y := b.tmp[:2*len(cur)]
		b.synthesize(cur, b.coef[d.Offset:d.Offset+d.Length], y)
		cur = b.work[:len(y)]
		copy(cur, y)
	}

	for i, v := range cur {
		samples[i] = audio.ClipFloat(v, bits)
	}
}
