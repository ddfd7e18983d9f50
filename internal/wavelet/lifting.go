package wavelet

import "github.com/skypro1111/binaural-intercom/internal/audio"

// lifting53 is the reversible Le Gall 5/3 wavelet with periodic extension:
//
//	d[i] -= (s[i] + s[i+1]) >> 1
//	s[i] += (d[i-1] + d[i] + 2) >> 2
//
// Both steps are undone exactly, so inverse(forward(x)) == x.
type lifting53 struct {
	slices SliceMap
	work   []int32
	even   []int32
	odd    []int32
}

func newLifting53(slices SliceMap) *lifting53 {
	n := slices.Total()
	return &lifting53{
		slices: slices,
		work:   make([]int32, n),
		even:   make([]int32, n/2),
		odd:    make([]int32, n/2),
	}
}

func (l *lifting53) forward(samples, coeffs []int32) {
	n := l.slices.Total()
	cur := l.work[:n]
	copy(cur, samples[:n])

	levels := l.slices.Levels()
	for level := 1; level <= levels; level++ {
		h := len(cur) / 2
		s, d := l.even[:h], l.odd[:h]
		for i := 0; i < h; i++ {
			s[i] = cur[2*i]
			d[i] = cur[2*i+1]
		}
		// Predict
		for i := 0; i < h; i++ {
			d[i] -= (s[i] + s[(i+1)%h]) >> 1
		}
		// Update
		for i := 0; i < h; i++ {
			d0 := d[(i-1+h)%h]
			s[i] += (d0 + d[i] + 2) >> 2
		}
		det := l.slices.Detail(level)
		copy(coeffs[det.Offset:det.Offset+det.Length], d)
		copy(cur[:h], s)
		cur = cur[:h]
	}
	copy(coeffs[:len(cur)], cur)
}

func (l *lifting53) inverse(coeffs, samples []int32, bits int) {
	a := l.slices.Approximation()
	cur := l.work[:a.Length]
	copy(cur, coeffs[:a.Length])

	for level := l.slices.Levels(); level >= 1; level-- {
		h := len(cur)
		det := l.slices.Detail(level)
		s, d := l.even[:h], l.odd[:h]
		copy(s, cur)
		copy(d, coeffs[det.Offset:det.Offset+det.Length])
		// Undo update
		for i := 0; i < h; i++ {
			d0 := d[(i-1+h)%h]
			s[i] -= (d0 + d[i] + 2) >> 2
		}
		// Undo predict
		for i := 0; i < h; i++ {
			d[i] += (s[i] + s[(i+1)%h]) >> 1
		}
		cur = l.work[:2*h]
		for i := 0; i < h; i++ {
			cur[2*i] = s[i]
			cur[2*i+1] = d[i]
		}
	}

	for i, v := range cur {
		samples[i] = audio.Clip(v, bits)
	}
}
