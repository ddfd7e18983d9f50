package wavelet

import (
	"fmt"
	"slices"
	"sort"
)

// PaddingPeriodization is the only supported boundary extension mode
const PaddingPeriodization = "periodization"

// Wavelet names
const (
	Bior35 = "bior3.5"
	DB2    = "db2"
	Haar   = "haar"
	CDF53  = "cdf53"
)

// Filter is a two-channel biorthogonal filter bank. All four filters have the
// same even length; shorter filters are zero padded.
type Filter struct {
	Name  string
	DecLo []float64 // Analysis low-pass
	DecHi []float64 // Analysis high-pass
	RecLo []float64 // Synthesis low-pass
	RecHi []float64 // Synthesis high-pass
}

// Len returns the filter length
func (f *Filter) Len() int {
	return len(f.DecLo)
}

// bior3.5: quadratic B-spline synthesis low-pass, 12-tap analysis low-pass
var bior35 = &Filter{
	Name: Bior35,
	DecLo: []float64{
		-0.013810679320049757, 0.04143203796014927, 0.052480581416189075, -0.26792717880896527,
		-0.07181553246425874, 0.966747552403483, 0.966747552403483, -0.07181553246425874,
		-0.26792717880896527, 0.052480581416189075, 0.04143203796014927, -0.013810679320049757,
	},
	DecHi: []float64{
		0, 0, 0, 0,
		-0.1767766952966369, 0.5303300858899107, -0.5303300858899107, 0.1767766952966369,
		0, 0, 0, 0,
	},
	RecLo: []float64{
		0, 0, 0, 0,
		0.1767766952966369, 0.5303300858899107, 0.5303300858899107, 0.1767766952966369,
		0, 0, 0, 0,
	},
	RecHi: []float64{
		-0.013810679320049757, -0.04143203796014927, 0.052480581416189075, 0.26792717880896527,
		-0.07181553246425874, -0.966747552403483, 0.966747552403483, 0.07181553246425874,
		-0.26792717880896527, -0.052480581416189075, 0.04143203796014927, 0.013810679320049757,
	},
}

// orthogonal derives the quadrature mirror bank from an orthogonal low-pass
func orthogonal(name string, decLo []float64) *Filter {
	n := len(decLo)
	recLo := slices.Clone(decLo)
	slices.Reverse(recLo)
	recHi := make([]float64, n)
	for i, v := range decLo {
		if i%2 == 0 {
			recHi[i] = v
		} else {
			recHi[i] = -v
		}
	}
	decHi := slices.Clone(recHi)
	slices.Reverse(decHi)
	return &Filter{Name: name, DecLo: slices.Clone(decLo), DecHi: decHi, RecLo: recLo, RecHi: recHi}
}

var filters = map[string]*Filter{
	Bior35: bior35,
	DB2: orthogonal(DB2, []float64{
		-0.12940952255092145, 0.22414386804185735, 0.836516303737469, 0.48296291314469025,
	}),
	Haar: orthogonal(Haar, []float64{0.7071067811865476, 0.7071067811865476}),
}

// LookupFilter returns the filter bank registered under name
func LookupFilter(name string) (*Filter, error) {
	f, ok := filters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWavelet, name)
	}
	return f, nil
}

// Names lists every wavelet accepted by New, sorted
func Names() []string {
	names := make([]string, 0, len(filters)+1)
	for name := range filters {
		names = append(names, name)
	}
	names = append(names, CDF53)
	sort.Strings(names)
	return names
}
