package wavelet

import "fmt"

// Subband locates one group of coefficients inside the flattened array
type Subband struct {
	Name   string `json:"name"`  // "a4", "d4", ..., "d1"
	Level  int    `json:"level"` // Decomposition level, 1 is the finest
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// SliceMap is the fixed subband layout of a coefficient array:
// the approximation of the deepest level first, then details from the
// deepest level to the finest.
type SliceMap []Subband

// NewSliceMap computes the periodization layout for a chunk of frames samples
func NewSliceMap(frames, levels int) (SliceMap, error) {
	if levels < 1 {
		return nil, ErrInvalidLevels
	}
	if frames <= 0 || frames%(1<<levels) != 0 {
		return nil, fmt.Errorf("%w: frames=%d levels=%d", ErrInvalidFrames, frames, levels)
	}

	m := make(SliceMap, 0, levels+1)
	deepest := frames >> levels
	m = append(m, Subband{Name: fmt.Sprintf("a%d", levels), Level: levels, Offset: 0, Length: deepest})
	offset := deepest
	for level := levels; level >= 1; level-- {
		length := frames >> level
		m = append(m, Subband{Name: fmt.Sprintf("d%d", level), Level: level, Offset: offset, Length: length})
		offset += length
	}
	return m, nil
}

// Levels returns the decomposition depth
func (m SliceMap) Levels() int {
	return len(m) - 1
}

// Total returns the length of the flattened coefficient array
func (m SliceMap) Total() int {
	last := m[len(m)-1]
	return last.Offset + last.Length
}

// Approximation returns the low-pass subband of the deepest level
func (m SliceMap) Approximation() Subband {
	return m[0]
}

// Detail returns the high-pass subband of the given level (1 = finest)
func (m SliceMap) Detail(level int) Subband {
	return m[1+m.Levels()-level]
}
