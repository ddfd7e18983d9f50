// Package wavelet implements the subband transform of one audio channel:
// a multi-level discrete wavelet decomposition with periodic boundary
// extension, flattened into a single coefficient array through a fixed slice
// map, and its inverse.
//
// Two kinds of kernels are available:
//   - filter banks (bior3.5, db2, haar) computed in floating point and rounded
//     to integer coefficients, reconstructing within ±1 per sample
//   - cdf53, the reversible Le Gall 5/3 lifting scheme in integer arithmetic,
//     reconstructing exactly
//
// With periodization every level halves the signal, so the coefficient array
// has the same length as the chunk:
//
//	[ a_L | d_L | d_(L-1) | ... | d_1 ]
//
// Calibration feeds a full-range random probe through the forward transform
// once per session to size the number of bitplanes the coefficients need.
package wavelet
