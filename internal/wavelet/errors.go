package wavelet

import "errors"

var (
	// ErrUnknownWavelet indicates a wavelet name with no registered kernel.
	ErrUnknownWavelet = errors.New("wavelet: unknown wavelet")

	// ErrUnsupportedPadding indicates a boundary extension other than periodization.
	ErrUnsupportedPadding = errors.New("wavelet: unsupported padding mode (only periodization)")

	// ErrInvalidLevels indicates a decomposition depth below 1.
	ErrInvalidLevels = errors.New("wavelet: invalid decomposition levels (must be >= 1)")

	// ErrInvalidFrames indicates a chunk length that cannot be halved levels times.
	ErrInvalidFrames = errors.New("wavelet: frames per chunk must be a positive multiple of 2^levels")

	// ErrDegenerateRange indicates that the calibration probe produced a
	// coefficient range too small to derive a bitplane count from.
	ErrDegenerateRange = errors.New("wavelet: degenerate coefficient range in calibration probe")
)
