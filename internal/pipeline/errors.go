package pipeline

import "errors"

var (
	// ErrNotReady is returned by Send and Play before Start has calibrated the session
	ErrNotReady = errors.New("pipeline: session not started")

	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("pipeline: session closed")

	// ErrShapeMismatch indicates a chunk whose frames or channels differ from the session
	ErrShapeMismatch = errors.New("pipeline: chunk shape does not match session")

	// ErrBitplanesExceedPrecision indicates a calibrated bitplane count that
	// does not fit the coefficient word
	ErrBitplanesExceedPrecision = errors.New("pipeline: calibrated bitplanes exceed coefficient precision")

	// ErrInvalidSession indicates an unusable session configuration
	ErrInvalidSession = errors.New("pipeline: invalid session configuration")
)
