package pipeline

import (
	"fmt"
	"slices"

	"github.com/skypro1111/binaural-intercom/internal/bitplane"
	"github.com/skypro1111/binaural-intercom/internal/wavelet"
)

// Mode selects the stages of a stereo session
type Mode uint8

const (
	// ModeMono sends samples as packed words without decorrelation
	ModeMono Mode = iota + 1
	// ModeBinaural decorrelates the channels and packs the time-domain samples
	ModeBinaural
	// ModeWavelet decorrelates the channels and decomposes the reference
	// channel into subbands before packing
	ModeWavelet
)

// String returns the configuration name of the mode
func (m Mode) String() string {
	switch m {
	case ModeMono:
		return "mono"
	case ModeBinaural:
		return "binaural"
	case ModeWavelet:
		return "wavelet"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode maps a configuration name to a mode
func ParseMode(s string) (Mode, error) {
	switch s {
	case "mono":
		return ModeMono, nil
	case "binaural":
		return ModeBinaural, nil
	case "wavelet", "":
		return ModeWavelet, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidSession, s)
	}
}

// SessionConfig is fixed at startup and never changes during a session
type SessionConfig struct {
	Channels        int
	Frames          int
	Mode            Mode
	Wavelet         string
	Levels          int
	Padding         string
	SampleBits      int // Storage precision of captured samples
	CoefficientBits int // Storage precision of a packed word, sign included
	Overflow        bitplane.OverflowPolicy
	ProbeSeed       uint64
}

// EffectiveMode returns the mode the session actually runs. A one-channel
// session always runs ModeMono.
func (c SessionConfig) EffectiveMode() Mode {
	if c.Channels == 1 {
		return ModeMono
	}
	return c.Mode
}

// Validate checks the configuration
func (c SessionConfig) Validate() error {
	if c.Channels < 1 || c.Channels > 2 {
		return fmt.Errorf("%w: channels must be 1 or 2, got %d", ErrInvalidSession, c.Channels)
	}
	if c.Frames <= 0 {
		return fmt.Errorf("%w: frames must be positive, got %d", ErrInvalidSession, c.Frames)
	}
	if c.SampleBits < 2 || c.SampleBits > 24 {
		return fmt.Errorf("%w: sample bits must be between 2 and 24, got %d", ErrInvalidSession, c.SampleBits)
	}
	if c.CoefficientBits <= c.SampleBits || c.CoefficientBits > 32 {
		return fmt.Errorf("%w: coefficient bits must be above sample bits and at most 32, got %d",
			ErrInvalidSession, c.CoefficientBits)
	}
	switch c.Overflow {
	case bitplane.Saturate, bitplane.Truncate:
	default:
		return fmt.Errorf("%w: unknown overflow policy %v", ErrInvalidSession, c.Overflow)
	}

	switch c.EffectiveMode() {
	case ModeMono, ModeBinaural:
	case ModeWavelet:
		if !slices.Contains(wavelet.Names(), c.Wavelet) {
			return fmt.Errorf("%w: %w %q", ErrInvalidSession, wavelet.ErrUnknownWavelet, c.Wavelet)
		}
		if c.Padding != "" && c.Padding != wavelet.PaddingPeriodization {
			return fmt.Errorf("%w: %w: %q", ErrInvalidSession, wavelet.ErrUnsupportedPadding, c.Padding)
		}
		if _, err := wavelet.NewSliceMap(c.Frames, c.Levels); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSession, err)
		}
	default:
		return fmt.Errorf("%w: unknown mode %v", ErrInvalidSession, c.Mode)
	}
	return nil
}

// Calibration is the per-session result of Start
type Calibration struct {
	Mode       string           `json:"mode"`
	Bitplanes  int              `json:"bitplanes"`
	Planes     int              `json:"planes"`
	Calibrated bool             `json:"calibrated"`
	SliceMap   wavelet.SliceMap `json:"slice_map,omitempty"`
	Stages     []string         `json:"stages"`
}
