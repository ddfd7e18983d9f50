package pipeline

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/skypro1111/binaural-intercom/internal/audio"
	"github.com/skypro1111/binaural-intercom/internal/binaural"
	"github.com/skypro1111/binaural-intercom/internal/bitplane"
	"github.com/skypro1111/binaural-intercom/internal/wavelet"
)

// State of an orchestrator
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Orchestrator runs the send and play paths of one session.
//
// Send and Play are called once per audio period from the same goroutine and
// must not run concurrently. State and Stats may be read from any goroutine.
type Orchestrator struct {
	cfg    SessionConfig
	logger *slog.Logger

	state    atomic.Int32
	cal      Calibration
	pipeline Pipeline
	packer   *PackStage

	chunksSent   atomic.Uint64
	chunksPlayed atomic.Uint64
	overflows    atomic.Uint64
}

// Stats represents orchestrator statistics for monitoring
type Stats struct {
	State        string `json:"state"`
	ChunksSent   uint64 `json:"chunks_sent"`
	ChunksPlayed uint64 `json:"chunks_played"`
	Overflows    uint64 `json:"overflowed_coefficients"`
}

// New validates cfg and returns an orchestrator waiting for Start
func New(cfg SessionConfig, logger *slog.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Padding == "" {
		cfg.Padding = wavelet.PaddingPeriodization
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: logger.With("component", "pipeline"),
	}, nil
}

// Config returns the session configuration
func (o *Orchestrator) Config() SessionConfig {
	return o.cfg
}

// State returns the current state
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Calibration returns the result of Start. It is empty before Start.
func (o *Orchestrator) Calibration() Calibration {
	return o.cal
}

// Start calibrates the session against the deterministic probe of its seed
// and builds the stage list
func (o *Orchestrator) Start() (Calibration, error) {
	probe := wavelet.Probe(o.cfg.Frames, o.cfg.SampleBits, o.cfg.ProbeSeed)
	return o.StartWithProbe(probe)
}

// StartWithProbe is Start with a caller supplied calibration probe. The probe
// is only used in ModeWavelet.
func (o *Orchestrator) StartWithProbe(probe []int32) (Calibration, error) {
	switch o.State() {
	case StateReady:
		return o.cal, nil
	case StateClosed:
		return Calibration{}, ErrClosed
	}

	mode := o.cfg.EffectiveMode()
	bitplanes := o.cfg.SampleBits
	calibrated := false

	var p Pipeline
	var sliceMap wavelet.SliceMap

	switch mode {
	case ModeBinaural:
		p = append(p, binaural.New(binaural.Plain, o.cfg.SampleBits))

	case ModeWavelet:
		t, err := wavelet.New(wavelet.Config{
			Wavelet:    o.cfg.Wavelet,
			Levels:     o.cfg.Levels,
			Frames:     o.cfg.Frames,
			Padding:    o.cfg.Padding,
			SampleBits: o.cfg.SampleBits,
		})
		if err != nil {
			return Calibration{}, fmt.Errorf("failed to create transform: %w", err)
		}

		bitplanes, err = t.Calibrate(probe)
		if err != nil {
			return Calibration{}, fmt.Errorf("calibration failed: %w", err)
		}
		calibrated = true
		sliceMap = t.SliceMap()

		p = append(p,
			binaural.New(binaural.Transform, o.cfg.SampleBits),
			NewSubbandStage(t, 0),
		)
	}

	if bitplanes+1 > o.cfg.CoefficientBits || bitplanes > bitplane.MaxBitplanes {
		return Calibration{}, fmt.Errorf("%w: %d bitplanes plus sign, precision %d bits",
			ErrBitplanesExceedPrecision, bitplanes, o.cfg.CoefficientBits)
	}

	codec, err := bitplane.NewCodec(bitplanes, o.cfg.Overflow)
	if err != nil {
		return Calibration{}, fmt.Errorf("failed to create bitplane codec: %w", err)
	}
	o.packer = NewPackStage(codec)
	p = append(p, o.packer)

	o.pipeline = p
	o.cal = Calibration{
		Mode:       mode.String(),
		Bitplanes:  bitplanes,
		Planes:     codec.Planes(),
		Calibrated: calibrated,
		SliceMap:   sliceMap,
		Stages:     p.Names(),
	}
	o.state.Store(int32(StateReady))

	o.logger.Info("Session calibrated",
		slog.String("mode", o.cal.Mode),
		slog.Int("bitplanes", bitplanes),
		slog.Bool("calibrated", calibrated),
		slog.Any("stages", o.cal.Stages))

	return o.cal, nil
}

func (o *Orchestrator) ready() error {
	switch o.State() {
	case StateReady:
		return nil
	case StateClosed:
		return ErrClosed
	default:
		return ErrNotReady
	}
}

func (o *Orchestrator) checkShape(c *audio.Chunk) error {
	if c == nil || c.Frames != o.cfg.Frames || c.Channels != o.cfg.Channels || len(c.Samples) != c.Frames*c.Channels {
		if c == nil {
			return fmt.Errorf("%w: nil chunk", ErrShapeMismatch)
		}
		return fmt.Errorf("%w: got %dx%d, session is %dx%d",
			ErrShapeMismatch, c.Frames, c.Channels, o.cfg.Frames, o.cfg.Channels)
	}
	return nil
}

// Send copies the captured chunk in into out and runs the forward stages on
// out, leaving packed sign-magnitude words ready for bitplane slicing. in is
// not modified. It returns how many values overflowed the packed width.
func (o *Orchestrator) Send(in, out *audio.Chunk) (int, error) {
	if err := o.ready(); err != nil {
		return 0, err
	}
	if err := o.checkShape(in); err != nil {
		return 0, err
	}
	if err := o.checkShape(out); err != nil {
		return 0, err
	}

	copy(out.Samples, in.Samples)
	o.pipeline.Forward(out)

	overflows := o.packer.Overflows()
	if overflows > 0 {
		o.overflows.Add(uint64(overflows))
		o.logger.Debug("Packed values overflowed",
			slog.Int("count", overflows),
			slog.String("policy", o.cfg.Overflow.String()))
	}
	o.chunksSent.Add(1)
	return overflows, nil
}

// Play reconstructs the chunk held by slot into out and resets the slot.
// Missing bitplanes read as zero magnitude bits; a slot that received nothing
// plays as silence.
func (o *Orchestrator) Play(slot *audio.Slot, out *audio.Chunk) error {
	if err := o.ready(); err != nil {
		return err
	}
	if err := o.checkShape(slot.Chunk); err != nil {
		return err
	}
	if err := o.checkShape(out); err != nil {
		return err
	}

	copy(out.Samples, slot.Chunk.Samples)
	o.pipeline.Inverse(out)
	slot.Reset()

	o.chunksPlayed.Add(1)
	return nil
}

// Close releases the session. Further Send and Play calls fail with ErrClosed.
func (o *Orchestrator) Close() error {
	if State(o.state.Swap(int32(StateClosed))) == StateClosed {
		return nil
	}
	o.logger.Info("Session closed",
		slog.Uint64("chunks_sent", o.chunksSent.Load()),
		slog.Uint64("chunks_played", o.chunksPlayed.Load()))
	return nil
}

// Stats returns current orchestrator statistics
func (o *Orchestrator) Stats() Stats {
	return Stats{
		State:        o.State().String(),
		ChunksSent:   o.chunksSent.Load(),
		ChunksPlayed: o.chunksPlayed.Load(),
		Overflows:    o.overflows.Load(),
	}
}
