package intercom

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skypro1111/binaural-intercom/internal/audio"
	"github.com/skypro1111/binaural-intercom/internal/metrics"
	"github.com/skypro1111/binaural-intercom/internal/pipeline"
)

// Transport carries packed chunks to the remote peer
type Transport interface {
	SendChunk(chunkNumber uint16, packed *audio.Chunk, planes int) (int, error)
}

// Runner drives one intercom session: every period it captures a chunk,
// encodes and sends it, then reconstructs and plays the next buffered chunk
// from the peer
type Runner struct {
	orch      *pipeline.Orchestrator
	source    audio.Source
	sink      audio.Sink
	transport Transport
	buffer    *audio.Buffer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	period    time.Duration
	planes    int

	// Per-chunk scratch, owned by the ticking goroutine
	captured *audio.Chunk
	packed   *audio.Chunk
	played   *audio.Chunk

	chunkNumber uint16

	// Statistics
	startTime    time.Time
	ticks        uint64
	overruns     uint64
	sourceErrors uint64
	sendErrors   uint64
	sinkErrors   uint64
	lastTick     time.Duration
	maxTick      time.Duration
	mu           sync.RWMutex
}

// Config holds the runner dependencies
type Config struct {
	Orchestrator *pipeline.Orchestrator
	Source       audio.Source
	Sink         audio.Sink
	Transport    Transport
	Buffer       *audio.Buffer
	Metrics      *metrics.Metrics
	Period       time.Duration
}

// NewRunner creates a runner around a started orchestrator
func NewRunner(cfg Config, logger *slog.Logger) (*Runner, error) {
	if cfg.Orchestrator == nil || cfg.Source == nil || cfg.Sink == nil ||
		cfg.Transport == nil || cfg.Buffer == nil || cfg.Metrics == nil {
		return nil, fmt.Errorf("intercom: incomplete runner configuration")
	}
	if cfg.Orchestrator.State() != pipeline.StateReady {
		return nil, fmt.Errorf("intercom: %w", pipeline.ErrNotReady)
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("intercom: period must be positive, got %s", cfg.Period)
	}

	session := cfg.Orchestrator.Config()
	return &Runner{
		orch:      cfg.Orchestrator,
		source:    cfg.Source,
		sink:      cfg.Sink,
		transport: cfg.Transport,
		buffer:    cfg.Buffer,
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "runner"),
		period:    cfg.Period,
		planes:    cfg.Orchestrator.Calibration().Planes,
		captured:  audio.NewChunk(session.Frames, session.Channels),
		packed:    audio.NewChunk(session.Frames, session.Channels),
		played:    audio.NewChunk(session.Frames, session.Channels),
		startTime: time.Now(),
	}, nil
}

// Tick runs one audio period. Source, transport and sink failures are
// counted and the period continues with what is available; only pipeline
// errors are returned.
func (r *Runner) Tick() error {
	start := time.Now()

	if err := r.source.Read(r.captured); err != nil {
		r.mu.Lock()
		r.sourceErrors++
		r.mu.Unlock()
		r.logger.Debug("Capture failed, sending silence", slog.String("error", err.Error()))
		r.captured.Zero()
	}

	overflows, err := r.orch.Send(r.captured, r.packed)
	if err != nil {
		return fmt.Errorf("failed to encode chunk %d: %w", r.chunkNumber, err)
	}
	r.metrics.RecordChunkSent(overflows, time.Since(start).Seconds())

	if _, err := r.transport.SendChunk(r.chunkNumber, r.packed, r.planes); err != nil {
		r.mu.Lock()
		r.sendErrors++
		r.mu.Unlock()
		r.logger.Debug("Failed to send chunk",
			slog.Int("chunk", int(r.chunkNumber)),
			slog.String("error", err.Error()))
	}
	r.chunkNumber++

	playStart := time.Now()
	started := r.buffer.Started()
	var playErr error
	received := r.buffer.Play(func(slot *audio.Slot) {
		playErr = r.orch.Play(slot, r.played)
	})
	if playErr != nil {
		return fmt.Errorf("failed to decode chunk: %w", playErr)
	}
	if started {
		r.metrics.RecordChunkPlayed(received, r.planes*r.played.Channels, time.Since(playStart).Seconds())
	}

	if err := r.sink.Write(r.played); err != nil {
		r.mu.Lock()
		r.sinkErrors++
		r.mu.Unlock()
		r.logger.Debug("Playback failed", slog.String("error", err.Error()))
	}

	elapsed := time.Since(start)
	r.mu.Lock()
	r.ticks++
	r.lastTick = elapsed
	r.maxTick = max(r.maxTick, elapsed)
	r.mu.Unlock()

	return nil
}

// Run calls Tick once per period until ctx is cancelled. A Tick that takes
// longer than the period is counted as an overrun.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("Intercom running",
		slog.Duration("period", r.period),
		slog.Int("planes", r.planes),
	)

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stats := r.Stats()
			r.logger.Info("Intercom stopped",
				slog.Uint64("ticks", stats.Ticks),
				slog.Uint64("overruns", stats.Overruns),
			)
			return nil
		case <-ticker.C:
		}

		start := time.Now()
		if err := r.Tick(); err != nil {
			return err
		}
		if elapsed := time.Since(start); elapsed > r.period {
			r.mu.Lock()
			r.overruns++
			r.mu.Unlock()
			r.metrics.RecordOverrun()
			r.logger.Debug("Period overrun",
				slog.Duration("elapsed", elapsed),
				slog.Duration("period", r.period))
		}
	}
}

// Stats returns current runner statistics
func (r *Runner) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Uptime:       time.Since(r.startTime).String(),
		Ticks:        r.ticks,
		Overruns:     r.overruns,
		SourceErrors: r.sourceErrors,
		SendErrors:   r.sendErrors,
		SinkErrors:   r.sinkErrors,
		LastTick:     r.lastTick.String(),
		MaxTick:      r.maxTick.String(),
		Pipeline:     r.orch.Stats(),
		Buffer:       r.buffer.GetStats(),
	}
}

// Session returns the fixed description of the running session
func (r *Runner) Session() SessionInfo {
	cfg := r.orch.Config()
	return SessionInfo{
		Channels:        cfg.Channels,
		Frames:          cfg.Frames,
		Mode:            cfg.EffectiveMode().String(),
		Wavelet:         cfg.Wavelet,
		Levels:          cfg.Levels,
		Padding:         cfg.Padding,
		SampleBits:      cfg.SampleBits,
		CoefficientBits: cfg.CoefficientBits,
		OverflowPolicy:  cfg.Overflow.String(),
		Period:          r.period.String(),
		Calibration:     r.orch.Calibration(),
	}
}

// Stats represents runner statistics for monitoring
type Stats struct {
	Uptime       string            `json:"uptime"`
	Ticks        uint64            `json:"ticks"`
	Overruns     uint64            `json:"overruns"`
	SourceErrors uint64            `json:"source_errors"`
	SendErrors   uint64            `json:"send_errors"`
	SinkErrors   uint64            `json:"sink_errors"`
	LastTick     string            `json:"last_tick"`
	MaxTick      string            `json:"max_tick"`
	Pipeline     pipeline.Stats    `json:"pipeline"`
	Buffer       audio.BufferStats `json:"buffer"`
}

// SessionInfo describes the session layout and its calibration
type SessionInfo struct {
	Channels        int                  `json:"channels"`
	Frames          int                  `json:"frames_per_chunk"`
	Mode            string               `json:"mode"`
	Wavelet         string               `json:"wavelet"`
	Levels          int                  `json:"levels"`
	Padding         string               `json:"padding"`
	SampleBits      int                  `json:"sample_bits"`
	CoefficientBits int                  `json:"coefficient_bits"`
	OverflowPolicy  string               `json:"overflow_policy"`
	Period          string               `json:"period"`
	Calibration     pipeline.Calibration `json:"calibration"`
}
