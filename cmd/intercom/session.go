package main

import (
	"fmt"

	"github.com/skypro1111/binaural-intercom/internal/audio"
	"github.com/skypro1111/binaural-intercom/internal/bitplane"
	"github.com/skypro1111/binaural-intercom/internal/config"
	"github.com/skypro1111/binaural-intercom/internal/pipeline"
	"github.com/skypro1111/binaural-intercom/internal/protocol"
)

// newSessionConfig maps the session section onto the pipeline configuration
func newSessionConfig(s config.SessionConfig) (pipeline.SessionConfig, error) {
	mode, err := pipeline.ParseMode(s.Mode)
	if err != nil {
		return pipeline.SessionConfig{}, err
	}
	policy, err := bitplane.ParseOverflowPolicy(s.OverflowPolicy)
	if err != nil {
		return pipeline.SessionConfig{}, err
	}

	return pipeline.SessionConfig{
		Channels:        s.Channels,
		Frames:          s.FramesPerChunk,
		Mode:            mode,
		Wavelet:         s.Wavelet,
		Levels:          s.Levels,
		Padding:         s.Padding,
		SampleBits:      s.SampleBits,
		CoefficientBits: s.CoefficientBits,
		Overflow:        policy,
		ProbeSeed:       s.ProbeSeed,
	}, nil
}

// newAnnounce describes a started session for the remote peer
func newAnnounce(orch *pipeline.Orchestrator) protocol.Announce {
	cfg := orch.Config()
	mode := cfg.EffectiveMode()

	a := protocol.Announce{
		Frames:    uint16(cfg.Frames),
		Channels:  uint8(cfg.Channels),
		Bitplanes: uint8(orch.Calibration().Bitplanes),
		Mode:      uint8(mode),
	}
	if mode == pipeline.ModeWavelet {
		a.Levels = uint8(cfg.Levels)
		a.SetWavelet(cfg.Wavelet)
	}
	return a
}

func openSource(d config.DeviceConfig, sampleRate int) (audio.Source, error) {
	switch d.Source {
	case "wav":
		src, err := audio.NewWAVSource(d.SourcePath, d.Loop)
		if err != nil {
			return nil, fmt.Errorf("failed to open source: %w", err)
		}
		return src, nil
	default:
		return audio.NewToneSource(sampleRate, d.ToneFrequency, d.ToneAmplitude, d.ToneDelay), nil
	}
}

func openSink(d config.DeviceConfig, sampleRate, channels int) (audio.Sink, error) {
	switch d.Sink {
	case "wav":
		sink, err := audio.NewWAVSink(d.SinkPath, sampleRate, channels)
		if err != nil {
			return nil, fmt.Errorf("failed to open sink: %w", err)
		}
		return sink, nil
	default:
		return &audio.DiscardSink{}, nil
	}
}
