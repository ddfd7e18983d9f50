package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skypro1111/binaural-intercom/internal/audio"
	"github.com/skypro1111/binaural-intercom/internal/bitplane"
	"github.com/skypro1111/binaural-intercom/internal/config"
	"github.com/skypro1111/binaural-intercom/internal/pipeline"
)

func testSessionSection() config.SessionConfig {
	return config.SessionConfig{
		Channels:        2,
		SampleRate:      44100,
		FramesPerChunk:  1024,
		Mode:            "wavelet",
		Wavelet:         "bior3.5",
		Levels:          4,
		Padding:         "periodization",
		SampleBits:      16,
		CoefficientBits: 32,
		OverflowPolicy:  "truncate",
		ProbeSeed:       1,
	}
}

func TestNewSessionConfig(t *testing.T) {
	cfg, err := newSessionConfig(testSessionSection())
	if err != nil {
		t.Fatalf("newSessionConfig failed: %v", err)
	}
	if cfg.Mode != pipeline.ModeWavelet {
		t.Errorf("Expected wavelet mode, got %s", cfg.Mode)
	}
	if cfg.Overflow != bitplane.Truncate {
		t.Errorf("Expected truncate policy, got %s", cfg.Overflow)
	}
	if cfg.Frames != 1024 {
		t.Errorf("Expected 1024 frames, got %d", cfg.Frames)
	}

	bad := testSessionSection()
	bad.Mode = "surround"
	if _, err := newSessionConfig(bad); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestNewAnnounce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	tests := []struct {
		name     string
		channels int
		mode     string
		levels   uint8
		wavelet  string
	}{
		{"wavelet", 2, "wavelet", 4, "bior3.5"},
		{"binaural", 2, "binaural", 0, ""},
		{"mono", 1, "wavelet", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			section := testSessionSection()
			section.Channels = tt.channels
			section.Mode = tt.mode

			cfg, err := newSessionConfig(section)
			if err != nil {
				t.Fatalf("newSessionConfig failed: %v", err)
			}
			orch, err := pipeline.New(cfg, logger)
			if err != nil {
				t.Fatalf("pipeline.New failed: %v", err)
			}
			cal, err := orch.Start()
			if err != nil {
				t.Fatalf("Start failed: %v", err)
			}

			a := newAnnounce(orch)
			if int(a.Frames) != 1024 || int(a.Channels) != tt.channels {
				t.Errorf("Expected 1024x%d, got %dx%d", tt.channels, a.Frames, a.Channels)
			}
			if int(a.Bitplanes) != cal.Bitplanes {
				t.Errorf("Expected %d bitplanes, got %d", cal.Bitplanes, a.Bitplanes)
			}
			if a.Levels != tt.levels {
				t.Errorf("Expected %d levels, got %d", tt.levels, a.Levels)
			}
			if a.GetWavelet() != tt.wavelet {
				t.Errorf("Expected wavelet %q, got %q", tt.wavelet, a.GetWavelet())
			}
		})
	}
}

func TestOpenDevices(t *testing.T) {
	dir := t.TempDir()
	sinkPath := filepath.Join(dir, "out.wav")

	source, err := openSource(config.DeviceConfig{Source: "tone", ToneFrequency: 440, ToneAmplitude: 1000}, 8000)
	if err != nil {
		t.Fatalf("openSource failed: %v", err)
	}
	if _, ok := source.(*audio.ToneSource); !ok {
		t.Errorf("Expected tone source, got %T", source)
	}

	if _, err := openSource(config.DeviceConfig{Source: "wav", SourcePath: filepath.Join(dir, "missing.wav")}, 8000); err == nil {
		t.Error("Expected error for missing WAV source")
	}

	sink, err := openSink(config.DeviceConfig{Sink: "wav", SinkPath: sinkPath}, 8000, 2)
	if err != nil {
		t.Fatalf("openSink failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(sinkPath); err != nil {
		t.Errorf("Expected sink file to exist: %v", err)
	}

	discard, err := openSink(config.DeviceConfig{Sink: "discard"}, 8000, 2)
	if err != nil {
		t.Fatalf("openSink failed: %v", err)
	}
	if _, ok := discard.(*audio.DiscardSink); !ok {
		t.Errorf("Expected discard sink, got %T", discard)
	}
}

func TestInitLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intercom.log")
	logger := initLogger(config.LoggingConfig{Level: "warn", Format: "json", Output: path})

	logger.Info("hidden")
	logger.Warn("shown")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, `"msg":"shown"`) {
		t.Errorf("Expected warn record in log output, got: %s", got)
	}
	if strings.Contains(got, "hidden") {
		t.Errorf("Expected info record to be filtered, got: %s", got)
	}
}
