package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skypro1111/binaural-intercom/internal/bitplane"
	"github.com/skypro1111/binaural-intercom/internal/wavelet"
)

// Config represents the complete intercom configuration
type Config struct {
	Session   SessionConfig   `yaml:"session"`
	Transport TransportConfig `yaml:"transport"`
	Buffer    BufferConfig    `yaml:"buffer"`
	Device    DeviceConfig    `yaml:"device"`
	HTTP      HTTPConfig      `yaml:"http"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SessionConfig contains the chunk layout and transform parameters.
// Both peers must use the same values.
type SessionConfig struct {
	Channels        int    `yaml:"channels"`
	SampleRate      int    `yaml:"sample_rate"`
	FramesPerChunk  int    `yaml:"frames_per_chunk"`
	Mode            string `yaml:"mode"` // mono, binaural or wavelet
	Wavelet         string `yaml:"wavelet"`
	Levels          int    `yaml:"levels"`
	Padding         string `yaml:"padding"`
	SampleBits      int    `yaml:"sample_bits"`
	CoefficientBits int    `yaml:"coefficient_bits"`
	OverflowPolicy  string `yaml:"overflow_policy"`
	ProbeSeed       uint64 `yaml:"probe_seed"`
}

// TransportConfig contains UDP transport configuration
type TransportConfig struct {
	ListenAddress    string  `yaml:"listen_address"`
	ListenPort       int     `yaml:"listen_port"`
	PeerAddress      string  `yaml:"peer_address"` // host:port
	BufferSize       int     `yaml:"buffer_size"`
	Workers          int     `yaml:"workers"`
	QueueSize        int     `yaml:"queue_size"`
	MaxBitplanes     int     `yaml:"max_bitplanes"`     // 0 sends every plane
	AnnounceInterval float64 `yaml:"announce_interval"` // seconds
}

// BufferConfig contains jitter buffer configuration
type BufferConfig struct {
	Cells int `yaml:"cells"`
}

// DeviceConfig selects the capture source and the playback sink
type DeviceConfig struct {
	Source        string  `yaml:"source"` // tone or wav
	SourcePath    string  `yaml:"source_path"`
	Loop          bool    `yaml:"loop"`
	ToneFrequency float64 `yaml:"tone_frequency"`
	ToneAmplitude float64 `yaml:"tone_amplitude"`
	ToneDelay     int     `yaml:"tone_delay"` // samples between channels
	Sink          string  `yaml:"sink"`       // discard or wav
	SinkPath      string  `yaml:"sink_path"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// RealtimeConfig contains process level tuning for the audio loop
type RealtimeConfig struct {
	LockMemory bool `yaml:"lock_memory"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport config: %w", err)
	}

	if err := c.Buffer.Validate(); err != nil {
		return fmt.Errorf("buffer config: %w", err)
	}

	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates session configuration
func (s *SessionConfig) Validate() error {
	if s.Channels != 1 && s.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", s.Channels)
	}

	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %d", s.SampleRate)
	}

	if s.FramesPerChunk < 8 || s.FramesPerChunk > 8192 {
		return fmt.Errorf("frames_per_chunk must be between 8 and 8192, got %d", s.FramesPerChunk)
	}

	validModes := map[string]bool{"mono": true, "binaural": true, "wavelet": true}
	if !validModes[s.Mode] {
		return fmt.Errorf("mode must be one of [mono, binaural, wavelet], got '%s'", s.Mode)
	}

	if s.Mode == "wavelet" && s.Channels == 2 {
		if !slices.Contains(wavelet.Names(), s.Wavelet) {
			return fmt.Errorf("wavelet must be one of %v, got '%s'", wavelet.Names(), s.Wavelet)
		}
		if s.Padding != wavelet.PaddingPeriodization {
			return fmt.Errorf("padding must be '%s', got '%s'", wavelet.PaddingPeriodization, s.Padding)
		}
		if s.Levels < 1 {
			return fmt.Errorf("levels must be at least 1, got %d", s.Levels)
		}
		if s.FramesPerChunk%(1<<s.Levels) != 0 {
			return fmt.Errorf("frames_per_chunk (%d) must be divisible by 2^levels (%d)",
				s.FramesPerChunk, 1<<s.Levels)
		}
	}

	if s.SampleBits < 8 || s.SampleBits > 24 {
		return fmt.Errorf("sample_bits must be between 8 and 24, got %d", s.SampleBits)
	}

	if s.CoefficientBits <= s.SampleBits || s.CoefficientBits > 32 {
		return fmt.Errorf("coefficient_bits must be above sample_bits (%d) and at most 32, got %d",
			s.SampleBits, s.CoefficientBits)
	}

	if _, err := bitplane.ParseOverflowPolicy(s.OverflowPolicy); err != nil {
		return fmt.Errorf("overflow_policy must be 'saturate' or 'truncate', got '%s'", s.OverflowPolicy)
	}

	return nil
}

// Validate validates transport configuration
func (t *TransportConfig) Validate() error {
	if t.ListenPort < 1 || t.ListenPort > 65535 {
		return fmt.Errorf("listen_port must be between 1 and 65535, got %d", t.ListenPort)
	}

	if t.ListenAddress == "" {
		return fmt.Errorf("listen_address cannot be empty")
	}

	if t.PeerAddress == "" {
		return fmt.Errorf("peer_address cannot be empty")
	}

	if t.BufferSize < 1024 {
		return fmt.Errorf("buffer_size must be at least 1024 bytes, got %d", t.BufferSize)
	}

	if t.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", t.Workers)
	}

	if t.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", t.QueueSize)
	}

	if t.MaxBitplanes < 0 {
		return fmt.Errorf("max_bitplanes cannot be negative, got %d", t.MaxBitplanes)
	}

	if t.AnnounceInterval <= 0 {
		return fmt.Errorf("announce_interval must be positive, got %f", t.AnnounceInterval)
	}

	return nil
}

// Validate validates jitter buffer configuration
func (b *BufferConfig) Validate() error {
	if b.Cells < 2 || b.Cells > 1024 || b.Cells&(b.Cells-1) != 0 {
		return fmt.Errorf("cells must be a power of two between 2 and 1024, got %d", b.Cells)
	}
	return nil
}

// Validate validates device configuration
func (d *DeviceConfig) Validate() error {
	switch d.Source {
	case "tone":
		if d.ToneFrequency <= 0 {
			return fmt.Errorf("tone_frequency must be positive, got %f", d.ToneFrequency)
		}
		if d.ToneAmplitude <= 0 || d.ToneAmplitude > 32767 {
			return fmt.Errorf("tone_amplitude must be between 0 and 32767, got %f", d.ToneAmplitude)
		}
		if d.ToneDelay < 0 {
			return fmt.Errorf("tone_delay cannot be negative, got %d", d.ToneDelay)
		}
	case "wav":
		if d.SourcePath == "" {
			return fmt.Errorf("source_path cannot be empty for a wav source")
		}
	default:
		return fmt.Errorf("source must be 'tone' or 'wav', got '%s'", d.Source)
	}

	switch d.Sink {
	case "discard":
	case "wav":
		if d.SinkPath == "" {
			return fmt.Errorf("sink_path cannot be empty for a wav sink")
		}
	default:
		return fmt.Errorf("sink must be 'discard' or 'wav', got '%s'", d.Sink)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Any other output is treated as a file path
	return nil
}

// GetPeriod returns the duration of one chunk
func (s *SessionConfig) GetPeriod() time.Duration {
	return time.Duration(s.FramesPerChunk) * time.Second / time.Duration(s.SampleRate)
}

// GetAnnounceInterval returns the announce interval as a time.Duration
func (t *TransportConfig) GetAnnounceInterval() time.Duration {
	return time.Duration(t.AnnounceInterval * float64(time.Second))
}
