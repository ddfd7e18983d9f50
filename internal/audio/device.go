package audio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sync/atomic"
)

// Source captures one chunk per audio period
type Source interface {
	// Read fills c with the next frames of capture
	Read(c *Chunk) error
	Close() error
}

// Sink plays one reconstructed chunk per audio period
type Sink interface {
	Write(c *Chunk) error
	Close() error
}

// WAVSource replays a 16-bit PCM WAV file. A file with fewer channels than
// the session repeats its last channel; extra channels are dropped.
type WAVSource struct {
	samples  []int16
	channels int
	frames   int
	pos      int
	loop     bool
}

// NewWAVSource loads path. When loop is false the source produces silence
// once the file is exhausted.
func NewWAVSource(path string, loop bool) (*WAVSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV file: %w", err)
	}
	samples, _, channels, err := DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &WAVSource{
		samples:  samples,
		channels: channels,
		frames:   len(samples) / channels,
		loop:     loop,
	}, nil
}

// Read implements Source
func (s *WAVSource) Read(c *Chunk) error {
	for i := 0; i < c.Frames; i++ {
		if s.pos >= s.frames {
			if !s.loop {
				clear(c.Samples[i*c.Channels:])
				return nil
			}
			s.pos = 0
		}
		base := s.pos * s.channels
		for ch := 0; ch < c.Channels; ch++ {
			c.Set(i, ch, int32(s.samples[base+min(ch, s.channels-1)]))
		}
		s.pos++
	}
	return nil
}

// Exhausted reports whether a non-looping source has run out of frames
func (s *WAVSource) Exhausted() bool {
	return !s.loop && s.pos >= s.frames
}

// Close implements Source
func (s *WAVSource) Close() error {
	return nil
}

// ToneSource synthesizes a sine tone. Channel ch lags channel 0 by ch*Delay
// samples, which gives stereo input with the strong inter-channel correlation
// of a binaural recording.
type ToneSource struct {
	SampleRate int
	Frequency  float64
	Amplitude  float64
	Delay      int

	n int64
}

// NewToneSource creates a tone source
func NewToneSource(sampleRate int, frequency, amplitude float64, delay int) *ToneSource {
	return &ToneSource{
		SampleRate: sampleRate,
		Frequency:  frequency,
		Amplitude:  amplitude,
		Delay:      delay,
	}
}

// Read implements Source
func (s *ToneSource) Read(c *Chunk) error {
	w := 2 * math.Pi * s.Frequency / float64(s.SampleRate)
	for i := 0; i < c.Frames; i++ {
		for ch := 0; ch < c.Channels; ch++ {
			n := s.n + int64(i) - int64(ch*s.Delay)
			c.Set(i, ch, ClipFloat(s.Amplitude*math.Sin(w*float64(n)), 16))
		}
	}
	s.n += int64(c.Frames)
	return nil
}

// Close implements Source
func (s *ToneSource) Close() error {
	return nil
}

// WAVSink records played chunks to a 16-bit PCM WAV file. The header sizes
// are patched on Close.
type WAVSink struct {
	f          *os.File
	w          *bufio.Writer
	sampleRate int
	channels   int
	dataSize   uint32
	pcm        []int16
}

// NewWAVSink creates path and writes a placeholder header
func NewWAVSink(path string, sampleRate, channels int) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}
	s := &WAVSink{
		f:          f,
		w:          bufio.NewWriter(f),
		sampleRate: sampleRate,
		channels:   channels,
	}
	if err := binary.Write(s.w, binary.LittleEndian, NewWAVHeader(sampleRate, channels, 0)); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	return s, nil
}

// Write implements Sink
func (s *WAVSink) Write(c *Chunk) error {
	if c.Channels != s.channels {
		return fmt.Errorf("chunk has %d channels, sink expects %d", c.Channels, s.channels)
	}
	s.pcm = c.ToInt16(s.pcm)
	if err := binary.Write(s.w, binary.LittleEndian, s.pcm); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	s.dataSize += uint32(len(s.pcm) * 2)
	return nil
}

// Close flushes buffered audio, patches the header and closes the file
func (s *WAVSink) Close() error {
	defer s.f.Close()

	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush WAV data: %w", err)
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind WAV file: %w", err)
	}
	if err := binary.Write(s.f, binary.LittleEndian, NewWAVHeader(s.sampleRate, s.channels, s.dataSize)); err != nil {
		return fmt.Errorf("failed to patch WAV header: %w", err)
	}
	return nil
}

// DiscardSink drops every chunk and counts them
type DiscardSink struct {
	chunks atomic.Uint64
}

// Write implements Sink
func (s *DiscardSink) Write(c *Chunk) error {
	s.chunks.Add(1)
	return nil
}

// Chunks returns how many chunks were written
func (s *DiscardSink) Chunks() uint64 {
	return s.chunks.Load()
}

// Close implements Sink
func (s *DiscardSink) Close() error {
	return nil
}
