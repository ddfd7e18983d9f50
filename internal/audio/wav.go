package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WAVHeaderSize is the size of the canonical 44-byte PCM header
const WAVHeaderSize = 44

// WAVHeader represents the header structure of a WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// NewWAVHeader builds a PCM-16 header for dataSize bytes of interleaved samples
func NewWAVHeader(sampleRate, channels int, dataSize uint32) WAVHeader {
	numChannels := uint16(channels)
	bitsPerSample := uint16(16)
	return WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// EncodeWAV encodes interleaved PCM-16 samples into WAV format
func EncodeWAV(samples []int16, sampleRate, channels int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	if channels <= 0 || channels > 0xFFFF {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}

	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("sample count %d is not a multiple of %d channels", len(samples), channels)
	}

	header := NewWAVHeader(sampleRate, channels, uint32(len(samples)*2))

	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+len(samples)*2))

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV decodes WAV format data back to interleaved PCM-16 samples and
// returns them with the sample rate and channel count
func DecodeWAV(data []byte) ([]int16, int, int, error) {
	header, err := readWAVHeader(data)
	if err != nil {
		return nil, 0, 0, err
	}

	if header.AudioFormat != 1 {
		return nil, 0, 0, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", header.AudioFormat)
	}

	if header.BitsPerSample != 16 {
		return nil, 0, 0, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", header.BitsPerSample)
	}

	if header.NumChannels == 0 {
		return nil, 0, 0, fmt.Errorf("unsupported channel count: 0")
	}

	numSamples := int(header.Subchunk2Size) / 2
	if numSamples <= 0 {
		return nil, 0, 0, fmt.Errorf("no audio data found")
	}
	if avail := (len(data) - WAVHeaderSize) / 2; numSamples > avail {
		return nil, 0, 0, fmt.Errorf("WAV data truncated: header declares %d samples, found %d", numSamples, avail)
	}
	numSamples -= numSamples % int(header.NumChannels)

	samples := make([]int16, numSamples)
	if err := binary.Read(bytes.NewReader(data[WAVHeaderSize:]), binary.LittleEndian, samples); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read audio samples: %w", err)
	}

	return samples, int(header.SampleRate), int(header.NumChannels), nil
}

func readWAVHeader(data []byte) (*WAVHeader, error) {
	if err := ValidateWAV(data); err != nil {
		return nil, err
	}

	var header WAVHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}
	return &header, nil
}

// ValidateWAV validates a WAV file format without decoding the entire audio data
func ValidateWAV(data []byte) error {
	if len(data) < WAVHeaderSize {
		return fmt.Errorf("WAV data too short: need at least %d bytes, got %d", WAVHeaderSize, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		return fmt.Errorf("invalid WAV file: missing RIFF header")
	}

	if string(data[8:12]) != "WAVE" {
		return fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	if string(data[12:16]) != "fmt " {
		return fmt.Errorf("invalid WAV file: missing fmt chunk")
	}

	if string(data[36:40]) != "data" {
		return fmt.Errorf("invalid WAV file: missing data chunk")
	}

	return nil
}

// WAVInfo holds basic information about a WAV file
type WAVInfo struct {
	SampleRate    uint32  `json:"sample_rate"`
	Channels      uint16  `json:"channels"`
	BitsPerSample uint16  `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	DataSize      uint32  `json:"data_size_bytes"`
	NumFrames     uint32  `json:"num_frames"`
}

// GetWAVInfo extracts metadata from a WAV file
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	header, err := readWAVHeader(data)
	if err != nil {
		return nil, err
	}

	if header.SampleRate == 0 || header.BlockAlign == 0 {
		return nil, fmt.Errorf("invalid WAV header: sample rate %d, block align %d", header.SampleRate, header.BlockAlign)
	}

	numFrames := header.Subchunk2Size / uint32(header.BlockAlign)
	duration := float64(numFrames) / float64(header.SampleRate)

	return &WAVInfo{
		SampleRate:    header.SampleRate,
		Channels:      header.NumChannels,
		BitsPerSample: header.BitsPerSample,
		Duration:      duration,
		DataSize:      header.Subchunk2Size,
		NumFrames:     numFrames,
	}, nil
}
