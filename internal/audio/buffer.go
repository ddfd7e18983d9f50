package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/skypro1111/binaural-intercom/internal/bitplane"
)

var (
	// ErrLateBitplane indicates a bitplane for a chunk that was already played
	ErrLateBitplane = errors.New("audio: bitplane arrived after its chunk was played")
	// ErrDuplicateBitplane indicates a bitplane the slot already holds
	ErrDuplicateBitplane = errors.New("audio: duplicate bitplane")
)

// Slot is one cell of the jitter buffer. It accumulates the bitplanes of a
// single packed chunk until the chunk is played.
//
// ReceivedBitplanes counts the bitplane packets merged into Chunk. The
// consumer of a played slot must call Reset exactly once, right after it has
// unpacked the chunk; the buffer never resets a slot it has handed out.
type Slot struct {
	Chunk             *Chunk
	ChunkNumber       uint16
	ReceivedBitplanes int

	used   bool
	planes []uint32 // per channel mask of received bitplanes
}

// Reset clears the packed chunk and the reception counter
func (s *Slot) Reset() {
	s.Chunk.Zero()
	s.ReceivedBitplanes = 0
	s.used = false
	clear(s.planes)
}

// Buffer is a ring of chunk slots addressed by chunk number. Bitplanes are
// merged into their slot as they arrive; playback runs cells/2 chunks behind
// the first chunk received so late planes still have a chance to land.
type Buffer struct {
	cells    int
	frames   int
	channels int
	slots    []Slot

	started bool
	played  uint16 // next chunk number to play
	planes  int    // planes per word announced by the sender

	// Statistics
	storedBitplanes    uint64
	lateBitplanes      uint64
	duplicateBitplanes uint64
	playedChunks       uint64
	partialChunks      uint64
	lostChunks         uint64
	resyncs            uint64
	lastUpdate         time.Time

	mu sync.RWMutex
}

// BufferStats represents buffer statistics for monitoring
type BufferStats struct {
	Cells              int       `json:"cells"`
	Started            bool      `json:"started"`
	NextChunk          uint16    `json:"next_chunk"`
	StoredBitplanes    uint64    `json:"stored_bitplanes"`
	LateBitplanes      uint64    `json:"late_bitplanes"`
	DuplicateBitplanes uint64    `json:"duplicate_bitplanes"`
	PlayedChunks       uint64    `json:"played_chunks"`
	PartialChunks      uint64    `json:"partial_chunks"`
	LostChunks         uint64    `json:"lost_chunks"`
	Resyncs            uint64    `json:"resyncs"`
	LastUpdate         time.Time `json:"last_update"`
}

// NewBuffer creates a jitter buffer of cells slots holding frames x channels
// chunks. cells must be a power of two so the slot mapping survives the
// wrap of the 16-bit chunk counter.
func NewBuffer(cells, frames, channels int) (*Buffer, error) {
	if cells < 2 || cells > 1<<15 || cells&(cells-1) != 0 {
		return nil, fmt.Errorf("audio: cells must be a power of two between 2 and 32768, got %d", cells)
	}
	if frames <= 0 || channels <= 0 {
		return nil, fmt.Errorf("audio: invalid chunk shape %dx%d", frames, channels)
	}

	b := &Buffer{
		cells:    cells,
		frames:   frames,
		channels: channels,
		slots:    make([]Slot, cells),
	}
	for i := range b.slots {
		b.slots[i].Chunk = NewChunk(frames, channels)
		b.slots[i].planes = make([]uint32, channels)
	}
	return b, nil
}

// StoreBitplane merges one received bitplane of one channel into the slot of
// chunkNumber. planes is the number of planes per word the sender uses.
func (b *Buffer) StoreBitplane(chunkNumber uint16, channel, plane, planes int, payload []byte) error {
	if channel < 0 || channel >= b.channels {
		return fmt.Errorf("audio: channel %d out of range (channels %d)", channel, b.channels)
	}
	if plane < 0 || plane >= 32 || plane >= planes {
		return fmt.Errorf("audio: bitplane %d out of range (planes %d)", plane, planes)
	}
	if len(payload) < bitplane.PlaneBytes(b.frames) {
		return fmt.Errorf("audio: bitplane payload too short: expected %d bytes, got %d",
			bitplane.PlaneBytes(b.frames), len(payload))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastUpdate = time.Now()
	b.planes = planes

	if !b.started {
		b.started = true
		b.played = chunkNumber - uint16(b.cells/2)
	}

	ahead := int16(chunkNumber - b.played)
	switch {
	case ahead < 0:
		b.lateBitplanes++
		return fmt.Errorf("%w: chunk=%d, next=%d", ErrLateBitplane, chunkNumber, b.played)
	case int(ahead) >= b.cells:
		// The sender jumped past the whole window, most likely a restart
		b.resync(chunkNumber)
	}

	slot := &b.slots[int(chunkNumber)%b.cells]
	if !slot.used || slot.ChunkNumber != chunkNumber {
		slot.Reset()
		slot.used = true
		slot.ChunkNumber = chunkNumber
	}

	bit := uint32(1) << plane
	if slot.planes[channel]&bit != 0 {
		b.duplicateBitplanes++
		return fmt.Errorf("%w: chunk=%d, channel=%d, bitplane=%d", ErrDuplicateBitplane, chunkNumber, channel, plane)
	}
	slot.planes[channel] |= bit

	bitplane.MergePlane(slot.Chunk.Samples, b.channels, channel, plane, payload)
	slot.ReceivedBitplanes++
	b.storedBitplanes++

	return nil
}

// resync drops every slot and restarts playback behind chunkNumber
func (b *Buffer) resync(chunkNumber uint16) {
	for i := range b.slots {
		b.slots[i].Reset()
	}
	b.played = chunkNumber - uint16(b.cells/2)
	b.resyncs++
}

// Play hands the slot of the next chunk to fn and advances playback. The
// buffer lock is held while fn runs, so fn must not call back into the
// buffer. fn is expected to Reset the slot once it has consumed it. Before
// the first bitplane arrives fn receives an empty slot.
//
// Play returns the number of bitplanes the slot held when it was handed out.
func (b *Buffer) Play(fn func(slot *Slot)) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	slot := &b.slots[int(b.played)%b.cells]
	received := slot.ReceivedBitplanes

	if b.started {
		switch expected := b.planes * b.channels; {
		case received == 0:
			b.lostChunks++
		case received < expected:
			b.partialChunks++
		}
	}

	fn(slot)

	if b.started {
		b.played++
		b.playedChunks++
	}
	return received
}

// Planes returns the planes per word of the most recent bitplane
func (b *Buffer) Planes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.planes
}

// Started reports whether any bitplane has been stored yet
func (b *Buffer) Started() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.started
}

// Cells returns the number of slots
func (b *Buffer) Cells() int {
	return b.cells
}

// GetStats returns current buffer statistics
func (b *Buffer) GetStats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BufferStats{
		Cells:              b.cells,
		Started:            b.started,
		NextChunk:          b.played,
		StoredBitplanes:    b.storedBitplanes,
		LateBitplanes:      b.lateBitplanes,
		DuplicateBitplanes: b.duplicateBitplanes,
		PlayedChunks:       b.playedChunks,
		PartialChunks:      b.partialChunks,
		LostChunks:         b.lostChunks,
		Resyncs:            b.resyncs,
		LastUpdate:         b.lastUpdate,
	}
}

// GetLastUpdate returns the time of the last stored bitplane
func (b *Buffer) GetLastUpdate() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdate
}
