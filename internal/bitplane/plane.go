package bitplane

// PlaneBytes returns the size of one packed bitplane of frames samples
func PlaneBytes(frames int) int {
	return (frames + 7) / 8
}

// ExtractPlane packs bit plane of one channel of the interleaved words into
// dst, most significant bit first within each byte. dst is grown if needed
// and the packed slice is returned.
func ExtractPlane(words []int32, channels, channel, plane int, dst []byte) []byte {
	frames := len(words) / channels
	n := PlaneBytes(frames)
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	clear(dst)
	for i := 0; i < frames; i++ {
		bit := byte(uint32(words[i*channels+channel])>>plane) & 1
		dst[i>>3] |= bit << (7 - uint(i&7))
	}
	return dst
}

// MergePlane ORs a packed bitplane back into one channel of the interleaved
// words. Bits already set are kept, so planes may arrive in any order.
func MergePlane(words []int32, channels, channel, plane int, src []byte) {
	n := min(len(words)/channels, len(src)*8)
	for i := 0; i < n; i++ {
		bit := int32(src[i>>3]>>(7-uint(i&7))) & 1
		words[i*channels+channel] |= bit << plane
	}
}
