package bitplane

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewCodecValidation(t *testing.T) {
	for _, bp := range []int{0, -1, 31, 64} {
		if _, err := NewCodec(bp, Saturate); !errors.Is(err, ErrInvalidBitplanes) {
			t.Errorf("NewCodec(%d): expected ErrInvalidBitplanes, got %v", bp, err)
		}
	}

	c, err := NewCodec(17, Saturate)
	if err != nil {
		t.Fatalf("NewCodec(17) failed: %v", err)
	}
	if c.Planes() != 18 || c.SignPlane() != 17 || c.MaxMagnitude() != 1<<17-1 {
		t.Errorf("unexpected geometry: planes=%d sign=%d max=%d", c.Planes(), c.SignPlane(), c.MaxMagnitude())
	}
}

func TestPackLayout(t *testing.T) {
	c, _ := NewCodec(15, Saturate)
	src := []int32{0, 1, -1, 5, -5, 32767, -32767}
	dst := make([]int32, len(src))

	if overflows := c.Pack(src, dst); overflows != 0 {
		t.Fatalf("Expected no overflows, got %d", overflows)
	}

	want := []int32{0, 1, 0x8001, 5, 0x8005, 0x7FFF, 0xFFFF}
	if diff := cmp.Diff(want, dst); diff != "" {
		t.Errorf("packed words mismatch (-want +got):\n%s", diff)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	for _, bp := range []int{1, 8, 15, 17, 24, MaxBitplanes} {
		c, err := NewCodec(bp, Saturate)
		if err != nil {
			t.Fatalf("NewCodec(%d) failed: %v", bp, err)
		}
		limit := int64(c.MaxMagnitude())

		src := make([]int32, 2048)
		for i := range src {
			src[i] = int32(rng.Int64N(2*limit+1) - limit)
		}
		src[0], src[1], src[2] = int32(limit), int32(-limit), 0

		packed := make([]int32, len(src))
		if overflows := c.Pack(src, packed); overflows != 0 {
			t.Errorf("bitplanes=%d: unexpected overflows %d", bp, overflows)
		}
		for i, w := range packed {
			if w < 0 || uint32(w)>>(bp+1) != 0 {
				t.Fatalf("bitplanes=%d: word %d = %#x uses bits above the sign", bp, i, w)
			}
		}

		out := make([]int32, len(src))
		c.Unpack(packed, out)
		if diff := cmp.Diff(src, out); diff != "" {
			t.Errorf("bitplanes=%d: round trip mismatch (-want +got):\n%s", bp, diff)
		}
	}
}

func TestPackInPlace(t *testing.T) {
	c, _ := NewCodec(16, Saturate)
	words := []int32{-300, 300, -1, 0}
	c.Pack(words, words)
	c.Unpack(words, words)
	if diff := cmp.Diff([]int32{-300, 300, -1, 0}, words); diff != "" {
		t.Errorf("in-place round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestOverflowPolicies(t *testing.T) {
	src := []int32{10, 300, -300, -255, 256}

	tests := []struct {
		policy OverflowPolicy
		want   []int32
	}{
		// 8 magnitude bits: 300 does not fit
		{policy: Saturate, want: []int32{10, 255, -255, -255, 255}},
		// 300 = 0x12C -> 0x2C, 256 = 0x100 -> 0
		{policy: Truncate, want: []int32{10, 44, -44, -255, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			c, _ := NewCodec(8, tt.policy)
			packed := make([]int32, len(src))
			if overflows := c.Pack(src, packed); overflows != 3 {
				t.Errorf("Expected 3 overflows, got %d", overflows)
			}
			out := make([]int32, len(src))
			c.Unpack(packed, out)
			if diff := cmp.Diff(tt.want, out); diff != "" {
				t.Errorf("overflowed values mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	tests := map[string]OverflowPolicy{"": Saturate, "saturate": Saturate, "truncate": Truncate}
	for in, want := range tests {
		got, err := ParseOverflowPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseOverflowPolicy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseOverflowPolicy("wrap"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestUnpackIgnoresBitsAboveSign(t *testing.T) {
	c, _ := NewCodec(4, Saturate)
	out := make([]int32, 2)
	c.Unpack([]int32{0x7F3, 0x7E3}, out)
	// 0x7F3: sign bit 4 set, magnitude 3; 0x7E3: sign clear, magnitude 3
	if diff := cmp.Diff([]int32{-3, 3}, out); diff != "" {
		t.Errorf("unpack mismatch (-want +got):\n%s", diff)
	}
}

func TestKeepPlanes(t *testing.T) {
	c, _ := NewCodec(4, Saturate)
	packed := make([]int32, 3)
	c.Pack([]int32{-13, 13, 6}, packed)

	tests := []struct {
		received int
		want     []int32
	}{
		{received: 0, want: []int32{0, 0, 0}},
		{received: 1, want: []int32{0, 0, 0}},    // sign only
		{received: 2, want: []int32{-8, 8, 0}},   // + plane 3
		{received: 3, want: []int32{-12, 12, 4}}, // + plane 2
		{received: 4, want: []int32{-12, 12, 6}}, // + plane 1
		{received: 5, want: []int32{-13, 13, 6}}, // everything
		{received: 9, want: []int32{-13, 13, 6}},
	}

	for _, tt := range tests {
		words := append([]int32(nil), packed...)
		c.KeepPlanes(words, tt.received)
		out := make([]int32, len(words))
		c.Unpack(words, out)
		if diff := cmp.Diff(tt.want, out); diff != "" {
			t.Errorf("received=%d mismatch (-want +got):\n%s", tt.received, diff)
		}
	}
}

func TestDroppedPlanesNeverFlipSign(t *testing.T) {
	c, _ := NewCodec(12, Saturate)
	rng := rand.New(rand.NewPCG(9, 9))
	src := make([]int32, 512)
	for i := range src {
		src[i] = int32(rng.IntN(8191) - 4095)
	}
	packed := make([]int32, len(src))
	c.Pack(src, packed)

	for received := 0; received <= c.Planes(); received++ {
		words := append([]int32(nil), packed...)
		c.KeepPlanes(words, received)
		out := make([]int32, len(words))
		c.Unpack(words, out)
		for i, v := range out {
			if v*src[i] < 0 {
				t.Fatalf("received=%d: sign flipped at %d (%d -> %d)", received, i, src[i], v)
			}
			if abs(v) > abs(src[i]) {
				t.Fatalf("received=%d: magnitude grew at %d (%d -> %d)", received, i, src[i], v)
			}
		}
	}
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
