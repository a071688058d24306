package dop

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/drgolem/audiopipe/pkg/pcmbuffer"
)

func words(t *testing.T, packed []byte) []uint32 {
	t.Helper()
	if len(packed)%4 != 0 {
		t.Fatalf("packed view length %d not a multiple of 4", len(packed))
	}
	out := make([]uint32, len(packed)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(packed[4*i:])
	}
	return out
}

func TestPackStereoMarkerAlternation(t *testing.T) {
	var buf pcmbuffer.Buffer

	src := []byte{0xAA, 0x55, 0x11, 0x22}
	packed, err := Pack(&buf, 2, src)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	got := words(t, packed)
	want := []uint32{
		MarkerEven<<16 | 0xAA<<8,
		MarkerEven<<16 | 0x55<<8,
		MarkerOdd<<16 | 0x11<<8,
		MarkerOdd<<16 | 0x22<<8,
	}

	if len(got) != len(want) {
		t.Fatalf("word count: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d: got %#08x, want %#08x", i, got[i], want[i])
		}
	}
}

func TestPackWordLayout(t *testing.T) {
	var buf pcmbuffer.Buffer

	packed, err := Pack(&buf, 1, []byte{0xC3})
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	w := words(t, packed)[0]
	if pad := byte(w); pad != 0x00 {
		t.Errorf("padding byte: got %#x, want 0x00", pad)
	}
	if data := byte(w >> 8); data != 0xC3 {
		t.Errorf("payload byte: got %#x, want 0xC3", data)
	}
	if marker := byte(w >> 16); marker != MarkerEven {
		t.Errorf("marker byte: got %#x, want %#x", marker, MarkerEven)
	}
	if top := byte(w >> 24); top != 0x00 {
		t.Errorf("top byte: got %#x, want 0x00", top)
	}
}

func TestPackRejectsMalformedInput(t *testing.T) {
	var buf pcmbuffer.Buffer

	if _, err := Pack(&buf, 2, []byte{1, 2, 3}); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("odd length: got %v, want ErrMalformedInput", err)
	}
	if _, err := Pack(&buf, 0, []byte{1, 2}); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("zero channels: got %v, want ErrMalformedInput", err)
	}
	if buf.Cap() != 0 {
		t.Errorf("buffer grew on rejected input: cap %d", buf.Cap())
	}
}

func TestPackViewLengthAndBufferReuse(t *testing.T) {
	var buf pcmbuffer.Buffer

	// Shrinking inputs into the same buffer: the view length always
	// tracks the input, the storage never shrinks.
	for _, n := range []int{64, 32, 8, 2} {
		src := bytes.Repeat([]byte{0x0F}, n)
		packed, err := Pack(&buf, 2, src)
		if err != nil {
			t.Fatalf("Pack(%d bytes) failed: %v", n, err)
		}
		if len(packed) != 4*n {
			t.Errorf("view length for %d input bytes: got %d, want %d", n, len(packed), 4*n)
		}
	}

	if buf.Cap() < 4*64 {
		t.Errorf("buffer shrank: cap %d, want >= %d", buf.Cap(), 4*64)
	}
}

func TestPackDeterministicAcrossCalls(t *testing.T) {
	src := []byte{0xAA, 0x55, 0x11, 0x22, 0x33, 0x44}

	var buf1, buf2 pcmbuffer.Buffer
	first, err := Pack(&buf1, 2, src)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	second, err := Pack(&buf2, 2, src)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("two Pack calls on the same data produced different output")
	}
}

func TestPackFromDerivesPhaseFromOffset(t *testing.T) {
	var whole, tail pcmbuffer.Buffer

	src := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	const channels = 2

	full, err := Pack(&whole, channels, src)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	// Resume mid-stream at frame 3 (odd): output must equal the tail
	// of the uninterrupted stream.
	const resumeFrame = 3
	resumed, err := PackFrom(&tail, channels, resumeFrame, src[resumeFrame*channels:])
	if err != nil {
		t.Fatalf("PackFrom failed: %v", err)
	}

	if !bytes.Equal(resumed, full[4*resumeFrame*channels:]) {
		t.Errorf("resumed stream diverges from uninterrupted stream")
	}
}

func TestPackMonoLongRun(t *testing.T) {
	var buf pcmbuffer.Buffer

	src := make([]byte, 256)
	for i := range src {
		src[i] = byte(i)
	}

	packed, err := Pack(&buf, 1, src)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	for i, w := range words(t, packed) {
		wantMarker := byte(MarkerEven)
		if i%2 == 1 {
			wantMarker = MarkerOdd
		}
		if byte(w>>16) != wantMarker {
			t.Fatalf("frame %d marker: got %#x, want %#x", i, byte(w>>16), wantMarker)
		}
		if byte(w>>8) != src[i] {
			t.Fatalf("frame %d payload: got %#x, want %#x", i, byte(w>>8), src[i])
		}
	}
}

func BenchmarkPackStereo(b *testing.B) {
	var buf pcmbuffer.Buffer
	src := make([]byte, 4096)
	for i := range src {
		src[i] = byte(i * 7)
	}

	b.SetBytes(int64(len(src)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Pack(&buf, 2, src); err != nil {
			b.Fatal(err)
		}
	}
}
