package audiochunk

import (
	"errors"
	"testing"
)

var fmt16x2 = AudioFormat{SampleRate: 44100, Channels: 2, BitsPerSample: 16}

func fillAndCommit(t *testing.T, c *Chunk, format AudioFormat, n int) bool {
	t.Helper()

	region, err := c.Reserve(format, 0, 0)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if len(region) < n {
		t.Fatalf("Reserve returned %d bytes, need %d", len(region), n)
	}

	full, err := c.Commit(format, n)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	return full
}

func TestReserveWholeFrames(t *testing.T) {
	c := New()

	region, err := c.Reserve(fmt16x2, 0, 0)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	frameSize := fmt16x2.FrameSize()
	if len(region)%frameSize != 0 {
		t.Errorf("region size %d not a multiple of frame size %d", len(region), frameSize)
	}
	if len(region) != ChunkSize {
		t.Errorf("empty chunk region: got %d bytes, want %d", len(region), ChunkSize)
	}
	if c.Length() != 0 {
		t.Errorf("Reserve changed length: got %d, want 0", c.Length())
	}
}

func TestLengthMonotonicUntilReset(t *testing.T) {
	c := New()
	frameSize := fmt16x2.FrameSize()

	prev := 0
	for i := 0; i < 64; i++ {
		region, err := c.Reserve(fmt16x2, 0, 0)
		if err != nil {
			t.Fatalf("Reserve failed: %v", err)
		}
		if region == nil {
			break
		}

		n := min(len(region), 16*frameSize)
		if _, err := c.Commit(fmt16x2, n); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}

		if c.Length() < prev {
			t.Fatalf("length decreased: %d -> %d", prev, c.Length())
		}
		if c.Length() > ChunkSize {
			t.Fatalf("length %d exceeds capacity %d", c.Length(), ChunkSize)
		}
		prev = c.Length()
	}

	c.Reset()
	if c.Length() != 0 {
		t.Errorf("length after Reset: got %d, want 0", c.Length())
	}
}

func TestFormatPinnedOnceNonEmpty(t *testing.T) {
	c := New()

	region, err := c.Reserve(fmt16x2, 1.5, 320)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if _, err := c.Commit(fmt16x2, fmt16x2.FrameSize()); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	_ = region

	other := AudioFormat{SampleRate: 48000, Channels: 2, BitsPerSample: 16}
	if _, err := c.Reserve(other, 9.9, 128); !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("Reserve with different format: got %v, want ErrFormatMismatch", err)
	}
	if _, err := c.Commit(other, 0); !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("Commit with different format: got %v, want ErrFormatMismatch", err)
	}

	// Same format succeeds and keeps the original stamps.
	if _, err := c.Reserve(fmt16x2, 9.9, 128); err != nil {
		t.Fatalf("Reserve with same format failed: %v", err)
	}
	if c.Time() != 1.5 {
		t.Errorf("Time: got %v, want 1.5", c.Time())
	}
	if c.BitRate() != 320 {
		t.Errorf("BitRate: got %d, want 320", c.BitRate())
	}
}

func TestInvalidFormatRejected(t *testing.T) {
	c := New()

	bad := []AudioFormat{
		{SampleRate: 0, Channels: 2, BitsPerSample: 16},
		{SampleRate: 44100, Channels: 0, BitsPerSample: 16},
		{SampleRate: 44100, Channels: 2, BitsPerSample: 0},
		{SampleRate: 44100, Channels: 2, BitsPerSample: 12},
	}
	for _, f := range bad {
		if _, err := c.Reserve(f, 0, 0); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("Reserve(%s): got %v, want ErrInvalidFormat", f, err)
		}
	}
}

func TestCommitFullFlagBoundary(t *testing.T) {
	// Frame size 4: capacity divides evenly, so "full" flips exactly
	// when the last frame is committed.
	c := New()
	frame4 := AudioFormat{SampleRate: 44100, Channels: 2, BitsPerSample: 16}

	if full := fillAndCommit(t, c, frame4, ChunkSize-4); full {
		t.Errorf("full with one frame of room left: got true, want false")
	}
	if full := fillAndCommit(t, c, frame4, 4); !full {
		t.Errorf("full with zero room left: got false, want true")
	}

	// Frame size 3: 1365 whole frames leave one trailing byte, so the
	// final whole-frame commit must report full.
	c2 := New()
	frame3 := AudioFormat{SampleRate: 44100, Channels: 3, BitsPerSample: 8}
	maxWhole := (ChunkSize / 3) * 3
	if full := fillAndCommit(t, c2, frame3, maxWhole); !full {
		t.Errorf("full with %d of %d committed: got false, want true", maxWhole, ChunkSize)
	}

	// No whole frame fits anymore.
	region, err := c2.Reserve(frame3, 0, 0)
	if err != nil {
		t.Fatalf("Reserve on full chunk failed: %v", err)
	}
	if region != nil {
		t.Errorf("Reserve on full chunk: got %d bytes, want nil", len(region))
	}
}

func TestCommitValidation(t *testing.T) {
	c := New()

	region, err := c.Reserve(fmt16x2, 0, 0)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	if _, err := c.Commit(fmt16x2, len(region)+4); !errors.Is(err, ErrCommitTooLarge) {
		t.Errorf("oversized commit: got %v, want ErrCommitTooLarge", err)
	}
	if _, err := c.Commit(fmt16x2, 3); !errors.Is(err, ErrUnalignedCommit) {
		t.Errorf("unaligned commit: got %v, want ErrUnalignedCommit", err)
	}

	// Commit without an outstanding reservation.
	c2 := New()
	c2.format = fmt16x2
	if _, err := c2.Commit(fmt16x2, 4); !errors.Is(err, ErrCommitTooLarge) {
		t.Errorf("commit without reserve: got %v, want ErrCommitTooLarge", err)
	}
}

func TestResetClearsTag(t *testing.T) {
	c := New()
	fillAndCommit(t, c, fmt16x2, 8)
	c.SetTag(&Tag{Title: "a", Artist: "b"})

	c.Reset()

	if c.Length() != 0 {
		t.Errorf("length after Reset: got %d, want 0", c.Length())
	}
	if c.Tag() != nil {
		t.Errorf("tag after Reset: got %+v, want nil", c.Tag())
	}
}

func TestSetTagReplacesPrevious(t *testing.T) {
	c := New()

	first := &Tag{Title: "first"}
	second := &Tag{Title: "second"}

	c.SetTag(first)
	c.SetTag(second)

	if c.Tag() != second {
		t.Errorf("Tag: got %+v, want the replacement", c.Tag())
	}
}

func TestWriteThroughReservedRegion(t *testing.T) {
	c := New()

	region, err := c.Reserve(fmt16x2, 0, 0)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	payload := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	copy(region, payload)
	if _, err := c.Commit(fmt16x2, len(payload)); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	got := c.Bytes()
	if len(got) != len(payload) {
		t.Fatalf("Bytes length: got %d, want %d", len(got), len(payload))
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte %d: got %#x, want %#x", i, got[i], payload[i])
		}
	}
}

func TestStrictModePanics(t *testing.T) {
	SetStrict(true)
	defer SetStrict(false)

	c := New()
	fillAndCommit(t, c, fmt16x2, 4)

	defer func() {
		if recover() == nil {
			t.Errorf("format mismatch under strict mode did not panic")
		}
	}()
	other := AudioFormat{SampleRate: 48000, Channels: 1, BitsPerSample: 16}
	c.Reserve(other, 0, 0)
}

func BenchmarkReserveCommit(b *testing.B) {
	c := New()
	frameSize := fmt16x2.FrameSize()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		region, _ := c.Reserve(fmt16x2, 0, 0)
		if region == nil {
			c.Reset()
			continue
		}
		n := min(len(region), 256*frameSize)
		c.Commit(fmt16x2, n)
	}
}
