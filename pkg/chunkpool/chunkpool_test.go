package chunkpool

import (
	"testing"

	"github.com/drgolem/audiopipe/pkg/audiochunk"
)

func TestGetReturnsEmptyChunk(t *testing.T) {
	p := New()

	c := p.Get()
	if c == nil {
		t.Fatal("Get returned nil")
	}
	if c.Length() != 0 {
		t.Errorf("fresh chunk length: got %d, want 0", c.Length())
	}
	if c.Tag() != nil {
		t.Errorf("fresh chunk tag: got %+v, want nil", c.Tag())
	}
}

func TestPutResetsChunk(t *testing.T) {
	p := New()
	format := audiochunk.AudioFormat{SampleRate: 44100, Channels: 2, BitsPerSample: 16}

	c := p.Get()
	if _, err := c.Reserve(format, 0, 0); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if _, err := c.Commit(format, 8); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	c.SetTag(&audiochunk.Tag{Title: "stale"})

	p.Put(c)

	// Whatever chunk comes back next must be clean.
	next := p.Get()
	if next.Length() != 0 {
		t.Errorf("recycled chunk length: got %d, want 0", next.Length())
	}
	if next.Tag() != nil {
		t.Errorf("recycled chunk tag: got %+v, want nil", next.Tag())
	}
}

func TestPutNil(t *testing.T) {
	p := New()
	p.Put(nil) // must not panic
}
