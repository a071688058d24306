package audiochunk

import "fmt"

// AudioFormat describes the layout of raw interleaved PCM data:
// sample rate in Hz, channel count and bit depth per sample.
type AudioFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Valid reports whether every field holds a usable value.
// Bit depth must be byte-aligned; sub-byte encodings (raw DSD) are
// repacked before they reach a chunk.
func (f AudioFormat) Valid() bool {
	return f.SampleRate > 0 &&
		f.Channels > 0 &&
		f.BitsPerSample > 0 &&
		f.BitsPerSample%8 == 0
}

// FrameSize returns the number of bytes occupied by one frame
// (one sample per channel).
func (f AudioFormat) FrameSize() int {
	return f.Channels * (f.BitsPerSample / 8)
}

func (f AudioFormat) String() string {
	return fmt.Sprintf("%d:%d:%d", f.SampleRate, f.BitsPerSample, f.Channels)
}
