package types

import (
	"time"

	"github.com/drgolem/ringbuffer"
)

// AudioDecoder is the common interface for all audio decoders. A
// decoder produces raw interleaved samples; the player stages them in
// audio chunks through the reserve/commit protocol.
type AudioDecoder interface {
	// Open opens an audio file for decoding
	Open(fileName string) error

	// Close closes the decoder and releases resources
	Close() error

	// GetFormat returns the audio format information
	// Returns: sample rate (Hz), channels (1=mono, 2=stereo), bits per sample
	GetFormat() (rate, channels, bitsPerSample int)

	// DecodeSamples decodes audio samples into the provided buffer
	// Parameters:
	//   samples: number of frames to decode (not bytes!)
	//   audio: buffer to write decoded audio data
	// Returns: number of frames actually decoded, error if decoding failed
	// Note: Buffer must be large enough: samples * channels * (bitsPerSample/8) bytes
	DecodeSamples(samples int, audio []byte) (int, error)
}

// FrameSeeker is implemented by decoders that can reposition the
// stream to an absolute frame index. After a successful seek the next
// DecodeSamples returns data starting at that frame.
type FrameSeeker interface {
	SeekToFrame(frame int64) error
}

// TagFunc receives one metadata key-value pair during a scan pass.
type TagFunc func(key, value string)

// TagScanner is implemented by decoders that can emit stream metadata
// (title, artist, duration) without decoding any audio.
type TagScanner interface {
	ScanTags(fn TagFunc) error
}

// PlaybackStatus holds unified playback information for audio players.
// This struct provides real-time metrics for monitoring audio playback.
type PlaybackStatus struct {
	FileName        string        // Name of the currently playing file
	SampleRate      int           // Audio sample rate in Hz (e.g., 44100, 48000)
	Channels        int           // Number of audio channels (1=mono, 2=stereo)
	BitsPerSample   int           // Bit depth (8, 16, 24, or 32)
	FramesPerBuffer int           // PortAudio frames per buffer (if applicable)
	PlayedSamples   uint64        // Samples actually sent to audio output (played)
	BufferedSamples uint64        // Samples decoded but not yet played (in-flight)
	ElapsedTime     time.Duration // Wall-clock time since playback started
}

// PlaybackMonitor is an interface for types that can report playback status.
type PlaybackMonitor interface {
	GetPlaybackStatus() PlaybackStatus
}

// Shared flow-control errors, re-exported from
// github.com/drgolem/ringbuffer so the chunk pipe reports the same
// values as byte-level ring buffers.
var (
	// ErrInsufficientSpace indicates the buffer doesn't have enough space for the write operation
	ErrInsufficientSpace = ringbuffer.ErrInsufficientSpace

	// ErrInsufficientData indicates the buffer doesn't have enough data for the read operation
	ErrInsufficientData = ringbuffer.ErrInsufficientData
)
