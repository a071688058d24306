package audiochunk

import (
	"errors"
	"fmt"
	"time"
)

// ChunkSize is the fixed payload capacity of a Chunk in bytes.
const ChunkSize = 4096

var (
	// ErrInvalidFormat indicates a Reserve or Commit with an audio
	// format that fails AudioFormat.Valid.
	ErrInvalidFormat = errors.New("audiochunk: invalid audio format")

	// ErrFormatMismatch indicates an attempt to write data of one
	// format into a chunk that already holds data of another. A chunk
	// carries exactly one format at a time.
	ErrFormatMismatch = errors.New("audiochunk: audio format mismatch")

	// ErrCommitTooLarge indicates a Commit larger than the
	// outstanding reservation.
	ErrCommitTooLarge = errors.New("audiochunk: commit exceeds reservation")

	// ErrUnalignedCommit indicates a Commit size that is not a whole
	// multiple of the frame size, which would split a frame across
	// chunk boundaries.
	ErrUnalignedCommit = errors.New("audiochunk: commit not frame aligned")
)

// strict upgrades contract violations from returned errors to panics,
// for use in tests and debug deployments. Toggle before any chunks are
// in flight; the flag is not synchronized.
var strict bool

// SetStrict controls whether contract violations panic instead of
// returning an error.
func SetStrict(enabled bool) {
	strict = enabled
}

func violation(err error) error {
	if strict {
		panic(err)
	}
	return err
}

// Tag carries stream metadata attached to the chunk where it became
// current. A chunk owns its tag exclusively.
type Tag struct {
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
}

// Chunk is a fixed-capacity staging buffer for raw interleaved PCM
// bytes, the unit handed from a decoding producer to the output
// consumer. Writers fill it through the two-phase Reserve/Commit
// protocol: Reserve hands out a whole-frame-sized window into the
// chunk's own storage so the decoder writes with no intermediate copy,
// and Commit confirms how much of the window was actually used.
//
// A chunk must not be mutated by more than one goroutine at a time;
// producer-to-consumer handoff is the pipe's job.
type Chunk struct {
	data     [ChunkSize]byte
	length   int
	reserved int

	format  AudioFormat
	seconds float64
	bitRate int

	tag *Tag
}

// New returns an empty chunk.
func New() *Chunk {
	return &Chunk{}
}

// Reserve returns a writable window into the chunk's storage sized to
// the largest whole number of frames that still fits, or nil if fewer
// than one frame of room remains. It does not advance the committed
// length; call Commit with the bytes actually written.
//
// While the chunk is empty, seconds and bitRate are captured for the
// whole chunk. Once data has been committed, format must match the
// committed data exactly.
func (c *Chunk) Reserve(format AudioFormat, seconds float64, bitRate int) ([]byte, error) {
	if !format.Valid() {
		return nil, violation(fmt.Errorf("%w: %s", ErrInvalidFormat, format))
	}
	if c.length > 0 && format != c.format {
		return nil, violation(fmt.Errorf("%w: chunk holds %s, writer supplied %s",
			ErrFormatMismatch, c.format, format))
	}

	if c.length == 0 {
		// Nobody has stamped the chunk yet.
		c.seconds = seconds
		c.bitRate = bitRate
	}

	frameSize := format.FrameSize()
	numFrames := (ChunkSize - c.length) / frameSize
	if numFrames == 0 {
		c.reserved = 0
		return nil, nil
	}

	c.format = format
	c.reserved = numFrames * frameSize
	return c.data[c.length : c.length+c.reserved], nil
}

// Commit records that n bytes of the window returned by the preceding
// Reserve were written. n must be a whole multiple of the frame size
// and no larger than the reservation. The returned flag is true when
// fewer than one additional frame fits, telling the producer to move
// on to the next chunk.
func (c *Chunk) Commit(format AudioFormat, n int) (bool, error) {
	if !format.Valid() {
		return false, violation(fmt.Errorf("%w: %s", ErrInvalidFormat, format))
	}
	if format != c.format {
		return false, violation(fmt.Errorf("%w: chunk holds %s, writer supplied %s",
			ErrFormatMismatch, c.format, format))
	}
	if n > c.reserved {
		return false, violation(fmt.Errorf("%w: %d bytes committed, %d reserved",
			ErrCommitTooLarge, n, c.reserved))
	}
	frameSize := format.FrameSize()
	if n%frameSize != 0 {
		return false, violation(fmt.Errorf("%w: %d bytes, frame size %d",
			ErrUnalignedCommit, n, frameSize))
	}

	c.length += n
	c.reserved = 0

	return ChunkSize-c.length < frameSize, nil
}

// Reset empties the chunk and destroys any attached tag. Format,
// timestamp and bit rate are meaningless until the next write.
func (c *Chunk) Reset() {
	c.length = 0
	c.reserved = 0
	c.tag = nil
}

// SetTag attaches a tag, replacing and discarding any previous one.
func (c *Chunk) SetTag(tag *Tag) {
	c.tag = tag
}

// Tag returns the attached tag, or nil.
func (c *Chunk) Tag() *Tag {
	return c.tag
}

// Bytes returns the committed payload.
func (c *Chunk) Bytes() []byte {
	return c.data[:c.length]
}

// Length returns the number of committed bytes.
func (c *Chunk) Length() int {
	return c.length
}

// Empty reports whether no bytes have been committed.
func (c *Chunk) Empty() bool {
	return c.length == 0
}

// Format returns the audio format of the committed data. Only
// meaningful while Length() > 0.
func (c *Chunk) Format() AudioFormat {
	return c.format
}

// Time returns the playback timestamp, in seconds, of the first frame.
func (c *Chunk) Time() float64 {
	return c.seconds
}

// BitRate returns the encoded bit rate, in kbit/s, in effect when the
// chunk was first written.
func (c *Chunk) BitRate() int {
	return c.bitRate
}
