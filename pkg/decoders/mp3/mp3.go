package mp3

import (
	"errors"
	"fmt"
	"io"
	"os"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// go-mp3 always decodes to 16-bit stereo regardless of the source.
const (
	channels      = 2
	bitsPerSample = 16
	frameBytes    = channels * bitsPerSample / 8
)

// Decoder wraps the pure-Go go-mp3 decoder.
// Implements types.AudioDecoder and types.FrameSeeker.
type Decoder struct {
	file    *os.File
	decoder *gomp3.Decoder
	rate    int
}

// NewDecoder creates a new MP3 decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens and initializes an MP3 file for decoding
func (d *Decoder) Open(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := gomp3.NewDecoder(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to open %s: %w", fileName, err)
	}

	d.file = file
	d.decoder = decoder
	d.rate = decoder.SampleRate()
	return nil
}

// Close closes the decoder and releases resources
func (d *Decoder) Close() error {
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		d.decoder = nil
		return err
	}
	return nil
}

// GetFormat returns the audio format (rate, channels, bits per sample)
func (d *Decoder) GetFormat() (int, int, int) {
	return d.rate, channels, bitsPerSample
}

// DecodeSamples decodes up to 'samples' frames of 16-bit stereo PCM
// into audio. Returns the number of whole frames decoded; 0 with
// io.EOF at the end of the stream.
func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.decoder == nil {
		return 0, fmt.Errorf("decoder not initialized")
	}

	want := samples * frameBytes
	if want > len(audio) {
		want = len(audio) - len(audio)%frameBytes
	}

	n, err := io.ReadFull(d.decoder, audio[:want])
	decoded := n / frameBytes
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if decoded == 0 {
			return 0, io.EOF
		}
		return decoded, nil
	}
	if err != nil {
		return decoded, fmt.Errorf("mp3 decode: %w", err)
	}
	return decoded, nil
}

// SeekToFrame repositions the decoded stream to an absolute frame
// index. Implements types.FrameSeeker.
func (d *Decoder) SeekToFrame(frame int64) error {
	if d.decoder == nil {
		return fmt.Errorf("decoder not initialized")
	}
	if _, err := d.decoder.Seek(frame*frameBytes, io.SeekStart); err != nil {
		return fmt.Errorf("mp3 seek to frame %d: %w", frame, err)
	}
	return nil
}

// TotalFrames returns the decoded stream length in frames.
func (d *Decoder) TotalFrames() int64 {
	if d.decoder == nil {
		return 0
	}
	return d.decoder.Length() / frameBytes
}
