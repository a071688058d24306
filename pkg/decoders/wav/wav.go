package wav

import (
	"fmt"
	"os"

	"github.com/youpy/go-wav"
)

// Decoder wraps go-wav for decoding WAV audio files.
// Implements types.AudioDecoder interface.
type Decoder struct {
	file     *os.File
	reader   *wav.Reader
	rate     int
	channels int
	bps      int
}

// NewDecoder creates a new WAV decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens a WAV file for decoding
func (d *Decoder) Open(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open WAV file: %w", err)
	}

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to read WAV format: %w", err)
	}

	if format.AudioFormat != wav.AudioFormatPCM {
		file.Close()
		return fmt.Errorf("unsupported WAV format: %d (only PCM supported)", format.AudioFormat)
	}

	d.file = file
	d.reader = reader
	d.rate = int(format.SampleRate)
	d.channels = int(format.NumChannels)
	d.bps = int(format.BitsPerSample)

	return nil
}

// Close closes the WAV file
func (d *Decoder) Close() error {
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		d.reader = nil
		return err
	}
	return nil
}

// GetFormat returns the audio format (sample rate, channels, bits per sample)
func (d *Decoder) GetFormat() (rate, channels, bitsPerSample int) {
	return d.rate, d.channels, d.bps
}

// DecodeSamples decodes up to 'samples' frames into audio as
// little-endian interleaved PCM. The buffer must hold at least
// samples * channels * (bitsPerSample/8) bytes. Returns the number of
// frames decoded; the final call returns fewer (possibly 0) together
// with the reader's end-of-stream error.
func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.reader == nil {
		return 0, fmt.Errorf("decoder not initialized")
	}

	bytesPerSample := d.bps / 8
	frameBytes := d.channels * bytesPerSample
	if fit := len(audio) / frameBytes; samples > fit {
		samples = fit
	}

	read, err := d.reader.ReadSamples(uint32(samples))
	for i, s := range read {
		for ch := 0; ch < d.channels; ch++ {
			value := 0
			if ch < len(s.Values) {
				value = s.Values[ch]
			}
			offset := i*frameBytes + ch*bytesPerSample
			for b := 0; b < bytesPerSample; b++ {
				audio[offset+b] = byte(value >> (8 * b))
			}
		}
	}

	if len(read) > 0 {
		// Partial success wins over the trailing error; the next call
		// reports end of stream.
		return len(read), nil
	}
	return 0, err
}
