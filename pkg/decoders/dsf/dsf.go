// Package dsf decodes DSF (DSD Stream File) containers into raw 1-bit
// DSD sample bytes, frame-interleaved across channels: byte 0 holds
// channel 0's next 8 samples, byte 1 channel 1's, and so on. The
// output feeds the DoP packer unchanged.
//
// DSF stores audio as fixed-size per-channel blocks (normally 4096
// bytes) and, in its common 1-bit form, with the oldest sample in the
// least significant bit. DoP transports want the oldest sample first,
// so LSB-first data is bit-reversed on the way out.
package dsf

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/drgolem/audiopipe/pkg/instream"
	"github.com/drgolem/audiopipe/pkg/types"
)

const (
	dsdChunkSize = 28
	fmtChunkSize = 52

	// Block size the standard prescribes; files declare it in the fmt
	// chunk and we honor whatever they say.
	defaultBlockSize = 4096
)

// bitReverse maps a byte to its bit-reversed value, for LSB-first files.
var bitReverse [256]byte

func init() {
	for i := range bitReverse {
		b := byte(i)
		b = b>>4 | b<<4
		b = b>>2&0x33 | b<<2&0xCC
		b = b>>1&0x55 | b<<1&0xAA
		bitReverse[i] = b
	}
}

// Decoder reads DSF files. Implements types.AudioDecoder with 1-bit
// samples: GetFormat reports the DSD sample rate and a bit depth of 1,
// and DecodeSamples counts frames of one byte (8 samples) per channel.
// Also implements types.FrameSeeker and types.TagScanner.
type Decoder struct {
	file *os.File
	in   *instream.Stream

	channels   int
	sampleRate int   // DSD 1-bit sample rate, e.g. 2822400
	lsbFirst   bool  // sample bytes stored LSB first
	numSamples int64 // per channel, in 1-bit samples
	blockSize  int   // bytes per channel per block
	dataOffset int64

	// One staging buffer per channel holding the current block.
	blocks   [][]byte
	blockPos int   // consumed bytes within the current block group
	loaded   bool  // blocks hold valid data
	frame    int64 // absolute index of the next frame to decode
}

// NewDecoder creates a new DSF decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens a DSF file and parses its DSD, fmt and data chunks.
func (d *Decoder) Open(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open DSF file: %w", err)
	}

	in := instream.New(file)
	if err := d.parseHeader(in); err != nil {
		file.Close()
		return err
	}

	d.file = file
	d.in = in
	d.blocks = make([][]byte, d.channels)
	for ch := range d.blocks {
		d.blocks[ch] = make([]byte, d.blockSize)
	}
	return nil
}

func (d *Decoder) parseHeader(in *instream.Stream) error {
	var header [dsdChunkSize]byte
	if err := in.ReadFull(header[:]); err != nil {
		return fmt.Errorf("failed to read DSD chunk: %w", err)
	}
	if string(header[0:4]) != "DSD " {
		return fmt.Errorf("not a DSF file: bad chunk id %q", header[0:4])
	}
	if size := binary.LittleEndian.Uint64(header[4:12]); size != dsdChunkSize {
		return fmt.Errorf("unexpected DSD chunk size %d", size)
	}

	var format [fmtChunkSize]byte
	if err := in.ReadFull(format[:]); err != nil {
		return fmt.Errorf("failed to read fmt chunk: %w", err)
	}
	if string(format[0:4]) != "fmt " {
		return fmt.Errorf("bad fmt chunk id %q", format[0:4])
	}
	if size := binary.LittleEndian.Uint64(format[4:12]); size != fmtChunkSize {
		return fmt.Errorf("unexpected fmt chunk size %d", size)
	}
	if version := binary.LittleEndian.Uint32(format[12:16]); version != 1 {
		return fmt.Errorf("unsupported DSF format version %d", version)
	}
	if formatID := binary.LittleEndian.Uint32(format[16:20]); formatID != 0 {
		return fmt.Errorf("unsupported DSF format id %d (only raw DSD)", formatID)
	}

	channels := int(binary.LittleEndian.Uint32(format[24:28]))
	rate := int(binary.LittleEndian.Uint32(format[28:32]))
	bits := binary.LittleEndian.Uint32(format[32:36])
	numSamples := int64(binary.LittleEndian.Uint64(format[36:44]))
	blockSize := int(binary.LittleEndian.Uint32(format[44:48]))

	if channels < 1 || channels > 6 {
		return fmt.Errorf("unsupported channel count %d", channels)
	}
	if rate <= 0 {
		return fmt.Errorf("invalid sampling frequency %d", rate)
	}
	if bits != 1 && bits != 8 {
		return fmt.Errorf("unsupported bits per sample %d", bits)
	}
	if blockSize <= 0 || blockSize > defaultBlockSize*16 {
		return fmt.Errorf("implausible block size %d", blockSize)
	}

	var data [12]byte
	if err := in.ReadFull(data[:]); err != nil {
		return fmt.Errorf("failed to read data chunk: %w", err)
	}
	if string(data[0:4]) != "data" {
		return fmt.Errorf("bad data chunk id %q", data[0:4])
	}

	d.channels = channels
	d.sampleRate = rate
	d.lsbFirst = bits == 1
	d.numSamples = numSamples
	d.blockSize = blockSize
	d.dataOffset = in.Offset()
	return nil
}

// Close closes the decoder and releases resources
func (d *Decoder) Close() error {
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		d.in = nil
		return err
	}
	return nil
}

// GetFormat returns the DSD sample rate in Hz, the channel count and a
// bit depth of 1.
func (d *Decoder) GetFormat() (rate, channels, bitsPerSample int) {
	return d.sampleRate, d.channels, 1
}

// TotalFrames returns the stream length in byte-frames (8 samples per
// channel each).
func (d *Decoder) TotalFrames() int64 {
	return d.numSamples / 8
}

// loadBlockGroup reads the next block of every channel. Blocks at the
// end of the file are zero-padded by the writer, so full reads within
// the declared sample count never come up short.
func (d *Decoder) loadBlockGroup() error {
	for ch := 0; ch < d.channels; ch++ {
		if err := d.in.ReadFull(d.blocks[ch]); err != nil {
			return fmt.Errorf("dsf: block read for channel %d: %w", ch, err)
		}
	}
	d.blockPos = 0
	d.loaded = true
	return nil
}

// DecodeSamples decodes up to samples byte-frames into audio,
// interleaving one byte per channel per frame. The buffer must hold
// samples * channels bytes. Returns the number of whole frames
// produced; 0 with io.EOF at the end of the stream.
func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.in == nil {
		return 0, fmt.Errorf("decoder not initialized")
	}
	if fit := len(audio) / d.channels; samples > fit {
		samples = fit
	}

	produced := 0
	for produced < samples {
		remaining := d.TotalFrames() - d.frame
		if remaining <= 0 {
			if produced == 0 {
				return 0, io.EOF
			}
			break
		}

		if !d.loaded || d.blockPos >= d.blockSize {
			if err := d.loadBlockGroup(); err != nil {
				return produced, err
			}
		}

		n := min(samples-produced, d.blockSize-d.blockPos)
		if int64(n) > remaining {
			n = int(remaining)
		}

		for i := 0; i < n; i++ {
			for ch := 0; ch < d.channels; ch++ {
				b := d.blocks[ch][d.blockPos+i]
				if d.lsbFirst {
					b = bitReverse[b]
				}
				audio[(produced+i)*d.channels+ch] = b
			}
		}

		d.blockPos += n
		d.frame += int64(n)
		produced += n
	}

	return produced, nil
}

// SeekToFrame repositions the stream to an absolute byte-frame index.
// Implements types.FrameSeeker.
func (d *Decoder) SeekToFrame(frame int64) error {
	if d.in == nil {
		return fmt.Errorf("decoder not initialized")
	}
	if frame < 0 || frame > d.TotalFrames() {
		return fmt.Errorf("dsf: frame %d out of range [0, %d]", frame, d.TotalFrames())
	}

	group := frame / int64(d.blockSize)
	offset := d.dataOffset + group*int64(d.blockSize)*int64(d.channels)
	if _, err := d.in.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	d.loaded = false
	d.frame = group * int64(d.blockSize)

	// Consume the leading remainder of the block group.
	within := int(frame % int64(d.blockSize))
	if within > 0 {
		if err := d.loadBlockGroup(); err != nil {
			return err
		}
		d.blockPos = within
		d.frame = frame
	}
	return nil
}

// ScanTags emits stream metadata without decoding audio. Implements
// types.TagScanner.
func (d *Decoder) ScanTags(fn types.TagFunc) error {
	if d.in == nil {
		return fmt.Errorf("decoder not initialized")
	}

	duration := time.Duration(float64(d.numSamples) / float64(d.sampleRate) * float64(time.Second))
	fn("duration", duration.String())
	fn("dsd_rate", fmt.Sprintf("%d", d.sampleRate))
	fn("channels", fmt.Sprintf("%d", d.channels))
	return nil
}
