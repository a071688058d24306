// Package dop packs 1-bit DSD samples into padded 24-bit PCM words for
// playback over USB and S/PDIF class transports, following the
// DoP open standard v1.1 (dCS et al.):
// http://dsd-guide.com/dop-open-standard
//
// Every DSD byte becomes one 32-bit output word holding a marker byte
// above the 8 payload bits and a zero pad byte below them:
//
//	word = marker<<16 | dsdByte<<8
//
// The marker alternates between 0x05 and 0xFA per frame so a DoP-aware
// receiver can tell tunneled DSD from genuine PCM and resynchronize
// after a discontinuity. The marker phase is a pure function of the
// absolute frame index, never of call boundaries.
package dop

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/drgolem/audiopipe/pkg/pcmbuffer"
)

// Marker bytes defined by the DoP standard. Frames with an even
// absolute index carry MarkerEven, odd frames MarkerOdd.
const (
	MarkerEven = 0x05
	MarkerOdd  = 0xFA
)

// ErrMalformedInput indicates DSD input that cannot be split into
// whole frames across the given channel count.
var ErrMalformedInput = errors.New("dop: malformed DSD input")

// Pack converts frame-interleaved DSD bytes (byte 0 = channel 0's next
// 8 samples, byte 1 = channel 1's, ...) into packed 32-bit
// little-endian words written into buf. It is PackFrom at frame
// offset 0, for a stream starting at its beginning.
func Pack(buf *pcmbuffer.Buffer, channels int, src []byte) ([]byte, error) {
	return PackFrom(buf, channels, 0, src)
}

// PackFrom is Pack for a stream resuming at an arbitrary position:
// frameOffset is the absolute index of the first DSD frame in src,
// from which the marker phase is derived. After a seek, pass the frame
// position seeked to; the marker sequence then matches what an
// uninterrupted stream would have carried.
//
// The returned view holds 4*len(src) bytes and aliases storage owned
// by buf; it is valid until the next call using the same buffer. No
// allocation occurs once buf has grown to the largest input seen.
func PackFrom(buf *pcmbuffer.Buffer, channels int, frameOffset int64, src []byte) ([]byte, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: channel count %d", ErrMalformedInput, channels)
	}
	if len(src)%channels != 0 {
		return nil, fmt.Errorf("%w: %d bytes not divisible by %d channels",
			ErrMalformedInput, len(src), channels)
	}

	dest := buf.Get(4 * len(src))

	for i, d := range src {
		marker := uint32(MarkerEven)
		if (frameOffset+int64(i/channels))&1 == 1 {
			marker = MarkerOdd
		}
		binary.LittleEndian.PutUint32(dest[4*i:], marker<<16|uint32(d)<<8)
	}

	return dest, nil
}
