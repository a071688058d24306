package decoders

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/drgolem/audiopipe/pkg/decoders/dsf"
	"github.com/drgolem/audiopipe/pkg/decoders/flac"
	"github.com/drgolem/audiopipe/pkg/decoders/mp3"
	"github.com/drgolem/audiopipe/pkg/decoders/wav"
	"github.com/drgolem/audiopipe/pkg/types"
)

// NewDecoder creates and opens the appropriate decoder based on file
// extension. Supports .mp3, .flac, .fla, .wav and .dsf formats.
// Returns an opened decoder ready for use, or an error if the format
// is unsupported or the file cannot be opened.
func NewDecoder(fileName string) (types.AudioDecoder, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	var decoder types.AudioDecoder

	switch ext {
	case ".mp3":
		decoder = mp3.NewDecoder()
	case ".flac", ".fla":
		decoder = flac.NewDecoder()
	case ".wav":
		decoder = wav.NewDecoder()
	case ".dsf":
		decoder = dsf.NewDecoder()
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .mp3, .flac, .fla, .wav, .dsf)", ext)
	}

	if err := decoder.Open(fileName); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fileName, err)
	}

	return decoder, nil
}

// IsDSD reports whether the decoder produces raw 1-bit DSD bytes
// rather than byte-aligned PCM. DSD content is repacked with the DoP
// packer before it reaches a PCM transport.
func IsDSD(decoder types.AudioDecoder) bool {
	_, _, bits := decoder.GetFormat()
	return bits == 1
}
