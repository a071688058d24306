package cmd

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/drgolem/audiopipe/pkg/decoders/dsf"
	"github.com/drgolem/audiopipe/pkg/dop"
	"github.com/drgolem/audiopipe/pkg/pcmbuffer"

	"github.com/spf13/cobra"
	wav "github.com/youpy/go-wav"
)

var packOutFile string

// packCmd represents the pack command
var packCmd = &cobra.Command{
	Use:   "pack <input_file.dsf>",
	Short: "Repack a DSF file into a DoP-encoded 24-bit WAV",
	Long: `Repack raw 1-bit DSD samples from a DSF file into DSD-over-PCM (DoP)
24-bit words and write them as a WAV file.

Every DSD byte becomes one 24-bit sample carrying a marker byte (0x05
alternating with 0xFA per frame) above 8 sample bits, so the output
plays as faint noise on a plain PCM device and as the original DSD
stream on a DoP-aware one. The PCM rate is the DSD rate divided by 8
(2822400 Hz DSD64 -> 352800 Hz).

Examples:
  # Pack with default output name
  audiopipe pack album.dsf

  # Explicit output path
  audiopipe pack album.dsf --out album_dop.wav`,
	Args: cobra.ExactArgs(1),
	Run:  runPack,
}

func init() {
	rootCmd.AddCommand(packCmd)

	packCmd.Flags().StringVar(&packOutFile, "out", "out_dop.wav", "Output WAV file path")
}

func runPack(cmd *cobra.Command, args []string) {
	inFileName := args[0]

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{}))
	slog.SetDefault(logger)

	decoder := dsf.NewDecoder()
	if err := decoder.Open(inFileName); err != nil {
		slog.Error("Failed to open DSF file", "error", err)
		os.Exit(1)
	}
	defer decoder.Close()

	dsdRate, channels, _ := decoder.GetFormat()
	totalFrames := decoder.TotalFrames()
	pcmRate := dsdRate / 8

	if err := decoder.ScanTags(func(key, value string) {
		slog.Info("Stream metadata", "key", key, "value", value)
	}); err != nil {
		slog.Warn("Tag scan failed", "error", err)
	}

	slog.Info("Packing DSD to DoP",
		"input_file", inFileName,
		"dsd_rate", dsdRate,
		"channels", channels,
		"pcm_rate", pcmRate,
		"frames", totalFrames,
		"output_file", packOutFile)

	fOut, err := os.OpenFile(packOutFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		slog.Error("Failed to create output file", "error", err)
		os.Exit(1)
	}
	defer fOut.Close()

	wavWriter := wav.NewWriter(fOut, uint32(totalFrames), uint16(channels), uint32(pcmRate), 24)

	if err := packStream(decoder, channels, wavWriter); err != nil {
		slog.Error("Packing failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Packing complete", "frames", totalFrames)
}

// packStream pumps DSD bytes through the DoP packer and writes the
// significant 3 bytes of every packed word as 24-bit WAV samples.
func packStream(decoder *dsf.Decoder, channels int, w io.Writer) error {
	const framesPerRead = 4096

	var packBuf pcmbuffer.Buffer
	dsdBuf := make([]byte, framesPerRead*channels)
	out := make([]byte, framesPerRead*channels*3)

	var frameOffset int64
	for {
		n, err := decoder.DecodeSamples(framesPerRead, dsdBuf)
		if n > 0 {
			packed, perr := dop.PackFrom(&packBuf, channels, frameOffset, dsdBuf[:n*channels])
			if perr != nil {
				return perr
			}
			frameOffset += int64(n)

			// Each 4-byte little-endian word holds a 24-bit sample in
			// its low 3 bytes: padding, DSD payload, marker.
			words := len(packed) / 4
			for i := 0; i < words; i++ {
				copy(out[i*3:i*3+3], packed[i*4:i*4+3])
			}
			if _, werr := w.Write(out[:words*3]); werr != nil {
				return werr
			}
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
