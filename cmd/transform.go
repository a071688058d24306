package cmd

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/drgolem/audiopipe/pkg/audiochunk"
	"github.com/drgolem/audiopipe/pkg/decoders"
	"github.com/drgolem/audiopipe/pkg/types"

	"github.com/spf13/cobra"
	wav "github.com/youpy/go-wav"
	soxr "github.com/zaf/resample"
)

var transformCmd = &cobra.Command{
	Use:   "transform <input_file>",
	Short: "Transform audio file sample rate and format",
	Long: `Transform audio files to different sample rates and convert to WAV format.
Supports input from MP3, FLAC, and WAV sources with optional mono conversion.

Examples:
  # Transform MP3 to 48kHz WAV
  audiopipe transform input.mp3 --new-samplerate 48000 --out output.wav

  # Transform FLAC to 44.1kHz mono WAV
  audiopipe transform input.flac --new-samplerate 44100 --mono --out output.wav

Supported Input Formats:
  - MP3 (.mp3)
  - FLAC (.flac)
  - WAV (.wav)

Output Format:
  - WAV (16-bit PCM)

Sample Rate Options:
  Common rates: 8000, 16000, 22050, 44100, 48000, 96000, 192000 Hz`,
	Args: cobra.ExactArgs(1),
	Run:  runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)

	transformCmd.Flags().Int("new-samplerate", 48000, "Target sample rate in Hz")
	transformCmd.Flags().String("out", "out_transformed.wav", "Output WAV file path")
	transformCmd.Flags().Bool("mono", false, "Convert output to mono signal (average channels)")
}

func runTransform(cmd *cobra.Command, args []string) {
	inFileName := args[0]

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{}))
	slog.SetDefault(logger)

	if _, err := os.Stat(inFileName); os.IsNotExist(err) {
		slog.Error("Input file not found", "path", inFileName)
		os.Exit(1)
	}

	newSampleRate, _ := cmd.Flags().GetInt("new-samplerate")
	outFileName, _ := cmd.Flags().GetString("out")
	convertToMono, _ := cmd.Flags().GetBool("mono")

	if newSampleRate <= 0 || newSampleRate > 384000 {
		slog.Error("Invalid sample rate", "rate", newSampleRate, "valid_range", "1-384000")
		os.Exit(1)
	}

	decoder, err := decoders.NewDecoder(inFileName)
	if err != nil {
		slog.Error("Failed to create decoder", "error", err)
		os.Exit(1)
	}
	defer decoder.Close()

	inSampleRate, channels, bitsPerSample := decoder.GetFormat()
	if bitsPerSample != 16 {
		slog.Error("Only 16-bit PCM sources can be transformed",
			"bits_per_sample", bitsPerSample)
		os.Exit(1)
	}

	slog.Info("Audio transformation starting",
		"input_file", inFileName,
		"input_sample_rate", inSampleRate,
		"input_channels", channels,
		"output_sample_rate", newSampleRate,
		"output_mono", convertToMono,
		"output_file", outFileName)

	audioData, totalFrames, err := decodeAllAudio(decoder, channels, bitsPerSample)
	if err != nil {
		slog.Error("Failed to decode audio", "error", err)
		os.Exit(1)
	}

	slog.Info("Decoding complete",
		"input_frames", totalFrames,
		"input_bytes", len(audioData))

	resampledData, err := resampleAudio(audioData, inSampleRate, newSampleRate, channels)
	if err != nil {
		slog.Error("Failed to resample audio", "error", err)
		os.Exit(1)
	}

	bytesPerSample := bitsPerSample / 8
	outFrames := len(resampledData) / (channels * bytesPerSample)

	outChannels := channels
	outputData := resampledData

	if convertToMono && channels > 1 {
		outputData = foldToMono16(resampledData, channels)
		outChannels = 1
	}

	if err := writeWAVFile(outFileName, outputData, uint32(outFrames), uint16(outChannels), uint32(newSampleRate), uint16(bitsPerSample)); err != nil {
		slog.Error("Failed to write WAV file", "error", err)
		os.Exit(1)
	}

	slog.Info("Transformation complete",
		"input_frames", totalFrames,
		"output_frames", outFrames,
		"sample_rate_ratio", fmt.Sprintf("%.3f", float64(newSampleRate)/float64(inSampleRate)))
}

// decodeAllAudio drains the decoder through an audio chunk: the
// decoder writes into reserved chunk storage, committed payloads are
// appended to the result. Returns the raw data and the frame count.
func decodeAllAudio(decoder types.AudioDecoder, channels, bitsPerSample int) ([]byte, int, error) {
	rate, _, _ := decoder.GetFormat()
	format := audiochunk.AudioFormat{
		SampleRate:    rate,
		Channels:      channels,
		BitsPerSample: bitsPerSample,
	}
	frameSize := format.FrameSize()

	chunk := audiochunk.New()
	audioData := make([]byte, 0, audiochunk.ChunkSize*16)
	totalFrames := 0

	for {
		region, err := chunk.Reserve(format, 0, 0)
		if err != nil {
			return nil, 0, err
		}
		if region == nil {
			audioData = append(audioData, chunk.Bytes()...)
			chunk.Reset()
			continue
		}

		framesRead, err := decoder.DecodeSamples(len(region)/frameSize, region)
		if framesRead > 0 {
			if _, cerr := chunk.Commit(format, framesRead*frameSize); cerr != nil {
				return nil, 0, cerr
			}
			totalFrames += framesRead
		}

		if err != nil {
			// Some codec wrappers signal the end with their own error
			// text instead of io.EOF.
			if errors.Is(err, io.EOF) || strings.Contains(err.Error(), "EOF") ||
				strings.Contains(err.Error(), "done") {
				break
			}
			return nil, 0, fmt.Errorf("decode error: %w", err)
		}
		if framesRead == 0 {
			break
		}
	}

	audioData = append(audioData, chunk.Bytes()...)
	return audioData, totalFrames, nil
}

// resampleAudio resamples audio data using SoXR (high-quality resampler)
func resampleAudio(audioData []byte, fromRate, toRate, channels int) ([]byte, error) {
	if fromRate == toRate {
		return audioData, nil
	}

	var bufResampled bytes.Buffer
	bufWriter := bufio.NewWriter(&bufResampled)

	resampler, err := soxr.New(
		bufWriter,
		float64(fromRate),
		float64(toRate),
		channels,
		soxr.I16,
		soxr.HighQ,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	if _, err := resampler.Write(audioData); err != nil {
		resampler.Close()
		return nil, fmt.Errorf("failed to resample: %w", err)
	}
	if err := resampler.Close(); err != nil {
		return nil, fmt.Errorf("failed to close resampler: %w", err)
	}
	if err := bufWriter.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush buffer: %w", err)
	}

	return bufResampled.Bytes(), nil
}

// foldToMono16 averages the channels of 16-bit interleaved audio.
func foldToMono16(data []byte, channels int) []byte {
	frameBytes := channels * 2
	frames := len(data) / frameBytes
	mono := make([]byte, frames*2)

	for f := 0; f < frames; f++ {
		sum := int32(0)
		for ch := 0; ch < channels; ch++ {
			off := f*frameBytes + ch*2
			sample := int16(uint16(data[off]) | uint16(data[off+1])<<8)
			sum += int32(sample)
		}
		avg := int16(sum / int32(channels))
		mono[f*2] = byte(avg)
		mono[f*2+1] = byte(avg >> 8)
	}

	return mono
}

// writeWAVFile writes audio data to a WAV file
func writeWAVFile(fileName string, audioData []byte, numSamples uint32, numChannels uint16, sampleRate uint32, bitsPerSample uint16) error {
	fOut, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer fOut.Close()

	wavWriter := wav.NewWriter(fOut, numSamples, numChannels, sampleRate, bitsPerSample)

	if _, err := wavWriter.Write(audioData); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}

	return nil
}
