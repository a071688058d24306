package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drgolem/audiopipe/internal/player"
	"github.com/drgolem/audiopipe/pkg/types"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"
)

var (
	playDeviceIdx    int
	playPipeCapacity uint64
	playPAFrames     int
	playVerbose      bool
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play <audio_file> [audio_file...]",
	Short: "Play audio files (MP3, FLAC, WAV, DSF)",
	Long: `Play one or more audio files sequentially through the chunk pipeline.

A producer goroutine decodes into pooled fixed-capacity chunks via the
reserve/commit protocol; the PortAudio callback drains them. DSF files
are tunneled as DSD-over-PCM (DoP) at one eighth of the DSD rate.

Examples:
  # Play a single file
  audiopipe play music.flac

  # Play a DSD file over a DoP-capable device
  audiopipe play -d 0 album.dsf

  # Play several files with a deeper pipe
  audiopipe play -c 64 song1.mp3 song2.wav

Supported Formats:
  MP3:  .mp3 (16-bit lossy)
  FLAC: .flac, .fla (16/24/32-bit lossless)
  WAV:  .wav (8/16/24/32-bit PCM)
  DSF:  .dsf (1-bit DSD, played as DoP)`,
	Args: cobra.MinimumNArgs(1),
	Run:  runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().IntVarP(&playDeviceIdx, "device", "d", 1, "Audio output device index")
	playCmd.Flags().Uint64VarP(&playPipeCapacity, "capacity", "c", 32, "Chunk pipe capacity (number of chunks)")
	playCmd.Flags().IntVarP(&playPAFrames, "paframes", "p", 512, "PortAudio frames per buffer")
	playCmd.Flags().BoolVarP(&playVerbose, "verbose", "v", false, "Verbose output (debug logging)")
}

func runPlay(cmd *cobra.Command, args []string) {
	logLevel := slog.LevelInfo
	if playVerbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	files := args

	slog.Info("Initializing PortAudio")
	if err := portaudio.Initialize(); err != nil {
		slog.Error("Failed to initialize PortAudio", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	slog.Info("PortAudio initialized", "version", portaudio.GetVersion())
	slog.Info("Configuration",
		"device_index", playDeviceIdx,
		"pipe_capacity", playPipeCapacity,
		"pa_frames_per_buffer", playPAFrames,
		"file_count", len(files))

	p := player.New(playDeviceIdx, playPipeCapacity, playPAFrames)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	for i, fileName := range files {
		if _, err := os.Stat(fileName); os.IsNotExist(err) {
			slog.Error("File not found, skipping", "path", fileName)
			continue
		}

		slog.Info("Opening audio file",
			"path", fileName,
			"index", fmt.Sprintf("%d/%d", i+1, len(files)))
		if err := p.OpenFile(fileName); err != nil {
			slog.Error("Failed to open file, skipping", "error", err)
			continue
		}

		if err := p.Play(); err != nil {
			slog.Error("Failed to start playback", "error", err)
			os.Exit(1)
		}

		statusDone := make(chan struct{})
		go monitorPlayback(p, statusDone)

		done := make(chan struct{})
		go func() {
			p.Wait()
			close(done)
		}()

		interrupted := false
		select {
		case <-done:
			slog.Info("Playback completed", "file", fileName)
		case sig := <-sigChan:
			slog.Info("Signal received, stopping playback", "signal", sig)
			interrupted = true
		}

		close(statusDone)
		if err := p.Stop(); err != nil {
			slog.Error("Failed to stop player", "error", err)
		}
		if interrupted {
			break
		}
	}

	slog.Info("Exiting")
}

// monitorPlayback logs playback status every 2 seconds until done is closed.
func monitorPlayback(monitor types.PlaybackMonitor, done chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status := monitor.GetPlaybackStatus()
			if status.SampleRate == 0 {
				continue
			}
			audioTime := time.Duration(float64(status.PlayedSamples) /
				float64(status.SampleRate) * float64(time.Second))

			slog.Info("Playback status",
				"file", status.FileName,
				"audio_time", audioTime.Round(time.Second),
				"elapsed", status.ElapsedTime.Round(time.Second),
				"played_frames", status.PlayedSamples,
				"buffered_frames", status.BufferedSamples)
		case <-done:
			return
		}
	}
}
