package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "audiopipe",
	Short: "Chunk-pipelined audio player with DSD-over-PCM support",
	Long: `audiopipe - A streaming audio toolkit built around fixed-capacity audio
chunks moving through a lock-free SPSC pipe from decoder to output.

Decoders write straight into chunk storage through a reserve/commit
protocol (no intermediate copy, whole frames only, one format per
chunk). DSD sources are repacked on the fly into DoP (DSD-over-PCM)
24-bit words for playback over USB/S/PDIF class transports.

Commands:
  - play: Play audio files (MP3, FLAC, WAV, DSF) through the chunk pipeline
  - pack: Repack a DSF file into a DoP-encoded 24-bit WAV
  - transform: Convert audio files to different sample rates and WAV format`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
