package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxline/internal/audio"
	"github.com/spf13/cobra"
)

var (
	playerConfig = audio.DefaultPlayerConfig()

	// playerCmd is the playback executable voxline spawns for every clip:
	// audio on stdin, diagnostics on stderr, exit status 0 on success.
	playerCmd = &cobra.Command{
		Use:    "player",
		Short:  "Play audio from stdin",
		Hidden: true,
		Args:   cobra.NoArgs,
		// stderr carries diagnostics only; skip config and logging.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			log.SetOutput(io.Discard)
			return nil
		},
		RunE: func(*cobra.Command, []string) error {
			if err := audio.Play(bufio.NewReader(os.Stdin), playerConfig); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return nil
		},
	}
)

func init() {
	playerCmd.Flags().StringVar(&playerConfig.Format, "format", playerConfig.Format, "input format: mp3 or pcm")
	playerCmd.Flags().IntVar(&playerConfig.SampleRate, "rate", playerConfig.SampleRate, "PCM sample rate in Hz")
	playerCmd.Flags().IntVar(&playerConfig.Channels, "channels", playerConfig.Channels, "PCM channel count")
	playerCmd.Flags().Float64Var(&playerConfig.Volume, "volume", playerConfig.Volume, "volume from 0.0 to 1.0")
	playerCmd.Flags().DurationVar(&playerConfig.BufferSize, "buffer", playerConfig.BufferSize, "output buffer size")
}
