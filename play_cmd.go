package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:     "play FILE...",
	Short:   "Play audio files",
	Long:    paragraph(fmt.Sprintf("\n%s local audio files through the player, in order, sharing the queue with speech.", keyword("Play"))),
	Example: paragraph("voxline play intro.mp3 outro.mp3"),
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, appOptions{quietQueue: true})
		if err != nil {
			return err
		}

		r := newReport(os.Stderr, false)
		for _, path := range args {
			r.track(a.handler.PlayFile(path))
		}

		if err := a.Close(context.Background()); err != nil {
			return err
		}
		return r.wait()
	},
}
