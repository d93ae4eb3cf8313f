package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxline/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Accept speech requests over HTTP",
		Long: paragraph(fmt.Sprintf("\n%s speech and playback requests over HTTP. "+
			"Requests share one queue, so they are played in arrival order.", keyword("Accept"))),
		Example: paragraph("voxline serve --addr 127.0.0.1:7878\n" +
			"curl -d '{\"text\":\"bonjour\"}' -H 'Content-Type: application/json' localhost:7878/speak"),
		Args: cobra.NoArgs,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	srv := server.New(a.handler, a.elevenlabs, log.Default())

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Listen(addr)
	}()
	fmt.Println("Listening on", keyword(addr))

	select {
	case err = <-errc:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
	}

	return errors.Join(err, a.Close(context.Background()))
}
