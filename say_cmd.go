package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/dgnsrekt/voxline/internal/queue"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"golang.org/x/text/language"
)

var (
	sayClipboard  bool
	sayFallback   bool
	sayLang       string
	sayNoFallback bool

	sayCmd = &cobra.Command{
		Use:   "say [TEXT...]",
		Short: "Speak text",
		Long: paragraph(fmt.Sprintf("\n%s the arguments, the clipboard, or every line read from stdin. "+
			"Lines are spoken one after the other, never on top of each other.", keyword("Speak"))),
		Example: paragraph("voxline say \"J'ai 42 ans\"\n" +
			"echo hello | voxline say --fallback --lang en\n" +
			"voxline say --clipboard"),
		RunE: runSay,
	}
)

func init() {
	sayCmd.Flags().BoolVarP(&sayClipboard, "clipboard", "c", false, "speak the clipboard contents")
	sayCmd.Flags().BoolVarP(&sayFallback, "fallback", "f", false, "use the Google Translate voice")
	sayCmd.Flags().StringVarP(&sayLang, "lang", "l", "", "fallback voice language (default from config)")
	sayCmd.Flags().BoolVar(&sayNoFallback, "no-fallback", false, "do not fall back to Google Translate when ElevenLabs fails")
	sayCmd.MarkFlagsMutuallyExclusive("fallback", "no-fallback")
}

func runSay(cmd *cobra.Command, args []string) error {
	if sayLang != "" {
		if !sayFallback {
			return errors.New("--lang requires --fallback")
		}
		if _, err := language.Parse(sayLang); err != nil {
			return fmt.Errorf("invalid language %q: %w", sayLang, err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{noFallback: sayNoFallback, quietQueue: true})
	if err != nil {
		return err
	}

	say := func(line string) *queue.Completion {
		if sayFallback {
			return a.handler.SayFallback(line, sayLang)
		}
		return a.handler.Say(line)
	}

	interactive := len(args) == 0 && !sayClipboard && term.IsTerminal(int(os.Stdin.Fd())) //nolint:gosec
	r := newReport(os.Stderr, interactive)

	switch {
	case len(args) > 0:
		r.track(say(strings.Join(args, " ")))
	case sayClipboard:
		text, err := clipboard.ReadAll()
		if err != nil {
			_ = a.Close(ctx)
			return fmt.Errorf("unable to read clipboard: %w", err)
		}
		r.track(say(text))
	default:
		if interactive {
			fmt.Println(faintStyle.Render("Type a line and press Enter to hear it. Ctrl+D to quit."))
		}
		errc := make(chan error, 1)
		go func() {
			errc <- readLines(ctx, os.Stdin, func(line string) { r.track(say(line)) })
		}()
		// A terminal read does not return on interrupt.
		select {
		case err := <-errc:
			if err != nil {
				_ = a.Close(ctx)
				return err
			}
		case <-ctx.Done():
		}
	}

	if err := a.Close(context.Background()); err != nil {
		return err
	}
	return r.wait()
}

// readLines calls fn for every non-blank line of r until EOF or ctx ends.
func readLines(ctx context.Context, r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fn(line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("unable to read input: %w", err)
	}
	return nil
}
