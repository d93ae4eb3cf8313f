package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxline/internal/tts"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	voicesRetries int
	voicesDelay   time.Duration

	voicesCmd = &cobra.Command{
		Use:   "voices [FILTER]",
		Short: "List the ElevenLabs voices",
		Long: paragraph(fmt.Sprintf("\n%s the voices available to your API key. "+
			"An optional filter is matched fuzzily against names, ids and labels.", keyword("List"))),
		Example: paragraph("voxline voices\nvoxline voices rach --retries 2"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			el := newElevenLabs(cfg.ElevenLabs)

			list, err := listVoicesWithRetry(cmd.Context(), el, voicesRetries, voicesDelay)
			if err != nil {
				return err
			}

			var filter string
			if len(args) > 0 {
				filter = args[0]
			}
			printVoices(os.Stdout, filterVoices(list.Voices, filter), el.VoiceID(), outputWidth())
			return nil
		},
	}
)

func init() {
	voicesCmd.Flags().IntVarP(&voicesRetries, "retries", "r", 0, "retry a failed request this many times")
	voicesCmd.Flags().DurationVar(&voicesDelay, "retry-delay", time.Second, "delay between retries")
}

type voiceLister interface {
	ListVoices(ctx context.Context) (*tts.VoiceList, error)
}

// listVoicesWithRetry retries failed requests with a fixed delay. A rejected
// API key is never retried.
func listVoicesWithRetry(ctx context.Context, l voiceLister, retries int, delay time.Duration) (*tts.VoiceList, error) {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			log.Warn("Retrying voice list", "attempt", attempt, "of", retries, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var list *tts.VoiceList
		list, err = l.ListVoices(ctx)
		if err == nil {
			return list, nil
		}
		if errors.Is(err, tts.ErrUnauthorized) || errors.Is(err, tts.ErrNoAPIKey) {
			return nil, err
		}
	}
	return nil, err
}

// voiceSource adapts voices to fuzzy.Source.
type voiceSource []tts.Voice

func (s voiceSource) String(i int) string {
	v := s[i]
	parts := []string{v.Name, v.VoiceID, v.Category}
	parts = append(parts, slices.Sorted(maps.Values(v.Labels))...)
	return strings.Join(parts, " ")
}

func (s voiceSource) Len() int { return len(s) }

// filterVoices returns the voices matching filter, best match first.
func filterVoices(voices []tts.Voice, filter string) []tts.Voice {
	if filter == "" {
		return voices
	}
	matches := fuzzy.FindFrom(filter, voiceSource(voices))
	out := make([]tts.Voice, 0, len(matches))
	for _, m := range matches {
		out = append(out, voices[m.Index])
	}
	return out
}

func printVoices(w io.Writer, voices []tts.Voice, current string, width int) {
	for _, v := range voices {
		marker := "  "
		if v.VoiceID == current {
			marker = keyword("*") + " "
		}
		line := fmt.Sprintf("%s%s  %s", marker, v.Name, faintStyle.Render(v.VoiceID))
		if v.Category != "" {
			line += "  " + v.Category
		}
		fmt.Fprintln(w, line)
		if v.Description != "" {
			fmt.Fprintln(w, faintStyle.Render(truncate.StringWithTail("    "+v.Description, uint(width), "…"))) //nolint:gosec
		}
	}
	fmt.Fprintln(w, faintStyle.Render(humanize.Comma(int64(len(voices)))+" voices"))
}

// outputWidth is the terminal width, capped at 120, or 80 when stdout is
// not a terminal.
func outputWidth() int {
	if term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 { //nolint:gosec
			return min(w, 120)
		}
	}
	return 80
}
