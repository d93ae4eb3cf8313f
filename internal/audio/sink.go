package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Sink plays audio streams through freshly spawned player processes.
type Sink struct {
	spawner Spawner
	bridge  *Bridge
	logger  *log.Logger
}

// NewSink creates a sink that spawns players with spawner.
func NewSink(spawner Spawner, logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("sink")
	return &Sink{
		spawner: spawner,
		bridge:  &Bridge{Logger: logger},
		logger:  logger,
	}
}

// Play spawns one player, pipes stream into it and returns once the player
// has exited. The exit code is the only completion signal: a drained stream
// does not end playback, and a failed stream does not fail it unless the
// player also exits nonzero. Play takes ownership of stream.
func (s *Sink) Play(ctx context.Context, stream io.ReadCloser) error {
	var (
		mu          sync.Mutex
		diagnostics strings.Builder
	)
	collect := func(text string) {
		mu.Lock()
		diagnostics.WriteString(text)
		mu.Unlock()
		s.logger.Debug("Player diagnostic", "text", strings.TrimSpace(text))
	}

	proc, err := s.spawner.Spawn(ctx, collect)
	if err != nil {
		_ = stream.Close()
		return err
	}

	src := &abortableStream{ReadCloser: stream}

	var (
		pipes   errgroup.Group
		bridged BridgeResult
	)
	pipes.Go(func() error {
		bridged = s.bridge.Pipe(proc, src)
		return nil
	})

	code, waitErr := proc.Wait()

	// The player is gone; release a reader that may still be blocked.
	src.Abort()
	_ = pipes.Wait()

	mu.Lock()
	details := diagnostics.String()
	mu.Unlock()

	if waitErr != nil {
		return fmt.Errorf("wait for audio player: %w", waitErr)
	}

	streamErr := bridged.ReadErr
	if errors.Is(streamErr, ErrStreamAborted) {
		streamErr = nil
	}
	if code != 0 {
		s.logger.Error("Audio player exited with error", "code", code, "details", details)
		return &PlaybackFailedError{
			Code:        code,
			Diagnostics: details,
			StreamErr:   streamErr,
		}
	}

	if streamErr != nil {
		s.logger.Warn("Playback finished despite stream error", "error", streamErr)
	}
	return nil
}

// PlaySource opens src and plays it.
func (s *Sink) PlaySource(ctx context.Context, src Source) error {
	stream, err := src.Open(ctx)
	if err != nil {
		return err
	}
	return s.Play(ctx, stream)
}
