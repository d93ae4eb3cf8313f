// Package voice composes the voxline pipeline: every request becomes one
// "generate then play" action on a single serial queue.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxline/internal/audio"
	"github.com/dgnsrekt/voxline/internal/queue"
	"github.com/dgnsrekt/voxline/internal/tts"
)

// ErrNoSpeaker is returned by Say when no remote voice is configured.
var ErrNoSpeaker = errors.New("no remote voice configured")

// ErrNoFallback is returned by SayFallback when no fallback voice is configured.
var ErrNoFallback = errors.New("no fallback voice configured")

// Speaker streams speech for text, e.g. *tts.ElevenLabs.
type Speaker interface {
	Stream(ctx context.Context, text string) (io.ReadCloser, error)
}

// FallbackSpeaker streams speech for text in a language, e.g. *tts.Google.
type FallbackSpeaker interface {
	Stream(ctx context.Context, text, lang string) (io.ReadCloser, error)
}

// Player plays one stream to completion, e.g. *audio.Sink.
type Player interface {
	Play(ctx context.Context, stream io.ReadCloser) error
}

// Normalizer rewrites text before it is sent to the speaker.
type Normalizer interface {
	Normalize(s string) string
}

// Handler turns requests into queued playback actions.
type Handler struct {
	queue  *queue.ActionQueue
	player Player

	speaker    Speaker
	fallback   FallbackSpeaker
	normalizer Normalizer

	autoFallback   bool
	onUnauthorized bool
	fallbackLang   string
	timeout        time.Duration

	logger *log.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithSpeaker sets the primary remote voice.
func WithSpeaker(s Speaker) Option {
	return func(h *Handler) { h.speaker = s }
}

// WithFallback sets the fallback voice and the language it speaks.
func WithFallback(f FallbackSpeaker, lang string) Option {
	return func(h *Handler) {
		h.fallback = f
		h.fallbackLang = lang
	}
}

// WithAutoFallback enables retrying a failed Say through the fallback voice.
// onUnauthorized extends that to rejected credentials.
func WithAutoFallback(enabled, onUnauthorized bool) Option {
	return func(h *Handler) {
		h.autoFallback = enabled
		h.onUnauthorized = onUnauthorized
	}
}

// WithNormalizer sets the text pre-processing step for Say.
func WithNormalizer(n Normalizer) Option {
	return func(h *Handler) { h.normalizer = n }
}

// WithTimeout bounds each action. Zero, the default, means no bound.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates a handler that runs actions on q and plays through p.
func NewHandler(q *queue.ActionQueue, p Player, opts ...Option) *Handler {
	h := &Handler{
		queue:  q,
		player: p,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.WithPrefix("voice")
	return h
}

// Queue returns the underlying action queue.
func (h *Handler) Queue() *queue.ActionQueue {
	return h.queue
}

// Say queues text for the primary voice. The text is normalized first. If
// the voice fails and automatic fallback is on, the raw text is spoken by
// the fallback voice instead; a rejected credential only falls back when
// configured to.
func (h *Handler) Say(text string) *queue.Completion {
	return h.queue.Submit(h.action("say", func(ctx context.Context) error {
		text := strings.TrimSpace(text)
		if text == "" {
			return tts.ErrEmptyText
		}

		stream, err := h.speak(ctx, text)
		if err != nil {
			if !h.shouldFallback(ctx, err) {
				return err
			}
			h.logger.Warn("Falling back to Google Translate", "error", err)
			stream, err = h.fallback.Stream(ctx, text, h.fallbackLang)
			if err != nil {
				return fmt.Errorf("fallback voice: %w", err)
			}
		}
		return h.player.Play(ctx, stream)
	}))
}

// SayFallback queues text for the fallback voice. An empty lang uses the
// configured fallback language.
func (h *Handler) SayFallback(text, lang string) *queue.Completion {
	return h.queue.Submit(h.action("say-fallback", func(ctx context.Context) error {
		if h.fallback == nil {
			return ErrNoFallback
		}
		if lang == "" {
			lang = h.fallbackLang
		}
		stream, err := h.fallback.Stream(ctx, text, lang)
		if err != nil {
			return err
		}
		return h.player.Play(ctx, stream)
	}))
}

// PlayFile queues a local audio file.
func (h *Handler) PlayFile(path string) *queue.Completion {
	return h.Play(audio.FileSource{Path: path})
}

// Play queues any audio source.
func (h *Handler) Play(src audio.Source) *queue.Completion {
	return h.queue.Submit(h.action("play", func(ctx context.Context) error {
		stream, err := src.Open(ctx)
		if err != nil {
			return err
		}
		return h.player.Play(ctx, stream)
	}))
}

// Close stops accepting requests and waits for queued ones to finish.
func (h *Handler) Close(ctx context.Context) error {
	return h.queue.Close(ctx)
}

func (h *Handler) speak(ctx context.Context, text string) (io.ReadCloser, error) {
	if h.speaker == nil {
		return nil, ErrNoSpeaker
	}
	if h.normalizer != nil {
		text = h.normalizer.Normalize(text)
	}
	return h.speaker.Stream(ctx, text)
}

func (h *Handler) shouldFallback(ctx context.Context, err error) bool {
	switch {
	case h.fallback == nil || !h.autoFallback:
		return false
	case ctx.Err() != nil:
		return false
	case errors.Is(err, tts.ErrEmptyText):
		return false
	case errors.Is(err, tts.ErrUnauthorized):
		return h.onUnauthorized
	default:
		return true
	}
}

// action wraps fn with the optional timeout and a log line.
func (h *Handler) action(kind string, fn queue.Action) queue.Action {
	return func(ctx context.Context) error {
		if h.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.timeout)
			defer cancel()
		}

		start := time.Now()
		err := fn(ctx)
		if err != nil {
			return err
		}
		h.logger.Debug("Action finished", "kind", kind, "duration", time.Since(start))
		return nil
	}
}
