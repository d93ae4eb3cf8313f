// Package server exposes the voice queue over HTTP. Every request that makes
// sound goes through the same serial queue as the CLI.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxline/internal/audio"
	"github.com/dgnsrekt/voxline/internal/queue"
	"github.com/dgnsrekt/voxline/internal/tts"
	"github.com/dgnsrekt/voxline/internal/voice"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Voice is the part of voice.Handler the server drives.
type Voice interface {
	Say(text string) *queue.Completion
	SayFallback(text, lang string) *queue.Completion
	PlayFile(path string) *queue.Completion
	Queue() *queue.ActionQueue
}

// VoiceLister lists remote voices, e.g. *tts.ElevenLabs.
type VoiceLister interface {
	ListVoices(ctx context.Context) (*tts.VoiceList, error)
}

// Server is the HTTP surface.
type Server struct {
	app    *fiber.App
	voice  Voice
	voices VoiceLister
	logger *log.Logger
}

// SpeakRequest is the body of POST /speak.
type SpeakRequest struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
	Lang     string `json:"lang"`
	Wait     bool   `json:"wait"`
}

// PlayRequest is the body of POST /play.
type PlayRequest struct {
	Path string `json:"path"`
	Wait bool   `json:"wait"`
}

// QueueStatus is the body of GET /queue.
type QueueStatus struct {
	Size      int        `json:"size"`
	Busy      bool       `json:"busy"`
	Enqueued  int64      `json:"enqueued"`
	Completed int64      `json:"completed"`
	Failed    int64      `json:"failed"`
	PeakSize  int        `json:"peak_size"`
	AvgRunMs  int64      `json:"avg_run_ms"`
	LastDone  *time.Time `json:"last_complete,omitempty"`
}

// New creates the server. voices may be nil, which disables GET /voices.
func New(v Voice, voices VoiceLister, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		voice:  v,
		voices: voices,
		logger: logger.WithPrefix("server"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "voxline",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())

	app.Post("/speak", s.handleSpeak)
	app.Post("/play", s.handlePlay)
	app.Get("/voices", s.handleVoices)
	app.Get("/queue", s.handleQueue)

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("Listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleSpeak(c *fiber.Ctx) error {
	var req SpeakRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return fiber.NewError(fiber.StatusBadRequest, tts.ErrEmptyText.Error())
	}

	var done *queue.Completion
	if req.Fallback {
		done = s.voice.SayFallback(req.Text, req.Lang)
	} else {
		done = s.voice.Say(req.Text)
	}
	return s.respond(c, done, req.Wait)
}

func (s *Server) handlePlay(c *fiber.Ctx) error {
	var req PlayRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	if req.Path == "" {
		return fiber.NewError(fiber.StatusBadRequest, "path is required")
	}
	return s.respond(c, s.voice.PlayFile(req.Path), req.Wait)
}

func (s *Server) handleVoices(c *fiber.Ctx) error {
	if s.voices == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "voice listing not configured")
	}
	list, err := s.voices.ListVoices(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (s *Server) handleQueue(c *fiber.Ctx) error {
	q := s.voice.Queue()
	stats := q.GetStats()

	status := QueueStatus{
		Size:      q.Size(),
		Busy:      q.Busy(),
		Enqueued:  stats.TotalEnqueued,
		Completed: stats.TotalCompleted,
		Failed:    stats.TotalFailed,
		PeakSize:  stats.PeakSize,
		AvgRunMs:  stats.AverageRunTime.Milliseconds(),
	}
	if !stats.LastComplete.IsZero() {
		last := stats.LastComplete
		status.LastDone = &last
	}
	return c.JSON(status)
}

// respond acknowledges a queued action, or with wait blocks until it has
// played and reports its outcome.
func (s *Server) respond(c *fiber.Ctx, done *queue.Completion, wait bool) error {
	if !wait {
		select {
		case <-done.Done():
			// Rejected before it was queued.
			if err := done.Err(); err != nil {
				return err
			}
		default:
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": done.ID().String(), "status": "queued"})
	}

	if err := done.Wait(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": done.ID().String(), "status": "played"})
}

// handleError maps pipeline errors to HTTP statuses.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	body := fiber.Map{"error": err.Error()}

	var (
		fe     *fiber.Error
		failed *audio.PlaybackFailedError
		apiErr *tts.APIError
		netErr *tts.TransportError
	)
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, tts.ErrUnauthorized):
		code = fiber.StatusUnauthorized
		body["error"] = tts.ErrUnauthorized.Error()
	case errors.Is(err, tts.ErrEmptyText):
		code = fiber.StatusBadRequest
	case errors.Is(err, audio.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, queue.ErrQueueClosed):
		code = fiber.StatusServiceUnavailable
	case errors.Is(err, voice.ErrNoSpeaker), errors.Is(err, voice.ErrNoFallback),
		errors.Is(err, tts.ErrNoAPIKey), errors.Is(err, tts.ErrNoVoiceID):
		code = fiber.StatusServiceUnavailable
	case errors.As(err, &failed):
		body["code"] = failed.Code
		body["diagnostics"] = failed.Diagnostics
	case errors.As(err, &apiErr), errors.As(err, &netErr):
		code = fiber.StatusBadGateway
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.Path(), "status", code, "error", err)
	}
	return c.Status(code).JSON(body)
}
