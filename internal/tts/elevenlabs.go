// Package tts talks to the speech providers: ElevenLabs for the primary voice
// and the Google Translate web API for the fallback voice.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxline/internal/audio"
	"github.com/dustin/go-humanize"
)

const (
	// DefaultBaseURL is the ElevenLabs v1 API root.
	DefaultBaseURL = "https://api.elevenlabs.io/v1"

	// DefaultModelID is used when no model is configured.
	DefaultModelID = "eleven_multilingual_v1"

	// DefaultOutputFormat is the encoding asked of the stream endpoint.
	DefaultOutputFormat = "mp3_44100_128"

	providerElevenLabs = "elevenlabs"
)

// VoiceSettings tunes the generated voice.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// DefaultVoiceSettings returns stability and similarity of 0.5.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{Stability: 0.5, SimilarityBoost: 0.5}
}

// ElevenLabsConfig holds configuration for the ElevenLabs provider.
type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string

	// ModelID defaults to DefaultModelID
	ModelID string

	Settings VoiceSettings

	// OutputFormat is sent as the output_format query parameter. Empty
	// means DefaultOutputFormat; "-" omits the parameter.
	OutputFormat string

	// BaseURL defaults to DefaultBaseURL
	BaseURL string

	// HTTPClient is used for streaming. Defaults to NewStreamingClient.
	HTTPClient *http.Client

	// ListClient is used for the voice list. Defaults to NewHTTPClient.
	ListClient *http.Client

	Logger *log.Logger
}

// ElevenLabs streams speech from the ElevenLabs API.
type ElevenLabs struct {
	config ElevenLabsConfig
	logger *log.Logger
}

// NewElevenLabs creates an ElevenLabs provider. Missing credentials are not
// an error here; they are reported by the first request that needs them.
func NewElevenLabs(config ElevenLabsConfig) *ElevenLabs {
	if config.ModelID == "" {
		config.ModelID = DefaultModelID
	}
	if config.OutputFormat == "" {
		config.OutputFormat = DefaultOutputFormat
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Settings == (VoiceSettings{}) {
		config.Settings = DefaultVoiceSettings()
	}
	if config.HTTPClient == nil {
		config.HTTPClient = NewStreamingClient()
	}
	if config.ListClient == nil {
		config.ListClient = NewHTTPClient(DefaultTimeout)
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &ElevenLabs{
		config: config,
		logger: logger.WithPrefix(providerElevenLabs),
	}
}

// VoiceID returns the configured voice ID.
func (e *ElevenLabs) VoiceID() string {
	return e.config.VoiceID
}

// ModelID returns the configured model ID.
func (e *ElevenLabs) ModelID() string {
	return e.config.ModelID
}

type streamRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// Stream asks ElevenLabs to synthesize text and returns the audio body as it
// arrives. The caller owns the stream. A 401 matches ErrUnauthorized and is
// never retried.
func (e *ElevenLabs) Stream(ctx context.Context, text string) (io.ReadCloser, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if e.config.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if e.config.VoiceID == "" {
		return nil, ErrNoVoiceID
	}

	body, err := json.Marshal(streamRequest{
		Text:          text,
		ModelID:       e.config.ModelID,
		VoiceSettings: e.config.Settings,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s/stream", e.config.BaseURL, url.PathEscape(e.config.VoiceID))
	if e.config.OutputFormat != "-" {
		endpoint += "?" + url.Values{"output_format": {e.config.OutputFormat}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	e.setHeaders(req)

	e.logger.Debug("Requesting speech", "voice", e.config.VoiceID, "model", e.config.ModelID, "chars", len(text))

	resp, err := e.config.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransportError{Provider: providerElevenLabs, Op: "stream request", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := parseError(resp)
		if apiErr.IsUnauthorized() {
			e.logger.Error("Unauthorized: not enough credits or invalid API key")
		}
		return nil, apiErr
	}

	e.logger.Debug("Got the audio stream", "status", resp.StatusCode)
	return &loggedStream{body: resp.Body, logger: e.logger}, nil
}

// Source returns an audio.Source that streams text when opened.
func (e *ElevenLabs) Source(text string) audio.Source {
	return audio.SourceFunc(func(ctx context.Context) (io.ReadCloser, error) {
		return e.Stream(ctx, text)
	})
}

// setHeaders sets required HTTP headers.
func (e *ElevenLabs) setHeaders(req *http.Request) {
	req.Header.Set("accept", "application/json")
	req.Header.Set("xi-api-key", e.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

// parseError reads and parses an error response.
func parseError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	// ElevenLabs reports {"detail": {"status": ..., "message": ...}}, or a
	// plain string detail for validation failures.
	var errResp struct {
		Detail json.RawMessage `json:"detail"`
	}

	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && len(errResp.Detail) > 0 {
		var detail struct {
			Message string `json:"message"`
		}
		var plain string
		switch {
		case json.Unmarshal(errResp.Detail, &detail) == nil && detail.Message != "":
			message = detail.Message
		case json.Unmarshal(errResp.Detail, &plain) == nil && plain != "":
			message = plain
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerElevenLabs,
	}
}

// loggedStream is a response body that logs a mid-transfer failure before
// handing it to the reader.
type loggedStream struct {
	body   io.ReadCloser
	logger *log.Logger

	n      atomic.Int64
	logged bool
	once   sync.Once
	err    error
}

func (s *loggedStream) Read(p []byte) (int, error) {
	n, err := s.body.Read(p)
	total := s.n.Add(int64(n))
	if err != nil && !errors.Is(err, io.EOF) && !s.logged {
		s.logged = true
		s.logger.Warn("Response data stream error", "error", err, "received", humanize.Bytes(uint64(total)))
	}
	return n, err
}

func (s *loggedStream) Close() error {
	s.once.Do(func() {
		s.err = s.body.Close()
		s.logger.Debug("Audio stream closed", "received", humanize.Bytes(uint64(s.n.Load())))
	})
	return s.err
}
