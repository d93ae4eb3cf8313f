package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxline/internal/audio"
	"github.com/dgnsrekt/voxline/internal/cache"
	"golang.org/x/time/rate"
)

const (
	// DefaultGoogleHost is the Google Translate web host.
	DefaultGoogleHost = "https://translate.google.com"

	// MaxGoogleChars is the longest text Google Translate will speak.
	MaxGoogleChars = 199

	batchExecutePath = "/_/TranslateWebserverUi/data/batchexecute"
	batchRPCID       = "jQ1olc"

	providerGoogle = "google"
)

// Cache is the clip store Google consults before the network.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
}

// GoogleConfig holds configuration for the Google Translate fallback.
type GoogleConfig struct {
	// Host defaults to DefaultGoogleHost
	Host string

	// Language code (e.g., "fr", "en") - defaults to "fr"
	Language string

	// Rate limit requests per minute to avoid being blocked (defaults to 50)
	RequestsPerMinute int

	// Cache (optional)
	Cache Cache

	HTTPClient *http.Client
	Logger     *log.Logger
}

// Google synthesizes short MP3 clips through the Google Translate web API.
// It needs no credential, which makes it the fallback voice.
type Google struct {
	host        string
	language    string
	rateLimiter *rate.Limiter
	cache       Cache
	client      *http.Client
	logger      *log.Logger
}

// NewGoogle creates a Google Translate TTS provider.
func NewGoogle(config GoogleConfig) *Google {
	if config.Host == "" {
		config.Host = DefaultGoogleHost
	}
	if config.Language == "" {
		config.Language = "fr"
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 50 // Conservative default
	}
	if config.HTTPClient == nil {
		config.HTTPClient = NewHTTPClient(DefaultTimeout)
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Google{
		host:        strings.TrimRight(config.Host, "/"),
		language:    config.Language,
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1),
		cache:       config.Cache,
		client:      config.HTTPClient,
		logger:      logger.WithPrefix(providerGoogle),
	}
}

// Language returns the default language.
func (g *Google) Language() string {
	return g.language
}

// Synthesize returns the MP3 audio for text. Text longer than MaxGoogleChars
// runes is cut. An empty lang uses the configured language.
func (g *Google) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if lang == "" {
		lang = g.language
	}
	text = truncateRunes(text, MaxGoogleChars)

	key := cache.Key(providerGoogle, lang, text)
	if g.cache != nil {
		if clip, ok := g.cache.Get(key); ok {
			g.logger.Debug("Cache hit", "lang", lang, "chars", len(text))
			return clip, nil
		}
	}

	// Rate limit to avoid being blocked
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	clip, err := g.fetch(ctx, text, lang)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		// Cache errors are non-fatal
		if err := g.cache.Put(key, clip); err != nil {
			g.logger.Debug("Failed to cache clip", "error", err)
		}
	}
	return clip, nil
}

// Stream synthesizes text and exposes the decoded clip as a stream.
func (g *Google) Stream(ctx context.Context, text, lang string) (io.ReadCloser, error) {
	clip, err := g.Synthesize(ctx, text, lang)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(clip)), nil
}

// Source returns an audio.Source that synthesizes text when opened.
func (g *Google) Source(text, lang string) audio.Source {
	return audio.SourceFunc(func(ctx context.Context) (io.ReadCloser, error) {
		return g.Stream(ctx, text, lang)
	})
}

// fetch performs one batchexecute call.
func (g *Google) fetch(ctx context.Context, text, lang string) ([]byte, error) {
	form, err := batchRequest(text, lang)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.host+batchExecutePath, strings.NewReader(form))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	g.logger.Debug("Requesting fallback speech", "lang", lang, "chars", len(text))

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &TransportError{Provider: providerGoogle, Op: "batchexecute", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body)), Provider: providerGoogle}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Provider: providerGoogle, Op: "read response", Err: err}
	}

	encoded, err := parseBatchResponse(body)
	if err != nil {
		return nil, &TransportError{Provider: providerGoogle, Op: fmt.Sprintf("decode response (lang %q might not exist)", lang), Err: err}
	}

	clip, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &TransportError{Provider: providerGoogle, Op: "decode audio", Err: err}
	}
	return clip, nil
}

// batchRequest encodes the f.req form for the speech RPC. The RPC arguments
// are themselves a JSON string nested in the outer envelope.
func batchRequest(text, lang string) (string, error) {
	args, err := json.Marshal([]any{text, lang, nil, "null"})
	if err != nil {
		return "", fmt.Errorf("marshal rpc args: %w", err)
	}
	envelope, err := json.Marshal([][][]any{{{batchRPCID, string(args), nil, "generic"}}})
	if err != nil {
		return "", fmt.Errorf("marshal rpc envelope: %w", err)
	}
	return url.Values{"f.req": {string(envelope)}}.Encode(), nil
}

// parseBatchResponse extracts the base64 audio from a batchexecute reply:
// an anti-XSSI prefix, then [[ "wrb.fr", rpcid, "<json payload>", ... ]]
// where the payload is ["<base64>"].
func parseBatchResponse(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	body = bytes.TrimPrefix(body, []byte(")]}'"))

	var envelope [][]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(body), &envelope); err != nil {
		return "", fmt.Errorf("parse envelope: %w", err)
	}
	if len(envelope) == 0 || len(envelope[0]) < 3 {
		return "", ErrNoAudio
	}

	var payload *string
	if err := json.Unmarshal(envelope[0][2], &payload); err != nil {
		return "", fmt.Errorf("parse payload: %w", err)
	}
	if payload == nil || *payload == "" {
		return "", ErrNoAudio
	}

	var inner []json.RawMessage
	if err := json.Unmarshal([]byte(*payload), &inner); err != nil {
		return "", fmt.Errorf("parse payload: %w", err)
	}
	if len(inner) == 0 {
		return "", ErrNoAudio
	}
	var encoded string
	if err := json.Unmarshal(inner[0], &encoded); err != nil || encoded == "" {
		return "", ErrNoAudio
	}
	return encoded, nil
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
