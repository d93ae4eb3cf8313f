package tts

import (
	"errors"
	"fmt"
	"net/http"
)

// Common TTS errors
var (
	// ErrUnauthorized indicates the provider rejected the credential (HTTP 401)
	ErrUnauthorized = errors.New("unauthorized: invalid API key or not enough credits")

	// ErrEmptyText indicates there is nothing to synthesize
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrNoAPIKey indicates the ElevenLabs API key is not configured
	ErrNoAPIKey = errors.New("ElevenLabs API key required (set ELEVENLABS_APIKEY)")

	// ErrNoVoiceID indicates the ElevenLabs voice is not configured
	ErrNoVoiceID = errors.New("ElevenLabs voice ID required (set ELEVENLABS_VOICEID)")

	// ErrNoAudio indicates a response that carried no audio payload
	ErrNoAudio = errors.New("response contained no audio")
)

// APIError represents a non-2xx response from a TTS provider.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the API.
	Message string

	// Provider identifies which provider returned the error.
	Provider string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: API error %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match a 401 response.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.IsUnauthorized()
}

// IsUnauthorized returns true if this is an authentication error (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable returns true if the request may succeed when repeated.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// TransportError wraps a failure to reach a provider or to decode its reply.
type TransportError struct {
	Provider string
	Op       string
	Err      error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}
