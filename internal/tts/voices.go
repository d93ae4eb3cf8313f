package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Voice is one entry of the ElevenLabs voice list.
type Voice struct {
	VoiceID     string            `json:"voice_id"`
	Name        string            `json:"name"`
	Category    string            `json:"category,omitempty"`
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	PreviewURL  string            `json:"preview_url,omitempty"`
}

// VoiceList is the GET /voices response.
type VoiceList struct {
	Voices []Voice `json:"voices"`
}

// Find returns the voice with the given ID.
func (l *VoiceList) Find(id string) (Voice, bool) {
	if l == nil {
		return Voice{}, false
	}
	for _, v := range l.Voices {
		if v.VoiceID == id {
			return v, true
		}
	}
	return Voice{}, false
}

// ListVoices fetches the voices available to the configured API key.
func (e *ElevenLabs) ListVoices(ctx context.Context) (*VoiceList, error) {
	if e.config.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.BaseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	e.setHeaders(req)

	resp, err := e.config.ListClient.Do(req)
	if err != nil {
		return nil, &TransportError{Provider: providerElevenLabs, Op: "list voices", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var list VoiceList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, &TransportError{Provider: providerElevenLabs, Op: "decode voices", Err: err}
	}
	return &list, nil
}

// Voices is ListVoices with the error logged and dropped: any failure
// yields nil.
func (e *ElevenLabs) Voices(ctx context.Context) *VoiceList {
	list, err := e.ListVoices(ctx)
	if err != nil {
		e.logger.Warn("Error while getting voices with ElevenLabs API", "error", err)
		return nil
	}
	return list
}
