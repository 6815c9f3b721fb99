// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// one-shot synthesis endpoint. Each call posts the full utterance to
// /v1/text-to-speech/{voiceID} and returns the MP3 bytes the API streams back.
// It implements the tts.Provider interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kotodama-ai/kotodama/pkg/provider/tts"
)

const (
	// DefaultBaseURL is the ElevenLabs API endpoint.
	DefaultBaseURL = "https://api.elevenlabs.io"

	// DefaultModel is multilingual and handles Japanese narration well.
	DefaultModel = "eleven_multilingual_v2"

	defaultTimeout = 30 * time.Second
)

// Ensure Provider implements the tts.Provider interface.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithBaseURL overrides the default API endpoint.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel sets the ElevenLabs model ID (e.g., "eleven_multilingual_v2").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithVoiceSettings overrides the default stability/similarity settings.
func WithVoiceSettings(vs tts.VoiceSettings) Option {
	return func(p *Provider) {
		p.settings = vs
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider backed by the ElevenLabs REST API.
// It is safe for concurrent use.
type Provider struct {
	baseURL    string
	apiKey     string
	voiceID    string
	model      string
	settings   tts.VoiceSettings
	httpClient *http.Client
}

// New creates a new ElevenLabs Provider. An empty apiKey or voiceID does not
// fail construction; the provider reports IsConfigured() == false and callers
// skip synthesis. This lets deployments run text-only without separate wiring.
func New(apiKey, voiceID string, opts ...Option) *Provider {
	p := &Provider{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		voiceID:    voiceID,
		model:      DefaultModel,
		settings:   tts.DefaultVoiceSettings(),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// synthesizeRequest is the JSON body for POST /v1/text-to-speech/{voiceID}.
type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize implements tts.Provider. It returns the MP3 bytes for the full
// utterance.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("elevenlabs: %w", tts.ErrNotConfigured)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("elevenlabs: %w", tts.ErrEmptyText)
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:    text,
		ModelID: p.model,
		VoiceSettings: voiceSettings{
			Stability:       p.settings.Stability,
			SimilarityBoost: p.settings.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := p.baseURL + "/v1/text-to-speech/" + p.voiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("elevenlabs: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("elevenlabs: empty audio response")
	}
	return audio, nil
}

// IsConfigured implements tts.Provider.
func (p *Provider) IsConfigured() bool {
	return p.apiKey != "" && p.voiceID != ""
}

// VoiceID implements tts.Provider.
func (p *Provider) VoiceID() string {
	return p.voiceID
}
