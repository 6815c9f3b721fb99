// Package coqui provides a TTS provider backed by a locally-running Coqui TTS
// server, as a self-hosted alternative to hosted synthesis APIs. It implements
// the tts.Provider interface.
//
// Two API modes are supported:
//
//   - APIModeStandard (default): targets the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis is performed via GET /api/tts with
//     URL query parameters.
//
//   - APIModeXTTS: targets the Coqui XTTS v2 API server. Synthesis is
//     performed via POST /tts_to_audio/ with a JSON body.
//
// Both servers return a complete WAV clip per utterance. The bytes are
// returned verbatim; browsers and media players consume the container
// directly, so no transcoding is performed.
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kotodama-ai/kotodama/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultLanguage = "ja"
	defaultTimeout  = 30 * time.Second

	apiTTSEndpoint = "/api/tts"
	xttsEndpoint   = "/tts_to_audio/"
)

// APIMode selects which Coqui server API the provider will target.
type APIMode string

const (
	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	// This is the default mode.
	APIModeStandard APIMode = "standard"

	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the language code sent to the TTS server (e.g., "ja",
// "en"). Defaults to "ja".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithSpeaker sets the speaker identifier. Required for multi-speaker models
// and for XTTS mode (where it names the speaker WAV).
func WithSpeaker(speaker string) Option {
	return func(p *Provider) {
		p.speaker = speaker
	}
}

// WithAPIMode sets the server API mode. Use APIModeStandard (default) for the
// standard Coqui TTS Docker image or APIModeXTTS for the XTTS v2 API server.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) {
		p.apiMode = mode
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider backed by a locally-running Coqui TTS
// server. It is safe for concurrent use.
type Provider struct {
	serverURL  string
	language   string
	speaker    string
	apiMode    APIMode
	httpClient *http.Client
}

// New creates a new Coqui Provider that targets the TTS server at serverURL
// (e.g., "http://localhost:5002"). An empty serverURL does not fail
// construction; the provider reports IsConfigured() == false.
func New(serverURL string, opts ...Option) *Provider {
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		apiMode:    APIModeStandard,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// xttsRequest is the JSON body sent to POST /tts_to_audio/ (XTTS mode).
type xttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// Synthesize implements tts.Provider. It returns the WAV bytes for the full
// utterance.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("coqui: %w", tts.ErrNotConfigured)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("coqui: %w", tts.ErrEmptyText)
	}
	if p.apiMode == APIModeXTTS {
		return p.synthesizeXTTS(ctx, text)
	}
	return p.synthesizeStandard(ctx, text)
}

// synthesizeStandard performs a single GET /api/tts request using URL query
// parameters.
func (p *Provider) synthesizeStandard(ctx context.Context, text string) ([]byte, error) {
	params := url.Values{}
	params.Set("text", text)
	if p.speaker != "" {
		params.Set("speaker_id", p.speaker)
	}
	if p.language != "" {
		params.Set("language_id", p.language)
	}

	reqURL := p.serverURL + apiTTSEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: build request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	return p.doAudio(req, apiTTSEndpoint)
}

// synthesizeXTTS performs a single POST /tts_to_audio/ call (XTTS v2 mode).
func (p *Provider) synthesizeXTTS(ctx context.Context, text string) ([]byte, error) {
	if p.speaker == "" {
		return nil, fmt.Errorf("coqui: speaker must be set for XTTS mode")
	}
	body, err := json.Marshal(xttsRequest{
		Text:       text,
		SpeakerWav: p.speaker,
		Language:   p.language,
	})
	if err != nil {
		return nil, fmt.Errorf("coqui: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+xttsEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("coqui: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	return p.doAudio(req, xttsEndpoint)
}

// doAudio executes the request and returns the audio body.
func (p *Provider) doAudio(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: %s %s: %w", req.Method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: %s %s returned status %d", req.Method, endpoint, resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read audio response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("coqui: empty audio response")
	}
	return audio, nil
}

// IsConfigured implements tts.Provider. A Coqui server needs no credentials,
// only an address.
func (p *Provider) IsConfigured() bool {
	return p.serverURL != ""
}

// VoiceID implements tts.Provider.
func (p *Provider) VoiceID() string {
	return p.speaker
}
