package resilience

import (
	"context"
	"fmt"

	"github.com/kotodama-ai/kotodama/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] over a failover chain of speech
// backends, e.g. ElevenLabs primary with a local Coqui server as backup.
// Unconfigured backends are skipped without affecting their health tracking.
type TTSFallback struct {
	group *chain[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: newChain(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider. Fallbacks are tried in
// the order they are added, after the primary.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.add(name, provider)
}

// Synthesize converts text to audio using the first healthy, configured
// backend. Providers reporting IsConfigured() == false fail fast with
// ErrNotConfigured and the next backend is tried.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return run(f.group, func(p tts.Provider) ([]byte, error) {
		if !p.IsConfigured() {
			return nil, fmt.Errorf("%w: %v", errBackendSkipped, tts.ErrNotConfigured)
		}
		return p.Synthesize(ctx, text)
	})
}

// IsConfigured reports whether any backend is configured.
func (f *TTSFallback) IsConfigured() bool {
	for _, e := range f.group.entries {
		if e.backend.IsConfigured() {
			return true
		}
	}
	return false
}

// VoiceID returns the voice of the first configured backend.
func (f *TTSFallback) VoiceID() string {
	for _, e := range f.group.entries {
		if e.backend.IsConfigured() {
			return e.backend.VoiceID()
		}
	}
	return ""
}
