// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs or a local
// Coqui server) and synthesises a complete utterance per call. Synthesis is
// always best-effort for callers: an answer is still delivered when audio
// generation fails, so implementations surface errors rather than panic and
// report their configuration state via IsConfigured.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by Synthesize when the provider is missing
// credentials or a voice. Callers should consult IsConfigured before
// synthesising and skip audio entirely when it reports false.
var ErrNotConfigured = errors.New("tts: provider is not configured")

// ErrEmptyText is returned when Synthesize is called with empty input.
var ErrEmptyText = errors.New("tts: text must not be empty")

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use; multiple synthesis
// requests may run in parallel.
type Provider interface {
	// Synthesize converts text into a complete audio clip and returns the
	// encoded bytes (MP3 for hosted providers, WAV for local servers). The
	// bytes are opaque to callers and are typically base64-encoded for
	// transport.
	//
	// Returns ErrEmptyText for empty input and ErrNotConfigured when the
	// provider lacks credentials. Network and provider errors are wrapped
	// and returned; they never panic.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// IsConfigured reports whether the provider has everything it needs to
	// synthesise (credentials, voice). When false, callers skip audio
	// generation and return text-only answers.
	IsConfigured() bool

	// VoiceID returns the configured voice identifier, for logging and
	// diagnostics.
	VoiceID() string
}
