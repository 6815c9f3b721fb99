// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to return controlled audio bytes to consumers and to verify
// the text passed to the TTS backend.
//
// Example:
//
//	p := &mock.Provider{
//	    SynthesizeResult: []byte("mp3-bytes"),
//	    Configured:       true,
//	}
//	audio, err := p.Synthesize(ctx, "こんにちは")
package mock

import (
	"context"
	"sync"

	"github.com/kotodama-ai/kotodama/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// SynthesizeResult is returned by Synthesize when SynthesizeFunc is nil.
	SynthesizeResult []byte

	// SynthesizeFunc, if non-nil, is consulted instead of SynthesizeResult so
	// tests can vary the response per call.
	SynthesizeFunc func(text string) ([]byte, error)

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error

	// Configured is returned by IsConfigured.
	Configured bool

	// VoiceIDValue is returned by VoiceID.
	VoiceIDValue string

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns the configured response.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text})
	if p.SynthesizeFunc != nil {
		return p.SynthesizeFunc(text)
	}
	if p.SynthesizeErr != nil {
		return nil, p.SynthesizeErr
	}
	return p.SynthesizeResult, nil
}

// IsConfigured returns Configured.
func (p *Provider) IsConfigured() bool {
	return p.Configured
}

// VoiceID returns VoiceIDValue.
func (p *Provider) VoiceID() string {
	return p.VoiceIDValue
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
