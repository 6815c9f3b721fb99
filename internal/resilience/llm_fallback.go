package resilience

import (
	"context"

	"github.com/kotodama-ai/kotodama/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] over a failover chain of completion
// backends, e.g. OpenAI primary with OpenRouter and a local Ollama as backup.
// A backend that keeps failing is benched so answering traffic moves to the
// next one without paying for the dead hop on every request.
type LLMFallback struct {
	group *chain[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: newChain(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional LLM provider. Fallbacks are tried in
// the order they are added, after the primary.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.add(name, provider)
}

// Complete sends the request to the first healthy backend and returns its
// response.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return run(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// ModelID returns the model of the primary. This does not participate in
// failover because it is static metadata.
func (f *LLMFallback) ModelID() string {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].backend.ModelID()
	}
	return ""
}
