package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kotodama-ai/kotodama/pkg/provider/embeddings"
	"github.com/kotodama-ai/kotodama/pkg/provider/llm"
	"github.com/kotodama-ai/kotodama/pkg/provider/tts"
	"github.com/kotodama-ai/kotodama/pkg/vectorstore"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	llm        map[string]func(ProviderEntry) (llm.Provider, error)
	embeddings map[string]func(ProviderEntry) (embeddings.Provider, error)
	tts        map[string]func(TTSEntry) (tts.Provider, error)
	vector     map[string]func(VectorStoreConfig) (vectorstore.Index, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:        make(map[string]func(ProviderEntry) (llm.Provider, error)),
		embeddings: make(map[string]func(ProviderEntry) (embeddings.Provider, error)),
		tts:        make(map[string]func(TTSEntry) (tts.Provider, error)),
		vector:     make(map[string]func(VectorStoreConfig) (vectorstore.Index, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterEmbeddings registers an embeddings provider factory under name.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(TTSEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterVectorStore registers a vector index factory under name.
func (r *Registry) RegisterVectorStore(name string, factory func(VectorStoreConfig) (vectorstore.Index, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vector[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateEmbeddings instantiates an embeddings provider using the factory registered under entry.Name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embeddings[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry TTSEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateVectorStore instantiates a vector index using the factory registered
// under vs.Provider.
func (r *Registry) CreateVectorStore(vs VectorStoreConfig) (vectorstore.Index, error) {
	r.mu.RLock()
	factory, ok := r.vector[vs.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vectorstore/%q", ErrProviderNotRegistered, vs.Provider)
	}
	return factory(vs)
}
