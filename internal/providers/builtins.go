// Package providers wires the built-in provider implementations into a
// config registry. Both binaries (the answering server and the ingestion CLI)
// call RegisterBuiltins so the YAML provider names resolve to the same
// implementations everywhere.
package providers

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/kotodama-ai/kotodama/internal/config"
	"github.com/kotodama-ai/kotodama/pkg/provider/embeddings"
	hfembed "github.com/kotodama-ai/kotodama/pkg/provider/embeddings/huggingface"
	oaembed "github.com/kotodama-ai/kotodama/pkg/provider/embeddings/openai"
	"github.com/kotodama-ai/kotodama/pkg/provider/llm"
	"github.com/kotodama-ai/kotodama/pkg/provider/llm/anyllm"
	oallm "github.com/kotodama-ai/kotodama/pkg/provider/llm/openai"
	"github.com/kotodama-ai/kotodama/pkg/provider/llm/openrouter"
	"github.com/kotodama-ai/kotodama/pkg/provider/tts"
	"github.com/kotodama-ai/kotodama/pkg/provider/tts/coqui"
	"github.com/kotodama-ai/kotodama/pkg/provider/tts/elevenlabs"
	"github.com/kotodama-ai/kotodama/pkg/vectorstore"
	"github.com/kotodama-ai/kotodama/pkg/vectorstore/pgvector"
	"github.com/kotodama-ai/kotodama/pkg/vectorstore/pinecone"
	"github.com/kotodama-ai/kotodama/pkg/vectorstore/upstash"
)

// Builtins maps provider category names to the implementations that ship
// with kotodama. Used for startup logging.
var Builtins = map[string][]string{
	"llm":         {"openai", "openrouter", "anthropic", "gemini", "ollama", "mistral", "groq"},
	"embeddings":  {"openai", "huggingface"},
	"tts":         {"elevenlabs", "coqui"},
	"vectorstore": {"pinecone", "upstash", "pgvector"},
}

// RegisterBuiltins wires all built-in provider factories into reg. Each
// factory receives its config entry and constructs the appropriate provider
// from the real implementation packages.
func RegisterBuiltins(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterLLM("openrouter", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openrouter.Option
		if entry.BaseURL != "" {
			opts = append(opts, openrouter.WithBaseURL(entry.BaseURL))
		}
		return openrouter.New(entry.APIKey, entry.Model, opts...)
	})

	// anthropic, gemini, mistral, and groq share the any-llm pattern:
	// optional APIKey + optional BaseURL.
	for _, providerName := range []string{"anthropic", "gemini", "mistral", "groq"} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("huggingface", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []hfembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, hfembed.WithBaseURL(entry.BaseURL))
		}
		return hfembed.New(entry.APIKey, entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.TTSEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		return elevenlabs.New(entry.APIKey, entry.VoiceID, opts...), nil
	})

	reg.RegisterTTS("coqui", func(entry config.TTSEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if speaker := optString(entry.Options, "speaker"); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		return coqui.New(entry.BaseURL, opts...), nil
	})

	// ── Vector stores ─────────────────────────────────────────────────────────

	reg.RegisterVectorStore("pinecone", func(vs config.VectorStoreConfig) (vectorstore.Index, error) {
		var opts []pinecone.Option
		if vs.Host != "" {
			opts = append(opts, pinecone.WithHost(vs.Host))
		}
		return pinecone.New(vs.APIKey, vs.IndexName, opts...)
	})

	reg.RegisterVectorStore("upstash", func(vs config.VectorStoreConfig) (vectorstore.Index, error) {
		return upstash.New(vs.URL, vs.Token)
	})

	reg.RegisterVectorStore("pgvector", func(vs config.VectorStoreConfig) (vectorstore.Index, error) {
		pool, err := pgxpool.New(context.Background(), vs.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return pgvector.New(pool, vs.IndexName)
	})

	// Debug log of all registered providers.
	for kind, names := range Builtins {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
