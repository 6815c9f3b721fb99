package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/kotodama-ai/kotodama/pkg/provider/embeddings"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":         {"openai", "openrouter", "anthropic", "gemini", "ollama", "mistral", "groq"},
	"embeddings":  {"openai", "huggingface"},
	"tts":         {"elevenlabs", "coqui"},
	"vectorstore": {"pinecone", "upstash", "pgvector"},
}

// Environment variables consulted by [applyEnvOverrides] when the
// corresponding config field is empty. Secrets stay out of checked-in YAML.
const (
	envAPIKeys     = "KOTODAMA_API_KEYS"
	envOpenAIKey   = "OPENAI_API_KEY"
	envOpenRouter  = "OPENROUTER_API_KEY"
	envHuggingFace = "HUGGINGFACE_API_KEY"
	envElevenLabs  = "ELEVENLABS_API_KEY"
	envPinecone    = "PINECONE_API_KEY"
	envUpstashURL  = "UPSTASH_VECTOR_REST_URL"
	envUpstashTok  = "UPSTASH_VECTOR_REST_TOKEN"
	envPostgresDSN = "DATABASE_URL"
)

// Load reads the YAML configuration file at path, applies environment
// overrides for secrets, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides,
// and validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides fills empty secret fields from the environment. A value
// present in the YAML always wins.
func applyEnvOverrides(cfg *Config) {
	setIfEmpty(&cfg.Admission.APIKeys, envAPIKeys)

	switch cfg.Providers.LLM.Name {
	case "openai":
		setIfEmpty(&cfg.Providers.LLM.APIKey, envOpenAIKey)
	case "openrouter":
		setIfEmpty(&cfg.Providers.LLM.APIKey, envOpenRouter)
	}
	switch cfg.Providers.Embeddings.Name {
	case "openai":
		setIfEmpty(&cfg.Providers.Embeddings.APIKey, envOpenAIKey)
	case "huggingface":
		setIfEmpty(&cfg.Providers.Embeddings.APIKey, envHuggingFace)
	}
	if cfg.Providers.TTS.Name == "elevenlabs" {
		setIfEmpty(&cfg.Providers.TTS.APIKey, envElevenLabs)
	}

	switch cfg.VectorStore.Provider {
	case "pinecone":
		setIfEmpty(&cfg.VectorStore.APIKey, envPinecone)
	case "upstash":
		setIfEmpty(&cfg.VectorStore.URL, envUpstashURL)
		setIfEmpty(&cfg.VectorStore.Token, envUpstashTok)
	case "pgvector":
		setIfEmpty(&cfg.VectorStore.PostgresDSN, envPostgresDSN)
	}
}

func setIfEmpty(field *string, envName string) {
	if *field == "" {
		*field = os.Getenv(envName)
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found; conditions
// that are suspicious but workable are logged as warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.Environment != "" && !cfg.Server.Environment.IsValid() {
		errs = append(errs, fmt.Errorf("server.environment %q is invalid; valid values: production, development", cfg.Server.Environment))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Admission
	if cfg.Server.IsProduction() && cfg.Admission.APIKeys == "" {
		errs = append(errs, errors.New("admission.api_keys is required when server.environment is production"))
	}
	if !cfg.Server.IsProduction() && cfg.Admission.APIKeys == "" {
		slog.Warn("admission.api_keys is empty; all requests will be accepted without authentication")
	}
	if cfg.Admission.RateWindowSeconds < 0 {
		errs = append(errs, fmt.Errorf("admission.rate_window_seconds %d is negative", cfg.Admission.RateWindowSeconds))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for _, fb := range cfg.Providers.LLMFallbacks {
		validateProviderName("llm", fb.Name)
	}
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	for _, fb := range cfg.Providers.TTSFallbacks {
		validateProviderName("tts", fb.Name)
	}
	validateProviderName("vectorstore", cfg.VectorStore.Provider)

	// Embedding model must resolve against the catalogue so dimensions and
	// query prefixes are known before anything is embedded.
	if cfg.Providers.Embeddings.Model != "" {
		if _, err := embeddings.ResolveModel(cfg.Providers.Embeddings.Model); err != nil {
			errs = append(errs, fmt.Errorf("providers.embeddings.model: %w", err))
		}
	}

	// Vector store backend requirements.
	switch cfg.VectorStore.Provider {
	case "pinecone":
		if cfg.VectorStore.APIKey == "" {
			errs = append(errs, errors.New("vectorstore.api_key is required for the pinecone provider"))
		}
		if cfg.VectorStore.IndexName == "" {
			errs = append(errs, errors.New("vectorstore.index_name is required for the pinecone provider"))
		}
	case "upstash":
		if cfg.VectorStore.URL == "" || cfg.VectorStore.Token == "" {
			errs = append(errs, errors.New("vectorstore.url and vectorstore.token are required for the upstash provider"))
		}
	case "pgvector":
		if cfg.VectorStore.PostgresDSN == "" {
			errs = append(errs, errors.New("vectorstore.postgres_dsn is required for the pgvector provider"))
		}
	}

	// Answer tuning.
	if cfg.Answer.Temperature < 0 || cfg.Answer.Temperature > 2 {
		errs = append(errs, fmt.Errorf("answer.temperature %.2f is out of range [0, 2]", cfg.Answer.Temperature))
	}
	if cfg.Answer.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("answer.max_tokens %d is negative", cfg.Answer.MaxTokens))
	}

	// Pipeline tuning.
	if cfg.Pipeline.MinChunkSize < 0 || cfg.Pipeline.MaxChunkSize < 0 {
		errs = append(errs, errors.New("pipeline chunk sizes must not be negative"))
	}
	if cfg.Pipeline.MinChunkSize > 0 && cfg.Pipeline.MaxChunkSize > 0 &&
		cfg.Pipeline.MinChunkSize > cfg.Pipeline.MaxChunkSize {
		errs = append(errs, fmt.Errorf("pipeline.min_chunk_size %d exceeds max_chunk_size %d",
			cfg.Pipeline.MinChunkSize, cfg.Pipeline.MaxChunkSize))
	}
	if cfg.Pipeline.TopicThreshold < 0 || cfg.Pipeline.TopicThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.topic_threshold %.2f is out of range [0, 1]", cfg.Pipeline.TopicThreshold))
	}

	// Enhancement needs an LLM to run on.
	if cfg.Pipeline.Enhancement.Enabled && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("pipeline.enhancement.enabled requires providers.llm to be configured"))
	}

	if cfg.Providers.TTS.Name != "" && cfg.Providers.TTS.VoiceID == "" && cfg.Providers.TTS.Name == "elevenlabs" {
		slog.Warn("providers.tts.voice_id is empty; synthesis will be disabled until a voice is configured")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
