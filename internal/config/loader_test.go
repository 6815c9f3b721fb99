package config

import (
	"strings"
	"testing"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
  environment: development
admission:
  api_keys: "key-a,key-b"
  allowed_origins: "https://app.kotodama.jp, *.kotodama.jp"
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  embeddings:
    name: huggingface
    api_key: hf-test
    model: multilingual-e5-base
  tts:
    name: elevenlabs
    api_key: el-test
    voice_id: voice-1
vectorstore:
  provider: upstash
  url: https://vec.upstash.io
  token: tok
  namespace: lecture-01
answer:
  temperature: 0.7
  max_tokens: 500
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.IsProduction() {
		t.Error("development config reported as production")
	}
	if cfg.Providers.Embeddings.Model != "multilingual-e5-base" {
		t.Errorf("embeddings model = %q", cfg.Providers.Embeddings.Model)
	}
	if cfg.Providers.TTS.VoiceID != "voice-1" {
		t.Errorf("tts voice_id = %q", cfg.Providers.TTS.VoiceID)
	}
	if cfg.VectorStore.Provider != "upstash" {
		t.Errorf("vectorstore provider = %q", cfg.VectorStore.Provider)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("server:\n  listen_adr: \":8080\"\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			"bad log level",
			func(c *Config) { c.Server.LogLevel = "verbose" },
			"log_level",
		},
		{
			"bad environment",
			func(c *Config) { c.Server.Environment = "staging" },
			"environment",
		},
		{
			"production without api keys",
			func(c *Config) {
				c.Server.Environment = EnvProduction
				c.Admission.APIKeys = ""
			},
			"api_keys",
		},
		{
			"unknown embedding model",
			func(c *Config) { c.Providers.Embeddings.Model = "word2vec" },
			"word2vec",
		},
		{
			"pinecone without api key",
			func(c *Config) {
				c.VectorStore = VectorStoreConfig{Provider: "pinecone", IndexName: "idx"}
			},
			"api_key",
		},
		{
			"pgvector without dsn",
			func(c *Config) { c.VectorStore = VectorStoreConfig{Provider: "pgvector"} },
			"postgres_dsn",
		},
		{
			"temperature out of range",
			func(c *Config) { c.Answer.Temperature = 2.5 },
			"temperature",
		},
		{
			"enhancement without llm",
			func(c *Config) {
				c.Pipeline.Enhancement.Enabled = true
				c.Providers.LLM.Name = ""
			},
			"enhancement",
		},
		{
			"tls missing key file",
			func(c *Config) { c.Server.TLS = &TLSConfig{CertFile: "cert.pem"} },
			"key_file",
		},
		{
			"min chunk size above max",
			func(c *Config) {
				c.Pipeline.MinChunkSize = 800
				c.Pipeline.MaxChunkSize = 400
			},
			"min_chunk_size",
		},
		{
			"topic threshold out of range",
			func(c *Config) { c.Pipeline.TopicThreshold = 1.5 },
			"topic_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromReader(strings.NewReader(validYAML))
			if err != nil {
				t.Fatalf("base config invalid: %v", err)
			}
			tt.mutate(cfg)
			err = Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("base config invalid: %v", err)
	}
	cfg.Server.LogLevel = "loud"
	cfg.Answer.MaxTokens = -1

	verr := Validate(cfg)
	if verr == nil {
		t.Fatal("expected validation error")
	}
	for _, sub := range []string{"log_level", "max_tokens"} {
		if !strings.Contains(verr.Error(), sub) {
			t.Errorf("joined error missing %q: %v", sub, verr)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("KOTODAMA_API_KEYS", "env-key")
	t.Setenv("HUGGINGFACE_API_KEY", "hf-env")

	cfg := &Config{}
	cfg.Providers.Embeddings.Name = "huggingface"
	applyEnvOverrides(cfg)

	if cfg.Admission.APIKeys != "env-key" {
		t.Errorf("api keys = %q, want env value", cfg.Admission.APIKeys)
	}
	if cfg.Providers.Embeddings.APIKey != "hf-env" {
		t.Errorf("embeddings key = %q, want env value", cfg.Providers.Embeddings.APIKey)
	}
}

func TestApplyEnvOverrides_YAMLWins(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")

	cfg := &Config{}
	cfg.Providers.LLM.Name = "openai"
	cfg.Providers.LLM.APIKey = "yaml-key"
	applyEnvOverrides(cfg)

	if cfg.Providers.LLM.APIKey != "yaml-key" {
		t.Errorf("llm key = %q, want yaml value kept", cfg.Providers.LLM.APIKey)
	}
}
