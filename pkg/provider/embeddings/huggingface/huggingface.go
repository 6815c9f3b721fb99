// Package huggingface provides an embeddings provider backed by the Hugging
// Face Inference API.
//
// The feature-extraction pipeline serves sentence-transformer style models
// such as intfloat/multilingual-e5-base. The API has no batch endpoint with
// ordering guarantees, so EmbedBatch issues sequential requests with a short
// cooperative pause between calls.
//
// Only standard library packages are used on top of net/http and
// encoding/json.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kotodama-ai/kotodama/pkg/provider/embeddings"
)

// DefaultBaseURL is the Hugging Face feature-extraction pipeline endpoint.
const DefaultBaseURL = "https://api-inference.huggingface.co/pipeline/feature-extraction"

// interCallDelay is the pause between sequential requests in EmbedBatch.
const interCallDelay = 100 * time.Millisecond

// Ensure Provider implements the embeddings.Provider interface at compile time.
var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider using the Hugging Face Inference API.
//
// Provider is safe for concurrent use.
type Provider struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
}

// config holds optional configuration collected from functional options.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default inference endpoint, e.g. for a dedicated
// inference deployment.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new Hugging Face embeddings Provider.
//
// model may be a catalogue alias ("multilingual-e5-base") or a full model ID
// ("intfloat/multilingual-e5-base").
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("huggingface embeddings: %w: apiKey must not be empty", embeddings.ErrNotConfigured)
	}
	spec, err := embeddings.ResolveModel(model)
	if err != nil {
		return nil, fmt.Errorf("huggingface embeddings: %w", err)
	}

	cfg := &config{baseURL: DefaultBaseURL}
	for _, o := range opts {
		o(cfg)
	}

	httpClient := &http.Client{}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	return &Provider{
		baseURL:    strings.TrimRight(cfg.baseURL, "/"),
		apiKey:     apiKey,
		model:      spec.ID,
		dimensions: spec.Dimensions,
		httpClient: httpClient,
	}, nil
}

// embedRequest is the JSON request body for the feature-extraction pipeline.
type embedRequest struct {
	Inputs  []string     `json:"inputs"`
	Options embedOptions `json:"options"`
}

type embedOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// Embed implements embeddings.Provider.
//
// The text is forwarded verbatim. Model-specific formatting such as the E5
// "query: " prefix is the caller's responsibility.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.callEmbed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("huggingface embeddings: embed: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("huggingface embeddings: embed: empty response")
	}
	return vecs[0], nil
}

// EmbedBatch implements embeddings.Provider with sequential Embed calls and a
// short pause between requests. On any failure nil is returned; partial
// results are not exposed.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([][]float32, len(texts))
	for i, text := range texts {
		if i > 0 {
			select {
			case <-time.After(interCallDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("huggingface embeddings: embed batch: %w", ctx.Err())
			}
		}
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("huggingface embeddings: embed batch item %d: %w", i, err)
		}
		result[i] = vec
	}
	return result, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	return p.model
}

// callEmbed posts one feature-extraction request and returns the raw vectors.
func (p *Provider) callEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{
		Inputs:  texts,
		Options: embedOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := p.baseURL + "/" + p.model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var vecs [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vecs); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("empty embeddings in response")
	}
	return vecs, nil
}
