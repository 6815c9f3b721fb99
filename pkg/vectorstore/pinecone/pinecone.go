// Package pinecone provides a vectorstore.Index backed by Pinecone's REST API.
//
// Index management (list, create, describe) goes through the control plane at
// api.pinecone.io; vector operations go through the index's own data-plane
// host, resolved once and cached.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kotodama-ai/kotodama/pkg/types"
	"github.com/kotodama-ai/kotodama/pkg/vectorstore"
)

// DefaultControlURL is the Pinecone control-plane endpoint.
const DefaultControlURL = "https://api.pinecone.io"

// creationWait is how long a freshly created serverless index is given to
// become ready before first use.
const defaultCreationWait = 60 * time.Second

// Ensure Client implements the vectorstore.Index interface at compile time.
var _ vectorstore.Index = (*Client)(nil)

// Client implements vectorstore.Index using the Pinecone REST API.
//
// Client is safe for concurrent use.
type Client struct {
	apiKey     string
	indexName  string
	controlURL string
	httpClient *http.Client
	wait       time.Duration

	mu   sync.Mutex
	host string // cached data-plane host, resolved lazily
}

// config holds optional configuration collected from functional options.
type config struct {
	controlURL string
	timeout    time.Duration
	wait       time.Duration
	host       string
}

// Option is a functional option for Client.
type Option func(*config)

// WithControlURL overrides the control-plane endpoint.
func WithControlURL(url string) Option {
	return func(c *config) { c.controlURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithCreationWait overrides the post-creation readiness wait.
func WithCreationWait(d time.Duration) Option {
	return func(c *config) { c.wait = d }
}

// WithHost pre-sets the data-plane host, skipping the describe call that
// would otherwise resolve it.
func WithHost(host string) Option {
	return func(c *config) { c.host = host }
}

// New constructs a Pinecone Client for one index.
func New(apiKey, indexName string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("pinecone: %w: apiKey must not be empty", vectorstore.ErrNotConfigured)
	}
	if indexName == "" {
		return nil, fmt.Errorf("pinecone: indexName must not be empty")
	}

	cfg := &config{controlURL: DefaultControlURL, wait: defaultCreationWait}
	for _, o := range opts {
		o(cfg)
	}

	httpClient := &http.Client{}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	return &Client{
		apiKey:     apiKey,
		indexName:  indexName,
		controlURL: strings.TrimRight(cfg.controlURL, "/"),
		httpClient: httpClient,
		wait:       cfg.wait,
		host:       cfg.host,
	}, nil
}

// indexModel is the control-plane representation of an index.
type indexModel struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Host      string `json:"host"`
}

// EnsureIndex implements vectorstore.Index. Missing indexes are created as
// cosine serverless indexes on AWS us-east-1, then given a readiness wait
// before first use.
func (c *Client) EnsureIndex(ctx context.Context, name string, dimensions int) error {
	var list struct {
		Indexes []indexModel `json:"indexes"`
	}
	if err := c.control(ctx, http.MethodGet, "/indexes", nil, &list); err != nil {
		return fmt.Errorf("pinecone: list indexes: %w", err)
	}
	for _, idx := range list.Indexes {
		if idx.Name == name {
			return nil
		}
	}

	body := map[string]any{
		"name":      name,
		"dimension": dimensions,
		"metric":    "cosine",
		"spec": map[string]any{
			"serverless": map[string]any{
				"cloud":  "aws",
				"region": "us-east-1",
			},
		},
	}
	if err := c.control(ctx, http.MethodPost, "/indexes", body, nil); err != nil {
		return fmt.Errorf("pinecone: create index %s: %w", name, err)
	}

	// Serverless indexes take a while to accept writes after creation.
	select {
	case <-time.After(c.wait):
	case <-ctx.Done():
		return fmt.Errorf("pinecone: waiting for index %s: %w", name, ctx.Err())
	}
	return nil
}

// Upsert implements vectorstore.Index.
func (c *Client) Upsert(ctx context.Context, chunks []types.EmbeddedChunk, opts vectorstore.UpsertOptions) error {
	return vectorstore.UpsertInBatches(ctx, chunks, opts, func(ctx context.Context, batch []vectorstore.Vector, namespace string) error {
		body := map[string]any{"vectors": batch}
		if namespace != "" {
			body["namespace"] = namespace
		}
		return c.data(ctx, "/vectors/upsert", body, nil)
	})
}

// Query implements vectorstore.Index.
func (c *Client) Query(ctx context.Context, vector []float32, opts vectorstore.QueryOptions) ([]vectorstore.Match, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	body := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
	}
	if opts.Namespace != "" {
		body["namespace"] = opts.Namespace
	}
	if len(opts.Filter) > 0 {
		body["filter"] = opts.Filter
	}

	var resp struct {
		Matches []vectorstore.Match `json:"matches"`
	}
	if err := c.data(ctx, "/query", body, &resp); err != nil {
		return nil, fmt.Errorf("pinecone: query: %w", err)
	}
	return resp.Matches, nil
}

// DeleteAll implements vectorstore.Index.
func (c *Client) DeleteAll(ctx context.Context, namespace string) error {
	body := map[string]any{"deleteAll": true}
	if namespace != "" {
		body["namespace"] = namespace
	}
	if err := c.data(ctx, "/vectors/delete", body, nil); err != nil {
		return fmt.Errorf("pinecone: delete all: %w", err)
	}
	return nil
}

// DeleteMany implements vectorstore.Index.
func (c *Client) DeleteMany(ctx context.Context, ids []string, namespace string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"ids": ids}
	if namespace != "" {
		body["namespace"] = namespace
	}
	if err := c.data(ctx, "/vectors/delete", body, nil); err != nil {
		return fmt.Errorf("pinecone: delete %d vectors: %w", len(ids), err)
	}
	return nil
}

// Describe implements vectorstore.Index.
func (c *Client) Describe(ctx context.Context) (*vectorstore.IndexDescription, error) {
	var resp struct {
		Dimension        int     `json:"dimension"`
		TotalVectorCount int     `json:"totalVectorCount"`
		IndexFullness    float64 `json:"indexFullness"`
		Namespaces       map[string]struct {
			RecordCount int `json:"recordCount"`
			VectorCount int `json:"vectorCount"`
		} `json:"namespaces"`
	}
	if err := c.data(ctx, "/describe_index_stats", map[string]any{}, &resp); err != nil {
		return nil, fmt.Errorf("pinecone: describe: %w", err)
	}

	desc := &vectorstore.IndexDescription{
		Dimension:        resp.Dimension,
		TotalVectorCount: resp.TotalVectorCount,
		IndexFullness:    resp.IndexFullness,
		Namespaces:       map[string]vectorstore.NamespaceSummary{},
	}
	for name, ns := range resp.Namespaces {
		desc.Namespaces[name] = vectorstore.NamespaceSummary{
			RecordCount: ns.RecordCount,
			VectorCount: ns.VectorCount,
		}
	}
	return desc, nil
}

// control issues one control-plane request.
func (c *Client) control(ctx context.Context, method, path string, body, out any) error {
	return c.roundTrip(ctx, method, c.controlURL+path, body, out)
}

// data issues one data-plane request, resolving the index host on first use.
func (c *Client) data(ctx context.Context, path string, body, out any) error {
	host, err := c.resolveHost(ctx)
	if err != nil {
		return err
	}
	return c.roundTrip(ctx, http.MethodPost, host+path, body, out)
}

// resolveHost returns the cached data-plane base URL, describing the index
// once to discover it.
func (c *Client) resolveHost(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.host != "" {
		return c.host, nil
	}

	var idx indexModel
	if err := c.roundTrip(ctx, http.MethodGet, c.controlURL+"/indexes/"+c.indexName, nil, &idx); err != nil {
		return "", fmt.Errorf("resolve host for %s: %w", c.indexName, err)
	}
	if idx.Host == "" {
		return "", fmt.Errorf("resolve host for %s: empty host in response", c.indexName)
	}
	host := idx.Host
	if !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	c.host = strings.TrimRight(host, "/")
	return c.host, nil
}

func (c *Client) roundTrip(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
