// Package upstash provides a vectorstore.Index backed by the Upstash Vector
// REST API.
//
// Upstash has no index management plane: the index exists as soon as the
// database is provisioned, so EnsureIndex only verifies the dimension via
// /info. Namespaces are addressed as a path suffix on each operation.
package upstash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kotodama-ai/kotodama/pkg/types"
	"github.com/kotodama-ai/kotodama/pkg/vectorstore"
)

// Ensure Client implements the vectorstore.Index interface at compile time.
var _ vectorstore.Index = (*Client)(nil)

// Client implements vectorstore.Index using the Upstash Vector REST API.
//
// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// config holds optional configuration collected from functional options.
type config struct {
	timeout time.Duration
}

// Option is a functional option for Client.
type Option func(*config)

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs an Upstash Client for one vector database.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" || token == "" {
		return nil, fmt.Errorf("upstash: %w: url and token must not be empty", vectorstore.ErrNotConfigured)
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	httpClient := &http.Client{}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}, nil
}

// upsertRecord is Upstash's wire format for one vector.
type upsertRecord struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata"`
}

// EnsureIndex implements vectorstore.Index. Upstash databases are provisioned
// out of band; this verifies the existing index matches the wanted dimension.
func (c *Client) EnsureIndex(ctx context.Context, _ string, dimensions int) error {
	desc, err := c.Describe(ctx)
	if err != nil {
		return fmt.Errorf("upstash: ensure index: %w", err)
	}
	if desc.Dimension != 0 && desc.Dimension != dimensions {
		return fmt.Errorf("upstash: index dimension %d does not match wanted %d", desc.Dimension, dimensions)
	}
	return nil
}

// Upsert implements vectorstore.Index.
func (c *Client) Upsert(ctx context.Context, chunks []types.EmbeddedChunk, opts vectorstore.UpsertOptions) error {
	return vectorstore.UpsertInBatches(ctx, chunks, opts, func(ctx context.Context, batch []vectorstore.Vector, namespace string) error {
		records := make([]upsertRecord, len(batch))
		for i, v := range batch {
			records[i] = upsertRecord{ID: v.ID, Vector: v.Values, Metadata: v.Metadata}
		}
		return c.post(ctx, c.path("/upsert", namespace), records, nil)
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
	if len(opts.Filter) > 0 {
		body["filter"] = filterExpression(opts.Filter)
	}

	var resp struct {
		Result []vectorstore.Match `json:"result"`
	}
	if err := c.post(ctx, c.path("/query", opts.Namespace), body, &resp); err != nil {
		return nil, fmt.Errorf("upstash: query: %w", err)
	}
	return resp.Result, nil
}

// DeleteAll implements vectorstore.Index.
func (c *Client) DeleteAll(ctx context.Context, namespace string) error {
	if err := c.post(ctx, c.path("/reset", namespace), nil, nil); err != nil {
		return fmt.Errorf("upstash: delete all: %w", err)
	}
	return nil
}

// DeleteMany implements vectorstore.Index.
func (c *Client) DeleteMany(ctx context.Context, ids []string, namespace string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"ids": ids}
	if err := c.post(ctx, c.path("/delete", namespace), body, nil); err != nil {
		return fmt.Errorf("upstash: delete %d vectors: %w", len(ids), err)
	}
	return nil
}

// Describe implements vectorstore.Index.
func (c *Client) Describe(ctx context.Context) (*vectorstore.IndexDescription, error) {
	var resp struct {
		Result struct {
			VectorCount int `json:"vectorCount"`
			Dimension   int `json:"dimension"`
			Namespaces  map[string]struct {
				VectorCount int `json:"vectorCount"`
			} `json:"namespaces"`
		} `json:"result"`
	}
	if err := c.post(ctx, "/info", nil, &resp); err != nil {
		return nil, fmt.Errorf("upstash: describe: %w", err)
	}

	desc := &vectorstore.IndexDescription{
		Dimension:        resp.Result.Dimension,
		TotalVectorCount: resp.Result.VectorCount,
		Namespaces:       map[string]vectorstore.NamespaceSummary{},
	}
	for name, ns := range resp.Result.Namespaces {
		desc.Namespaces[name] = vectorstore.NamespaceSummary{VectorCount: ns.VectorCount}
	}
	return desc, nil
}

// path appends the namespace segment when present.
func (c *Client) path(op, namespace string) string {
	if namespace == "" {
		return op
	}
	return op + "/" + namespace
}

// filterExpression renders a metadata equality map as Upstash's SQL-like
// filter string.
func filterExpression(filter map[string]any) string {
	var clauses []string
	for k, v := range filter {
		switch val := v.(type) {
		case string:
			clauses = append(clauses, fmt.Sprintf("%s = '%s'", k, val))
		default:
			clauses = append(clauses, fmt.Sprintf("%s = %v", k, val))
		}
	}
	return strings.Join(clauses, " AND ")
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
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
