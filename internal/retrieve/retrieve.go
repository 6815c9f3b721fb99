// Package retrieve finds the knowledge chunks most relevant to a question.
// It embeds the query with the same model the ingestion pipeline used and
// runs a similarity search against the vector index. No score thresholding
// happens here; callers decide what a useful match is.
package retrieve

import (
	"context"
	"fmt"
	"time"

	"github.com/kotodama-ai/kotodama/pkg/vectorstore"
)

const (
	// DefaultTopK is how many matches a query returns.
	DefaultTopK = 5

	// Per-hop timeouts, derived from the request deadline budget.
	embedTimeout = 30 * time.Second
	queryTimeout = 10 * time.Second
)

// QueryEmbedder embeds a retrieval query. Satisfied by embed.Service, which
// applies the model's query prefix.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Match is a retrieved chunk with its similarity score. Content, Topic and
// Timestamp are lifted out of the stored metadata so downstream layers need
// no knowledge of the index's key names.
type Match struct {
	ID        string
	Score     float64
	Content   string
	Topic     string
	Timestamp string
	Metadata  map[string]any
}

// Option is a functional option for Retriever.
type Option func(*Retriever)

// WithTopK overrides the default number of matches per query.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithNamespace scopes queries to a single index namespace.
func WithNamespace(ns string) Option {
	return func(r *Retriever) { r.namespace = ns }
}

// Retriever embeds queries and searches the vector index.
// It is safe for concurrent use.
type Retriever struct {
	embedder  QueryEmbedder
	index     vectorstore.Index
	namespace string
	topK      int
}

// New creates a Retriever over the given embedder and index.
func New(embedder QueryEmbedder, index vectorstore.Index, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		index:    index,
		topK:     DefaultTopK,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Retrieve embeds query and returns the closest chunks in decreasing score
// order. An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Match, error) {
	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	vector, err := r.embedder.EmbedQuery(embedCtx, query)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("retrieve: embed query: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	raw, err := r.index.Query(queryCtx, vector, vectorstore.QueryOptions{
		Namespace: r.namespace,
		TopK:      r.topK,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve: query index: %w", err)
	}

	matches := make([]Match, 0, len(raw))
	for _, m := range raw {
		matches = append(matches, Match{
			ID:        m.ID,
			Score:     m.Score,
			Content:   metaString(m.Metadata, "content"),
			Topic:     metaString(m.Metadata, "topic"),
			Timestamp: metaString(m.Metadata, "timestamp"),
			Metadata:  m.Metadata,
		})
	}
	return matches, nil
}

// metaString reads a string value from vector metadata, tolerating missing
// keys and non-string values.
func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	if s, ok := meta[key].(string); ok {
		return s
	}
	return ""
}
