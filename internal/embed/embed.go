// Package embed orchestrates chunk embedding: text preparation, batching,
// retries, and provenance metadata. It sits between the pipeline and the
// embeddings providers.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kotodama-ai/kotodama/internal/resilience"
	"github.com/kotodama-ai/kotodama/pkg/provider/embeddings"
	"github.com/kotodama-ai/kotodama/pkg/types"
)

const (
	// defaultBatchSize is how many chunks are embedded per provider call.
	defaultBatchSize = 100

	// interBatchPause is the pause between consecutive batches.
	interBatchPause = 500 * time.Millisecond
)

// Service embeds chunks and queries against one configured model. Construct
// with NewService.
//
// Service is safe for concurrent use.
type Service struct {
	provider  embeddings.Provider
	spec      embeddings.ModelSpec
	limiter   *resilience.OutboundLimiter
	retry     resilience.RetryConfig
	batchSize int
	pause     time.Duration
}

// Option is a functional option for Service.
type Option func(*Service)

// WithBatchSize overrides the per-call batch size. Default: 100.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithBatchPause overrides the pause between batches. Default: 500ms.
func WithBatchPause(d time.Duration) Option {
	return func(s *Service) { s.pause = d }
}

// WithLimiter bounds concurrent outbound calls with the shared limiter.
func WithLimiter(l *resilience.OutboundLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

// NewService constructs a Service over the given provider. spec must describe
// the same model the provider was constructed with; it supplies the query
// prefix and dimension metadata.
func NewService(provider embeddings.Provider, spec embeddings.ModelSpec, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		spec:     spec,
		retry: resilience.RetryConfig{
			Name:        "embed",
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
		},
		batchSize: defaultBatchSize,
		pause:     interBatchPause,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// EmbedChunks embeds all chunks in batches, logging progress. Each batch is
// retried with exponential backoff before the run fails. The returned slice
// preserves chunk order.
func (s *Service) EmbedChunks(ctx context.Context, chunks []types.Chunk) ([]types.EmbeddedChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	result := make([]types.EmbeddedChunk, 0, len(chunks))
	totalBatches := (len(chunks) + s.batchSize - 1) / s.batchSize

	for b := 0; b < totalBatches; b++ {
		if b > 0 {
			select {
			case <-time.After(s.pause):
			case <-ctx.Done():
				return nil, fmt.Errorf("embed: %w", ctx.Err())
			}
		}

		start := b * s.batchSize
		end := min(start+s.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = PrepareText(c)
		}

		vecs, err := resilience.RetryWithResult(ctx, s.retry, func() ([][]float32, error) {
			return s.embedBatch(ctx, texts)
		})
		if err != nil {
			return nil, fmt.Errorf("embed: batch %d/%d: %w", b+1, totalBatches, err)
		}

		now := time.Now().UTC().Format(time.RFC3339)
		for i, c := range batch {
			result = append(result, types.EmbeddedChunk{
				Chunk:     c,
				Embedding: vecs[i],
				EmbeddingMetadata: types.EmbeddingMetadata{
					Provider:   s.spec.ProviderName,
					Model:      s.spec.Alias,
					Dimensions: s.spec.Dimensions,
					Timestamp:  now,
				},
			})
		}

		slog.Info("embedded batch",
			"batch", b+1,
			"total_batches", totalBatches,
			"chunks", len(batch),
			"model", s.spec.Alias)
	}
	return result, nil
}

// EmbedQuery embeds one retrieval query, applying the model's query prefix.
// It satisfies the query-embedder contract of the topic segmenter and the
// retriever.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	prefixed := s.spec.QueryPrefix + text
	vec, err := resilience.RetryWithResult(ctx, s.retry, func() ([]float32, error) {
		return s.embedOne(ctx, prefixed)
	})
	if err != nil {
		return nil, fmt.Errorf("embed: query: %w", err)
	}
	return vec, nil
}

// Dimensions returns the configured model's vector length.
func (s *Service) Dimensions() int {
	return s.spec.Dimensions
}

// ModelSpec returns the configured model's catalogue entry.
func (s *Service) ModelSpec() embeddings.ModelSpec {
	return s.spec
}

func (s *Service) embedOne(ctx context.Context, text string) ([]float32, error) {
	if s.limiter == nil {
		return s.provider.Embed(ctx, text)
	}
	var vec []float32
	err := s.limiter.Do(ctx, func() error {
		var innerErr error
		vec, innerErr = s.provider.Embed(ctx, text)
		return innerErr
	})
	return vec, err
}

func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.limiter == nil {
		return s.provider.EmbedBatch(ctx, texts)
	}
	var vecs [][]float32
	err := s.limiter.Do(ctx, func() error {
		var innerErr error
		vecs, innerErr = s.provider.EmbedBatch(ctx, texts)
		return innerErr
	})
	return vecs, err
}

// PrepareText builds the text submitted for embedding a chunk. Topic and
// entity names are prepended to the content to raise semantic recall.
func PrepareText(c types.Chunk) string {
	var entities []string
	entities = append(entities, c.Metadata.People...)
	entities = append(entities, c.Metadata.Concepts...)
	entities = append(entities, c.Metadata.Organizations...)

	var b strings.Builder
	b.WriteString("Topic: ")
	b.WriteString(c.Metadata.Topic)
	b.WriteString("\n\nEntities: ")
	b.WriteString(strings.Join(entities, ", "))
	b.WriteString("\n\n")
	b.WriteString(c.Content)
	return b.String()
}
