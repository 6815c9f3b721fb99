// Package embeddings defines the Provider interface for vector embedding backends
// and the catalogue of supported models.
//
// An embeddings provider wraps a service that maps text strings to dense float32
// vectors. These vectors drive the semantic retrieval behind transcript question
// answering: chunks are embedded offline during ingestion and queries are embedded
// online at answer time, both against the same model.
//
// Implementations must be safe for concurrent use.
package embeddings

import (
	"context"
	"errors"
)

// Sentinel errors shared by all embedding providers.
var (
	// ErrNotConfigured indicates the provider is missing credentials.
	ErrNotConfigured = errors.New("embeddings: provider not configured")

	// ErrUnknownModel indicates a model alias absent from the catalogue.
	ErrUnknownModel = errors.New("embeddings: unknown model")
)

// Provider is the abstraction over any text-embedding backend.
//
// All embedding vectors returned by a single Provider instance must share the
// same dimensionality (returned by Dimensions). Callers must not mix vectors
// from different Provider instances in the same similarity computation unless
// both use the same model and space.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed computes the embedding vector for a single text string. Returns a
	// float32 slice of length Dimensions() or an error if the request fails or
	// ctx is cancelled.
	//
	// Any model-specific formatting (e.g. the "query: " prefix E5 models expect
	// for retrieval inputs) is the caller's responsibility; the Provider passes
	// text through verbatim.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes embedding vectors for a slice of texts. Backends with
	// a native batch endpoint issue a single call; others fall back to
	// sequential Embed calls. The returned slice has the same length as texts
	// and the i-th element corresponds to texts[i].
	//
	// Returns an error if any single embedding fails or ctx is cancelled.
	// Partial results are not returned; on error the entire slice is nil.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every embedding vector produced by
	// this provider, constant for the lifetime of the instance.
	Dimensions() int

	// ModelID returns the provider-specific model identifier used for
	// embeddings, useful for logging and provenance metadata.
	ModelID() string
}
