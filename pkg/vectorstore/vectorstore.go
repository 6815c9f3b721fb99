// Package vectorstore defines the Index interface for vector database
// backends and the shared upsert record format.
//
// An index stores embedded chunks for approximate nearest-neighbour search.
// Three backends are provided: pinecone and upstash over their REST APIs, and
// pgvector over a PostgreSQL pool. All share the flat metadata convention:
// array fields are flattened to comma-separated strings and chunk content is
// truncated for metadata while the full text stays on the chunk.
//
// Implementations must be safe for concurrent use.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kotodama-ai/kotodama/pkg/types"
)

// metadataContentLimit is the maximum rune count of the content stored in
// vector metadata.
const metadataContentLimit = 1000

// DefaultUpsertBatchSize is how many vectors are upserted per request.
const DefaultUpsertBatchSize = 100

// interBatchPause is the pause between consecutive upsert batches.
const interBatchPause = 500 * time.Millisecond

// ErrNotConfigured indicates the index client is missing credentials.
var ErrNotConfigured = errors.New("vectorstore: not configured")

// Vector is one upsert record. Metadata values are scalars or strings only.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata"`
}

// Match is one query result.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// UpsertOptions configures an Upsert call.
type UpsertOptions struct {
	// Namespace scopes the vectors. Empty selects the default namespace.
	Namespace string

	// BatchSize overrides DefaultUpsertBatchSize when positive.
	BatchSize int

	// TranscriptFile is recorded on every vector's metadata for provenance.
	TranscriptFile string
}

// QueryOptions configures a Query call.
type QueryOptions struct {
	// Namespace scopes the search. Empty selects the default namespace.
	Namespace string

	// TopK is the maximum number of matches. Default: 5.
	TopK int

	// Filter restricts matches by metadata equality. Omitted when empty.
	Filter map[string]any
}

// NamespaceSummary reports per-namespace vector counts. Providers differ in
// which field they populate.
type NamespaceSummary struct {
	RecordCount int `json:"recordCount"`
	VectorCount int `json:"vectorCount"`
}

// Count returns the namespace's vector count. The record count is
// authoritative when both are present.
func (n NamespaceSummary) Count() int {
	if n.RecordCount > 0 {
		return n.RecordCount
	}
	return n.VectorCount
}

// IndexDescription reports index-level statistics.
type IndexDescription struct {
	Dimension        int                         `json:"dimension"`
	TotalVectorCount int                         `json:"totalVectorCount"`
	Namespaces       map[string]NamespaceSummary `json:"namespaces"`
	IndexFullness    float64                     `json:"indexFullness,omitempty"`
}

// NamespaceTotal sums the per-namespace counts. When namespaces are reported
// this sum is authoritative over TotalVectorCount.
func (d *IndexDescription) NamespaceTotal() int {
	if len(d.Namespaces) == 0 {
		return d.TotalVectorCount
	}
	total := 0
	for _, ns := range d.Namespaces {
		total += ns.Count()
	}
	return total
}

// BatchError reports an upsert failure at a specific batch so the caller can
// retry from that point. Batches before Batch were uploaded successfully.
type BatchError struct {
	// Batch is the zero-based index of the failing batch.
	Batch int

	// Uploaded is the number of vectors successfully upserted before the
	// failure.
	Uploaded int

	Err error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("vectorstore: batch %d failed after %d vectors uploaded: %v", e.Batch, e.Uploaded, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Index is the abstraction over any vector database backend.
//
// Implementations must be safe for concurrent use.
type Index interface {
	// EnsureIndex creates the index with the given dimension if it does not
	// exist. Backends without index management treat this as a no-op probe.
	EnsureIndex(ctx context.Context, name string, dimensions int) error

	// Upsert converts the chunks to vectors and writes them in batches. On a
	// batch failure a *BatchError is returned identifying the failing batch.
	Upsert(ctx context.Context, chunks []types.EmbeddedChunk, opts UpsertOptions) error

	// Query returns up to opts.TopK matches ordered by decreasing score.
	Query(ctx context.Context, vector []float32, opts QueryOptions) ([]Match, error)

	// DeleteAll removes every vector in the namespace.
	DeleteAll(ctx context.Context, namespace string) error

	// DeleteMany removes the identified vectors from the namespace.
	DeleteMany(ctx context.Context, ids []string, namespace string) error

	// Describe returns index statistics.
	Describe(ctx context.Context) (*IndexDescription, error)
}

// ToVector converts an embedded chunk to its upsert record. Entity arrays are
// flattened to comma-separated strings and content is truncated for metadata;
// transcriptFile and uploadDate are added for provenance.
func ToVector(c types.EmbeddedChunk, transcriptFile string) Vector {
	meta := map[string]any{
		"content":        truncateRunes(c.Content, metadataContentLimit),
		"topic":          c.Metadata.Topic,
		"knowledgeId":    c.Metadata.KnowledgeID,
		"people":         strings.Join(c.Metadata.People, ","),
		"concepts":       strings.Join(c.Metadata.Concepts, ","),
		"organizations":  strings.Join(c.Metadata.Organizations, ","),
		"timestamp":      c.Metadata.Timestamp.Start + " - " + c.Metadata.Timestamp.End,
		"importance":     string(c.Metadata.Importance),
		"category":       c.Metadata.Category,
		"keywords":       strings.Join(c.Metadata.Keywords, ","),
		"transcriptFile": transcriptFile,
		"uploadDate":     time.Now().UTC().Format(time.RFC3339),
	}
	return Vector{
		ID:       c.ChunkID,
		Values:   c.Embedding,
		Metadata: meta,
	}
}

// UpsertInBatches converts chunks to vectors and feeds them to write in
// batches with a pause between batches. Backends use this to share the
// batching and failure-reporting contract.
func UpsertInBatches(ctx context.Context, chunks []types.EmbeddedChunk, opts UpsertOptions, write func(ctx context.Context, batch []Vector, namespace string) error) error {
	if len(chunks) == 0 {
		return nil
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultUpsertBatchSize
	}

	vectors := make([]Vector, len(chunks))
	for i, c := range chunks {
		vectors[i] = ToVector(c, opts.TranscriptFile)
	}

	uploaded := 0
	totalBatches := (len(vectors) + batchSize - 1) / batchSize
	for b := 0; b < totalBatches; b++ {
		if b > 0 {
			select {
			case <-time.After(interBatchPause):
			case <-ctx.Done():
				return &BatchError{Batch: b, Uploaded: uploaded, Err: ctx.Err()}
			}
		}
		start := b * batchSize
		end := min(start+batchSize, len(vectors))
		if err := write(ctx, vectors[start:end], opts.Namespace); err != nil {
			return &BatchError{Batch: b, Uploaded: uploaded, Err: err}
		}
		uploaded = end
	}
	return nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
