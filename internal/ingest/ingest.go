// Package ingest is the orchestration facade behind the ingestion CLI. It
// wraps the pipeline, the embedding service, and the vector index into the
// operations external scripting calls: full runs, namespace-scoped runs,
// re-uploads from saved embeddings, namespace cleanup, and index statistics.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kotodama-ai/kotodama/internal/chunker"
	"github.com/kotodama-ai/kotodama/internal/embed"
	"github.com/kotodama-ai/kotodama/internal/knowledge"
	"github.com/kotodama-ai/kotodama/internal/pipeline"
	"github.com/kotodama-ai/kotodama/internal/transcript"
	"github.com/kotodama-ai/kotodama/pkg/provider/embeddings"
	"github.com/kotodama-ai/kotodama/pkg/types"
	"github.com/kotodama-ai/kotodama/pkg/vectorstore"
)

// embeddingsArtefact is the pipeline artefact a re-upload reads.
const embeddingsArtefact = "06-embeddings.json"

// Option is a functional option for Service.
type Option func(*Service)

// WithIndexName sets the index probed or created before an upsert. Backends
// without index management ignore the name.
func WithIndexName(name string) Option {
	return func(s *Service) { s.indexName = name }
}

// WithOutputDir enables per-stage JSON artefacts under dir. The same dir is
// where Reupload looks for saved embeddings.
func WithOutputDir(dir string) Option {
	return func(s *Service) { s.outputDir = dir }
}

// WithProgress registers a pipeline progress callback.
func WithProgress(fn pipeline.ProgressFunc) Option {
	return func(s *Service) { s.progress = fn }
}

// Service executes ingestion operations against one configured index.
type Service struct {
	cleaner   *transcript.Cleaner
	extractor *knowledge.Extractor
	chunker   *chunker.Chunker
	embedder  *embed.Service
	index     vectorstore.Index

	indexName string
	outputDir string
	progress  pipeline.ProgressFunc
}

// New creates a Service from the pipeline's stage implementations.
func New(
	cleaner *transcript.Cleaner,
	extractor *knowledge.Extractor,
	chk *chunker.Chunker,
	embedder *embed.Service,
	index vectorstore.Index,
	opts ...Option,
) *Service {
	s := &Service{
		cleaner:   cleaner,
		extractor: extractor,
		chunker:   chk,
		embedder:  embedder,
		index:     index,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Process runs the full pipeline for the subtitle file at path. The upsert
// namespace defaults to the transcript name.
func (s *Service) Process(ctx context.Context, path string) (*pipeline.Result, error) {
	return s.ProcessWithNamespace(ctx, path, "")
}

// ProcessWithNamespace runs the full pipeline with an explicit upsert
// namespace. The index is probed (and created when the backend supports it)
// before the run so a misconfigured index fails fast.
func (s *Service) ProcessWithNamespace(ctx context.Context, path, namespace string) (*pipeline.Result, error) {
	if err := s.index.EnsureIndex(ctx, s.indexName, s.embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("ingest: ensure index: %w", err)
	}

	opts := []pipeline.Option{}
	if namespace != "" {
		opts = append(opts, pipeline.WithNamespace(namespace))
	}
	if s.outputDir != "" {
		opts = append(opts, pipeline.WithOutputDir(s.outputDir))
	}
	if s.progress != nil {
		opts = append(opts, pipeline.WithProgress(s.progress))
	}

	p := pipeline.New(s.cleaner, s.extractor, s.chunker, s.embedder, s.index, opts...)
	return p.Run(ctx, path)
}

// Reupload upserts previously saved embeddings without re-running the
// pipeline. path is either the saved embeddings JSON itself or the subtitle
// path of an earlier run, in which case the artefact is looked up in the
// configured output directory. An empty namespace defaults to the transcript
// name. Returns the number of vectors uploaded.
func (s *Service) Reupload(ctx context.Context, path, namespace string) (int, error) {
	artefact := path
	if !strings.HasSuffix(path, ".json") {
		if s.outputDir == "" {
			return 0, fmt.Errorf("ingest: reupload of %q needs an output directory to locate saved embeddings", path)
		}
		artefact = filepath.Join(s.outputDir, embeddingsArtefact)
	}

	data, err := os.ReadFile(artefact)
	if err != nil {
		return 0, fmt.Errorf("ingest: read embeddings %q: %w", artefact, err)
	}
	var chunks []types.EmbeddedChunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return 0, fmt.Errorf("ingest: decode embeddings %q: %w", artefact, err)
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("ingest: %q contains no embeddings", artefact)
	}

	transcriptName := pipeline.TranscriptName(path)
	if namespace == "" {
		namespace = transcriptName
	}

	if err := s.index.EnsureIndex(ctx, s.indexName, s.embedder.Dimensions()); err != nil {
		return 0, fmt.Errorf("ingest: ensure index: %w", err)
	}

	slog.Info("re-uploading saved embeddings",
		"artefact", artefact,
		"namespace", namespace,
		"vectors", len(chunks),
	)
	err = s.index.Upsert(ctx, chunks, vectorstore.UpsertOptions{
		Namespace:      namespace,
		TranscriptFile: transcriptName,
	})
	if err != nil {
		return 0, fmt.Errorf("ingest: reupload: %w", err)
	}
	return len(chunks), nil
}

// Cleanup removes every vector in the namespace. Callers are expected to
// confirm with the operator first; this method does not prompt.
func (s *Service) Cleanup(ctx context.Context, namespace string) error {
	if err := s.index.DeleteAll(ctx, namespace); err != nil {
		return fmt.Errorf("ingest: cleanup namespace %q: %w", namespace, err)
	}
	slog.Info("namespace cleaned", "namespace", namespace)
	return nil
}

// Describe returns the index statistics.
func (s *Service) Describe(ctx context.Context) (*vectorstore.IndexDescription, error) {
	desc, err := s.index.Describe(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest: describe index: %w", err)
	}
	return desc, nil
}

// ListModels returns the supported embedding model catalogue.
func ListModels() []embeddings.ModelSpec {
	out := make([]embeddings.ModelSpec, len(embeddings.Catalogue))
	copy(out, embeddings.Catalogue)
	return out
}
