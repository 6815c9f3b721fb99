// Package pipeline orchestrates the offline ingestion run: subtitle file in,
// vectors in the index out. The seven stages run sequentially; each stage's
// output is kept on the Result so a failed run still exposes everything that
// was produced before the failure.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kotodama-ai/kotodama/internal/chunker"
	"github.com/kotodama-ai/kotodama/internal/embed"
	"github.com/kotodama-ai/kotodama/internal/knowledge"
	"github.com/kotodama-ai/kotodama/internal/subtitle"
	"github.com/kotodama-ai/kotodama/internal/transcript"
	"github.com/kotodama-ai/kotodama/pkg/types"
	"github.com/kotodama-ai/kotodama/pkg/vectorstore"
)

// TotalStages is the number of pipeline stages.
const TotalStages = 7

// stageNames labels the stages for progress and error reporting.
var stageNames = [TotalStages]string{
	"parse subtitles",
	"reconstruct text",
	"clean content",
	"extract knowledge",
	"chunk knowledge",
	"embed chunks",
	"upsert vectors",
}

// Progress reports the completion of one stage.
type Progress struct {
	// Stage is the 1-based index of the completed stage.
	Stage int

	// TotalStages is the total stage count, carried for renderers.
	TotalStages int

	// Label is the human-readable stage name.
	Label string

	// Percent is completed stages over total, in [0,100].
	Percent float64

	// Elapsed is the time since the run started.
	Elapsed time.Duration
}

// ProgressFunc receives progress updates during a run.
type ProgressFunc func(Progress)

// StageError identifies which stage a run failed in.
type StageError struct {
	Stage     int
	StageName string
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: stage %d (%s): %v", e.Stage, e.StageName, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result holds every stage's output. On failure, stages before the failing
// one are still populated; embeddings in particular can be re-uploaded later
// without re-running the whole pipeline.
type Result struct {
	TranscriptName string
	Namespace      string

	Segments   []types.Segment
	Paragraphs []types.Paragraph
	Cleaned    []types.CleanedParagraph
	Knowledge  []types.KnowledgeObject
	Chunks     []types.Chunk
	Embedded   []types.EmbeddedChunk
}

// Option is a functional option for Pipeline.
type Option func(*Pipeline)

// WithNamespace scopes the upsert to an index namespace. Defaults to the
// transcript name.
func WithNamespace(ns string) Option {
	return func(p *Pipeline) { p.namespace = ns }
}

// WithOutputDir enables intermediate JSON artefacts. Each stage writes its
// output as NN-name.json under dir.
func WithOutputDir(dir string) Option {
	return func(p *Pipeline) { p.outputDir = dir }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// Pipeline runs the ingestion stages over one subtitle file.
type Pipeline struct {
	cleaner   *transcript.Cleaner
	extractor *knowledge.Extractor
	chunker   *chunker.Chunker
	embedder  *embed.Service
	index     vectorstore.Index

	namespace string
	outputDir string
	progress  ProgressFunc
}

// New creates a Pipeline from its stage implementations.
func New(
	cleaner *transcript.Cleaner,
	extractor *knowledge.Extractor,
	chk *chunker.Chunker,
	embedder *embed.Service,
	index vectorstore.Index,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		cleaner:   cleaner,
		extractor: extractor,
		chunker:   chk,
		embedder:  embedder,
		index:     index,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// TranscriptName derives the transcript identifier from a subtitle path: the
// file basename without its extension.
func TranscriptName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Run executes all stages for the subtitle file at path. The returned Result
// is non-nil even on error, carrying all completed stages' outputs.
func (p *Pipeline) Run(ctx context.Context, path string) (*Result, error) {
	start := time.Now()

	result := &Result{TranscriptName: TranscriptName(path)}
	result.Namespace = p.namespace
	if result.Namespace == "" {
		result.Namespace = result.TranscriptName
	}

	slog.Info("ingestion started",
		"transcript", result.TranscriptName,
		"namespace", result.Namespace,
	)

	// Stage 1: parse.
	segments, err := subtitle.ParseFile(path)
	if err != nil {
		return result, p.fail(1, err)
	}
	result.Segments = segments
	p.finishStage(result, start, 1, "01-segments.json", segments)

	// Stage 2: reconstruct.
	result.Paragraphs = transcript.Reconstruct(segments)
	p.finishStage(result, start, 2, "02-paragraphs.json", result.Paragraphs)

	// Stage 3: clean.
	result.Cleaned = p.cleaner.Clean(result.Paragraphs)
	p.finishStage(result, start, 3, "03-cleaned.json", result.Cleaned)

	// Stage 4: extract knowledge.
	result.Knowledge, err = p.extractor.Extract(ctx, result.Cleaned)
	if err != nil {
		return result, p.fail(4, err)
	}
	p.finishStage(result, start, 4, "04-knowledge.json", result.Knowledge)

	// Stage 5: chunk.
	result.Chunks = p.chunker.Chunk(result.Knowledge)
	if err := chunker.Validate(result.Chunks); err != nil {
		return result, p.fail(5, err)
	}
	p.finishStage(result, start, 5, "05-chunks.json", result.Chunks)

	// Stage 6: embed.
	result.Embedded, err = p.embedder.EmbedChunks(ctx, result.Chunks)
	if err != nil {
		return result, p.fail(6, err)
	}
	p.finishStage(result, start, 6, "06-embeddings.json", result.Embedded)

	// Stage 7: upsert.
	err = p.index.Upsert(ctx, result.Embedded, vectorstore.UpsertOptions{
		Namespace:      result.Namespace,
		TranscriptFile: result.TranscriptName,
	})
	if err != nil {
		return result, p.fail(7, err)
	}
	p.finishStage(result, start, 7, "", nil)

	slog.Info("ingestion finished",
		"transcript", result.TranscriptName,
		"chunks", len(result.Chunks),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}

// fail wraps err with its stage identity.
func (p *Pipeline) fail(stage int, err error) error {
	return &StageError{
		Stage:     stage,
		StageName: stageNames[stage-1],
		Err:       err,
	}
}

// finishStage reports progress and writes the stage artefact when an output
// directory is configured.
func (p *Pipeline) finishStage(result *Result, start time.Time, stage int, artefact string, payload any) {
	if p.progress != nil {
		p.progress(Progress{
			Stage:       stage,
			TotalStages: TotalStages,
			Label:       stageNames[stage-1],
			Percent:     float64(stage) / float64(TotalStages) * 100,
			Elapsed:     time.Since(start),
		})
	}

	if p.outputDir == "" || artefact == "" {
		return
	}
	if err := writeArtefact(filepath.Join(p.outputDir, artefact), payload); err != nil {
		// Artefacts are a debugging aid; their failure does not stop a run.
		slog.Warn("failed to write pipeline artefact",
			"artefact", artefact,
			"transcript", result.TranscriptName,
			"error", err,
		)
	}
}

// writeArtefact writes payload as indented JSON to path, creating parent
// directories as needed.
func writeArtefact(path string, payload any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
