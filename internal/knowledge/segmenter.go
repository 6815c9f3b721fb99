package knowledge

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kotodama-ai/kotodama/pkg/types"
)

const (
	// defaultSimilarityThreshold is the minimum cosine similarity between a
	// paragraph and a topic keyword for the keyword to label the paragraph.
	defaultSimilarityThreshold = 0.5

	// defaultTopicCharBudget closes a topic once its accumulated character
	// count would exceed this many runes.
	defaultTopicCharBudget = 2000

	// paragraphEmbedPrefix is the maximum rune count of the paragraph prefix
	// submitted for embedding. Longer paragraphs are truncated; the label
	// decision only needs the opening of the paragraph.
	paragraphEmbedPrefix = 500
)

// QueryEmbedder is the slice of the embedding service the segmenter needs.
// Implementations apply any model-specific query prefix before embedding.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// topicGroup is an in-progress topic: a label (may be empty) and the
// paragraphs accumulated under it.
type topicGroup struct {
	label      string
	paragraphs []types.CleanedParagraph
	chars      int
}

// Segmenter walks cleaned paragraphs left to right and groups them into
// topics. Construct with NewSegmenter.
type Segmenter struct {
	embedder  QueryEmbedder // nil selects keyword-fallback mode
	keywords  []string
	threshold float64
	budget    int
}

// SegmenterOption is a functional option for configuring a Segmenter.
type SegmenterOption func(*Segmenter)

// WithSimilarityThreshold sets the minimum cosine similarity for a keyword
// label. Default: 0.5.
func WithSimilarityThreshold(t float64) SegmenterOption {
	return func(s *Segmenter) { s.threshold = t }
}

// WithTopicCharBudget sets the per-topic character budget. Default: 2000.
func WithTopicCharBudget(n int) SegmenterOption {
	return func(s *Segmenter) { s.budget = n }
}

// WithTopicKeywords replaces the default topic catalogue.
func WithTopicKeywords(keywords []string) SegmenterOption {
	return func(s *Segmenter) { s.keywords = keywords }
}

// NewSegmenter constructs a Segmenter. When embedder is nil the segmenter
// runs in keyword-fallback mode (substring matching, fully deterministic).
func NewSegmenter(embedder QueryEmbedder, opts ...SegmenterOption) *Segmenter {
	s := &Segmenter{
		embedder:  embedder,
		keywords:  TopicKeywords,
		threshold: defaultSimilarityThreshold,
		budget:    defaultTopicCharBudget,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Segment groups paragraphs into topics. In embedding mode the topic
// catalogue is embedded once up front; each paragraph's truncated prefix is
// then embedded and labelled with the argmax keyword when the similarity
// meets the threshold. A paragraph whose embedding fails is appended to the
// current topic without a label.
func (s *Segmenter) Segment(ctx context.Context, paragraphs []types.CleanedParagraph) ([]topicGroup, error) {
	if s.embedder == nil {
		return s.segmentByKeyword(paragraphs), nil
	}
	return s.segmentByEmbedding(ctx, paragraphs)
}

func (s *Segmenter) segmentByEmbedding(ctx context.Context, paragraphs []types.CleanedParagraph) ([]topicGroup, error) {
	keywordVecs := make([][]float32, len(s.keywords))
	for i, kw := range s.keywords {
		vec, err := s.embedder.EmbedQuery(ctx, kw)
		if err != nil {
			return nil, err
		}
		keywordVecs[i] = vec
	}

	var groups []topicGroup
	current := topicGroup{}

	closeCurrent := func() {
		if len(current.paragraphs) > 0 {
			groups = append(groups, current)
		}
		current = topicGroup{}
	}

	for _, p := range paragraphs {
		label := s.labelParagraph(ctx, p, keywordVecs)

		runeCount := utf8.RuneCountInString(p.CleanedText)
		budgetExceeded := current.chars+runeCount > s.budget && len(current.paragraphs) > 0

		// Close only when the label differs AND the current topic is already
		// labelled; an unlabelled current topic adopts the new label instead
		// of restarting.
		labelChanged := label != "" && current.label != "" && label != current.label

		if budgetExceeded || labelChanged {
			closeCurrent()
		}

		current.paragraphs = append(current.paragraphs, p)
		current.chars += runeCount
		if label != "" && current.label == "" {
			current.label = label
		}
	}
	closeCurrent()
	return groups, nil
}

// labelParagraph returns the best keyword label for p, or "" when no keyword
// meets the threshold or the embedding fails.
func (s *Segmenter) labelParagraph(ctx context.Context, p types.CleanedParagraph, keywordVecs [][]float32) string {
	prefix := truncateRunes(p.CleanedText, paragraphEmbedPrefix)
	vec, err := s.embedder.EmbedQuery(ctx, prefix)
	if err != nil {
		slog.Warn("paragraph embedding failed; extending current topic unlabelled",
			"paragraph", p.ParagraphID, "err", err)
		return ""
	}

	best := ""
	bestScore := s.threshold
	for i, kv := range keywordVecs {
		score := cosineSimilarity(vec, kv)
		// Strict > keeps the first-indexed keyword on ties.
		if score > bestScore || (best == "" && score == bestScore) {
			best = s.keywords[i]
			bestScore = score
		}
	}
	return best
}

// segmentByKeyword is the deterministic fallback: a paragraph containing any
// catalogue keyword closes the current topic and opens a new one carrying
// that keyword. The per-topic character budget applies here exactly as in
// embedding mode.
func (s *Segmenter) segmentByKeyword(paragraphs []types.CleanedParagraph) []topicGroup {
	var groups []topicGroup
	current := topicGroup{}

	closeCurrent := func() {
		if len(current.paragraphs) > 0 {
			groups = append(groups, current)
		}
		current = topicGroup{}
	}

	for _, p := range paragraphs {
		label := ""
		for _, kw := range s.keywords {
			if strings.Contains(p.CleanedText, kw) {
				label = kw
				break
			}
		}

		runeCount := utf8.RuneCountInString(p.CleanedText)
		budgetExceeded := current.chars+runeCount > s.budget && len(current.paragraphs) > 0

		if budgetExceeded || (label != "" && len(current.paragraphs) > 0) {
			closeCurrent()
		}
		current.paragraphs = append(current.paragraphs, p)
		current.chars += runeCount
		if label != "" {
			current.label = label
		}
	}
	closeCurrent()
	return groups
}

// cosineSimilarity computes the cosine of the angle between a and b.
// Mismatched lengths or zero vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// truncateRunes returns the first n runes of s.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
