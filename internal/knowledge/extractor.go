package knowledge

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/kotodama-ai/kotodama/pkg/types"
)

const (
	// mainSummaryRunes bounds the main summary length.
	mainSummaryRunes = 200

	// takeawayRunes bounds the fallback key takeaway length.
	takeawayRunes = 100

	// maxQuotesPerObject caps the quotes carried on a knowledge object.
	maxQuotesPerObject = 3

	// fallbackTopic labels topics that never matched a catalogue keyword.
	fallbackTopic = "その他"
)

// Extractor turns cleaned paragraphs into knowledge objects. It segments the
// paragraphs into topics, then derives entities, quotes, a type and an
// importance bucket per topic. Construct with NewExtractor.
type Extractor struct {
	segmenter *Segmenter
	enhancer  *Enhancer // nil unless AI enhancement is enabled
}

// ExtractorOption is a functional option for configuring an Extractor.
type ExtractorOption func(*Extractor)

// WithEnhancer enables the optional AI enhancement pass.
func WithEnhancer(e *Enhancer) ExtractorOption {
	return func(x *Extractor) { x.enhancer = e }
}

// NewExtractor constructs an Extractor around the given segmenter.
func NewExtractor(segmenter *Segmenter, opts ...ExtractorOption) *Extractor {
	x := &Extractor{segmenter: segmenter}
	for _, o := range opts {
		o(x)
	}
	return x
}

// Extract segments the paragraphs into topics and builds one KnowledgeObject
// per topic. Object IDs are sequential within the run ("k001", "k002", ...).
func (x *Extractor) Extract(ctx context.Context, paragraphs []types.CleanedParagraph) ([]types.KnowledgeObject, error) {
	groups, err := x.segmenter.Segment(ctx, paragraphs)
	if err != nil {
		return nil, fmt.Errorf("knowledge: segment topics: %w", err)
	}

	objects := make([]types.KnowledgeObject, 0, len(groups))
	for i, g := range groups {
		objects = append(objects, buildObject(i+1, g))
	}

	if x.enhancer != nil {
		x.enhancer.Enhance(ctx, objects)
	}
	return objects, nil
}

// buildObject assembles a KnowledgeObject from one topic group.
func buildObject(seq int, g topicGroup) types.KnowledgeObject {
	text := joinParagraphs(g.paragraphs)
	topic := g.label
	if topic == "" {
		topic = fallbackTopic
	}

	entities := extractEntities(text)
	quotes := extractQuotes(text)
	if len(quotes) > maxQuotesPerObject {
		quotes = quotes[:maxQuotesPerObject]
	}

	main := truncateRunes(text, mainSummaryRunes)
	if utf8.RuneCountInString(text) > mainSummaryRunes {
		main += "…"
	}
	takeaway := truncateRunes(text, takeawayRunes)
	if len(quotes) > 0 {
		takeaway = quotes[0]
	}

	first := g.paragraphs[0]
	last := g.paragraphs[len(g.paragraphs)-1]

	return types.KnowledgeObject{
		KnowledgeID: fmt.Sprintf("k%03d", seq),
		Topic:       topic,
		Type:        classifyType(text),
		Content: types.KnowledgeContent{
			Main:        main,
			Context:     text,
			Quotes:      quotes,
			KeyTakeaway: takeaway,
		},
		Entities: entities,
		Timestamp: types.TimeRange{
			Start: first.StartTime,
			End:   last.EndTime,
		},
		Metadata: types.KnowledgeMetadata{
			Importance: scoreImportance(quotes, entities, main),
			Category:   topic,
			Sentiment:  "neutral",
			Themes:     collectThemes(g),
			SegmentIDs: unionSegmentIDs(g.paragraphs),
		},
	}
}

// joinParagraphs concatenates the cleaned texts of a topic's paragraphs.
func joinParagraphs(paragraphs []types.CleanedParagraph) string {
	var b []byte
	for _, p := range paragraphs {
		b = append(b, p.CleanedText...)
	}
	return string(b)
}

// collectThemes returns the topic labels touched by the group. Today a group
// carries a single label, so the slice has at most one entry, but the field
// is plural because AI enhancement may widen it.
func collectThemes(g topicGroup) []string {
	if g.label == "" {
		return []string{}
	}
	return []string{g.label}
}

// unionSegmentIDs flattens the paragraphs' segment ids, deduplicated in order.
func unionSegmentIDs(paragraphs []types.CleanedParagraph) []int {
	seen := map[int]struct{}{}
	var ids []int
	for _, p := range paragraphs {
		for _, id := range p.SegmentIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
