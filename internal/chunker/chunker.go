// Package chunker splits knowledge objects into storage-ready chunks sized
// for embedding. Splits happen only at sentence boundaries; a knowledge
// object that fits within the size limit becomes a single chunk.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kotodama-ai/kotodama/pkg/types"
)

const (
	defaultMinChunkSize = 200
	defaultMaxChunkSize = 1000

	// chunkLanguage tags every chunk; the corpus is Japanese spoken word.
	chunkLanguage = "ja"
)

// splitTerminators end a sentence for chunk-splitting purposes.
const splitTerminators = "。！？"

// importanceLexicon are terms that, when present in a chunk, join its keyword
// set alongside the parent object's entities.
var importanceLexicon = []string{
	"黄金率",
	"価値観",
	"信用",
	"人生",
	"成功",
	"目標",
	"感謝",
	"貢献",
	"習慣",
	"実践",
	"教え",
	"原則",
	"法則",
	"選択",
	"能力",
	"幸福",
}

// Chunker converts knowledge objects to chunks. Construct with NewChunker.
type Chunker struct {
	minSize        int
	maxSize        int
	includeContext bool
}

// Option is a functional option for configuring a Chunker.
type Option func(*Chunker)

// WithMinChunkSize sets the minimum accumulator size before a split may
// flush. Default: 200 runes.
func WithMinChunkSize(n int) Option {
	return func(c *Chunker) { c.minSize = n }
}

// WithMaxChunkSize sets the maximum chunk size. Default: 1000 runes.
func WithMaxChunkSize(n int) Option {
	return func(c *Chunker) { c.maxSize = n }
}

// WithContext controls whether chunks carry the adjacent objects' topic
// labels as contextBefore/contextAfter. Default: on.
func WithContext(enabled bool) Option {
	return func(c *Chunker) { c.includeContext = enabled }
}

// NewChunker constructs a Chunker.
func NewChunker(opts ...Option) *Chunker {
	c := &Chunker{minSize: defaultMinChunkSize, maxSize: defaultMaxChunkSize, includeContext: true}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Chunk converts the objects, in order, into chunks. Chunk IDs are sequential
// across the whole run ("chunk_001", ...); an object split into K parts yields
// "chunk_NNN_0" through "chunk_NNN_K-1" sharing one NNN.
func (c *Chunker) Chunk(objects []types.KnowledgeObject) []types.Chunk {
	var chunks []types.Chunk
	seq := 0

	for i, obj := range objects {
		var contextBefore, contextAfter string
		if c.includeContext {
			contextBefore, contextAfter = neighbourTopics(objects, i)
		}
		content := obj.Content.Context

		if utf8.RuneCountInString(content) <= c.maxSize {
			seq++
			chunks = append(chunks, c.buildChunk(
				fmt.Sprintf("chunk_%03d", seq), content, obj, contextBefore, contextAfter, 0, 0))
			continue
		}

		parts := c.splitSentences(content)
		seq++
		for k, part := range parts {
			chunk := c.buildChunk(
				fmt.Sprintf("chunk_%03d_%d", seq, k), part, obj, contextBefore, contextAfter,
				k, len(parts))
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// buildChunk assembles one chunk. partIndex/totalParts are only recorded when
// totalParts > 0, i.e. the parent object was split.
func (c *Chunker) buildChunk(id, content string, obj types.KnowledgeObject, before, after string, partIndex, totalParts int) types.Chunk {
	meta := types.ChunkMetadata{
		Topic:         obj.Topic,
		KnowledgeID:   obj.KnowledgeID,
		People:        obj.Entities.People,
		Concepts:      obj.Entities.Concepts,
		Organizations: obj.Entities.Organizations,
		Timestamp:     obj.Timestamp,
		Importance:    obj.Metadata.Importance,
		Category:      obj.Metadata.Category,
		Keywords:      chunkKeywords(content, obj.Entities),
		ContextBefore: before,
		ContextAfter:  after,
		SegmentIDs:    obj.Metadata.SegmentIDs,
		Language:      chunkLanguage,
	}
	if totalParts > 0 {
		meta.PartIndex = partIndex
		meta.TotalParts = totalParts
	}
	return types.Chunk{
		ChunkID:  id,
		Type:     "knowledge",
		Content:  content,
		Metadata: meta,
	}
}

// splitSentences splits content at sentence terminators and greedily packs
// sentences into parts. A part flushes when adding the next sentence would
// exceed the maximum AND the part already meets the minimum; the trailing
// remainder becomes a part regardless of size.
func (c *Chunker) splitSentences(content string) []string {
	sentences := splitAtTerminators(content)

	var parts []string
	var buf strings.Builder
	bufRunes := 0

	for _, s := range sentences {
		n := utf8.RuneCountInString(s)
		if bufRunes+n > c.maxSize && bufRunes >= c.minSize {
			parts = append(parts, buf.String())
			buf.Reset()
			bufRunes = 0
		}
		buf.WriteString(s)
		bufRunes += n
	}
	if buf.Len() > 0 {
		parts = append(parts, buf.String())
	}
	return parts
}

// splitAtTerminators cuts text after each 。！？, keeping the terminator with
// the preceding sentence. Trailing text without a terminator is one sentence.
func splitAtTerminators(text string) []string {
	var sentences []string
	var buf strings.Builder
	for _, r := range text {
		buf.WriteRune(r)
		if strings.ContainsRune(splitTerminators, r) {
			sentences = append(sentences, buf.String())
			buf.Reset()
		}
	}
	if buf.Len() > 0 {
		sentences = append(sentences, buf.String())
	}
	return sentences
}

// chunkKeywords unions the parent object's entity names with any lexicon term
// occurring in the chunk content, deduplicated preserving first-seen order.
func chunkKeywords(content string, entities types.KnowledgeEntities) []string {
	keywords := []string{}
	seen := map[string]struct{}{}
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keywords = append(keywords, k)
	}

	for _, p := range entities.People {
		add(p)
	}
	for _, c := range entities.Concepts {
		add(c)
	}
	for _, o := range entities.Organizations {
		add(o)
	}
	for _, term := range importanceLexicon {
		if strings.Contains(content, term) {
			add(term)
		}
	}
	return keywords
}

// neighbourTopics returns the adjacent objects' topic labels, empty at the
// list boundaries.
func neighbourTopics(objects []types.KnowledgeObject, i int) (before, after string) {
	if i > 0 {
		before = objects[i-1].Topic
	}
	if i < len(objects)-1 {
		after = objects[i+1].Topic
	}
	return before, after
}
