// Package types defines the shared data model used across all kotodama packages.
//
// These types form the lingua franca between the ingestion pipeline stages,
// the providers, and the answering service. Each stage of the pipeline owns
// the objects it emits; downstream stages treat their inputs as read-only.
// Cross-cutting structures live here to avoid circular imports.
package types

// Segment is a single timed subtitle cue, immutable after parsing.
//
// Invariant: StartMs <= EndMs. Within one file, IDs are unique and
// monotonically non-decreasing by StartMs.
type Segment struct {
	// ID is the cue's integer identifier as it appears in the subtitle file.
	ID int `json:"id"`

	// StartTime and EndTime are the cue bounds in "HH:MM:SS,mmm" form,
	// preserved verbatim from the source file.
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`

	// StartMs and EndMs are the cue bounds in milliseconds since file start.
	StartMs int `json:"startMs"`
	EndMs   int `json:"endMs"`

	// DurationSec is (EndMs - StartMs) / 1000.
	DurationSec float64 `json:"durationSec"`

	// Text is the cue text with multi-line cues joined by a single space.
	Text string `json:"text"`

	// TextLength is the rune count of Text.
	TextLength int `json:"textLength"`
}

// Sentence is the concatenation of one or more consecutive segments up to a
// sentence terminator or a silence gap.
//
// Invariant: SegmentIDs is a contiguous slice of the segment sequence.
type Sentence struct {
	Text       string `json:"text"`
	SegmentIDs []int  `json:"segmentIds"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

// Paragraph is an ordered group of sentences bounded by a maximum sentence
// count. Timestamps propagate from the first and last contained segment.
type Paragraph struct {
	// ParagraphID is 1-based within a file.
	ParagraphID int        `json:"paragraphId"`
	Sentences   []Sentence `json:"sentences"`
	FullText    string     `json:"fullText"`
	StartTime   string     `json:"startTime"`
	EndTime     string     `json:"endTime"`
	SegmentIDs  []int      `json:"segmentIds"`
}

// Correction records a single applied error-dictionary fix.
type Correction struct {
	Original string `json:"original"`
	Fixed    string `json:"fixed"`
}

// CleaningFlags reports which cleaning phases ran on a paragraph.
type CleaningFlags struct {
	Normalized          bool `json:"normalized"`
	ErrorsCorrected     bool `json:"errorsCorrected"`
	NonVerbalRemoved    bool `json:"nonVerbalRemoved"`
	FillersRemoved      bool `json:"fillersRemoved"`
	PunctuationFixed    bool `json:"punctuationFixed"`
	WhitespaceCollapsed bool `json:"whitespaceCollapsed"`
}

// CleanedParagraph is a paragraph after the content-cleaning stage. The
// original text is preserved alongside the cleaned text.
type CleanedParagraph struct {
	Paragraph
	OriginalText string        `json:"originalText"`
	CleanedText  string        `json:"cleanedText"`
	Corrections  []Correction  `json:"corrections"`
	Flags        CleaningFlags `json:"flags"`
}

// KnowledgeType classifies a knowledge object by the kind of meaning it carries.
type KnowledgeType string

const (
	KnowledgeAdvice            KnowledgeType = "advice"
	KnowledgePrinciple         KnowledgeType = "principle"
	KnowledgeBiographicalEvent KnowledgeType = "biographical_event"
	KnowledgeAnecdote          KnowledgeType = "anecdote"
	KnowledgeGeneral           KnowledgeType = "general"
)

// Importance buckets a knowledge object by its scored relevance.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// TimeRange bounds an extracted object by its source timestamps.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// KnowledgeContent holds the textual payload of a knowledge object.
type KnowledgeContent struct {
	// Main is a summary of at most 200 runes.
	Main string `json:"main"`

	// Context is the full topic text.
	Context string `json:"context"`

	// Quotes are up to three extracted verbatim quotes.
	Quotes []string `json:"quotes"`

	// KeyTakeaway is the first quote, or the first 100 runes of the topic text.
	KeyTakeaway string `json:"keyTakeaway"`
}

// KnowledgeEntities holds the named entities extracted from a topic.
// All slices are deduplicated preserving first-seen order.
type KnowledgeEntities struct {
	People        []string `json:"people"`
	Concepts      []string `json:"concepts"`
	Organizations []string `json:"organizations"`
	Ages          []string `json:"ages"`
	Numbers       []string `json:"numbers"`
}

// KnowledgeMetadata carries classification and provenance for a knowledge object.
type KnowledgeMetadata struct {
	Importance Importance `json:"importance"`
	Category   string     `json:"category"`
	Sentiment  string     `json:"sentiment"`
	Themes     []string   `json:"themes"`
	SegmentIDs []int      `json:"segmentIds"`
}

// KnowledgeObject is a topic-scoped unit of meaning extracted from cleaned
// paragraphs.
//
// Invariant: Timestamp.Start equals the first contained paragraph's start and
// Timestamp.End the last's end.
type KnowledgeObject struct {
	// KnowledgeID is sequential within a run, e.g. "k001".
	KnowledgeID string            `json:"knowledgeId"`
	Topic       string            `json:"topic"`
	Type        KnowledgeType     `json:"type"`
	Content     KnowledgeContent  `json:"content"`
	Entities    KnowledgeEntities `json:"entities"`
	Timestamp   TimeRange         `json:"timestamp"`
	Metadata    KnowledgeMetadata `json:"metadata"`
}

// ChunkMetadata is the contextual metadata carried by every storage-ready chunk.
type ChunkMetadata struct {
	Topic         string     `json:"topic"`
	KnowledgeID   string     `json:"knowledgeId"`
	People        []string   `json:"people"`
	Concepts      []string   `json:"concepts"`
	Organizations []string   `json:"organizations"`
	Timestamp     TimeRange  `json:"timestamp"`
	Importance    Importance `json:"importance"`
	Category      string     `json:"category"`
	Keywords      []string   `json:"keywords"`

	// ContextBefore and ContextAfter are the adjacent knowledge objects'
	// topic labels, empty at list boundaries.
	ContextBefore string `json:"contextBefore,omitempty"`
	ContextAfter  string `json:"contextAfter,omitempty"`

	SegmentIDs []int  `json:"segmentIds"`
	Language   string `json:"language"`

	// PartIndex (0-based) and TotalParts are set only when the parent
	// knowledge object was split across multiple chunks.
	PartIndex  int `json:"partIndex,omitempty"`
	TotalParts int `json:"totalParts,omitempty"`
}

// Chunk is a storage-ready unit of 200–1000 runes, never split mid-sentence.
type Chunk struct {
	// ChunkID is "chunk_NNN", or "chunk_NNN_K" when split.
	ChunkID  string        `json:"chunkId"`
	Type     string        `json:"type"` // always "knowledge"
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// EmbeddingMetadata records the provenance of an embedding vector.
type EmbeddingMetadata struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Timestamp  string `json:"timestamp"` // RFC 3339
}

// EmbeddedChunk is a chunk plus its embedding vector.
//
// Invariant: all chunks in one run share the same embedding dimension.
type EmbeddedChunk struct {
	Chunk
	Embedding         []float32         `json:"embedding"`
	EmbeddingMetadata EmbeddingMetadata `json:"embeddingMetadata"`
}
