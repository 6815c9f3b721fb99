// Package transcript rebuilds readable text from fragmented subtitle cues and
// cleans it for downstream knowledge extraction.
//
// Reconstruction is a pure regrouping: cues are merged into sentences at
// punctuation terminators and silence gaps, and sentences are grouped into
// paragraphs. No character is dropped or duplicated. Cleaning then normalises
// characters, applies a known-mishearing dictionary, strips non-verbal
// markers, and standardises punctuation, preserving the original text
// alongside the cleaned text.
package transcript

import (
	"strings"

	"github.com/kotodama-ai/kotodama/pkg/types"
)

const (
	// silenceGapMs is the pause between consecutive cues that forces a
	// sentence boundary even without terminating punctuation.
	silenceGapMs = 2000

	// maxSentencesPerParagraph closes a paragraph once reached.
	maxSentencesPerParagraph = 5
)

// sentenceTerminators are the characters that end a sentence when a cue's
// text terminates with one of them.
const sentenceTerminators = "。！？!?."

// Reconstruct merges parsed segments into sentences and paragraphs.
//
// A sentence ends when the current segment's text terminates with a sentence
// terminator, when the gap to the next segment's start exceeds the silence
// threshold, or at end of input. Paragraphs close after five sentences or at
// end of input. Timestamps propagate from the first and last contained
// segment; segment IDs are preserved in order.
func Reconstruct(segments []types.Segment) []types.Paragraph {
	sentences := buildSentences(segments)
	return buildParagraphs(sentences)
}

func buildSentences(segments []types.Segment) []types.Sentence {
	var sentences []types.Sentence
	var buf strings.Builder
	var ids []int
	var startTime string

	flush := func(endTime string) {
		if buf.Len() == 0 {
			ids = nil
			return
		}
		sentences = append(sentences, types.Sentence{
			Text:       buf.String(),
			SegmentIDs: ids,
			StartTime:  startTime,
			EndTime:    endTime,
		})
		buf.Reset()
		ids = nil
	}

	for i, seg := range segments {
		if len(ids) == 0 {
			startTime = seg.StartTime
		}
		buf.WriteString(seg.Text)
		ids = append(ids, seg.ID)

		if endsWithTerminator(seg.Text) {
			flush(seg.EndTime)
			continue
		}
		if i+1 < len(segments) && segments[i+1].StartMs-seg.EndMs > silenceGapMs {
			flush(seg.EndTime)
		}
	}
	if len(segments) > 0 {
		flush(segments[len(segments)-1].EndTime)
	}
	return sentences
}

func buildParagraphs(sentences []types.Sentence) []types.Paragraph {
	var paragraphs []types.Paragraph
	var current []types.Sentence

	flush := func() {
		if len(current) == 0 {
			return
		}
		p := types.Paragraph{
			ParagraphID: len(paragraphs) + 1,
			Sentences:   current,
			StartTime:   current[0].StartTime,
			EndTime:     current[len(current)-1].EndTime,
		}
		var text strings.Builder
		for _, s := range current {
			text.WriteString(s.Text)
			p.SegmentIDs = append(p.SegmentIDs, s.SegmentIDs...)
		}
		p.FullText = text.String()
		paragraphs = append(paragraphs, p)
		current = nil
	}

	for _, s := range sentences {
		current = append(current, s)
		if len(current) >= maxSentencesPerParagraph {
			flush()
		}
	}
	flush()
	return paragraphs
}

// endsWithTerminator reports whether s ends with a sentence terminator.
func endsWithTerminator(s string) bool {
	runes := []rune(strings.TrimRight(s, " "))
	if len(runes) == 0 {
		return false
	}
	return strings.ContainsRune(sentenceTerminators, runes[len(runes)-1])
}
