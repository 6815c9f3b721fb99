package transcript

import (
	"strings"

	"github.com/kotodama-ai/kotodama/pkg/types"
)

// Cleaner applies the content-cleaning phases to reconstructed paragraphs.
// The zero value is not usable; construct with NewCleaner. A Cleaner is
// read-only after construction and safe for concurrent use.
type Cleaner struct {
	dictionary    []types.Correction
	removeFillers bool
	fuzzy         *FuzzyMatcher
}

// CleanerOption is a functional option for configuring a Cleaner.
type CleanerOption func(*Cleaner)

// WithErrorDictionary replaces the default mishearing dictionary. Entries are
// applied in order; earlier entries win on overlapping matches.
func WithErrorDictionary(pairs []types.Correction) CleanerOption {
	return func(c *Cleaner) { c.dictionary = pairs }
}

// WithFillerRemoval enables removal of conversational filler words
// (えー, あのー, まあ…). Off by default because fillers occasionally carry
// discourse meaning in interview transcripts.
func WithFillerRemoval(enabled bool) CleanerOption {
	return func(c *Cleaner) { c.removeFillers = enabled }
}

// WithFuzzyMatcher attaches a FuzzyMatcher as an additional correction stage
// that catches near-miss katakana mishearings the exact dictionary does not
// list. When nil (the default), the fuzzy stage is skipped entirely.
func WithFuzzyMatcher(m *FuzzyMatcher) CleanerOption {
	return func(c *Cleaner) { c.fuzzy = m }
}

// NewCleaner constructs a Cleaner with the supplied options.
func NewCleaner(opts ...CleanerOption) *Cleaner {
	c := &Cleaner{
		dictionary: DefaultCorrections(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Clean applies all configured phases, in order, to each paragraph:
// character normalisation, dictionary correction, non-verbal marker removal,
// optional filler removal, punctuation standardisation, and whitespace
// collapsing. The original text is preserved on each result.
func (c *Cleaner) Clean(paragraphs []types.Paragraph) []types.CleanedParagraph {
	out := make([]types.CleanedParagraph, 0, len(paragraphs))
	for _, p := range paragraphs {
		out = append(out, c.cleanOne(p))
	}
	return out
}

func (c *Cleaner) cleanOne(p types.Paragraph) types.CleanedParagraph {
	cp := types.CleanedParagraph{
		Paragraph:    p,
		OriginalText: p.FullText,
		Corrections:  []types.Correction{},
	}

	text := normalizeWidth(p.FullText)
	cp.Flags.Normalized = true

	for _, pair := range c.dictionary {
		if strings.Contains(text, pair.Original) {
			text = strings.ReplaceAll(text, pair.Original, pair.Fixed)
			cp.Corrections = append(cp.Corrections, pair)
		}
	}
	if c.fuzzy != nil {
		var fuzzyHits []types.Correction
		text, fuzzyHits = c.fuzzy.Correct(text)
		cp.Corrections = append(cp.Corrections, fuzzyHits...)
	}
	cp.Flags.ErrorsCorrected = len(cp.Corrections) > 0

	text = removeNonVerbal(text)
	cp.Flags.NonVerbalRemoved = true

	if c.removeFillers {
		text = removeFillers(text)
		cp.Flags.FillersRemoved = true
	}

	text = standardizePunctuation(text)
	cp.Flags.PunctuationFixed = true

	text = collapseWhitespace(text)
	cp.Flags.WhitespaceCollapsed = true

	cp.CleanedText = text
	return cp
}

// normalizeWidth converts full-width ASCII letters and digits to their
// half-width forms and ideographic spaces to plain spaces. Katakana and
// punctuation are left untouched.
func normalizeWidth(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'Ａ' && r <= 'Ｚ':
			b.WriteRune(r - 'Ａ' + 'A')
		case r >= 'ａ' && r <= 'ｚ':
			b.WriteRune(r - 'ａ' + 'a')
		case r >= '０' && r <= '９':
			b.WriteRune(r - '０' + '0')
		case r == '　':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// nonVerbalMarkers lists the bracketed annotations that transcripts carry for
// non-speech audio. A bracketed run is removed when its content contains one
// of these.
var nonVerbalMarkers = []string{"音楽", "拍手", "笑い", "笑", "BGM", "効果音", "ため息", "咳"}

// bracketPairs are the opening/closing bracket forms recognised by
// removeNonVerbal.
var bracketPairs = [][2]rune{
	{'（', '）'},
	{'(', ')'},
	{'［', '］'},
	{'[', ']'},
	{'【', '】'},
}

// removeNonVerbal strips bracketed non-verbal markers such as （音楽） or
// [拍手]. Bracketed text that is not a known marker is kept — speakers
// occasionally quote parenthesised titles.
func removeNonVerbal(s string) string {
	for _, pair := range bracketPairs {
		s = removeBracketed(s, pair[0], pair[1])
	}
	return s
}

func removeBracketed(s string, open, close rune) string {
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] != open {
			b.WriteRune(runes[i])
			continue
		}
		// Find the matching close bracket.
		end := -1
		for j := i + 1; j < len(runes); j++ {
			if runes[j] == close {
				end = j
				break
			}
		}
		if end == -1 {
			b.WriteRune(runes[i])
			continue
		}
		inner := string(runes[i+1 : end])
		if isNonVerbal(inner) {
			i = end
			continue
		}
		b.WriteString(string(runes[i : end+1]))
		i = end
	}
	return b.String()
}

func isNonVerbal(inner string) bool {
	for _, m := range nonVerbalMarkers {
		if strings.Contains(inner, m) {
			return true
		}
	}
	return false
}

// fillerWords are conversational fillers removed when filler removal is on.
// Longer entries come first so that あのー is removed before あの.
var fillerWords = []string{
	"えーっと", "えーと", "えっと", "あのー", "えー", "あの、", "まあ、", "なんか、", "そのー",
}

func removeFillers(s string) string {
	for _, f := range fillerWords {
		s = strings.ReplaceAll(s, f, "")
	}
	return s
}

// standardizePunctuation collapses runs of exclamation/question marks and
// touten, normalises multi-dot ellipses, and strips whitespace that appears
// before a terminator.
func standardizePunctuation(s string) string {
	s = collapseRuns(s, '！')
	s = collapseRuns(s, '!')
	s = collapseRuns(s, '？')
	s = collapseRuns(s, '?')
	s = collapseRuns(s, '、')

	// Ellipses: runs of ASCII dots or U+2026 become a single 。
	for strings.Contains(s, "……") {
		s = strings.ReplaceAll(s, "……", "…")
	}
	for strings.Contains(s, "....") {
		s = strings.ReplaceAll(s, "....", "...")
	}

	// No whitespace before a terminator.
	for _, term := range []string{"。", "！", "？", "!", "?", "、", "."} {
		s = strings.ReplaceAll(s, " "+term, term)
		s = strings.ReplaceAll(s, "　"+term, term)
	}
	return s
}

func collapseRuns(s string, r rune) string {
	double := string([]rune{r, r})
	single := string(r)
	for strings.Contains(s, double) {
		s = strings.ReplaceAll(s, double, single)
	}
	return s
}

// collapseWhitespace reduces interior whitespace runs to a single space and
// trims the ends.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
