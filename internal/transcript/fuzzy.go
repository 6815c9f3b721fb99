package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/kotodama-ai/kotodama/pkg/types"
)

// defaultFuzzyThreshold is the minimum Jaro-Winkler score required for a
// katakana run to be rewritten to a known term.
const defaultFuzzyThreshold = 0.85

// FuzzyMatcher catches near-miss katakana mishearings that the exact
// dictionary does not list, e.g. バイベル → バイブル. Candidate runs of
// katakana are extracted from the text and ranked against the known-term
// list by Jaro-Winkler similarity; a run is rewritten only when its best
// score meets the threshold and the run is not already a known term.
//
// The matcher is read-only after construction and safe for concurrent use.
type FuzzyMatcher struct {
	terms     []string
	threshold float64
}

// FuzzyOption is a functional option for configuring a FuzzyMatcher.
type FuzzyOption func(*FuzzyMatcher)

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a rewrite.
// Default: 0.85.
func WithFuzzyThreshold(threshold float64) FuzzyOption {
	return func(m *FuzzyMatcher) { m.threshold = threshold }
}

// NewFuzzyMatcher constructs a FuzzyMatcher over the given canonical katakana
// terms (e.g. バイブル, アチーブメント).
func NewFuzzyMatcher(terms []string, opts ...FuzzyOption) *FuzzyMatcher {
	m := &FuzzyMatcher{
		terms:     append([]string(nil), terms...),
		threshold: defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Correct rewrites near-miss katakana runs in text and returns the corrected
// text plus one Correction record per distinct rewrite.
func (m *FuzzyMatcher) Correct(text string) (string, []types.Correction) {
	if len(m.terms) == 0 {
		return text, nil
	}

	var corrections []types.Correction
	seen := map[string]struct{}{}

	for _, run := range katakanaRuns(text) {
		if _, done := seen[run]; done {
			continue
		}
		best, score := m.bestMatch(run)
		if best == "" || best == run || score < m.threshold {
			continue
		}
		text = strings.ReplaceAll(text, run, best)
		corrections = append(corrections, types.Correction{Original: run, Fixed: best})
		seen[run] = struct{}{}
	}
	return text, corrections
}

// bestMatch returns the known term with the highest Jaro-Winkler similarity
// to run. Ties keep the first-listed term.
func (m *FuzzyMatcher) bestMatch(run string) (string, float64) {
	var best string
	var bestScore float64
	for _, term := range m.terms {
		score := matchr.JaroWinkler(run, term, true)
		if score > bestScore {
			best = term
			bestScore = score
		}
	}
	return best, bestScore
}

// katakanaRuns extracts maximal runs of katakana (incl. the long-vowel mark)
// of at least three runes from s.
func katakanaRuns(s string) []string {
	var runs []string
	var current []rune
	flush := func() {
		if len(current) >= 3 {
			runs = append(runs, string(current))
		}
		current = nil
	}
	for _, r := range s {
		if (r >= 'ァ' && r <= 'ヶ') || r == 'ー' {
			current = append(current, r)
			continue
		}
		flush()
	}
	flush()
	return runs
}
