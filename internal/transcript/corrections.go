package transcript

import "github.com/kotodama-ai/kotodama/pkg/types"

// DefaultCorrections returns the known mishearing dictionary for the corpus.
// Entries map recogniser output that is known to be wrong to its fix. The
// list was assembled by reviewing recogniser output against the canonical
// transcripts; extend it as new transcripts surface new mistakes.
func DefaultCorrections() []types.Correction {
	return []types.Correction{
		{Original: "高原率", Fixed: "黄金率"},
		{Original: "黄金律の法則", Fixed: "黄金率"},
		{Original: "バイブる", Fixed: "バイブル"},
		{Original: "またい7章", Fixed: "マタイ7章"},
		{Original: "マタイ七章", Fixed: "マタイ7章"},
		{Original: "12setsu", Fixed: "12節"},
		{Original: "青木さと", Fixed: "青木仁志"},
		{Original: "アチーブメン", Fixed: "アチーブメント"},
		{Original: "化学館", Fixed: "価値観"},
		{Original: "進用", Fixed: "信用"},
		{Original: "めざめよ", Fixed: "目覚めよ"},
	}
}

// CanonicalTerms returns the katakana domain terms the fuzzy corrector may
// rewrite near-miss recogniser output to. Kept separate from the exact
// dictionary: these are targets, not known mistakes.
func CanonicalTerms() []string {
	return []string{
		"バイブル",
		"アチーブメント",
		"ゴールデンルール",
		"トレーナー",
		"セミナー",
	}
}
