// Package knowledge segments cleaned paragraphs into topic groups and builds
// knowledge objects: topic-scoped units of meaning carrying entities, quotes,
// a type classification, and an importance score.
//
// Topic segmentation has two modes. The default embedding mode labels each
// paragraph with the most similar entry of a fixed topic catalogue using
// cosine similarity over embeddings; the keyword-fallback mode uses plain
// substring matches and needs no network access, which also makes extraction
// deterministic for tests.
package knowledge

import "regexp"

// TopicKeywords is the fixed catalogue of Japanese topic labels used for
// segmentation. Order matters: ties in embedding mode keep the first-indexed
// keyword.
var TopicKeywords = []string{
	"黄金率",
	"価値観",
	"信用",
	"人生",
	"成功",
	"営業",
	"経営",
	"目標",
	"教育",
	"家族",
	"感謝",
	"幸福",
	"信仰",
	"聖書",
	"研修",
	"能力開発",
	"若者",
	"仕事",
	"夢",
	"挑戦",
	"失敗",
	"学び",
	"貢献",
	"習慣",
}

// peoplePatterns match known people in the corpus. Honorific and given-name
// variants collapse to one canonical surface form via the capture group.
var peoplePatterns = []*regexp.Regexp{
	regexp.MustCompile(`青木(?:仁志|さん|社長|先生)?`),
	regexp.MustCompile(`松下幸之助`),
	regexp.MustCompile(`ナポレオン・?ヒル`),
	regexp.MustCompile(`イエス(?:・キリスト)?`),
	regexp.MustCompile(`ピーター・?ドラッカー`),
}

// knownConcepts are domain concepts detected by substring match.
var knownConcepts = []string{
	"黄金率",
	"バイブル",
	"マタイ7章12節",
	"聖書",
	"価値観",
	"信用",
	"成功哲学",
	"選択理論",
	"目標達成",
	"自己実現",
	"能力開発",
	"人材育成",
}

// knownOrganizations are organisations detected by substring match.
var knownOrganizations = []string{
	"アチーブメント株式会社",
	"アチーブメント",
	"ブリタニカ",
	"トヨタ",
	"松下電器",
}

// highValueConcepts boost the importance score when present in a topic's
// concept entities.
var highValueConcepts = map[string]struct{}{
	"黄金率": {},
	"価値観": {},
	"信用":  {},
	"人生":  {},
}

var (
	agePattern   = regexp.MustCompile(`\d{1,2}歳`)
	moneyPattern = regexp.MustCompile(`\d+万`)
)
