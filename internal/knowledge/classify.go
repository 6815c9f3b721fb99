package knowledge

import (
	"strings"
	"unicode/utf8"

	"github.com/kotodama-ai/kotodama/pkg/types"
)

// classification marker sets, checked in priority order. First match wins.
var (
	adviceMarkers       = []string{"してください", "しなさい", "ことが大切", "した方がいい", "してはいけない", "べきです", "べきだ"}
	principleMarkers    = []string{"黄金率", "法則", "原則", "真理", "哲学"}
	biographicalMarkers = []string{"歳の時", "歳で", "当時", "生まれ", "出会い", "出会った", "入社", "創業"}
	anecdoteMarkers     = []string{"ある日", "その時", "エピソード", "思い出", "ことがありました"}
)

// classifyType assigns the knowledge type for a topic's text. Priority:
// advice, principle, biographical event, anecdote, then general.
func classifyType(text string) types.KnowledgeType {
	switch {
	case containsAny(text, adviceMarkers):
		return types.KnowledgeAdvice
	case containsAny(text, principleMarkers):
		return types.KnowledgePrinciple
	case containsAny(text, biographicalMarkers):
		return types.KnowledgeBiographicalEvent
	case containsAny(text, anecdoteMarkers):
		return types.KnowledgeAnecdote
	default:
		return types.KnowledgeGeneral
	}
}

// scoreImportance buckets a topic's importance:
// quotes +2, people +1, high-value concept +2, long summary +1;
// a total of 4 or more is high, 2 or more medium, otherwise low.
func scoreImportance(quotes []string, entities types.KnowledgeEntities, summary string) types.Importance {
	score := 0
	if len(quotes) > 0 {
		score += 2
	}
	if len(entities.People) > 0 {
		score++
	}
	for _, c := range entities.Concepts {
		if _, ok := highValueConcepts[c]; ok {
			score += 2
			break
		}
	}
	if utf8.RuneCountInString(summary) > 100 {
		score++
	}

	switch {
	case score >= 4:
		return types.ImportanceHigh
	case score >= 2:
		return types.ImportanceMedium
	default:
		return types.ImportanceLow
	}
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
