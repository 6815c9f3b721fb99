package knowledge

import (
	"strings"

	"github.com/kotodama-ai/kotodama/pkg/types"
)

// extractEntities pulls named entities from the concatenated text of a topic.
// All result slices are deduplicated preserving first-seen order.
func extractEntities(text string) types.KnowledgeEntities {
	e := types.KnowledgeEntities{
		People:        []string{},
		Concepts:      []string{},
		Organizations: []string{},
		Ages:          []string{},
		Numbers:       []string{},
	}

	for _, pat := range peoplePatterns {
		for _, m := range pat.FindAllString(text, -1) {
			e.People = appendUnique(e.People, m)
		}
	}
	for _, c := range knownConcepts {
		if strings.Contains(text, c) {
			e.Concepts = appendUnique(e.Concepts, c)
		}
	}
	for _, o := range knownOrganizations {
		if strings.Contains(text, o) {
			e.Organizations = appendUnique(e.Organizations, o)
		}
	}
	for _, m := range agePattern.FindAllString(text, -1) {
		e.Ages = appendUnique(e.Ages, m)
	}
	for _, m := range moneyPattern.FindAllString(text, -1) {
		e.Numbers = appendUnique(e.Numbers, m)
	}
	return e
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
