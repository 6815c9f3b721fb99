package knowledge

import (
	"regexp"
	"strings"
)

// quotedPattern matches corner-bracket quotations: 「…」.
var quotedPattern = regexp.MustCompile(`「([^」]+)」`)

// teachingPatterns match sentences that phrase a principle or advice even
// when not quoted, e.g. …ことが大切です / …してはいけない / …べきです.
var teachingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[^。！？]*こと(?:が|は)大切[^。！？]*[。！？]?`),
	regexp.MustCompile(`[^。！？]*してはいけない[^。！？]*[。！？]?`),
	regexp.MustCompile(`[^。！？]*べき(?:です|だ)[^。！？]*[。！？]?`),
	regexp.MustCompile(`[^。！？]*なんです[。！？]`),
}

// extractQuotes returns all corner-bracket quotations plus sentences matching
// the teaching patterns, deduplicated preserving first-seen order.
func extractQuotes(text string) []string {
	quotes := []string{}
	for _, m := range quotedPattern.FindAllStringSubmatch(text, -1) {
		quotes = appendUnique(quotes, m[1])
	}
	for _, pat := range teachingPatterns {
		for _, m := range pat.FindAllString(text, -1) {
			m = strings.TrimSpace(m)
			if m != "" {
				quotes = appendUnique(quotes, m)
			}
		}
	}
	return quotes
}
