package services

import (
	"regexp"
	"strings"
)

// stopwords excluded from search keyword extraction.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {},
	"with": {}, "by": {}, "from": {}, "as": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "being": {}, "it": {},
	"its": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"he": {}, "she": {}, "they": {}, "we": {}, "you": {}, "i": {},
	"his": {}, "her": {}, "their": {}, "our": {}, "your": {}, "my": {},
	"not": {}, "no": {}, "so": {}, "if": {}, "then": {}, "than": {},
	"there": {}, "here": {}, "when": {}, "while": {}, "where": {},
	"what": {}, "which": {}, "who": {}, "how": {}, "why": {}, "all": {},
	"can": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"has": {}, "have": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"about": {}, "into": {}, "over": {}, "under": {}, "more": {},
	"most": {}, "some": {}, "such": {}, "only": {}, "also": {},
	"just": {}, "very": {}, "up": {}, "down": {}, "out": {},
}

var wordPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z'-]*`)

// ExtractKeywords pulls the most useful search terms from narration
// text: non-stopword words of three or more letters, in order of first
// appearance, capped at max.
func ExtractKeywords(text string, max int) []string {
	if max <= 0 {
		max = 3
	}

	seen := make(map[string]struct{})
	var keywords []string
	for _, match := range wordPattern.FindAllString(text, -1) {
		word := strings.ToLower(match)
		if len(word) < 3 {
			continue
		}
		if _, skip := stopwords[word]; skip {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
		if len(keywords) >= max {
			break
		}
	}
	return keywords
}

// SearchQuery joins scene keywords into a single stock search query,
// falling back to keyword extraction from the narration text.
func SearchQuery(keywords []string, narration string) string {
	cleaned := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k != "" {
			cleaned = append(cleaned, k)
		}
	}
	if len(cleaned) == 0 {
		cleaned = ExtractKeywords(narration, 3)
	}
	return strings.Join(cleaned, " ")
}
