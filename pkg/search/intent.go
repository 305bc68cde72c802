package search

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/arkologystudio/lumen-search/pkg/models"
)

// SuggestedType is the classifier's advisory hint. "both" means no clear
// winner.
type SuggestedType string

const (
	SuggestCatalog SuggestedType = SuggestedType(models.SourceKindCatalog)
	SuggestContent SuggestedType = SuggestedType(models.SourceKindContent)
	SuggestBoth    SuggestedType = "both"
)

// IntentResult is a hint about which store a query is likely aimed at. It is
// advisory only and never narrows a caller's explicit type selection.
type IntentResult struct {
	SuggestedType SuggestedType `json:"suggested_type"`
	Confidence    float64       `json:"confidence"`
	Reasoning     string        `json:"reasoning"`
}

// catalogKeywords signal shopping/product intent.
var catalogKeywords = []string{
	"buy", "price", "cost", "cheap", "cheapest", "expensive", "discount",
	"deal", "sale", "order", "purchase", "shop", "product", "brand",
	"shipping", "stock", "available", "compare", "review", "size", "color",
}

// contentKeywords signal informational intent.
var contentKeywords = []string{
	"how", "what", "why", "when", "where", "who", "guide", "tutorial",
	"learn", "explain", "meaning", "definition", "article", "blog", "about",
	"help", "example", "difference", "tips", "best way",
}

// ClassifyIntent counts query-word overlap against the catalog and content
// keyword sets. The side with strictly more matches wins with confidence
// min(matches/len(set), 0.9); a tie or no matches suggests both at 0.5.
func ClassifyIntent(query string) IntentResult {
	words := tokenize(query)

	catalogMatches := countMatches(words, catalogKeywords)
	contentMatches := countMatches(words, contentKeywords)

	switch {
	case catalogMatches > contentMatches:
		return IntentResult{
			SuggestedType: SuggestCatalog,
			Confidence:    confidence(catalogMatches, len(catalogKeywords)),
			Reasoning: fmt.Sprintf("%d catalog-intent keyword(s) vs %d informational",
				catalogMatches, contentMatches),
		}
	case contentMatches > catalogMatches:
		return IntentResult{
			SuggestedType: SuggestContent,
			Confidence:    confidence(contentMatches, len(contentKeywords)),
			Reasoning: fmt.Sprintf("%d informational keyword(s) vs %d catalog-intent",
				contentMatches, catalogMatches),
		}
	default:
		return IntentResult{
			SuggestedType: SuggestBoth,
			Confidence:    0.5,
			Reasoning:     "no clear intent signal",
		}
	}
}

func confidence(matches, setSize int) float64 {
	c := float64(matches) / float64(setSize)
	if c > 0.9 {
		c = 0.9
	}
	return c
}

func tokenize(query string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}
	return words
}

func countMatches(words map[string]bool, keywords []string) int {
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			// Multi-word keywords match when every word is present.
			all := true
			for _, part := range strings.Fields(kw) {
				if !words[part] {
					all = false
					break
				}
			}
			if all {
				matches++
			}
			continue
		}
		if words[kw] {
			matches++
		}
	}
	return matches
}
