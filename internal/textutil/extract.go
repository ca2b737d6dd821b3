package textutil

import (
	"sort"
	"strings"
	"unicode"
)

// keywordStopwords filters tokens that carry no topical weight in either
// script. Kept deliberately small; frequency ranking already buries most
// filler.
var keywordStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "at": {}, "for": {}, "with": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "has": {}, "have": {},
	"had": {}, "it": {}, "its": {}, "this": {}, "that": {}, "by": {},
	"from": {}, "as": {}, "will": {}, "said": {}, "says": {}, "after": {},
	"more": {}, "new": {}, "not": {}, "but": {}, "he": {}, "she": {},
	"they": {}, "his": {}, "her": {}, "their": {},
	"我們": {}, "他們": {}, "這個": {}, "那個": {}, "一個": {}, "可以": {},
	"已經": {}, "表示": {}, "指出": {}, "沒有": {}, "因為": {}, "所以": {},
}

// ExtractEntities pulls likely named entities from article text: capitalized
// Latin words away from sentence starts, and recurring 2-4 character Han
// spans. Returns at most 10 unique entities as a comma-separated string,
// sorted for stable storage.
func ExtractEntities(text string) string {
	found := make(map[string]struct{})

	// Latin: capitalized tokens not immediately following sentence punctuation.
	sentenceStart := true
	for _, tok := range strings.Fields(text) {
		word := strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		atStart := sentenceStart
		sentenceStart = strings.ContainsAny(tok, ".!?。！？")
		if word == "" || atStart {
			continue
		}
		runes := []rune(word)
		if len(runes) > 1 && unicode.IsUpper(runes[0]) && !isAllUpper(runes) {
			found[word] = struct{}{}
		}
	}

	// Han: spans between punctuation, repeated spans of 2-4 characters.
	counts := make(map[string]int)
	for _, span := range hanSpans(text) {
		runes := []rune(span)
		if len(runes) >= 2 && len(runes) <= 4 {
			counts[span]++
		}
	}
	for span, n := range counts {
		if n >= 2 {
			found[span] = struct{}{}
		}
	}

	entities := make([]string, 0, len(found))
	for e := range found {
		if RuneLen(e) > 1 {
			entities = append(entities, e)
		}
	}
	sort.Strings(entities)
	if len(entities) > 10 {
		entities = entities[:10]
	}
	return strings.Join(entities, ", ")
}

// ExtractKeywords ranks tokens by frequency weighted by length and returns
// the top 10 as a comma-separated string. A cheap stand-in for corpus TF-IDF
// that behaves acceptably on single-article input.
func ExtractKeywords(text string) string {
	counts := make(map[string]int)
	for _, tok := range Tokenize(text) {
		if RuneLen(tok) < 2 {
			continue
		}
		if _, stop := keywordStopwords[tok]; stop {
			continue
		}
		counts[tok]++
	}

	type scored struct {
		term   string
		weight float64
	}
	ranked := make([]scored, 0, len(counts))
	for term, n := range counts {
		// Longer terms are more topical; frequency alone favors bigram noise.
		ranked = append(ranked, scored{term, float64(n) * float64(RuneLen(term))})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].term < ranked[j].term
	})

	n := len(ranked)
	if n > 10 {
		n = 10
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i].term
	}
	return strings.Join(out, ", ")
}

func isAllUpper(runes []rune) bool {
	for _, r := range runes {
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// hanSpans returns maximal runs of Han characters in text.
func hanSpans(text string) []string {
	var spans []string
	var cur []rune
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			cur = append(cur, r)
			continue
		}
		if len(cur) > 0 {
			spans = append(spans, string(cur))
			cur = cur[:0]
		}
	}
	if len(cur) > 0 {
		spans = append(spans, string(cur))
	}
	return spans
}
