// Package textutil provides the language-aware text primitives shared by the
// retrieval and agent layers: script detection, tokenisation for lexical
// scoring, and heuristic term extraction for Chinese queries.
//
// News content in this system is bilingual (Traditional/Simplified Chinese
// and English), so most helpers branch on script rather than assuming
// whitespace-delimited words.
package textutil

import (
	"strings"
	"unicode"
)

// IsCJK reports whether s contains at least one Han character.
// Queries with any Han content take the Chinese handling path throughout the
// pipeline, matching how users actually mix scripts ("NBA 季後賽").
func IsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// simplifyTable maps the Traditional forms that differ between Taiwan and
// mainland sources for the entities this corpus actually confuses.
// Not a general-purpose converter.
var simplifyTable = map[rune]rune{
	'內': '内',
	'國': '国',
	'臺': '台',
}

// Simplify converts the handful of Traditional characters in simplifyTable to
// their Simplified forms. Used to widen substring matching across
// cross-strait sources.
func Simplify(s string) string {
	return strings.Map(func(r rune) rune {
		if sr, ok := simplifyTable[r]; ok {
			return sr
		}
		return r
	}, s)
}

// HorseVariants returns the query together with its 馬/马 swapped forms.
// Short queries like 馬拉松 must match articles regardless of which script
// the source publishes in; the set always contains the original.
func HorseVariants(q string) []string {
	set := map[string]struct{}{q: {}}
	set[strings.ReplaceAll(q, "馬", "马")] = struct{}{}
	set[strings.ReplaceAll(q, "马", "馬")] = struct{}{}

	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}

// RuneLen returns the number of runes in s. Length thresholds throughout the
// pipeline count characters, not bytes.
func RuneLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

// TruncateRunes returns at most n runes of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// EmbedBudget returns the rune budget for embedding input: CJK text carries
// more information per rune, so it gets a tighter cut.
func EmbedBudget(s string) int {
	if IsCJK(s) {
		return 1000
	}
	return 1500
}
