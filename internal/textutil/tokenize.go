package textutil

import (
	"strings"
	"unicode"
)

// Tokenize splits text into terms for lexical (BM25) scoring.
//
// Latin runs are lowercased and split on non-alphanumerics; Han runs are
// emitted as overlapping character bigrams, the standard segmentation-free
// approach for Chinese retrieval. A single trailing Han character becomes a
// unigram so one-character spans still score.
func Tokenize(text string) []string {
	var tokens []string
	var latin strings.Builder
	var han []rune

	flushLatin := func() {
		if latin.Len() > 0 {
			tokens = append(tokens, strings.ToLower(latin.String()))
			latin.Reset()
		}
	}
	flushHan := func() {
		if len(han) == 1 {
			tokens = append(tokens, string(han))
		}
		for i := 0; i+1 < len(han); i++ {
			tokens = append(tokens, string(han[i:i+2]))
		}
		han = han[:0]
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flushLatin()
			han = append(han, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushHan()
			latin.WriteRune(r)
		default:
			flushLatin()
			flushHan()
		}
	}
	flushLatin()
	flushHan()
	return tokens
}
