// Package search implements hybrid retrieval over the article corpus:
// vector similarity from the index, blended with BM25 lexical scoring,
// temporal weighting, entity boosting and optional cross-encoder reranking.
package search

import (
	"math"

	"github.com/koopa0/newsagent/internal/textutil"
)

// Okapi BM25 parameters, the standard defaults.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// bm25 scores a small document set against one query. Built per query over
// the candidate results only, so there is no persistent posting list to
// maintain.
type bm25 struct {
	docTokens []map[string]int
	docLens   []int
	avgLen    float64
	docFreq   map[string]int
}

// newBM25 indexes the given documents.
func newBM25(docs []string) *bm25 {
	b := &bm25{
		docTokens: make([]map[string]int, len(docs)),
		docLens:   make([]int, len(docs)),
		docFreq:   make(map[string]int),
	}

	total := 0
	for i, doc := range docs {
		tokens := textutil.Tokenize(doc)
		counts := make(map[string]int, len(tokens))
		for _, t := range tokens {
			counts[t]++
		}
		b.docTokens[i] = counts
		b.docLens[i] = len(tokens)
		total += len(tokens)
		for t := range counts {
			b.docFreq[t]++
		}
	}
	if len(docs) > 0 {
		b.avgLen = float64(total) / float64(len(docs))
	}
	return b
}

// scores returns the raw BM25 score of every document for query.
func (b *bm25) scores(query string) []float64 {
	out := make([]float64, len(b.docTokens))
	if b.avgLen == 0 {
		return out
	}

	n := float64(len(b.docTokens))
	for _, term := range textutil.Tokenize(query) {
		df, ok := b.docFreq[term]
		if !ok {
			continue
		}
		// Lucene-style IDF stays positive even on tiny candidate
		// sets where classic IDF collapses to zero or negative.
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
		for i, counts := range b.docTokens {
			tf := float64(counts[term])
			if tf == 0 {
				continue
			}
			norm := 1 - bm25B + bm25B*float64(b.docLens[i])/b.avgLen
			out[i] += idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*norm)
		}
	}
	return out
}

// normalizedScores returns BM25 scores scaled to [0,1] by the max positive
// score. All-zero scores stay zero.
func (b *bm25) normalizedScores(query string) []float64 {
	raw := b.scores(query)
	maxScore := 0.0
	for _, s := range raw {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore == 0 {
		return raw
	}
	for i := range raw {
		raw[i] /= maxScore
	}
	return raw
}
