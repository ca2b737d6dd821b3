// Package index provides the in-memory vector indexes behind semantic
// search. Vectors are L2-normalized at build time so inner product equals
// cosine similarity.
//
// Two backends exist: Flat performs exact scans and is preferred for small
// corpora; Clustered partitions vectors with k-means and probes the nearest
// clusters, trading a little recall for scan cost on larger corpora. The
// Manager picks between them, rebuilds from the article store, and persists
// snapshots across restarts.
package index

import (
	"math"
	"sort"
)

// Entry is one indexed vector with its chunk and article identity.
type Entry struct {
	ChunkID   int64
	ArticleID int64
	Vector    []float32
}

// Hit is one search result with cosine similarity score.
type Hit struct {
	ChunkID   int64
	ArticleID int64
	Score     float64
}

// Index answers nearest-neighbor queries. Implementations are immutable
// after construction; updates happen by building a replacement.
type Index interface {
	// Search returns up to k hits ordered by descending score.
	Search(query []float32, k int) []Hit
	// Len reports the number of indexed vectors.
	Len() int
}

// Flat is an exact inner-product index. Build cost is a copy; query cost is
// a full scan, fine below a few thousand vectors.
type Flat struct {
	entries []Entry
}

// NewFlat builds a Flat index. Vectors are normalized in place.
func NewFlat(entries []Entry) *Flat {
	for i := range entries {
		normalize(entries[i].Vector)
	}
	return &Flat{entries: entries}
}

func (f *Flat) Len() int { return len(f.entries) }

func (f *Flat) Search(query []float32, k int) []Hit {
	if k <= 0 || len(f.entries) == 0 {
		return nil
	}
	q := normalized(query)

	hits := make([]Hit, 0, len(f.entries))
	for _, e := range f.entries {
		hits = append(hits, Hit{
			ChunkID:   e.ChunkID,
			ArticleID: e.ArticleID,
			Score:     dot(q, e.Vector),
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// dot computes the inner product over the shared prefix of a and b.
func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normalize scales v to unit length in place. Zero vectors stay zero.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

// normalized returns a unit-length copy of v.
func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	normalize(out)
	return out
}
