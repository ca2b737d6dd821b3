package index

import (
	"math"
	"sort"
)

// Clustering parameters. nlist caps at maxClusters or sqrt(n), whichever is
// smaller; queries probe the defaultProbes nearest clusters.
const (
	maxClusters    = 100
	defaultProbes  = 10
	kmeansRounds   = 10
	minPerCluster  = 2
	clusterMinSize = 40 // below this many vectors clustering is pointless
)

// Clustered is an inverted-file index: vectors are partitioned around
// k-means centroids and queries scan only the lists of the nearest probed
// centroids.
type Clustered struct {
	centroids [][]float32
	lists     [][]Entry
	probes    int
	size      int
}

// ClusterCount returns the k-means list count for n vectors.
func ClusterCount(n int) int {
	k := int(math.Sqrt(float64(n)))
	if k > maxClusters {
		k = maxClusters
	}
	if k < 1 {
		k = 1
	}
	return k
}

// NewClustered builds a Clustered index over entries. Vectors are normalized
// in place. Tiny corpora degenerate to a single list, equivalent to Flat.
func NewClustered(entries []Entry) *Clustered {
	for i := range entries {
		normalize(entries[i].Vector)
	}

	k := ClusterCount(len(entries))
	if len(entries) < clusterMinSize || len(entries) < k*minPerCluster {
		k = 1
	}

	centroids := kmeans(entries, k)
	lists := make([][]Entry, len(centroids))
	for _, e := range entries {
		c := nearestCentroid(e.Vector, centroids)
		lists[c] = append(lists[c], e)
	}

	return &Clustered{
		centroids: centroids,
		lists:     lists,
		probes:    defaultProbes,
		size:      len(entries),
	}
}

func (c *Clustered) Len() int { return c.size }

func (c *Clustered) Search(query []float32, k int) []Hit {
	if k <= 0 || c.size == 0 {
		return nil
	}
	q := normalized(query)

	// Rank centroids and scan the closest lists.
	type ranked struct {
		idx   int
		score float64
	}
	order := make([]ranked, len(c.centroids))
	for i, cent := range c.centroids {
		order[i] = ranked{i, dot(q, cent)}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].score > order[j].score })

	probes := c.probes
	if probes > len(order) {
		probes = len(order)
	}

	var hits []Hit
	for _, r := range order[:probes] {
		for _, e := range c.lists[r.idx] {
			hits = append(hits, Hit{
				ChunkID:   e.ChunkID,
				ArticleID: e.ArticleID,
				Score:     dot(q, e.Vector),
			})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// kmeans runs Lloyd's algorithm for a fixed round count. Deterministic
// initialization (evenly strided seeds) keeps rebuilds stable.
func kmeans(entries []Entry, k int) [][]float32 {
	if k <= 1 || len(entries) <= k {
		// Single centroid: mean of everything.
		if len(entries) == 0 {
			return [][]float32{}
		}
		dim := len(entries[0].Vector)
		c := make([]float32, dim)
		for _, e := range entries {
			for i, x := range e.Vector {
				c[i] += x
			}
		}
		normalize(c)
		return [][]float32{c}
	}

	dim := len(entries[0].Vector)
	centroids := make([][]float32, k)
	stride := len(entries) / k
	for i := 0; i < k; i++ {
		centroids[i] = append([]float32(nil), entries[i*stride].Vector...)
	}

	assign := make([]int, len(entries))
	for round := 0; round < kmeansRounds; round++ {
		changed := false
		for i, e := range entries {
			c := nearestCentroid(e.Vector, centroids)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed && round > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, e := range entries {
			c := assign[i]
			counts[c]++
			for j, x := range e.Vector {
				sums[c][j] += float64(x)
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue // keep previous centroid for empty clusters
			}
			for j := 0; j < dim; j++ {
				centroids[c][j] = float32(sums[c][j] / float64(counts[c]))
			}
			normalize(centroids[c])
		}
	}
	return centroids
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best, bestScore := 0, math.Inf(-1)
	for i, c := range centroids {
		if s := dot(v, c); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
