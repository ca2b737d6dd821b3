package index

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/koopa0/newsagent/internal/article"
)

func vec(xs ...float32) []float32 { return xs }

func testEntries() []Entry {
	return []Entry{
		{ChunkID: 1, ArticleID: 10, Vector: vec(1, 0, 0)},
		{ChunkID: 2, ArticleID: 10, Vector: vec(0.9, 0.1, 0)},
		{ChunkID: 3, ArticleID: 20, Vector: vec(0, 1, 0)},
		{ChunkID: 4, ArticleID: 30, Vector: vec(0, 0, 1)},
	}
}

func TestFlatSearchRanksByCosine(t *testing.T) {
	idx := NewFlat(testEntries())

	hits := idx.Search(vec(1, 0, 0), 2)
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].ChunkID != 1 {
		t.Errorf("top hit = chunk %d, want 1", hits[0].ChunkID)
	}
	if hits[1].ChunkID != 2 {
		t.Errorf("second hit = chunk %d, want 2", hits[1].ChunkID)
	}
	if hits[0].Score < 0.999 {
		t.Errorf("identical vector score = %v, want ~1", hits[0].Score)
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits not in descending score order")
	}
}

func TestFlatEmptyAndZeroK(t *testing.T) {
	if hits := NewFlat(nil).Search(vec(1, 0, 0), 3); hits != nil {
		t.Errorf("empty index returned %v", hits)
	}
	if hits := NewFlat(testEntries()).Search(vec(1, 0, 0), 0); hits != nil {
		t.Errorf("k=0 returned %v", hits)
	}
}

func TestClusterCount(t *testing.T) {
	tests := []struct {
		n, want int
	}{
		{0, 1},
		{4, 2},
		{100, 10},
		{10000, 100},
		{1000000, 100}, // capped
	}
	for _, tt := range tests {
		if got := ClusterCount(tt.n); got != tt.want {
			t.Errorf("ClusterCount(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestClusteredMatchesFlatOnSmallCorpus(t *testing.T) {
	// Below the clustering minimum the clustered index degenerates to a
	// single list and must agree exactly with flat.
	entries := testEntries()
	flat := NewFlat(testEntries())
	clustered := NewClustered(entries)

	q := vec(0.5, 0.5, 0)
	fh := flat.Search(q, 4)
	ch := clustered.Search(q, 4)
	if len(fh) != len(ch) {
		t.Fatalf("result sizes differ: %d vs %d", len(fh), len(ch))
	}
	for i := range fh {
		if fh[i].ChunkID != ch[i].ChunkID {
			t.Errorf("rank %d: flat=%d clustered=%d", i, fh[i].ChunkID, ch[i].ChunkID)
		}
		if math.Abs(fh[i].Score-ch[i].Score) > 1e-9 {
			t.Errorf("rank %d score: flat=%v clustered=%v", i, fh[i].Score, ch[i].Score)
		}
	}
}

func TestClusteredRecallOnLargeCorpus(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n, dim = 2000, 16

	entries := make([]Entry, n)
	for i := range entries {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		entries[i] = Entry{ChunkID: int64(i + 1), ArticleID: int64(i/4 + 1), Vector: v}
	}

	// Plant a known needle and query near it.
	needle := make([]float32, dim)
	needle[3] = 1
	entries[500].Vector = append([]float32(nil), needle...)

	idx := NewClustered(entries)
	hits := idx.Search(needle, 5)
	if len(hits) == 0 {
		t.Fatal("no hits")
	}
	if hits[0].ChunkID != entries[500].ChunkID {
		t.Errorf("top hit = chunk %d, want planted needle %d", hits[0].ChunkID, entries[500].ChunkID)
	}
}

// chunkSourceFunc adapts a function to ChunkSource.
type chunkSourceFunc func(ctx context.Context) ([]article.Chunk, error)

func (f chunkSourceFunc) AllChunks(ctx context.Context) ([]article.Chunk, error) { return f(ctx) }

func sourceOf(chunks []article.Chunk) ChunkSource {
	return chunkSourceFunc(func(context.Context) ([]article.Chunk, error) {
		return chunks, nil
	})
}

func TestManagerRebuildAndSearch(t *testing.T) {
	chunks := []article.Chunk{
		{ID: 1, ArticleID: 10, Embedding: vec(1, 0, 0)},
		{ID: 2, ArticleID: 20, Embedding: vec(0, 1, 0)},
		{ID: 3, ArticleID: 30}, // no embedding, must be skipped
	}
	m := NewManager(sourceOf(chunks), BackendFlat, "", nil)

	if hits := m.Search(vec(1, 0, 0), 3); hits != nil {
		t.Errorf("search before rebuild returned %v", hits)
	}
	if err := m.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error: %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (embedding-less chunk skipped)", m.Len())
	}

	hits := m.Search(vec(1, 0, 0), 1)
	if len(hits) != 1 || hits[0].ChunkID != 1 {
		t.Errorf("hits = %v, want chunk 1", hits)
	}
}

func TestManagerSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	chunks := []article.Chunk{
		{ID: 1, ArticleID: 10, Embedding: vec(1, 0, 0)},
		{ID: 2, ArticleID: 20, Embedding: vec(0, 1, 0)},
	}

	m := NewManager(sourceOf(chunks), BackendFlat, path, nil)
	if err := m.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error: %v", err)
	}

	// A fresh manager over an empty source restores from the snapshot.
	restored := NewManager(sourceOf(nil), BackendFlat, path, nil)
	restored.Load()
	if restored.Len() != 2 {
		t.Fatalf("restored Len() = %d, want 2", restored.Len())
	}
	hits := restored.Search(vec(0, 1, 0), 1)
	if len(hits) != 1 || hits[0].ChunkID != 2 {
		t.Errorf("restored hits = %v, want chunk 2", hits)
	}
}

func TestManagerLoadMissingSnapshotIsNonFatal(t *testing.T) {
	m := NewManager(sourceOf(nil), BackendFlat, filepath.Join(t.TempDir(), "missing.db"), nil)
	m.Load() // must not panic or error
	if m.Len() != 0 {
		t.Errorf("Len() = %d after loading missing snapshot", m.Len())
	}
}

func TestCapToRecentArticles(t *testing.T) {
	entries := []Entry{
		{ChunkID: 1, ArticleID: 1},
		{ChunkID: 2, ArticleID: 1},
		{ChunkID: 3, ArticleID: 2},
		{ChunkID: 4, ArticleID: 3},
		{ChunkID: 5, ArticleID: 4},
	}
	got := capToRecentArticles(entries, 2)
	if len(got) != 2 {
		t.Fatalf("kept %d entries, want 2", len(got))
	}
	if got[0].ArticleID != 3 || got[1].ArticleID != 4 {
		t.Errorf("kept wrong articles: %v", got)
	}

	if got := capToRecentArticles(entries, 10); len(got) != len(entries) {
		t.Errorf("cap larger than corpus trimmed entries: %d", len(got))
	}
}
