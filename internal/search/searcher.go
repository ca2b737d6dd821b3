package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/koopa0/newsagent/internal/article"
	"github.com/koopa0/newsagent/internal/index"
	"github.com/koopa0/newsagent/internal/textutil"
)

// Candidate pool sizes pulled from the vector index. Category filtering
// happens after retrieval, so filtered queries over-fetch.
const (
	candidatesPlain    = 20
	candidatesCategory = 50
)

// Hybrid scoring weights.
const (
	vectorWeight    = 0.6 // vector similarity share of the blended score
	bm25Weight      = 0.4 // lexical share
	entityBoostMax  = 0.3 // max relative boost for full entity overlap
	rerankDepth     = 10  // candidates sent to the cross-encoder
	rerankPrior     = 0.4 // blended score share kept from the prior stages
	rerankScoreGain = 0.6 // cross-encoder share
)

// VectorIndex answers nearest-neighbor queries. Satisfied by *index.Manager.
type VectorIndex interface {
	Search(query []float32, k int) []index.Hit
}

// ArticleSource fetches articles by id in ranking order. Satisfied by
// *article.Store.
type ArticleSource interface {
	ByIDs(ctx context.Context, ids []int64) ([]article.Article, error)
}

// Reranker scores query/document pairs with a cross-encoder. Implementations
// return one raw score per document.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)
}

// Result is one scored article.
type Result struct {
	Article       article.Article
	Similarity    float64 // final blended score after all stages
	BM25          float64 // normalized lexical score
	EntityOverlap float64 // share of query entities present in the article
}

// Config tunes the searcher.
type Config struct {
	MinSimilarity float64 // vector hits below this are discarded
	CacheSize     int
	Lexical       bool // enable the BM25 blend stage
}

// Searcher runs the retrieval pipeline: embed query, probe the vector index,
// discard weak hits, apply temporal weighting, blend BM25, boost entity
// matches, optionally rerank, and cache the outcome.
//
// Searcher is safe for concurrent use by multiple goroutines.
type Searcher struct {
	idx      VectorIndex
	articles ArticleSource
	embedder ai.Embedder
	reranker Reranker
	cfg      Config
	cache    *resultCache
	logger   *slog.Logger
	now      func() time.Time
}

// NewSearcher creates a Searcher. reranker may be nil, disabling the rerank
// stage regardless of per-query options.
func NewSearcher(idx VectorIndex, articles ArticleSource, embedder ai.Embedder, reranker Reranker, cfg Config, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 100
	}
	return &Searcher{
		idx:      idx,
		articles: articles,
		embedder: embedder,
		reranker: reranker,
		cfg:      cfg,
		cache:    newResultCache(cfg.CacheSize),
		logger:   logger,
		now:      time.Now,
	}
}

// Option adjusts one search call.
type Option func(*searchOptions)

type searchOptions struct {
	topK     int
	category string
	rerank   bool
}

// WithTopK sets the result count (default 3).
func WithTopK(k int) Option {
	return func(o *searchOptions) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithCategory restricts results to one article category.
func WithCategory(category string) Option {
	return func(o *searchOptions) { o.category = category }
}

// WithRerank toggles the cross-encoder stage for this query.
func WithRerank(enabled bool) Option {
	return func(o *searchOptions) { o.rerank = enabled }
}

// Search runs the full pipeline and returns up to topK results ordered by
// final score.
func (s *Searcher) Search(ctx context.Context, query string, opts ...Option) ([]Result, error) {
	o := searchOptions{topK: 3, rerank: true}
	for _, opt := range opts {
		opt(&o)
	}

	key := cacheKey(query, o.category, o.topK)
	if cached, ok := s.cache.get(key); ok {
		s.logger.Debug("search cache hit", "query", textutil.TruncateRunes(query, 30))
		return cached, nil
	}

	results, err := s.retrieve(ctx, query, o)
	if err != nil {
		return nil, err
	}

	if s.cfg.Lexical && len(results) > 0 {
		applyBM25(query, results)
	}
	if len(results) > 0 {
		applyEntityBoost(query, results)
	}

	if o.rerank && s.reranker != nil && len(results) > 0 {
		results = s.rerank(ctx, query, results, o.topK)
	} else {
		sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
		if len(results) > o.topK {
			results = results[:o.topK]
		}
	}

	s.cache.put(key, results)
	return results, nil
}

// retrieve runs the vector stage: embed, probe, threshold, dedupe per
// article, hydrate articles, and weight by recency.
func (s *Searcher) retrieve(ctx context.Context, query string, o searchOptions) ([]Result, error) {
	embedText := textutil.TruncateRunes(query, textutil.EmbedBudget(query))
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{{Content: []*ai.Part{ai.NewTextPart(embedText)}}},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned for query")
	}

	k := candidatesPlain
	if o.category != "" {
		k = candidatesCategory
	}
	hits := s.idx.Search(resp.Embeddings[0].Embedding, k)

	// Best hit per article, in score order.
	var ids []int64
	simByArticle := make(map[int64]float64)
	for _, h := range hits {
		if h.Score < s.cfg.MinSimilarity {
			continue
		}
		if _, seen := simByArticle[h.ArticleID]; seen {
			continue
		}
		simByArticle[h.ArticleID] = h.Score
		ids = append(ids, h.ArticleID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	arts, err := s.articles.ByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading search results: %w", err)
	}

	now := s.now()
	results := make([]Result, 0, len(arts))
	for _, a := range arts {
		if o.category != "" && a.Category != o.category {
			continue
		}
		weight := temporalWeight(a.PubDate, now)
		results = append(results, Result{
			Article:    a,
			Similarity: simByArticle[a.ID] * (0.7 + 0.3*weight),
		})
	}
	return results, nil
}

// applyBM25 blends lexical scores into the results in place.
func applyBM25(query string, results []Result) {
	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Article.Title + " " + r.Article.Content
	}
	normalized := newBM25(docs).normalizedScores(query)
	for i := range results {
		results[i].BM25 = normalized[i]
		results[i].Similarity = vectorWeight*results[i].Similarity + bm25Weight*normalized[i]
	}
}

// applyEntityBoost raises results sharing named entities with the query by
// up to entityBoostMax.
func applyEntityBoost(query string, results []Result) {
	queryEntities := entitySet(textutil.ExtractEntities(query))
	if len(queryEntities) == 0 {
		return
	}
	for i := range results {
		body := results[i].Article.Title + " " + textutil.TruncateRunes(results[i].Article.Content, 500)
		contentEntities := entitySet(textutil.ExtractEntities(body))

		matched := 0
		for e := range queryEntities {
			if _, ok := contentEntities[e]; ok {
				matched++
			}
		}
		overlap := float64(matched) / float64(len(queryEntities))
		results[i].EntityOverlap = overlap
		results[i].Similarity *= 1 + overlap*entityBoostMax
	}
}

// rerank sends the top candidates through the cross-encoder and blends the
// returned scores with the prior ranking. Encoder failure falls back to the
// existing order.
func (s *Searcher) rerank(ctx context.Context, query string, results []Result, topK int) []Result {
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })

	depth := rerankDepth
	if depth > len(results) {
		depth = len(results)
	}
	candidates := results[:depth]

	docs := make([]string, depth)
	for i, r := range candidates {
		docs[i] = r.Article.Title + "\n" + textutil.TruncateRunes(r.Article.Content, 200)
	}

	scores, err := s.reranker.Rerank(ctx, query, docs)
	if err != nil || len(scores) != depth {
		s.logger.Warn("rerank failed, keeping hybrid order", "error", err)
		if len(results) > topK {
			results = results[:topK]
		}
		return results
	}

	for i, raw := range scores {
		norm := raw
		if raw > 1 {
			// Cross-encoder logits roughly span [-10, 10].
			norm = (raw + 10) / 20
		}
		candidates[i].Similarity = candidates[i].Similarity*rerankPrior + norm*rerankScoreGain
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Similarity > candidates[j].Similarity })
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// entitySet parses a comma-separated entity string into a set.
func entitySet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}
