package article

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/koopa0/newsagent/internal/textutil"
)

// dayPrefixFormat matches the leading day portion of RFC 1123 pub dates
// ("Mon, 02 Jan 2006 15:04:05 GMT"), used for same-day title deduplication.
const dayPrefixFormat = "Mon, 02 Jan 2006"

// Store manages article ingestion and retrieval-facing lookups.
// Ingestion runs a fixed pipeline: duplicate veto, enrichment, insert,
// chunking, batch embedding, and finally an index-change notification.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	chunker  *Chunker
	enricher *Enricher
	logger   *slog.Logger

	onIndexChange func(ctx context.Context) error
	now           func() time.Time
}

// StoreOption configures optional Store behavior.
type StoreOption func(*Store)

// WithIndexNotifier registers a callback invoked after chunks change.
// The search index wires its rebuild here. Notification failures are logged,
// never propagated: the article is already durable.
func WithIndexNotifier(fn func(ctx context.Context) error) StoreOption {
	return func(s *Store) { s.onIndexChange = fn }
}

// WithClock overrides the time source for same-day deduplication. Tests use
// this to pin "today".
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store.
//
// Example (production):
//
//	store := article.NewStore(article.NewPGQuerier(pool), embedder, enricher, logger,
//	    article.WithIndexNotifier(indexManager.Rebuild))
//
// Example (testing with mocks):
//
//	store := article.NewStore(mockQuerier, mockEmbedder, enricher, logger)
func NewStore(querier Querier, embedder ai.Embedder, enricher *Enricher, logger *slog.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		queries:  querier,
		embedder: embedder,
		chunker:  NewChunker(),
		enricher: enricher,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store ingests one article. Returns stored=false when the article is a
// duplicate (same link, or a same-day title containment match); the caller
// treats that as normal feed churn, not an error.
func (s *Store) Store(ctx context.Context, a Article) (bool, error) {
	if strings.TrimSpace(a.Link) == "" {
		return false, fmt.Errorf("article %q: empty link", a.Title)
	}

	// Exact-link veto before any LLM spend; feed re-fetches are mostly
	// duplicates. The UNIQUE constraint at insert covers the race.
	exists, err := s.queries.LinkExists(ctx, a.Link)
	if err != nil {
		return false, fmt.Errorf("checking link: %w", err)
	}
	if exists {
		s.logger.Debug("skipping duplicate article (link)", "link", a.Link)
		return false, nil
	}

	// Same-day title containment veto.
	dayPrefix := s.now().Format(dayPrefixFormat)
	titles, err := s.queries.TitlesOnDate(ctx, dayPrefix)
	if err != nil {
		return false, fmt.Errorf("checking same-day titles: %w", err)
	}
	for _, existing := range titles {
		if strings.Contains(existing, a.Title) || strings.Contains(a.Title, existing) {
			s.logger.Debug("skipping duplicate article (title match)",
				"title", textutil.TruncateRunes(a.Title, 30))
			return false, nil
		}
	}

	s.enricher.Enrich(ctx, &a)

	id, inserted, err := s.queries.InsertArticle(ctx, a)
	if err != nil {
		return false, err
	}
	if !inserted {
		s.logger.Debug("skipping duplicate article (link race)",
			"link", a.Link)
		return false, nil
	}

	chunks := s.buildChunks(id, a)
	if len(chunks) > 0 {
		if err := s.embedChunks(ctx, chunks); err != nil {
			return false, fmt.Errorf("embedding article %d: %w", id, err)
		}
		if err := s.queries.InsertChunks(ctx, chunks); err != nil {
			return false, err
		}
	}

	if s.onIndexChange != nil {
		if err := s.onIndexChange(ctx); err != nil {
			s.logger.Warn("index rebuild after ingest failed", "article_id", id, "error", err)
		}
	}

	s.logger.Info("stored article",
		"id", id,
		"category", a.Category,
		"chunks", len(chunks),
		"title", textutil.TruncateRunes(a.Title, 40))
	return true, nil
}

// buildChunks assembles the searchable chunks for an article: title, then
// summary, then the split body. Fragments below the chunker's minimum are
// dropped.
func (s *Store) buildChunks(articleID int64, a Article) []Chunk {
	texts := append([]string{a.Title, a.Summary}, s.chunker.Split(a.Content)...)

	chunks := make([]Chunk, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if textutil.RuneLen(t) < s.chunker.MinLen {
			continue
		}
		chunks = append(chunks, Chunk{
			ArticleID: articleID,
			Index:     len(chunks),
			Content:   t,
		})
	}
	return chunks
}

// embedChunks fills Embedding for each chunk with one batched embed call.
// Embedding input is rune-budgeted per script; stored chunk content stays
// full length.
func (s *Store) embedChunks(ctx context.Context, chunks []Chunk) error {
	docs := make([]*ai.Document, len(chunks))
	for i, c := range chunks {
		text := textutil.TruncateRunes(c.Content, textutil.EmbedBudget(c.Content))
		docs[i] = &ai.Document{Content: []*ai.Part{ai.NewTextPart(text)}}
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return fmt.Errorf("generating embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(chunks) {
		return fmt.Errorf("embedder returned %d embeddings for %d chunks",
			len(resp.Embeddings), len(chunks))
	}
	for i := range chunks {
		if len(resp.Embeddings[i].Embedding) == 0 {
			return fmt.Errorf("empty embedding for chunk %d", i)
		}
		chunks[i].Embedding = resp.Embeddings[i].Embedding
	}
	return nil
}

// Count returns the total number of stored articles.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.queries.CountArticles(ctx)
}

// Get fetches one article by id. Returns ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, id int64) (Article, error) {
	return s.queries.GetArticle(ctx, id)
}

// ListRecent returns articles newest-first.
func (s *Store) ListRecent(ctx context.Context, limit, offset int32) ([]Article, error) {
	const maxListLimit = 1000
	if limit <= 0 || limit > maxListLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d, got %d", maxListLimit, limit)
	}
	return s.queries.ListRecent(ctx, limit, offset)
}

// ByIDs fetches articles preserving the given id order.
func (s *Store) ByIDs(ctx context.Context, ids []int64) ([]Article, error) {
	return s.queries.ArticlesByIDs(ctx, ids)
}

// AllChunks returns every stored chunk with embeddings, for index rebuilds.
func (s *Store) AllChunks(ctx context.Context) ([]Chunk, error) {
	return s.queries.AllChunks(ctx)
}

// Delete removes an article and its chunks, then notifies the index.
func (s *Store) Delete(ctx context.Context, id int64) error {
	deleted, err := s.queries.DeleteArticle(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("article %d: %w", id, ErrNotFound)
	}
	if s.onIndexChange != nil {
		if err := s.onIndexChange(ctx); err != nil {
			s.logger.Warn("index rebuild after delete failed", "article_id", id, "error", err)
		}
	}
	s.logger.Debug("deleted article", "id", id)
	return nil
}

// Related finds articles similar to the given one by entity/keyword overlap
// (Jaccard) with a +0.1 bonus for shared category. Candidates are recent
// articles sharing the category or an entity/keyword prefix; limit caps the
// ranked result.
func (s *Store) Related(ctx context.Context, id int64, limit int) ([]RelatedArticle, error) {
	if limit <= 0 {
		limit = 5
	}
	ref, err := s.queries.GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}

	const candidatePool = 100
	candidates, err := s.queries.RelatedCandidates(ctx, ref.ID, ref.Category,
		textutil.TruncateRunes(ref.Entities, 10), textutil.TruncateRunes(ref.Keywords, 10),
		candidatePool)
	if err != nil {
		return nil, fmt.Errorf("listing related candidates: %w", err)
	}

	refTerms := termSet(ref.Entities, ref.Keywords)
	related := make([]RelatedArticle, 0, len(candidates))
	for _, cand := range candidates {
		score := jaccard(refTerms, termSet(cand.Entities, cand.Keywords))
		if cand.Category == ref.Category {
			score += 0.1
		}
		related = append(related, RelatedArticle{Article: cand, Score: score})
	}

	sort.SliceStable(related, func(i, j int) bool { return related[i].Score > related[j].Score })
	if len(related) > limit {
		related = related[:limit]
	}
	return related, nil
}

// termSet parses comma-separated entity/keyword strings into a set.
func termSet(lists ...string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, list := range lists {
		for _, term := range strings.Split(list, ",") {
			if term = strings.TrimSpace(term); term != "" {
				set[term] = struct{}{}
			}
		}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b|; empty sets score zero.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
