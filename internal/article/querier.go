package article

import "context"

// Querier defines the database operations the store needs.
// Following Go best practices: interfaces are defined by the consumer, not
// the provider (similar to http.RoundTripper, sql.Driver, io.Reader).
//
// This interface allows Store to depend on abstraction rather than concrete
// implementation, improving testability and flexibility.
type Querier interface {
	// LinkExists reports whether an article with this link is already
	// stored.
	LinkExists(ctx context.Context, link string) (bool, error)

	// InsertArticle inserts an article, skipping duplicates on link.
	// Returns the new article's id, or inserted=false when the link
	// already exists.
	InsertArticle(ctx context.Context, a Article) (id int64, inserted bool, err error)

	// TitlesOnDate returns titles of articles whose pub_date starts with
	// the given "Mon, 02 Jan 2006" day prefix.
	TitlesOnDate(ctx context.Context, dayPrefix string) ([]string, error)

	// InsertChunks inserts an article's chunks in one round trip.
	InsertChunks(ctx context.Context, chunks []Chunk) error

	// AllChunks streams every chunk with its embedding, ordered by
	// article id then chunk index. Used for index rebuilds.
	AllChunks(ctx context.Context) ([]Chunk, error)

	// ArticlesByIDs fetches articles by id; missing ids are skipped.
	ArticlesByIDs(ctx context.Context, ids []int64) ([]Article, error)

	// GetArticle fetches one article by id.
	GetArticle(ctx context.Context, id int64) (Article, error)

	// ListRecent returns articles newest-first.
	ListRecent(ctx context.Context, limit, offset int32) ([]Article, error)

	// RelatedCandidates returns recent articles sharing the category or
	// matching the entity/keyword prefixes, excluding excludeID.
	RelatedCandidates(ctx context.Context, excludeID int64, category, entityPrefix, keywordPrefix string, limit int32) ([]Article, error)

	// CountArticles returns the total article count.
	CountArticles(ctx context.Context) (int64, error)

	// DeleteArticle removes an article and, via cascade, its chunks.
	// Returns false if no row matched.
	DeleteArticle(ctx context.Context, id int64) (bool, error)
}
