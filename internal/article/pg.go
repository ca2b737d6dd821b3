package article

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ErrNotFound is returned when an article id does not exist.
var ErrNotFound = errors.New("article not found")

// PGQuerier implements Querier against a pgx connection pool.
type PGQuerier struct {
	pool *pgxpool.Pool
}

// NewPGQuerier wraps a connection pool. The pool's lifecycle is managed by
// the caller.
func NewPGQuerier(pool *pgxpool.Pool) *PGQuerier {
	return &PGQuerier{pool: pool}
}

const articleColumns = `id, title, content, summary, entities, keywords, category, link, pub_date, source, created_at`

func scanArticle(row pgx.Row) (Article, error) {
	var a Article
	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.Summary, &a.Entities,
		&a.Keywords, &a.Category, &a.Link, &a.PubDate, &a.Source, &a.CreatedAt)
	return a, err
}

// EmbeddingDim reads the vector dimension of chunks.embedding from the
// catalog. pgvector stores the declared dimension in atttypmod.
func (q *PGQuerier) EmbeddingDim(ctx context.Context) (int, error) {
	var dim int
	err := q.pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'chunks'::regclass AND attname = 'embedding'`).Scan(&dim)
	if err != nil {
		return 0, fmt.Errorf("reading embedding dimension: %w", err)
	}
	return dim, nil
}

func (q *PGQuerier) LinkExists(ctx context.Context, link string) (bool, error) {
	var exists bool
	err := q.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE link = $1)`, link).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking link: %w", err)
	}
	return exists, nil
}

func (q *PGQuerier) InsertArticle(ctx context.Context, a Article) (int64, bool, error) {
	row := q.pool.QueryRow(ctx, `
		INSERT INTO articles (title, content, summary, entities, keywords, category, link, pub_date, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (link) DO NOTHING
		RETURNING id`,
		a.Title, a.Content, a.Summary, a.Entities, a.Keywords, a.Category,
		a.Link, a.PubDate, a.Source)

	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict on link: nothing inserted.
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("inserting article: %w", err)
	}
	return id, true, nil
}

func (q *PGQuerier) TitlesOnDate(ctx context.Context, dayPrefix string) ([]string, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT title FROM articles WHERE pub_date LIKE $1 || '%'`, dayPrefix)
	if err != nil {
		return nil, fmt.Errorf("querying same-day titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning title: %w", err)
		}
		titles = append(titles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading same-day titles: %w", err)
	}
	return titles, nil
}

func (q *PGQuerier) InsertChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		emb := pgvector.NewVector(c.Embedding)
		batch.Queue(`
			INSERT INTO chunks (article_id, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (article_id, chunk_index) DO NOTHING`,
			c.ArticleID, c.Index, c.Content, emb)
	}

	results := q.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting chunk batch: %w", err)
		}
	}
	return nil
}

func (q *PGQuerier) AllChunks(ctx context.Context) ([]Chunk, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, article_id, chunk_index, content, embedding
		FROM chunks
		ORDER BY article_id, chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var emb pgvector.Vector
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.Index, &c.Content, &emb); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Embedding = emb.Slice()
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}
	return chunks, nil
}

func (q *PGQuerier) ArticlesByIDs(ctx context.Context, ids []int64) ([]Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.pool.Query(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("querying articles by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]Article, len(ids))
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		byID[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading articles: %w", err)
	}

	// Preserve caller ordering; ids reflect ranking.
	out := make([]Article, 0, len(byID))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (q *PGQuerier) GetArticle(ctx context.Context, id int64) (Article, error) {
	a, err := scanArticle(q.pool.QueryRow(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Article{}, fmt.Errorf("article %d: %w", id, ErrNotFound)
		}
		return Article{}, fmt.Errorf("querying article %d: %w", id, err)
	}
	return a, nil
}

func (q *PGQuerier) ListRecent(ctx context.Context, limit, offset int32) ([]Article, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT `+articleColumns+` FROM articles ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading articles: %w", err)
	}
	return out, nil
}

func (q *PGQuerier) RelatedCandidates(ctx context.Context, excludeID int64, category, entityPrefix, keywordPrefix string, limit int32) ([]Article, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT `+articleColumns+` FROM articles
		WHERE id != $1 AND (category = $2 OR entities LIKE '%' || $3 || '%' OR keywords LIKE '%' || $4 || '%')
		ORDER BY created_at DESC LIMIT $5`,
		excludeID, category, entityPrefix, keywordPrefix, limit)
	if err != nil {
		return nil, fmt.Errorf("querying related candidates: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading related candidates: %w", err)
	}
	return out, nil
}

func (q *PGQuerier) CountArticles(ctx context.Context) (int64, error) {
	var n int64
	if err := q.pool.QueryRow(ctx, `SELECT count(*) FROM articles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting articles: %w", err)
	}
	return n, nil
}

func (q *PGQuerier) DeleteArticle(ctx context.Context, id int64) (bool, error) {
	tag, err := q.pool.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting article %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}
