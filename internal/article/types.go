// Package article manages the news corpus: ingestion with deduplication,
// LLM-assisted enrichment, chunking, embedding, and persistence in
// PostgreSQL.
package article

import "time"

// Category constants assigned during enrichment. CategoryGeneral is the
// fallback when neither the classifier nor the keyword rules produce a label.
const (
	CategoryPolitics      = "Politics"
	CategoryFinance       = "Finance"
	CategorySocial        = "Social"
	CategoryInternational = "International"
	CategorySports        = "Sports"
	CategoryTech          = "Tech"
	CategoryHealth        = "Health"
	CategoryGeneral       = "General"
)

// Article is a stored news item. Entities and Keywords are comma-separated
// strings as produced by enrichment; PubDate keeps the RFC 1123 string from
// the source feed because sources disagree on formats and temporal weighting
// parses it leniently downstream.
type Article struct {
	ID        int64
	Title     string
	Content   string
	Summary   string
	Entities  string
	Keywords  string
	Category  string
	Link      string
	PubDate   string
	Source    string
	CreatedAt time.Time
}

// Chunk is an embedded fragment of an article. Index orders chunks within
// their article; chunk 0 is always the title.
type Chunk struct {
	ID        int64
	ArticleID int64
	Index     int
	Content   string
	Embedding []float32
}

// RelatedArticle pairs an article with its relatedness score to some
// reference article.
type RelatedArticle struct {
	Article Article
	Score   float64
}
