package article

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/time/rate"

	"github.com/koopa0/newsagent/internal/textutil"
)

// Summarizer produces a one-sentence summary for an article.
// Implemented by llm.Client; mocked in tests.
type Summarizer interface {
	Summarize(ctx context.Context, title, content string) (string, error)
}

// CategoryClassifier labels an article with one of the known categories.
type CategoryClassifier interface {
	ClassifyCategory(ctx context.Context, title, content string) (string, error)
}

// validCategories the classifier may return; anything else falls through to
// keyword rules.
var validCategories = []string{
	CategoryPolitics, CategoryFinance, CategorySocial, CategoryInternational,
	CategorySports, CategoryTech, CategoryHealth,
}

// categoryKeywords drive the rule-based fallback when the classifier is
// unavailable or answers off-list. First matching category in declaration
// order wins.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{CategoryFinance, []string{"財經", "股市", "經濟", "金融", "投資", "銀行", "finance", "economy", "貿易", "匯率"}},
	{CategoryPolitics, []string{"政治", "選舉", "政府", "總統", "立法院", "內閣", "politics", "government", "國會", "外交"}},
	{CategorySocial, []string{"社會", "治安", "犯罪", "教育", "民生", "警方", "social", "society", "事故", "交通"}},
	{CategoryInternational, []string{"國際", "美國", "日本", "全球", "歐洲", "聯合國", "international", "world", "烏克蘭", "中東"}},
	{CategorySports, []string{"體育", "球賽", "棒球", "籃球", "sports", "football", "比賽", "奧運", "球員"}},
	{CategoryTech, []string{"科技", "AI", "人工智慧", "晶片", "軟體", "technology", "tech", "網路", "半導體", "手機"}},
	{CategoryHealth, []string{"健康", "醫療", "疫苗", "疾病", "醫院", "health", "medical", "病毒", "藥物", "防疫"}},
}

// labelPrefix strips model output like "Category: Tech" down to "Tech".
var labelPrefix = regexp.MustCompile(`^.*:\s*`)

// maxSummaryRunes caps stored summaries; beyond this the model is rambling
// rather than summarizing.
const maxSummaryRunes = 500

// Enricher derives summary, entities, keywords and category for incoming
// articles. LLM calls are rate limited so bulk feed loads don't starve
// interactive queries of model capacity.
type Enricher struct {
	summarizer Summarizer
	classifier CategoryClassifier
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewEnricher creates an Enricher. summarizer and classifier may be nil, in
// which case the corresponding fallbacks apply (title as summary, keyword
// rules for category). llmRate is LLM calls per second; 0 disables limiting.
func NewEnricher(summarizer Summarizer, classifier CategoryClassifier, llmRate float64, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if llmRate > 0 {
		limit = rate.Limit(llmRate)
	}
	return &Enricher{
		summarizer: summarizer,
		classifier: classifier,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// Enrich fills the derived fields of a. Every step degrades rather than
// fails: an unreachable model yields the title as summary and rule-based
// categories, never an error.
func (e *Enricher) Enrich(ctx context.Context, a *Article) {
	analysisText := a.Title + " " + a.Content

	a.Summary = e.summarize(ctx, a.Title, a.Content)
	a.Entities = textutil.ExtractEntities(analysisText)
	a.Keywords = textutil.ExtractKeywords(analysisText)
	a.Category = e.classify(ctx, a.Title, a.Content)
}

func (e *Enricher) summarize(ctx context.Context, title, content string) string {
	if e.summarizer == nil {
		return title
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return title
	}
	summary, err := e.summarizer.Summarize(ctx, title, content)
	if err != nil {
		e.logger.Warn("summary generation failed, falling back to title", "error", err)
		return title
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return title
	}
	return textutil.TruncateRunes(summary, maxSummaryRunes)
}

func (e *Enricher) classify(ctx context.Context, title, content string) string {
	if e.classifier != nil {
		if err := e.limiter.Wait(ctx); err == nil {
			raw, err := e.classifier.ClassifyCategory(ctx, title, content)
			if err == nil {
				label := labelPrefix.ReplaceAllString(strings.TrimSpace(raw), "")
				for _, valid := range validCategories {
					if strings.Contains(strings.ToLower(label), strings.ToLower(valid)) {
						return valid
					}
				}
			} else {
				e.logger.Warn("category classification failed, using keyword rules", "error", err)
			}
		}
	}
	return classifyByKeywords(title + " " + content)
}

// classifyByKeywords is the rule-based category fallback.
func classifyByKeywords(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.words {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return entry.category
			}
		}
	}
	return CategoryGeneral
}
