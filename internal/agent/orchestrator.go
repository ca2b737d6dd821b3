// Package agent orchestrates one question/answer turn: cheap gates first
// (greeting, out-of-scope, ambiguity), then budgeted retrieval that only
// escalates to the planner when the fast path comes back weak, and finally a
// deterministic evidence-first report so cited facts always come from stored
// articles.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/koopa0/newsagent/internal/llm"
	"github.com/koopa0/newsagent/internal/rpc"
	"github.com/koopa0/newsagent/internal/search"
	"github.com/koopa0/newsagent/internal/textutil"
)

// Generator produces text from a prompt. Satisfied by *llm.Client.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...llm.GenOption) (string, error)
}

// Retriever runs the retrieval pipeline. Satisfied by *search.Searcher.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...search.Option) ([]search.Result, error)
}

// Config tunes the orchestration thresholds.
type Config struct {
	Model          string  // reported in responses
	FastAccept     float64 // fast-path similarity needed to skip the planner
	RelevanceFloor float64 // below this the evidence is wiped entirely
	ReflectMin     float64 // minimum similarity before fact-checking runs
	MultiQuery     bool    // rewrite the planner query into variations
}

const (
	defaultFastAccept     = 0.62
	defaultRelevanceFloor = 0.45
	defaultReflectMin     = 0.60

	historyWindow  = 4
	ambiguousProbe = 0.60
	contextSnippet = 600
)

// Orchestrator answers requests from the queue. It implements rpc.Handler.
type Orchestrator struct {
	llm      Generator
	searcher Retriever
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Orchestrator. Zero thresholds take their defaults.
func New(gen Generator, searcher Retriever, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FastAccept == 0 {
		cfg.FastAccept = defaultFastAccept
	}
	if cfg.RelevanceFloor == 0 {
		cfg.RelevanceFloor = defaultRelevanceFloor
	}
	if cfg.ReflectMin == 0 {
		cfg.ReflectMin = defaultReflectMin
	}
	return &Orchestrator{
		llm:      gen,
		searcher: searcher,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// turn carries the mutable state of one request through the pipeline stages.
type turn struct {
	req      rpc.Request
	prompt   string
	zh       bool
	today    string
	history  string
	timings  map[string]float64
	tools    []string
	ragUsed  bool
	articles []search.Result
	context  string
	bestSim  float64
	haveSim  bool
	intent   string
	conflict string

	text        string // final answer once a stage produces it
	finalPrompt string // prompt handed back for client-side streaming
	clarify     bool
}

// Handle runs the full pipeline for one request.
func (o *Orchestrator) Handle(ctx context.Context, req rpc.Request) rpc.Response {
	start := o.now()
	t := &turn{
		req:         req,
		prompt:      strings.TrimSpace(req.Prompt),
		zh:          textutil.IsCJK(req.Prompt),
		today:       o.now().Format("2006-01-02"),
		timings:     make(map[string]float64),
		ragUsed:     true,
		intent:      "brief",
		finalPrompt: strings.TrimSpace(req.Prompt),
	}
	t.history = formatHistory(req.RecentHistory(historyWindow))

	o.logger.Info("request start", "request_id", req.RequestID, "prompt", textutil.TruncateRunes(t.prompt, 50))

	switch {
	case isGreeting(t.prompt):
		t.ragUsed = false
		t.tools = append(t.tools, "greeting_filter")
		if t.zh {
			t.text = greetingReplyZH
		} else {
			t.text = greetingReplyEN
		}
	case isWeatherQuery(t.prompt):
		t.ragUsed = false
		t.tools = append(t.tools, "router_weather_out_of_scope")
		if t.zh {
			t.text = weatherReplyZH
		} else {
			t.text = weatherReplyEN
		}
	}

	if t.ragUsed && isAmbiguous(t.prompt, t.zh) {
		o.resolveAmbiguity(ctx, t)
	}

	if t.ragUsed && !t.clarify {
		o.retrieve(ctx, t)
	}

	genStart := o.now()
	if t.text == "" {
		if req.StreamMode {
			t.text = rpc.StreamingSentinel
		} else {
			text, err := o.llm.Generate(ctx, t.finalPrompt,
				llm.WithMaxTokens(req.MaxTokens), llm.WithTemperature(temperature(req)))
			if err != nil {
				o.logger.Error("generation failed", "request_id", req.RequestID, "error", err)
				return rpc.ErrorResponse(req.RequestID, err)
			}
			t.text = text
		}
	}

	suggestions := o.suggest(ctx, t)

	if t.text != rpc.StreamingSentinel {
		t.timings["generation"] = round2(o.now().Sub(genStart).Seconds())
	}
	t.timings["total"] = round2(o.now().Sub(start).Seconds())

	resp := rpc.Response{
		RequestID:     req.RequestID,
		Response:      t.text,
		Suggestions:   suggestions,
		Model:         o.cfg.Model,
		Status:        rpc.StatusSuccess,
		RAGUsed:       t.ragUsed,
		ArticlesFound: len(t.articles),
		ToolsUsed:     t.tools,
		Timings:       t.timings,
	}
	if req.StreamMode {
		resp.FinalPrompt = t.finalPrompt
	}
	return resp
}

// resolveAmbiguity probes the index for a short query and either lets it
// through on a strong match or answers with clarifying options instead.
func (o *Orchestrator) resolveAmbiguity(ctx context.Context, t *turn) {
	probe, err := o.searcher.Search(ctx, t.prompt, search.WithTopK(2))
	if err != nil {
		o.logger.Warn("ambiguity probe failed", "error", err)
		probe = nil
	}
	if t.zh && textutil.RuneLen(t.prompt) <= 4 {
		probe = filterArticles(probe, t.prompt, t.prompt, t.zh)
	}
	if len(probe) > 0 && probe[0].Similarity >= ambiguousProbe {
		o.logger.Info("ambiguous query matched strongly, proceeding", "score", probe[0].Similarity)
		return
	}

	t.clarify = true
	t.ragUsed = false
	t.tools = append(t.tools, "clarify_ambiguous")
	opts := clarifyOptions(t.prompt, t.zh)
	if t.zh {
		t.text = fmt.Sprintf(clarifyPromptZH, t.prompt, opts[0], opts[1], opts[2])
	} else {
		t.text = fmt.Sprintf("Your query '%s' is quite brief. Could you clarify:\n1. **%s**\n2. **%s**\n3. **%s**\n4. **Other** (please specify)",
			t.prompt, opts[0], opts[1], opts[2])
	}
}

// retrieve runs fast-path retrieval, escalates to the planner when weak,
// optionally fact-checks, and renders the report or the no-info answer.
func (o *Orchestrator) retrieve(ctx context.Context, t *turn) {
	searchStart := o.now()

	directQuery := t.prompt
	if t.zh && textutil.RuneLen(t.prompt) > 4 {
		if terms := textutil.ExtractTerms(t.prompt); len(terms) > 0 {
			directQuery = strings.Join(terms, " ")
		}
	}
	t.tools = append(t.tools, "RAG_fast")
	arts, err := o.searcher.Search(ctx, directQuery, search.WithTopK(3))
	if err != nil {
		o.logger.Warn("fast-path search failed", "error", err)
	}
	arts = filterArticles(arts, t.prompt, t.prompt, t.zh)
	t.addEvidence(arts)
	t.timings["search_fast"] = round2(o.now().Sub(searchStart).Seconds())

	if t.haveSim && t.bestSim >= o.cfg.FastAccept && len(t.articles) > 0 {
		t.tools = append(t.tools, "fast_path_accept")
		t.intent = inferIntent(t.prompt)
	} else {
		o.planAndRetry(ctx, t)
	}

	o.reflect(ctx, t)
	t.timings["search"] = round2(o.now().Sub(searchStart).Seconds())

	// Relevance gate: a weak best match means we know nothing useful, and a
	// half-relevant context is worse than none because the model will cite it.
	if len(t.articles) == 0 || t.bestSim < o.cfg.RelevanceFloor {
		o.logger.Info("no relevant news", "prompt", textutil.TruncateRunes(t.prompt, 50), "best", t.bestSim)
		t.articles = nil
		t.context = ""
		t.bestSim = 0
		if t.zh {
			t.finalPrompt = fmt.Sprintf(noInfoReportZH, t.prompt)
		} else {
			t.finalPrompt = fmt.Sprintf(noInfoPromptEN, t.today, t.prompt)
		}
		return
	}

	t.text = o.renderReport(ctx, t.prompt, t.articles, t.today, t.zh, t.conflict, t.intent)
	t.tools = append(t.tools, "template_report")
	t.finalPrompt = ""
}

// planAndRetry asks the planner for keywords, category, a HyDE sentence and
// intent, then retries retrieval with the rewritten query.
func (o *Orchestrator) planAndRetry(ctx context.Context, t *turn) {
	planStart := o.now()
	tmpl := plannerPromptEN
	if t.zh {
		tmpl = plannerPromptZH
	}
	searchQuery := t.prompt
	category := ""
	hyde := ""

	planText, err := o.llm.Generate(ctx, fmt.Sprintf(tmpl, t.today, t.history, t.prompt),
		llm.WithPlanner(), llm.WithMaxTokens(150), llm.WithTemperature(0))
	if err != nil {
		o.logger.Warn("planning failed", "error", err)
	} else {
		t.tools = append(t.tools, "planner")
		p := parsePlan(planText)
		if p.Keywords != "" {
			searchQuery = p.Keywords
		}
		if p.Category != "" && !strings.EqualFold(p.Category, "all") {
			category = p.Category
		}
		hyde = p.Hyde
		t.intent = p.Intent
	}
	t.timings["planning"] = round2(o.now().Sub(planStart).Seconds())

	retryStart := o.now()
	retryQuery := searchQuery
	if hyde != "" {
		retryQuery = searchQuery + " " + hyde
		t.tools = append(t.tools, "hyde")
	}

	var retried []search.Result
	if o.cfg.MultiQuery && textutil.RuneLen(strings.TrimSpace(searchQuery)) > 4 {
		queries := o.queryVariations(ctx, searchQuery, t.zh)
		if retryQuery != searchQuery {
			queries = append([]string{retryQuery}, queries...)
		}
		retried = o.multiSearch(ctx, queries, category)
	} else {
		retried, err = o.searcher.Search(ctx, retryQuery, search.WithTopK(3), search.WithCategory(category))
		if err != nil {
			o.logger.Warn("retry search failed", "error", err)
		}
	}
	retried = filterArticles(retried, searchQuery, t.prompt, t.zh)

	if len(retried) > 0 {
		t.articles = nil
		t.context = ""
		t.bestSim = 0
		t.haveSim = false
		t.addEvidence(retried)
	}
	t.timings["search_retry"] = round2(o.now().Sub(retryStart).Seconds())
}

// queryVariations rewrites the query into up to two alternative phrasings,
// keeping the original first.
func (o *Orchestrator) queryVariations(ctx context.Context, query string, zh bool) []string {
	tmpl := variationsPromptEN
	if zh {
		tmpl = variationsPromptZH
	}
	text, err := o.llm.Generate(ctx, fmt.Sprintf(tmpl, query),
		llm.WithPlanner(), llm.WithMaxTokens(60), llm.WithTemperature(0.3))
	if err != nil {
		o.logger.Warn("query variation failed", "error", err)
		return []string{query}
	}
	return append([]string{query}, parseVariations(text, 2)...)
}

// multiSearch fans the query variations out, dedupes hits by article keeping
// the best score, and returns the top three overall.
func (o *Orchestrator) multiSearch(ctx context.Context, queries []string, category string) []search.Result {
	if len(queries) > 3 {
		queries = queries[:3]
	}
	best := make(map[int64]search.Result)
	for _, q := range queries {
		arts, err := o.searcher.Search(ctx, q, search.WithTopK(2), search.WithCategory(category))
		if err != nil {
			o.logger.Warn("multi-query search failed", "query", q, "error", err)
			continue
		}
		for _, a := range arts {
			if prev, ok := best[a.Article.ID]; !ok || a.Similarity > prev.Similarity {
				best[a.Article.ID] = a
			}
		}
	}
	merged := make([]search.Result, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	sortBySimilarity(merged)
	if len(merged) > 3 {
		merged = merged[:3]
	}
	return merged
}

// reflect fact-checks strong multi-source evidence and records any conflict
// the checker reports.
func (o *Orchestrator) reflect(ctx context.Context, t *turn) {
	if len(t.articles) == 0 || t.bestSim < o.cfg.ReflectMin {
		return
	}
	sources := make(map[string]struct{})
	for _, r := range t.articles {
		if r.Article.Source != "" {
			sources[r.Article.Source] = struct{}{}
		}
	}
	if len(sources) < 2 {
		return
	}

	reflectStart := o.now()
	tmpl := reflectionPromptEN
	if t.zh {
		tmpl = reflectionPromptZH
	}
	text, err := o.llm.Generate(ctx, fmt.Sprintf(tmpl, t.today, t.prompt, t.context),
		llm.WithPlanner(), llm.WithMaxTokens(150), llm.WithTemperature(0))
	if err != nil {
		o.logger.Warn("reflection failed", "error", err)
		return
	}
	t.tools = append(t.tools, "reflection")
	t.timings["reflection"] = round2(o.now().Sub(reflectStart).Seconds())

	t.conflict = parseConflicts(text)
	if t.conflict != "" {
		t.tools = append(t.tools, "conflict_detected")
	}
}

// suggest proposes follow-up questions when the answer was grounded in
// articles. Failures only cost the suggestions.
func (o *Orchestrator) suggest(ctx context.Context, t *turn) []string {
	if !t.ragUsed || len(t.articles) == 0 || t.context == "" || t.text == rpc.StreamingSentinel {
		return nil
	}
	tmpl := followupPromptEN
	if t.zh {
		tmpl = followupPromptZH
	}
	text, err := o.llm.Generate(ctx,
		fmt.Sprintf(tmpl, textutil.TruncateRunes(t.text, 300), textutil.TruncateRunes(t.context, 500)),
		llm.WithPlanner(), llm.WithMaxTokens(150), llm.WithTemperature(0.7))
	if err != nil {
		o.logger.Warn("suggestion generation failed", "error", err)
		return nil
	}
	return parseSuggestions(text, 3)
}

// addEvidence appends results to the working set and extends the context
// block handed to reflection and streaming clients.
func (t *turn) addEvidence(results []search.Result) {
	var b strings.Builder
	b.WriteString(t.context)
	for _, r := range results {
		if !t.haveSim || r.Similarity > t.bestSim {
			t.bestSim = r.Similarity
			t.haveSim = true
		}
		fmt.Fprintf(&b, "【來源】: %s (日期: %s)\n", r.Article.Source, r.Article.PubDate)
		fmt.Fprintf(&b, "【分類】: %s | 【標題】: %s\n", r.Article.Category, r.Article.Title)
		fmt.Fprintf(&b, "【詳細內容】: %s\n", textutil.TruncateRunes(r.Article.Content, contextSnippet))
		b.WriteString("-----------------------------------\n")
	}
	t.context = b.String()
	t.articles = append(t.articles, results...)
}

func formatHistory(history []rpc.HistoryMessage) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("近期對話上下文：\n")
	for _, m := range history {
		role := "助手"
		if m.Role == "user" {
			role = "用戶"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	b.WriteString("---\n")
	return b.String()
}

func temperature(req rpc.Request) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return rpc.DefaultTemperature
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sortBySimilarity(results []search.Result) {
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
}
