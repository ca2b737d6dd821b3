package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/koopa0/newsagent/internal/article"
	"github.com/koopa0/newsagent/internal/llm"
	"github.com/koopa0/newsagent/internal/log"
	"github.com/koopa0/newsagent/internal/rpc"
	"github.com/koopa0/newsagent/internal/search"
)

type mockGenerator struct {
	fn      func(prompt string) (string, error)
	prompts []string
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, opts ...llm.GenOption) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.fn == nil {
		return "ok", nil
	}
	return m.fn(prompt)
}

type mockRetriever struct {
	fn      func(query string) ([]search.Result, error)
	queries []string
}

func (m *mockRetriever) Search(ctx context.Context, query string, opts ...search.Option) ([]search.Result, error) {
	m.queries = append(m.queries, query)
	if m.fn == nil {
		return nil, nil
	}
	return m.fn(query)
}

func newTestOrchestrator(gen *mockGenerator, ret *mockRetriever) *Orchestrator {
	return New(gen, ret, Config{Model: "test-model"}, log.NewNop())
}

func result(id int64, title, content, source string, sim float64) search.Result {
	return search.Result{
		Article: article.Article{
			ID:      id,
			Title:   title,
			Content: content,
			Source:  source,
			PubDate: "Mon, 24 Aug 2026 09:00:00 GMT",
		},
		Similarity: sim,
	}
}

func hasTool(resp rpc.Response, tool string) bool {
	for _, t := range resp.ToolsUsed {
		if t == tool {
			return true
		}
	}
	return false
}

func TestHandleGreeting(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"你好", greetingReplyZH},
		{"hello", greetingReplyEN},
		{"  thanks  ", greetingReplyEN},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			gen := &mockGenerator{}
			ret := &mockRetriever{}
			o := newTestOrchestrator(gen, ret)

			resp := o.Handle(context.Background(), rpc.Request{RequestID: "r1", Prompt: tt.prompt})

			if resp.Response != tt.want {
				t.Errorf("response = %q, want %q", resp.Response, tt.want)
			}
			if resp.RAGUsed {
				t.Error("RAGUsed = true for greeting")
			}
			if !hasTool(resp, "greeting_filter") {
				t.Errorf("tools = %v, want greeting_filter", resp.ToolsUsed)
			}
			if len(ret.queries) != 0 {
				t.Errorf("searched %v for a greeting", ret.queries)
			}
			if len(gen.prompts) != 0 {
				t.Errorf("generated %d prompts for a greeting", len(gen.prompts))
			}
		})
	}
}

func TestHandleWeatherOutOfScope(t *testing.T) {
	o := newTestOrchestrator(&mockGenerator{}, &mockRetriever{})

	resp := o.Handle(context.Background(), rpc.Request{RequestID: "r1", Prompt: "香港明天天氣如何"})

	if resp.RAGUsed {
		t.Error("RAGUsed = true for weather query")
	}
	if !hasTool(resp, "router_weather_out_of_scope") {
		t.Errorf("tools = %v, want router_weather_out_of_scope", resp.ToolsUsed)
	}
	if !strings.Contains(resp.Response, "天氣") {
		t.Errorf("response does not mention weather: %q", resp.Response)
	}

	resp = o.Handle(context.Background(), rpc.Request{RequestID: "r2", Prompt: "What is the weather in Hong Kong tomorrow"})

	if resp.RAGUsed {
		t.Error("RAGUsed = true for English weather query")
	}
	if !strings.Contains(resp.Response, "weather") {
		t.Errorf("response does not mention weather: %q", resp.Response)
	}
}

func TestHandleAmbiguousAsksClarification(t *testing.T) {
	ret := &mockRetriever{fn: func(query string) ([]search.Result, error) {
		return []search.Result{result(1, "無關文章", "內容", "src", 0.30)}, nil
	}}
	o := newTestOrchestrator(&mockGenerator{}, ret)

	resp := o.Handle(context.Background(), rpc.Request{RequestID: "r1", Prompt: "馬"})

	if resp.RAGUsed {
		t.Error("RAGUsed = true for clarified query")
	}
	if !hasTool(resp, "clarify_ambiguous") {
		t.Errorf("tools = %v, want clarify_ambiguous", resp.ToolsUsed)
	}
	if resp.ArticlesFound != 0 {
		t.Errorf("ArticlesFound = %d, want 0", resp.ArticlesFound)
	}
	for _, opt := range []string{"馬最新消息", "馬相關新聞", "馬深度分析"} {
		if !strings.Contains(resp.Response, opt) {
			t.Errorf("clarification missing option %q:\n%s", opt, resp.Response)
		}
	}
}

func TestHandleAmbiguousStrongMatchProceeds(t *testing.T) {
	// The probe and the fast path both return an article that literally
	// contains the query, so the short query escapes clarification.
	ret := &mockRetriever{fn: func(query string) ([]search.Result, error) {
		return []search.Result{result(1, "馬拉松賽事落幕", "馬拉松選手奪冠", "https://news.example.com/rss", 0.85)}, nil
	}}
	gen := &mockGenerator{fn: func(prompt string) (string, error) { return "分析句。", nil }}
	o := newTestOrchestrator(gen, ret)

	resp := o.Handle(context.Background(), rpc.Request{RequestID: "r1", Prompt: "馬"})

	if !resp.RAGUsed {
		t.Error("RAGUsed = false")
	}
	if hasTool(resp, "clarify_ambiguous") {
		t.Error("clarified despite strong probe match")
	}
	if !hasTool(resp, "RAG_fast") || !hasTool(resp, "fast_path_accept") {
		t.Errorf("tools = %v, want RAG_fast and fast_path_accept", resp.ToolsUsed)
	}
	if !hasTool(resp, "template_report") {
		t.Errorf("tools = %v, want template_report", resp.ToolsUsed)
	}
	if !strings.Contains(resp.Response, "### ⚡ 今日快訊") {
		t.Errorf("missing report header:\n%s", resp.Response)
	}
}

func TestHandleFastPathAccept(t *testing.T) {
	ret := &mockRetriever{fn: func(query string) ([]search.Result, error) {
		return []search.Result{
			result(1, "AI regulation passes", "Lawmakers approved new AI regulation rules today.", "https://news.example.com/feed", 0.81),
		}, nil
	}}
	gen := &mockGenerator{fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "follow-up") {
			return "1. What are the penalties?\nno", nil
		}
		return "The rules take effect soon.", nil
	}}
	o := newTestOrchestrator(gen, ret)

	resp := o.Handle(context.Background(), rpc.Request{
		RequestID: "r1",
		Prompt:    "latest developments in artificial intelligence regulation",
	})

	if resp.Status != rpc.StatusSuccess {
		t.Fatalf("status = %q", resp.Status)
	}
	if !hasTool(resp, "fast_path_accept") || hasTool(resp, "planner") {
		t.Errorf("tools = %v, want fast path without planner", resp.ToolsUsed)
	}
	if resp.ArticlesFound != 1 {
		t.Errorf("ArticlesFound = %d, want 1", resp.ArticlesFound)
	}
	for _, section := range []string{"### ⚡ News Flash", "### 🔍 Intelligence Briefing", "### 📋 Key Facts", "### ⚖️ Conflict Analysis", "### Sources"} {
		if !strings.Contains(resp.Response, section) {
			t.Errorf("missing section %q:\n%s", section, resp.Response)
		}
	}
	if !strings.Contains(resp.Response, "> AI regulation passes [1]") {
		t.Errorf("missing flash line:\n%s", resp.Response)
	}
	if !strings.Contains(resp.Response, "[1] https://news.example.com/feed") {
		t.Errorf("missing source citation:\n%s", resp.Response)
	}
	if len(resp.Suggestions) != 1 || resp.Suggestions[0] != "What are the penalties?" {
		t.Errorf("suggestions = %v", resp.Suggestions)
	}
	for _, key := range []string{"search_fast", "search", "generation", "total"} {
		if _, ok := resp.Timings[key]; !ok {
			t.Errorf("timings missing %q: %v", key, resp.Timings)
		}
	}
}

func TestHandleRelevanceGateWipesWeakEvidence(t *testing.T) {
	ret := &mockRetriever{fn: func(query string) ([]search.Result, error) {
		return []search.Result{
			result(1, "Unrelated quantum computing story", "A quantum computing policy update.", "src", 0.30),
		}, nil
	}}
	gen := &mockGenerator{fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "KEYWORDS") || strings.Contains(prompt, "retrieval planner") {
			return "KEYWORDS: quantum computing policy\nCATEGORY: Tech\nHYDE:\nINTENT: brief", nil
		}
		return "Sorry, I don't have data on this topic yet.", nil
	}}
	o := newTestOrchestrator(gen, ret)

	resp := o.Handle(context.Background(), rpc.Request{
		RequestID: "r1",
		Prompt:    "what is the latest on quantum computing policy",
	})

	if !resp.RAGUsed {
		t.Error("RAGUsed = false, want true even when nothing relevant was found")
	}
	if resp.ArticlesFound != 0 {
		t.Errorf("ArticlesFound = %d, want 0 after the relevance gate", resp.ArticlesFound)
	}
	if hasTool(resp, "template_report") {
		t.Errorf("tools = %v, template_report must not fire without evidence", resp.ToolsUsed)
	}
	if !hasTool(resp, "planner") {
		t.Errorf("tools = %v, want planner after weak fast path", resp.ToolsUsed)
	}
	if resp.Response != "Sorry, I don't have data on this topic yet." {
		t.Errorf("response = %q", resp.Response)
	}
}

func TestHandleStreamingReturnsSentinel(t *testing.T) {
	ret := &mockRetriever{} // nothing in the index
	gen := &mockGenerator{fn: func(prompt string) (string, error) {
		return "KEYWORDS: quantum\nCATEGORY: ALL\nINTENT: brief", nil
	}}
	o := newTestOrchestrator(gen, ret)

	resp := o.Handle(context.Background(), rpc.Request{
		RequestID:  "r1",
		Prompt:     "what happened with the quantum computing breakthrough",
		StreamMode: true,
	})

	if resp.Response != rpc.StreamingSentinel {
		t.Errorf("response = %q, want sentinel", resp.Response)
	}
	if !strings.Contains(resp.FinalPrompt, "no relevant news was found") {
		t.Errorf("final prompt = %q", resp.FinalPrompt)
	}
	if len(resp.Suggestions) != 0 {
		t.Errorf("suggestions = %v, want none while streaming", resp.Suggestions)
	}
	if _, ok := resp.Timings["generation"]; ok {
		t.Error("generation timing recorded for a streamed response")
	}
}

func TestHandleGenerationError(t *testing.T) {
	gen := &mockGenerator{fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "planner") || strings.Contains(prompt, "規劃器") {
			return "KEYWORDS: x", nil
		}
		return "", errors.New("model offline")
	}}
	o := newTestOrchestrator(gen, &mockRetriever{})

	resp := o.Handle(context.Background(), rpc.Request{
		RequestID: "r1",
		Prompt:    "tell me about the situation in the semiconductor industry",
	})

	if resp.Status != rpc.StatusError {
		t.Fatalf("status = %q, want error", resp.Status)
	}
	if resp.RequestID != "r1" {
		t.Errorf("request id = %q", resp.RequestID)
	}
}

func TestHandleLexicalGuardrailDropsDriftedHits(t *testing.T) {
	// Vector search drifts "馬拉松" to a Maresca football story. The literal
	// guardrail must drop it, leaving the no-info answer.
	ret := &mockRetriever{fn: func(query string) ([]search.Result, error) {
		return []search.Result{
			result(1, "Maresca praises squad", "Enzo Maresca spoke after the match.", "src", 0.88),
		}, nil
	}}
	gen := &mockGenerator{fn: func(prompt string) (string, error) {
		return "資料庫沒有相關報導。", nil
	}}
	o := newTestOrchestrator(gen, ret)

	resp := o.Handle(context.Background(), rpc.Request{RequestID: "r1", Prompt: "馬拉松比賽"})

	if resp.ArticlesFound != 0 {
		t.Errorf("ArticlesFound = %d, want 0 after guardrail", resp.ArticlesFound)
	}
	if hasTool(resp, "fast_path_accept") {
		t.Errorf("tools = %v, fast path must not accept filtered-out hits", resp.ToolsUsed)
	}
}

func TestMultiSearchDedupesByArticle(t *testing.T) {
	calls := 0
	ret := &mockRetriever{fn: func(query string) ([]search.Result, error) {
		calls++
		switch calls {
		case 1:
			return []search.Result{result(1, "a", "x", "s1", 0.5), result(2, "b", "x", "s2", 0.7)}, nil
		default:
			return []search.Result{result(1, "a", "x", "s1", 0.9), result(3, "c", "x", "s3", 0.6)}, nil
		}
	}}
	o := newTestOrchestrator(&mockGenerator{}, ret)

	merged := o.multiSearch(context.Background(), []string{"q1", "q2"}, "")

	if len(merged) != 3 {
		t.Fatalf("len = %d, want 3", len(merged))
	}
	if merged[0].Article.ID != 1 || merged[0].Similarity != 0.9 {
		t.Errorf("best = id %d sim %v, want id 1 with the higher 0.9", merged[0].Article.ID, merged[0].Similarity)
	}
}

func TestFilterArticles(t *testing.T) {
	horse := result(1, "馬拉松開跑", "選手雲集", "s", 0.9)
	simplified := result(2, "马拉松纪录", "新纪录诞生", "s", 0.8)
	drift := result(3, "Maresca interview", "football talk", "s", 0.85)

	tests := []struct {
		name   string
		query  string
		prompt string
		zh     bool
		in     []search.Result
		want   []int64
	}{
		{"short zh literal", "馬拉松", "馬拉松", true, []search.Result{horse, drift}, []int64{1}},
		{"short zh horse variant", "馬拉松", "馬拉松", true, []search.Result{simplified}, []int64{2}},
		{"short en substring", "tesla", "tesla", false, []search.Result{result(4, "Tesla earnings", "", "s", 0.9), drift}, []int64{4}},
		{"long zh term overlap", "請問馬拉松比賽有什麼進展", "請問馬拉松比賽有什麼進展", true, []search.Result{horse, drift}, []int64{1}},
		{"long en passthrough", "a very long english query here", "a very long english query here", false, []search.Result{drift}, []int64{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterArticles(tt.in, tt.query, tt.prompt, tt.zh)
			if len(got) != len(tt.want) {
				t.Fatalf("kept %d articles, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].Article.ID != id {
					t.Errorf("kept[%d] = id %d, want %d", i, got[i].Article.ID, id)
				}
			}
		})
	}
}

func TestIsGreeting(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"你好", true},
		{"HELLO", true},
		{"hello there", true}, // short query containing a greeting word
		{"你好，請問今天香港有什麼重要新聞嗎？", false},
		{"最新科技新聞", false},
		{"bye", true},
	}
	for _, tt := range tests {
		if got := isGreeting(tt.query); got != tt.want {
			t.Errorf("isGreeting(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestFormatHistory(t *testing.T) {
	got := formatHistory([]rpc.HistoryMessage{
		{Role: "user", Content: "香港新聞"},
		{Role: "assistant", Content: "以下是摘要"},
	})
	want := "近期對話上下文：\n用戶: 香港新聞\n助手: 以下是摘要\n---\n"
	if got != want {
		t.Errorf("formatHistory = %q, want %q", got, want)
	}
	if formatHistory(nil) != "" {
		t.Error("empty history must produce no block")
	}
}
