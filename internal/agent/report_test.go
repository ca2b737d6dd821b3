package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/koopa0/newsagent/internal/search"
)

func TestSourceHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://news.example.com/rss/world", "news.example.com"},
		{"http://feeds.bbci.co.uk/news/rss.xml", "feeds.bbci.co.uk"},
		{"明報", "明報"},
		{"", "Source"},
		{"   ", "Source"},
	}
	for _, tt := range tests {
		if got := sourceHost(tt.in); got != tt.want {
			t.Errorf("sourceHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPubDateShort(t *testing.T) {
	if got := pubDateShort("Mon, 24 Aug 2026 09:00:00 GMT"); got != "Mon, 24 Aug 2026" {
		t.Errorf("pubDateShort = %q", got)
	}
	if got := pubDateShort(""); got != "N/A" {
		t.Errorf("pubDateShort(empty) = %q, want N/A", got)
	}
}

func TestFactTable(t *testing.T) {
	results := []search.Result{
		result(1, "标题一", strings.Repeat("內", 250), "https://a.example.com/rss", 0.9),
		result(2, "Title two", "short body", "b.example.com", 0.8),
	}

	got := factTable(results, true)

	if !strings.Contains(got, "[1] Mon, 24 Aug 2026 | a.example.com | 标题一") {
		t.Errorf("missing first fact line:\n%s", got)
	}
	if !strings.Contains(got, "[2] ") || !strings.Contains(got, "Title two") {
		t.Errorf("missing second fact line:\n%s", got)
	}
	// Snippets are capped at 200 runes.
	if strings.Contains(got, strings.Repeat("內", 201)) {
		t.Error("content snippet not truncated")
	}
	if factTable(nil, true) != "無事實" {
		t.Errorf("empty zh table = %q", factTable(nil, true))
	}
	if factTable(nil, false) != "No facts" {
		t.Errorf("empty en table = %q", factTable(nil, false))
	}
}

func TestRenderReportZH(t *testing.T) {
	gen := &mockGenerator{fn: func(prompt string) (string, error) {
		return "### 標題\n兩則報導重點一致。", nil
	}}
	o := newTestOrchestrator(gen, &mockRetriever{})
	results := []search.Result{
		result(1, "港鐵新線通車", "新線今日正式通車。", "https://news.example.com/rss", 0.9),
		result(2, "通車首日人流", "首日人流平穩。", "明報", 0.8),
	}

	got := o.renderReport(context.Background(), "港鐵新線", results, "2026-08-29", true, "兩報導日期不符", "update")

	for _, want := range []string{
		"### ⚡ 今日快訊",
		"> 港鐵新線通車 [1]",
		"### 🔍 深度分析",
		"兩則報導重點一致。",
		"### 📋 事實清單",
		"- **Mon, 24 Aug 2026 | news.example.com**: 港鐵新線通車 [1]",
		"- **Mon, 24 Aug 2026 | 明報**: 通車首日人流 [2]",
		"### ⚖️ 差異分析",
		"兩報導日期不符",
		"### Sources",
		"[1] https://news.example.com/rss",
		"[2] 明報",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
	// Accidental model headings are stripped from the analysis.
	if strings.Contains(got, "### 標題") {
		t.Errorf("model heading leaked into report:\n%s", got)
	}
}

func TestRenderReportNoConflicts(t *testing.T) {
	gen := &mockGenerator{fn: func(prompt string) (string, error) { return "Steady.", nil }}
	o := newTestOrchestrator(gen, &mockRetriever{})
	results := []search.Result{result(1, "Title", "Body", "src", 0.9)}

	zh := o.renderReport(context.Background(), "q", results, "2026-08-29", true, "", "brief")
	if !strings.Contains(zh, "### ⚖️ 差異分析\n無。") {
		t.Errorf("zh conflicts placeholder missing:\n%s", zh)
	}
	en := o.renderReport(context.Background(), "q", results, "2026-08-29", false, "", "brief")
	if !strings.Contains(en, "### ⚖️ Conflict Analysis\nNone.") {
		t.Errorf("en conflicts placeholder missing:\n%s", en)
	}
}

func TestConstrainedAnalysisFallback(t *testing.T) {
	gen := &mockGenerator{fn: func(prompt string) (string, error) { return "", nil }}
	o := newTestOrchestrator(gen, &mockRetriever{})

	got := o.constrainedAnalysis(context.Background(), "q", "facts", "2026-08-29", true, "brief")
	if got != "基於上述事實，目前資訊有限。" {
		t.Errorf("zh fallback = %q", got)
	}
	got = o.constrainedAnalysis(context.Background(), "q", "facts", "2026-08-29", false, "brief")
	if got != "Based on the facts above, information is limited." {
		t.Errorf("en fallback = %q", got)
	}
}

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want plan
	}{
		{
			"full plan",
			"KEYWORDS: 港鐵 通車\nCATEGORY: Social\nHYDE: 港鐵新線今日通車。\nINTENT: update",
			plan{Keywords: "港鐵 通車", Category: "Social", Hyde: "港鐵新線今日通車。", Intent: "update"},
		},
		{
			"lowercase labels and category list",
			"keywords: ai rules\ncategory: tech, politics\nintent: EXPLAIN",
			plan{Keywords: "ai rules", Category: "Tech", Intent: "explain"},
		},
		{
			"missing fields default",
			"some free-form text",
			plan{Intent: "brief"},
		},
		{
			"invalid intent defaults to brief",
			"INTENT: everything",
			plan{Intent: "brief"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parsePlan(tt.in); got != tt.want {
				t.Errorf("parsePlan = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseConflicts(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CONFLICTS: None", ""},
		{"CONFLICTS: 無", ""},
		{"CONFLICTS:", ""},
		{"CONFLICTS: 來源A說週一，來源B說週二", "來源A說週一，來源B說週二"},
		{"no label at all", ""},
	}
	for _, tt := range tests {
		if got := parseConflicts(tt.in); got != tt.want {
			t.Errorf("parseConflicts(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseSuggestions(t *testing.T) {
	in := "### 追問\n1. 影響會持續多久？\n2) What happens next?\n问题3: 相關公司股價如何？\nok\n1. 影響會持續多久？"
	got := parseSuggestions(in, 3)
	want := []string{"影響會持續多久？", "What happens next?", "相關公司股價如何？"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("suggestion[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseVariations(t *testing.T) {
	got := parseVariations("1. 香港鐵路新線最新消息\n2) 港鐵新路線開通情況\nok\n第三個多餘的改寫句子", 2)
	want := []string{"香港鐵路新線最新消息", "港鐵新路線開通情況"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("parseVariations = %v, want %v", got, want)
	}
}

func TestInferIntent(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"最新進展如何", "update"},
		{"compare the two reports", "compare"},
		{"為什麼會這樣", "explain"},
		{"香港新聞摘要", "brief"},
	}
	for _, tt := range tests {
		if got := inferIntent(tt.query); got != tt.want {
			t.Errorf("inferIntent(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}
