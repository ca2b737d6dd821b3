package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/koopa0/newsagent/internal/llm"
	"github.com/koopa0/newsagent/internal/search"
	"github.com/koopa0/newsagent/internal/textutil"
)

const (
	maxReportArticles = 3
	factSnippetRunes  = 200
)

// sourceHost reduces a source URL to its host for citation lines. Plain
// names pass through unchanged.
func sourceHost(source string) string {
	s := strings.TrimSpace(source)
	if s == "" {
		return "Source"
	}
	if !strings.Contains(s, "://") {
		return s
	}
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}

func pubDateShort(pubDate string) string {
	d := strings.TrimSpace(pubDate)
	if d == "" {
		return "N/A"
	}
	return textutil.TruncateRunes(d, 16)
}

// factTable renders the evidence base for constrained analysis: one indexed
// line per article with date, source and a content snippet.
func factTable(results []search.Result, zh bool) string {
	var facts []string
	for i, r := range results {
		if i == maxReportArticles {
			break
		}
		title := r.Article.Title
		if title == "" {
			title = "(no title)"
		}
		snippet := strings.TrimSpace(textutil.TruncateRunes(r.Article.Content, factSnippetRunes))
		facts = append(facts, fmt.Sprintf("[%d] %s | %s | %s\n    %s",
			i+1, pubDateShort(r.Article.PubDate), sourceHost(r.Article.Source), title, snippet))
	}
	if len(facts) == 0 {
		if zh {
			return "無事實"
		}
		return "No facts"
	}
	return strings.Join(facts, "\n\n")
}

// stripHeadings removes accidental markdown headers the model sometimes
// prepends to the analysis.
func stripHeadings(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "###") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

var intentHintsZH = map[string]string{
	"update":  "側重最新進展與時間線。",
	"compare": "側重不同來源之間的異同。",
	"explain": "側重原因、背景與影響。",
}

var intentHintsEN = map[string]string{
	"update":  "Focus on the latest developments and timeline.",
	"compare": "Focus on agreements and differences between sources.",
	"explain": "Focus on causes, background and impact.",
}

// constrainedAnalysis asks the planner model for a short interpretation
// grounded only in the fact table, angled by the detected intent. Failures
// degrade to a stock sentence so the report always renders.
func (o *Orchestrator) constrainedAnalysis(ctx context.Context, prompt, facts, today string, zh bool, intent string) string {
	fallback := "Based on the facts above, information is limited."
	tmpl := analysisPromptEN
	hint := intentHintsEN[intent]
	if zh {
		fallback = "基於上述事實，目前資訊有限。"
		tmpl = analysisPromptZH
		hint = intentHintsZH[intent]
	}
	p := fmt.Sprintf(tmpl, today, facts, prompt)
	if hint != "" {
		p += "\n" + hint
	}
	text, err := o.llm.Generate(ctx, p,
		llm.WithPlanner(), llm.WithMaxTokens(200), llm.WithTemperature(0.3))
	if err != nil {
		o.logger.Warn("constrained analysis failed", "error", err)
		return fallback
	}
	text = stripHeadings(text)
	if text == "" {
		return fallback
	}
	return text
}

// renderReport builds the deterministic evidence-first answer: flash line,
// constrained analysis, fact list, conflict section and citations. Only the
// analysis sentence comes from the model; every fact line is copied from
// stored articles so citations can never point at invented sources.
func (o *Orchestrator) renderReport(ctx context.Context, prompt string, results []search.Result, today string, zh bool, conflicts, intent string) string {
	if len(results) > maxReportArticles {
		results = results[:maxReportArticles]
	}
	facts := factTable(results, zh)

	var analysis string
	if len(results) > 0 {
		analysis = o.constrainedAnalysis(ctx, prompt, facts, today, zh, intent)
	} else if zh {
		analysis = "資料不足，無法提供可信的新聞簡報。"
	} else {
		analysis = "Insufficient data for reliable briefing."
	}

	var b strings.Builder
	if zh {
		b.WriteString("### ⚡ 今日快訊\n")
		if len(results) > 0 && results[0].Article.Title != "" {
			fmt.Fprintf(&b, "> %s [1]\n", results[0].Article.Title)
		} else {
			fmt.Fprintf(&b, "> 關於「%s」，目前可用資料不足。\n", prompt)
		}
		b.WriteString("\n### 🔍 深度分析\n")
		b.WriteString(analysis)
		b.WriteString("\n\n### 📋 事實清單\n")
		if len(results) == 0 {
			b.WriteString("- **N/A | 系統**: 本次查詢未找到可引用的相關新聞。\n")
		} else {
			for i, r := range results {
				title := r.Article.Title
				if title == "" {
					title = "(no title)"
				}
				fmt.Fprintf(&b, "- **%s | %s**: %s [%d]\n", pubDateShort(r.Article.PubDate), sourceHost(r.Article.Source), title, i+1)
			}
		}
		b.WriteString("\n### ⚖️ 差異分析\n")
		if conflicts != "" {
			b.WriteString(conflicts + "\n")
		} else {
			b.WriteString("無。\n")
		}
	} else {
		b.WriteString("### ⚡ News Flash\n")
		if len(results) > 0 && results[0].Article.Title != "" {
			fmt.Fprintf(&b, "> %s [1]\n", results[0].Article.Title)
		} else {
			fmt.Fprintf(&b, "> Insufficient information for: %q\n", prompt)
		}
		b.WriteString("\n### 🔍 Intelligence Briefing\n")
		b.WriteString(analysis)
		b.WriteString("\n\n### 📋 Key Facts\n")
		if len(results) == 0 {
			b.WriteString("- **N/A | System**: No relevant articles found.\n")
		} else {
			for i, r := range results {
				title := r.Article.Title
				if title == "" {
					title = "(no title)"
				}
				fmt.Fprintf(&b, "- **%s | %s**: %s [%d]\n", pubDateShort(r.Article.PubDate), sourceHost(r.Article.Source), title, i+1)
			}
		}
		b.WriteString("\n### ⚖️ Conflict Analysis\n")
		if conflicts != "" {
			b.WriteString(conflicts + "\n")
		} else {
			b.WriteString("None.\n")
		}
	}

	b.WriteString("\n### Sources\n")
	for i, r := range results {
		s := r.Article.Source
		if s == "" {
			s = "N/A"
		}
		fmt.Fprintf(&b, "[%d] %s\n", i+1, s)
	}
	return strings.TrimSpace(b.String())
}
