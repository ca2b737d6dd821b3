package agent

import (
	"fmt"
	"strings"

	"github.com/koopa0/newsagent/internal/search"
	"github.com/koopa0/newsagent/internal/textutil"
)

var exactGreetings = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "yo": {}, "sup": {},
	"你好": {}, "您好": {}, "哈囉": {}, "嗨": {},
	"早安": {}, "午安": {}, "晚安": {},
	"thank you": {}, "thanks": {}, "謝謝": {}, "多謝": {}, "再見": {}, "bye": {},
	"who are you": {}, "what can you do": {}, "你是誰": {}, "你能做什麼": {},
	"你好嗎": {}, "how are you": {},
}

var greetingFragments = []string{"hi", "hello", "你好", "謝謝", "再見", "哈囉"}

func isGreeting(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if _, ok := exactGreetings[q]; ok {
		return true
	}
	if textutil.RuneLen(strings.TrimSpace(query)) <= 15 {
		for _, w := range greetingFragments {
			if strings.Contains(q, w) {
				return true
			}
		}
	}
	return false
}

var weatherKeywords = []string{"天氣", "天气", "氣溫", "温度", "降雨", "颱風", "台风", "weather"}

func isWeatherQuery(query string) bool {
	q := strings.ToLower(query)
	for _, k := range weatherKeywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}

// isAmbiguous reports whether the query is too short to retrieve against
// directly. Single words drift badly in vector space without more context.
func isAmbiguous(query string, zh bool) bool {
	q := strings.TrimSpace(query)
	if isGreeting(q) {
		return false
	}
	if zh {
		return textutil.RuneLen(q) <= 3
	}
	words := strings.Fields(q)
	return len(words) == 1 && len(words[0]) <= 8
}

// clarifyOptions proposes three concrete readings of a short query.
func clarifyOptions(query string, zh bool) []string {
	if !zh {
		return []string{
			fmt.Sprintf("Latest news about %s", query),
			fmt.Sprintf("Analysis/explanation of %s", query),
			fmt.Sprintf("Compare different sources on %s", query),
		}
	}
	switch {
	case strings.ContainsAny(query, "港香"):
		return []string{"香港最新新聞", "香港政治", "香港經濟"}
	case strings.ContainsAny(query, "中國国"):
		return []string{"中國政治", "中國經濟", "中國社會"}
	case strings.ContainsAny(query, "美"):
		return []string{"美國政治", "美國經濟", "美國科技"}
	default:
		return []string{query + "最新消息", query + "相關新聞", query + "深度分析"}
	}
}

// filterArticles applies the lexical guardrails that keep vector hits on
// topic. Short queries demand a literal substring match (with 馬/马 variants
// for Chinese); long Chinese queries demand overlap with extracted topic
// terms. basePrompt feeds term extraction even when q is a rewritten query.
func filterArticles(results []search.Result, q, basePrompt string, zh bool) []search.Result {
	if len(results) == 0 {
		return results
	}
	q = strings.TrimSpace(q)

	if zh && textutil.RuneLen(q) <= 4 {
		variants := textutil.HorseVariants(q)
		return keepMatching(results, func(hay string) bool {
			for _, v := range variants {
				if v != "" && strings.Contains(hay, v) {
					return true
				}
			}
			return false
		})
	}

	if !zh && len(q) <= 10 {
		ql := strings.ToLower(q)
		return keepMatching(results, func(hay string) bool {
			return strings.Contains(strings.ToLower(hay), ql)
		})
	}

	if zh && textutil.RuneLen(q) > 4 {
		terms := textutil.ExtractTerms(basePrompt)
		if len(terms) == 0 {
			return results
		}
		variants := textutil.TermVariants(terms)
		return keepMatching(results, func(hay string) bool {
			for _, v := range variants {
				if v != "" && strings.Contains(hay, v) {
					return true
				}
			}
			return false
		})
	}

	return results
}

func keepMatching(results []search.Result, match func(hay string) bool) []search.Result {
	kept := results[:0:0]
	for _, r := range results {
		hay := r.Article.Title + " " + r.Article.Summary + " " + r.Article.Content
		if match(hay) {
			kept = append(kept, r)
		}
	}
	return kept
}
