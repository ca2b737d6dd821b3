package textutil

import "strings"

// glueWords are the connective fragments and punctuation stripped before
// span extraction. Splitting on them keeps a long question from being
// treated as one opaque term. Order matters: multi-character phrases are
// replaced before their single-character substrings.
var glueWords = []string{
	"關於", "关于", "的", "有什麼", "有什么", "進展", "进展", "嗎", "么",
	"？", "?", "！", "!", "，", ",", "。", ".", "：", ":",
}

// termStopwords are meta-words about news itself, useless as topic terms.
var termStopwords = map[string]struct{}{
	"今天": {}, "目前": {}, "最新": {}, "新聞": {}, "新闻": {},
	"請問": {}, "请问": {}, "問題": {}, "问题": {}, "報導": {}, "报道": {},
	"事件": {}, "情況": {}, "情况": {},
}

// maxTerms caps the extracted term list; beyond this the filter's recall
// gains nothing and matching cost grows.
const maxTerms = 8

// ExtractTerms pulls topic terms out of a Chinese query for relevance
// filtering. Long queries drift topically under pure vector search; matching
// these terms against article text anchors results to what was asked.
//
// The heuristic splits on glue words, keeps spans of 2 to 8 characters, and
// adds head/tail sub-phrases so compound spans like 內蒙古校服 also yield
// 內蒙古 and 校服-adjacent fragments. Results are unique, in first-seen
// order, capped at maxTerms.
func ExtractTerms(text string) []string {
	s := text
	for _, glue := range glueWords {
		s = strings.ReplaceAll(s, glue, "|")
	}

	var parts []string
	for _, p := range strings.Split(s, "|") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	var candidates []string
	for _, p := range parts {
		if _, stop := termStopwords[p]; stop {
			continue
		}
		runes := []rune(p)
		n := len(runes)
		if n >= 2 && n <= 8 {
			candidates = append(candidates, p)
		}
		if n >= 4 {
			candidates = append(candidates, string(runes[:4]), string(runes[n-4:]))
		}
		if n >= 3 {
			candidates = append(candidates, string(runes[:3]), string(runes[n-3:]))
		}
		if n >= 2 {
			candidates = append(candidates, string(runes[:2]), string(runes[n-2:]))
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, maxTerms)
	for _, t := range candidates {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, stop := termStopwords[t]; stop {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxTerms {
			break
		}
	}
	return out
}

// TermVariants expands topic terms with their Simplified forms and, for terms
// of three or more characters, their two-character prefixes. Any variant
// matching article text counts as topical overlap.
func TermVariants(terms []string) []string {
	set := make(map[string]struct{})
	ordered := make([]string, 0, len(terms)*4)
	add := func(v string) {
		if v == "" {
			return
		}
		if _, ok := set[v]; ok {
			return
		}
		set[v] = struct{}{}
		ordered = append(ordered, v)
	}

	for _, t := range terms {
		add(t)
		add(Simplify(t))
		if RuneLen(t) >= 3 {
			add(TruncateRunes(t, 2))
			add(TruncateRunes(Simplify(t), 2))
		}
	}
	return ordered
}
