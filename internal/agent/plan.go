package agent

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/koopa0/newsagent/internal/textutil"
)

// plan is the parsed output of the planner call.
type plan struct {
	Keywords string
	Category string // normalized, empty when unrestricted
	Hyde     string
	Intent   string
}

var (
	suggestionPrefixRe = regexp.MustCompile(`^(?:### |# |问题\d+[:： ]*|\d+[.) ]+)`)
	numberingRe        = regexp.MustCompile(`^\d+[.) ]+`)
)

var validIntents = map[string]struct{}{
	"brief": {}, "update": {}, "compare": {}, "explain": {},
}

// cutLabel splits a "LABEL: value" line. Lines without a colon are not part
// of the contract and are skipped by callers.
func cutLabel(line string) (label, value string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", false
	}
	return strings.ToLower(strings.TrimSpace(line[:i])), strings.TrimSpace(line[i+1:]), true
}

// parsePlan reads the planner's labeled-line contract. The first occurrence
// of each label wins; a missing or empty field keeps its zero value and the
// caller falls back to the raw prompt, no category filter and brief intent.
func parsePlan(text string) plan {
	p := plan{Intent: "brief"}
	for _, line := range strings.Split(text, "\n") {
		label, value, ok := cutLabel(strings.TrimSpace(line))
		if !ok || value == "" {
			continue
		}
		switch label {
		case "keywords":
			if p.Keywords == "" {
				p.Keywords = value
			}
		case "category":
			if p.Category != "" {
				continue
			}
			if i := strings.IndexByte(value, ','); i >= 0 {
				value = value[:i]
			}
			value = capitalize(strings.TrimSpace(value))
			if !strings.EqualFold(value, "all") {
				p.Category = value
			}
		case "hyde":
			if p.Hyde == "" {
				p.Hyde = value
			}
		case "intent":
			intent := strings.ToLower(value)
			if _, valid := validIntents[intent]; valid {
				p.Intent = intent
			}
		}
	}
	return p
}

// parseConflicts reads the CONFLICTS line of the fact-checker reply.
// Returns "" when the checker reported none.
func parseConflicts(text string) string {
	for _, line := range strings.Split(text, "\n") {
		label, value, ok := cutLabel(strings.TrimSpace(line))
		if !ok || label != "conflicts" {
			continue
		}
		switch strings.ToLower(value) {
		case "", "none", "無":
			return ""
		}
		return value
	}
	return ""
}

// parseSuggestions turns the follow-up reply into at most max clean
// suggestions, stripping list markers and dropping fragments.
func parseSuggestions(text string, max int) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(suggestionPrefixRe.ReplaceAllString(strings.TrimSpace(line), ""))
		if line == "" {
			continue
		}
		if !strings.HasSuffix(line, "？") && !strings.HasSuffix(line, "?") && textutil.RuneLen(line) <= 5 {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
		if len(out) == max {
			break
		}
	}
	return out
}

// parseVariations keeps the usable rewrites from the multi-query reply.
func parseVariations(text string, max int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(numberingRe.ReplaceAllString(strings.TrimSpace(line), ""))
		if textutil.RuneLen(line) > 5 {
			out = append(out, line)
		}
		if len(out) == max {
			break
		}
	}
	return out
}

var intentKeywords = []struct {
	intent string
	words  []string
}{
	{"update", []string{"latest", "最新", "update", "更新", "progress", "進展"}},
	{"compare", []string{"compare", "比較", "difference", "差異", "conflict", "衝突"}},
	{"explain", []string{"why", "為什麼", "原因", "impact", "影響", "explain", "解釋"}},
}

// inferIntent guesses the report intent from the raw query when the planner
// was skipped.
func inferIntent(query string) string {
	q := strings.ToLower(query)
	for _, ik := range intentKeywords {
		for _, w := range ik.words {
			if strings.Contains(q, w) {
				return ik.intent
			}
		}
	}
	return "brief"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
