package textutil

import (
	"reflect"
	"sort"
	"strings"
	"testing"
)

func TestIsCJK(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"hello world", false},
		{"馬拉松", true},
		{"NBA 季後賽", true},
		{"", false},
		{"日本語のテスト", true}, // kanji counts, kana alone would not
		{"123!?", false},
	}
	for _, tt := range tests {
		if got := IsCJK(tt.in); got != tt.want {
			t.Errorf("IsCJK(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSimplify(t *testing.T) {
	if got := Simplify("內蒙古中國臺灣"); got != "内蒙古中国台灣" {
		t.Errorf("Simplify = %q", got)
	}
	if got := Simplify("no han at all"); got != "no han at all" {
		t.Errorf("Simplify passthrough = %q", got)
	}
}

func TestHorseVariants(t *testing.T) {
	got := HorseVariants("馬拉松")
	sort.Strings(got)
	want := []string{"馬拉松", "马拉松"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("HorseVariants = %v, want %v", got, want)
	}

	// No horse character: only the original.
	if got := HorseVariants("台北"); len(got) != 1 || got[0] != "台北" {
		t.Errorf("HorseVariants(台北) = %v", got)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "latin lowercased and split",
			in:   "Fed raises RATES, again",
			want: []string{"fed", "raises", "rates", "again"},
		},
		{
			name: "han bigrams",
			in:   "馬拉松比賽",
			want: []string{"馬拉", "拉松", "松比", "比賽"},
		},
		{
			name: "mixed scripts flush at boundary",
			in:   "NBA季後賽",
			want: []string{"nba", "季後", "後賽"},
		},
		{
			name: "single han rune",
			in:   "馬",
			want: []string{"馬"},
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractTerms(t *testing.T) {
	t.Run("glue words split spans", func(t *testing.T) {
		terms := ExtractTerms("關於內蒙古校服的最新報導？")
		if len(terms) == 0 {
			t.Fatal("no terms extracted")
		}
		if terms[0] != "內蒙古校服" {
			t.Errorf("first term = %q, want 內蒙古校服", terms[0])
		}
		want := map[string]bool{"內蒙古校": true, "古校服": true, "內蒙": true}
		found := 0
		for _, term := range terms {
			if want[term] {
				found++
			}
		}
		if found == 0 {
			t.Errorf("no sub-phrases among %v", terms)
		}
	})

	t.Run("stopwords removed", func(t *testing.T) {
		for _, term := range ExtractTerms("今天的新聞") {
			if term == "今天" || term == "新聞" {
				t.Errorf("stopword %q survived", term)
			}
		}
	})

	t.Run("cap at eight", func(t *testing.T) {
		terms := ExtractTerms("台灣經濟，美國政治，日本科技，韓國娛樂，德國汽車")
		if len(terms) > 8 {
			t.Errorf("got %d terms, cap is 8", len(terms))
		}
	})
}

func TestTermVariants(t *testing.T) {
	got := TermVariants([]string{"內蒙古"})
	has := func(v string) bool {
		for _, g := range got {
			if g == v {
				return true
			}
		}
		return false
	}
	for _, want := range []string{"內蒙古", "内蒙古", "內蒙", "内蒙"} {
		if !has(want) {
			t.Errorf("TermVariants missing %q in %v", want, got)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 3, "hel"},
		{"馬拉松比賽", 2, "馬拉"},
		{"short", 100, "short"},
		{"x", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestEmbedBudget(t *testing.T) {
	if got := EmbedBudget("純中文內容"); got != 1000 {
		t.Errorf("CJK budget = %d, want 1000", got)
	}
	if got := EmbedBudget("english only"); got != 1500 {
		t.Errorf("latin budget = %d, want 1500", got)
	}
}

func TestExtractEntities(t *testing.T) {
	text := "The central bank met in Washington on Tuesday. Officials from Washington said rates would hold. 央行官員在會議中表示，央行將維持利率。"
	got := ExtractEntities(text)
	if !strings.Contains(got, "Washington") {
		t.Errorf("entities %q missing Washington", got)
	}
	if !strings.Contains(got, "央行") {
		t.Errorf("entities %q missing repeated han span 央行", got)
	}
	if n := len(strings.Split(got, ", ")); n > 10 {
		t.Errorf("entity count %d exceeds 10", n)
	}
}

func TestExtractKeywords(t *testing.T) {
	text := "inflation inflation inflation rates economy economy the the the"
	got := ExtractKeywords(text)
	parts := strings.Split(got, ", ")
	if parts[0] != "inflation" {
		t.Errorf("top keyword = %q, want inflation", parts[0])
	}
	for _, p := range parts {
		if p == "the" {
			t.Error("stopword ranked as keyword")
		}
	}
}
