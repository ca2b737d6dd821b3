package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPRerankerScoresDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/rerank" {
			t.Errorf("path = %s, want /v1/rerank", r.URL.Path)
		}
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "央行升息" {
			t.Errorf("query = %q", req.Query)
		}
		scores := make([]float64, len(req.Documents))
		for i := range scores {
			scores[i] = float64(i) + 0.5
		}
		_ = json.NewEncoder(w).Encode(rerankResponse{Scores: scores})
	}))
	defer srv.Close()

	rr := NewHTTPReranker(srv.URL)
	scores, err := rr.Rerank(context.Background(), "央行升息", []string{"doc a", "doc b"})
	if err != nil {
		t.Fatalf("Rerank() error: %v", err)
	}
	if len(scores) != 2 || scores[0] != 0.5 || scores[1] != 1.5 {
		t.Errorf("scores = %v", scores)
	}
}

func TestHTTPRerankerServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewHTTPReranker(srv.URL).Rerank(context.Background(), "q", []string{"d"}); err == nil {
		t.Fatal("Rerank() succeeded against failing service")
	}
}

func TestHTTPRerankerScoreCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(rerankResponse{Scores: []float64{1}})
	}))
	defer srv.Close()

	if _, err := NewHTTPReranker(srv.URL).Rerank(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Fatal("Rerank() accepted mismatched score count")
	}
}

func TestCleanLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Tech", "Tech"},
		{"Category: Tech", "Tech"},
		{"  分類: Finance ", "Finance"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanLabel(tt.in); got != tt.want {
			t.Errorf("CleanLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
