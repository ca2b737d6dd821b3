// Package llm wraps Genkit model access for the rest of the system. It
// registers the Ollama-served generation models and embedder at startup and
// exposes small purpose-built methods (generate, summarize, classify) so
// callers never touch prompt plumbing.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/ollama"
)

// Config holds model identity. Model handles user-facing generation; Planner
// is a smaller faster model for internal planning, classification and
// summaries.
type Config struct {
	OllamaHost    string
	Model         string
	Planner       string
	EmbedderModel string
}

// Client provides model access. Safe for concurrent use.
type Client struct {
	g        *genkit.Genkit
	embedder ai.Embedder
	model    string // fully qualified registered model name
	planner  string
	logger   *slog.Logger
}

// New initializes Genkit with the Ollama plugin and registers both
// generation models and the embedder.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	plugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
	g := genkit.Init(ctx, genkit.WithPlugins(plugin))
	if g == nil {
		return nil, errors.New("initializing genkit with ollama provider")
	}

	// Ollama requires explicit model registration (no auto-discovery).
	plugin.DefineModel(g, ollama.ModelDefinition{Name: cfg.Model, Type: "chat"}, nil)
	if cfg.Planner != "" && cfg.Planner != cfg.Model {
		plugin.DefineModel(g, ollama.ModelDefinition{Name: cfg.Planner, Type: "chat"}, nil)
	}
	plugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)

	planner := cfg.Planner
	if planner == "" {
		planner = cfg.Model
	}

	logger.Info("initialized Genkit with ollama provider",
		"model", cfg.Model, "planner", planner, "embedder", cfg.EmbedderModel,
		"host", cfg.OllamaHost)

	return &Client{
		g:        g,
		embedder: ollama.Embedder(g, cfg.OllamaHost),
		model:    "ollama/" + cfg.Model,
		planner:  "ollama/" + planner,
		logger:   logger,
	}, nil
}

// Embedder returns the registered embedder for stores and searchers.
func (c *Client) Embedder() ai.Embedder { return c.embedder }

// GenOption adjusts a single generation call.
type GenOption func(*genOptions)

type genOptions struct {
	maxTokens   int
	temperature float64
	planner     bool
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) GenOption {
	return func(o *genOptions) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithTemperature sets sampling temperature.
func WithTemperature(t float64) GenOption {
	return func(o *genOptions) { o.temperature = t }
}

// WithPlanner routes the call to the fast planning model.
func WithPlanner() GenOption {
	return func(o *genOptions) { o.planner = true }
}

// Generate produces a completion for prompt.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...GenOption) (string, error) {
	o := genOptions{maxTokens: 300, temperature: 0.7}
	for _, opt := range opts {
		opt(&o)
	}

	model := c.model
	if o.planner {
		model = c.planner
	}

	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(model),
		ai.WithPrompt(prompt),
		ai.WithConfig(&ai.GenerationCommonConfig{
			MaxOutputTokens: o.maxTokens,
			Temperature:     o.temperature,
		}))
	if err != nil {
		return "", fmt.Errorf("generating with %s: %w", model, err)
	}
	return resp.Text(), nil
}

// Summarize produces a one-sentence summary of an article. Implements the
// article store's Summarizer interface.
func (c *Client) Summarize(ctx context.Context, title, content string) (string, error) {
	prompt := fmt.Sprintf(
		"用一句話總結這則新聞，直接輸出摘要，不要加任何前綴。\n標題：%s\n內容：%s\n摘要：",
		title, truncate(content, 500))
	return c.Generate(ctx, prompt,
		WithPlanner(), WithMaxTokens(100), WithTemperature(0))
}

// ClassifyCategory labels an article with a news category. Implements the
// article store's CategoryClassifier interface.
func (c *Client) ClassifyCategory(ctx context.Context, title, content string) (string, error) {
	prompt := fmt.Sprintf(
		"將這則新聞分類為以下其中一類：Politics, Finance, Social, International, Sports, Tech, Health\n標題：%s\n內容摘要：%s\n分類：",
		title, truncate(content, 300))
	raw, err := c.Generate(ctx, prompt,
		WithPlanner(), WithMaxTokens(10), WithTemperature(0))
	if err != nil {
		return "", err
	}
	return CleanLabel(raw), nil
}

// truncate limits s to n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// CleanLabel strips "Category:" style prefixes from short model answers.
func CleanLabel(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, ":"); i >= 0 && i < len(s)-1 {
		s = strings.TrimSpace(s[i+1:])
	}
	return s
}
