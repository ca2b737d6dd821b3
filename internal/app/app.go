// Package app wires the application components together. Construction is
// manual and ordered: configuration, database, models, stores, index, then
// the orchestrator on top.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/newsagent/db"
	"github.com/koopa0/newsagent/internal/agent"
	"github.com/koopa0/newsagent/internal/article"
	"github.com/koopa0/newsagent/internal/config"
	"github.com/koopa0/newsagent/internal/database"
	"github.com/koopa0/newsagent/internal/index"
	"github.com/koopa0/newsagent/internal/llm"
	"github.com/koopa0/newsagent/internal/log"
	"github.com/koopa0/newsagent/internal/search"
)

// App holds every long-lived component. Fields are exported so commands can
// pick the pieces they need.
type App struct {
	Config       *config.Config
	Logger       log.Logger
	Pool         *pgxpool.Pool
	Queries      *article.PGQuerier
	LLM          *llm.Client
	Store        *article.Store
	Index        *index.Manager
	Searcher     *search.Searcher
	Orchestrator *agent.Orchestrator
}

// Setup builds the full component graph. It runs migrations, connects to
// Postgres and Ollama, restores the vector index snapshot and rebuilds it
// when empty.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if err := db.Migrate(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	queries := article.NewPGQuerier(pool)

	// The chunks table declares a fixed vector dimension; a mismatched
	// embedding_dim would only surface as insert failures much later.
	schemaDim, err := queries.EmbeddingDim(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("checking embedding dimension: %w", err)
	}
	if schemaDim != cfg.EmbeddingDim {
		pool.Close()
		return nil, fmt.Errorf("embedding_dim %d does not match schema vector(%d)",
			cfg.EmbeddingDim, schemaDim)
	}

	llmClient, err := llm.New(ctx, llm.Config{
		OllamaHost:    cfg.OllamaHost,
		Model:         cfg.ModelName,
		Planner:       cfg.PlannerModel,
		EmbedderModel: cfg.EmbedderModel,
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing models: %w", err)
	}

	manager := index.NewManager(queries, cfg.IndexBackend, cfg.IndexPath, logger)
	manager.Load()
	if manager.Len() == 0 {
		if err := manager.Rebuild(ctx); err != nil {
			logger.Warn("initial index build failed", "error", err)
		}
	}

	enricher := article.NewEnricher(llmClient, llmClient, cfg.EnrichRateLimit, logger)
	store := article.NewStore(queries, llmClient.Embedder(), enricher, logger,
		article.WithIndexNotifier(manager.Rebuild))

	var reranker search.Reranker
	if cfg.RerankEnabled && cfg.RerankBaseURL != "" {
		reranker = llm.NewHTTPReranker(cfg.RerankBaseURL)
	}
	searcher := search.NewSearcher(manager, store, llmClient.Embedder(), reranker, search.Config{
		MinSimilarity: cfg.MinSimilarity,
		CacheSize:     cfg.CacheSize,
		Lexical:       cfg.LexicalEnabled,
	}, logger)

	orchestrator := agent.New(llmClient, searcher, agent.Config{
		Model:          cfg.ModelName,
		FastAccept:     cfg.FastAccept,
		RelevanceFloor: cfg.RelevanceFloor,
		ReflectMin:     cfg.ReflectMin,
		MultiQuery:     cfg.MultiQuery,
	}, logger)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Pool:         pool,
		Queries:      queries,
		LLM:          llmClient,
		Store:        store,
		Index:        manager,
		Searcher:     searcher,
		Orchestrator: orchestrator,
	}, nil
}

// Close releases held resources.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
