package app

import (
	"context"
	"log/slog"

	"github.com/arturoeanton/go-medqa-rag/internal/adapter/ai"
	"github.com/arturoeanton/go-medqa-rag/internal/adapter/nlp"
	"github.com/arturoeanton/go-medqa-rag/internal/adapter/search"
	"github.com/arturoeanton/go-medqa-rag/internal/adapter/store"
	"github.com/arturoeanton/go-medqa-rag/internal/adapter/tool"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/arturoeanton/go-medqa-rag/internal/service"
	"github.com/arturoeanton/go-medqa-rag/pkg/config"
	"github.com/m-mizutani/goerr/v2"
)

// App holds the wired services shared by the HTTP server and the terminal chat.
type App struct {
	Config    *config.Config
	Store     port.VectorStore
	Embedder  *service.Embedder
	Chat      *service.ChatService
	Retrieval *service.RetrievalService
	Audit     port.AuditWriter
}

// New wires adapters, tools and services from cfg. The caller owns Close.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	vectorStore, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open vector store")
	}

	encoder, err := NewEncoder(cfg)
	if err != nil {
		_ = vectorStore.Close()
		return nil, err
	}

	embedder, err := service.NewEmbedder(encoder, service.EmbedderConfig{
		MaxTokens: cfg.EmbedMaxTokens,
		CacheSize: cfg.EmbedCacheSize,
		Timeout:   cfg.EmbedTimeout,
	})
	if err != nil {
		_ = vectorStore.Close()
		return nil, err
	}

	completer := ai.NewGroqCompleter(ai.GroqConfig{
		APIKey:  cfg.GroqAPIKey,
		BaseURL: cfg.GroqBaseURL,
	})
	searcher := search.NewSerpAPI(cfg.SerpAPIKey, cfg.SerpAPIURL)

	timeouts := tool.Timeouts{
		Vector:     cfg.VectorTimeout,
		Search:     cfg.SearchTimeout,
		Completion: cfg.CompletionTimeout,
	}

	// Registration order is the order tools are listed to clients.
	engine := port.NewToolEngine(
		tool.NewSymptomTool(searcher, completer, timeouts),
		tool.NewTreatmentTool(embedder, vectorStore, completer, timeouts),
		tool.NewTrialTool(embedder, vectorStore, completer, timeouts),
		tool.NewMemoryTool(nlp.NewProseExtractor(), completer, timeouts),
	)

	audit := service.NewLogAuditWriter(slog.Default())
	chat := service.NewChatService(service.NewRouter(), engine, audit)
	if err := chat.SetDefaultModel(cfg.DefaultModel); err != nil {
		_ = vectorStore.Close()
		return nil, err
	}

	return &App{
		Config:    cfg,
		Store:     vectorStore,
		Embedder:  embedder,
		Chat:      chat,
		Retrieval: service.NewRetrievalService(embedder, vectorStore, cfg.VectorTimeout),
		Audit:     audit,
	}, nil
}

// NewEncoder builds the token encoder selected by cfg.EmbedBackend.
func NewEncoder(cfg *config.Config) (port.Encoder, error) {
	switch cfg.EmbedBackend {
	case "tei":
		return ai.NewTEIEncoder(ai.TEIConfig{
			BaseURL: cfg.TEIURL,
			Model:   cfg.EmbeddingModel,
			Token:   cfg.TEIToken,
		}), nil
	case "ollama":
		encoder, err := ai.NewOllamaEncoder(ai.OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaEmbedModel,
		})
		if err != nil {
			return nil, err
		}
		return encoder, nil
	case "gemini":
		return ai.NewGeminiEncoder(ai.GeminiConfig{
			ProjectID: cfg.GeminiProjectID,
			Location:  cfg.GeminiLocation,
			Dimension: cfg.EmbeddingDimension,
		}), nil
	}
	return nil, goerr.Wrap(port.ErrInvalidBackend, "unsupported embedding backend", goerr.V("backend", cfg.EmbedBackend))
}

// Warmup loads the embedding model ahead of the first query. A failure is
// logged and left for the first retrieval to report.
func (a *App) Warmup(ctx context.Context) {
	if err := a.Embedder.Load(ctx); err != nil {
		slog.Warn("embedding model not loaded", "error", err, "backend", a.Config.EmbedBackend)
		return
	}
	slog.Info("embedding model loaded", "backend", a.Config.EmbedBackend)
}

// Close releases the vector store.
func (a *App) Close() error {
	return a.Store.Close()
}
