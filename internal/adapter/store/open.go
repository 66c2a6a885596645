package store

import (
	"context"
	"log/slog"

	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/arturoeanton/go-medqa-rag/pkg/config"
	"github.com/m-mizutani/goerr/v2"
)

// Open creates the vector store selected by cfg.VectorBackend.
func Open(ctx context.Context, cfg *config.Config) (port.VectorStore, error) {
	slog.Info("opening vector store", "backend", cfg.VectorBackend, "dimension", cfg.EmbeddingDimension)

	switch cfg.VectorBackend {
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.VectorDir, cfg.EmbeddingDimension)
	case "memory":
		return NewMemoryStore(cfg.EmbeddingDimension), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg.DatabaseURL, cfg.EmbeddingDimension)
	case "qdrant":
		return NewQdrantStore(ctx, QdrantConfig{
			Host:   cfg.QdrantHost,
			Port:   cfg.QdrantPort,
			APIKey: cfg.QdrantAPIKey,
			UseTLS: cfg.QdrantUseTLS,
		}, cfg.EmbeddingDimension)
	case "firestore":
		return NewFirestoreStore(ctx, cfg.FirestoreProjectID, cfg.FirestoreDatabaseID, cfg.EmbeddingDimension)
	}
	return nil, goerr.Wrap(port.ErrInvalidBackend, "unsupported vector backend", goerr.V("backend", cfg.VectorBackend))
}
