package port

import (
	"context"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
)

// VectorStore persists the document collections and answers nearest-neighbour queries.
type VectorStore interface {
	// Add stores documents with their embeddings atomically and returns the assigned ids.
	// metadatas may be nil; otherwise all three slices must have the same length.
	Add(ctx context.Context, collection string, documents []string, embeddings []domain.Embedding, metadatas []domain.Metadata) ([]string, error)

	// Query returns up to k documents ranked by cosine similarity, closest first.
	// An empty collection yields an empty result, not an error.
	Query(ctx context.Context, collection string, embedding domain.Embedding, k int) (*domain.RetrievalResult, error)

	// Count returns the number of documents in a collection.
	Count(ctx context.Context, collection string) (int, error)

	Close() error
}
