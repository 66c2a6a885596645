package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/goerr/v2"
)

// MaxRetrieveK bounds direct retrieval requests.
const MaxRetrieveK = 50

// RetrievalService exposes similarity search over the two collections
// without going through a tool or the completion provider.
type RetrievalService struct {
	embedder port.Embedder
	store    port.VectorStore
	timeout  time.Duration
}

// NewRetrievalService creates a retrieval service. timeout bounds each vector query.
func NewRetrievalService(embedder port.Embedder, store port.VectorStore, timeout time.Duration) *RetrievalService {
	return &RetrievalService{embedder: embedder, store: store, timeout: timeout}
}

// Retrieve embeds query and returns up to k documents of collection, closest first.
func (s *RetrievalService) Retrieve(ctx context.Context, collection, query string, k int) (*domain.RetrievalResult, error) {
	if !domain.IsKnownCollection(collection) {
		return nil, goerr.Wrap(port.ErrUnknownCollection, "cannot retrieve", goerr.V("collection", collection))
	}
	if k > MaxRetrieveK {
		k = MaxRetrieveK
	}
	slog.InfoContext(ctx, "retrieve", "collection", collection, "k", k)

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "embed query")
	}

	qctx, cancel := ctx, context.CancelFunc(func() {})
	if s.timeout > 0 {
		qctx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	defer cancel()

	result, err := s.store.Query(qctx, collection, embedding, k)
	if err != nil {
		if qctx.Err() == context.DeadlineExceeded {
			return nil, goerr.Wrap(port.ErrTimeout, "vector query timed out", goerr.V("collection", collection))
		}
		return nil, goerr.Wrap(err, "vector query", goerr.V("collection", collection))
	}
	return result, nil
}

// Counts returns the number of documents in each collection.
func (s *RetrievalService) Counts(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(domain.Collections))
	for _, c := range domain.Collections {
		n, err := s.store.Count(ctx, c)
		if err != nil {
			return nil, goerr.Wrap(err, "count collection", goerr.V("collection", c))
		}
		out[c] = n
	}
	return out, nil
}
