package store

import (
	"context"
	"sort"
	"sync"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/goerr/v2"
)

// MemoryStore keeps both collections in process memory. It is used for tests and local runs.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dimension int
	docs      []memoryDocument
}

type memoryDocument struct {
	domain.Document
	embedding domain.Embedding
}

var _ port.VectorStore = (*MemoryStore)(nil)

// NewMemoryStore creates both collections. A dimension of 0 is established by the first Add.
func NewMemoryStore(dimension int) *MemoryStore {
	s := &MemoryStore{collections: make(map[string]*memoryCollection, len(domain.Collections))}
	for _, name := range domain.Collections {
		s.collections[name] = &memoryCollection{dimension: dimension}
	}
	return s
}

// Add stores the batch, or nothing if any entry is invalid.
func (s *MemoryStore) Add(_ context.Context, collection string, documents []string, embeddings []domain.Embedding, metadatas []domain.Metadata) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, goerr.Wrap(port.ErrUnknownCollection, "cannot add documents", goerr.V("collection", collection))
	}
	plan, err := planAdd(collection, c.dimension, len(c.docs), documents, embeddings, metadatas)
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, nil
	}

	c.dimension = plan.dimension
	for i, text := range documents {
		c.docs = append(c.docs, memoryDocument{
			Document: domain.Document{
				ID:       plan.ids[i],
				Text:     text,
				Metadata: plan.metadatas[i],
			},
			embedding: append(domain.Embedding(nil), embeddings[i]...),
		})
	}
	return plan.ids, nil
}

// Query ranks every document of the collection by cosine similarity.
func (s *MemoryStore) Query(_ context.Context, collection string, embedding domain.Embedding, k int) (*domain.RetrievalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := &domain.RetrievalResult{Collection: collection, Documents: []domain.Document{}}
	c, ok := s.collections[collection]
	if !ok {
		return nil, goerr.Wrap(port.ErrUnknownCollection, "cannot query", goerr.V("collection", collection))
	}
	proceed, err := checkQuery(collection, c.dimension, len(c.docs), embedding, k)
	if err != nil {
		return nil, err
	}
	if !proceed {
		return result, nil
	}

	ranked := make([]domain.Document, len(c.docs))
	for i, d := range c.docs {
		ranked[i] = d.Document
		ranked[i].Score = cosineSimilarity(embedding, d.embedding)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	result.Documents = ranked[:k]
	return result, nil
}

func (s *MemoryStore) Count(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, goerr.Wrap(port.ErrUnknownCollection, "cannot count", goerr.V("collection", collection))
	}
	return len(c.docs), nil
}

func (s *MemoryStore) Close() error { return nil }
