package store

import (
	"context"
	"sync"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys of a qdrant point.
const (
	qdrantKeyID       = "doc_id"
	qdrantKeySeq      = "seq"
	qdrantKeyText     = "text"
	qdrantKeyMetadata = "metadata"
)

// QdrantConfig holds the connection settings of a Qdrant server.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string `masq:"secret"`
	UseTLS bool
}

// QdrantStore keeps each collection in a Qdrant collection with cosine distance.
// Point ids are UUIDv5 of the sequential document id, which is kept in the payload.
type QdrantStore struct {
	client *qdrant.Client
	opts   options

	// mu serializes Add so that sequential ids are assigned without gaps or collisions.
	mu         sync.Mutex
	dimensions map[string]int
}

var _ port.VectorStore = (*QdrantStore)(nil)

// NewQdrantStore connects and gets-or-creates both collections with the given dimension.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, dimension int, opts ...Option) (*QdrantStore, error) {
	if dimension <= 0 {
		return nil, goerr.Wrap(port.ErrDimensionMismatch, "qdrant collections need a fixed dimension")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create qdrant client", goerr.V("host", cfg.Host))
	}

	s := &QdrantStore{client: client, opts: newOptions(opts), dimensions: map[string]int{}}
	for _, name := range domain.Collections {
		dim, err := s.getOrCreate(ctx, s.opts.physical(name), dimension)
		if err != nil {
			client.Close()
			return nil, err
		}
		s.dimensions[name] = dim
	}
	return s, nil
}

func (s *QdrantStore) getOrCreate(ctx context.Context, name string, dimension int) (int, error) {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to check collection", goerr.V("collection", name))
	}
	if !exists {
		if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return 0, goerr.Wrap(err, "failed to create collection", goerr.V("collection", name))
		}
		return dimension, nil
	}

	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to read collection", goerr.V("collection", name))
	}
	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size == 0 {
		return dimension, nil
	}
	return int(size), nil
}

func (s *QdrantStore) Add(ctx context.Context, collection string, documents []string, embeddings []domain.Embedding, metadatas []domain.Metadata) ([]string, error) {
	if !domain.IsKnownCollection(collection) {
		return nil, goerr.Wrap(port.ErrUnknownCollection, "cannot add documents", goerr.V("collection", collection))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	nextSeq, err := s.Count(ctx, collection)
	if err != nil {
		return nil, err
	}
	plan, err := planAdd(collection, s.dimensions[collection], nextSeq, documents, embeddings, metadatas)
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, nil
	}

	points := make([]*qdrant.PointStruct, len(documents))
	for i, text := range documents {
		payload, err := qdrant.TryValueMap(map[string]any{
			qdrantKeyID:       plan.ids[i],
			qdrantKeySeq:      nextSeq + i,
			qdrantKeyText:     text,
			qdrantKeyMetadata: map[string]any(plan.metadatas[i]),
		})
		if err != nil {
			return nil, goerr.Wrap(port.ErrInvalidMetadata, "failed to build payload",
				goerr.V("id", plan.ids[i]), goerr.V("cause", err.Error()))
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(collection, plan.ids[i])),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: payload,
		}
	}

	// A single upsert request is applied as one operation.
	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.opts.physical(collection),
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to upsert points", goerr.V("collection", collection))
	}
	return plan.ids, nil
}

func (s *QdrantStore) Query(ctx context.Context, collection string, embedding domain.Embedding, k int) (*domain.RetrievalResult, error) {
	result := &domain.RetrievalResult{Collection: collection, Documents: []domain.Document{}}
	if !domain.IsKnownCollection(collection) {
		return nil, goerr.Wrap(port.ErrUnknownCollection, "cannot query", goerr.V("collection", collection))
	}
	size, err := s.Count(ctx, collection)
	if err != nil {
		return nil, err
	}
	proceed, err := checkQuery(collection, s.dimensions[collection], size, embedding, k)
	if err != nil {
		return nil, err
	}
	if !proceed {
		return result, nil
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.opts.physical(collection),
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query points", goerr.V("collection", collection))
	}

	for _, p := range points {
		payload := p.GetPayload()
		result.Documents = append(result.Documents, domain.Document{
			ID:       payload[qdrantKeyID].GetStringValue(),
			Text:     payload[qdrantKeyText].GetStringValue(),
			Metadata: metadataFromStruct(payload[qdrantKeyMetadata].GetStructValue()),
			Score:    float64(p.GetScore()),
		})
	}
	return result, nil
}

func (s *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	if !domain.IsKnownCollection(collection) {
		return 0, goerr.Wrap(port.ErrUnknownCollection, "cannot count", goerr.V("collection", collection))
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.opts.physical(collection),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count points", goerr.V("collection", collection))
	}
	return int(n), nil
}

// Close closes the gRPC connections.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func pointID(collection, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("medqa://"+collection+"/"+id)).String()
}

func metadataFromStruct(st *qdrant.Struct) domain.Metadata {
	md := domain.Metadata{}
	for k, v := range st.GetFields() {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			md[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			md[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			md[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			md[k] = kind.BoolValue
		}
	}
	return md
}
