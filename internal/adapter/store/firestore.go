package store

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	firestoreMetaCollection = "medqa_collections"
	firestoreVectorField    = "embedding"
	// Firestore rejects transactions with more than 500 writes; one is the collection counter.
	firestoreMaxBatch = 499
)

type firestoreDocument struct {
	ID        string             `firestore:"id"`
	Seq       int                `firestore:"seq"`
	Text      string             `firestore:"text"`
	Metadata  map[string]any     `firestore:"metadata"`
	Embedding firestore.Vector32 `firestore:"embedding"`
}

type firestoreCollectionMeta struct {
	Dimension int `firestore:"dimension"`
	NextSeq   int `firestore:"next_seq"`
}

// FirestoreStore keeps each collection as a Firestore collection and searches it with FindNearest.
// A vector index on the embedding field must exist for queries to succeed.
type FirestoreStore struct {
	client    *firestore.Client
	dimension int
	opts      options
}

var _ port.VectorStore = (*FirestoreStore)(nil)

// NewFirestoreStore creates a client for the given project and database.
func NewFirestoreStore(ctx context.Context, projectID, databaseID string, dimension int, opts ...Option) (*FirestoreStore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client", goerr.V("projectID", projectID))
	}
	return &FirestoreStore{client: client, dimension: dimension, opts: newOptions(opts)}, nil
}

func (s *FirestoreStore) metaRef(collection string) *firestore.DocumentRef {
	return s.client.Collection(s.opts.physical(firestoreMetaCollection)).Doc(collection)
}

func (s *FirestoreStore) docs(collection string) *firestore.CollectionRef {
	return s.client.Collection(s.opts.physical(collection))
}

// readMeta returns the collection counter; a missing document means an empty collection.
func (s *FirestoreStore) readMeta(snap *firestore.DocumentSnapshot, err error) (firestoreCollectionMeta, error) {
	meta := firestoreCollectionMeta{Dimension: s.dimension}
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return meta, nil
		}
		return meta, goerr.Wrap(err, "failed to read collection meta")
	}
	if err := snap.DataTo(&meta); err != nil {
		return meta, goerr.Wrap(err, "failed to decode collection meta")
	}
	return meta, nil
}

func (s *FirestoreStore) Add(ctx context.Context, collection string, documents []string, embeddings []domain.Embedding, metadatas []domain.Metadata) ([]string, error) {
	if !domain.IsKnownCollection(collection) {
		return nil, goerr.Wrap(port.ErrUnknownCollection, "cannot add documents", goerr.V("collection", collection))
	}
	if len(documents) > firestoreMaxBatch {
		return nil, goerr.New("batch too large for one firestore transaction",
			goerr.V("documents", len(documents)), goerr.V("max", firestoreMaxBatch))
	}

	var ids []string
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		meta, err := s.readMeta(tx.Get(s.metaRef(collection)))
		if err != nil {
			return err
		}
		plan, err := planAdd(collection, meta.Dimension, meta.NextSeq, documents, embeddings, metadatas)
		if err != nil {
			return err
		}
		if len(documents) == 0 {
			return nil
		}

		for i, text := range documents {
			doc := firestoreDocument{
				ID:        plan.ids[i],
				Seq:       meta.NextSeq + i,
				Text:      text,
				Metadata:  map[string]any(plan.metadatas[i]),
				Embedding: firestore.Vector32(embeddings[i]),
			}
			if err := tx.Set(s.docs(collection).Doc(plan.ids[i]), doc); err != nil {
				return goerr.Wrap(err, "failed to write document", goerr.V("id", plan.ids[i]))
			}
		}
		next := firestoreCollectionMeta{Dimension: plan.dimension, NextSeq: meta.NextSeq + len(documents)}
		if err := tx.Set(s.metaRef(collection), next); err != nil {
			return goerr.Wrap(err, "failed to write collection meta")
		}
		ids = plan.ids
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "add transaction failed", goerr.V("collection", collection))
	}
	return ids, nil
}

func (s *FirestoreStore) Query(ctx context.Context, collection string, embedding domain.Embedding, k int) (*domain.RetrievalResult, error) {
	result := &domain.RetrievalResult{Collection: collection, Documents: []domain.Document{}}
	if !domain.IsKnownCollection(collection) {
		return nil, goerr.Wrap(port.ErrUnknownCollection, "cannot query", goerr.V("collection", collection))
	}
	meta, err := s.readMeta(s.metaRef(collection).Get(ctx))
	if err != nil {
		return nil, err
	}
	proceed, err := checkQuery(collection, meta.Dimension, meta.NextSeq, embedding, k)
	if err != nil {
		return nil, err
	}
	if !proceed {
		return result, nil
	}

	iter := s.docs(collection).
		FindNearest(firestoreVectorField, firestore.Vector32(embedding), k, firestore.DistanceMeasureCosine, nil).
		Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to find nearest documents", goerr.V("collection", collection))
		}
		var d firestoreDocument
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to decode document", goerr.V("id", snap.Ref.ID))
		}
		result.Documents = append(result.Documents, domain.Document{
			ID:       d.ID,
			Text:     d.Text,
			Metadata: domain.Metadata(d.Metadata),
			Score:    cosineSimilarity(embedding, d.Embedding),
		})
	}
	return result, nil
}

func (s *FirestoreStore) Count(ctx context.Context, collection string) (int, error) {
	if !domain.IsKnownCollection(collection) {
		return 0, goerr.Wrap(port.ErrUnknownCollection, "cannot count", goerr.V("collection", collection))
	}
	meta, err := s.readMeta(s.metaRef(collection).Get(ctx))
	if err != nil {
		return 0, err
	}
	return meta.NextSeq, nil
}

// Close closes the firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
