package store_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/arturoeanton/go-medqa-rag/internal/adapter/store"
	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/gt"
)

func runVectorStoreTest(t *testing.T, newStore func(t *testing.T) port.VectorStore) {
	t.Helper()
	const notes = domain.CollectionDischargeNotes
	const trials = domain.CollectionClinicalTrials

	t.Run("Query on empty collection returns empty result", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		result, err := s.Query(ctx, notes, domain.Embedding{1, 0, 0}, 5)
		gt.NoError(t, err).Required()
		gt.Value(t, result.Empty()).Equal(true)
		gt.Value(t, result.Collection).Equal(notes)
	})

	t.Run("Add assigns sequential ids per collection", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ids, err := s.Add(ctx, notes, []string{"a", "b"}, []domain.Embedding{{1, 0, 0}, {0, 1, 0}}, nil)
		gt.NoError(t, err).Required()
		gt.Value(t, ids).Equal([]string{"note_0", "note_1"})

		ids, err = s.Add(ctx, notes, []string{"c"}, []domain.Embedding{{0, 0, 1}}, nil)
		gt.NoError(t, err).Required()
		gt.Value(t, ids).Equal([]string{"note_2"})

		ids, err = s.Add(ctx, trials, []string{"t"}, []domain.Embedding{{0, 0, 1}}, []domain.Metadata{{domain.MetaNCTID: "NCT01"}})
		gt.NoError(t, err).Required()
		gt.Value(t, ids).Equal([]string{"trial_0"})

		n, err := s.Count(ctx, notes)
		gt.NoError(t, err).Required()
		gt.Value(t, n).Equal(3)
	})

	t.Run("Query returns at most k documents closest first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Add(ctx, notes,
			[]string{"chest pain", "fracture", "angina"},
			[]domain.Embedding{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}},
			[]domain.Metadata{{domain.MetaSubjectID: 1}, {domain.MetaSubjectID: 2}, {domain.MetaSubjectID: 3}},
		)
		gt.NoError(t, err).Required()

		result, err := s.Query(ctx, notes, domain.Embedding{1, 0, 0}, 2)
		gt.NoError(t, err).Required()
		gt.Array(t, result.Documents).Length(2).Required()
		gt.Value(t, result.Texts()).Equal([]string{"chest pain", "angina"})
		gt.Value(t, result.Documents[0].ID).Equal("note_0")
		gt.Bool(t, result.Documents[0].Score >= result.Documents[1].Score).True()

		result, err = s.Query(ctx, notes, domain.Embedding{1, 0, 0}, 10)
		gt.NoError(t, err).Required()
		gt.Array(t, result.Documents).Length(3)

		result, err = s.Query(ctx, notes, domain.Embedding{1, 0, 0}, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, result.Documents).Length(0)
	})

	t.Run("Metadata survives storage", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Add(ctx, trials,
			[]string{"Study Title: Metformin in T2D"},
			[]domain.Embedding{{0, 1, 0}},
			[]domain.Metadata{{domain.MetaNCTID: "NCT0001", "phase": 3}},
		)
		gt.NoError(t, err).Required()

		result, err := s.Query(ctx, trials, domain.Embedding{0, 1, 0}, 3)
		gt.NoError(t, err).Required()
		gt.Array(t, result.Documents).Length(1).Required()
		md := result.Documents[0].Metadata
		gt.Value(t, md.String(domain.MetaNCTID, "Unknown ID")).Equal("NCT0001")
		gt.Value(t, md.String("phase", "")).Equal("3")
		gt.Value(t, md.String("missing", "fallback")).Equal("fallback")
	})

	t.Run("Length mismatch adds nothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Add(ctx, notes, []string{"a", "b"}, []domain.Embedding{{1, 0, 0}}, nil)
		gt.Error(t, err).Is(port.ErrLengthMismatch)

		_, err = s.Add(ctx, notes, []string{"a", "b"}, []domain.Embedding{{1, 0, 0}, {0, 1, 0}}, []domain.Metadata{{}})
		gt.Error(t, err).Is(port.ErrLengthMismatch)

		n, err := s.Count(ctx, notes)
		gt.NoError(t, err).Required()
		gt.Value(t, n).Equal(0)
	})

	t.Run("Dimension mismatch adds nothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Add(ctx, notes, []string{"a"}, []domain.Embedding{{1, 0, 0}}, nil)
		gt.NoError(t, err).Required()

		_, err = s.Add(ctx, notes, []string{"b", "c"}, []domain.Embedding{{1, 0, 0}, {1, 0}}, nil)
		gt.Error(t, err).Is(port.ErrDimensionMismatch)

		n, err := s.Count(ctx, notes)
		gt.NoError(t, err).Required()
		gt.Value(t, n).Equal(1)

		_, err = s.Query(ctx, notes, domain.Embedding{1, 0}, 1)
		gt.Error(t, err).Is(port.ErrDimensionMismatch)
	})

	t.Run("Non-scalar metadata is rejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Add(ctx, trials, []string{"a"}, []domain.Embedding{{1, 0, 0}},
			[]domain.Metadata{{"conditions": []string{"diabetes"}}})
		gt.Error(t, err).Is(port.ErrInvalidMetadata)
	})

	t.Run("Unknown collection is rejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Add(ctx, "patients", []string{"a"}, []domain.Embedding{{1, 0, 0}}, nil)
		gt.Error(t, err).Is(port.ErrUnknownCollection)

		_, err = s.Query(ctx, "patients", domain.Embedding{1, 0, 0}, 1)
		gt.Error(t, err).Is(port.ErrUnknownCollection)
	})
}

func TestMemoryStore(t *testing.T) {
	runVectorStoreTest(t, func(t *testing.T) port.VectorStore {
		return store.NewMemoryStore(0)
	})
}

func TestSQLiteStore(t *testing.T) {
	runVectorStoreTest(t, func(t *testing.T) port.VectorStore {
		s, err := store.NewSQLiteStore(context.Background(), t.TempDir(), 0)
		gt.NoError(t, err).Required()
		t.Cleanup(func() { gt.NoError(t, s.Close()) })
		return s
	})
}

func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := store.NewSQLiteStore(ctx, dir, 0)
	gt.NoError(t, err).Required()
	_, err = s.Add(ctx, domain.CollectionDischargeNotes, []string{"a", "b"}, []domain.Embedding{{1, 0}, {0, 1}}, nil)
	gt.NoError(t, err).Required()
	gt.NoError(t, s.Close()).Required()

	reopened, err := store.NewSQLiteStore(ctx, dir, 0)
	gt.NoError(t, err).Required()
	defer reopened.Close()

	n, err := reopened.Count(ctx, domain.CollectionDischargeNotes)
	gt.NoError(t, err).Required()
	gt.Value(t, n).Equal(2)

	ids, err := reopened.Add(ctx, domain.CollectionDischargeNotes, []string{"c"}, []domain.Embedding{{1, 1}}, nil)
	gt.NoError(t, err).Required()
	gt.Value(t, ids).Equal([]string{"note_2"})
}

func testPrefix() string {
	return fmt.Sprintf("test_%d", time.Now().UnixNano())
}

func TestPostgresStore(t *testing.T) {
	runVectorStoreTest(t, func(t *testing.T) port.VectorStore {
		url := os.Getenv("TEST_DATABASE_URL")
		if url == "" {
			t.Skip("TEST_DATABASE_URL not set")
		}
		s, err := store.NewPostgresStore(context.Background(), url, 0, store.WithCollectionPrefix(testPrefix()))
		gt.NoError(t, err).Required()
		t.Cleanup(func() { gt.NoError(t, s.Close()) })
		return s
	})
}

func TestQdrantStore(t *testing.T) {
	runVectorStoreTest(t, func(t *testing.T) port.VectorStore {
		host := os.Getenv("TEST_QDRANT_HOST")
		if host == "" {
			t.Skip("TEST_QDRANT_HOST not set")
		}
		qdrantPort := 6334
		if v, err := strconv.Atoi(os.Getenv("TEST_QDRANT_PORT")); err == nil {
			qdrantPort = v
		}
		s, err := store.NewQdrantStore(context.Background(), store.QdrantConfig{Host: host, Port: qdrantPort}, 3,
			store.WithCollectionPrefix(testPrefix()))
		gt.NoError(t, err).Required()
		t.Cleanup(func() { gt.NoError(t, s.Close()) })
		return s
	})
}

func TestFirestoreStore(t *testing.T) {
	runVectorStoreTest(t, func(t *testing.T) port.VectorStore {
		projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
		if projectID == "" {
			t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
		}
		databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
		if databaseID == "" {
			t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
		}
		s, err := store.NewFirestoreStore(context.Background(), projectID, databaseID, 0,
			store.WithCollectionPrefix(testPrefix()))
		gt.NoError(t, err).Required()
		t.Cleanup(func() { gt.NoError(t, s.Close()) })
		return s
	})
}
