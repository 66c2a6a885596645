package service_test

import (
	"context"
	"testing"

	"github.com/arturoeanton/go-medqa-rag/internal/adapter/store"
	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/mock"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/arturoeanton/go-medqa-rag/internal/service"
	"github.com/m-mizutani/gt"
)

func TestRetrievalService(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemoryStore(0)
	_, err := vs.Add(ctx, domain.CollectionClinicalTrials,
		[]string{"metformin", "insulin"},
		[]domain.Embedding{{1, 0, 0}, {0, 1, 0}},
		[]domain.Metadata{{domain.MetaNCTID: "NCT1"}, {domain.MetaNCTID: "NCT2"}},
	)
	gt.NoError(t, err).Required()

	embedder := &mock.EmbedderMock{}
	svc := service.NewRetrievalService(embedder, vs, 0)

	t.Run("returns closest first", func(t *testing.T) {
		result, err := svc.Retrieve(ctx, domain.CollectionClinicalTrials, "diabetes", 1)
		gt.NoError(t, err).Required()
		gt.Value(t, result.Texts()).Equal([]string{"metformin"})
	})

	t.Run("empty collection", func(t *testing.T) {
		result, err := svc.Retrieve(ctx, domain.CollectionDischargeNotes, "diabetes", 5)
		gt.NoError(t, err).Required()
		gt.Bool(t, result.Empty()).True()
	})

	t.Run("unknown collection", func(t *testing.T) {
		_, err := svc.Retrieve(ctx, "patients", "diabetes", 5)
		gt.Error(t, err).Is(port.ErrUnknownCollection)
	})

	t.Run("counts", func(t *testing.T) {
		counts, err := svc.Counts(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, counts).Equal(map[string]int{
			domain.CollectionDischargeNotes: 0,
			domain.CollectionClinicalTrials: 2,
		})
	})
}
