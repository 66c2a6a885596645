package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/mock"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/arturoeanton/go-medqa-rag/internal/service"
	"github.com/m-mizutani/gt"
)

// wordLengthEncoder yields one state per word: [len(word), 1].
func wordLengthEncoder() *mock.EncoderMock {
	return &mock.EncoderMock{
		EncodeFunc: func(ctx context.Context, text string, maxTokens int) ([][]float32, error) {
			words := strings.Fields(text)
			if len(words) > maxTokens {
				words = words[:maxTokens]
			}
			states := make([][]float32, len(words))
			for i, w := range words {
				states[i] = []float32{float32(len(w)), 1}
			}
			return states, nil
		},
	}
}

func TestMeanPool(t *testing.T) {
	got, err := service.MeanPool([][]float32{{1, 2}, {3, 4}, {5, 6}})
	gt.NoError(t, err).Required()
	gt.Value(t, got).Equal(domain.Embedding{3, 4})

	_, err = service.MeanPool(nil)
	gt.Error(t, err).Is(port.ErrProviderError)

	_, err = service.MeanPool([][]float32{{1, 2}, {3}})
	gt.Error(t, err).Is(port.ErrDimensionMismatch)
}

func TestEmbedderDeterministic(t *testing.T) {
	enc := wordLengthEncoder()
	e, err := service.NewEmbedder(enc, service.EmbedderConfig{})
	gt.NoError(t, err).Required()
	ctx := context.Background()

	a, err := e.Embed(ctx, "chest pain at rest")
	gt.NoError(t, err).Required()
	b, err := e.Embed(ctx, "chest pain at rest")
	gt.NoError(t, err).Required()

	gt.Value(t, a).Equal(b)
	gt.Value(t, a).Equal(domain.Embedding{3.75, 1})
	gt.Value(t, enc.LoadCalls).Equal(1)
	gt.Array(t, enc.EncodeCalls).Length(2).Required()
	gt.Value(t, enc.EncodeCalls[0].MaxTokens).Equal(128)
}

func TestEmbedderTruncates(t *testing.T) {
	enc := wordLengthEncoder()
	e, err := service.NewEmbedder(enc, service.EmbedderConfig{MaxTokens: 2})
	gt.NoError(t, err).Required()

	v, err := e.Embed(context.Background(), "ab abcd abcdefghijkl")
	gt.NoError(t, err).Required()
	gt.Value(t, v).Equal(domain.Embedding{3, 1})
}

func TestEmbedderCache(t *testing.T) {
	enc := wordLengthEncoder()
	e, err := service.NewEmbedder(enc, service.EmbedderConfig{CacheSize: 8})
	gt.NoError(t, err).Required()
	ctx := context.Background()

	a, err := e.Embed(ctx, "fatigue")
	gt.NoError(t, err).Required()
	a[0] = 100

	b, err := e.Embed(ctx, "fatigue")
	gt.NoError(t, err).Required()
	gt.Value(t, b).Equal(domain.Embedding{7, 1})
	gt.Array(t, enc.EncodeCalls).Length(1)
}

func TestEmbedderModelLoadFailureIsRetried(t *testing.T) {
	healthy := false
	enc := &mock.EncoderMock{
		LoadFunc: func(ctx context.Context) error {
			if !healthy {
				return errors.New("weights not found")
			}
			return nil
		},
	}
	e, err := service.NewEmbedder(enc, service.EmbedderConfig{})
	gt.NoError(t, err).Required()
	ctx := context.Background()

	for range 2 {
		_, err := e.Embed(ctx, "nausea")
		gt.Error(t, err).Is(port.ErrModelLoad)
	}
	gt.Array(t, enc.EncodeCalls).Length(0)

	healthy = true
	_, err = e.Embed(ctx, "nausea")
	gt.NoError(t, err)
	_, err = e.Embed(ctx, "nausea")
	gt.NoError(t, err)
	gt.Value(t, enc.LoadCalls).Equal(3)
}

func TestEmbedderCancelledLoadIsNotRemembered(t *testing.T) {
	enc := &mock.EncoderMock{
		LoadFunc: func(ctx context.Context) error { return ctx.Err() },
	}
	e, err := service.NewEmbedder(enc, service.EmbedderConfig{})
	gt.NoError(t, err).Required()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Embed(cancelled, "dizziness")
	gt.Error(t, err).Is(context.Canceled)
	gt.Bool(t, errors.Is(err, port.ErrModelLoad)).False()

	v, err := e.Embed(context.Background(), "dizziness")
	gt.NoError(t, err).Required()
	gt.Value(t, v).Equal(domain.Embedding{1, 0})
	gt.Value(t, enc.LoadCalls).Equal(2)
}

func TestEmbedderLoadTimeout(t *testing.T) {
	enc := &mock.EncoderMock{
		LoadFunc: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	e, err := service.NewEmbedder(enc, service.EmbedderConfig{Timeout: 10 * time.Millisecond})
	gt.NoError(t, err).Required()

	_, err = e.Embed(context.Background(), "syncope")
	gt.Error(t, err).Is(port.ErrTimeout)
	gt.Bool(t, errors.Is(err, port.ErrModelLoad)).False()
}

func TestEmbedderTimeout(t *testing.T) {
	enc := &mock.EncoderMock{
		EncodeFunc: func(ctx context.Context, text string, maxTokens int) ([][]float32, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	e, err := service.NewEmbedder(enc, service.EmbedderConfig{Timeout: 10 * time.Millisecond})
	gt.NoError(t, err).Required()

	_, err = e.Embed(context.Background(), "syncope")
	gt.Error(t, err).Is(port.ErrTimeout)
}
