package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultMaxTokens is the encoder input budget, special tokens included.
const DefaultMaxTokens = 128

// EmbedderConfig tunes the Embedder.
type EmbedderConfig struct {
	MaxTokens int
	CacheSize int           // 0 disables the cache
	Timeout   time.Duration // per Load and Encode call; 0 means no bound
}

// Embedder turns text into a mean-pooled sentence vector. The encoder is
// loaded on first use and kept once a load succeeds; a failed load is tried
// again on the next call.
type Embedder struct {
	encoder port.Encoder
	cfg     EmbedderConfig
	cache   *lru.Cache[string, domain.Embedding]

	loadMu sync.Mutex
	loaded bool
}

var _ port.Embedder = (*Embedder)(nil)

// NewEmbedder wraps encoder.
func NewEmbedder(encoder port.Encoder, cfg EmbedderConfig) (*Embedder, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	e := &Embedder{encoder: encoder, cfg: cfg}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, domain.Embedding](cfg.CacheSize)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create embedding cache", goerr.V("size", cfg.CacheSize))
		}
		e.cache = cache
	}
	return e, nil
}

// Load loads the encoder if it has not been loaded yet. Failures caused by
// the caller's context or the load timeout are not reported as ModelLoad.
func (e *Embedder) Load(ctx context.Context) error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	if e.loaded {
		return nil
	}

	loadCtx, cancel := e.bound(ctx)
	defer cancel()

	start := time.Now()
	if err := e.encoder.Load(loadCtx); err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded) || loadCtx.Err() == context.DeadlineExceeded:
			return goerr.Wrap(port.ErrTimeout, "embedding model load timed out",
				goerr.V("model", e.encoder.ModelName()), goerr.V("timeout", e.cfg.Timeout))
		case ctx.Err() != nil || errors.Is(err, context.Canceled):
			return goerr.Wrap(err, "embedding model load cancelled", goerr.V("model", e.encoder.ModelName()))
		}
		slog.Error("embedding model failed to load", "model", e.encoder.ModelName(), "error", err)
		return asModelLoad(err, e.encoder.ModelName())
	}
	e.loaded = true
	slog.Info("embedding model loaded", "model", e.encoder.ModelName(), "elapsed", time.Since(start))
	return nil
}

// Embed returns the mean of the per-token hidden states of text truncated to MaxTokens.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.Embedding, error) {
	if err := e.Load(ctx); err != nil {
		return nil, err
	}

	if e.cache != nil {
		if v, ok := e.cache.Get(text); ok {
			return clone(v), nil
		}
	}

	encodeCtx, cancel := e.bound(ctx)
	defer cancel()

	states, err := e.encoder.Encode(encodeCtx, text, e.cfg.MaxTokens)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || encodeCtx.Err() == context.DeadlineExceeded {
			return nil, goerr.Wrap(port.ErrTimeout, "embedding timed out",
				goerr.V("model", e.encoder.ModelName()), goerr.V("timeout", e.cfg.Timeout))
		}
		return nil, goerr.Wrap(err, "failed to encode text", goerr.V("model", e.encoder.ModelName()))
	}

	pooled, err := MeanPool(states)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to pool hidden states", goerr.V("model", e.encoder.ModelName()))
	}

	if e.cache != nil {
		e.cache.Add(text, clone(pooled))
	}
	return pooled, nil
}

// MeanPool averages token vectors component-wise.
func MeanPool(states [][]float32) (domain.Embedding, error) {
	if len(states) == 0 {
		return nil, goerr.Wrap(port.ErrProviderError, "encoder returned no hidden states")
	}
	dim := len(states[0])
	sum := make([]float64, dim)
	for i, row := range states {
		if len(row) != dim {
			return nil, goerr.Wrap(port.ErrDimensionMismatch, "ragged hidden states",
				goerr.V("row", i), goerr.V("want", dim), goerr.V("got", len(row)))
		}
		for j, v := range row {
			sum[j] += float64(v)
		}
	}

	out := make(domain.Embedding, dim)
	n := float64(len(states))
	for j := range sum {
		out[j] = float32(sum[j] / n)
	}
	return out, nil
}

func (e *Embedder) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, e.cfg.Timeout)
	}
	return ctx, func() {}
}

func asModelLoad(err error, model string) error {
	if errors.Is(err, port.ErrModelLoad) {
		return err
	}
	return goerr.Wrap(port.ErrModelLoad, "failed to load embedding model",
		goerr.V("model", model), goerr.V("detail", err.Error()))
}

func clone(v domain.Embedding) domain.Embedding {
	return append(domain.Embedding(nil), v...)
}
