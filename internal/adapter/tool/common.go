package tool

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/goerr/v2"
)

// maxContextChars caps each retrieved document before it goes into a prompt.
const maxContextChars = 1500

// Timeouts bounds each external call a tool makes. Zero means no bound.
type Timeouts struct {
	Vector     time.Duration
	Search     time.Duration
	Completion time.Duration
}

func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// wrapCall tags deadline errors with ErrTimeout and keeps every other error's chain.
func wrapCall(err error, msg string, opts ...goerr.Option) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, port.ErrTimeout) {
		return goerr.Wrap(port.ErrTimeout, msg, append(opts, goerr.V("detail", err.Error()))...)
	}
	return goerr.Wrap(err, msg, opts...)
}

// truncateRunes keeps at most n characters of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func joinTruncated(texts []string, n int, sep string) string {
	parts := make([]string, len(texts))
	for i, t := range texts {
		parts[i] = truncateRunes(t, n)
	}
	return strings.Join(parts, sep)
}

// complete runs one completion under the configured bound.
func complete(ctx context.Context, completer port.Completer, timeout time.Duration, messages []domain.Message, model string) (string, error) {
	ctx, cancel := bounded(ctx, timeout)
	defer cancel()

	out, err := completer.Complete(ctx, messages, model)
	if err != nil {
		return "", wrapCall(err, "completion failed", goerr.V("model", model))
	}
	return out, nil
}

// retrieve embeds text and returns the k nearest documents of collection.
func retrieve(ctx context.Context, embedder port.Embedder, store port.VectorStore, timeout time.Duration, collection, text string, k int) (*domain.RetrievalResult, error) {
	embedding, err := embedder.Embed(ctx, text)
	if err != nil {
		return nil, wrapCall(err, "embedding failed")
	}

	ctx, cancel := bounded(ctx, timeout)
	defer cancel()

	result, err := store.Query(ctx, collection, embedding, k)
	if err != nil {
		return nil, wrapCall(err, "vector query failed", goerr.V("collection", collection), goerr.V("k", k))
	}
	return result, nil
}

func poweredBy(providers ...string) string {
	return strings.Join(providers, " + ")
}
