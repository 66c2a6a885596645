package ai

import (
	"context"
	"net/http"
	"net/url"

	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/goerr/v2"
	"github.com/ollama/ollama/api"
)

// OllamaConfig holds the configuration for an Ollama endpoint.
type OllamaConfig struct {
	BaseURL string // e.g. http://localhost:11434
	Model   string // e.g. nomic-embed-text
}

// OllamaEncoder implements port.Encoder using the Ollama embeddings API.
// Ollama only returns pooled vectors, so Encode yields a single row.
type OllamaEncoder struct {
	cfg    OllamaConfig
	client *api.Client
}

var _ port.Encoder = (*OllamaEncoder)(nil)

// NewOllamaEncoder creates an Ollama-backed encoder.
func NewOllamaEncoder(cfg OllamaConfig) (*OllamaEncoder, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid ollama url", goerr.V("url", cfg.BaseURL))
	}
	return &OllamaEncoder{
		cfg:    cfg,
		client: api.NewClient(base, &http.Client{}),
	}, nil
}

// ModelName returns the embedding model identifier.
func (o *OllamaEncoder) ModelName() string {
	return o.cfg.Model
}

// Load verifies the model is present on the Ollama server.
func (o *OllamaEncoder) Load(ctx context.Context) error {
	if _, err := o.client.Show(ctx, &api.ShowRequest{Model: o.cfg.Model}); err != nil {
		return goerr.Wrap(port.ErrModelLoad, "ollama show",
			goerr.V("model", o.cfg.Model), goerr.V("detail", err.Error()))
	}
	return nil
}

// Encode embeds text with the context window capped at maxTokens.
func (o *OllamaEncoder) Encode(ctx context.Context, text string, maxTokens int) ([][]float32, error) {
	req := &api.EmbeddingRequest{
		Model:  o.cfg.Model,
		Prompt: text,
	}
	if maxTokens > 0 {
		req.Options = map[string]interface{}{"num_ctx": maxTokens}
	}

	resp, err := o.client.Embeddings(ctx, req)
	if err != nil {
		return nil, callError(err, "ollama embeddings", goerr.V("model", o.cfg.Model))
	}
	if len(resp.Embedding) == 0 {
		return nil, goerr.Wrap(port.ErrProviderError, "ollama embeddings: empty response", goerr.V("model", o.cfg.Model))
	}

	row := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		row[i] = float32(v)
	}
	return [][]float32{row}, nil
}
