package ai

import (
	"context"
	"strings"
	"sync"

	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem/llm/gemini"
)

// embeddingGenerator is the subset of gollem.LLMClient the encoder needs.
type embeddingGenerator interface {
	GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

// GeminiConfig holds the Vertex AI settings for Gemini embeddings.
type GeminiConfig struct {
	ProjectID string
	Location  string
	Dimension int
}

// GeminiEncoder implements port.Encoder with Gemini text embeddings via gollem.
// Like Ollama it only exposes a pooled vector.
type GeminiEncoder struct {
	cfg GeminiConfig

	mu     sync.Mutex
	client embeddingGenerator
}

var _ port.Encoder = (*GeminiEncoder)(nil)

// NewGeminiEncoder creates a Gemini-backed encoder. The client is created on Load.
func NewGeminiEncoder(cfg GeminiConfig) *GeminiEncoder {
	return &GeminiEncoder{cfg: cfg}
}

func newGeminiEncoderWithClient(cfg GeminiConfig, client embeddingGenerator) *GeminiEncoder {
	return &GeminiEncoder{cfg: cfg, client: client}
}

// ModelName returns the embedding model identifier.
func (g *GeminiEncoder) ModelName() string {
	return "gemini-embedding"
}

// Load creates the Vertex AI client.
func (g *GeminiEncoder) Load(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return nil
	}
	if g.cfg.ProjectID == "" {
		return goerr.Wrap(port.ErrModelLoad, "gemini project id is not configured")
	}

	client, err := gemini.New(ctx, g.cfg.ProjectID, g.cfg.Location)
	if err != nil {
		return goerr.Wrap(port.ErrModelLoad, "failed to create Gemini client",
			goerr.V("project_id", g.cfg.ProjectID), goerr.V("detail", err.Error()))
	}
	g.client = client
	return nil
}

// Encode embeds text cut to maxTokens. Gemini exposes no tokenizer here, so
// the budget counts whitespace-separated words, an approximation of tokens.
func (g *GeminiEncoder) Encode(ctx context.Context, text string, maxTokens int) ([][]float32, error) {
	g.mu.Lock()
	client := g.client
	g.mu.Unlock()
	if client == nil {
		return nil, goerr.Wrap(port.ErrModelLoad, "gemini client is not loaded")
	}

	embeddings, err := client.GenerateEmbedding(ctx, g.cfg.Dimension, []string{truncateWords(text, maxTokens-specialTokens)})
	if err != nil {
		return nil, callError(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.Wrap(port.ErrProviderError, "no embedding returned")
	}

	row := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		row[i] = float32(v)
	}
	return [][]float32{row}, nil
}

func truncateWords(text string, budget int) string {
	words := strings.Fields(text)
	if budget < 1 {
		budget = 1
	}
	if len(words) <= budget {
		return text
	}
	return strings.Join(words[:budget], " ")
}
