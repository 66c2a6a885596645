package port

import (
	"context"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
)

// Encoder runs a pretrained text encoder and exposes its per-token hidden states.
// Implementations can target a text-embeddings-inference server, Ollama, or Gemini.
type Encoder interface {
	// ModelName returns the identifier of the encoder model.
	ModelName() string

	// Load prepares the model. It is called once, before the first Encode.
	Load(ctx context.Context) error

	// Encode returns one hidden-state vector per token of text after truncating it
	// to at most maxTokens tokens. Encoders that only expose pooled vectors return a
	// single row.
	Encode(ctx context.Context, text string, maxTokens int) ([][]float32, error)
}

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.Embedding, error)
}

// Completer abstracts the hosted chat-completion API.
type Completer interface {
	// ProviderName is used in attribution lines, e.g. "Groq API".
	ProviderName() string

	// Complete sends the messages to model and returns the generated text.
	Complete(ctx context.Context, messages []domain.Message, model string) (string, error)
}
