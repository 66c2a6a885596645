package ai

import (
	"context"
	"errors"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
)

// GroqProviderName appears in "Powered by" attribution lines.
const GroqProviderName = "Groq API"

// GroqConfig holds the settings for the Groq OpenAI-compatible endpoint.
type GroqConfig struct {
	APIKey  string
	BaseURL string // e.g. https://api.groq.com/openai/v1
	Params  domain.ModelConfig
}

// GroqCompleter implements port.Completer against Groq's chat completions API.
type GroqCompleter struct {
	cfg    GroqConfig
	client *openai.Client
}

var _ port.Completer = (*GroqCompleter)(nil)

// NewGroqCompleter creates a completer. An empty API key is accepted here and
// reported on every Complete call instead, so the rest of the app still runs.
func NewGroqCompleter(cfg GroqConfig) *GroqCompleter {
	if cfg.Params == (domain.ModelConfig{}) {
		cfg.Params = domain.DefaultModelConfig
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &GroqCompleter{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

func (g *GroqCompleter) ProviderName() string {
	return GroqProviderName
}

// Complete sends messages to model and returns the first choice's content.
func (g *GroqCompleter) Complete(ctx context.Context, messages []domain.Message, model string) (string, error) {
	if g.cfg.APIKey == "" {
		return "", goerr.Wrap(port.ErrMissingCredential, "GROQ_API_KEY environment variable not set")
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   g.cfg.Params.MaxTokens,
		Temperature: g.cfg.Params.Temperature,
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		opts := []goerr.Option{goerr.V("model", model)}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			opts = append(opts, goerr.V("status", apiErr.HTTPStatusCode))
		}
		return "", callError(err, "groq chat completion", opts...)
	}
	if len(resp.Choices) == 0 {
		return "", goerr.Wrap(port.ErrProviderError, "groq returned no choices", goerr.V("model", model))
	}

	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}
