// Package mock provides test doubles for the ports. Each double delegates to its
// func fields and records the calls it received.
package mock

import (
	"context"
	"sync"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
)

var (
	_ port.Encoder         = (*EncoderMock)(nil)
	_ port.Embedder        = (*EmbedderMock)(nil)
	_ port.Completer       = (*CompleterMock)(nil)
	_ port.VectorStore     = (*VectorStoreMock)(nil)
	_ port.WebSearcher     = (*WebSearcherMock)(nil)
	_ port.PhraseExtractor = (*PhraseExtractorMock)(nil)
	_ port.Tool            = (*ToolMock)(nil)
)

// EncoderMock is a port.Encoder double.
type EncoderMock struct {
	LoadFunc   func(ctx context.Context) error
	EncodeFunc func(ctx context.Context, text string, maxTokens int) ([][]float32, error)

	mu          sync.Mutex
	LoadCalls   int
	EncodeCalls []EncodeCall
}

// EncodeCall records one Encode invocation.
type EncodeCall struct {
	Text      string
	MaxTokens int
}

func (m *EncoderMock) ModelName() string { return "mock-encoder" }

func (m *EncoderMock) Load(ctx context.Context) error {
	m.mu.Lock()
	m.LoadCalls++
	m.mu.Unlock()
	if m.LoadFunc == nil {
		return nil
	}
	return m.LoadFunc(ctx)
}

func (m *EncoderMock) Encode(ctx context.Context, text string, maxTokens int) ([][]float32, error) {
	m.mu.Lock()
	m.EncodeCalls = append(m.EncodeCalls, EncodeCall{Text: text, MaxTokens: maxTokens})
	m.mu.Unlock()
	if m.EncodeFunc == nil {
		return [][]float32{{1, 0}}, nil
	}
	return m.EncodeFunc(ctx, text, maxTokens)
}

// EmbedderMock is a port.Embedder double.
type EmbedderMock struct {
	EmbedFunc func(ctx context.Context, text string) (domain.Embedding, error)

	mu         sync.Mutex
	EmbedCalls []string
}

func (m *EmbedderMock) Embed(ctx context.Context, text string) (domain.Embedding, error) {
	m.mu.Lock()
	m.EmbedCalls = append(m.EmbedCalls, text)
	m.mu.Unlock()
	if m.EmbedFunc == nil {
		return domain.Embedding{1, 0, 0}, nil
	}
	return m.EmbedFunc(ctx, text)
}

// CompleterMock is a port.Completer double.
type CompleterMock struct {
	Provider     string
	CompleteFunc func(ctx context.Context, messages []domain.Message, model string) (string, error)

	mu            sync.Mutex
	CompleteCalls []CompleteCall
}

// CompleteCall records one Complete invocation.
type CompleteCall struct {
	Messages []domain.Message
	Model    string
}

func (m *CompleterMock) ProviderName() string {
	if m.Provider == "" {
		return "Groq API"
	}
	return m.Provider
}

func (m *CompleterMock) Complete(ctx context.Context, messages []domain.Message, model string) (string, error) {
	m.mu.Lock()
	m.CompleteCalls = append(m.CompleteCalls, CompleteCall{Messages: messages, Model: model})
	m.mu.Unlock()
	if m.CompleteFunc == nil {
		return "ok", nil
	}
	return m.CompleteFunc(ctx, messages, model)
}

// Calls returns a snapshot of the recorded calls.
func (m *CompleterMock) Calls() []CompleteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompleteCall(nil), m.CompleteCalls...)
}

// VectorStoreMock is a port.VectorStore double.
type VectorStoreMock struct {
	AddFunc   func(ctx context.Context, collection string, documents []string, embeddings []domain.Embedding, metadatas []domain.Metadata) ([]string, error)
	QueryFunc func(ctx context.Context, collection string, embedding domain.Embedding, k int) (*domain.RetrievalResult, error)
	CountFunc func(ctx context.Context, collection string) (int, error)

	mu         sync.Mutex
	QueryCalls []QueryCall
}

// QueryCall records one Query invocation.
type QueryCall struct {
	Collection string
	K          int
}

func (m *VectorStoreMock) Add(ctx context.Context, collection string, documents []string, embeddings []domain.Embedding, metadatas []domain.Metadata) ([]string, error) {
	if m.AddFunc == nil {
		return nil, nil
	}
	return m.AddFunc(ctx, collection, documents, embeddings, metadatas)
}

func (m *VectorStoreMock) Query(ctx context.Context, collection string, embedding domain.Embedding, k int) (*domain.RetrievalResult, error) {
	m.mu.Lock()
	m.QueryCalls = append(m.QueryCalls, QueryCall{Collection: collection, K: k})
	m.mu.Unlock()
	if m.QueryFunc == nil {
		return &domain.RetrievalResult{Collection: collection}, nil
	}
	return m.QueryFunc(ctx, collection, embedding, k)
}

func (m *VectorStoreMock) Count(ctx context.Context, collection string) (int, error) {
	if m.CountFunc == nil {
		return 0, nil
	}
	return m.CountFunc(ctx, collection)
}

func (m *VectorStoreMock) Close() error { return nil }

// WebSearcherMock is a port.WebSearcher double.
type WebSearcherMock struct {
	SearchFunc func(ctx context.Context, query string) ([]domain.SearchResult, error)

	mu          sync.Mutex
	SearchCalls []string
}

func (m *WebSearcherMock) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	m.mu.Lock()
	m.SearchCalls = append(m.SearchCalls, query)
	m.mu.Unlock()
	if m.SearchFunc == nil {
		return nil, nil
	}
	return m.SearchFunc(ctx, query)
}

// PhraseExtractorMock is a port.PhraseExtractor double.
type PhraseExtractorMock struct {
	NounPhrasesFunc func(text string) []string
}

func (m *PhraseExtractorMock) NounPhrases(text string) []string {
	if m.NounPhrasesFunc == nil {
		return []string{text}
	}
	return m.NounPhrasesFunc(text)
}

// ToolMock is a port.Tool double.
type ToolMock struct {
	NameValue string
	RunFunc   func(ctx context.Context, req port.ToolRequest) (*domain.ToolResponse, error)

	mu       sync.Mutex
	RunCalls []port.ToolRequest
}

func (m *ToolMock) Name() string        { return m.NameValue }
func (m *ToolMock) Description() string { return "mock tool " + m.NameValue }

func (m *ToolMock) Run(ctx context.Context, req port.ToolRequest) (*domain.ToolResponse, error) {
	m.mu.Lock()
	m.RunCalls = append(m.RunCalls, req)
	m.mu.Unlock()
	if m.RunFunc == nil {
		return &domain.ToolResponse{Tool: m.NameValue, Body: "ran " + m.NameValue}, nil
	}
	return m.RunFunc(ctx, req)
}
