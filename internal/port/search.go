package port

import (
	"context"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
)

// WebSearcher queries an external web search provider.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}

// PhraseExtractor finds noun phrases in free text.
type PhraseExtractor interface {
	NounPhrases(text string) []string
}
