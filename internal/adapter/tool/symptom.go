package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/arturoeanton/go-medqa-rag/internal/adapter/search"
	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/goerr/v2"
)

const (
	symptomTopResults = 3
	symptomSystem     = "You are a medical assistant using trusted web sources to explain symptom causes."
)

// SymptomTool explains likely causes of a symptom from trusted web sources.
// It never reads the vector store.
type SymptomTool struct {
	searcher  port.WebSearcher
	completer port.Completer
	timeouts  Timeouts
}

func NewSymptomTool(searcher port.WebSearcher, completer port.Completer, timeouts Timeouts) *SymptomTool {
	return &SymptomTool{searcher: searcher, completer: completer, timeouts: timeouts}
}

func (t *SymptomTool) Name() string { return domain.ToolSymptomSearch }
func (t *SymptomTool) Description() string {
	return "Likely causes of a symptom from trusted medical websites"
}

func (t *SymptomTool) Run(ctx context.Context, req port.ToolRequest) (*domain.ToolResponse, error) {
	results, err := t.search(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	hits := usableResults(results, symptomTopResults)
	if len(hits) == 0 {
		return nil, goerr.Wrap(port.ErrNoSearchResults, "no trusted result with snippet", goerr.V("query", req.Query))
	}

	snippets := make([]string, len(hits))
	sources := make([]string, len(hits))
	for i, r := range hits {
		snippets[i] = fmt.Sprintf("%s (Source: %s)", r.Snippet, r.Domain())
		sources[i] = r.Link
	}

	messages := []domain.Message{
		domain.SystemMessage(symptomSystem),
		domain.AssistantMessage(strings.Join(snippets, "\n\n")),
		domain.UserMessage(fmt.Sprintf("What could be the cause of: %s?", req.Query)),
	}
	answer, err := complete(ctx, t.completer, t.timeouts.Completion, messages, req.Model)
	if err != nil {
		return nil, err
	}

	return &domain.ToolResponse{
		Tool:      t.Name(),
		Body:      answer,
		Sources:   sources,
		PoweredBy: poweredBy(search.SerpAPIProviderName, t.completer.ProviderName()),
	}, nil
}

func (t *SymptomTool) search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	ctx, cancel := bounded(ctx, t.timeouts.Search)
	defer cancel()

	results, err := t.searcher.Search(ctx, query)
	if err != nil {
		return nil, wrapCall(err, "web search failed")
	}
	return results, nil
}

// usableResults keeps the first n trusted results that carry both a snippet and a link.
func usableResults(results []domain.SearchResult, n int) []domain.SearchResult {
	var out []domain.SearchResult
	for _, r := range results {
		if len(out) == n {
			break
		}
		if r.Snippet == "" || r.Link == "" || !r.IsTrusted() {
			continue
		}
		out = append(out, r)
	}
	return out
}
