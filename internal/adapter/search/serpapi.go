package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultSerpAPIURL is the SerpAPI search endpoint.
const DefaultSerpAPIURL = "https://serpapi.com/search"

// SerpAPIProviderName appears in "Powered by" attribution lines.
const SerpAPIProviderName = "SERP API"

// SerpAPI implements port.WebSearcher with SerpAPI's Google engine, restricted
// to the trusted medical domains.
type SerpAPI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ port.WebSearcher = (*SerpAPI)(nil)

// NewSerpAPI creates a SerpAPI client. An empty apiKey is reported on Search.
func NewSerpAPI(apiKey, baseURL string) *SerpAPI {
	if baseURL == "" {
		baseURL = DefaultSerpAPIURL
	}
	return &SerpAPI{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// BuildQuery appends the cause phrasing and the site restriction to the user query.
func BuildQuery(query string) string {
	sites := make([]string, len(domain.TrustedDomains))
	for i, d := range domain.TrustedDomains {
		sites[i] = "site:" + d
	}
	return fmt.Sprintf("%s possible causes %s", query, strings.Join(sites, " OR "))
}

type serpResponse struct {
	Error          string                `json:"error"`
	OrganicResults []domain.SearchResult `json:"organic_results"`
}

// Search returns the organic results in ranking order.
func (s *SerpAPI) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if s.apiKey == "" {
		return nil, goerr.Wrap(port.ErrMissingCredential, "Missing SERPAPI_KEY in environment variables")
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", BuildQuery(query))
	params.Set("api_key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "create serpapi request")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, goerr.Wrap(port.ErrTimeout, "serpapi search", goerr.V("detail", err.Error()))
		}
		return nil, goerr.Wrap(port.ErrProviderError, "serpapi search", goerr.V("detail", err.Error()))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(port.ErrProviderError, "read serpapi response", goerr.V("detail", err.Error()))
	}

	var out serpResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, goerr.Wrap(port.ErrProviderError, "decode serpapi response",
			goerr.V("status", resp.StatusCode), goerr.V("detail", err.Error()))
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return nil, goerr.Wrap(port.ErrProviderError, "serpapi error",
			goerr.V("status", resp.StatusCode), goerr.V("detail", out.Error))
	}

	return out.OrganicResults, nil
}
