package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/goerr/v2"
)

// specialTokens is the number of tokens ([CLS], [SEP]) a BERT tokenizer adds
// around the text. They count against maxTokens.
const specialTokens = 2

// TEIConfig describes a text-embeddings-inference server.
type TEIConfig struct {
	BaseURL string // e.g. http://localhost:8080
	Model   string // e.g. dmis-lab/biobert-base-cased-v1.1
	Token   string // Bearer token (empty = no auth)
}

// TEIEncoder implements port.Encoder against a text-embeddings-inference
// server. /embed_all exposes the last hidden state, one vector per token.
type TEIEncoder struct {
	cfg        TEIConfig
	httpClient *http.Client
}

var _ port.Encoder = (*TEIEncoder)(nil)

// NewTEIEncoder creates a TEI-backed encoder.
func NewTEIEncoder(cfg TEIConfig) *TEIEncoder {
	return &TEIEncoder{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// ModelName returns the configured model identifier.
func (e *TEIEncoder) ModelName() string {
	return e.cfg.Model
}

type teiInfo struct {
	ModelID        string `json:"model_id"`
	MaxInputLength int    `json:"max_input_length"`
}

// Load checks the server is up and serving the configured model.
func (e *TEIEncoder) Load(ctx context.Context) error {
	body, err := e.do(ctx, http.MethodGet, "/info", nil)
	if err != nil {
		return goerr.Wrap(port.ErrModelLoad, "tei info", goerr.V("url", e.cfg.BaseURL), goerr.V("detail", err.Error()))
	}

	var info teiInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return goerr.Wrap(port.ErrModelLoad, "tei info decode", goerr.V("detail", err.Error()))
	}
	if e.cfg.Model != "" && info.ModelID != "" && info.ModelID != e.cfg.Model {
		return goerr.Wrap(port.ErrModelLoad, "tei serves a different model",
			goerr.V("want", e.cfg.Model), goerr.V("got", info.ModelID))
	}
	return nil
}

type teiToken struct {
	ID      int    `json:"id"`
	Text    string `json:"text"`
	Special bool   `json:"special"`
	Start   *int   `json:"start"`
	Stop    *int   `json:"stop"`
}

// Encode truncates text to maxTokens tokens and returns the hidden state of
// every remaining token.
func (e *TEIEncoder) Encode(ctx context.Context, text string, maxTokens int) ([][]float32, error) {
	truncated, err := e.truncate(ctx, text, maxTokens)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"inputs":   truncated,
		"truncate": true,
	}
	body, err := e.do(ctx, http.MethodPost, "/embed_all", payload)
	if err != nil {
		return nil, callError(err, "tei embed_all", goerr.V("model", e.cfg.Model))
	}

	var states [][][]float32
	if err := json.Unmarshal(body, &states); err != nil {
		return nil, goerr.Wrap(port.ErrProviderError, "tei embed_all decode", goerr.V("detail", err.Error()))
	}
	if len(states) == 0 || len(states[0]) == 0 {
		return nil, goerr.Wrap(port.ErrProviderError, "tei embed_all: empty response")
	}
	return states[0], nil
}

// truncate cuts text at the end offset of the last token that fits.
func (e *TEIEncoder) truncate(ctx context.Context, text string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		return text, nil
	}

	payload := map[string]interface{}{
		"inputs":             text,
		"add_special_tokens": false,
	}
	body, err := e.do(ctx, http.MethodPost, "/tokenize", payload)
	if err != nil {
		return "", callError(err, "tei tokenize", goerr.V("model", e.cfg.Model))
	}

	var tokens [][]teiToken
	if err := json.Unmarshal(body, &tokens); err != nil {
		return "", goerr.Wrap(port.ErrProviderError, "tei tokenize decode", goerr.V("detail", err.Error()))
	}
	if len(tokens) == 0 {
		return text, nil
	}

	budget := maxTokens - specialTokens
	if budget < 1 {
		budget = 1
	}
	if len(tokens[0]) <= budget {
		return text, nil
	}

	last := tokens[0][budget-1]
	if last.Stop == nil || *last.Stop <= 0 || *last.Stop > len(text) {
		return text, nil
	}
	cut := *last.Stop
	for cut > 0 && !utf8.ValidString(text[:cut]) {
		cut--
	}
	return strings.TrimSpace(text[:cut]), nil
}

// do sends a request to the TEI server (with optional bearer token).
func (e *TEIEncoder) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(payloadBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(e.cfg.BaseURL, "/")+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.Token)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tei API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
