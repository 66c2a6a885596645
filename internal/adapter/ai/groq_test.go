package ai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arturoeanton/go-medqa-rag/internal/adapter/ai"
	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/gt"
)

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float32          `json:"temperature"`
}

func TestGroqCompleter(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Value(t, r.URL.Path).Equal("/chat/completions")
		auth = r.Header.Get("Authorization")
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&got)).Required()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   got.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": "Rest and hydrate."},
				"finish_reason": "stop",
			}},
		})
	}))
	defer srv.Close()

	c := ai.NewGroqCompleter(ai.GroqConfig{APIKey: "gsk_test", BaseURL: srv.URL})
	out, err := c.Complete(context.Background(), []domain.Message{
		domain.SystemMessage("You are a medical assistant."),
		domain.UserMessage("fatigue"),
	}, domain.ModelLlama70B)
	gt.NoError(t, err).Required()

	gt.Value(t, out).Equal("Rest and hydrate.")
	gt.Value(t, auth).Equal("Bearer gsk_test")
	gt.Value(t, got.Model).Equal(domain.ModelLlama70B)
	gt.Value(t, got.MaxTokens).Equal(512)
	gt.Value(t, got.Temperature).Equal(float32(0.7))
	gt.Array(t, got.Messages).Length(2).Required()
	gt.Value(t, got.Messages[0].Role).Equal(domain.RoleSystem)
	gt.Value(t, c.ProviderName()).Equal("Groq API")
}

func TestGroqCompleterMissingKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := ai.NewGroqCompleter(ai.GroqConfig{BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), []domain.Message{domain.UserMessage("hi")}, domain.DefaultModel)
	gt.Error(t, err).Is(port.ErrMissingCredential)
	gt.Bool(t, called).False()
}

func TestGroqCompleterAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := ai.NewGroqCompleter(ai.GroqConfig{APIKey: "bad", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), []domain.Message{domain.UserMessage("hi")}, domain.DefaultModel)
	gt.Error(t, err).Is(port.ErrProviderError)
}

func TestGroqCompleterTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := ai.NewGroqCompleter(ai.GroqConfig{APIKey: "gsk_test", BaseURL: srv.URL})
	_, err := c.Complete(ctx, []domain.Message{domain.UserMessage("hi")}, domain.DefaultModel)
	gt.Error(t, err).Is(port.ErrTimeout)
}
