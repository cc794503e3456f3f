package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

func TestGeneratorSendsPromptAsUserMessage(t *testing.T) {
	var (
		capturedAuth   string
		capturedPrompt string
		capturedModel  string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		capturedAuth = r.Header.Get("Authorization")
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedModel = payload.Model
		if len(payload.Messages) == 1 && payload.Messages[0].Role == "user" {
			capturedPrompt = payload.Messages[0].Content
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Captain Ahab.\n"}}]}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1", ChatModel: "chat-x"}, nil)
	got, err := NewGenerator(client).Complete(context.Background(), "who hunts the whale?")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "Captain Ahab." {
		t.Fatalf("unexpected completion %q", got)
	}
	if capturedAuth != "Bearer sk-test" || capturedModel != "chat-x" || capturedPrompt != "who hunts the whale?" {
		t.Fatalf("unexpected request auth=%q model=%q prompt=%q", capturedAuth, capturedModel, capturedPrompt)
	}
}

func TestEmbedderOrdersByIndexAndBatches(t *testing.T) {
	var batches []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		batches = append(batches, len(payload.Input))

		var b strings.Builder
		b.WriteString(`{"data":[`)
		for i := len(payload.Input) - 1; i >= 0; i-- {
			if i != len(payload.Input)-1 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, `{"index":%d,"embedding":[%d]}`, i, len(payload.Input[i]))
		}
		b.WriteString(`]}`)
		_, _ = w.Write([]byte(b.String()))
	}))
	defer server.Close()

	texts := make([]string, 300)
	for i := range texts {
		texts[i] = strings.Repeat("x", i%7+1)
	}
	vectors, err := NewEmbedder(New(Config{BaseURL: server.URL}, nil)).Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(batches) != 2 || batches[0] != 256 || batches[1] != 44 {
		t.Fatalf("unexpected batches %v", batches)
	}
	for i, v := range vectors {
		if int(v[0]) != len(texts[i]) {
			t.Fatalf("vector %d out of order", i)
		}
	}
}

func TestEmbedErrorIsTypedAndCarriesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer server.Close()

	_, err := NewEmbedder(New(Config{BaseURL: server.URL}, nil)).EmbedQuery(context.Background(), "hello")
	if !domain.IsKind(err, domain.ErrEmbeddingService) {
		t.Fatalf("expected embedding service error, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("401 must not be temporary")
	}
	if !strings.Contains(err.Error(), "Incorrect API key provided") {
		t.Fatalf("expected provider message in error, got %v", err)
	}
}

func TestCompletionServerErrorIsTemporary(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewGenerator(New(Config{BaseURL: server.URL}, nil)).Complete(context.Background(), "p")
	if !domain.IsKind(err, domain.ErrCompletionService) || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary completion error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("provider calls must not be retried, got %d", calls)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	vectors, err := NewEmbedder(New(Config{BaseURL: "http://127.0.0.1:1"}, nil)).Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Fatalf("expected nil result, got %v %v", vectors, err)
	}
}

func TestRateLimitedCompletionIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer server.Close()

	_, err := NewGenerator(New(Config{BaseURL: server.URL}, nil)).Complete(context.Background(), "p")
	if !domain.IsKind(err, domain.ErrCompletionService) || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary completion error, got %v", err)
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "Rate limit reached") {
		t.Fatalf("expected status and provider message in error, got %v", err)
	}
}
