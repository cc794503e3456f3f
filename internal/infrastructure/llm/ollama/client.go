package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/infrastructure/resilience"
)

var classifyError = resilience.HTTPClassifier(resilience.RetryableStatus)

// Client talks to a local Ollama server. No API key is involved, which makes
// it the offline alternative to the hosted providers.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.ProviderPolicy())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out embedResponse
	err := e.client.call(ctx, "embed", "/api/embed", embedRequest{Model: e.client.embedModel, Input: texts}, &out)
	if err != nil {
		return nil, resilience.ServiceError(domain.ErrEmbeddingService, "embed", err, classifyError)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, domain.WrapError(domain.ErrEmbeddingService, "embed",
			fmt.Errorf("got %d vectors for %d texts", len(out.Embeddings), len(texts)))
	}
	return out.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Generator sends the rendered prompt as a single non-streaming generation.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	var out generateResponse
	err := g.client.call(ctx, "generate", "/api/generate", generateRequest{Model: g.client.genModel, Prompt: prompt}, &out)
	if err != nil {
		return "", resilience.ServiceError(domain.ErrCompletionService, "generate", err, classifyError)
	}
	return strings.TrimSpace(out.Response), nil
}

func (c *Client) call(ctx context.Context, operation, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	return c.executor.Execute(ctx, "ollama_"+operation, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("ollama %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusMultipleChoices {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &resilience.StatusError{
				Service:    "ollama",
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       ollamaMessage(raw),
			}
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}, classifyError)
}

// ollamaMessage unwraps {"error": "..."} bodies.
func ollamaMessage(raw []byte) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
		return envelope.Error
	}
	return strings.TrimSpace(string(raw))
}
