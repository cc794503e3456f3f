package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultChatModel  = openai.GPT4oMini
	DefaultEmbedModel = string(openai.SmallEmbedding3)

	embedBatchSize = 256
)

var classifyError = resilience.HTTPClassifier(resilience.RetryableStatus)

type Config struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string
	Timeout    time.Duration
}

// Client talks to an OpenAI-compatible API through go-openai. Every call is
// made once through a circuit breaker; callers decide whether to try again.
type Client struct {
	api        *openai.Client
	chatModel  string
	embedModel openai.EmbeddingModel
	executor   *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.ProviderPolicy())
	}

	sdkCfg := openai.DefaultConfig(cfg.APIKey)
	sdkCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	sdkCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:        openai.NewClientWithConfig(sdkCfg),
		chatModel:  cfg.ChatModel,
		embedModel: openai.EmbeddingModel(cfg.EmbedModel),
		executor:   executor,
	}
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

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp openai.EmbeddingResponse
	err := e.client.call(ctx, "embed", func(ctx context.Context) error {
		var err error
		resp, err = e.client.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: e.client.embedModel,
		})
		return err
	})
	if err != nil {
		return nil, resilience.ServiceError(domain.ErrEmbeddingService, "embed", err, classifyError)
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.WrapError(domain.ErrEmbeddingService, "embed",
			fmt.Errorf("vectors/texts mismatch: %d/%d", len(resp.Data), len(texts)))
	}

	sort.Slice(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})
	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingService, "embed query", fmt.Errorf("empty embedding result"))
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Complete sends prompt as a single user message and returns the first choice.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	var resp openai.ChatCompletionResponse
	err := g.client.call(ctx, "complete", func(ctx context.Context) error {
		var err error
		resp, err = g.client.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: g.client.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		return err
	})
	if err != nil {
		return "", resilience.ServiceError(domain.ErrCompletionService, "complete", err, classifyError)
	}
	if len(resp.Choices) == 0 {
		return "", domain.WrapError(domain.ErrCompletionService, "complete", fmt.Errorf("no choices in response"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	return c.executor.Execute(ctx, "openai_"+operation, func(ctx context.Context) error {
		return statusError(operation, fn(ctx))
	}, classifyError)
}

// statusError turns the SDK's HTTP failures into resilience.StatusError so the
// shared classifier sees the status code. Transport errors pass through.
func statusError(operation string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &resilience.StatusError{
			Service:    "openai",
			Operation:  operation,
			StatusCode: apiErr.HTTPStatusCode,
			Status:     statusText(apiErr.HTTPStatusCode),
			Body:       apiErr.Message,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := strings.TrimSpace(string(reqErr.Body))
		if body == "" && reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &resilience.StatusError{
			Service:    "openai",
			Operation:  operation,
			StatusCode: reqErr.HTTPStatusCode,
			Status:     statusText(reqErr.HTTPStatusCode),
			Body:       body,
		}
	}
	return err
}

func statusText(code int) string {
	return fmt.Sprintf("%d %s", code, http.StatusText(code))
}
