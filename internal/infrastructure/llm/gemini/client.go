package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/infrastructure/resilience"
)

const (
	DefaultChatModel  = "gemini-2.5-flash"
	DefaultEmbedModel = "text-embedding-004"

	embedBatchSize = 100
)

// api is the slice of the genai SDK this package uses.
type api interface {
	embedBatch(ctx context.Context, taskType genai.TaskType, texts []string) ([][]float32, error)
	generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

type sdkAPI struct {
	client     *genai.Client
	chatModel  string
	embedModel string
}

func (s *sdkAPI) embedBatch(ctx context.Context, taskType genai.TaskType, texts []string) ([][]float32, error) {
	model := s.client.EmbeddingModel(s.embedModel)
	model.TaskType = taskType

	batch := model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}
	resp, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("empty embedding in batch response")
		}
		out = append(out, emb.Values)
	}
	return out, nil
}

func (s *sdkAPI) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.GenerativeModel(s.chatModel).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	var parts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				parts = append(parts, string(text))
			}
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text candidates in response")
	}
	return strings.Join(parts, "\n"), nil
}

func (s *sdkAPI) Close() error {
	return s.client.Close()
}

// Client wraps the Gemini SDK for embeddings and completions.
type Client struct {
	api      api
	executor *resilience.Executor
}

func New(ctx context.Context, apiKey, chatModel, embedModel string, executor *resilience.Executor) (*Client, error) {
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	if embedModel == "" {
		embedModel = DefaultEmbedModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newWithAPI(&sdkAPI{client: client, chatModel: chatModel, embedModel: embedModel}, executor), nil
}

func newWithAPI(a api, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.ProviderPolicy())
	}
	return &Client{api: a, executor: executor}
}

func (c *Client) Close() error {
	return c.api.Close()
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, genai.TaskTypeRetrievalDocument, texts)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, genai.TaskTypeRetrievalQuery, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) embed(ctx context.Context, taskType genai.TaskType, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		var vectors [][]float32
		err := e.client.executor.Execute(ctx, "gemini_embed", func(ctx context.Context) error {
			var err error
			vectors, err = e.client.api.embedBatch(ctx, taskType, texts[start:end])
			return err
		}, classifyGeminiError)
		if err != nil {
			return nil, resilience.ServiceError(domain.ErrEmbeddingService, "embed", err, classifyGeminiError)
		}
		if len(vectors) != end-start {
			return nil, domain.WrapError(domain.ErrEmbeddingService, "embed",
				fmt.Errorf("vectors/texts mismatch: %d/%d", len(vectors), end-start))
		}
		out = append(out, vectors...)
	}
	return out, nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	var text string
	err := g.client.executor.Execute(ctx, "gemini_generate", func(ctx context.Context) error {
		var err error
		text, err = g.client.api.generate(ctx, prompt)
		return err
	}, classifyGeminiError)
	if err != nil {
		return "", resilience.ServiceError(domain.ErrCompletionService, "generate", err, classifyGeminiError)
	}
	return strings.TrimSpace(text), nil
}

func classifyGeminiError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		retryable := apiErr.Code == 429 || apiErr.Code >= 500
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
