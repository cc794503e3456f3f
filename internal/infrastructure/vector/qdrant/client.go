package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/core/ports"
	"github.com/kirillkom/book-qa/internal/infrastructure/resilience"
)

const upsertBatchSize = 256

// Client keeps one generation of chunk embeddings in a Qdrant collection.
// Rebuild drops and recreates the collection.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	embedder   ports.Embedder
	executor   *resilience.Executor
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithDestroyExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		if executor != nil {
			c.executor = executor
		}
	}
}

func New(baseURL, collection string, embedder ports.Embedder, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		embedder:   embedder,
		executor:   resilience.NewExecutor(resilience.DestroyPolicy()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// A busy collection answers 409 while another request still holds it.
var classifyError = resilience.HTTPClassifier(func(code int) bool {
	return code == http.StatusConflict || resilience.RetryableStatus(code)
})

func (c *Client) Rebuild(ctx context.Context, chunks []domain.Chunk) error {
	vectors, err := c.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	if err := c.Destroy(ctx); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	if err := c.createCollection(ctx, len(vectors[0])); err != nil {
		return domain.WrapError(domain.ErrTransientStorage, "create collection", err)
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		points := make([]point, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, point{
				ID:     pointID(chunks[i]),
				Vector: vectors[i],
				Payload: map[string]any{
					"source":      chunks[i].Source,
					"start_index": chunks[i].StartIndex,
					"text":        chunks[i].Text,
				},
			})
		}
		path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
		if _, err := c.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert"); err != nil {
			return domain.WrapError(domain.ErrTransientStorage, "write index", err)
		}
	}
	return nil
}

func (c *Client) Search(ctx context.Context, query string, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return []domain.RetrievalResult{}, nil
	}

	vector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		if domain.IsKind(err, domain.ErrEmbeddingService) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrEmbeddingService, "embed query", err)
	}

	reqBody := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	status, err := c.do(ctx, http.MethodPost, path, reqBody, &searchResp, "search")
	if status == http.StatusNotFound {
		return []domain.RetrievalResult{}, nil
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrTransientStorage, "query index", err)
	}

	out := make([]domain.RetrievalResult, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.RetrievalResult{
			Chunk: domain.Chunk{
				Source:     getStringPayload(r.Payload, "source"),
				StartIndex: getIntPayload(r.Payload, "start_index"),
				Text:       getStringPayload(r.Payload, "text"),
			},
			Score: min(max(r.Score, 0), 1),
		})
	}
	return out, nil
}

func (c *Client) Verify(ctx context.Context) bool {
	results, err := c.Search(ctx, "test", 1)
	return err == nil && len(results) >= 1
}

// Destroy drops the collection, retrying while Qdrant reports it busy.
func (c *Client) Destroy(ctx context.Context) error {
	path := fmt.Sprintf("/collections/%s", c.collection)
	err := c.executor.Execute(ctx, "destroy_index", func(ctx context.Context) error {
		status, err := c.do(ctx, http.MethodDelete, path, nil, nil, "delete collection")
		if status == http.StatusNotFound {
			return nil
		}
		return err
	}, classifyError)
	if err != nil {
		slog.Error("index_destroy_failed", "collection", c.collection, "attempts", resilience.Attempts(err), "error", err.Error())
		return domain.WrapError(domain.ErrTransientStorage, "destroy index", err)
	}
	return nil
}

func (c *Client) Count(ctx context.Context) (int, error) {
	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", c.collection)
	status, err := c.do(ctx, http.MethodPost, path, map[string]any{"exact": true}, &countResp, "count")
	if status == http.StatusNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, domain.WrapError(domain.ErrTransientStorage, "count index", err)
	}
	return countResp.Result.Count, nil
}

func (c *Client) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		if domain.IsKind(err, domain.ErrEmbeddingService) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrEmbeddingService, "embed chunks", err)
	}
	if len(vectors) != len(chunks) || len(vectors[0]) == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingService, "embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)))
	}
	return vectors, nil
}

func (c *Client) createCollection(ctx context.Context, vectorSize int) error {
	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	path := fmt.Sprintf("/collections/%s", c.collection)
	_, err := c.do(ctx, http.MethodPut, path, reqBody, nil, "create collection")
	return err
}

func (c *Client) do(ctx context.Context, method, path string, reqBody any, out any, operation string) (int, error) {
	var body io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return 0, fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("create %s request: %w", operation, err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return resp.StatusCode, &resilience.StatusError{
			Service:    "qdrant",
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", operation, err)
		}
	}
	return resp.StatusCode, nil
}

// pointID derives a stable UUID from the chunk identity, since Qdrant only
// accepts integers or UUIDs.
func pointID(chunk domain.Chunk) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunk.ID())).String()
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
