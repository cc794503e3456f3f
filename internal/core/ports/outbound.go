package ports

import (
	"context"
	"io"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

// Workspace stores uploaded sources and their converted text side by side.
type Workspace interface {
	Save(ctx context.Context, name string, data io.Reader) (path string, size int64, err error)
	Remove(ctx context.Context, name string) error
	ListText(ctx context.Context) ([]domain.TextDocument, error)
	Reset(ctx context.Context) error
}

// DocumentInspector validates an upload at the boundary and reports its page count.
type DocumentInspector interface {
	Inspect(data []byte) (pages int, err error)
}

// TextExtractor converts a stored source document into markdown text.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// DependencyChecker verifies external engines before any input is accepted.
type DependencyChecker interface {
	Check(ctx context.Context) error
}

// Chunker splits documents into overlapping positioned chunks.
type Chunker interface {
	Split(docs []domain.TextDocument) []domain.Chunk
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// IndexStore is the opaque persisted vector collection.
type IndexStore interface {
	Rebuild(ctx context.Context, chunks []domain.Chunk) error
	Search(ctx context.Context, query string, k int) ([]domain.RetrievalResult, error)
	Verify(ctx context.Context) bool
	Destroy(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// CompletionModel sends a rendered prompt to the completion service.
type CompletionModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// HistoryStore keeps the append-only question history of one session.
type HistoryStore interface {
	Append(ctx context.Context, record domain.QueryRecord) error
	List(ctx context.Context) ([]domain.QueryRecord, error)
	Clear(ctx context.Context) error
}

// EventPublisher announces pipeline lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.PipelineEvent) error
}
