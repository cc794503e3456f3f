package ports

import (
	"context"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

// DocumentConverter is the inbound contract for upload + OCR conversion.
type DocumentConverter interface {
	Convert(ctx context.Context, doc domain.Document) (*domain.Conversion, error)
}

// IndexBuilder rebuilds the vector index from the converted workspace text.
type IndexBuilder interface {
	Build(ctx context.Context) (*domain.BuildReport, error)
}

// QuestionAnswerer is the inbound contract for retrieval-augmented answers.
type QuestionAnswerer interface {
	Ask(ctx context.Context, question string) (*domain.Answer, error)
	History(ctx context.Context) ([]domain.QueryRecord, error)
}

// SessionResetter wipes the index, the workspace and the history.
type SessionResetter interface {
	Reset(ctx context.Context) error
}
