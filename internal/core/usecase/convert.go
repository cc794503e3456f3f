package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/core/ports"
)

const (
	sourceExt = ".pdf"
	textExt   = ".md"
)

type ConvertDocumentUseCase struct {
	workspace ports.Workspace
	inspector ports.DocumentInspector
	extractor ports.TextExtractor
	publisher ports.EventPublisher
}

func NewConvertDocumentUseCase(
	workspace ports.Workspace,
	inspector ports.DocumentInspector,
	extractor ports.TextExtractor,
	publisher ports.EventPublisher,
) *ConvertDocumentUseCase {
	return &ConvertDocumentUseCase{
		workspace: workspace,
		inspector: inspector,
		extractor: extractor,
		publisher: publisher,
	}
}

// Convert stores the upload in the workspace, runs OCR over it and writes the
// markdown next to the source under the same base name. A source whose OCR
// fails is removed again.
func (uc *ConvertDocumentUseCase) Convert(ctx context.Context, doc domain.Document) (*domain.Conversion, error) {
	if len(doc.Content) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "convert document", errors.New("empty upload"))
	}

	pages, err := uc.inspector.Inspect(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("inspect upload: %w", err)
	}

	base := baseName(doc.Name)
	sourceName := base + sourceExt
	sourcePath, sourceBytes, err := uc.workspace.Save(ctx, sourceName, bytes.NewReader(doc.Content))
	if err != nil {
		return nil, fmt.Errorf("save source document: %w", err)
	}

	doc.Name = sourceName
	doc.Path = sourcePath
	doc.Language = domain.ResolveLanguage(doc.Language)

	text, err := uc.extractor.Extract(ctx, &doc)
	if err != nil {
		if rmErr := uc.workspace.Remove(ctx, sourceName); rmErr != nil {
			slog.WarnContext(ctx, "source_cleanup_failed", "source", sourceName, "error", rmErr)
		}
		return nil, fmt.Errorf("extract text: %w", err)
	}

	textPath, textBytes, err := uc.workspace.Save(ctx, base+textExt, strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("save converted text: %w", err)
	}

	publish(ctx, uc.publisher, domain.EventDocumentConverted, sourceName, map[string]string{
		"language": doc.Language,
		"pages":    strconv.Itoa(pages),
		"text":     textPath,
	})

	return &domain.Conversion{
		SourcePath:  sourcePath,
		TextPath:    textPath,
		Language:    doc.Language,
		Pages:       pages,
		SourceBytes: sourceBytes,
		TextBytes:   textBytes,
		Text:        text,
	}, nil
}

func baseName(name string) string {
	base := sanitizeFilename(name)
	if ext := filepath.Ext(base); strings.EqualFold(ext, sourceExt) {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." {
		return "document"
	}
	return base
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	return base
}
