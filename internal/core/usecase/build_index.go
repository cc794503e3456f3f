package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/core/ports"
)

type BuildIndexUseCase struct {
	workspace ports.Workspace
	chunker   ports.Chunker
	store     ports.IndexStore
	publisher ports.EventPublisher
}

func NewBuildIndexUseCase(
	workspace ports.Workspace,
	chunker ports.Chunker,
	store ports.IndexStore,
	publisher ports.EventPublisher,
) *BuildIndexUseCase {
	return &BuildIndexUseCase{
		workspace: workspace,
		chunker:   chunker,
		store:     store,
		publisher: publisher,
	}
}

// Build replaces the whole index with chunks of every converted document in
// the workspace. A failed rebuild leaves the previous generation in place.
func (uc *BuildIndexUseCase) Build(ctx context.Context) (*domain.BuildReport, error) {
	started := time.Now()

	docs, err := uc.workspace.ListText(ctx)
	if err != nil {
		return nil, fmt.Errorf("load converted documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("build index: %w", domain.ErrNoDocuments)
	}

	chunks := uc.chunker.Split(docs)
	if err := uc.store.Rebuild(ctx, chunks); err != nil {
		return nil, fmt.Errorf("rebuild index: %w", err)
	}

	report := &domain.BuildReport{
		Generation: uuid.NewString(),
		Documents:  len(docs),
		Chunks:     len(chunks),
		Verified:   uc.store.Verify(ctx),
		Duration:   time.Since(started),
	}

	slog.Info("index_rebuilt",
		"generation", report.Generation,
		"documents", report.Documents,
		"chunks", report.Chunks,
		"verified", report.Verified,
		"duration_ms", report.Duration.Milliseconds(),
	)
	publish(ctx, uc.publisher, domain.EventIndexRebuilt, report.Generation, map[string]string{
		"documents": strconv.Itoa(report.Documents),
		"chunks":    strconv.Itoa(report.Chunks),
		"verified":  strconv.FormatBool(report.Verified),
	})
	return report, nil
}
