package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/core/ports"
)

type ResetUseCase struct {
	store     ports.IndexStore
	workspace ports.Workspace
	history   ports.HistoryStore
	publisher ports.EventPublisher
}

func NewResetUseCase(
	store ports.IndexStore,
	workspace ports.Workspace,
	history ports.HistoryStore,
	publisher ports.EventPublisher,
) *ResetUseCase {
	return &ResetUseCase{
		store:     store,
		workspace: workspace,
		history:   history,
		publisher: publisher,
	}
}

// Reset destroys the index, recreates the uploads workspace and clears the
// history. Each step runs even if an earlier one failed.
func (uc *ResetUseCase) Reset(ctx context.Context) error {
	var errs []error
	if err := uc.store.Destroy(ctx); err != nil {
		errs = append(errs, fmt.Errorf("destroy index: %w", err))
	}
	if err := uc.workspace.Reset(ctx); err != nil {
		errs = append(errs, fmt.Errorf("reset workspace: %w", err))
	}
	if err := uc.history.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear history: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	publish(ctx, uc.publisher, domain.EventHistoryReset, "session", nil)
	return nil
}
