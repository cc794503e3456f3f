package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/core/ports"
)

// publish announces a finished pipeline step. The step itself already
// succeeded, so a bus failure is logged and swallowed.
func publish(ctx context.Context, publisher ports.EventPublisher, kind domain.EventKind, subject string, attrs map[string]string) {
	if publisher == nil {
		return
	}
	event := domain.PipelineEvent{
		Kind:       kind,
		Subject:    subject,
		OccurredAt: time.Now().UTC(),
		Attributes: attrs,
	}
	if err := publisher.Publish(ctx, event); err != nil {
		slog.Warn("event_publish_failed",
			"kind", string(kind),
			"subject", subject,
			"error", err.Error(),
		)
	}
}
