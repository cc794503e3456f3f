package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/book-qa/internal/config"
	"github.com/kirillkom/book-qa/internal/core/domain"
)

type streamMock struct {
	events []domain.PipelineEvent
	closed bool
}

func (m *streamMock) Subscribe(ctx context.Context, handler func(context.Context, domain.PipelineEvent) error) error {
	for _, event := range m.events {
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (m *streamMock) Close() { m.closed = true }

func TestWatchCmd_PrintsEvents(t *testing.T) {
	setupTestSession(t)
	stream := &streamMock{events: []domain.PipelineEvent{
		{
			Kind:       domain.EventIndexRebuilt,
			Subject:    "book",
			OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local),
			Attributes: map[string]string{"documents": "1", "chunks": "12"},
		},
		{Kind: domain.EventHistoryReset, OccurredAt: time.Date(2026, 3, 1, 10, 5, 0, 0, time.Local)},
	}}
	prev := openEventStream
	t.Cleanup(func() { openEventStream = prev })
	openEventStream = func(config.Config) (EventStream, error) { return stream, nil }

	out, err := execute(t, "watch")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-03-01 10:00:00  index.rebuilt  book chunks=12 documents=1\n")
	assert.Contains(t, out, "2026-03-01 10:05:00  history.reset\n")
	assert.True(t, stream.closed)
}

func TestWatchCmd_RequiresNATS(t *testing.T) {
	setupTestSession(t)
	_, err := execute(t, "watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NATS_URL is not set")
}
