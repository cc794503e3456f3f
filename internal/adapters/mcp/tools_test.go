package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

type answererMock struct {
	answer    *domain.Answer
	err       error
	records   []domain.QueryRecord
	questions []string
}

func (m *answererMock) Ask(_ context.Context, question string) (*domain.Answer, error) {
	m.questions = append(m.questions, question)
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

func (m *answererMock) History(context.Context) ([]domain.QueryRecord, error) {
	return m.records, m.err
}

type counterMock struct {
	count int
	err   error
}

func (m counterMock) Count(context.Context) (int, error) { return m.count, m.err }

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func TestNewServerRequiresAnswerer(t *testing.T) {
	_, err := NewServer(&Ports{})
	assert.ErrorIs(t, err, ErrMissingAnswerer)

	_, err = NewServer(nil)
	assert.ErrorIs(t, err, ErrMissingAnswerer)
}

func TestHandleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the answer as json", func(t *testing.T) {
		answerer := &answererMock{answer: &domain.Answer{
			Question: "who?",
			Text:     "Ahab.",
			Matched:  true,
			Sources:  []string{"uploads/moby.md"},
		}}
		server, err := NewServer(&Ports{Answerer: answerer})
		require.NoError(t, err)

		result, err := server.handleAsk(ctx, callRequest("ask_book", map[string]any{"question": "who?"}))
		require.NoError(t, err)
		assert.False(t, result.IsError)

		var got domain.Answer
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
		assert.Equal(t, "Ahab.", got.Text)
		assert.True(t, got.Matched)
		assert.Equal(t, []string{"uploads/moby.md"}, got.Sources)
		assert.Equal(t, []string{"who?"}, answerer.questions)
	})

	t.Run("no match is a normal result", func(t *testing.T) {
		answerer := &answererMock{answer: &domain.Answer{Question: "q", Text: domain.NoMatchAnswer}}
		server, err := NewServer(&Ports{Answerer: answerer})
		require.NoError(t, err)

		result, err := server.handleAsk(ctx, callRequest("ask_book", map[string]any{"question": "q"}))
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Contains(t, resultText(t, result), domain.NoMatchAnswer)
	})

	t.Run("missing question is a tool error", func(t *testing.T) {
		answerer := &answererMock{}
		server, err := NewServer(&Ports{Answerer: answerer})
		require.NoError(t, err)

		result, err := server.handleAsk(ctx, callRequest("ask_book", map[string]any{}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Empty(t, answerer.questions)
	})

	t.Run("service failure is a tool error", func(t *testing.T) {
		answerer := &answererMock{err: domain.WrapError(domain.ErrCompletionService, "complete", errors.New("quota"))}
		server, err := NewServer(&Ports{Answerer: answerer})
		require.NoError(t, err)

		result, err := server.handleAsk(ctx, callRequest("ask_book", map[string]any{"question": "q"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "quota")
	})
}

func TestHandleHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("empty history is an empty list", func(t *testing.T) {
		server, err := NewServer(&Ports{Answerer: &answererMock{}})
		require.NoError(t, err)

		result, err := server.handleHistory(ctx, callRequest("book_history", nil))
		require.NoError(t, err)
		assert.JSONEq(t, `{"records":[],"count":0}`, resultText(t, result))
	})

	t.Run("records keep order", func(t *testing.T) {
		answerer := &answererMock{records: []domain.QueryRecord{
			{Question: "first", Answer: "1"},
			{Question: "second", Answer: "2"},
		}}
		server, err := NewServer(&Ports{Answerer: answerer})
		require.NoError(t, err)

		result, err := server.handleHistory(ctx, callRequest("book_history", nil))
		require.NoError(t, err)

		var got historyOutput
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
		require.Equal(t, 2, got.Count)
		assert.Equal(t, "first", got.Records[0].Question)
		assert.Equal(t, "second", got.Records[1].Question)
	})
}

func TestHandleStatus(t *testing.T) {
	ctx := context.Background()

	server, err := NewServer(&Ports{Answerer: &answererMock{}, Index: counterMock{count: 12}})
	require.NoError(t, err)
	result, err := server.handleStatus(ctx, callRequest("book_status", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"indexed_chunks":12,"ready":true}`, resultText(t, result))

	server, err = NewServer(&Ports{Answerer: &answererMock{}})
	require.NoError(t, err)
	result, err = server.handleStatus(ctx, callRequest("book_status", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"indexed_chunks":0,"ready":false}`, resultText(t, result))

	server, err = NewServer(&Ports{Answerer: &answererMock{}, Index: counterMock{err: errors.New("locked")}})
	require.NoError(t, err)
	result, err = server.handleStatus(ctx, callRequest("book_status", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
