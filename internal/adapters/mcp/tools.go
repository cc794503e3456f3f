package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

type statusOutput struct {
	IndexedChunks int  `json:"indexed_chunks"`
	Ready         bool `json:"ready"`
}

type historyOutput struct {
	Records []domain.QueryRecord `json:"records"`
	Count   int                  `json:"count"`
}

func (s *Server) registerTools() {
	s.server.AddTool(mcp.NewTool("ask_book",
		mcp.WithDescription("Answer a question using only passages retrieved from the indexed book. "+
			"Returns \""+domain.NoMatchAnswer+"\" when no passage is relevant enough."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("the question to answer"),
		),
	), s.handleAsk)

	s.server.AddTool(mcp.NewTool("book_history",
		mcp.WithDescription("List the questions asked in this session with their answers, oldest first"),
	), s.handleHistory)

	s.server.AddTool(mcp.NewTool("book_status",
		mcp.WithDescription("Report whether a book index is loaded and how many chunks it holds"),
	), s.handleStatus)
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := s.ports.Answerer.Ask(ctx, question)
	if err != nil {
		slog.Warn("mcp_ask_failed", "error", err.Error())
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(answer)
}

func (s *Server) handleHistory(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := s.ports.Answerer.History(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if records == nil {
		records = []domain.QueryRecord{}
	}
	return jsonResult(historyOutput{Records: records, Count: len(records)})
}

func (s *Server) handleStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := statusOutput{}
	if s.ports.Index != nil {
		count, err := s.ports.Index.Count(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out.IndexedChunks = count
		out.Ready = count > 0
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
