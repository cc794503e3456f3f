// Package mcp exposes the book question loop to MCP clients over stdio.
package mcp

import (
	"context"
	"errors"

	"github.com/kirillkom/book-qa/internal/core/ports"
)

var ErrMissingAnswerer = errors.New("mcp: question answerer is required")

// IndexCounter reports how many entries the current index holds.
type IndexCounter interface {
	Count(ctx context.Context) (int, error)
}

type Ports struct {
	Answerer ports.QuestionAnswerer
	// Index is optional; book_status reports zero without it.
	Index IndexCounter
}

func (p *Ports) Validate() error {
	if p == nil || p.Answerer == nil {
		return ErrMissingAnswerer
	}
	return nil
}
