package mcp

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/server"
)

const Version = "0.1.0"

type Server struct {
	ports  *Ports
	server *server.MCPServer
}

func NewServer(p *Ports) (*Server, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}
	s := &Server{
		ports:  p,
		server: server.NewMCPServer("book-qa", Version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s, nil
}

// Run serves JSON-RPC over stdin/stdout until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.server).Listen(ctx, in, out)
}
