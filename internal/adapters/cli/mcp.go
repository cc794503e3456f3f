package cli

import (
	"context"

	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/book-qa/internal/adapters/mcp"
)

var runMCP = func(ctx context.Context, server *mcpadapter.Server) error {
	return server.Run(ctx)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the book to MCP clients over stdio",
	Long: `Starts a Model Context Protocol server on stdin/stdout with the tools
ask_book, book_history and book_status. Logs go to stderr.

Client configuration:
  {
    "mcpServers": {
      "book": {"command": "/path/to/bookqa", "args": ["mcp"]}
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *Session) error {
		server, err := mcpadapter.NewServer(&mcpadapter.Ports{Answerer: s.Answerer, Index: s.Index})
		if err != nil {
			return err
		}
		return runMCP(ctx, server)
	})
}
