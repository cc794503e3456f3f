package cli

import (
	"context"

	"github.com/spf13/cobra"

	httpadapter "github.com/kirillkom/book-qa/internal/adapters/http"
)

var serveAPI = httpadapter.Serve

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves the convert, index, question, history and reset operations over
HTTP on API_PORT. The OpenAPI document is available at /openapi.yaml and
Prometheus metrics at /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *Session) error {
		return serveAPI(ctx, s.Config, httpadapter.Services{
			Converter: s.Converter,
			Indexer:   s.Indexer,
			Answerer:  s.Answerer,
			Resetter:  s.Resetter,
			Index:     s.Index,
		})
	})
}
