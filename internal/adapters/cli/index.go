package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var indexJSON bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the vector index from the converted text",
	Long: `Splits every converted markdown file in the uploads workspace into
overlapping chunks and rebuilds the vector index from scratch. The previous
index is destroyed first; a busy index is retried with exponential backoff.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "output the build report as JSON")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *Session) error {
		report, err := s.Indexer.Build(ctx)
		if err != nil {
			return err
		}
		if indexJSON {
			return printJSON(cmd.OutOrStdout(), report)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Split %d document(s) into %d chunks.\n", report.Documents, report.Chunks)
		if report.Verified {
			fmt.Fprintln(cmd.OutOrStdout(), "Index created successfully.")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Index written but could not be read back.")
		}
		return nil
	})
}
