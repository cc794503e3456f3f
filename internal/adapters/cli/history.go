package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

var historyJSON bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the questions asked in this session",
	Long: `Lists every question with its answer, oldest first. History lives in
memory unless POSTGRES_DSN is set, so without Postgres it only spans one
long-running process (serve, tui or mcp).`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output history as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *Session) error {
		records, err := s.Answerer.History(ctx)
		if err != nil {
			return err
		}
		if historyJSON {
			if records == nil {
				records = []domain.QueryRecord{}
			}
			return printJSON(cmd.OutOrStdout(), records)
		}
		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, "No questions asked yet.")
			return nil
		}
		for i, record := range records {
			fmt.Fprintf(out, "[%d] %s  %s\n", i+1, record.Timestamp.Local().Format(time.DateTime), record.Question)
			fmt.Fprintf(out, "    %s\n", record.Answer)
		}
		return nil
	})
}
