package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the indexed book",
	Long: `Retrieves the three passages most similar to the question. When even the
best passage scores below the relevance threshold, prints
"` + domain.NoMatchAnswer + `" without contacting the completion service.
Otherwise the passages are sent to the model together with the question.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	return withSession(cmd, func(ctx context.Context, s *Session) error {
		answer, err := s.Answerer.Ask(ctx, question)
		if err != nil {
			return err
		}
		if askJSON {
			return printJSON(cmd.OutOrStdout(), answer)
		}
		printAnswer(cmd, answer)
		return nil
	})
}

func printAnswer(cmd *cobra.Command, answer *domain.Answer) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, answer.Text)
	if !answer.Matched || len(answer.Results) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Sources:")
	for i, result := range answer.Results {
		fmt.Fprintf(out, "  [%d] %s @%d (%.2f)\n", i+1, result.Chunk.Source, result.Chunk.StartIndex, result.Score)
	}
}
