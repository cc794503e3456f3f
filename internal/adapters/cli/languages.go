package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the OCR languages a book can be converted in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		for _, lang := range domain.Languages {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", lang.Name, lang.Code)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}
