package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

var (
	convertLanguage string
	convertPrint    bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <book.pdf>",
	Short: "Convert a scanned PDF book to text with OCR",
	Long: `Copies the PDF into the uploads workspace, rasterizes every page at 300 DPI
and runs OCR on it in the chosen language. The recognized text is saved as
markdown next to the PDF under the same base name.

The language may be a display name or an OCR code (see "bookqa languages").`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertLanguage, "language", "l", "English", "book language")
	convertCmd.Flags().BoolVar(&convertPrint, "print", false, "print the converted text")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	return withSession(cmd, func(ctx context.Context, s *Session) error {
		fmt.Fprintf(cmd.OutOrStdout(), "Converting %s, please wait...\n", filepath.Base(path))
		conversion, err := s.Converter.Convert(ctx, domain.Document{
			Name:     filepath.Base(path),
			Language: convertLanguage,
			Content:  content,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Converted %d page(s) in %q (PDF size: %s, Text size: %s)\n",
			conversion.Pages, conversion.Language,
			HumanSize(conversion.SourceBytes), HumanSize(conversion.TextBytes))
		fmt.Fprintf(out, "Text written to %s\n", conversion.TextPath)
		if convertPrint {
			fmt.Fprintln(out)
			fmt.Fprintln(out, conversion.Text)
		}
		return nil
	})
}
