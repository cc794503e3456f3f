package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kirillkom/book-qa/internal/adapters/tui"
)

var runProgram = func(ctx context.Context, model tea.Model) error {
	_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Ask questions in an interactive terminal UI",
	Long: `Opens a question loop over the indexed book.

Controls:
  Enter    - Ask
  Tab      - Toggle answer / history
  ↑/↓      - Scroll
  Ctrl+R   - Reset the session
  Esc      - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *Session) error {
		if err := runProgram(ctx, tui.New(ctx, s.Answerer, s.Resetter)); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	})
}
