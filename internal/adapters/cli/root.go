// Package cli is the bookqa command line: convert a scanned book, index it,
// then ask questions from the shell, a terminal UI or an MCP client.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kirillkom/book-qa/internal/config"
	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/observability/logging"
)

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "bookqa",
	Short: "Ask questions about a scanned book",
	Long: `bookqa converts a scanned PDF book to text with OCR, indexes the text
in a vector store and answers questions using only passages retrieved from it.

Typical session:
  bookqa convert moby-dick.pdf --language English
  bookqa index
  bookqa ask "Who is Ishmael?"`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
}

// Execute runs the command line against ctx. Missing OCR engines get their
// remediation printed to stderr after cobra reports the error.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		for _, hint := range remediations(err) {
			fmt.Fprintln(rootCmd.ErrOrStderr(), hint)
		}
	}
	return err
}

// loadConfig is replaced in tests.
var loadConfig = func() (config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, err
	}
	return config.Load()
}

// prepare loads the configuration and installs a stderr logger so stdout
// carries only command output.
func prepare(cmd *cobra.Command) (config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logging.Install(logging.New(cmd.ErrOrStderr(), logging.Options{
		Service: "bookqa",
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	}))
	return cfg, nil
}

func remediations(err error) []string {
	var out []string
	for _, depErr := range missingEngines(err) {
		out = append(out, depErr.Remediation)
	}
	return out
}

// missingEngines collects every DependencyMissingError in err, following
// both single and joined wrapping.
func missingEngines(err error) []*domain.DependencyMissingError {
	var out []*domain.DependencyMissingError
	var walk func(error)
	walk = func(err error) {
		switch e := err.(type) {
		case nil:
		case *domain.DependencyMissingError:
			out = append(out, e)
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(e.Unwrap())
		}
	}
	walk(err)
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
