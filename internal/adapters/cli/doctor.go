package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/book-qa/internal/bootstrap"
	"github.com/kirillkom/book-qa/internal/config"
	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/core/ports"
)

var newChecker = func(cfg config.Config) ports.DependencyChecker {
	return bootstrap.NewChecker(cfg)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, OCR engines and the index",
	Long: `Runs the same checks every other command runs at startup, but reports
each one instead of stopping at the first failure:

  config          provider API key and numeric settings
  pdf-rasterizer  pdftoppm (Poppler) on the PATH
  ocr             tesseract on the PATH
  index           number of chunks in the current index`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg, err := prepare(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	failed := 0

	if err := cfg.Validate(); err != nil {
		failed++
		fmt.Fprintf(out, "%-15s FAIL  %v\n", "config", err)
	} else {
		fmt.Fprintf(out, "%-15s ok    provider=%s index=%s\n", "config", cfg.LLMProvider, cfg.IndexEngine)
	}

	checkErr := newChecker(cfg).Check(ctx)
	missing := missingEngines(checkErr)
	for _, engine := range []string{domain.EngineRasterizer, domain.EngineOCR} {
		if depErr := findEngine(missing, engine); depErr != nil {
			failed++
			fmt.Fprintf(out, "%-15s FAIL  %s\n", engine, depErr.Error())
			fmt.Fprintf(out, "%-15s       %s\n", "", depErr.Remediation)
			continue
		}
		fmt.Fprintf(out, "%-15s ok\n", engine)
	}
	if checkErr != nil && len(missing) == 0 {
		failed++
		fmt.Fprintf(out, "%-15s FAIL  %v\n", "engines", checkErr)
	}

	session, err := openSession(ctx, cfg, bootstrap.WithoutPreflight(), bootstrap.WithoutEventBus())
	if err != nil {
		failed++
		fmt.Fprintf(out, "%-15s FAIL  %v\n", "index", err)
	} else {
		if session.Close != nil {
			defer session.Close()
		}
		count, err := session.Index.Count(ctx)
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(out, "%-15s FAIL  %v\n", "index", err)
		case count == 0:
			fmt.Fprintf(out, "%-15s empty (run \"bookqa index\")\n", "index")
		default:
			fmt.Fprintf(out, "%-15s ok    %d chunks\n", "index", count)
		}
	}

	if failed > 0 {
		return fmt.Errorf("doctor: %d check(s) failed", failed)
	}
	return nil
}

func findEngine(errs []*domain.DependencyMissingError, engine string) *domain.DependencyMissingError {
	for _, e := range errs {
		if e.Engine == engine {
			return e
		}
	}
	return nil
}
