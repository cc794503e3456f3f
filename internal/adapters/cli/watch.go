package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/book-qa/internal/config"
	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/infrastructure/queue/nats"
)

// EventStream delivers pipeline events until its context ends.
type EventStream interface {
	Subscribe(ctx context.Context, handler func(context.Context, domain.PipelineEvent) error) error
	Close()
}

var openEventStream = func(cfg config.Config) (EventStream, error) {
	if cfg.NATSURL == "" {
		return nil, errors.New("NATS_URL is not set; pipeline events are only published over NATS")
	}
	bus, err := nats.New(cfg.NATSURL, cfg.NATSSubjectPrefix)
	if err != nil {
		return nil, err
	}
	return bus, nil
}

var watchJSON bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print pipeline events published by other bookqa processes",
	Long: `Subscribes to the NATS subjects the pipeline publishes on and prints
document conversions, index rebuilds and session resets as they happen.
Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "print events as JSON lines")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := prepare(cmd)
	if err != nil {
		return err
	}
	stream, err := openEventStream(cfg)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer stream.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	return stream.Subscribe(ctx, func(_ context.Context, event domain.PipelineEvent) error {
		if watchJSON {
			return printJSONLine(out, event)
		}
		_, err := fmt.Fprintln(out, formatEvent(event))
		return err
	})
}

func formatEvent(event domain.PipelineEvent) string {
	var b strings.Builder
	b.WriteString(event.OccurredAt.Local().Format(time.DateTime))
	b.WriteString("  ")
	b.WriteString(string(event.Kind))
	if event.Subject != "" {
		b.WriteString("  ")
		b.WriteString(event.Subject)
	}
	for _, key := range slices.Sorted(maps.Keys(event.Attributes)) {
		fmt.Fprintf(&b, " %s=%s", key, event.Attributes[key])
	}
	return b.String()
}
