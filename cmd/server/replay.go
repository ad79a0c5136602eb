package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"laurels/internal/models"
	"laurels/pkg/logger"
)

var (
	replayDryRun bool
	replaySave   bool
)

// replayCmd feeds recorded events through the engine
var replayCmd = &cobra.Command{
	Use:   "replay <events.jsonl | ->",
	Short: "Replay a JSON-lines event log",
	Long: `Feed a JSON-lines file of events through the engine, one event per
line, and print the achievements completed along the way.

Events are applied to the configured progress store unless --dry-run is
set, in which case progress starts empty and nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayDryRun, "dry-run", false, "Keep progress in memory only")
	replayCmd.Flags().BoolVar(&replaySave, "save", true, "Save progress after the replay")
}

// replaySummary counts what a replay did
type replaySummary struct {
	Events    int
	Skipped   int
	Completed map[string]int
	Unlocked  []string
	Errors    int
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := buildEngine(ctx, cfg, replayDryRun)
	if err != nil {
		return err
	}
	defer e.Close()

	summary, err := replay(ctx, e, in, logger.New("REPLAY"))
	if err != nil {
		return err
	}

	if replaySave && !replayDryRun {
		if err := e.coordinator.Save(context.WithoutCancel(ctx)); err != nil {
			return err
		}
	}

	printSummary(cmd.OutOrStdout(), summary, e.ledger.Grants())
	return nil
}

// replay applies each line of in as an event. Malformed lines are skipped.
func replay(ctx context.Context, e *engine, in io.Reader, log *logger.Logger) (replaySummary, error) {
	summary := replaySummary{Completed: make(map[string]int)}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}

		var event models.GameEventData
		if err := json.Unmarshal(text, &event); err != nil {
			log.Warn("Line %d: %v", line, err)
			summary.Skipped++
			continue
		}
		if err := event.Validate(); err != nil {
			log.Warn("Line %d: %v", line, err)
			summary.Skipped++
			continue
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now().UTC()
		}
		if event.Source == "" {
			event.Source = "replay"
		}

		out := e.handle(ctx, event)
		summary.Events++
		summary.Errors += len(out.Errors)
		for _, id := range out.Completed {
			summary.Completed[id]++
		}
		summary.Unlocked = append(summary.Unlocked, out.Unlocked...)
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("failed to read event log: %w", err)
	}
	return summary, nil
}

func printSummary(w io.Writer, s replaySummary, grants int) {
	fmt.Fprintf(w, "Replayed %d events (%d skipped, %d evaluation errors)\n", s.Events, s.Skipped, s.Errors)

	ids := make([]string, 0, len(s.Completed))
	for id := range s.Completed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  completed %s x%d\n", id, s.Completed[id])
	}
	for _, id := range s.Unlocked {
		fmt.Fprintf(w, "  unlocked %s\n", id)
	}
	fmt.Fprintf(w, "Rewards granted: %d\n", grants)
}
