// File: cmd/history.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/conclave/internal/config"
	"github.com/xkilldash9x/conclave/internal/observability"
	"github.com/xkilldash9x/conclave/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newHistoryCmd() *cobra.Command {
	var (
		runID  string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Lists stored runs, or shows the cycles and final report of one run.",
		Long: `The history command reads the configured store. Only the postgres store outlives
the process, so with the default in-memory store there is nothing to show.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			st, err := openStore(ctx, logger, cfg.Store())
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close()

			if cfg.Store().Type == config.StoreMemory {
				logger.Warn("The memory store does not persist between runs.")
			}
			return runHistory(ctx, st, cmd.OutOrStdout(), runID, limit, asJSON)
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "show one run instead of listing runs")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of runs or cycles to show; 0 shows all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// runHistory renders the store's contents to out.
func runHistory(ctx context.Context, st store.Store, out io.Writer, runID string, limit int, asJSON bool) error {
	if runID == "" {
		runs, err := st.Runs(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if asJSON {
			return json.NewEncoder(out).Encode(runs)
		}
		if len(runs) == 0 {
			_, err := fmt.Fprintln(out, "No runs recorded.")
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tCYCLES\tPROGRESS\tSTOPPED\tUPDATED")
		for _, r := range runs {
			reason := string(r.Reason)
			if reason == "" {
				reason = "-"
			}
			fmt.Fprintf(tw, "%s\t%d\t%.3f\t%s\t%s\n", r.RunID, r.Cycles, r.Progress, reason, r.UpdatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	}

	cycles, err := st.Cycles(ctx, runID, limit)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load cycles of run %s: %w", runID, err)
	}
	final, err := st.Final(ctx, runID)
	hasFinal := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load final report of run %s: %w", runID, err)
	}
	if len(cycles) == 0 && !hasFinal {
		return fmt.Errorf("run %s: %w", runID, store.ErrNotFound)
	}

	if asJSON {
		payload := map[string]interface{}{"run_id": runID, "cycles": cycles}
		if hasFinal {
			payload["final"] = final
		}
		return json.NewEncoder(out).Encode(payload)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EPOCH\tCYCLE\tCHALLENGE\tCONFIDENCE\tSUCCESS\tPROGRESS")
	for _, c := range cycles {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%.3f\t%.3f\t%.3f\n",
			c.Epoch, c.Cycle, c.Challenge.Description,
			c.Collective.CollectiveConfidence, c.Implementation.Success, c.Summary.CivilizationProgress)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !hasFinal {
		_, err := fmt.Fprintln(out, "Run has not stopped yet.")
		return err
	}
	_, err = fmt.Fprintf(out, "Stopped (%s) after %d epochs and %d cycles; progress %.3f, solved %d, breakthroughs %d.\n",
		final.Reason, final.Epochs, final.Summary.Cycles, final.Summary.CivilizationProgress,
		final.Summary.SolvedChallengeCount, final.Summary.BreakthroughCount)
	if err == nil && final.Error != "" {
		_, err = fmt.Fprintf(out, "Halted by: %s\n", final.Error)
	}
	return err
}
