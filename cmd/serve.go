// File: cmd/serve.go
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/conclave/internal/observability"
	"github.com/xkilldash9x/conclave/internal/society/models"
)

func newServeCmd() *cobra.Command {
	return newServeCmdWith(runScheduler)
}

// newServeCmdWith creates the 'serve' command: continuous evolution in epochs
// separated by rest periods until interrupted.
func newServeCmdWith(runner societyRunner) *cobra.Command {
	var flags runFlags
	var (
		cyclesPerEpoch int
		rest           time.Duration
		maxEpochs      int
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the society continuously in epochs until interrupted.",
		Long: `The serve command runs epochs of cycles separated by rest periods. When civilization
progress reaches its target the epoch ends early and progress starts over. Ctrl+C stops
the run gracefully after the current cycle and prints the final report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			if cmd.Flags().Changed("cycles-per-epoch") {
				cfg.SetSchedulerCyclesPerEpoch(cyclesPerEpoch)
			}
			if cmd.Flags().Changed("rest") {
				cfg.SetSchedulerRest(rest)
			}
			if cmd.Flags().Changed("max-epochs") {
				cfg.SetSchedulerMaxEpochs(maxEpochs)
			}
			if cmd.Flags().Changed("metrics-addr") {
				if metricsAddr == "" {
					return fmt.Errorf("%w: --metrics-addr must not be empty", models.ErrInvalidInput)
				}
				cfg.SetMetricsAddr(metricsAddr)
			}

			schedCfg := cfg.Scheduler()
			if err := schedCfg.Validate(); err != nil {
				return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
			}
			return runSociety(ctx, cfg, schedCfg, observability.GetLogger(), runner)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&cyclesPerEpoch, "cycles-per-epoch", 0, "cycles per epoch (overrides config)")
	cmd.Flags().DurationVar(&rest, "rest", 0, "pause between epochs (overrides config)")
	cmd.Flags().IntVar(&maxEpochs, "max-epochs", 0, "stop after this many epochs; 0 runs until interrupted (overrides config)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (enables metrics)")
	return cmd
}
