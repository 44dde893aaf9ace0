// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/conclave/internal/config"
	"github.com/xkilldash9x/conclave/internal/observability"
	"github.com/xkilldash9x/conclave/internal/society/models"
)

// societyRunner executes a configured run. Tests substitute it to inspect the
// configuration a command produces.
type societyRunner func(ctx context.Context, cfg config.Interface, schedCfg config.SchedulerConfig, logger *zap.Logger) (models.FinalReport, error)

// runFlags are the per-invocation overrides shared by run and serve.
type runFlags struct {
	agents int
	seed   uint64
	format string
	output string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.agents, "agents", "a", 0, "number of agents in the society (overrides config)")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "seed for every random draw; 0 is non-deterministic (overrides config)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "report format: text, json or none (overrides config)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "report destination: stdout or a file path (overrides config)")
}

// apply copies the flags the user actually set onto cfg.
func (f *runFlags) apply(cmd *cobra.Command, cfg config.Interface) error {
	if cmd.Flags().Changed("agents") {
		if f.agents < 0 {
			return fmt.Errorf("%w: --agents must not be negative", models.ErrInvalidInput)
		}
		cfg.SetSocietyAgents(f.agents)
	}
	if cmd.Flags().Changed("seed") {
		cfg.SetSocietySeed(f.seed)
	}
	if cmd.Flags().Changed("format") {
		cfg.SetReportFormat(f.format)
	}
	if cmd.Flags().Changed("output") {
		cfg.SetReportOutput(f.output)
	}
	report := cfg.Report()
	return report.Validate()
}

func newRunCmd() *cobra.Command {
	return newRunCmdWith(runScheduler)
}

// newRunCmdWith creates the 'run' command: a single batch of cycles with no
// rest, the classic one-shot evolution.
func newRunCmdWith(runner societyRunner) *cobra.Command {
	var flags runFlags
	var cycles int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the society for a fixed number of cycles and prints the final report.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			if cycles <= 0 {
				return fmt.Errorf("%w: --cycles must be a positive integer", models.ErrInvalidInput)
			}

			schedCfg := cfg.Scheduler()
			schedCfg.CyclesPerEpoch = cycles
			schedCfg.MaxEpochs = 1
			schedCfg.Rest = 0
			return runSociety(ctx, cfg, schedCfg, observability.GetLogger(), runner)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVarP(&cycles, "cycles", "n", 10, "number of cycles to run")
	return cmd
}

// runSociety invokes runner and maps its outcome to the command's error. A
// graceful shutdown is a success; a halt surfaces the cause.
func runSociety(ctx context.Context, cfg config.Interface, schedCfg config.SchedulerConfig, logger *zap.Logger, runner societyRunner) error {
	final, err := runner(ctx, cfg, schedCfg, logger)
	if err != nil {
		return fmt.Errorf("society halted: %w", err)
	}
	logger.Info("Society run finished.",
		zap.String("run_id", final.RunID),
		zap.String("reason", string(final.Reason)),
		zap.Int("cycles", final.Summary.Cycles),
	)
	return nil
}
