// File: cmd/main_test.go
package cmd

import (
	"testing"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/conclave/internal/config"
	"github.com/xkilldash9x/conclave/internal/observability"
)

// resetForTest provides the single source of truth for resetting test state.
func resetForTest(t *testing.T) {
	t.Helper()

	// 1. Reset package-level flag variables from root.go.
	cfgFile = ""
	verbose = false

	// 2. Silence the global logger. Later InitializeLogger calls are no-ops.
	observability.ResetForTest()
	observability.Initialize(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"}, discardSyncer{})
	t.Cleanup(observability.ResetForTest)

	// 3. Keep the working directory and home free of stray config files.
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

type discardSyncer struct{}

func (discardSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (discardSyncer) Sync() error                 { return nil }

// newTestRootCmd returns a root command whose run and serve subcommands hand
// their configuration to runner instead of starting a society.
func newTestRootCmd(runner societyRunner) *cobra.Command {
	root := NewRootCommand()
	for _, c := range root.Commands() {
		if c.Name() == "run" || c.Name() == "serve" {
			root.RemoveCommand(c)
		}
	}
	root.AddCommand(newRunCmdWith(runner))
	root.AddCommand(newServeCmdWith(runner))
	return root
}
