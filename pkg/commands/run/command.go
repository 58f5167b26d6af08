package run

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solharness/solharness/execution"
	"github.com/solharness/solharness/harness"
	"github.com/solharness/solharness/internal/pointer"
	"github.com/solharness/solharness/ledger"
	"github.com/solharness/solharness/pkg/logger"
)

// Config holds the dependencies for the run command.
type Config struct {
	Logger logger.Logger

	// Deps allows injecting custom implementations for testing.
	// Nil uses production defaults.
	Deps *Deps
}

// deps returns the resolved dependencies with defaults applied.
func (c *Config) deps() *Deps {
	if c.Deps == nil {
		c.Deps = &Deps{}
	}
	c.Deps.applyDefaults()

	return c.Deps
}

// NewCommand creates the run command.
//
// Usage:
//
//	rootCmd.AddCommand(run.NewCommand(run.Config{
//	    Logger: lggr,
//	}))
func NewCommand(cfg Config) *cobra.Command {
	deps := cfg.deps()

	var (
		project     string
		environment string
		kind        string
		forkSlot    uint64
		configPath  string
	)

	cmd := &cobra.Command{
		Use:   "run <plan-file>",
		Short: "Execute a plan document against an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := deps.ConfigLoader(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			document, err := deps.FileReader(args[0])
			if err != nil {
				return fmt.Errorf("reading plan document: %w", err)
			}

			hcfg := harness.Config{
				Project:     project,
				Environment: environment,
				Kind:        ledger.Kind(kind),
				Settings:    settings,
				Logger:      cfg.Logger,
			}
			if cmd.Flags().Changed("fork-slot") {
				hcfg.ForkSlot = pointer.To(forkSlot)
			}

			runner, err := deps.RunnerBuilder(hcfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := runner.Start(ctx); err != nil {
				return err
			}
			defer func() {
				_ = runner.Stop(ctx)
			}()

			exec, err := runner.Run(ctx, document)
			if err != nil {
				return err
			}

			printSummary(cmd, exec)

			if exec.Status != execution.StatusCompleted {
				return fmt.Errorf("execution %s %s", exec.ID, exec.Status)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name (required)")
	cmd.Flags().StringVarP(&environment, "environment", "e", "", "Environment name (required)")
	cmd.Flags().StringVarP(&kind, "kind", "k", string(ledger.KindLocal), "Environment kind (local, fork, testnet, devnet)")
	cmd.Flags().Uint64Var(&forkSlot, "fork-slot", 0, "Origin slot for fork environments")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the harness config file")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("environment")

	return cmd
}

func printSummary(cmd *cobra.Command, exec *execution.Execution) {
	cmd.Printf("Execution %s: %s (%d/%d steps completed)\n",
		exec.ID, exec.Status, exec.CompletedSteps, exec.TotalSteps)

	for _, step := range exec.Steps {
		line := fmt.Sprintf("  [%s] %d %s: %s", step.Phase, step.Order, step.Type, step.Status)
		if step.ErrorMessage != "" {
			line += " (" + step.ErrorMessage + ")"
		}
		cmd.Println(line)
	}

	cmd.Printf("Total duration: %dms\n", exec.Metrics.TotalDurationMS)
}
