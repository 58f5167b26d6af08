// Package commands provides modular CLI command packages for the harness
// CLI.
//
// There are two ways to use commands from this package:
//
// 1. Via the Commands factory (recommended for most use cases):
//
//	commands := commands.New(lggr)
//	app.AddCommand(
//	    commands.Run(),
//	)
//
// 2. Via direct package imports (for advanced DI/testing):
//
//	import "github.com/solharness/solharness/pkg/commands/run"
//
//	app.AddCommand(run.NewCommand(run.Config{
//	    Logger: lggr,
//	    Deps:   &run.Deps{...},  // inject mocks for testing
//	}))
package commands

import (
	"github.com/spf13/cobra"

	"github.com/solharness/solharness/pkg/commands/run"
	"github.com/solharness/solharness/pkg/logger"
)

// Commands provides a factory for creating CLI commands with shared
// configuration. This allows setting the logger once and reusing it across
// all commands.
type Commands struct {
	lggr logger.Logger
}

// New creates a new Commands factory with the given logger.
func New(lggr logger.Logger) *Commands {
	return &Commands{lggr: lggr}
}

// Run creates the plan execution command.
func (c *Commands) Run() *cobra.Command {
	return run.NewCommand(run.Config{
		Logger: c.lggr,
	})
}
