// Command solharness executes account-state test plans against simulated
// or remote Solana environments.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solharness/solharness/pkg/commands"
	"github.com/solharness/solharness/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	lggr, err := logger.New()
	if err != nil {
		return err
	}
	defer func() {
		_ = lggr.Sync()
	}()

	rootCmd := &cobra.Command{
		Use:          "solharness",
		Short:        "Test execution harness with versioned account state",
		SilenceUsage: true,
	}

	cmds := commands.New(lggr)
	rootCmd.AddCommand(
		cmds.Run(),
	)

	return rootCmd.Execute()
}
