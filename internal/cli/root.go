// Package cli wires the ammcpi commands.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ammcpi",
		Short: "AMM cross-program invocation layer",
		Long: `Derive the pool authority and drive token custody and order-book
invocations against an in-memory runtime.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "print invocation accounts")

	cmd.AddCommand(NewDeriveCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))

	return cmd
}
