package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

// RootOptions holds flags shared by every subcommand, the same
// embedding pattern the pack's cobra-based CLIs use for per-command
// option structs (NewRunCommand(rootOpts *RootOptions) and friends).
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand builds the novad command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "novad",
		Short:         "novad is NOVA's timeline-truth event store",
		Long:          "novad ingests, stores, queries, streams, and exports NOVA's append-only, content-addressed event timeline.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "nova.yaml", "path to the instance's YAML configuration file")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newQueryCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newTailCommand(opts))
	cmd.AddCommand(newCheckpointCommand(opts))
	cmd.AddCommand(newDoctorCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}
