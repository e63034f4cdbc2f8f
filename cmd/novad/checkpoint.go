package main

import (
	"context"
	"fmt"

	"github.com/peakyragnar/nova/pkg/config"
	"github.com/peakyragnar/nova/pkg/store"
	"github.com/spf13/cobra"
)

func newCheckpointCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "checkpoint",
		Short:         "Force a WAL checkpoint against the configured store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckpoint(cmd, root)
		},
	}
}

func runCheckpoint(cmd *cobra.Command, root *RootOptions) error {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("checkpoint: open store: %w", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.Checkpoint(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "checkpoint: ok")
	return nil
}
