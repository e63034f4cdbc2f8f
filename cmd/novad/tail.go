package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peakyragnar/nova/pkg/config"
	"github.com/peakyragnar/nova/pkg/ordering"
	"github.com/peakyragnar/nova/pkg/query"
	"github.com/peakyragnar/nova/pkg/store"
	"github.com/peakyragnar/nova/pkg/stream"
	"github.com/spf13/cobra"
)

// TailOptions holds the tail command's own flags.
type TailOptions struct {
	*RootOptions

	Since time.Duration
}

func newTailCommand(root *RootOptions) *cobra.Command {
	opts := &TailOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:           "tail",
		Short:         "Live-follow the configured scope's timeline until interrupted",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTail(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Since, "since", time.Minute, "how far back to start following from")

	return cmd
}

func runTail(cmd *cobra.Command, opts *TailOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("tail: open store: %w", err)
	}
	defer s.Close()

	queryEngine := query.New(s)
	notifier := stream.NewNotifier()
	mgr := stream.NewManager()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	chunks, cancelCursor, err := mgr.StartFromSpec(ctx, queryEngine, notifier, stream.StartSpec{
		ConnectionID: "cli-tail",
		Role:         stream.RoleLeader,
		ScopeID:      cfg.ScopeID,
		Timebase:     ordering.TimebaseSource,
		StartTime:    time.Now().Add(-opts.Since).UTC(),
		Rate:         1,
	})
	if err != nil {
		return err
	}
	defer cancelCursor()

	enc := json.NewEncoder(cmd.OutOrStdout())
	for chunk := range chunks {
		for _, e := range chunk.Events {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
	return nil
}
