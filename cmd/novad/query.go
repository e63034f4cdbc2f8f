package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/peakyragnar/nova/pkg/config"
	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/ordering"
	"github.com/peakyragnar/nova/pkg/query"
	"github.com/peakyragnar/nova/pkg/store"
	"github.com/spf13/cobra"
)

// QueryOptions holds the query command's own flags.
type QueryOptions struct {
	*RootOptions

	Lanes       string
	StartTime   string
	StopTime    string
	Timebase    string
	SystemID    string
	ContainerID string
	UniqueID    string
	MessageType string
	Limit       int
	ParityMode  bool
}

func newQueryCommand(root *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:           "query",
		Short:         "Run a bounded historical query against the configured store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Lanes, "lanes", "", "comma-separated lanes (raw,parsed,ui,command,metadata); empty selects all")
	cmd.Flags().StringVar(&opts.StartTime, "start", "", "inclusive ISO-8601 start time (required)")
	cmd.Flags().StringVar(&opts.StopTime, "stop", "", "inclusive ISO-8601 stop time (required)")
	cmd.Flags().StringVar(&opts.Timebase, "timebase", "source", "timebase to sort by: source or canonical")
	cmd.Flags().StringVar(&opts.SystemID, "system-id", "", "filter by systemId")
	cmd.Flags().StringVar(&opts.ContainerID, "container-id", "", "filter by containerId")
	cmd.Flags().StringVar(&opts.UniqueID, "unique-id", "", "filter by uniqueId")
	cmd.Flags().StringVar(&opts.MessageType, "message-type", "", "filter by messageType")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "max events to return (0 for no limit)")
	cmd.Flags().BoolVar(&opts.ParityMode, "parity", false, "sort by File Parity Order instead of Global Truth Order")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *QueryOptions) error {
	if opts.StartTime == "" || opts.StopTime == "" {
		return fmt.Errorf("query: --start and --stop are required")
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("query: open store: %w", err)
	}
	defer s.Close()

	timebase := ordering.TimebaseSource
	if opts.Timebase == "canonical" {
		timebase = ordering.TimebaseCanonical
	}

	var lanes []event.Lane
	if opts.Lanes != "" {
		for _, l := range strings.Split(opts.Lanes, ",") {
			lanes = append(lanes, event.Lane(strings.TrimSpace(l)))
		}
	}

	spec := query.Spec{
		ScopeID:     cfg.ScopeID,
		Lanes:       lanes,
		StartTime:   opts.StartTime,
		StopTime:    opts.StopTime,
		Timebase:    timebase,
		SystemID:    opts.SystemID,
		ContainerID: opts.ContainerID,
		UniqueID:    opts.UniqueID,
		MessageType: opts.MessageType,
		Limit:       opts.Limit,
		ParityMode:  opts.ParityMode,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	engine := query.New(s)
	events, err := engine.Query(ctx, spec)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
