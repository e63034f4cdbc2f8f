package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/peakyragnar/nova/pkg/config"
	"github.com/peakyragnar/nova/pkg/export"
	"github.com/peakyragnar/nova/pkg/filewriter"
	"github.com/peakyragnar/nova/pkg/filewriter/driver/positioncsv"
	"github.com/peakyragnar/nova/pkg/filewriter/driver/rawappender"
	"github.com/peakyragnar/nova/pkg/query"
	"github.com/peakyragnar/nova/pkg/store"
	"github.com/spf13/cobra"
)

// ExportOptions holds the export command's own flags.
type ExportOptions struct {
	*RootOptions

	StartTime string
	StopTime  string
}

func newExportCommand(root *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:           "export",
		Short:         "Export a bounded window's recorded-output files into a zip archive",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.StartTime, "start", "", "inclusive ISO-8601 start time (required)")
	cmd.Flags().StringVar(&opts.StopTime, "stop", "", "inclusive ISO-8601 stop time (required)")

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions) error {
	if opts.StartTime == "" || opts.StopTime == "" {
		return fmt.Errorf("export: --start and --stop are required")
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("export: open store: %w", err)
	}
	defer s.Close()

	registry := filewriter.NewRegistry(rawappender.Driver{}, positioncsv.Driver{})
	engine := export.New(query.New(s), registry, cfg.ExportDir, nil)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	manifest, err := engine.Run(ctx, export.Spec{
		ScopeID:   cfg.ScopeID,
		StartTime: opts.StartTime,
		StopTime:  opts.StopTime,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(manifest)
}
