package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/peakyragnar/nova/pkg/command"
	"github.com/peakyragnar/nova/pkg/config"
	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/export"
	"github.com/peakyragnar/nova/pkg/facade"
	"github.com/peakyragnar/nova/pkg/filewriter"
	"github.com/peakyragnar/nova/pkg/filewriter/driver/positioncsv"
	"github.com/peakyragnar/nova/pkg/filewriter/driver/rawappender"
	"github.com/peakyragnar/nova/pkg/ingest"
	"github.com/peakyragnar/nova/pkg/logging"
	"github.com/peakyragnar/nova/pkg/metrics"
	"github.com/peakyragnar/nova/pkg/query"
	"github.com/peakyragnar/nova/pkg/store"
	"github.com/peakyragnar/nova/pkg/stream"
	"github.com/peakyragnar/nova/pkg/uistate"
	"github.com/spf13/cobra"
)

// ServeOptions holds the serve command's own flags, the same
// *RootOptions-embedding shape the pack's run command uses for its
// per-command option structs.
type ServeOptions struct {
	*RootOptions
}

func newServeCommand(root *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Start novad's facade listener",
		Long:          "serve opens the configured store, wires every engine behind a facade.Facade, and accepts pkg/facade.Channel connections until interrupted.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("serve: open store: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Error().Err(err).Msg("closing store")
		}
	}()

	queryEngine := query.New(s)
	notifier := stream.NewNotifier()
	streamMgr := stream.NewManager()
	uiMgr := uistate.New(queryEngine, cfg.CheckpointInterval(), cfg.HistoryTimeout())

	pipeline := ingest.New(s)
	pipeline.UIState = uiMgr
	pipeline.Notifier = notifier
	pipeline.Logger = log

	registry := filewriter.NewRegistry(rawappender.Driver{}, positioncsv.Driver{})

	// Writer.onBind re-enters pipeline.IngestEvent to record the
	// DriverBinding metadata event the first time a stream is written,
	// so the Writer and the Pipeline that owns it are mutually
	// referential. writer is declared first and captured by the
	// closure passed to filewriter.New, then assigned the result.
	var writer *filewriter.Writer
	onBind := func(binding event.Event) error {
		_, err := pipeline.IngestEvent(context.Background(), binding)
		return err
	}
	writer = filewriter.New(cfg.DataDir, registry, onBind, nil)
	writer.Logger = log
	writer.Start()
	defer writer.Close()
	pipeline.Writer = writer

	dispatch := command.Dispatcher(func(ctx context.Context, e event.Event) error {
		log.Info().Str("commandId", e.Command.CommandID).Str("targetId", e.Command.TargetID).Msg("command dispatched (no-op transport)")
		return nil
	})
	commandMgr := command.New(s, pipeline, dispatch)
	commandMgr.Logger = log

	exportEngine := export.New(queryEngine, registry, cfg.ExportDir, nil)

	mode := command.TimelineModeLive
	f := &facade.Facade{
		Query:     queryEngine,
		StreamMgr: streamMgr,
		Notifier:  notifier,
		Command:   commandMgr,
		Export:    exportEngine,
		Ingest:    pipeline,
		Mode:      func() command.TimelineMode { return mode },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Address); err != nil {
				log.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	ln, err := net.Listen("tcp", cfg.Facade.Address)
	if err != nil {
		return fmt.Errorf("serve: listen %s: %w", cfg.Facade.Address, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "novad listening on %s (scope %s)\n", cfg.Facade.Address, cfg.ScopeID)
	log.Info().Str("address", cfg.Facade.Address).Str("scopeId", cfg.ScopeID).Msg("facade listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Error().Err(err).Msg("accept")
				continue
			}
		}
		go func(c net.Conn) {
			defer c.Close()
			channel := &facade.Channel{Facade: f, Conn: c}
			if err := channel.Serve(ctx); err != nil {
				log.Debug().Err(err).Msg("channel closed")
			}
		}(conn)
	}
}
