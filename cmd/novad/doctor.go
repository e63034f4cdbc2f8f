package main

import (
	"fmt"
	"os"

	"github.com/peakyragnar/nova/pkg/config"
	"github.com/peakyragnar/nova/pkg/store"
	"github.com/spf13/cobra"
)

func newDoctorCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the configured instance is reachable and healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, root)
		},
	}
}

func runDoctor(cmd *cobra.Command, root *RootOptions) error {
	out := cmd.OutOrStdout()
	ok := true

	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		fmt.Fprintf(out, "config: %s (error: %v)\n", root.ConfigPath, err)
		return nil
	}
	fmt.Fprintf(out, "config: %s\n", root.ConfigPath)

	for _, dir := range []struct {
		name string
		path string
	}{
		{"dataDir", cfg.DataDir},
		{"exportDir", cfg.ExportDir},
	} {
		if dir.path == "" {
			continue
		}
		if err := os.MkdirAll(dir.path, 0o755); err != nil {
			fmt.Fprintf(out, "%s: %s (error: %v)\n", dir.name, dir.path, err)
			ok = false
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", dir.name, dir.path)
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(out, "db: %s (error: %v)\n", cfg.DBPath, err)
		ok = false
	} else {
		fmt.Fprintf(out, "db: %s\n", cfg.DBPath)
		s.Close()
	}

	if ok {
		fmt.Fprintln(out, "doctor: ok")
		return nil
	}
	fmt.Fprintln(out, "doctor: issues found")
	return fmt.Errorf("doctor: issues found")
}
