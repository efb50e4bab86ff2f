package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OCAP2/trcimport/internal/config"
)

// ErrNotTRC is returned for paths without a .trc extension.
var ErrNotTRC = errors.New("not a .trc file")

// validateTRCPath accepts only *.trc paths, case-insensitively.
func validateTRCPath(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".trc") {
		return fmt.Errorf("%w: %s", ErrNotTRC, path)
	}
	return nil
}

// createRootCommand builds the command tree.
func (app *Application) createRootCommand(ctx context.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           AppName,
		Short:         "Import TRC motion-capture marker files",
		Long:          `Parse TRC marker files and materialize each marker as a keyframed entity in the configured storage backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&app.ConfigDir, "config", app.ConfigDir, "directory containing "+config.ConfigFileName)
	rootCmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "override logLevel (debug, info, warn, error)")

	rootCmd.AddCommand(app.createImportCommand(ctx))
	rootCmd.AddCommand(app.createInspectCommand(ctx))
	rootCmd.AddCommand(app.createVersionCommand())

	return rootCmd
}

func (app *Application) createImportCommand(ctx context.Context) *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:   "import [file.trc]",
		Short: "Import a TRC file into the configured storage backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runImport(ctx, cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.storageType, "storage", "", "override storage.type (memory, sqlite, postgres, websocket, influx)")
	cmd.Flags().Float64Var(&opts.playbackRate, "playback-rate", 0, "host frames per second, overrides import.playbackRate")
	cmd.Flags().BoolVar(&opts.noUpload, "no-upload", false, "skip the S3 upload even when enabled in the config")
	return cmd
}

func (app *Application) createInspectCommand(ctx context.Context) *cobra.Command {
	var opts inspectOptions
	cmd := &cobra.Command{
		Use:   "inspect [file.trc]",
		Short: "Print marker coverage and gap statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runInspect(ctx, cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.chartPath, "chart", "", "write an HTML chart report to this path")
	cmd.Flags().StringVar(&opts.axis, "axis", "y", "coordinate plotted in the chart (x, y or z)")
	cmd.Flags().IntVar(&opts.stride, "stride", 1, "plot every n-th frame in the chart")
	return cmd
}

func (app *Application) createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
		},
	}
}
