package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/OCAP2/trcimport/internal/parser"
	"github.com/OCAP2/trcimport/internal/report"
	"github.com/OCAP2/trcimport/internal/stats"
)

type inspectOptions struct {
	chartPath string
	axis      string
	stride    int
}

// runInspect prints per-marker statistics and optionally writes a chart.
func (app *Application) runInspect(ctx context.Context, out io.Writer, path string, opts inspectOptions) (err error) {
	if err := validateTRCPath(path); err != nil {
		return err
	}
	axis, err := report.ParseAxis(opts.axis)
	if err != nil {
		return err
	}
	if err := app.setup(ctx, path); err != nil {
		return err
	}
	defer func() {
		if cerr := app.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ds, err := parser.NewParser(app.Logger).Parse(path)
	if err != nil {
		app.Logger.Error("Failed to parse TRC file", "path", path, "error", err)
		return err
	}

	summary := stats.Compute(ds)
	fmt.Fprint(out, report.Table(filepath.Base(path), summary))

	if opts.chartPath == "" {
		return nil
	}

	f, err := os.Create(opts.chartPath)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := report.WriteCharts(f, ds, summary, report.ChartOptions{
		Title:  filepath.Base(path),
		Axis:   axis,
		Stride: opts.stride,
	}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	app.Logger.Info("Chart written", "path", opts.chartPath)
	fmt.Fprintf(out, "Chart written to %s\n", opts.chartPath)
	return nil
}
