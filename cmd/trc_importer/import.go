package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/trcimport/internal/api"
	"github.com/OCAP2/trcimport/internal/config"
	"github.com/OCAP2/trcimport/internal/materialize"
	"github.com/OCAP2/trcimport/internal/parser"
	"github.com/OCAP2/trcimport/internal/storage"
	"github.com/OCAP2/trcimport/internal/upload"
)

type importOptions struct {
	storageType  string
	playbackRate float64
	noUpload     bool
}

// runImport parses path and materializes it into the configured backend.
func (app *Application) runImport(ctx context.Context, out io.Writer, path string, opts importOptions) (err error) {
	if err := validateTRCPath(path); err != nil {
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

	start := time.Now()
	ds, err := parser.NewParser(app.Logger).Parse(path)
	if err != nil {
		app.Logger.Error("Failed to parse TRC file", "path", path, "error", err)
		return err
	}

	storageCfg := config.GetStorageConfig()
	if opts.storageType != "" {
		storageCfg.Type = opts.storageType
	}
	backend, err := createStorageBackend(storageCfg, app.Logger, app.DBLogger)
	if err != nil {
		app.Logger.Error("Failed to create storage backend", "error", err)
		return err
	}
	if err := backend.Init(); err != nil {
		app.Logger.Error("Failed to initialize storage backend", "type", storageCfg.Type, "error", err)
		return fmt.Errorf("failed to initialize %s backend: %w", storageCfg.Type, err)
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			app.Logger.Warn("Failed to close storage backend", "error", cerr)
		}
	}()

	rate := opts.playbackRate
	if rate == 0 {
		rate = config.GetImportConfig().PlaybackRate
	}

	var meter metric.Meter
	if app.OTelProvider != nil {
		meter = app.OTelProvider.Meter(AppName)
	}
	m, err := materialize.New(materialize.Dependencies{
		Backend: backend,
		Logger:  app.Logger,
		Meter:   meter,
	}, materialize.Config{
		PlaybackRate: rate,
		SourcePath:   path,
	})
	if err != nil {
		return err
	}

	info, err := m.Materialize(ds)
	if err != nil {
		app.Logger.Error("Import failed", "path", path, "error", err)
		return err
	}

	fmt.Fprintf(out, "Imported %d markers, %d frames from %s into %s (import %s, %s)\n",
		info.MarkerCount, info.FrameCount, path, storageCfg.Type, info.ID, time.Since(start).Round(time.Millisecond))

	exported, ok := backend.(storage.Uploadable)
	if !ok || exported.GetExportedFilePath() == "" {
		return nil
	}
	fmt.Fprintf(out, "Scene written to %s\n", exported.GetExportedFilePath())

	if opts.noUpload {
		return nil
	}
	if err := app.uploadToS3(ctx, out, exported); err != nil {
		return err
	}
	return app.uploadToSceneServer(ctx, out, exported)
}

// uploadToS3 sends the export to the configured bucket when enabled.
func (app *Application) uploadToS3(ctx context.Context, out io.Writer, exported storage.Uploadable) error {
	uploadCfg := config.GetUploadConfig()
	if !uploadCfg.Enabled {
		return nil
	}
	uploader, err := upload.New(uploadCfg)
	if err != nil {
		return fmt.Errorf("failed to create uploader: %w", err)
	}
	uploadCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()
	url, err := uploader.UploadExport(uploadCtx, exported)
	if err != nil {
		app.Logger.Error("Upload failed", "file", exported.GetExportedFilePath(), "error", err)
		return err
	}
	app.Logger.Info("Scene uploaded", "url", url)
	fmt.Fprintf(out, "Uploaded to %s\n", url)
	return nil
}

// uploadToSceneServer posts the export to the scene server when enabled.
// An unreachable server is logged and skipped; the local file remains.
func (app *Application) uploadToSceneServer(ctx context.Context, out io.Writer, exported storage.Uploadable) error {
	apiCfg := config.GetAPIConfig()
	if !apiCfg.Enabled {
		return nil
	}
	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		app.Logger.Warn("Scene server is offline, skipping upload", "url", apiCfg.ServerURL, "error", err)
		return nil
	}
	if err := client.Upload(ctx, exported.GetExportedFilePath(), exported.GetExportMetadata()); err != nil {
		app.Logger.Error("Scene server upload failed", "url", apiCfg.ServerURL, "error", err)
		return err
	}
	app.Logger.Info("Scene sent to scene server", "url", apiCfg.ServerURL)
	fmt.Fprintf(out, "Sent to scene server %s\n", apiCfg.ServerURL)
	return nil
}
