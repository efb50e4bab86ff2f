package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/OCAP2/trcimport/internal/config"
	"github.com/OCAP2/trcimport/internal/logging"
	intOtel "github.com/OCAP2/trcimport/internal/otel"
)

// Application holds what every command needs once setup has run.
type Application struct {
	ConfigDir string
	LogLevel  string // overrides logLevel from the config when set

	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	DBLogger     zerolog.Logger
	OTelProvider *intOtel.Provider

	LogFilePath  string
	logFile      *os.File
	graylog      *gelf.Writer
	sessionStart time.Time
}

// NewApplication creates an Application logging to the console until
// setup runs.
func NewApplication() *Application {
	m := logging.NewSlogManager()
	m.Setup(logging.Options{Level: "info"})
	return &Application{
		ConfigDir:    ".",
		SlogManager:  m,
		Logger:       m.Logger(),
		DBLogger:     zerolog.New(os.Stderr).With().Timestamp().Logger(),
		sessionStart: time.Now(),
	}
}

// setup loads the config and wires logging for one run against source.
// A missing config file is not fatal; defaults apply.
func (app *Application) setup(ctx context.Context, source string) error {
	if err := config.Load(app.ConfigDir); err != nil {
		app.Logger.Warn("Failed to load config, using defaults!", "error", err)
	}
	if app.LogLevel != "" {
		viper.Set("logLevel", app.LogLevel)
	}
	level := config.GetString("logLevel")

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}
	app.LogFilePath = logging.LogFilePath(logsDir, AppName, source, app.sessionStart)

	// keep the previous log of the same run name
	if _, err := os.Stat(app.LogFilePath); err == nil {
		_ = os.Rename(app.LogFilePath, app.LogFilePath+".old")
	}
	f, err := os.OpenFile(app.LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to create log file %s: %w", app.LogFilePath, err)
	}
	app.logFile = f

	var graylog io.Writer
	if gc := config.GetGraylogConfig(); gc.Enabled {
		w, err := logging.NewGraylogWriter(gc.Address, AppName)
		if err != nil {
			app.Logger.Warn("Failed to connect to Graylog", "address", gc.Address, "error", err)
		} else {
			app.graylog = w
			graylog = w
		}
	}

	otelCfg := config.GetOTelConfig()
	var otelLogProvider *sdklog.LoggerProvider
	if otelCfg.Enabled {
		app.OTelProvider, err = intOtel.New(ctx, intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    f,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			app.Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			otelLogProvider = app.OTelProvider.LoggerProvider()
		}
	}

	app.SlogManager.Setup(logging.Options{
		File:        io.MultiWriter(os.Stderr, f),
		Level:       level,
		Provider:    otelLogProvider,
		Graylog:     graylog,
		ServiceName: otelCfg.ServiceName,
	})
	app.Logger = app.SlogManager.Logger()

	zlevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zlevel = zerolog.InfoLevel
	}
	app.DBLogger = zerolog.New(zerolog.ConsoleWriter{
		Out:        f,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}).Level(zlevel).With().Timestamp().Logger()

	app.Logger.Info("Starting",
		"version", CurrentVersion,
		"buildDate", BuildDate,
		"source", source,
		"logFile", app.LogFilePath)
	return nil
}

// close flushes telemetry and releases the log outputs.
func (app *Application) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if err := app.SlogManager.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush logs: %w", err))
	}
	if app.OTelProvider != nil {
		if err := app.OTelProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down OTel: %w", err))
		}
	}
	if app.graylog != nil {
		errs = append(errs, app.graylog.Close())
	}
	if app.logFile != nil {
		errs = append(errs, app.logFile.Close())
	}
	return errors.Join(errs...)
}
