package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rs/zerolog"

	"github.com/OCAP2/trcimport/internal/config"
	"github.com/OCAP2/trcimport/internal/storage"
	influxstorage "github.com/OCAP2/trcimport/internal/storage/influx"
	"github.com/OCAP2/trcimport/internal/storage/memory"
	pgstorage "github.com/OCAP2/trcimport/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/trcimport/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/trcimport/internal/storage/websocket"
)

// Storage backend types accepted by storage.type.
const (
	StorageMemory    = "memory"
	StorageSQLite    = "sqlite"
	StoragePostgres  = "postgres"
	StorageWebSocket = "websocket"
	StorageInflux    = "influx"
)

func createStorageBackend(storageCfg config.StorageConfig, logger *slog.Logger, dbLog zerolog.Logger) (storage.Backend, error) {
	switch strings.ToLower(storageCfg.Type) {
	case StorageMemory, "":
		logger.Info("Memory storage backend selected", "outputDir", storageCfg.Memory.OutputDir, "format", storageCfg.Memory.Format)
		return memory.New(storageCfg.Memory), nil

	case StorageSQLite:
		logger.Info("SQLite storage backend selected", "path", storageCfg.SQLite.Path)
		return sqlitestorage.New(sqlitestorage.Config{
			Path:      storageCfg.SQLite.Path,
			OutputDir: storageCfg.Memory.OutputDir,
		}, logger, dbLog), nil

	case StoragePostgres:
		dbCfg := config.GetDBConfig()
		logger.Info("Postgres storage backend selected", "host", dbCfg.Host, "database", dbCfg.Database)
		return pgstorage.New(dbCfg, logger, dbLog), nil

	case StorageWebSocket:
		wsCfg := config.GetWebSocketConfig()
		logger.Info("WebSocket storage backend selected", "url", wsCfg.URL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsCfg.URL,
			Secret: wsCfg.Secret,
		}, logger), nil

	case StorageInflux:
		influxCfg := config.GetInfluxConfig()
		logger.Info("InfluxDB storage backend selected", "url", influxCfg.URL(), "bucket", influxCfg.Bucket)
		return influxstorage.New(influxCfg, dbLog), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", storageCfg.Type)
	}
}
