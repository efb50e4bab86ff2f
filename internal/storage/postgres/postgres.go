// Package postgres implements storage.Backend on PostgreSQL/PostGIS by
// wrapping the GORM backend.
package postgres

import (
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/OCAP2/trcimport/internal/config"
	"github.com/OCAP2/trcimport/internal/database"
	gormstorage "github.com/OCAP2/trcimport/internal/storage/gorm"
)

// maxOpenConns caps the pool; imports write from a single goroutine.
const maxOpenConns = 4

// Backend owns the Postgres connection and delegates writes to GORM.
type Backend struct {
	*gormstorage.Backend
	manager *database.Manager
	cfg     config.DBConfig
	logger  *slog.Logger
}

// New creates a Postgres backend. The connection is opened in Init.
func New(cfg config.DBConfig, logger *slog.Logger, dbLog zerolog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		manager: database.NewManager(dbLog),
		cfg:     cfg,
		logger:  logger,
	}
}

// DSN returns the connection string used by Init.
func (b *Backend) DSN() string {
	return database.PostgresDSN(b.cfg)
}

// Init connects, ensures PostGIS and migrates the schema.
func (b *Backend) Init() error {
	if err := b.manager.ConnectPostgres(b.cfg); err != nil {
		return err
	}
	b.manager.SqlDB.SetMaxOpenConns(maxOpenConns)

	if err := b.manager.Setup(); err != nil {
		return err
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: b.manager.DB, Logger: b.logger})
	b.logger.Info("Postgres backend ready", "host", b.cfg.Host, "database", b.cfg.Database)
	return nil
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	return b.manager.Close()
}
