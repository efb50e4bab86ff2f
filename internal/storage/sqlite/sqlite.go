// Package sqlitestorage implements storage.Backend on SQLite by wrapping the
// GORM backend. With no path configured the database lives in memory and is
// written out with VACUUM INTO when the import ends.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/OCAP2/trcimport/internal/database"
	gormstorage "github.com/OCAP2/trcimport/internal/storage/gorm"
	"github.com/OCAP2/trcimport/internal/util"
	"github.com/OCAP2/trcimport/pkg/core"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	Path      string // database file; empty for in-memory with dump
	OutputDir string // dump directory for the in-memory database
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	manager *database.Manager
	cfg     Config
	logger  *slog.Logger

	info       *core.ImportInfo
	exportPath string
}

// New creates a new SQLite storage backend. The connection is opened in Init.
func New(cfg Config, logger *slog.Logger, dbLog zerolog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		manager: database.NewManager(dbLog),
		cfg:     cfg,
		logger:  logger,
	}
}

// Init opens the database and migrates the schema.
func (b *Backend) Init() error {
	if b.cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(b.cfg.Path), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	if err := b.manager.ConnectSqlite(b.cfg.Path); err != nil {
		return err
	}
	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: b.manager.DB, Logger: b.logger})
	return b.Backend.Init()
}

// Close releases the connection.
func (b *Backend) Close() error {
	return b.manager.Close()
}

// StartImport records the import and remembers it for the dump name.
func (b *Backend) StartImport(info *core.ImportInfo) error {
	if err := b.Backend.StartImport(info); err != nil {
		return err
	}
	b.info = info
	return nil
}

// EndImport finalizes the import and, for an in-memory database, dumps it
// to OutputDir.
func (b *Backend) EndImport() error {
	if err := b.Backend.EndImport(); err != nil {
		return err
	}

	if b.cfg.Path != "" {
		b.exportPath = b.cfg.Path
		return nil
	}

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(b.cfg.OutputDir, util.ExportFileName(b.info.SourcePath, b.info.StartTime, ".db"))
	if err := b.manager.DumpMemoryDBToDisk(path); err != nil {
		return err
	}
	b.exportPath = path

	b.logger.Info("Database written", "path", path)
	return nil
}

// GetExportedFilePath returns the database file of the last import.
func (b *Backend) GetExportedFilePath() string {
	return b.exportPath
}

// GetExportMetadata describes the last import for upload.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	if b.info == nil {
		return core.UploadMetadata{}
	}
	return util.UploadMetadataFor(b.info)
}
