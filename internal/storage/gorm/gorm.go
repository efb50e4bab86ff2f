// Package gormstorage implements storage.Backend on any GORM dialect. The
// Postgres and SQLite backends wrap it and only own the connection.
package gormstorage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/OCAP2/trcimport/internal/model"
	"github.com/OCAP2/trcimport/internal/model/convert"
	"github.com/OCAP2/trcimport/pkg/core"
)

// ErrNoImport is returned by entity and animation calls made outside
// StartImport/EndImport.
var ErrNoImport = errors.New("no import in progress")

// batchSize bounds rows per INSERT statement.
const batchSize = 2000

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend implements storage.Backend by writing rows through GORM.
type Backend struct {
	deps Dependencies

	current       *model.Import
	entities      map[uint]*model.Entity
	keyframeCount int
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend has no database")
	}
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close is a no-op; the owner of the connection closes it.
func (b *Backend) Close() error {
	return nil
}

// StartImport writes the import row.
func (b *Backend) StartImport(info *core.ImportInfo) error {
	row := convert.CoreToImport(*info)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create import: %w", err)
	}

	b.current = &row
	b.entities = make(map[uint]*model.Entity)
	b.keyframeCount = 0

	b.deps.Logger.Debug("Import row created", "importId", row.ImportID, "rowId", row.ID)
	return nil
}

// EndImport stamps the import with its end time and totals.
func (b *Backend) EndImport() error {
	if b.current == nil {
		return ErrNoImport
	}

	err := b.deps.DB.Model(b.current).Updates(map[string]any{
		"end_time":       sql.NullTime{Time: time.Now(), Valid: true},
		"entity_count":   len(b.entities),
		"keyframe_count": b.keyframeCount,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to finalize import: %w", err)
	}

	b.deps.Logger.Debug("Import finalized",
		"importId", b.current.ImportID,
		"entities", len(b.entities),
		"keyframes", b.keyframeCount)
	b.current = nil
	return nil
}

// AddEntity creates the entity row and assigns its ID to e.
func (b *Backend) AddEntity(e *core.Entity) error {
	if b.current == nil {
		return ErrNoImport
	}

	row := convert.CoreToEntity(*e, b.current.ID)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create entity %q: %w", e.Name, err)
	}

	e.ID = row.ID
	b.entities[row.ID] = &row
	return nil
}

// RecordAnimation writes the keyframes, samples and trajectory of one
// entity in a single transaction.
func (b *Backend) RecordAnimation(a *core.Animation) error {
	if b.current == nil {
		return ErrNoImport
	}
	entity, ok := b.entities[a.EntityID]
	if !ok {
		return fmt.Errorf("animation for unknown entity %d", a.EntityID)
	}

	keyframes := convert.AnimationToKeyframes(*a)
	samples := convert.AnimationToSamples(*a)
	trajectory := convert.AnimationToTrajectory(*a)

	err := b.deps.DB.Transaction(func(tx *gorm.DB) error {
		if len(keyframes) > 0 {
			if err := tx.CreateInBatches(keyframes, batchSize).Error; err != nil {
				return fmt.Errorf("keyframes: %w", err)
			}
		}
		if len(samples) > 0 {
			if err := tx.CreateInBatches(samples, batchSize).Error; err != nil {
				return fmt.Errorf("samples: %w", err)
			}
		}
		if err := tx.Model(entity).Update("trajectory", trajectory).Error; err != nil {
			return fmt.Errorf("trajectory: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record animation for %q: %w", a.Marker, err)
	}

	b.keyframeCount += len(keyframes)
	return nil
}
