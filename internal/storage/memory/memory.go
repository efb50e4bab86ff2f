// internal/storage/memory/memory.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/OCAP2/trcimport/internal/config"
	v1 "github.com/OCAP2/trcimport/internal/storage/memory/export/v1"
	"github.com/OCAP2/trcimport/internal/util"
	"github.com/OCAP2/trcimport/pkg/core"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrNoImport is returned by calls made outside StartImport/EndImport.
var ErrNoImport = errors.New("no import in progress")

// Backend keeps the scene in memory and writes it to a file on EndImport.
type Backend struct {
	cfg  config.MemoryConfig
	info *core.ImportInfo

	entities map[uint]*v1.EntityRecord
	order    []*v1.EntityRecord

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		entities: make(map[uint]*v1.EntityRecord),
	}
}

// Init validates the configured format.
func (b *Backend) Init() error {
	switch b.format() {
	case FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported export format %q", b.cfg.Format)
	}
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartImport begins collecting a new scene
func (b *Backend) StartImport(info *core.ImportInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.info = info
	b.entities = make(map[uint]*v1.EntityRecord)
	b.order = nil
	b.idCounter = 0
	return nil
}

// EndImport writes the scene file
func (b *Backend) EndImport() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.info == nil {
		return ErrNoImport
	}
	return b.export()
}

// AddEntity registers an entity and assigns it the next ID
func (b *Backend) AddEntity(e *core.Entity) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.info == nil {
		return ErrNoImport
	}

	b.idCounter++
	e.ID = b.idCounter

	rec := &v1.EntityRecord{Entity: *e}
	b.entities[e.ID] = rec
	b.order = append(b.order, rec)
	return nil
}

// RecordAnimation attaches curves to a registered entity
func (b *Backend) RecordAnimation(a *core.Animation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.info == nil {
		return ErrNoImport
	}
	rec, ok := b.entities[a.EntityID]
	if !ok {
		return fmt.Errorf("animation for unknown entity %d", a.EntityID)
	}
	rec.Animation = a
	return nil
}

// GetEntity returns a registered entity by ID
func (b *Backend) GetEntity(id uint) (*core.Entity, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.entities[id]
	if !ok {
		return nil, false
	}
	return &rec.Entity, true
}

// GetAnimation returns the animation recorded for an entity
func (b *Backend) GetAnimation(id uint) (*core.Animation, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.entities[id]
	if !ok || rec.Animation == nil {
		return nil, false
	}
	return rec.Animation, true
}

// Scene builds the export document from the current state
func (b *Backend) Scene() v1.Scene {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return v1.Build(&v1.SceneData{Info: b.info, Entities: b.order})
}

// GetExportedFilePath returns the path of the last written scene
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last scene for upload
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.info == nil {
		return core.UploadMetadata{}
	}
	return util.UploadMetadataFor(b.info)
}

func (b *Backend) format() string {
	if b.cfg.Format == "" {
		return FormatJSON
	}
	return strings.ToLower(b.cfg.Format)
}

func (b *Backend) extension() string {
	ext := "." + b.format()
	if b.cfg.CompressOutput {
		ext += ".gz"
	}
	return ext
}

// export writes the scene to OutputDir. Caller holds the lock.
func (b *Backend) export() error {
	scene := v1.Build(&v1.SceneData{Info: b.info, Entities: b.order})

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, util.ExportFileName(b.info.SourcePath, b.info.StartTime, b.extension()))

	if err := b.writeFile(outputPath, scene); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) writeFile(path string, scene v1.Scene) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if b.cfg.CompressOutput {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := encodeScene(w, b.format(), scene); err != nil {
		return fmt.Errorf("failed to encode scene: %w", err)
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	}
	return f.Close()
}

func encodeScene(w io.Writer, format string, scene v1.Scene) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(scene); err != nil {
			return err
		}
		return enc.Close()
	default:
		return json.NewEncoder(w).Encode(scene)
	}
}
