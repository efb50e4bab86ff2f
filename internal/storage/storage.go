// internal/storage/storage.go
package storage

import "github.com/OCAP2/trcimport/pkg/core"

// Backend is the host a dataset is materialized into. Every implementation
// must satisfy it.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Import management
	StartImport(info *core.ImportInfo) error
	EndImport() error

	// Entity registration (assigns ID to the passed pointer)
	AddEntity(e *core.Entity) error

	// Curve data for a registered entity
	RecordAnimation(a *core.Animation) error
}

// Uploadable is an optional interface for backends that produce a file
// suitable for upload once the import ends.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
