// Package util provides small helpers shared by the storage backends.
package util

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/trcimport/pkg/core"
)

// timestampLayout is used in every exported file name.
const timestampLayout = "20060102_150405"

// SafeName makes s usable as a file name component. Spaces and path or
// drive separators become underscores.
func SafeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "scene"
	}
	return strings.NewReplacer(
		" ", "_",
		":", "_",
		"/", "_",
		`\`, "_",
	).Replace(s)
}

// ExportFileName returns "<source base name>_<timestamp><ext>" for the
// marker file at sourcePath, e.g. walk_20260212_213836.json.gz.
func ExportFileName(sourcePath string, start time.Time, ext string) string {
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "." {
		base = ""
	}
	return fmt.Sprintf("%s_%s%s", SafeName(base), start.Format(timestampLayout), ext)
}

// UploadMetadataFor summarizes an import for the uploader.
func UploadMetadataFor(info *core.ImportInfo) core.UploadMetadata {
	var duration float64
	if info.Header.CameraRate > 0 {
		duration = float64(info.FrameCount) / info.Header.CameraRate
	}
	return core.UploadMetadata{
		ImportID:    info.ID.String(),
		SourceName:  filepath.Base(info.SourcePath),
		MarkerCount: info.MarkerCount,
		FrameCount:  info.FrameCount,
		Duration:    duration,
	}
}
