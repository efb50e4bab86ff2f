package sqlitestorage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/trcimport/internal/database"
	"github.com/OCAP2/trcimport/internal/model"
	"github.com/OCAP2/trcimport/internal/storage"
	"github.com/OCAP2/trcimport/pkg/core"
)

var (
	_ storage.Backend    = (*Backend)(nil)
	_ storage.Uploadable = (*Backend)(nil)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runImport(t *testing.T, b *Backend) *core.ImportInfo {
	t.Helper()
	info := &core.ImportInfo{
		ID:          uuid.New(),
		SourcePath:  "/captures/walk.trc",
		Header:      core.Header{CameraRate: 30},
		StartTime:   time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC),
		MarkerCount: 1,
		FrameCount:  30,
	}
	require.NoError(t, b.StartImport(info))
	e := &core.Entity{Name: "Hip"}
	require.NoError(t, b.AddEntity(e))
	require.NoError(t, b.RecordAnimation(&core.Animation{
		EntityID: e.ID,
		Marker:   "Hip",
		Curves:   []core.Curve{{Channel: core.ChannelHide, Keyframes: []core.Keyframe{{Time: 0, Value: 1}}}},
		Samples:  []core.Sample{core.MissingSample()},
		Times:    []float64{0},
	}))
	require.NoError(t, b.EndImport())
	return info
}

func TestInMemory_DumpsOnEndImport(t *testing.T) {
	out := t.TempDir()
	b := New(Config{OutputDir: out}, quietLogger(), zerolog.Nop())
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })

	info := runImport(t, b)

	want := filepath.Join(out, "walk_20260212_213836.db")
	assert.Equal(t, want, b.GetExportedFilePath())
	_, err := os.Stat(want)
	require.NoError(t, err)

	meta := b.GetExportMetadata()
	assert.Equal(t, info.ID.String(), meta.ImportID)
	assert.Equal(t, 1.0, meta.Duration)

	// the dump is a standalone database holding the import
	dumped := database.NewManager(zerolog.Nop())
	require.NoError(t, dumped.ConnectSqlite(want))
	t.Cleanup(func() { dumped.Close() })
	var count int64
	require.NoError(t, dumped.DB.Model(&model.Entity{}).Count(&count).Error)
	assert.GreaterOrEqual(t, count, int64(1))
}

func TestFile_WritesInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scene.db")
	b := New(Config{Path: path}, quietLogger(), zerolog.Nop())
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })

	runImport(t, b)

	assert.Equal(t, path, b.GetExportedFilePath())
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestGetExportMetadata_BeforeImport(t *testing.T) {
	b := New(Config{}, nil, zerolog.Nop())
	assert.Equal(t, core.UploadMetadata{}, b.GetExportMetadata())
	assert.Empty(t, b.GetExportedFilePath())
}
