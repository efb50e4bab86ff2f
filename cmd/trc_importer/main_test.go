package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/trcimport/internal/api"
	"github.com/OCAP2/trcimport/internal/config"
	"github.com/OCAP2/trcimport/internal/parser"
	"github.com/OCAP2/trcimport/internal/storage/influx"
	"github.com/OCAP2/trcimport/internal/storage/memory"
	pgstorage "github.com/OCAP2/trcimport/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/trcimport/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/trcimport/internal/storage/websocket"
)

const walkTRC = "PathFileType\t4\t(X/Y/Z)\twalk.trc\n" +
	"DataRate\tCameraRate\tNumFrames\tNumMarkers\tUnits\tOrigDataRate\tOrigDataStartFrame\tOrigNumFrames\n" +
	"30.0\t30.0\t3\t2\tmm\t30.0\t1\t3\n" +
	"Frame#\tTime\tHip\t\t\tKnee\t\t\t\n" +
	"\t\tX1\tY1\tZ1\tX2\tY2\tZ2\t\n" +
	"\n" +
	"1\t0.000\t1\t2\t3\t4\t5\t6\t\n" +
	"2\t0.033\t1.5\t2.5\t3.5\t\t\t\t\n" +
	"3\t0.067\t2\t3\t4\t5\t6\t7\t\n"

// testEnv writes a config and a TRC file into a temp dir and returns an
// Application pointed at it.
func testEnv(t *testing.T, extraConfig string) (*Application, string, string) {
	t.Helper()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	outDir := filepath.Join(dir, "scenes")
	cfg := fmt.Sprintf(`{
		"logLevel": "debug",
		"logsDir": %q,
		"storage": {"type": "memory", "memory": {"outputDir": %q}}%s
	}`, filepath.Join(dir, "logs"), outDir, extraConfig)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(cfg), 0644))

	trc := filepath.Join(dir, "walk.trc")
	require.NoError(t, os.WriteFile(trc, []byte(walkTRC), 0644))

	app := NewApplication()
	app.ConfigDir = dir
	return app, trc, outDir
}

func TestValidateTRCPath(t *testing.T) {
	assert.NoError(t, validateTRCPath("walk.trc"))
	assert.NoError(t, validateTRCPath("/captures/WALK.TRC"))
	assert.ErrorIs(t, validateTRCPath("walk.csv"), ErrNotTRC)
	assert.ErrorIs(t, validateTRCPath("walk"), ErrNotTRC)
	assert.ErrorIs(t, validateTRCPath("trc"), ErrNotTRC)
}

func TestCreateStorageBackend(t *testing.T) {
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	logger := NewApplication().Logger

	tests := []struct {
		typ  string
		want any
	}{
		{"memory", &memory.Backend{}},
		{"", &memory.Backend{}},
		{"SQLite", &sqlitestorage.Backend{}},
		{"postgres", &pgstorage.Backend{}},
		{"websocket", &wsstorage.Backend{}},
		{"influx", &influx.Backend{}},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			b, err := createStorageBackend(config.StorageConfig{Type: tt.typ}, logger, zerolog.Nop())
			require.NoError(t, err)
			assert.IsType(t, tt.want, b)
		})
	}

	_, err := createStorageBackend(config.StorageConfig{Type: "redis"}, logger, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown storage type")
}

func TestImportCommand_Memory(t *testing.T) {
	app, trc, outDir := testEnv(t, "")

	var out bytes.Buffer
	cmd := app.createRootCommand(context.Background())
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"import", trc, "--playback-rate", "60"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Imported 2 markers, 3 frames")
	assert.Contains(t, out.String(), "Scene written to")

	matches, err := filepath.Glob(filepath.Join(outDir, "walk_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	var scene struct {
		PlaybackRate float64 `json:"playbackRate"`
		EndFrame     float64 `json:"endFrame"`
		Entities     []struct {
			Name    string `json:"name"`
			Missing int    `json:"missing"`
		} `json:"entities"`
	}
	require.NoError(t, json.Unmarshal(data, &scene))
	assert.Equal(t, 60.0, scene.PlaybackRate)
	assert.InDelta(t, 4.0, scene.EndFrame, 1e-9)
	require.Len(t, scene.Entities, 2)
	assert.Equal(t, "Hip", scene.Entities[0].Name)
	assert.Equal(t, 1, scene.Entities[1].Missing)

	logs, err := filepath.Glob(filepath.Join(filepath.Dir(outDir), "logs", "trc_importer.walk.*.log"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestImportCommand_RejectsNonTRC(t *testing.T) {
	app, _, _ := testEnv(t, "")

	cmd := app.createRootCommand(context.Background())
	cmd.SetArgs([]string{"import", "walk.csv"})
	assert.ErrorIs(t, cmd.Execute(), ErrNotTRC)
}

func TestImportCommand_ParseError(t *testing.T) {
	app, trc, _ := testEnv(t, "")
	require.NoError(t, os.WriteFile(trc, []byte("PathFileType\n"), 0644))

	cmd := app.createRootCommand(context.Background())
	cmd.SetArgs([]string{"import", trc})
	assert.ErrorIs(t, cmd.Execute(), parser.ErrParse)
}

func TestImportCommand_UnknownStorage(t *testing.T) {
	app, trc, _ := testEnv(t, "")

	cmd := app.createRootCommand(context.Background())
	cmd.SetArgs([]string{"import", trc, "--storage", "redis"})
	assert.ErrorContains(t, cmd.Execute(), "unknown storage type")
}

func TestInspectCommand(t *testing.T) {
	app, trc, _ := testEnv(t, "")
	chart := filepath.Join(t.TempDir(), "walk.html")

	var out bytes.Buffer
	cmd := app.createRootCommand(context.Background())
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"inspect", trc, "--chart", chart, "--axis", "z"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "walk.trc: 2 markers, 3 frames at 30 Hz")
	assert.Contains(t, out.String(), "Knee")
	assert.Contains(t, out.String(), "Chart written to")

	html, err := os.ReadFile(chart)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(html), "Z position"))
}

func TestInspectCommand_BadAxis(t *testing.T) {
	app, trc, _ := testEnv(t, "")

	cmd := app.createRootCommand(context.Background())
	cmd.SetArgs([]string{"inspect", trc, "--axis", "w"})
	assert.ErrorContains(t, cmd.Execute(), "unknown axis")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := NewApplication().createRootCommand(context.Background())
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), AppName+" "+CurrentVersion)
}

func TestImportCommand_SceneServerUpload(t *testing.T) {
	var gotImportID, gotSource string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthcheck":
			w.WriteHeader(http.StatusOK)
		case api.UploadPath:
			if !assert.NoError(t, r.ParseMultipartForm(10<<20)) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			gotImportID = r.FormValue("importId")
			gotSource = r.FormValue("sourceName")
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	app, trc, _ := testEnv(t, fmt.Sprintf(`, "api": {"enabled": true, "serverUrl": %q, "apiKey": "k"}`, server.URL))

	var out bytes.Buffer
	cmd := app.createRootCommand(context.Background())
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"import", trc})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Sent to scene server "+server.URL)
	assert.NotEmpty(t, gotImportID)
	assert.Equal(t, "walk.trc", gotSource)
}

func TestImportCommand_NoUploadSkipsSceneServer(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	app, trc, _ := testEnv(t, fmt.Sprintf(`, "api": {"enabled": true, "serverUrl": %q}`, server.URL))

	cmd := app.createRootCommand(context.Background())
	cmd.SetArgs([]string{"import", trc, "--no-upload"})
	require.NoError(t, cmd.Execute())
	assert.False(t, called)
}
