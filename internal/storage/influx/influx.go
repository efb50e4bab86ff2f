// Package influx writes marker keyframes to InfluxDB as time series.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/OCAP2/trcimport/internal/config"
	"github.com/OCAP2/trcimport/pkg/core"
)

// Measurement names.
const (
	MeasurementKeyframe = "marker_keyframe"
	MeasurementImport   = "marker_import"
)

// ErrNoImport is returned by calls made outside StartImport/EndImport.
var ErrNoImport = errors.New("no import in progress")

// Backend writes every keyframe as a point. When the server does not answer
// the initial ping, points go to a gzipped line protocol backup file instead.
type Backend struct {
	cfg    config.InfluxConfig
	Logger zerolog.Logger

	client  influxdb2.Client
	writer  influxdb2_api.WriteAPIBlocking
	IsValid bool

	backupFile   *os.File
	BackupWriter *gzip.Writer

	info      *core.ImportInfo
	names     map[uint]string
	nextID    uint
	keyframes int
}

// New creates an InfluxDB backend.
func New(cfg config.InfluxConfig, log zerolog.Logger) *Backend {
	return &Backend{
		cfg:    cfg,
		Logger: log,
		names:  make(map[uint]string),
	}
}

// Init connects to InfluxDB, falling back to the backup file.
func (b *Backend) Init() error {
	if b.cfg.Bucket == "" {
		return errors.New("influx bucket not configured")
	}

	b.client = influxdb2.NewClientWithOptions(
		b.cfg.URL(),
		b.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetHTTPRequestTimeout(10),
	)

	// validate client connection health
	running, err := b.client.Ping(context.Background())
	if err == nil && running {
		b.IsValid = true
		b.writer = b.client.WriteAPIBlocking(b.cfg.Org, b.cfg.Bucket)
		b.Logger.Info().Str("url", b.cfg.URL()).Str("bucket", b.cfg.Bucket).Msg("InfluxDB client initialized")
		return nil
	}

	b.IsValid = false
	if b.cfg.BackupPath == "" {
		return fmt.Errorf("influxDB unreachable and no backup path configured: %v", err)
	}
	b.Logger.Warn().Err(err).Str("backupPath", b.cfg.BackupPath).
		Msg("Failed to reach InfluxDB, writing to backup file")

	if err := os.MkdirAll(filepath.Dir(b.cfg.BackupPath), 0755); err != nil {
		return fmt.Errorf("error creating backup directory: %w", err)
	}
	file, err := os.OpenFile(b.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	b.backupFile = file
	b.BackupWriter = gzip.NewWriter(file)
	return nil
}

// Close flushes the backup file and releases the client.
func (b *Backend) Close() error {
	var errs []error
	if b.BackupWriter != nil {
		errs = append(errs, b.BackupWriter.Close())
		b.BackupWriter = nil
	}
	if b.backupFile != nil {
		errs = append(errs, b.backupFile.Close())
		b.backupFile = nil
	}
	if b.client != nil {
		b.client.Close()
		b.client = nil
	}
	return errors.Join(errs...)
}

// StartImport resets per-import state.
func (b *Backend) StartImport(info *core.ImportInfo) error {
	b.info = info
	b.names = make(map[uint]string)
	b.nextID = 0
	b.keyframes = 0
	return nil
}

// EndImport writes a summary point for the import.
func (b *Backend) EndImport() error {
	if b.info == nil {
		return ErrNoImport
	}

	point := influxdb2_write.NewPoint(
		MeasurementImport,
		map[string]string{
			"import_id": b.info.ID.String(),
			"source":    filepath.Base(b.info.SourcePath),
		},
		map[string]interface{}{
			"markers":     b.info.MarkerCount,
			"frames":      b.info.FrameCount,
			"entities":    int(b.nextID),
			"keyframes":   b.keyframes,
			"camera_rate": b.info.Header.CameraRate,
		},
		b.info.StartTime,
	)
	if err := b.WritePoints(context.Background(), point); err != nil {
		return err
	}

	b.Logger.Info().
		Str("importId", b.info.ID.String()).
		Int("keyframes", b.keyframes).
		Msg("Import written to InfluxDB")
	b.info = nil
	return nil
}

// AddEntity assigns the next ID. Entities are carried as the marker tag.
func (b *Backend) AddEntity(e *core.Entity) error {
	if b.info == nil {
		return ErrNoImport
	}
	b.nextID++
	e.ID = b.nextID
	b.names[e.ID] = e.Name
	return nil
}

// RecordAnimation writes one point per keyframe.
func (b *Backend) RecordAnimation(a *core.Animation) error {
	if b.info == nil {
		return ErrNoImport
	}
	name, ok := b.names[a.EntityID]
	if !ok {
		return fmt.Errorf("animation for unknown entity %d", a.EntityID)
	}

	points := make([]*influxdb2_write.Point, 0, a.KeyframeCount())
	for _, curve := range a.Curves {
		for _, kf := range curve.Keyframes {
			points = append(points, influxdb2_write.NewPoint(
				MeasurementKeyframe,
				map[string]string{
					"import_id": b.info.ID.String(),
					"marker":    name,
					"data_path": curve.Channel.DataPath,
					"index":     strconv.Itoa(curve.Channel.Index),
				},
				map[string]interface{}{
					"value": kf.Value,
					"frame": kf.Time,
				},
				b.pointTime(kf.Time),
			))
		}
	}

	if err := b.WritePoints(context.Background(), points...); err != nil {
		return err
	}
	b.keyframes += len(points)
	return nil
}

// pointTime maps a host frame to wall time, anchored at the import start.
func (b *Backend) pointTime(frame float64) time.Time {
	rate := b.info.PlaybackRate
	if rate <= 0 {
		return b.info.StartTime
	}
	return b.info.StartTime.Add(time.Duration(frame / rate * float64(time.Second)))
}

// WritePoints writes points to InfluxDB or the backup file.
func (b *Backend) WritePoints(ctx context.Context, points ...*influxdb2_write.Point) error {
	if len(points) == 0 {
		return nil
	}

	if b.IsValid {
		if err := b.writer.WritePoint(ctx, points...); err != nil {
			return fmt.Errorf("error sending data to InfluxDB: %w", err)
		}
		return nil
	}

	if b.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	for _, point := range points {
		lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
		if _, err := b.BackupWriter.Write([]byte(lineProtocol)); err != nil {
			return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
		}
	}
	return nil
}
