// Package materialize turns a parsed TRC dataset into keyframed entities on
// a storage.Backend.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/OCAP2/trcimport/internal/storage"
	"github.com/OCAP2/trcimport/pkg/core"
)

var (
	// ErrInvalidCameraRate is returned when the header camera rate cannot
	// be used to convert sample indices to time.
	ErrInvalidCameraRate = errors.New("camera rate must be positive")
	// ErrInvalidPlaybackRate is returned for a non-positive host frame rate.
	ErrInvalidPlaybackRate = errors.New("playback rate must be positive")
)

// Config holds import settings.
type Config struct {
	PlaybackRate float64 // host frames per second
	SourcePath   string
}

// Dependencies holds the collaborators of a Materializer.
type Dependencies struct {
	Backend storage.Backend
	Logger  *slog.Logger
	Meter   metric.Meter // optional
}

// Materializer drives a backend with the animation of every marker.
type Materializer struct {
	backend storage.Backend
	logger  *slog.Logger
	cfg     Config

	entities  metric.Int64Counter
	keyframes metric.Int64Counter
	missing   metric.Int64Counter
}

// New creates a Materializer.
func New(deps Dependencies, cfg Config) (*Materializer, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Meter == nil {
		deps.Meter = noop.Meter{}
	}

	m := &Materializer{
		backend: deps.Backend,
		logger:  deps.Logger,
		cfg:     cfg,
	}

	var err error
	if m.entities, err = deps.Meter.Int64Counter("trc.import.entities",
		metric.WithDescription("Entities created for markers")); err != nil {
		return nil, fmt.Errorf("failed to create entities counter: %w", err)
	}
	if m.keyframes, err = deps.Meter.Int64Counter("trc.import.keyframes",
		metric.WithDescription("Keyframes written across all curves")); err != nil {
		return nil, fmt.Errorf("failed to create keyframes counter: %w", err)
	}
	if m.missing, err = deps.Meter.Int64Counter("trc.import.missing_samples",
		metric.WithDescription("Samples hidden because the marker was occluded")); err != nil {
		return nil, fmt.Errorf("failed to create missing samples counter: %w", err)
	}

	return m, nil
}

// FrameTime converts sample index i, recorded at cameraRate, to a host
// frame number at playbackRate.
func FrameTime(i int, cameraRate, playbackRate float64) float64 {
	return float64(i) * (playbackRate / cameraRate)
}

// NewEntity returns the host object for a marker track.
func NewEntity(track core.MarkerTrack) core.Entity {
	return core.Entity{
		Name:        track.Name,
		DisplayType: core.DefaultDisplayType,
		DisplaySize: core.DefaultDisplaySize,
		ActionName:  core.DefaultActionName,
		Frames:      track.Len(),
		Missing:     track.MissingCount(),
	}
}

// BuildAnimation computes the five curves of a marker. Present samples key
// X/Y/Z at coordinate*Scale and set both hide channels to Visible. Missing
// samples only key the hide channels, to Hidden, so the entity holds its
// last position while it is invisible.
func BuildAnimation(track core.MarkerTrack, cameraRate, playbackRate float64) core.Animation {
	present := track.PresentCount()
	x := core.Curve{Channel: core.ChannelX, Keyframes: make([]core.Keyframe, 0, present)}
	y := core.Curve{Channel: core.ChannelY, Keyframes: make([]core.Keyframe, 0, present)}
	z := core.Curve{Channel: core.ChannelZ, Keyframes: make([]core.Keyframe, 0, present)}
	hide := core.Curve{Channel: core.ChannelHide, Keyframes: make([]core.Keyframe, 0, track.Len())}
	hideRender := core.Curve{Channel: core.ChannelHideRender, Keyframes: make([]core.Keyframe, 0, track.Len())}

	samples := make([]core.Sample, track.Len())
	times := make([]float64, track.Len())

	for i, s := range track.Samples {
		t := FrameTime(i, cameraRate, playbackRate)
		times[i] = t

		visibility := core.Hidden
		if s.Present {
			p := r3.Scale(core.Scale, s.Position)
			samples[i] = core.PresentSample(p)
			x.Keyframes = append(x.Keyframes, core.Keyframe{Time: t, Value: p.X})
			y.Keyframes = append(y.Keyframes, core.Keyframe{Time: t, Value: p.Y})
			z.Keyframes = append(z.Keyframes, core.Keyframe{Time: t, Value: p.Z})
			visibility = core.Visible
		}
		hide.Keyframes = append(hide.Keyframes, core.Keyframe{Time: t, Value: visibility})
		hideRender.Keyframes = append(hideRender.Keyframes, core.Keyframe{Time: t, Value: visibility})
	}

	return core.Animation{
		Marker:  track.Name,
		Curves:  []core.Curve{x, y, z, hide, hideRender},
		Samples: samples,
		Times:   times,
	}
}

// Materialize creates one entity per marker in file order and records its
// animation. The first backend error aborts the remaining markers; entities
// created before it are left in place.
func (m *Materializer) Materialize(ds *core.Dataset) (*core.ImportInfo, error) {
	if !(ds.Header.CameraRate > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCameraRate, ds.Header.CameraRate)
	}
	if !(m.cfg.PlaybackRate > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlaybackRate, m.cfg.PlaybackRate)
	}

	info := &core.ImportInfo{
		ID:           uuid.New(),
		SourcePath:   m.cfg.SourcePath,
		Header:       ds.Header,
		PlaybackRate: m.cfg.PlaybackRate,
		Scale:        core.Scale,
		StartTime:    time.Now(),
		MarkerCount:  ds.NumMarkers(),
		FrameCount:   ds.NumFrames(),
	}

	if err := m.backend.StartImport(info); err != nil {
		return nil, fmt.Errorf("error starting import: %w", err)
	}

	ctx := context.Background()
	for _, track := range ds.Markers() {
		entity := NewEntity(track)
		if err := m.backend.AddEntity(&entity); err != nil {
			return nil, fmt.Errorf("error creating entity %q: %w", track.Name, err)
		}

		anim := BuildAnimation(track, ds.Header.CameraRate, m.cfg.PlaybackRate)
		anim.EntityID = entity.ID
		if err := m.backend.RecordAnimation(&anim); err != nil {
			return nil, fmt.Errorf("error recording animation for %q: %w", track.Name, err)
		}

		m.entities.Add(ctx, 1)
		m.keyframes.Add(ctx, int64(anim.KeyframeCount()))
		m.missing.Add(ctx, int64(entity.Missing))

		m.logger.Debug("Materialized marker",
			"marker", track.Name,
			"entityId", entity.ID,
			"frames", entity.Frames,
			"missing", entity.Missing)
	}

	if err := m.backend.EndImport(); err != nil {
		return nil, fmt.Errorf("error ending import: %w", err)
	}

	m.logger.Info("Import materialized",
		"importId", info.ID.String(),
		"markers", info.MarkerCount,
		"frames", info.FrameCount)

	return info, nil
}
