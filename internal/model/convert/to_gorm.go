// Package convert provides functions to convert core models to GORM models
package convert

import (
	"encoding/json"

	geom "github.com/peterstace/simplefeatures/geom"
	"gonum.org/v1/gonum/spatial/r3"
	"gorm.io/datatypes"

	"github.com/OCAP2/trcimport/internal/model"
	"github.com/OCAP2/trcimport/pkg/core"
)

// vecToPoint converts a position to a PointZ.
func vecToPoint(v r3.Vec) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: v.X, Y: v.Y},
		Z:    v.Z,
		Type: geom.DimXYZ,
	})
}

// headerToJSON converts a core.Header to datatypes.JSON for DB storage.
func headerToJSON(h core.Header) datatypes.JSON {
	data, err := json.Marshal(h)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToImport converts a core.ImportInfo to a GORM model.Import.
// core.ImportInfo.ID maps to GORM Import.ImportID.
func CoreToImport(info core.ImportInfo) model.Import {
	return model.Import{
		ImportID:     info.ID.String(),
		SourcePath:   info.SourcePath,
		SourceName:   info.Header.SourceName,
		FileType:     info.Header.FileType,
		Units:        info.Header.Units,
		DataRate:     info.Header.DataRate,
		CameraRate:   info.Header.CameraRate,
		PlaybackRate: info.PlaybackRate,
		Scale:        info.Scale,
		NumFrames:    info.FrameCount,
		NumMarkers:   info.MarkerCount,
		Header:       headerToJSON(info.Header),
		StartTime:    info.StartTime,
	}
}

// CoreToEntity converts a core.Entity to a GORM model.Entity owned by the
// import with database ID importID.
func CoreToEntity(e core.Entity, importID uint) model.Entity {
	return model.Entity{
		ImportID:    importID,
		Name:        e.Name,
		DisplayType: e.DisplayType,
		DisplaySize: e.DisplaySize,
		ActionName:  e.ActionName,
		Frames:      e.Frames,
		Missing:     e.Missing,
	}
}

// EntityToCore converts a GORM model.Entity back to a core.Entity.
// GORM Entity.ID maps to core.Entity.ID.
func EntityToCore(e model.Entity) core.Entity {
	return core.Entity{
		ID:          e.ID,
		Name:        e.Name,
		DisplayType: e.DisplayType,
		DisplaySize: e.DisplaySize,
		ActionName:  e.ActionName,
		Frames:      e.Frames,
		Missing:     e.Missing,
	}
}

// AnimationToKeyframes flattens every curve of a into keyframe rows.
func AnimationToKeyframes(a core.Animation) []model.Keyframe {
	rows := make([]model.Keyframe, 0, a.KeyframeCount())
	for _, c := range a.Curves {
		for _, k := range c.Keyframes {
			rows = append(rows, model.Keyframe{
				EntityID:     a.EntityID,
				DataPath:     c.Channel.DataPath,
				ChannelIndex: c.Channel.Index,
				Time:         k.Time,
				Value:        k.Value,
			})
		}
	}
	return rows
}

// AnimationToSamples converts the per-frame samples of a into rows.
// Missing samples keep an empty point.
func AnimationToSamples(a core.Animation) []model.MarkerSample {
	rows := make([]model.MarkerSample, len(a.Samples))
	for i, s := range a.Samples {
		row := model.MarkerSample{
			EntityID:   a.EntityID,
			FrameIndex: i,
			Present:    s.Present,
		}
		if i < len(a.Times) {
			row.Time = a.Times[i]
		}
		if s.Present {
			row.Position = vecToPoint(s.Position)
		} else {
			row.Position = geom.NewEmptyPoint(geom.DimXYZ)
		}
		rows[i] = row
	}
	return rows
}

// AnimationToTrajectory builds a LineStringZ through the present samples
// of a. Fewer than two present samples give an empty line.
func AnimationToTrajectory(a core.Animation) geom.LineString {
	coords := make([]float64, 0, len(a.Samples)*3)
	for _, s := range a.Samples {
		if s.Present {
			coords = append(coords, s.Position.X, s.Position.Y, s.Position.Z)
		}
	}
	if len(coords) < 6 {
		return geom.LineString{}
	}
	return geom.NewLineString(geom.NewSequence(coords, geom.DimXYZ))
}
