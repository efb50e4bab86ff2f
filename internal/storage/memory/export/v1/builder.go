package v1

import (
	"path/filepath"

	"github.com/OCAP2/trcimport/pkg/core"
)

// EntityRecord groups an entity with its animation
type EntityRecord struct {
	Entity    core.Entity
	Animation *core.Animation
}

// SceneData is everything a backend collected during one import
type SceneData struct {
	Info     *core.ImportInfo
	Entities []*EntityRecord // creation order
}

// Build converts collected data into the export document.
func Build(data *SceneData) Scene {
	info := data.Info
	scene := Scene{
		FormatVersion: FormatVersion,
		ImportID:      info.ID.String(),
		Source:        extractFilename(info.SourcePath),
		SourceName:    info.Header.SourceName,
		ImportedAt:    info.StartTime.UTC(),
		Units:         info.Header.Units,
		CameraRate:    info.Header.CameraRate,
		DataRate:      info.Header.DataRate,
		PlaybackRate:  info.PlaybackRate,
		Scale:         info.Scale,
		FrameCount:    info.FrameCount,
		Entities:      make([]Entity, 0, len(data.Entities)),
	}

	for _, rec := range data.Entities {
		e := Entity{
			ID:          rec.Entity.ID,
			Name:        rec.Entity.Name,
			DisplayType: rec.Entity.DisplayType,
			DisplaySize: rec.Entity.DisplaySize,
			Action:      rec.Entity.ActionName,
			Missing:     rec.Entity.Missing,
			Curves:      []Curve{},
		}
		if rec.Animation != nil {
			for _, c := range rec.Animation.Curves {
				keys := make([][2]float64, len(c.Keyframes))
				for i, k := range c.Keyframes {
					keys[i] = [2]float64{k.Time, k.Value}
					if k.Time > scene.EndFrame {
						scene.EndFrame = k.Time
					}
				}
				e.Curves = append(e.Curves, Curve{
					DataPath: c.Channel.DataPath,
					Index:    c.Channel.Index,
					Keys:     keys,
				})
			}
		}
		scene.Entities = append(scene.Entities, e)
	}

	return scene
}

func extractFilename(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
