// pkg/core/header.go
package core

// Scale converts TRC millimetres to host units.
const Scale = 0.001

// Header holds the metadata record of a TRC file (third line).
type Header struct {
	DataRate      float64 `json:"dataRate" yaml:"dataRate"`           // Hz
	CameraRate    float64 `json:"cameraRate" yaml:"cameraRate"`       // Hz
	NumFrames     int     `json:"numFrames" yaml:"numFrames"`         // as declared, not counted
	NumMarkers    int     `json:"numMarkers" yaml:"numMarkers"`       // as declared, not counted
	Units         string  `json:"units" yaml:"units"`                 // usually "mm"
	OrigDataRate  float64 `json:"origDataRate" yaml:"origDataRate"`   // Hz
	OrigDataStart int     `json:"origDataStart" yaml:"origDataStart"` // first frame of the original capture
	OrigNumFrames int     `json:"origNumFrames" yaml:"origNumFrames"`

	// Taken from the first line when present. Never validated.
	FileType   string `json:"fileType,omitempty" yaml:"fileType,omitempty"`
	SourceName string `json:"sourceName,omitempty" yaml:"sourceName,omitempty"`
}
