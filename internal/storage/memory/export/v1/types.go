// Package v1 contains the v1 scene export format: one document holding the
// import header and every entity with its curves.
package v1

import "time"

// FormatVersion is written into every export.
const FormatVersion = 1

// Scene is the root document
type Scene struct {
	FormatVersion int       `json:"formatVersion" yaml:"formatVersion"`
	ImportID      string    `json:"importId" yaml:"importId"`
	Source        string    `json:"source" yaml:"source"`
	SourceName    string    `json:"sourceName,omitempty" yaml:"sourceName,omitempty"`
	ImportedAt    time.Time `json:"importedAt" yaml:"importedAt"`
	Units         string    `json:"units" yaml:"units"`
	CameraRate    float64   `json:"cameraRate" yaml:"cameraRate"`
	DataRate      float64   `json:"dataRate" yaml:"dataRate"`
	PlaybackRate  float64   `json:"playbackRate" yaml:"playbackRate"`
	Scale         float64   `json:"scale" yaml:"scale"`
	FrameCount    int       `json:"frameCount" yaml:"frameCount"`
	EndFrame      float64   `json:"endFrame" yaml:"endFrame"` // last keyframe time in host frames
	Entities      []Entity  `json:"entities" yaml:"entities"`
}

// Entity is one marker object
type Entity struct {
	ID          uint    `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	DisplayType string  `json:"displayType" yaml:"displayType"`
	DisplaySize float64 `json:"displaySize" yaml:"displaySize"`
	Action      string  `json:"action" yaml:"action"`
	Missing     int     `json:"missing" yaml:"missing"`
	Curves      []Curve `json:"curves" yaml:"curves"`
}

// Curve is one animated channel; Keys are [time, value] pairs
type Curve struct {
	DataPath string       `json:"dataPath" yaml:"dataPath"`
	Index    int          `json:"index" yaml:"index"`
	Keys     [][2]float64 `json:"keys" yaml:"keys,flow"`
}
