// pkg/core/animation.go
package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entity defaults applied to every imported marker.
const (
	DefaultDisplayType = "SPHERE"
	DefaultDisplaySize = Scale * 20
	DefaultActionName  = "MocapAction"
)

// Visibility values written to the hide channels.
const (
	Visible = 0.0
	Hidden  = 1.0
)

// Data paths understood by hosts.
const (
	DataPathLocation   = "location"
	DataPathHide       = "hide"
	DataPathHideRender = "hide_render"
)

// Channel identifies one animated property of an entity. Index is the
// vector component for location and -1 for scalar properties.
type Channel struct {
	DataPath string `json:"dataPath" yaml:"dataPath"`
	Index    int    `json:"index" yaml:"index"`
}

// The five channels written for every marker, in creation order.
var (
	ChannelX          = Channel{DataPath: DataPathLocation, Index: 0}
	ChannelY          = Channel{DataPath: DataPathLocation, Index: 1}
	ChannelZ          = Channel{DataPath: DataPathLocation, Index: 2}
	ChannelHide       = Channel{DataPath: DataPathHide, Index: -1}
	ChannelHideRender = Channel{DataPath: DataPathHideRender, Index: -1}
)

// String returns "location[0]" style names, or the bare data path.
func (c Channel) String() string {
	if c.Index < 0 {
		return c.DataPath
	}
	return fmt.Sprintf("%s[%d]", c.DataPath, c.Index)
}

// Keyframe is a (time, value) pair on a curve. Time is in host frames.
type Keyframe struct {
	Time  float64 `json:"time" yaml:"time"`
	Value float64 `json:"value" yaml:"value"`
}

// Curve holds the keyframes of one channel.
type Curve struct {
	Channel   Channel    `json:"channel" yaml:"channel"`
	Keyframes []Keyframe `json:"keyframes" yaml:"keyframes"`
}

// Entity is the host object created for one marker.
// ID is assigned by the backend in AddEntity.
type Entity struct {
	ID          uint    `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	DisplayType string  `json:"displayType" yaml:"displayType"`
	DisplaySize float64 `json:"displaySize" yaml:"displaySize"`
	ActionName  string  `json:"actionName" yaml:"actionName"`
	Frames      int     `json:"frames" yaml:"frames"`
	Missing     int     `json:"missing" yaml:"missing"`
}

// Animation is the action attached to an entity.
type Animation struct {
	EntityID uint    `json:"entityId" yaml:"entityId"`
	Marker   string  `json:"marker" yaml:"marker"`
	Curves   []Curve `json:"curves" yaml:"curves"`

	// Source samples in host units, one per frame. Used by backends that
	// store geometry; not part of the curve data.
	Samples []Sample `json:"-" yaml:"-"`
	// Time of each sample in host frames, parallel to Samples.
	Times []float64 `json:"-" yaml:"-"`
}

// Curve returns the curve for channel c.
func (a Animation) Curve(c Channel) (Curve, bool) {
	for _, curve := range a.Curves {
		if curve.Channel == c {
			return curve, true
		}
	}
	return Curve{}, false
}

// KeyframeCount returns the total keyframes across all curves.
func (a Animation) KeyframeCount() int {
	n := 0
	for _, c := range a.Curves {
		n += len(c.Keyframes)
	}
	return n
}

// ImportInfo describes one import run.
type ImportInfo struct {
	ID           uuid.UUID `json:"id" yaml:"id"`
	SourcePath   string    `json:"sourcePath" yaml:"sourcePath"`
	Header       Header    `json:"header" yaml:"header"`
	PlaybackRate float64   `json:"playbackRate" yaml:"playbackRate"`
	Scale        float64   `json:"scale" yaml:"scale"`
	StartTime    time.Time `json:"startTime" yaml:"startTime"`
	MarkerCount  int       `json:"markerCount" yaml:"markerCount"`
	FrameCount   int       `json:"frameCount" yaml:"frameCount"`
}

// UploadMetadata describes an exported artifact for upload.
type UploadMetadata struct {
	ImportID    string
	SourceName  string
	MarkerCount int
	FrameCount  int
	Duration    float64 // seconds at camera rate
}
