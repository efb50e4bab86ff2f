package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent
// tables in the database schema. Order matters for foreign keys.
var DatabaseModels = []interface{}{
	&Import{},
	&Entity{},
	&Keyframe{},
	&MarkerSample{},
}

////////////////////////
// IMPORT
////////////////////////

// Import is one TRC file materialized into the database
type Import struct {
	gorm.Model
	ImportID      string         `json:"importId" gorm:"size:36;uniqueIndex"`
	SourcePath    string         `json:"sourcePath" gorm:"size:1024"`
	SourceName    string         `json:"sourceName" gorm:"size:255"` // name recorded in the file's first line
	FileType      string         `json:"fileType" gorm:"size:64"`
	Units         string         `json:"units" gorm:"size:16"`
	DataRate      float64        `json:"dataRate"`
	CameraRate    float64        `json:"cameraRate"`
	PlaybackRate  float64        `json:"playbackRate"`
	Scale         float64        `json:"scale"`
	NumFrames     int            `json:"numFrames"` // frames actually read
	NumMarkers    int            `json:"numMarkers"`
	Header        datatypes.JSON `json:"header"` // header table as declared in the file
	StartTime     time.Time      `json:"startTime" gorm:"index:idx_import_start_time"`
	EndTime       sql.NullTime   `json:"endTime"`
	EntityCount   int            `json:"entityCount"`
	KeyframeCount int            `json:"keyframeCount"`
}

func (*Import) TableName() string {
	return "imports"
}

////////////////////////
// ENTITIES
////////////////////////

// Entity is the host object created for one marker
type Entity struct {
	gorm.Model
	ImportID    uint            `json:"importId" gorm:"index:idx_entity_import_id"`
	Import      Import          `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:ImportID;"`
	Name        string          `json:"name" gorm:"size:255"`
	DisplayType string          `json:"displayType" gorm:"size:32"`
	DisplaySize float64         `json:"displaySize"`
	ActionName  string          `json:"actionName" gorm:"size:64"`
	Frames      int             `json:"frames"`
	Missing     int             `json:"missing"`
	Trajectory  geom.LineString `json:"-"` // LineStringZ of present positions in scene units
}

func (*Entity) TableName() string {
	return "entities"
}

// Keyframe is one point on one animation curve of an entity
type Keyframe struct {
	ID           uint    `json:"id" gorm:"primarykey;autoIncrement"`
	EntityID     uint    `json:"entityId" gorm:"index:idx_keyframe_entity_channel,priority:1"`
	Entity       Entity  `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:EntityID;"`
	DataPath     string  `json:"dataPath" gorm:"size:32;index:idx_keyframe_entity_channel,priority:2"`
	ChannelIndex int     `json:"channelIndex" gorm:"index:idx_keyframe_entity_channel,priority:3"` // -1 for scalar channels
	Time         float64 `json:"time"`
	Value        float64 `json:"value"`
}

func (*Keyframe) TableName() string {
	return "keyframes"
}

// MarkerSample is one frame of one marker in scene units
type MarkerSample struct {
	ID         uint       `json:"id" gorm:"primarykey;autoIncrement"`
	EntityID   uint       `json:"entityId" gorm:"index:idx_sample_entity_frame,priority:1"`
	Entity     Entity     `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:EntityID;"`
	FrameIndex int        `json:"frameIndex" gorm:"index:idx_sample_entity_frame,priority:2"`
	Time       float64    `json:"time"`
	Present    bool       `json:"present"`
	Position   geom.Point `json:"position"` // empty when not present
}

func (*MarkerSample) TableName() string {
	return "marker_samples"
}
