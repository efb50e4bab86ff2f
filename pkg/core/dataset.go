// pkg/core/dataset.go
package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMarkerName is returned when a marker name column is blank.
	ErrEmptyMarkerName = errors.New("empty marker name")
	// ErrDuplicateMarker is returned when two marker columns share a name.
	ErrDuplicateMarker = errors.New("duplicate marker name")
)

// Dataset is the result of parsing one TRC file. It is read only once built.
type Dataset struct {
	Header Header
	Frames []Frame

	markers []MarkerTrack
	index   map[string]int
}

// NumMarkers returns the number of parsed marker names.
func (d *Dataset) NumMarkers() int {
	return len(d.markers)
}

// NumFrames returns the number of parsed data rows.
func (d *Dataset) NumFrames() int {
	return len(d.Frames)
}

// MarkerNames returns marker names in file column order.
func (d *Dataset) MarkerNames() []string {
	names := make([]string, len(d.markers))
	for i, m := range d.markers {
		names[i] = m.Name
	}
	return names
}

// Markers returns the tracks in file column order.
// Callers must not modify the returned sample slices.
func (d *Dataset) Markers() []MarkerTrack {
	out := make([]MarkerTrack, len(d.markers))
	copy(out, d.markers)
	return out
}

// Marker looks up a track by name.
func (d *Dataset) Marker(name string) (MarkerTrack, bool) {
	i, ok := d.index[name]
	if !ok {
		return MarkerTrack{}, false
	}
	return d.markers[i], true
}

// sampleCapacity bounds the preallocation taken from the declared frame
// count, which is not trusted.
func sampleCapacity(declared int) int {
	return min(max(declared, 0), 1<<16)
}

// DatasetBuilder accumulates rows for a single Dataset. A new builder must
// be created for every parse.
type DatasetBuilder struct {
	ds    *Dataset
	built bool
}

// NewDatasetBuilder creates a builder with one empty track per marker name.
func NewDatasetBuilder(header Header, markerNames []string) (*DatasetBuilder, error) {
	ds := &Dataset{
		Header:  header,
		markers: make([]MarkerTrack, 0, len(markerNames)),
		index:   make(map[string]int, len(markerNames)),
	}
	for i, name := range markerNames {
		if name == "" {
			return nil, fmt.Errorf("marker %d: %w", i, ErrEmptyMarkerName)
		}
		if _, exists := ds.index[name]; exists {
			return nil, fmt.Errorf("marker %q: %w", name, ErrDuplicateMarker)
		}
		ds.index[name] = len(ds.markers)
		ds.markers = append(ds.markers, MarkerTrack{Name: name, Samples: make([]Sample, 0, sampleCapacity(header.NumFrames))})
	}
	return &DatasetBuilder{ds: ds}, nil
}

// NumMarkers returns the number of tracks the builder expects per frame.
func (b *DatasetBuilder) NumMarkers() int {
	return len(b.ds.markers)
}

// AddFrame appends one row. samples must hold one entry per marker, in
// marker order.
func (b *DatasetBuilder) AddFrame(frame Frame, samples []Sample) error {
	if b.built {
		return errors.New("dataset already built")
	}
	if len(samples) != len(b.ds.markers) {
		return fmt.Errorf("frame %d: got %d samples, want %d", len(b.ds.Frames), len(samples), len(b.ds.markers))
	}
	for i := range b.ds.markers {
		b.ds.markers[i].Samples = append(b.ds.markers[i].Samples, samples[i])
	}
	b.ds.Frames = append(b.ds.Frames, frame)
	return nil
}

// Build finalizes the dataset. The builder cannot be used afterwards.
func (b *DatasetBuilder) Build() *Dataset {
	b.built = true
	return b.ds
}
