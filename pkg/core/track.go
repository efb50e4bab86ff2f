// pkg/core/track.go
package core

import "gonum.org/v1/gonum/spatial/r3"

// Sample is one frame of a marker track. A sample that is not Present
// marks an occlusion gap; Position is zero in that case.
type Sample struct {
	Position r3.Vec
	Present  bool
}

// PresentSample returns a sample recorded at p.
func PresentSample(p r3.Vec) Sample {
	return Sample{Position: p, Present: true}
}

// MissingSample returns a sample for a frame the marker was not seen.
func MissingSample() Sample {
	return Sample{}
}

// MarkerTrack is the ordered sample sequence of a single marker.
type MarkerTrack struct {
	Name    string
	Samples []Sample
}

// Len returns the number of frames in the track.
func (t MarkerTrack) Len() int {
	return len(t.Samples)
}

// PresentCount returns how many samples carry a position.
func (t MarkerTrack) PresentCount() int {
	n := 0
	for _, s := range t.Samples {
		if s.Present {
			n++
		}
	}
	return n
}

// MissingCount returns how many samples are occlusion gaps.
func (t MarkerTrack) MissingCount() int {
	return len(t.Samples) - t.PresentCount()
}

// Frame carries the Frame# and Time columns of a data row.
type Frame struct {
	Number int
	Time   float64
}
