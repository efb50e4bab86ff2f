// Package stats summarizes marker tracks: coverage, occlusion gaps, path
// length and position spread, all in file units.
package stats

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/OCAP2/trcimport/pkg/core"
)

// Gap is a run of consecutive missing samples.
type Gap struct {
	Start  int // first missing frame index
	Length int
}

// Marker holds the statistics of one track.
type Marker struct {
	Name       string
	Frames     int
	Present    int
	Coverage   float64 // Present / Frames, 0 for an empty track
	Gaps       []Gap
	LongestGap int
	PathLength float64 // summed over consecutive present frames only
	Mean       r3.Vec
	StdDev     r3.Vec
}

// Summary holds per-marker statistics in file order.
type Summary struct {
	Units        string
	CameraRate   float64
	Frames       int
	Markers      []Marker
	MeanCoverage float64
}

// Compute summarizes every track of ds.
func Compute(ds *core.Dataset) Summary {
	s := Summary{
		Units:      ds.Header.Units,
		CameraRate: ds.Header.CameraRate,
		Frames:     ds.NumFrames(),
	}

	tracks := ds.Markers()
	coverage := make([]float64, 0, len(tracks))
	for _, t := range tracks {
		m := ForTrack(t)
		s.Markers = append(s.Markers, m)
		coverage = append(coverage, m.Coverage)
	}
	if len(coverage) > 0 {
		s.MeanCoverage = stat.Mean(coverage, nil)
	}
	return s
}

// ForTrack summarizes a single track.
func ForTrack(t core.MarkerTrack) Marker {
	m := Marker{
		Name:    t.Name,
		Frames:  t.Len(),
		Present: t.PresentCount(),
		Gaps:    Gaps(t),
	}
	if m.Frames > 0 {
		m.Coverage = float64(m.Present) / float64(m.Frames)
	}
	for _, g := range m.Gaps {
		m.LongestGap = max(m.LongestGap, g.Length)
	}
	m.PathLength = PathLength(t)
	m.Mean, m.StdDev = spread(t)
	return m
}

// Gaps returns the runs of missing samples in frame order.
func Gaps(t core.MarkerTrack) []Gap {
	var gaps []Gap
	start := -1
	for i, s := range t.Samples {
		switch {
		case !s.Present && start < 0:
			start = i
		case s.Present && start >= 0:
			gaps = append(gaps, Gap{Start: start, Length: i - start})
			start = -1
		}
	}
	if start >= 0 {
		gaps = append(gaps, Gap{Start: start, Length: len(t.Samples) - start})
	}
	return gaps
}

// PathLength sums the distance between neighbouring frames that are both
// present. Motion across a gap is unknown and not counted.
func PathLength(t core.MarkerTrack) float64 {
	var total float64
	for i := 1; i < len(t.Samples); i++ {
		prev, cur := t.Samples[i-1], t.Samples[i]
		if prev.Present && cur.Present {
			total += r3.Norm(r3.Sub(cur.Position, prev.Position))
		}
	}
	return total
}

// spread returns the per-axis mean and standard deviation of present
// samples. A track with fewer than two present samples has zero deviation.
func spread(t core.MarkerTrack) (mean, sd r3.Vec) {
	n := t.PresentCount()
	if n == 0 {
		return r3.Vec{}, r3.Vec{}
	}

	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	zs := make([]float64, 0, n)
	for _, s := range t.Samples {
		if s.Present {
			xs = append(xs, s.Position.X)
			ys = append(ys, s.Position.Y)
			zs = append(zs, s.Position.Z)
		}
	}

	var sx, sy, sz float64
	mean.X, sx = stat.MeanStdDev(xs, nil)
	mean.Y, sy = stat.MeanStdDev(ys, nil)
	mean.Z, sz = stat.MeanStdDev(zs, nil)
	if n < 2 {
		return mean, r3.Vec{}
	}
	return mean, r3.Vec{X: sx, Y: sy, Z: sz}
}

// Duration returns the capture length in seconds, or NaN for a
// non-positive camera rate.
func (s Summary) Duration() float64 {
	if !(s.CameraRate > 0) {
		return math.NaN()
	}
	return float64(s.Frames) / s.CameraRate
}
