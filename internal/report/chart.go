package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/OCAP2/trcimport/internal/stats"
	"github.com/OCAP2/trcimport/pkg/core"
)

// Axis selects the coordinate plotted over time.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// ParseAxis accepts "x", "y" or "z".
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X":
		return AxisX, nil
	case "y", "Y":
		return AxisY, nil
	case "z", "Z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

func (a Axis) String() string {
	return [...]string{"X", "Y", "Z"}[a]
}

// ChartOptions configures the HTML report.
type ChartOptions struct {
	Title string
	Axis  Axis
	// Plot every Stride-th frame. Values below 1 plot every frame.
	Stride int
}

// WriteCharts renders a page with a coverage bar chart and a line chart of
// one coordinate of every marker over time. Missing samples break the line.
func WriteCharts(w io.Writer, ds *core.Dataset, s stats.Summary, o ChartOptions) error {
	if o.Title == "" {
		o.Title = "TRC markers"
	}
	page := components.NewPage()
	page.SetPageTitle(o.Title)
	page.AddCharts(coverageChart(s, o), positionChart(ds, o))

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

func coverageChart(s stats.Summary, o ChartOptions) *charts.Bar {
	names := make([]string, len(s.Markers))
	data := make([]opts.BarData, len(s.Markers))
	for i, m := range s.Markers {
		names[i] = m.Name
		data[i] = opts.BarData{Value: m.Coverage * 100}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.Title, Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Marker coverage", Subtitle: fmt.Sprintf("%d frames at %g Hz", s.Frames, s.CameraRate)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 100, Name: "%"}),
	)
	bar.SetXAxis(names).AddSeries("coverage", data)
	return bar
}

func positionChart(ds *core.Dataset, o ChartOptions) *charts.Line {
	stride := max(o.Stride, 1)

	var frames []string
	for i := 0; i < ds.NumFrames(); i += stride {
		frames = append(frames, strconv.Itoa(i))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.Title, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: o.Axis.String() + " position", Subtitle: o.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: ds.Header.Units}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(frames)

	for _, track := range ds.Markers() {
		data := make([]opts.LineData, 0, len(frames))
		for i := 0; i < track.Len(); i += stride {
			data = append(data, lineValue(track.Samples[i], o.Axis))
		}
		line.AddSeries(track.Name, data, charts.WithLineChartOpts(opts.LineChart{ConnectNulls: opts.Bool(false)}))
	}
	return line
}

func lineValue(s core.Sample, a Axis) opts.LineData {
	if !s.Present {
		return opts.LineData{Value: "-"}
	}
	switch a {
	case AxisX:
		return opts.LineData{Value: s.Position.X}
	case AxisY:
		return opts.LineData{Value: s.Position.Y}
	default:
		return opts.LineData{Value: s.Position.Z}
	}
}
