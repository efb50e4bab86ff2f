// Package report renders marker statistics as a terminal table and as an
// HTML chart page.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/OCAP2/trcimport/internal/stats"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// LowCoverage is the coverage below which a marker row is highlighted.
const LowCoverage = 0.9

type column struct {
	title string
	right bool
	value func(m stats.Marker) string
}

func columns(units string) []column {
	return []column{
		{"Marker", false, func(m stats.Marker) string { return m.Name }},
		{"Frames", true, func(m stats.Marker) string { return strconv.Itoa(m.Frames) }},
		{"Coverage", true, func(m stats.Marker) string { return fmt.Sprintf("%.1f%%", m.Coverage*100) }},
		{"Gaps", true, func(m stats.Marker) string { return strconv.Itoa(len(m.Gaps)) }},
		{"Longest gap", true, func(m stats.Marker) string { return strconv.Itoa(m.LongestGap) }},
		{"Path (" + units + ")", true, func(m stats.Marker) string { return strconv.FormatFloat(m.PathLength, 'f', 1, 64) }},
		{"Mean", false, func(m stats.Marker) string {
			return fmt.Sprintf("(%.1f, %.1f, %.1f)", m.Mean.X, m.Mean.Y, m.Mean.Z)
		}},
	}
}

// Table renders one row per marker, with a title line summarizing the
// capture.
func Table(title string, s stats.Summary) string {
	units := s.Units
	if units == "" {
		units = "?"
	}
	cols := columns(units)

	cells := make([][]string, len(s.Markers))
	widths := make([]int, len(cols))
	for c, col := range cols {
		widths[c] = lipgloss.Width(col.title)
	}
	for r, m := range s.Markers {
		cells[r] = make([]string, len(cols))
		for c, col := range cols {
			cells[r][c] = col.value(m)
			widths[c] = max(widths[c], lipgloss.Width(cells[r][c]))
		}
	}

	render := func(style lipgloss.Style, c int, text string) string {
		align := lipgloss.Left
		if cols[c].right {
			align = lipgloss.Right
		}
		return cellStyle.Inherit(style).Width(widths[c] + 2).Align(align).Render(text)
	}

	var rows []string
	header := make([]string, len(cols))
	for c, col := range cols {
		header[c] = render(headerStyle, c, col.title)
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, header...))

	for r, m := range s.Markers {
		style := lipgloss.NewStyle()
		if m.Coverage < LowCoverage {
			style = warnStyle
		}
		line := make([]string, len(cols))
		for c := range cols {
			line[c] = render(style, c, cells[r][c])
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, line...))
	}

	summary := fmt.Sprintf("%s: %d markers, %d frames at %g Hz, mean coverage %.1f%%",
		title, len(s.Markers), s.Frames, s.CameraRate, s.MeanCoverage*100)

	var b strings.Builder
	b.WriteString(titleStyle.Render(summary))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, rows...))
	b.WriteString("\n")
	return b.String()
}
