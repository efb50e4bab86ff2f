package parser

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/OCAP2/trcimport/pkg/core"
)

func newTestParser() *Parser {
	return NewParser(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const (
	lineFileType = "PathFileType\t4\t(X/Y/Z)\twalk.trc"
	lineKeys     = "DataRate\tCameraRate\tNumFrames\tNumMarkers\tUnits\tOrigDataRate\tOrigDataStartFrame\tOrigNumFrames"
	lineHeader   = "30.0\t30.0\t3\t2\tmm\t30.0\t1\t3"
	lineNames    = "Frame#\tTime\tHip\tHip\tHip\tKnee\tKnee\tKnee\t"
	lineAxes     = "\t\tX1\tY1\tZ1\tX2\tY2\tZ2\t"
)

// trcFile joins the standard six header lines with the given data rows.
func trcFile(header, names string, rows ...string) string {
	lines := []string{lineFileType, lineKeys, header, names, lineAxes, ""}
	lines = append(lines, rows...)
	return strings.Join(lines, "\n") + "\n"
}

func parseString(t *testing.T, content string) (*core.Dataset, error) {
	t.Helper()
	return newTestParser().ParseReader(strings.NewReader(content), "test.trc")
}

func TestParse_HipKneeScenario(t *testing.T) {
	ds, err := parseString(t, trcFile(lineHeader, lineNames,
		"1\t0.000\t1\t2\t3\t4\t5\t6\t",
		"2\t0.033\t1.5\t2.5\t3.5\t4.5\t5.5\t6.5\t",
		"3\t0.067\t2\t3\t4\t5\t6\t7\t",
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"Hip", "Knee"}, ds.MarkerNames())
	assert.Equal(t, ds.Header.NumMarkers, ds.NumMarkers())
	assert.Equal(t, ds.Header.NumFrames, ds.NumFrames())

	want := core.Header{
		DataRate:      30,
		CameraRate:    30,
		NumFrames:     3,
		NumMarkers:    2,
		Units:         "mm",
		OrigDataRate:  30,
		OrigDataStart: 1,
		OrigNumFrames: 3,
		FileType:      "4",
		SourceName:    "walk.trc",
	}
	if diff := cmp.Diff(want, ds.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}

	for _, m := range ds.Markers() {
		assert.Equal(t, 3, m.Len(), m.Name)
	}
}

func TestParse_AllNumericRoundTrip(t *testing.T) {
	rows := []string{
		"1\t0.000\t10\t20\t30\t40\t50\t60\t",
		"2\t0.033\t11\t21\t31\t41\t51\t61\t",
		"3\t0.067\t12\t22\t32\t42\t52\t62\t",
	}
	ds, err := parseString(t, trcFile(lineHeader, lineNames, rows...))
	require.NoError(t, err)

	for _, m := range ds.Markers() {
		assert.Equal(t, len(rows), m.Len(), m.Name)
		assert.Equal(t, 0, m.MissingCount(), m.Name)
	}

	knee, ok := ds.Marker("Knee")
	require.True(t, ok)
	assert.Equal(t, r3.Vec{X: 42, Y: 52, Z: 62}, knee.Samples[2].Position)

	assert.Equal(t, []core.Frame{{Number: 1, Time: 0}, {Number: 2, Time: 0.033}, {Number: 3, Time: 0.067}}, ds.Frames)
}

func TestParse_MissingSampleIsolation(t *testing.T) {
	ds, err := parseString(t, trcFile(lineHeader, lineNames,
		"1\t0.000\t1\tnan\t3\t4\t5\t6\t",
		"2\t0.033\t1\t2\t3\t\t5\t6\t",
		"3\t0.067\t\t\t\t4\t5\t6\t",
	))
	require.NoError(t, err)

	hip, _ := ds.Marker("Hip")
	knee, _ := ds.Marker("Knee")

	// frame 0: Hip has a nan token, Knee is untouched
	assert.False(t, hip.Samples[0].Present)
	assert.True(t, knee.Samples[0].Present)
	assert.Equal(t, r3.Vec{X: 4, Y: 5, Z: 6}, knee.Samples[0].Position)

	// frame 1: Knee has an empty field, Hip is untouched
	assert.True(t, hip.Samples[1].Present)
	assert.False(t, knee.Samples[1].Present)

	// frame 2: whole Hip triplet empty
	assert.False(t, hip.Samples[2].Present)
	assert.True(t, knee.Samples[2].Present)

	assert.Equal(t, 3, hip.Len())
	assert.Equal(t, 3, knee.Len())
}

func TestParse_NonFiniteTokensAreMissing(t *testing.T) {
	ds, err := parseString(t, trcFile(lineHeader, lineNames,
		"1\t0.000\tinf\t2\t3\t4\t5\t6\t",
		"2\t0.033\t1\t2\t3\t4\tNaN\t6\t",
	))
	require.NoError(t, err)

	hip, _ := ds.Marker("Hip")
	knee, _ := ds.Marker("Knee")
	assert.False(t, hip.Samples[0].Present)
	assert.True(t, hip.Samples[1].Present)
	assert.True(t, knee.Samples[0].Present)
	assert.False(t, knee.Samples[1].Present)
}

func TestParse_MarkerNeverSeen(t *testing.T) {
	ds, err := parseString(t, trcFile(lineHeader, lineNames,
		"1\t0.000\t1\t2\t3\t\t\t\t",
		"2\t0.033\t1\t2\t3\t\t\t\t",
	))
	require.NoError(t, err)

	knee, ok := ds.Marker("Knee")
	require.True(t, ok)
	assert.Equal(t, 2, knee.Len())
	assert.Equal(t, 0, knee.PresentCount())
}

func TestParse_StructuralErrorOnFirstOffendingRow(t *testing.T) {
	_, err := parseString(t, trcFile(lineHeader, lineNames,
		"1\t0.000\t1\t2\t3\t4\t5\t6\t",
		"2\t0.033\t1\t2\t3\t4\t5\t",
		"3\t0.067\t1\t2\t3\t4\t",
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStructure)
	assert.NotErrorIs(t, err, ErrParse)

	var se *StructuralError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Frame)
	assert.Equal(t, 8, se.Line)
	assert.Equal(t, 5, se.Columns)
	assert.Contains(t, se.Error(), "test.trc:8")
}

func TestParse_ShortRowRecordsMissingForUncoveredMarkers(t *testing.T) {
	ds, err := parseString(t, trcFile(lineHeader, lineNames,
		"1\t0.000\t1\t2\t3\t",
	))
	require.NoError(t, err)

	hip, _ := ds.Marker("Hip")
	knee, _ := ds.Marker("Knee")
	assert.True(t, hip.Samples[0].Present)
	assert.False(t, knee.Samples[0].Present)
}

func TestParse_ExtraTripletsIgnored(t *testing.T) {
	ds, err := parseString(t, trcFile(lineHeader, lineNames,
		"1\t0.000\t1\t2\t3\t4\t5\t6\t7\t8\t9\t",
	))
	require.NoError(t, err)
	assert.Equal(t, 2, ds.NumMarkers())
	assert.Equal(t, 1, ds.NumFrames())
}

func TestParse_HeaderMismatchIsNotFatal(t *testing.T) {
	ds, err := parseString(t, trcFile("60\t60\t10\t5\tmm\t60\t1\t10", lineNames,
		"1\t0.000\t1\t2\t3\t4\t5\t6\t",
	))
	require.NoError(t, err)
	assert.Equal(t, 5, ds.Header.NumMarkers)
	assert.Equal(t, 2, ds.NumMarkers())
	assert.Equal(t, 1, ds.NumFrames())
}

func TestParse_HeaderNotNumeric(t *testing.T) {
	tests := []struct {
		name   string
		header string
		field  string
	}{
		{"camera rate", "30\tfast\t3\t2\tmm\t30\t1\t3", "CameraRate"},
		{"data rate", "x\t30\t3\t2\tmm\t30\t1\t3", "DataRate"},
		{"frame count fraction", "30\t30\t3.5\t2\tmm\t30\t1\t3", "NumFrames"},
		{"orig num frames", "30\t30\t3\t2\tmm\t30\t1\t", "OrigNumFrames"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseString(t, trcFile(tt.header, lineNames))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.field, pe.Field)
			assert.Equal(t, 3, pe.Line)
			assert.Equal(t, "test.trc", pe.Path)
		})
	}
}

func TestParse_HeaderTooShort(t *testing.T) {
	_, err := parseString(t, trcFile("30\t30\t3", lineNames))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
	assert.Contains(t, err.Error(), "want at least 8")
}

func TestParse_IntegralFloatCountsAccepted(t *testing.T) {
	ds, err := parseString(t, trcFile("30\t30\t3.0\t2.00\tmm\t30\t1\t3", lineNames))
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Header.NumFrames)
	assert.Equal(t, 2, ds.Header.NumMarkers)
}

func TestParse_UnexpectedEOF(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"only file type", lineFileType + "\n"},
		{"no marker names", strings.Join([]string{lineFileType, lineKeys, lineHeader}, "\n")},
		{"no axis labels", strings.Join([]string{lineFileType, lineKeys, lineHeader, lineNames}, "\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseString(t, tt.content)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		})
	}
}

func TestParse_NoDataRows(t *testing.T) {
	ds, err := parseString(t, strings.Join([]string{lineFileType, lineKeys, lineHeader, lineNames, lineAxes}, "\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, ds.NumMarkers())
	assert.Equal(t, 0, ds.NumFrames())
}

func TestParse_SeparatorLineDroppedWhateverItHolds(t *testing.T) {
	content := strings.Join([]string{
		lineFileType, lineKeys, lineHeader, lineNames, lineAxes,
		"\t\t\t",
		"1\t0.000\t1\t2\t3\t4\t5\t6\t",
	}, "\n")
	ds, err := parseString(t, content)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.NumFrames())
}

func TestParse_SixthLineDroppedEvenWhenItIsData(t *testing.T) {
	content := strings.Join([]string{
		lineFileType, lineKeys, lineHeader, lineNames, lineAxes,
		"1\t0.000\t1\t2\t3\t4\t5\t6\t",
		"2\t0.033\t1\t2\t3\t4\t5\t6\t",
	}, "\n")
	ds, err := parseString(t, content)
	require.NoError(t, err)
	require.Equal(t, 1, ds.NumFrames())
	assert.Equal(t, 2, ds.Frames[0].Number)
}

func TestParse_CRLFLineEndings(t *testing.T) {
	content := strings.ReplaceAll(trcFile(lineHeader, lineNames,
		"1\t0.000\t1\t2\t3\t4\t5\t6\t",
		"2\t0.033\t1\t2\t3\t4\t5\t6\t",
	), "\n", "\r\n")
	ds, err := parseString(t, content)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.NumFrames())
	assert.Equal(t, "walk.trc", ds.Header.SourceName)
}

func TestParse_QuotedMarkerNameWithTab(t *testing.T) {
	names := "Frame#\tTime\t\"Left\tHip\"\t\t\tKnee\t\t\t"
	ds, err := parseString(t, trcFile(lineHeader, names,
		"1\t0.000\t1\t2\t3\t4\t5\t6\t",
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"Left\tHip", "Knee"}, ds.MarkerNames())
}

func TestParse_DuplicateMarkerName(t *testing.T) {
	names := "Frame#\tTime\tHip\t\t\tHip\t\t\t"
	_, err := parseString(t, trcFile(lineHeader, names))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, core.ErrDuplicateMarker)
}

func TestParse_EmptyMarkerName(t *testing.T) {
	names := "Frame#\tTime\tHip\t\t\t\t\t\t"
	_, err := parseString(t, trcFile(lineHeader, names))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptyMarkerName)
}

func TestParse_FromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "walk.trc")
	require.NoError(t, os.WriteFile(path, []byte(trcFile(lineHeader, lineNames,
		"1\t0.000\t1\t2\t3\t4\t5\t6\t",
	)), 0644))

	ds, err := newTestParser().Parse(path)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.NumFrames())
}

func TestParse_MissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "nope.trc"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMarkerNames(t *testing.T) {
	tests := []struct {
		record []string
		want   []string
	}{
		{[]string{"Frame#", "Time", "A", "", "", "B", "", "", ""}, []string{"A", "B"}},
		{[]string{"Frame#", "Time", "A", "", "", "B", ""}, []string{"A", "B"}},
		{[]string{"Frame#", "Time", ""}, []string{}},
		{[]string{"Frame#"}, []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, markerNames(tt.record))
	}
}

func TestParseIntFromFloat(t *testing.T) {
	v, err := parseIntFromFloat(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	v, err = parseIntFromFloat("12.00")
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	_, err = parseIntFromFloat("12.5")
	assert.Error(t, err)

	_, err = parseIntFromFloat("abc")
	assert.Error(t, err)
}

func TestParse_BlankHeaderBlockLinesKeepPositions(t *testing.T) {
	rows := []string{
		"1\t0.000\t1\t2\t3\t4\t5\t6\t",
		"2\t0.033\t1\t2\t3\t4\t5\t6\t",
		"3\t0.067\t1\t2\t3\t4\t5\t6\t",
	}
	tests := []struct {
		name  string
		lines []string
	}{
		{"blank file type", []string{"", lineKeys, lineHeader, lineNames, lineAxes, ""}},
		{"blank header keys", []string{lineFileType, "", lineHeader, lineNames, lineAxes, ""}},
		{"blank axis labels", []string{lineFileType, lineKeys, lineHeader, lineNames, "", ""}},
		{"whitespace axis labels", []string{lineFileType, lineKeys, lineHeader, lineNames, " ", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := strings.Join(append(tt.lines, rows...), "\n") + "\n"
			ds, err := parseString(t, content)
			require.NoError(t, err)
			assert.Equal(t, 2, ds.NumMarkers())
			require.Equal(t, 3, ds.NumFrames())
			assert.Equal(t, 1, ds.Frames[0].Number)
			assert.Equal(t, 3, ds.Frames[2].Number)
		})
	}
}

func TestParse_BlankHeaderValuesOrNamesLine(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		line  int
	}{
		{"header values", []string{lineFileType, lineKeys, "", lineHeader, lineNames, lineAxes}, 3},
		{"marker names", []string{lineFileType, lineKeys, lineHeader, "", lineNames, lineAxes}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseString(t, strings.Join(tt.lines, "\n")+"\n")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.line, pe.Line)
			assert.Contains(t, pe.Error(), "is blank")
		})
	}
}

func TestParse_WhitespaceOnlyRowsAreNotFrames(t *testing.T) {
	content := trcFile(lineHeader, lineNames,
		"1\t0.000\t1\t2\t3\t4\t5\t6\t",
		"\t \t",
		"2\t0.033\t1\t2\t3\t4\t5\t6\t",
	) + " "
	ds, err := parseString(t, content)
	require.NoError(t, err)
	require.Equal(t, 2, ds.NumFrames())
	for _, track := range ds.Markers() {
		for i, s := range track.Samples {
			assert.True(t, s.Present, "%s frame %d", track.Name, i)
		}
	}
}
