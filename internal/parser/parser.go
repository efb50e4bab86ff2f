package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/OCAP2/trcimport/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	delimiter     = '\t'
	headerFields  = 8
	leadingCols   = 2 // Frame# and Time
	componentsPer = 3 // X, Y, Z
)

// parseIntFromFloat parses a string that may be an integer ("32") or an
// integral float ("32.00") into int.
func parseIntFromFloat(s string) (int, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int", s)
	}
	return int(f), nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// coordinateColumns returns record[2:len-1]: the marker columns without the
// Frame#/Time prefix and the trailing field.
func coordinateColumns(record []string) []string {
	if len(record) <= leadingCols+1 {
		return nil
	}
	return record[leadingCols : len(record)-1]
}

// Parser converts TRC files into core.Dataset values.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse reads the TRC file at path with the default logger.
func Parse(path string) (*core.Dataset, error) {
	return NewParser(nil).Parse(path)
}

// Parse opens path and parses it. The file is closed before returning.
func (p *Parser) Parse(path string) (*core.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	return p.ParseReader(f, path)
}

// Physical lines of the header block. csv.Reader drops empty lines, so the
// block is located by line number rather than by record count.
const (
	lineHeaderValues = 3
	lineMarkerNames  = 4
	lineAxisLabels   = 5
	firstDataLine    = 7
)

// lineCounter counts the physical lines that pass through it.
type lineCounter struct {
	r     io.Reader
	lines int
	last  byte
}

func (c *lineCounter) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	if n > 0 {
		c.lines += bytes.Count(b[:n], []byte{'\n'})
		c.last = b[n-1]
	}
	return n, err
}

// total is only complete once the reader is drained.
func (c *lineCounter) total() int {
	if c.last != 0 && c.last != '\n' {
		return c.lines + 1
	}
	return c.lines
}

// rowReader wraps csv.Reader and remembers where the last record was.
// Read errors other than io.EOF come back as *ParseError.
type rowReader struct {
	cr        *csv.Reader
	counter   *lineCounter
	name      string
	startLine int
	endLine   int
}

func newRowReader(r io.Reader, name string) *rowReader {
	counter := &lineCounter{r: r}
	cr := csv.NewReader(counter)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return &rowReader{cr: cr, counter: counter, name: name}
}

func (rr *rowReader) read() ([]string, error) {
	record, err := rr.cr.Read()
	if err == io.EOF {
		return nil, err
	}
	if err != nil {
		var csvErr *csv.ParseError
		if errors.As(err, &csvErr) {
			return nil, &ParseError{Path: rr.name, Line: csvErr.Line, Err: csvErr.Err}
		}
		return nil, &ParseError{Path: rr.name, Line: rr.endLine + 1, Err: err}
	}
	rr.startLine, _ = rr.cr.FieldPos(0)
	rr.endLine, _ = rr.cr.FieldPos(len(record) - 1)
	return record, nil
}

func (rr *rowReader) truncated(what string) error {
	return &ParseError{
		Path: rr.name,
		Line: rr.endLine + 1,
		Err:  fmt.Errorf("unexpected end of file reading %s: %w", what, io.ErrUnexpectedEOF),
	}
}

// recordAt returns the record that starts on line. Records starting before
// it are handed to skip; a record starting after it means line was blank.
func (rr *rowReader) recordAt(line int, what string, skip func([]string)) ([]string, error) {
	for {
		record, err := rr.read()
		if err == io.EOF {
			return nil, rr.truncated(what)
		}
		if err != nil {
			return nil, err
		}
		switch {
		case rr.startLine < line:
			if skip != nil {
				skip(record)
			}
		case rr.startLine == line:
			return record, nil
		default:
			return nil, &ParseError{Path: rr.name, Line: line, Err: fmt.Errorf("%s is blank", what)}
		}
	}
}

// blank reports whether every field is empty or whitespace.
func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ParseReader parses TRC content from r. name is used in errors and logs.
func (p *Parser) ParseReader(r io.Reader, name string) (*core.Dataset, error) {
	rr := newRowReader(r, name)

	// Lines 1 and 2 are file type and header keys; neither is validated.
	var fileType []string
	values, err := rr.recordAt(lineHeaderValues, "header values line", func(record []string) {
		if rr.startLine == 1 {
			fileType = record
		}
	})
	if err != nil {
		return nil, err
	}
	header, err := parseHeader(values)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path, pe.Line = name, rr.startLine
		}
		return nil, err
	}
	if len(fileType) > 1 {
		header.FileType = strings.TrimSpace(fileType[1])
	}
	if len(fileType) > 3 {
		header.SourceName = strings.TrimSpace(fileType[3])
	}

	namesRow, err := rr.recordAt(lineMarkerNames, "marker names line", nil)
	if err != nil {
		return nil, err
	}
	names := markerNames(namesRow)

	builder, err := core.NewDatasetBuilder(header, names)
	if err != nil {
		return nil, &ParseError{Path: name, Line: rr.startLine, Field: "marker names", Err: err}
	}

	frame := 0
	for {
		record, err := rr.read()
		if err == io.EOF {
			if rr.counter.total() < lineAxisLabels {
				return nil, rr.truncated("axis labels line")
			}
			break
		}
		if err != nil {
			return nil, err
		}

		// Axis labels and the separator line are dropped whatever they hold.
		if rr.startLine < firstDataLine {
			continue
		}
		if blank(record) {
			p.logger.Debug("Skipping blank row", "path", name, "line", rr.startLine)
			continue
		}

		samples, extra, err := p.parseRow(record, builder.NumMarkers())
		if err != nil {
			return nil, &StructuralError{Path: name, Line: rr.startLine, Frame: frame, Columns: len(coordinateColumns(record))}
		}
		if extra > 0 {
			p.logger.Debug("Ignoring unnamed coordinate columns",
				"path", name, "line", rr.startLine, "triplets", extra)
		}
		if err := builder.AddFrame(parseFrame(record), samples); err != nil {
			return nil, fmt.Errorf("error adding frame %d: %w", frame, err)
		}
		frame++
	}

	ds := builder.Build()

	if header.NumMarkers != ds.NumMarkers() {
		p.logger.Warn("Marker count does not match header",
			"path", name, "header", header.NumMarkers, "parsed", ds.NumMarkers())
	}
	if header.NumFrames != ds.NumFrames() {
		p.logger.Warn("Frame count does not match header",
			"path", name, "header", header.NumFrames, "parsed", ds.NumFrames())
	}

	p.logger.Debug("Parsed TRC file",
		"path", name,
		"markers", ds.NumMarkers(),
		"frames", ds.NumFrames(),
		"cameraRate", header.CameraRate)

	return ds, nil
}

// parseHeader converts the metadata record. The returned *ParseError has no
// path or line; the caller fills them in.
func parseHeader(values []string) (core.Header, error) {
	var h core.Header

	if len(values) < headerFields {
		return h, &ParseError{
			Field: "header",
			Err:   fmt.Errorf("got %d fields, want at least %d", len(values), headerFields),
		}
	}

	var err error
	floatField := func(i int, name string, dst *float64) {
		if err != nil {
			return
		}
		v, perr := parseFloat(values[i])
		if perr != nil {
			err = &ParseError{Field: name, Err: perr}
			return
		}
		*dst = v
	}
	intField := func(i int, name string, dst *int) {
		if err != nil {
			return
		}
		v, perr := parseIntFromFloat(values[i])
		if perr != nil {
			err = &ParseError{Field: name, Err: perr}
			return
		}
		*dst = v
	}

	floatField(0, "DataRate", &h.DataRate)
	floatField(1, "CameraRate", &h.CameraRate)
	intField(2, "NumFrames", &h.NumFrames)
	intField(3, "NumMarkers", &h.NumMarkers)
	h.Units = strings.TrimSpace(values[4])
	floatField(5, "OrigDataRate", &h.OrigDataRate)
	intField(6, "OrigDataStartFrame", &h.OrigDataStart)
	intField(7, "OrigNumFrames", &h.OrigNumFrames)

	return h, err
}

// markerNames takes the first label of every X/Y/Z column group.
func markerNames(record []string) []string {
	cols := coordinateColumns(record)
	names := make([]string, 0, (len(cols)+componentsPer-1)/componentsPer)
	for i := 0; i < len(cols); i += componentsPer {
		names = append(names, cols[i])
	}
	return names
}

// parseRow decodes one data row into a sample per marker. A marker whose
// triplet does not convert, or is absent from a short row, is missing.
// extra is the number of trailing triplets beyond the named markers.
func (p *Parser) parseRow(record []string, numMarkers int) (samples []core.Sample, extra int, err error) {
	cols := coordinateColumns(record)
	if len(cols)%componentsPer != 0 {
		return nil, 0, ErrStructure
	}

	samples = make([]core.Sample, numMarkers)
	for i := range samples {
		off := i * componentsPer
		if off+componentsPer > len(cols) {
			samples[i] = core.MissingSample()
			continue
		}
		samples[i] = parseTriplet(cols[off : off+componentsPer])
	}

	if triplets := len(cols) / componentsPer; triplets > numMarkers {
		extra = triplets - numMarkers
	}
	return samples, extra, nil
}

func parseTriplet(fields []string) core.Sample {
	var xyz [componentsPer]float64
	for i, f := range fields {
		v, err := parseFloat(f)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return core.MissingSample()
		}
		xyz[i] = v
	}
	return core.PresentSample(r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]})
}

// parseFrame reads the Frame# and Time columns. They are informational, so
// anything unparsable is left at zero.
func parseFrame(record []string) core.Frame {
	var f core.Frame
	if len(record) > 0 {
		if n, err := parseIntFromFloat(record[0]); err == nil {
			f.Number = n
		}
	}
	if len(record) > 1 {
		if t, err := parseFloat(record[1]); err == nil {
			f.Time = t
		}
	}
	return f
}
