package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrParse matches every *ParseError.
	ErrParse = errors.New("trc parse error")
	// ErrStructure matches every *StructuralError.
	ErrStructure = errors.New("trc structural error")
)

// ParseError reports an unreadable file, a truncated header block or a
// header field that does not convert.
type ParseError struct {
	Path  string
	Line  int // 1-based, 0 when unknown
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Field != "" {
		return fmt.Sprintf("parse %s: %s: %v", loc, e.Field, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", loc, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// StructuralError reports a data row whose coordinate column count is not a
// multiple of three.
type StructuralError struct {
	Path    string
	Line    int
	Frame   int // 0-based data row index
	Columns int
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("parse %s:%d: frame %d has %d coordinate columns, not a multiple of 3",
		e.Path, e.Line, e.Frame, e.Columns)
}

func (e *StructuralError) Is(target error) bool { return target == ErrStructure }
