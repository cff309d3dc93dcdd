package c5

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

const eof = -1

// Location pinpoints one cursor in one source file as a 1-based
// line/column pair plus the raw offset into the input (LineIndex
// counts it in bytes; the lexer counts it in runes). File is the path the
// cursor belongs to, so a Location survives being copied across
// include boundaries without losing which buffer it came from.
type Location struct {
	File   string
	Line   int32
	Column int32
	Cursor int32
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Span is a half-open range between two Locations, normally in the
// same file. Every AST node and every Diagnostic anchors to one.
type Span struct {
	Start Location
	End   Location
}

func NewSpan(start, end Location) Span { return Span{Start: start, End: end} }

func (s Span) String() string {
	startLine, startCol := int(s.Start.Line), int(s.Start.Column)
	endLine, endCol := int(s.End.Line), int(s.End.Column)
	file := s.Start.File
	if startLine == endLine && startCol == endCol {
		return fmt.Sprintf("%s:%d:%d", file, startLine, startCol)
	}
	if startLine == endLine {
		return fmt.Sprintf("%s:%d:%d..%d", file, startLine, startCol, endCol)
	}
	return fmt.Sprintf("%s:%d:%d..%d:%d", file, startLine, startCol, endLine, endCol)
}

//  ---- Range ----

// Range is a half-open byte offset pair into one buffer. It is
// lighter than Span, and a LineIndex turns it into line/column form.
// The lexer does not use it; it builds Locations directly.
type Range struct{ Start, End int }

func NewRange(start, end int) Range { return Range{Start: start, End: end} }

func (r Range) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

func (r Range) Str(v []byte) string { return string(v[r.Start:r.End]) }

func (r Range) Contains(other Range) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// LineIndex allows fast conversion from byte cursor offsets to line/column.
//
// It stores the start byte offset of each line (0-based). Given a
// cursor, it finds the line by binary searching line starts (O(log
// lines)) and computes the column as (runes since lineStart + 1).
//
// Construction is O(n) over the input and is intended to be cached
// once per source file.
type LineIndex struct {
	file      string
	input     []byte
	lineStart []int
}

func NewLineIndex(file string, input []byte) *LineIndex {
	// Always include line 1 starting at offset 0.
	lineStart := make([]int, 1, 64)
	lineStart[0] = 0
	for i, b := range input {
		if b == '\n' {
			// next line starts after '\n'
			lineStart = append(lineStart, i+1)
		}
	}
	return &LineIndex{file: file, input: input, lineStart: lineStart}
}

func (li *LineIndex) Span(r Range) Span {
	return Span{
		Start: li.LocationAt(r.Start),
		End:   li.LocationAt(r.End),
	}
}

func (li *LineIndex) LocationAt(cursor int) Location {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(li.input) {
		cursor = len(li.input)
	}

	// Find first lineStart > cursor, then step back one.
	lineIdx := sort.Search(len(li.lineStart), func(i int) bool {
		return li.lineStart[i] > cursor
	}) - 1
	if lineIdx < 0 {
		lineIdx = 0
	}

	lineStart := li.lineStart[lineIdx]
	// Column is rune-based and 1-indexed.
	col := int32(utf8.RuneCount(li.input[lineStart:cursor])) + 1

	return Location{
		File:   li.file,
		Line:   int32(lineIdx + 1),
		Column: col,
		Cursor: int32(cursor),
	}
}
