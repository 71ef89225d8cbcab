package text

import (
	"errors"
	"fmt"
	"slices"
)

// LineIndex maps byte offsets to line/column locations over a UTF-8 source buffer.
type LineIndex struct {
	src        []byte
	lineStarts []ByteOffset
}

var errNilLineIndex = errors.New("nil LineIndex")

// NewLineIndex builds an index over src.
func NewLineIndex(src []byte) *LineIndex {
	starts := []ByteOffset{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, ByteOffset(i+1))
		}
	}
	return &LineIndex{
		src:        src,
		lineStarts: starts,
	}
}

// SourceLen returns the source length in bytes.
func (li *LineIndex) SourceLen() ByteOffset {
	if li == nil {
		return 0
	}
	return ByteOffset(len(li.src))
}

// LineCount returns the number of logical lines in the source.
func (li *LineIndex) LineCount() int {
	if li == nil {
		return 0
	}
	return len(li.lineStarts)
}

// OffsetToPoint converts a byte offset to a 1-based line, 0-based column point.
func (li *LineIndex) OffsetToPoint(off ByteOffset) (Point, error) {
	if li == nil {
		return Point{}, errNilLineIndex
	}
	if !off.IsValid() {
		return Point{}, fmt.Errorf("offset out of range: %d", off)
	}
	if off > ByteOffset(len(li.src)) {
		return Point{}, fmt.Errorf("offset out of range: %d > %d", off, len(li.src))
	}

	line := li.lineForOffset(off)
	return Point{
		Line:   line + 1,
		Column: int(off - li.lineStarts[line]),
	}, nil
}

// Point converts off to a point, clamping out-of-range offsets to the source bounds.
func (li *LineIndex) Point(off ByteOffset) Point {
	if li == nil {
		return Point{Line: 1}
	}
	off = min(max(off, 0), ByteOffset(len(li.src)))
	p, _ := li.OffsetToPoint(off)
	return p
}

// SpanRange converts a span to a clamped point range.
func (li *LineIndex) SpanRange(sp Span) Range {
	return Range{Start: li.Point(sp.Start), End: li.Point(sp.End)}
}

// PointToOffset converts a point back to a byte offset.
func (li *LineIndex) PointToOffset(p Point) (ByteOffset, error) {
	if li == nil {
		return 0, errNilLineIndex
	}
	if p.Line < 1 || p.Line > len(li.lineStarts) {
		return 0, fmt.Errorf("line out of range: %d", p.Line)
	}
	if p.Column < 0 {
		return 0, fmt.Errorf("column out of range: %d", p.Column)
	}
	start := li.lineStarts[p.Line-1]
	end := ByteOffset(len(li.src))
	if p.Line < len(li.lineStarts) {
		end = li.lineStarts[p.Line] - 1
	}
	if start+ByteOffset(p.Column) > end {
		return 0, fmt.Errorf("column out of range: line=%d column=%d max=%d", p.Line, p.Column, end-start)
	}
	return start + ByteOffset(p.Column), nil
}

func (li *LineIndex) lineForOffset(off ByteOffset) int {
	// largest i such that lineStarts[i] <= off
	i, found := slices.BinarySearch(li.lineStarts, off)
	if found {
		return i
	}
	return i - 1
}
