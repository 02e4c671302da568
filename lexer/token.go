package lexer

import (
	"fmt"
)

// SegmentType represents the kind of a top-level segment
type SegmentType int

const (
	SegmentText SegmentType = iota
	SegmentVariable
	SegmentTag
	SegmentComment
)

var segmentNames = map[SegmentType]string{
	SegmentText:     "TEXT",
	SegmentVariable: "VARIABLE",
	SegmentTag:      "TAG",
	SegmentComment:  "COMMENT",
}

func (st SegmentType) String() string {
	if name, ok := segmentNames[st]; ok {
		return name
	}
	return fmt.Sprintf("Segment(%d)", st)
}

// Segment is one top-level piece of a template. At covers the raw text including
// delimiters; Content covers the trimmed interior (equal to At for text).
type Segment struct {
	Type    SegmentType
	At      Span
	Content Span
}

func (s Segment) String() string {
	return fmt.Sprintf("%s%s content=%s", s.Type, s.At, s.Content)
}

// SegmentStream represents a consumed-once stream of segments
type SegmentStream struct {
	segments []Segment
	pos      int
}

func NewSegmentStream(segments []Segment) *SegmentStream {
	return &SegmentStream{
		segments: segments,
		pos:      0,
	}
}

// Next returns the next segment and advances the stream.
func (ss *SegmentStream) Next() (Segment, bool) {
	if ss.pos >= len(ss.segments) {
		return Segment{}, false
	}
	segment := ss.segments[ss.pos]
	ss.pos++
	return segment, true
}

func (ss *SegmentStream) Peek() (Segment, bool) {
	if ss.pos >= len(ss.segments) {
		return Segment{}, false
	}
	return ss.segments[ss.pos], true
}

func (ss *SegmentStream) Eof() bool {
	return ss.pos >= len(ss.segments)
}

// Segments returns every segment of the stream, consumed or not.
func (ss *SegmentStream) Segments() []Segment {
	return ss.segments
}
