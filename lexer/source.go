package lexer

import (
	"fmt"
	"strings"
)

// Span is a half-open byte range into the template source.
type Span struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// NewSpan creates a new Span
func NewSpan(offset, length int) Span {
	return Span{Offset: offset, Length: length}
}

// End returns the offset one past the last byte of the span.
func (s Span) End() int {
	return s.Offset + s.Length
}

// To returns the span starting at s and ending where other ends.
func (s Span) To(other Span) Span {
	return Span{Offset: s.Offset, Length: other.End() - s.Offset}
}

func (s Span) String() string {
	return fmt.Sprintf("(%d, %d)", s.Offset, s.Length)
}

// Source is an immutable view over template text. Every lexer and the parser
// address the text exclusively through spans.
type Source struct {
	text string
}

// NewSource wraps the template text.
func NewSource(text string) Source {
	return Source{text: text}
}

// Len returns the length of the template in bytes.
func (s Source) Len() int {
	return len(s.text)
}

// Text returns the whole template.
func (s Source) Text() string {
	return s.text
}

// Content returns the text covered by span. It panics on an out of range span.
func (s Source) Content(span Span) string {
	return s.text[span.Offset:span.End()]
}

// Position converts a byte offset to a 1-based line and column.
func (s Source) Position(offset int) (line, column int) {
	if offset > len(s.text) {
		offset = len(s.text)
	}
	before := s.text[:offset]
	line = strings.Count(before, "\n") + 1
	lineStart := strings.LastIndexByte(before, '\n') + 1
	column = len([]rune(before[lineStart:])) + 1
	return line, column
}

// Line returns the full source line containing offset, and the offset where it starts.
func (s Source) Line(offset int) (string, int) {
	if offset > len(s.text) {
		offset = len(s.text)
	}
	start := strings.LastIndexByte(s.text[:offset], '\n') + 1
	end := strings.IndexByte(s.text[offset:], '\n')
	if end < 0 {
		return s.text[start:], start
	}
	return s.text[start : offset+end], start
}

// Label annotates a span of a diagnostic.
type Label struct {
	At   Span
	Text string
}

// Labeller is implemented by every error that points into the template source.
type Labeller interface {
	error
	Labels() []Label
}

func label(at Span, text string) Label {
	return Label{At: at, Text: text}
}
