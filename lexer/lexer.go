package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LexerError represents a scanning error
type LexerError struct {
	Message string
	At      Span
}

func (e *LexerError) Error() string {
	return e.Message
}

// Labels implements Labeller
func (e *LexerError) Labels() []Label {
	return []Label{label(e.At, "opened here")}
}

// LexerConfig holds configuration for the lexer
type LexerConfig struct {
	Delimiters Delimiters
	// StrictDelimiters makes an opening delimiter that is never closed a hard error.
	// When false it is kept as literal text.
	StrictDelimiters bool
}

func DefaultLexerConfig() LexerConfig {
	return LexerConfig{
		Delimiters:       DefaultDelimiters(),
		StrictDelimiters: true,
	}
}

// Lexer splits template text into top-level segments
type Lexer struct {
	config LexerConfig
}

// NewLexer creates a new lexer with the given configuration
func NewLexer(config LexerConfig) *Lexer {
	return &Lexer{config: config}
}

// Scan returns a lazy scanner over source.
func (l *Lexer) Scan(source Source) *Scanner {
	return &Scanner{
		delims: l.config.Delimiters,
		strict: l.config.StrictDelimiters,
		source: source,
	}
}

// Tokenize scans the whole source and returns the resulting stream.
func (l *Lexer) Tokenize(source Source) (*SegmentStream, error) {
	scanner := l.Scan(source)
	var segments []Segment
	for {
		segment, ok, err := scanner.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		segments = append(segments, segment)
	}
	return NewSegmentStream(segments), nil
}

// Tokenize scans text with the default configuration.
func Tokenize(text string) (*SegmentStream, error) {
	return NewLexer(DefaultLexerConfig()).Tokenize(NewSource(text))
}

// Scanner is a forward-only iterator over the segments of a template.
type Scanner struct {
	delims Delimiters
	strict bool
	source Source
	pos    int
	err    error
}

// Next returns the next segment. ok is false once the input is exhausted or
// after an error has been returned.
func (s *Scanner) Next() (segment Segment, ok bool, err error) {
	if s.err != nil || s.pos >= s.source.Len() {
		return Segment{}, false, nil
	}

	rest := s.source.Text()[s.pos:]
	index, kind := s.nextOpening(rest)
	switch {
	case index < 0:
		return s.text(len(rest)), true, nil
	case index > 0:
		return s.text(index), true, nil
	}

	open := len(s.delims.opening(kind))
	closing := s.delims.closing(kind)
	end := strings.Index(rest[open:], closing)
	newline := strings.IndexByte(rest[open:], '\n')

	// A construct never spans lines: the opener and the rest of its line are text.
	if newline >= 0 && (end < 0 || newline < end) {
		return s.text(open + newline + 1), true, nil
	}
	if end < 0 {
		if !s.strict {
			return s.text(len(rest)), true, nil
		}
		s.err = &LexerError{
			Message: fmt.Sprintf("Unclosed %s, expected %q", describeSegment(kind), closing),
			At:      NewSpan(s.pos, open),
		}
		return Segment{}, false, s.err
	}

	at := NewSpan(s.pos, open+end+len(closing))
	inner := NewSpan(s.pos+open, end)
	s.pos = at.End()
	return Segment{Type: kind, At: at, Content: trimSpan(s.source, inner)}, true, nil
}

func (s *Scanner) text(length int) Segment {
	at := NewSpan(s.pos, length)
	s.pos += length
	return Segment{Type: SegmentText, At: at, Content: at}
}

func (s *Scanner) nextOpening(rest string) (int, SegmentType) {
	best, kind := -1, SegmentText
	for _, candidate := range []SegmentType{SegmentVariable, SegmentTag, SegmentComment} {
		index := strings.Index(rest, s.delims.opening(candidate))
		if index >= 0 && (best < 0 || index < best) {
			best, kind = index, candidate
		}
	}
	return best, kind
}

func describeSegment(kind SegmentType) string {
	switch kind {
	case SegmentVariable:
		return "variable"
	case SegmentTag:
		return "block tag"
	case SegmentComment:
		return "comment"
	}
	return "text"
}

// trimSpan narrows span to exclude leading and trailing whitespace.
func trimSpan(source Source, span Span) Span {
	content := source.Content(span)
	trimmedLeft := strings.TrimLeftFunc(content, unicode.IsSpace)
	leading := len(content) - len(trimmedLeft)
	trimmed := strings.TrimRightFunc(trimmedLeft, unicode.IsSpace)
	return NewSpan(span.Offset+leading, len(trimmed))
}

// nextWhitespace returns the byte index of the first whitespace rune in s, or len(s).
func nextWhitespace(s string) int {
	index := strings.IndexFunc(s, unicode.IsSpace)
	if index < 0 {
		return len(s)
	}
	return index
}

// nextNonWhitespace returns the byte index of the first non-whitespace rune in s, or len(s).
func nextNonWhitespace(s string) int {
	index := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) })
	if index < 0 {
		return len(s)
	}
	return index
}

// firstRune decodes the first rune of s.
func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

// SkipToTag moves past raw text up to and including the first tag whose
// trimmed content satisfies match. Variables and comments in between are not
// interpreted. ok is false, and the scanner is left untouched, when no tag
// matches.
func (s *Scanner) SkipToTag(match func(content string) bool) (tag Segment, ok bool) {
	open, closing := s.delims.BlockStart, s.delims.BlockEnd
	text := s.source.Text()
	for from := s.pos; from < len(text); {
		index := strings.Index(text[from:], open)
		if index < 0 {
			break
		}
		start := from + index
		end := strings.Index(text[start+len(open):], closing)
		if end < 0 {
			break
		}
		inner := trimSpan(s.source, NewSpan(start+len(open), end))
		at := NewSpan(start, len(open)+end+len(closing))
		if match(s.source.Content(inner)) {
			s.pos = at.End()
			return Segment{Type: SegmentTag, At: at, Content: inner}, true
		}
		from = start + len(open)
	}
	return Segment{}, false
}
