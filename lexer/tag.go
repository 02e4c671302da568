package lexer

import (
	"strings"
	"unicode"
)

// TagErrorKind enumerates tag-name lexing failures
type TagErrorKind int

const (
	TagErrorEmpty TagErrorKind = iota
	TagErrorInvalidName
)

// TagError is returned by LexTag
type TagError struct {
	Kind TagErrorKind
	At   Span
}

func (e *TagError) Error() string {
	if e.Kind == TagErrorEmpty {
		return "Empty block tag"
	}
	return "Invalid block tag name"
}

func (e *TagError) Labels() []Label {
	return []Label{label(e.At, "here")}
}

// Tag is a lexed {% ... %} construct.
type Tag struct {
	At    Span
	Name  Span
	Parts Span
}

// LexTag splits the content of a tag segment into its name and argument parts.
func LexTag(source Source, segment Segment) (Tag, error) {
	content := source.Content(segment.Content)
	if strings.TrimSpace(content) == "" {
		return Tag{}, &TagError{Kind: TagErrorEmpty, At: segment.At}
	}

	start := segment.Content.Offset
	nameLen := strings.IndexFunc(content, func(r rune) bool { return !isXIDContinue(r) })
	if nameLen < 0 {
		return Tag{
			At:    segment.At,
			Name:  NewSpan(start, len(content)),
			Parts: NewSpan(start+len(content), 0),
		}, nil
	}

	if ws := nextWhitespace(content); ws > nameLen {
		return Tag{}, &TagError{Kind: TagErrorInvalidName, At: NewSpan(start, ws)}
	}

	parts := trimSpan(source, NewSpan(start+nameLen, len(content)-nameLen))
	return Tag{
		At:    segment.At,
		Name:  NewSpan(start, nameLen),
		Parts: parts,
	}, nil
}

// isXIDStart approximates the Unicode XID_Start property.
func isXIDStart(r rune) bool {
	return unicode.IsLetter(r) || unicode.Is(unicode.Nl, r)
}

// isXIDContinue approximates the Unicode XID_Continue property.
func isXIDContinue(r rune) bool {
	return isXIDStart(r) ||
		unicode.Is(unicode.Mn, r) ||
		unicode.Is(unicode.Mc, r) ||
		unicode.Is(unicode.Nd, r) ||
		unicode.Is(unicode.Pc, r)
}

// IsIdentifier reports whether s is XID_Start XID_Continue* (leading underscore allowed).
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !isXIDStart(r) && r != '_' {
			return false
		}
		if !isXIDContinue(r) {
			return false
		}
	}
	return true
}
