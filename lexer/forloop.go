package lexer

import (
	"strings"
	"unicode"
)

// ForErrorKind enumerates for-tag lexing failures
type ForErrorKind int

const (
	ForInvalidName ForErrorKind = iota
	ForMissingComma
	ForMissingIn
	ForMissingExpression
	ForUnexpectedExpression
)

// ForError is returned by ForLexer. Name carries the offending text for
// ForInvalidName.
type ForError struct {
	Kind ForErrorKind
	At   Span
	Name string
}

func (e *ForError) Error() string {
	switch e.Kind {
	case ForInvalidName:
		return "Invalid variable name " + e.Name + " in for loop:"
	case ForMissingComma:
		return "Unexpected expression in for loop. Did you miss a comma when unpacking?"
	case ForMissingIn:
		return "Expected the 'in' keyword or a variable name:"
	case ForMissingExpression:
		return "Expected an expression after the 'in' keyword:"
	default:
		return "Unexpected expression in for loop:"
	}
}

func (e *ForError) Labels() []Label {
	switch e.Kind {
	case ForInvalidName:
		return []Label{label(e.At, "invalid variable name")}
	case ForMissingIn:
		return []Label{label(e.At, "after this name")}
	case ForMissingExpression:
		return []Label{label(e.At, "after this keyword")}
	default:
		return []Label{label(e.At, "unexpected expression")}
	}
}

// ForLexer lexes `name (, name)* in <atom> [reversed]`. The methods are meant to
// be called in grammar order: VariableName until it reports no more names, then
// In, Expression and Reversed.
type ForLexer struct {
	source     Source
	rest       string
	offset     int
	expectName bool
	lastAt     Span
}

func NewForLexer(source Source, parts Span) *ForLexer {
	return &ForLexer{
		source:     source,
		rest:       source.Content(parts),
		offset:     parts.Offset,
		expectName: true,
		lastAt:     parts,
	}
}

// VariableName returns the next loop variable, if one is expected.
func (l *ForLexer) VariableName() (Span, bool, error) {
	if !l.expectName || l.rest == "" {
		return Span{}, false, nil
	}
	n := strings.IndexFunc(l.rest, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	if n < 0 {
		n = len(l.rest)
	}
	if n == 0 {
		// A bare comma where a name belongs.
		return Span{}, false, nil
	}
	at := NewSpan(l.offset, n)
	name := l.rest[:n]
	if !isVariablePart(name) {
		return Span{}, false, &ForError{Kind: ForInvalidName, At: at, Name: name}
	}
	l.advance(n)
	l.skipWhitespace()
	l.lastAt = at
	if l.rest != "" && l.rest[0] == ',' {
		l.advance(1)
		l.skipWhitespace()
		l.expectName = true
	} else {
		l.expectName = false
	}
	return at, true, nil
}

// In consumes the `in` keyword.
func (l *ForLexer) In() (Span, error) {
	if l.rest == "" {
		return Span{}, &ForError{Kind: ForMissingIn, At: l.lastAt}
	}
	n := nextWhitespace(l.rest)
	at := NewSpan(l.offset, n)
	if l.rest[:n] != "in" {
		return Span{}, &ForError{Kind: ForMissingComma, At: at}
	}
	l.advance(n)
	l.skipWhitespace()
	l.lastAt = at
	return at, nil
}

// Expression lexes the iterable.
func (l *ForLexer) Expression() (Atom, error) {
	if l.rest == "" {
		return Atom{}, &ForError{Kind: ForMissingExpression, At: l.lastAt}
	}
	elements := NewElementLexer(l.source, NewSpan(l.offset, len(l.rest)))
	atom, _, err := elements.Next()
	if err != nil {
		return Atom{}, err
	}
	rest := elements.Rest()
	l.rest = l.source.Content(rest)
	l.offset = rest.Offset
	return atom, nil
}

// Reversed reports whether the optional `reversed` flag follows the iterable.
func (l *ForLexer) Reversed() (bool, error) {
	if l.rest == "" {
		return false, nil
	}
	n := nextWhitespace(l.rest)
	at := NewSpan(l.offset, n)
	if l.rest[:n] != "reversed" {
		return false, &ForError{Kind: ForUnexpectedExpression, At: at}
	}
	l.advance(n)
	l.skipWhitespace()
	if l.rest != "" {
		extra := NewSpan(l.offset, nextWhitespace(l.rest))
		return false, &ForError{Kind: ForUnexpectedExpression, At: extra}
	}
	return true, nil
}

func (l *ForLexer) advance(n int) {
	l.offset += n
	l.rest = l.rest[n:]
}

func (l *ForLexer) skipWhitespace() {
	l.advance(nextNonWhitespace(l.rest))
}
