package lexer

import (
	"fmt"
	"unicode"
)

// AtomKind classifies one unit of a tag's argument list
type AtomKind int

const (
	AtomNumeric AtomKind = iota
	AtomText
	AtomTranslatedText
	AtomVariable
)

var atomNames = map[AtomKind]string{
	AtomNumeric:        "NUMERIC",
	AtomText:           "TEXT",
	AtomTranslatedText: "TRANSLATED_TEXT",
	AtomVariable:       "VARIABLE",
}

func (k AtomKind) String() string {
	if name, ok := atomNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Atom(%d)", k)
}

// Atom is a lexed tag argument. Kwarg is set when the atom is the value of name=value.
type Atom struct {
	Kind  AtomKind
	At    Span
	Kwarg *Span
}

// ContentAt returns the span of the literal value, without quotes or the
// translation wrapper.
func (a Atom) ContentAt() Span {
	switch a.Kind {
	case AtomText:
		return textContentAt(a.At)
	case AtomTranslatedText:
		return translatedContentAt(a.At)
	}
	return a.At
}

// AllAt covers the keyword name (if any) and the value.
func (a Atom) AllAt() Span {
	if a.Kwarg == nil {
		return a.At
	}
	return a.Kwarg.To(a.At)
}

func textContentAt(at Span) Span {
	return NewSpan(at.Offset+1, at.Length-2)
}

func translatedContentAt(at Span) Span {
	return NewSpan(at.Offset+3, at.Length-5)
}

// AtomErrorKind enumerates element lexing failures
type AtomErrorKind int

const (
	AtomIncompleteString AtomErrorKind = iota
	AtomIncompleteTranslatedString
	AtomMissingTranslatedString
	AtomInvalidRemainder
)

// AtomError is returned by the element lexer and the variable lexer
type AtomError struct {
	Kind AtomErrorKind
	At   Span
}

func (e *AtomError) Error() string {
	switch e.Kind {
	case AtomIncompleteString:
		return "Expected a complete string literal"
	case AtomIncompleteTranslatedString:
		return "Expected a complete translation string"
	case AtomMissingTranslatedString:
		return "Expected a string literal within translation"
	default:
		return "Could not parse the remainder"
	}
}

func (e *AtomError) Labels() []Label {
	return []Label{label(e.At, "here")}
}

// ElementLexer yields the atoms of a tag's argument span one at a time.
type ElementLexer struct {
	source Source
	rest   string
	offset int
	kwargs bool
	done   bool
}

// NewElementLexer creates a lexer over parts.
func NewElementLexer(source Source, parts Span) *ElementLexer {
	return &ElementLexer{
		source: source,
		rest:   source.Content(parts),
		offset: parts.Offset,
	}
}

// NewKwargLexer creates a lexer that also recognises name=value atoms.
func NewKwargLexer(source Source, parts Span) *ElementLexer {
	l := NewElementLexer(source, parts)
	l.kwargs = true
	return l
}

// Next returns the next atom. ok is false at the end of input or after an error.
func (l *ElementLexer) Next() (atom Atom, ok bool, err error) {
	if l.done || l.rest == "" {
		return Atom{}, false, nil
	}

	var kwarg *Span
	if l.kwargs {
		if n := kwargPrefix(l.rest); n > 0 {
			name := NewSpan(l.offset, n)
			l.advance(n + 1)
			if l.rest == "" || unicode.IsSpace(firstRune(l.rest)) {
				return l.fail(&AtomError{Kind: AtomInvalidRemainder, At: NewSpan(l.offset, 0)})
			}
			kwarg = &name
		}
	}

	kind, length, atomErr := scanAtom(l.rest, l.offset)
	if atomErr != nil {
		return l.fail(atomErr)
	}
	atom = Atom{Kind: kind, At: NewSpan(l.offset, length), Kwarg: kwarg}
	l.advance(length)

	if remainder := nextWhitespace(l.rest); remainder > 0 {
		return l.fail(&AtomError{Kind: AtomInvalidRemainder, At: NewSpan(l.offset, remainder)})
	}
	l.skipWhitespace()
	return atom, true, nil
}

// All drains the lexer.
func (l *ElementLexer) All() ([]Atom, error) {
	var atoms []Atom
	for {
		atom, ok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return atoms, nil
		}
		atoms = append(atoms, atom)
	}
}

// Rest returns the span not consumed yet.
func (l *ElementLexer) Rest() Span {
	return NewSpan(l.offset, len(l.rest))
}

func (l *ElementLexer) fail(err error) (Atom, bool, error) {
	l.done = true
	l.rest = ""
	return Atom{}, false, err
}

func (l *ElementLexer) advance(n int) {
	l.offset += n
	l.rest = l.rest[n:]
}

func (l *ElementLexer) skipWhitespace() {
	l.advance(nextNonWhitespace(l.rest))
}

// scanAtom measures the atom at the start of rest. offset is the absolute
// position of rest and is only used for error spans.
func scanAtom(rest string, offset int) (AtomKind, int, *AtomError) {
	var kind AtomKind
	var length int
	switch c := rest[0]; {
	case c == '_' && len(rest) > 1 && rest[1] == '(':
		n, err := scanTranslated(rest, offset)
		if err != nil {
			return 0, 0, err
		}
		kind, length = AtomTranslatedText, n
	case c == '"' || c == '\'':
		n, ok := scanQuoted(rest)
		if !ok {
			return 0, 0, &AtomError{Kind: AtomIncompleteString, At: NewSpan(offset, len(rest))}
		}
		kind, length = AtomText, n
	case c == '-' || (c >= '0' && c <= '9'):
		return AtomNumeric, scanVariable(rest), nil
	default:
		return AtomVariable, scanVariable(rest), nil
	}

	// A literal followed directly by a filter chain is lexed as one variable atom.
	if length < len(rest) && rest[length] == '|' {
		return AtomVariable, length + scanVariable(rest[length:]), nil
	}
	return kind, length, nil
}

// scanQuoted returns the length of the quoted literal at the start of s,
// including both quotes. A backslash escapes the following byte.
func scanQuoted(s string) (int, bool) {
	quote := s[0]
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i + 1, true
		}
	}
	return 0, false
}

// scanTranslated returns the length of a _("...") literal at the start of s.
func scanTranslated(s string, offset int) (int, *AtomError) {
	inner := s[2:]
	if inner == "" || (inner[0] != '"' && inner[0] != '\'') {
		return 0, &AtomError{Kind: AtomMissingTranslatedString, At: NewSpan(offset, nextWhitespace(s))}
	}
	n, ok := scanQuoted(inner)
	if !ok || 2+n >= len(s) || s[2+n] != ')' {
		return 0, &AtomError{Kind: AtomIncompleteTranslatedString, At: NewSpan(offset, len(s))}
	}
	return 2 + n + 1, nil
}

// scanVariable measures a variable or filter chain: everything up to whitespace
// or '=', where quoted filter arguments may contain whitespace.
func scanVariable(s string) int {
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			if n, ok := scanQuoted(s[i:]); ok {
				i += n
				continue
			}
			i++
		case c == '=':
			return i
		case c < 0x80:
			if unicode.IsSpace(rune(c)) {
				return i
			}
			i++
		default:
			r := firstRune(s[i:])
			if unicode.IsSpace(r) {
				return i
			}
			i += len(string(r))
		}
	}
	return len(s)
}

// kwargPrefix returns the length of an identifier directly followed by '=',
// or 0 when s does not start with one.
func kwargPrefix(s string) int {
	for i, r := range s {
		if r == '=' {
			if i+1 < len(s) && s[i+1] == '=' {
				return 0
			}
			return i
		}
		if !isXIDContinue(r) {
			return 0
		}
	}
	return 0
}
