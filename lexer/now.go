package lexer

// NowErrorKind enumerates now-tag failures
type NowErrorKind int

const (
	NowMissingFormat NowErrorKind = iota
	NowUnexpectedAfterFormat
	NowMissingVariableAfterAs
	NowUnexpectedAfterVariable
)

// NowError is returned by NowLexer
type NowError struct {
	Kind NowErrorKind
	At   Span
}

func (e *NowError) Error() string {
	switch e.Kind {
	case NowMissingFormat:
		return "Expected a format string"
	case NowUnexpectedAfterFormat:
		return "Unexpected argument after format string"
	case NowMissingVariableAfterAs:
		return "Expected a variable name after 'as'"
	default:
		return "Unexpected argument after variable name"
	}
}

// Help suggests a fix.
func (e *NowError) Help() string {
	switch e.Kind {
	case NowMissingFormat:
		return `The 'now' tag requires a format string, like "Y-m-d" or "DATE_FORMAT".`
	case NowUnexpectedAfterFormat:
		return "If you want to store the result in a variable, use the 'as' keyword."
	case NowMissingVariableAfterAs:
		return "Provide a name to store the date string, e.g. 'as my_var'"
	default:
		return "The 'now' tag only accepts one variable assignment. Try removing this extra argument."
	}
}

func (e *NowError) Labels() []Label {
	switch e.Kind {
	case NowMissingFormat:
		return []Label{label(e.At, "missing format")}
	case NowUnexpectedAfterFormat:
		return []Label{label(e.At, "unexpected argument")}
	case NowMissingVariableAfterAs:
		return []Label{label(e.At, "expected a variable name here")}
	default:
		return []Label{label(e.At, "extra argument")}
	}
}

// NowLexer lexes `now <format> [as <name>]`.
//
// Malformed literals are accepted as the format: an unterminated string covers
// the rest of the tag and a literal with trailing junk covers everything up to
// the end of the junk. Rendering strips the first and last byte regardless.
type NowLexer struct {
	source   Source
	parts    Span
	elements *ElementLexer
}

func NewNowLexer(source Source, parts Span) *NowLexer {
	return &NowLexer{
		source:   source,
		parts:    parts,
		elements: NewElementLexer(source, parts),
	}
}

func (l *NowLexer) next() (Span, bool) {
	atom, ok, err := l.elements.Next()
	if err == nil {
		return atom.At, ok
	}
	atomErr, isAtom := err.(*AtomError)
	if isAtom && atomErr.Kind == AtomInvalidRemainder {
		return NewSpan(l.parts.Offset, atomErr.At.End()-l.parts.Offset), true
	}
	if isAtom {
		return atomErr.At, true
	}
	return Span{}, false
}

// Format returns the span of the raw format literal, quotes included.
func (l *NowLexer) Format() (Span, error) {
	at, ok := l.next()
	if !ok {
		return Span{}, &NowError{Kind: NowMissingFormat, At: l.parts}
	}
	return at, nil
}

// Variable returns the target of an optional `as <name>` clause.
func (l *NowLexer) Variable() (Span, bool, error) {
	at, ok := l.next()
	if !ok {
		return Span{}, false, nil
	}
	if l.source.Content(at) != "as" {
		return Span{}, false, &NowError{Kind: NowUnexpectedAfterFormat, At: at}
	}
	name, ok := l.next()
	if !ok {
		return Span{}, false, &NowError{Kind: NowMissingVariableAfterAs, At: NewSpan(at.End(), 0)}
	}
	return name, true, nil
}

// End reports any argument left over.
func (l *NowLexer) End() error {
	if at, ok := l.next(); ok {
		return &NowError{Kind: NowUnexpectedAfterVariable, At: at}
	}
	return nil
}
