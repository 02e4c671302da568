package lexer

// IncludeErrorKind enumerates include-tag lexing failures
type IncludeErrorKind int

const (
	IncludeInvalidTemplateName IncludeErrorKind = iota
	IncludeTranslatedTemplateName
	IncludeUnexpectedArgument
	IncludeUnexpectedKeywordArgument
	IncludeUnexpectedPositionalArgument
)

const (
	includeHelpWith = "Try adding the 'with' keyword before the argument."
	includeHelpOnly = "Try moving the argument before the 'only' option"
)

// IncludeError is returned by IncludeLexer
type IncludeError struct {
	Kind IncludeErrorKind
	At   Span
	Help string
}

func (e *IncludeError) Error() string {
	switch e.Kind {
	case IncludeInvalidTemplateName:
		return "Included template name must be a string or iterable of strings."
	case IncludeTranslatedTemplateName:
		return "Included template name cannot be a translatable string."
	case IncludeUnexpectedArgument:
		return "Unexpected argument"
	case IncludeUnexpectedKeywordArgument:
		return "Unexpected keyword argument"
	default:
		return "Expected a keyword argument"
	}
}

func (e *IncludeError) Labels() []Label {
	switch e.Kind {
	case IncludeInvalidTemplateName, IncludeTranslatedTemplateName:
		return []Label{label(e.At, "invalid template name")}
	}
	return []Label{label(e.At, "here")}
}

// IncludeOption is what follows the template name
type IncludeOption int

const (
	IncludeNone IncludeOption = iota
	IncludeWith
	IncludeOnly
)

// IncludeToken is either the only flag or a keyword argument
type IncludeToken struct {
	Only bool
	At   Span
	Atom Atom
}

// IncludeLexer lexes `include <name> [only] [with k=v ...] [only]`.
type IncludeLexer struct {
	source   Source
	elements *ElementLexer
}

func NewIncludeLexer(source Source, parts Span) *IncludeLexer {
	return &IncludeLexer{
		source:   source,
		elements: NewKwargLexer(source, parts),
	}
}

// TemplateName lexes the included template. ok is false when the tag has no arguments.
func (l *IncludeLexer) TemplateName() (Atom, bool, error) {
	atom, ok, err := l.elements.Next()
	if err != nil || !ok {
		return Atom{}, false, err
	}
	if atom.Kwarg != nil {
		return Atom{}, false, &IncludeError{Kind: IncludeUnexpectedKeywordArgument, At: *atom.Kwarg}
	}
	switch atom.Kind {
	case AtomNumeric:
		return Atom{}, false, &IncludeError{Kind: IncludeInvalidTemplateName, At: atom.At}
	case AtomTranslatedText:
		return Atom{}, false, &IncludeError{Kind: IncludeTranslatedTemplateName, At: atom.At}
	}
	return atom, true, nil
}

// WithOrOnly lexes the optional keyword after the template name.
func (l *IncludeLexer) WithOrOnly() (IncludeOption, Span, error) {
	atom, ok, err := l.elements.Next()
	if err != nil {
		return IncludeNone, Span{}, err
	}
	if !ok {
		return IncludeNone, Span{}, nil
	}
	if atom.Kind == AtomVariable && atom.Kwarg == nil {
		switch l.source.Content(atom.At) {
		case "with":
			return IncludeWith, atom.At, nil
		case "only":
			return IncludeOnly, atom.At, nil
		}
		return IncludeNone, Span{}, &IncludeError{Kind: IncludeUnexpectedArgument, At: atom.At, Help: includeHelpWith}
	}
	return IncludeNone, Span{}, &IncludeError{Kind: IncludeUnexpectedArgument, At: atom.AllAt(), Help: includeHelpWith}
}

// Next lexes one keyword argument or a trailing only flag.
func (l *IncludeLexer) Next() (IncludeToken, bool, error) {
	atom, ok, err := l.elements.Next()
	if err != nil || !ok {
		return IncludeToken{}, false, err
	}
	if atom.Kwarg != nil {
		return IncludeToken{At: *atom.Kwarg, Atom: atom}, true, nil
	}
	if atom.Kind == AtomVariable && l.source.Content(atom.At) == "only" {
		return l.only(atom.At)
	}
	return IncludeToken{}, false, &IncludeError{Kind: IncludeUnexpectedPositionalArgument, At: atom.At}
}

// only checks that nothing follows an only flag.
func (l *IncludeLexer) only(at Span) (IncludeToken, bool, error) {
	extra, ok, err := l.elements.Next()
	if err != nil {
		return IncludeToken{}, false, err
	}
	if ok {
		return IncludeToken{}, false, &IncludeError{Kind: IncludeUnexpectedArgument, At: extra.AllAt(), Help: includeHelpOnly}
	}
	return IncludeToken{Only: true, At: at}, true, nil
}
