package lexer

import (
	"strings"
)

// templateTagOutputs maps templatetag arguments to the text they render.
var templateTagOutputs = map[string]string{
	"openblock":     "{%",
	"closeblock":    "%}",
	"openvariable":  "{{",
	"closevariable": "}}",
	"openbrace":     "{",
	"closebrace":    "}",
	"opencomment":   "{#",
	"closecomment":  "#}",
}

var templateTagOrder = []string{
	"openblock", "closeblock", "openvariable", "closevariable",
	"openbrace", "closebrace", "opencomment", "closecomment",
}

// TemplateTagErrorKind enumerates templatetag failures
type TemplateTagErrorKind int

const (
	TemplateTagMissingArgument TemplateTagErrorKind = iota
	TemplateTagInvalidArgument
	TemplateTagExtraArgument
)

// TemplateTagError is returned by LexTemplateTag
type TemplateTagError struct {
	Kind     TemplateTagErrorKind
	At       Span
	Argument string
}

func (e *TemplateTagError) Error() string {
	if e.Kind == TemplateTagInvalidArgument {
		return "Invalid templatetag argument: '" + e.Argument + "'"
	}
	return "'templatetag' statement takes one argument"
}

// Help lists the accepted arguments for an invalid one.
func (e *TemplateTagError) Help() string {
	if e.Kind == TemplateTagInvalidArgument {
		return "Must be one of: " + strings.Join(templateTagOrder, ", ")
	}
	return ""
}

func (e *TemplateTagError) Labels() []Label {
	switch e.Kind {
	case TemplateTagMissingArgument:
		return []Label{label(e.At, "missing argument")}
	case TemplateTagInvalidArgument:
		return []Label{label(e.At, "invalid argument")}
	default:
		return []Label{label(e.At, "extra argument")}
	}
}

// LexTemplateTag returns the literal text produced by `templatetag <name>`.
func LexTemplateTag(source Source, parts Span) (string, error) {
	elements := NewElementLexer(source, parts)
	atom, ok, err := elements.Next()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &TemplateTagError{Kind: TemplateTagMissingArgument, At: parts}
	}
	content := source.Content(atom.At)
	output, known := templateTagOutputs[content]
	if atom.Kind != AtomVariable || !known {
		return "", &TemplateTagError{Kind: TemplateTagInvalidArgument, At: atom.At, Argument: content}
	}
	extra, ok, err := elements.Next()
	if err != nil {
		return "", err
	}
	if ok {
		return "", &TemplateTagError{Kind: TemplateTagExtraArgument, At: extra.At}
	}
	return output, nil
}

// BlockError is returned when block or endblock has more than a name.
type BlockError struct {
	Tag string
	At  Span
}

func (e *BlockError) Error() string {
	return "'" + e.Tag + "' tag takes only one argument"
}

func (e *BlockError) Labels() []Label {
	return []Label{label(e.At, "unexpected argument(s)")}
}

// LexBlockName returns the name given to a block or endblock tag. ok is false
// when the tag has no argument.
func LexBlockName(source Source, parts Span, tag string) (Span, bool, error) {
	rest := source.Content(parts)
	if rest == "" {
		return Span{}, false, nil
	}
	n := nextWhitespace(rest)
	skip := nextNonWhitespace(rest[n:])
	if n+skip < len(rest) {
		return Span{}, false, &BlockError{Tag: tag, At: NewSpan(parts.Offset+n+skip, len(rest)-n-skip)}
	}
	return NewSpan(parts.Offset, n), true, nil
}

// AutoescapeErrorKind enumerates autoescape argument failures
type AutoescapeErrorKind int

const (
	AutoescapeMissingArgument AutoescapeErrorKind = iota
	AutoescapeInvalidArgument
	AutoescapeTooManyArguments
)

// AutoescapeError is returned by LexAutoescape
type AutoescapeError struct {
	Kind AutoescapeErrorKind
	At   Span
}

func (e *AutoescapeError) Error() string {
	switch e.Kind {
	case AutoescapeMissingArgument:
		return "'autoescape' tag missing an 'on' or 'off' argument."
	case AutoescapeInvalidArgument:
		return "'autoescape' argument should be 'on' or 'off'."
	default:
		return "'autoescape' tag requires exactly one argument."
	}
}

func (e *AutoescapeError) Labels() []Label {
	return []Label{label(e.At, "here")}
}

// LexAutoescape reads the on/off argument of an autoescape tag. at is the whole
// tag and locates a missing argument.
func LexAutoescape(source Source, at, parts Span) (bool, error) {
	rest := source.Content(parts)
	if rest == "" {
		return false, &AutoescapeError{Kind: AutoescapeMissingArgument, At: at}
	}
	n := nextWhitespace(rest)
	if n < len(rest) {
		skip := nextNonWhitespace(rest[n:])
		return false, &AutoescapeError{Kind: AutoescapeTooManyArguments, At: NewSpan(parts.Offset+n+skip, len(rest)-n-skip)}
	}
	switch rest {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, &AutoescapeError{Kind: AutoescapeInvalidArgument, At: parts}
}

// LexLoad splits the arguments of a load tag on whitespace.
func LexLoad(source Source, parts Span) []Span {
	var spans []Span
	rest, offset := source.Content(parts), parts.Offset
	for rest != "" {
		n := nextWhitespace(rest)
		spans = append(spans, NewSpan(offset, n))
		skip := nextNonWhitespace(rest[n:])
		rest, offset = rest[n+skip:], offset+n+skip
	}
	return spans
}
