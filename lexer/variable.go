package lexer

import (
	"strings"
	"unicode"
)

// VariableErrorKind enumerates variable and filter-chain failures
type VariableErrorKind int

const (
	VariableInvalidName VariableErrorKind = iota
	VariableInvalidFilterName
	VariableMissingFilterArgument
)

// VariableError is returned by LexVariable
type VariableError struct {
	Kind VariableErrorKind
	At   Span
}

func (e *VariableError) Error() string {
	switch e.Kind {
	case VariableInvalidFilterName:
		return "Expected a valid filter name"
	case VariableMissingFilterArgument:
		return "Expected an argument"
	default:
		return "Expected a valid variable name"
	}
}

func (e *VariableError) Labels() []Label {
	return []Label{label(e.At, "here")}
}

// FilterToken is one |name[:argument] application.
type FilterToken struct {
	At  Span
	Arg *Atom
}

// VariableToken is a head value followed by a chain of filters.
type VariableToken struct {
	Head    Atom
	Filters []FilterToken
}

// LexVariable lexes the content of a {{ }} segment, or any atom that may carry
// a filter chain.
func LexVariable(source Source, content Span) (VariableToken, error) {
	rest := source.Content(content)
	offset := content.Offset

	head, err := lexHead(rest, offset)
	if err != nil {
		return VariableToken{}, err
	}
	token := VariableToken{Head: head}
	rest = rest[head.At.Length:]
	offset += head.At.Length

	for rest != "" {
		ws := nextNonWhitespace(rest)
		if ws == len(rest) {
			break
		}
		if rest[ws] != '|' {
			junk := rest[ws:]
			return VariableToken{}, &AtomError{Kind: AtomInvalidRemainder, At: NewSpan(offset+ws, nextWhitespace(junk))}
		}
		pipe := offset + ws
		rest = rest[ws+1:]
		offset = pipe + 1
		skip := nextNonWhitespace(rest)
		rest, offset = rest[skip:], offset+skip

		nameLen := wordPrefix(rest)
		if nameLen == 0 {
			return VariableToken{}, &VariableError{Kind: VariableInvalidFilterName, At: NewSpan(pipe, 1+skip+nextWhitespace(rest))}
		}
		filter := FilterToken{At: NewSpan(offset, nameLen)}
		rest, offset = rest[nameLen:], offset+nameLen

		if rest != "" && rest[0] == ':' {
			colon := offset
			rest, offset = rest[1:], offset+1
			if rest == "" || unicode.IsSpace(firstRune(rest)) || rest[0] == '|' {
				return VariableToken{}, &VariableError{Kind: VariableMissingFilterArgument, At: NewSpan(colon, 1)}
			}
			arg, err := lexHead(rest, offset)
			if err != nil {
				return VariableToken{}, err
			}
			filter.Arg = &arg
			rest, offset = rest[arg.At.Length:], offset+arg.At.Length
		}
		token.Filters = append(token.Filters, filter)
	}
	return token, nil
}

// lexHead measures the value before the first filter, or a filter argument.
func lexHead(rest string, offset int) (Atom, error) {
	switch c := rest[0]; {
	case c == '_' && len(rest) > 1 && rest[1] == '(':
		n, err := scanTranslated(rest, offset)
		if err != nil {
			return Atom{}, err
		}
		return Atom{Kind: AtomTranslatedText, At: NewSpan(offset, n)}, nil
	case c == '"' || c == '\'':
		n, ok := scanQuoted(rest)
		if !ok {
			return Atom{}, &AtomError{Kind: AtomIncompleteString, At: NewSpan(offset, len(rest))}
		}
		return Atom{Kind: AtomText, At: NewSpan(offset, n)}, nil
	case c == '-' || (c >= '0' && c <= '9'):
		return Atom{Kind: AtomNumeric, At: NewSpan(offset, scanPath(rest))}, nil
	default:
		at := NewSpan(offset, scanPath(rest))
		if _, err := VariableParts(NewSource(rest), NewSpan(0, at.Length), offset); err != nil {
			return Atom{}, err
		}
		return Atom{Kind: AtomVariable, At: at}, nil
	}
}

// scanPath measures a dotted path or numeric literal, stopping at whitespace or '|'.
func scanPath(s string) int {
	index := strings.IndexFunc(s, func(r rune) bool { return r == '|' || unicode.IsSpace(r) })
	if index < 0 {
		return len(s)
	}
	return index
}

// wordPrefix returns the length of the leading run of word characters.
func wordPrefix(s string) int {
	index := strings.IndexFunc(s, func(r rune) bool { return !isWordRune(r) })
	if index < 0 {
		return len(s)
	}
	return index
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// VariableParts splits the dotted path at span into one span per attribute.
// base is added to every returned offset, which lets callers validate a path held
// in a detached Source.
func VariableParts(source Source, at Span, base int) ([]Span, error) {
	content := source.Content(at)
	parts := make([]Span, 0, strings.Count(content, ".")+1)
	start := 0
	for i := 0; i <= len(content); i++ {
		if i < len(content) && content[i] != '.' {
			continue
		}
		part := NewSpan(base+at.Offset+start, i-start)
		if !isVariablePart(content[start:i]) {
			if part.Length == 0 {
				part = NewSpan(base+at.Offset, len(content))
			}
			return nil, &VariableError{Kind: VariableInvalidName, At: part}
		}
		parts = append(parts, part)
		start = i + 1
	}
	return parts, nil
}

func isVariablePart(s string) bool {
	if s == "" || s[0] == '_' {
		return false
	}
	return wordPrefix(s) == len(s)
}
