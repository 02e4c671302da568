package lexer

import (
	"fmt"
)

// IfTokenKind is an operand or one of the condition operators
type IfTokenKind int

const (
	IfAtom IfTokenKind = iota
	IfAnd
	IfOr
	IfNot
	IfIn
	IfNotIn
	IfIs
	IfIsNot
	IfEqual
	IfNotEqual
	IfLessThan
	IfGreaterThan
	IfLessThanEqual
	IfGreaterThanEqual
)

var ifOperators = map[string]IfTokenKind{
	"and": IfAnd,
	"or":  IfOr,
	"not": IfNot,
	"in":  IfIn,
	"is":  IfIs,
	"==":  IfEqual,
	"!=":  IfNotEqual,
	"<":   IfLessThan,
	">":   IfGreaterThan,
	"<=":  IfLessThanEqual,
	">=":  IfGreaterThanEqual,
}

var ifTokenNames = map[IfTokenKind]string{
	IfAtom:             "atom",
	IfAnd:              "and",
	IfOr:               "or",
	IfNot:              "not",
	IfIn:               "in",
	IfNotIn:            "not in",
	IfIs:               "is",
	IfIsNot:            "is not",
	IfEqual:            "==",
	IfNotEqual:         "!=",
	IfLessThan:         "<",
	IfGreaterThan:      ">",
	IfLessThanEqual:    "<=",
	IfGreaterThanEqual: ">=",
}

func (k IfTokenKind) String() string {
	if name, ok := ifTokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("IfToken(%d)", k)
}

// IfToken is one lexed item of an if condition
type IfToken struct {
	Kind IfTokenKind
	At   Span
	Atom Atom
}

// IfLexer tokenizes the condition of an if or elif tag.
type IfLexer struct {
	source Source
	rest   string
	offset int
	done   bool
}

func NewIfLexer(source Source, parts Span) *IfLexer {
	return &IfLexer{
		source: source,
		rest:   source.Content(parts),
		offset: parts.Offset,
	}
}

// Next returns the next token. ok is false at the end of input or after an error.
func (l *IfLexer) Next() (IfToken, bool, error) {
	if l.done || l.rest == "" {
		return IfToken{}, false, nil
	}

	n := nextWhitespace(l.rest)
	if kind, ok := ifOperators[l.rest[:n]]; ok {
		at := NewSpan(l.offset, n)
		l.advance(n)
		l.skipWhitespace()
		switch kind {
		case IfNot:
			kind, at = l.combine(kind, at, "in", IfNotIn)
		case IfIs:
			kind, at = l.combine(kind, at, "not", IfIsNot)
		}
		return IfToken{Kind: kind, At: at}, true, nil
	}

	elements := NewElementLexer(l.source, NewSpan(l.offset, len(l.rest)))
	atom, _, err := elements.Next()
	if err != nil {
		l.done = true
		return IfToken{}, false, err
	}
	rest := elements.Rest()
	l.rest = l.source.Content(rest)
	l.offset = rest.Offset
	return IfToken{Kind: IfAtom, At: atom.At, Atom: atom}, true, nil
}

// combine merges a two-word operator such as "not in" when the second word follows.
func (l *IfLexer) combine(kind IfTokenKind, at Span, second string, combined IfTokenKind) (IfTokenKind, Span) {
	n := nextWhitespace(l.rest)
	if n == 0 || l.rest[:n] != second {
		return kind, at
	}
	at = NewSpan(at.Offset, l.offset+n-at.Offset)
	l.advance(n)
	l.skipWhitespace()
	return combined, at
}

// All drains the lexer.
func (l *IfLexer) All() ([]IfToken, error) {
	var tokens []IfToken
	for {
		token, ok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return tokens, nil
		}
		tokens = append(tokens, token)
	}
}

func (l *IfLexer) advance(n int) {
	l.offset += n
	l.rest = l.rest[n:]
}

func (l *IfLexer) skipWhitespace() {
	l.advance(nextNonWhitespace(l.rest))
}
