package parser

import (
	"errors"
	"fmt"

	"github.com/deicod/godtl/lexer"
)

// ErrorKind identifies a parse failure raised by the parser itself. Failures of
// the lexers are reported as LexError with the lexer's error wrapped.
type ErrorKind int

const (
	LexError ErrorKind = iota
	EmptyVariable
	MissingArgument
	NotIterable
	IncludeOnlyTwice
	InvalidFilter
	InvalidIfPosition
	InvalidNumber
	MissingBooleanExpression
	MissingEndTag
	MissingFilterTag
	MissingKeywordArgument
	MissingTagLibrary
	MixedArgsKwargs
	RequiresContent
	RequiresContext
	RequiresContextAndContent
	MissingArguments
	DuplicateKeywordArgument
	PositionalAfterKeyword
	TooManyPositionalArguments
	UnexpectedKeywordArgument
	UnexpectedArgument
	UnexpectedEndExpression
	UnexpectedEndTag
	UnusedExpression
	UrlTagNoArguments
	WrongEndTag
	MissingVariableAfterAs
	UnexpectedTokensAfterAsVariable
	MissingVariable
	MissingVariableBeforeIn
	MissingVariableNames
	RelativePathOutside
	RelativePathUnknownOrigin
	UnknownTag
	ExtendsNotFirst
	ExtendsTwice
	ExtendsArguments
	DuplicateBlock
)

// ParseError is the single error type returned by the parser. At is the primary
// span; Labels lists every annotated span.
type ParseError struct {
	Kind    ErrorKind
	Message string
	At      lexer.Span
	Line    int
	Column  int
	Name    string
	Hint    string
	Notes   []lexer.Label
	Err     error
}

func (e *ParseError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s at line %d, column %d in %s", e.Message, e.Line, e.Column, e.Name)
	}
	return fmt.Sprintf("%s at line %d, column %d", e.Message, e.Line, e.Column)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Labels returns the annotated spans of the error.
func (e *ParseError) Labels() []lexer.Label {
	if len(e.Notes) > 0 {
		return e.Notes
	}
	var labeller lexer.Labeller
	if errors.As(e.Err, &labeller) {
		return labeller.Labels()
	}
	return []lexer.Label{{At: e.At, Text: "here"}}
}

// Help returns a suggested fix, if any.
func (e *ParseError) Help() string {
	if e.Hint != "" {
		return e.Hint
	}
	var helper interface{ Help() string }
	if errors.As(e.Err, &helper) {
		return helper.Help()
	}
	return ""
}

// fail creates a ParseError positioned in the current template.
func (p *Parser) fail(kind ErrorKind, at lexer.Span, msg string, labels ...lexer.Label) *ParseError {
	line, column := p.source.Position(at.Offset)
	return &ParseError{
		Kind:    kind,
		Message: msg,
		At:      at,
		Line:    line,
		Column:  column,
		Name:    p.name,
		Notes:   labels,
	}
}

// wrap converts a lexer error into a ParseError, keeping its spans.
func (p *Parser) wrap(err error) error {
	if err == nil {
		return nil
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return err
	}
	at := lexer.Span{}
	var labeller lexer.Labeller
	if errors.As(err, &labeller) {
		if labels := labeller.Labels(); len(labels) > 0 {
			at = labels[0].At
		}
	}
	e := p.fail(LexError, at, err.Error())
	e.Err = err
	return e
}

func note(at lexer.Span, text string) lexer.Label {
	return lexer.Label{At: at, Text: text}
}
