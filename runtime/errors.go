package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/deicod/godtl/lexer"
	"github.com/deicod/godtl/nodes"
)

// ErrorType represents different types of runtime errors
type ErrorType string

const (
	ErrorTypeTemplate  ErrorType = "template_error"
	ErrorTypeUndefined ErrorType = "undefined_error"
	ErrorTypeSyntax    ErrorType = "syntax_error"
	ErrorTypeFilter    ErrorType = "filter_error"
	ErrorTypeTag       ErrorType = "tag_error"
	ErrorTypeType      ErrorType = "type_error"
	ErrorTypeValue     ErrorType = "value_error"
	ErrorTypeURL       ErrorType = "url_error"
)

// Error represents a runtime error with position information. At is the span
// of the failing construct in the template named Name.
type Error struct {
	Type    ErrorType
	Message string
	At      lexer.Span
	Line    int
	Column  int
	Name    string
	Node    nodes.Node
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	var where string
	if e.Line > 0 {
		where = fmt.Sprintf(" at line %d, column %d", e.Line, e.Column)
		if e.Name != "" {
			where += " in " + e.Name
		}
	}
	return fmt.Sprintf("%s%s: %s", e.Type, where, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) runtimeError() *Error {
	return e
}

// Labels returns the annotated span of the error
func (e *Error) Labels() []lexer.Label {
	return []lexer.Label{{At: e.At, Text: "here"}}
}

// NewError creates a new runtime error
func NewError(errorType ErrorType, message string, node nodes.Node) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Node:    node,
	}
}

// NewErrorWithCause creates a new runtime error with an underlying cause
func NewErrorWithCause(errorType ErrorType, message string, node nodes.Node, cause error) *Error {
	err := NewError(errorType, message, node)
	err.Cause = cause
	return err
}

// WrapError attaches the position of node in tmpl to err. Errors that
// already carry a position keep it.
func WrapError(err error, tmpl *Template, node nodes.Node) error {
	if err == nil {
		return nil
	}

	var runtimeErr *Error
	var positioned interface{ runtimeError() *Error }
	if errors.As(err, &positioned) {
		runtimeErr = positioned.runtimeError()
	}
	if runtimeErr == nil {
		runtimeErr = NewErrorWithCause(ErrorTypeTemplate, err.Error(), node, err)
		err = runtimeErr
	}
	if runtimeErr.Line == 0 && tmpl != nil {
		if runtimeErr.Node == nil {
			runtimeErr.Node = node
		}
		if runtimeErr.Node != nil {
			runtimeErr.At = runtimeErr.Node.Span()
			runtimeErr.Line, runtimeErr.Column = tmpl.source.Position(runtimeErr.At.Offset)
			runtimeErr.Name = tmpl.name
		}
	}
	return err
}

// UndefinedError represents a missing variable where a value is required
type UndefinedError struct {
	error
	base     *Error
	Variable string
}

// NewUndefinedError creates a new undefined variable error
func NewUndefinedError(name string, node nodes.Node) *UndefinedError {
	base := NewError(ErrorTypeUndefined, fmt.Sprintf("Failed lookup for key [%s]", name), node)
	return &UndefinedError{error: base, base: base, Variable: name}
}

func (e *UndefinedError) runtimeError() *Error {
	return e.base
}

func (e *UndefinedError) Unwrap() error {
	return e.base
}

// FilterError represents a filter-related error
type FilterError struct {
	error
	base       *Error
	FilterName string
}

// NewFilterError creates a new filter error
func NewFilterError(filterName, message string, node nodes.Node, cause error) *FilterError {
	base := NewErrorWithCause(ErrorTypeFilter, fmt.Sprintf("filter '%s': %s", filterName, message), node, cause)
	return &FilterError{error: base, base: base, FilterName: filterName}
}

func (e *FilterError) runtimeError() *Error {
	return e.base
}

func (e *FilterError) Unwrap() error {
	return e.base
}

// TemplateNotFoundError represents an error when a single template cannot be located.
type TemplateNotFoundError struct {
	base  *Error
	Name  string
	Tried []string
}

// NewTemplateNotFound creates a TemplateNotFoundError with optional tried locations and cause.
func NewTemplateNotFound(name string, tried []string, cause error) *TemplateNotFoundError {
	message := fmt.Sprintf("template %s not found", name)
	if len(tried) > 0 {
		message = fmt.Sprintf("%s (tried: %s)", message, strings.Join(tried, ", "))
	}

	return &TemplateNotFoundError{
		base:  NewErrorWithCause(ErrorTypeTemplate, message, nil, cause),
		Name:  name,
		Tried: append([]string(nil), tried...),
	}
}

// Error returns the message for TemplateNotFoundError.
func (e *TemplateNotFoundError) Error() string {
	if e == nil {
		return "template not found"
	}
	if e.base != nil {
		return e.base.Error()
	}
	return fmt.Sprintf("template %s not found", e.Name)
}

// Unwrap returns the positioned error, which in turn wraps the cause.
func (e *TemplateNotFoundError) Unwrap() error {
	if e == nil || e.base == nil {
		return nil
	}
	return e.base
}

func (e *TemplateNotFoundError) runtimeError() *Error {
	if e == nil {
		return nil
	}
	return e.base
}

// IsUndefinedError checks if an error is an undefined variable error
func IsUndefinedError(err error) bool {
	var undefined *UndefinedError
	return errors.As(err, &undefined)
}

// IsFilterError checks if an error is a filter error
func IsFilterError(err error) bool {
	var filterErr *FilterError
	return errors.As(err, &filterErr)
}

// IsTemplateNotFound checks if an error reports a missing template
func IsTemplateNotFound(err error) bool {
	var notFound *TemplateNotFoundError
	return errors.As(err, &notFound)
}
