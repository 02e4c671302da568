// Package godtl is a Go implementation of the Django template language
package godtl

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/deicod/godtl/lexer"
	"github.com/deicod/godtl/nodes"
	"github.com/deicod/godtl/parser"
	"github.com/deicod/godtl/runtime"
)

// Version of the godtl library
const Version = "0.1.0"

// Template represents a compiled template
type Template = runtime.Template

// Environment holds loaders, libraries and rendering options
type Environment = runtime.Environment

// Context represents the template rendering context
type Context = runtime.Context

// Library is a set of filters and simple tags enabled by a load tag
type Library = runtime.Library

// Value is a value seen by templates
type Value = runtime.Value

// Host is implemented by values that templates inspect through attribute
// lookups and comparisons
type Host = runtime.Host

// NewEnvironment creates a new environment with autoescaping enabled
func NewEnvironment() *Environment {
	return runtime.NewEnvironment()
}

// ParseString parses a template from a string
func ParseString(source string) (*Template, error) {
	env := runtime.NewEnvironment()
	return env.NewTemplate(source)
}

// ParseFile parses a template from a file. Includes and extends resolve
// against the file's directory.
func ParseFile(filename string) (*Template, error) {
	if filename == "" {
		return nil, runtime.NewError(runtime.ErrorTypeTemplate, "filename must not be empty", nil)
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}

	env := runtime.NewEnvironment()
	env.SetLoader(runtime.NewFileSystemLoader(filepath.Dir(absPath)))
	return env.LoadTemplate(filepath.Base(absPath))
}

// Node access for AST manipulation

// Node represents an AST node
type Node = nodes.Node

// TemplateNode is the root of a parsed template
type TemplateNode = nodes.Template

// DumpAST returns an indented representation of the AST. Leaves are annotated
// with the source text they cover.
func DumpAST(node Node, source string) string {
	return nodes.Dump(node, lexer.NewSource(source))
}

// Walk traverses the AST using the visitor pattern
func Walk(visitor nodes.Visitor, node Node) {
	nodes.Walk(visitor, node)
}

// Error types

// Error represents a render error
type Error = runtime.Error

// ErrorType represents the type of error
type ErrorType = runtime.ErrorType

// ParseError represents a compile error
type ParseError = parser.ParseError

// Diagnostic is a positioned, printable report of a template error
type Diagnostic struct {
	Name    string
	Message string
	Line    int
	Column  int
	Labels  []DiagnosticLabel
	Help    string

	source lexer.Source
}

// DiagnosticLabel annotates a range of the template
type DiagnosticLabel struct {
	Line   int
	Column int
	Width  int
	Text   string
}

// NewDiagnostic describes err against the template source it came from. The
// second result is false when err carries no position.
func NewDiagnostic(err error, source string) (*Diagnostic, bool) {
	src := lexer.NewSource(source)
	d := &Diagnostic{Message: err.Error(), source: src}

	var parseErr *ParseError
	var runtimeErr *Error
	switch {
	case errors.As(err, &parseErr):
		d.Name = parseErr.Name
		d.Message = parseErr.Message
		d.Help = parseErr.Help()
	case errors.As(err, &runtimeErr):
		d.Name = runtimeErr.Name
		d.Message = runtimeErr.Message
		if runtimeErr.Line == 0 {
			return d, false
		}
	}

	var labeller lexer.Labeller
	if !errors.As(err, &labeller) {
		return d, false
	}
	for _, l := range labeller.Labels() {
		if l.At.End() > src.Len() {
			continue
		}
		line, column := src.Position(l.At.Offset)
		width := utf8.RuneCountInString(src.Content(l.At))
		d.Labels = append(d.Labels, DiagnosticLabel{Line: line, Column: column, Width: max(width, 1), Text: l.Text})
	}
	if len(d.Labels) == 0 {
		return d, false
	}
	d.Line, d.Column = d.Labels[0].Line, d.Labels[0].Column
	return d, true
}

// String renders the diagnostic with an excerpt of every labelled line:
//
//	error: Unexpected end of expression
//	 --> page.html:1:9
//	  |
//	1 | {% if a and %}
//	  |         ^^^ after this
func (d *Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "error: %s\n", d.Message)
	if len(d.Labels) == 0 {
		return b.String()
	}

	name := d.Name
	if name == "" {
		name = "<template>"
	}
	gutter := 0
	for _, l := range d.Labels {
		gutter = max(gutter, len(strconv.Itoa(l.Line)))
	}
	pad := strings.Repeat(" ", gutter)

	fmt.Fprintf(&b, "%s--> %s:%d:%d\n", pad, name, d.Line, d.Column)
	fmt.Fprintf(&b, "%s |\n", pad)
	text := d.source.Text()
	lines := strings.Split(text, "\n")
	for _, l := range d.Labels {
		line := lines[l.Line-1]
		width := min(l.Width, max(utf8.RuneCountInString(line)-l.Column+1, 1))
		fmt.Fprintf(&b, "%*d | %s\n", gutter, l.Line, line)
		fmt.Fprintf(&b, "%s | %s%s", pad, strings.Repeat(" ", l.Column-1), strings.Repeat("^", width))
		if l.Text != "" {
			fmt.Fprintf(&b, " %s", l.Text)
		}
		b.WriteString("\n")
	}
	if d.Help != "" {
		fmt.Fprintf(&b, "%s = help: %s\n", pad, d.Help)
	}
	return b.String()
}
