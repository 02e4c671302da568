package nodes

import (
	"fmt"
	"strings"

	"github.com/deicod/godtl/lexer"
)

// Node represents the base interface for all AST nodes
type Node interface {
	// Span returns the source range this node was built from
	Span() lexer.Span

	// GetChildren returns all child nodes
	GetChildren() []Node

	// Accept implements the visitor pattern
	Accept(visitor Visitor) interface{}

	// String returns a string representation of the node
	String() string

	// Type returns the node type for identification
	Type() string
}

// BaseNode provides common functionality for all nodes
type BaseNode struct {
	At lexer.Span `json:"at"`
}

// Span returns the source range of the node
func (n *BaseNode) Span() lexer.Span {
	return n.At
}

// GetChildren returns the base implementation (empty slice)
func (n *BaseNode) GetChildren() []Node {
	return []Node{}
}

// Visitor implements the visitor pattern for AST traversal
type Visitor interface {
	Visit(node Node) interface{}
}

// NodeVisitorFunc is a function adapter for Visitor interface
type NodeVisitorFunc func(node Node) interface{}

func (f NodeVisitorFunc) Visit(node Node) interface{} {
	return f(node)
}

// Walk traverses the AST using the visitor pattern
func Walk(visitor Visitor, node Node) {
	if node == nil {
		return
	}

	result := visitor.Visit(node)
	if result != nil {
		// If visitor returns non-nil, stop traversal
		return
	}

	for _, child := range node.GetChildren() {
		Walk(visitor, child)
	}
}

// Template is the root of a parsed template
type Template struct {
	BaseNode
	Name string `json:"name"`
	Body []Node `json:"body"`
}

func (t *Template) Accept(visitor Visitor) interface{} {
	return visitor.Visit(t)
}

func (t *Template) GetChildren() []Node {
	return t.Body
}

func (t *Template) String() string {
	return fmt.Sprintf("Template(%q, %d nodes)", t.Name, len(t.Body))
}

func (t *Template) Type() string {
	return "Template"
}

// Find returns the first node matching nodeType, which is either a Type() name
// or a predicate.
func Find(node Node, nodeType interface{}) Node {
	var result Node
	visitor := NodeVisitorFunc(func(n Node) interface{} {
		if result != nil {
			return true
		}
		if matches(n, nodeType) {
			result = n
			return true
		}
		return nil
	})

	Walk(visitor, node)
	return result
}

// FindAll returns every node matching nodeType
func FindAll(node Node, nodeType interface{}) []Node {
	var results []Node
	visitor := NodeVisitorFunc(func(n Node) interface{} {
		if matches(n, nodeType) {
			results = append(results, n)
		}
		return nil
	})

	Walk(visitor, node)
	return results
}

func matches(n Node, nodeType interface{}) bool {
	switch target := nodeType.(type) {
	case string:
		return n.Type() == target
	case func(Node) bool:
		return target(n)
	default:
		return n == target
	}
}

// Dump returns an indented tree representation of the AST. When source is not
// empty, leaf spans are annotated with the text they cover.
func Dump(node Node, source lexer.Source) string {
	if node == nil {
		return "nil"
	}

	var buf strings.Builder
	dumpNode(&buf, node, source, 0)
	return buf.String()
}

func dumpNode(buf *strings.Builder, node Node, source lexer.Source, indent int) {
	buf.WriteString(strings.Repeat("  ", indent))
	buf.WriteString(node.String())
	children := node.GetChildren()
	if len(children) == 0 && source.Len() > 0 {
		at := node.Span()
		if at.End() <= source.Len() && at.Length > 0 {
			fmt.Fprintf(buf, " %q", source.Content(at))
		}
	}
	buf.WriteString("\n")
	for _, child := range children {
		dumpNode(buf, child, source, indent+1)
	}
}

func bodyChildren(bodies ...[]Node) []Node {
	var children []Node
	for _, body := range bodies {
		children = append(children, body...)
	}
	if children == nil {
		return []Node{}
	}
	return children
}
