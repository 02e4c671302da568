package runtime

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/deicod/godtl/lexer"
	"github.com/deicod/godtl/nodes"
)

// Template represents a compiled template ready for rendering. Templates
// are immutable and may be rendered concurrently.
type Template struct {
	name        string
	environment *Environment
	source      lexer.Source
	ast         *nodes.Template
	blocks      map[string]*nodes.Block
	extends     *nodes.Extends
}

func newTemplate(env *Environment, ast *nodes.Template, source lexer.Source, name string) *Template {
	template := &Template{
		name:        name,
		environment: env,
		source:      source,
		ast:         ast,
		blocks:      make(map[string]*nodes.Block),
	}
	template.preprocess()
	return template
}

// preprocess collects the blocks and the extends tag
func (t *Template) preprocess() {
	for _, node := range t.ast.Body {
		if extends, ok := node.(*nodes.Extends); ok {
			t.extends = extends
			break
		}
	}

	visitor := nodes.NodeVisitorFunc(func(node nodes.Node) interface{} {
		if block, ok := node.(*nodes.Block); ok {
			t.blocks[block.Name] = block
		}
		return nil
	})
	nodes.Walk(visitor, t.ast)
}

// Execute renders the template to writer
func (t *Template) Execute(vars map[string]any, writer io.Writer) error {
	if writer == nil {
		return NewError(ErrorTypeTemplate, "writer cannot be nil", nil)
	}
	return t.ExecuteWithContext(NewContextWithEnvironment(t.environment, vars), writer)
}

// ExecuteWithContext renders the template using an existing context
func (t *Template) ExecuteWithContext(ctx *Context, writer io.Writer) error {
	if ctx.environment == nil {
		ctx.environment = t.environment
	}
	output, err := t.render(ctx)
	if err != nil {
		return err
	}
	_, err = io.WriteString(writer, output)
	return err
}

// ExecuteToString renders the template to a string
func (t *Template) ExecuteToString(vars map[string]any) (string, error) {
	var buf strings.Builder
	if err := t.Execute(vars, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Name returns the template name
func (t *Template) Name() string {
	return t.name
}

// Environment returns the template's environment
func (t *Template) Environment() *Environment {
	return t.environment
}

// AST returns the template's AST
func (t *Template) AST() *nodes.Template {
	return t.ast
}

// Source returns the template text the AST spans refer to
func (t *Template) Source() lexer.Source {
	return t.source
}

// HasBlock checks if a block exists
func (t *Template) HasBlock(name string) bool {
	_, ok := t.blocks[name]
	return ok
}

// BlockNames returns all block names, sorted
func (t *Template) BlockNames() []string {
	names := make([]string, 0, len(t.blocks))
	for name := range t.blocks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// String returns a string representation of the template
func (t *Template) String() string {
	return fmt.Sprintf("Template(name=%s)", t.name)
}

// Dump returns a debug representation of the template's AST
func (t *Template) Dump() string {
	return nodes.Dump(t.ast, t.source)
}
