package parser

import (
	"github.com/deicod/godtl/nodes"
)

// ParseTemplate is a simple one-line API for parsing templates
// It creates a default environment and parses the given template string
// Returns the AST or a *ParseError with position information
func ParseTemplate(template string) (*nodes.Template, error) {
	return ParseTemplateWithEnv(NewEnvironment(), template, "")
}

// ParseTemplateWithEnv parses a template using the given environment. name is
// the template's loader name and anchors relative include and extends paths.
func ParseTemplateWithEnv(env *Environment, template, name string) (*nodes.Template, error) {
	parser, err := NewParser(env, template, name)
	if err != nil {
		return nil, err
	}

	return parser.Parse()
}
