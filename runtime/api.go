package runtime

import (
	"fmt"
	"io"
	"maps"
	"slices"
)

// Simple API functions for ease of use

// ParseString parses a template string and returns a ready-to-use Template
func ParseString(templateString string) (*Template, error) {
	return ParseStringWithName(templateString, "")
}

// ParseStringWithName parses a template string with a given name
func ParseStringWithName(templateString, name string) (*Template, error) {
	return NewEnvironment().NewTemplateWithName(templateString, name)
}

// ExecuteToString is a convenience function that parses and renders a template string
func ExecuteToString(templateString string, vars map[string]any) (string, error) {
	template, err := ParseString(templateString)
	if err != nil {
		return "", err
	}
	return template.ExecuteToString(vars)
}

// Execute is a convenience function that parses and renders a template string to a writer
func Execute(templateString string, vars map[string]any, writer io.Writer) error {
	template, err := ParseString(templateString)
	if err != nil {
		return err
	}
	return template.Execute(vars, writer)
}

// RenderTemplateWithEnvironment parses and renders a template string with env
func RenderTemplateWithEnvironment(env *Environment, templateString string, vars map[string]any) (string, error) {
	template, err := env.NewTemplate(templateString)
	if err != nil {
		return "", err
	}
	return template.ExecuteToString(vars)
}

// BatchRenderer renders a set of named templates that may include and
// extend each other
type BatchRenderer struct {
	environment *Environment
	loader      *MapLoader
	sources     map[string]string
}

// NewBatchRenderer creates a batch renderer. It installs its own loader on env.
func NewBatchRenderer(env *Environment) *BatchRenderer {
	br := &BatchRenderer{
		environment: env,
		loader:      NewMapLoader(nil),
		sources:     make(map[string]string),
	}
	env.SetLoader(br.loader)
	return br
}

// AddTemplate compiles a template and makes it available under name
func (br *BatchRenderer) AddTemplate(name, templateString string) error {
	if _, err := br.environment.NewTemplateWithName(templateString, name); err != nil {
		return err
	}
	br.sources[name] = templateString
	br.loader.Set(name, templateString)
	br.environment.InvalidateTemplate(name)
	return nil
}

// Render renders a template by name
func (br *BatchRenderer) Render(name string, vars map[string]any) (string, error) {
	if !br.HasTemplate(name) {
		return "", NewTemplateNotFound(name, []string{name}, nil)
	}
	template, err := br.environment.LoadTemplate(name)
	if err != nil {
		return "", err
	}
	return template.ExecuteToString(vars)
}

// RenderToWriter renders a template by name to a writer
func (br *BatchRenderer) RenderToWriter(name string, vars map[string]any, writer io.Writer) error {
	if !br.HasTemplate(name) {
		return NewTemplateNotFound(name, []string{name}, nil)
	}
	template, err := br.environment.LoadTemplate(name)
	if err != nil {
		return err
	}
	return template.Execute(vars, writer)
}

// HasTemplate checks if a template exists in the batch renderer
func (br *BatchRenderer) HasTemplate(name string) bool {
	_, ok := br.sources[name]
	return ok
}

// Size returns the number of templates
func (br *BatchRenderer) Size() int {
	return len(br.sources)
}

// Names returns all template names, sorted
func (br *BatchRenderer) Names() []string {
	return slices.Sorted(maps.Keys(br.sources))
}

// String returns a string representation of the batch renderer
func (br *BatchRenderer) String() string {
	return fmt.Sprintf("BatchRenderer(templates=%d)", len(br.sources))
}
