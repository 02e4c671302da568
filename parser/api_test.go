package parser

import (
	"testing"

	"github.com/deicod/godtl/nodes"
)

func TestAPI_ParseTemplate(t *testing.T) {
	template := `Hello {{ user.name|title }}, you have {{ count }} messages`

	ast, err := ParseTemplate(template)
	if err != nil {
		t.Fatalf("ParseTemplate() error = %v", err)
	}

	// "Hello ", filter, ", you have ", count, " messages"
	if len(ast.Body) != 5 {
		t.Fatalf("expected 5 nodes in body, got %d", len(ast.Body))
	}

	if _, ok := ast.Body[0].(*nodes.Text); !ok {
		t.Errorf("expected first node to be Text, got %T", ast.Body[0])
	}

	filter, ok := ast.Body[1].(*nodes.Filter)
	if !ok {
		t.Fatalf("expected second node to be Filter, got %T", ast.Body[1])
	}
	if filter.Kind != nodes.FilterTitle {
		t.Errorf("expected title filter, got %v", filter.Kind)
	}
	variable, ok := filter.Left.(*nodes.Variable)
	if !ok {
		t.Fatalf("expected filter operand to be Variable, got %T", filter.Left)
	}
	if len(variable.Parts) != 2 {
		t.Errorf("expected 2 variable parts, got %d", len(variable.Parts))
	}

	if ast.Name != "" {
		t.Errorf("expected an anonymous template, got %q", ast.Name)
	}
}

func TestAPI_ParseTemplateErrorHandling(t *testing.T) {
	tests := []struct {
		name     string
		template string
		wantErr  bool
	}{
		{
			name:     "ValidTemplate",
			template: "{{ name }}",
			wantErr:  false,
		},
		{
			name:     "UnclosedVariable",
			template: "{{ name",
			wantErr:  true,
		},
		{
			name:     "UnclosedBlock",
			template: "{% if condition %}",
			wantErr:  true,
		},
		{
			name:     "EmptyVariable",
			template: "{{ }}",
			wantErr:  true,
		},
		{
			name:     "OpenerAcrossLines",
			template: "{{ name\n}}",
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate(tt.template)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseTemplate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAPI_RelativeTemplateNames(t *testing.T) {
	tests := []struct {
		origin   string
		template string
		want     string
	}{
		{"dir/page.html", `{% include "./part.html" %}`, "dir/part.html"},
		{"dir/sub/page.html", `{% include "../part.html" %}`, "dir/part.html"},
		{"page.html", `{% include "./part.html" %}`, "part.html"},
		{"/", `{% include "./part.html" %}`, "part.html"},
		{"dir/page.html", `{% extends "./base.html" %}`, "dir/base.html"},
		{"dir/page.html", `{% include "part.html" %}`, "part.html"},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			ast, err := ParseTemplateWithEnv(NewEnvironment(), tt.template, tt.origin)
			if err != nil {
				t.Fatalf("ParseTemplateWithEnv() error = %v", err)
			}
			var got string
			switch node := ast.Body[0].(type) {
			case *nodes.Include:
				got = node.Path
			case *nodes.Extends:
				got = node.Path
			default:
				t.Fatalf("unexpected node %T", node)
			}
			if got != tt.want {
				t.Errorf("resolved %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPI_RelativePathOutsideRoot(t *testing.T) {
	_, err := ParseTemplateWithEnv(NewEnvironment(), `{% include "../part.html" %}`, "/")
	if err == nil {
		t.Fatal("expected an error")
	}
	parseErr := err.(*ParseError)
	if parseErr.Kind != RelativePathOutside {
		t.Errorf("kind = %d, want RelativePathOutside", parseErr.Kind)
	}
}
