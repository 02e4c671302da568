package parser

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/deicod/godtl/lexer"
	"github.com/deicod/godtl/nodes"
)

var nodeOptions = cmp.Options{
	cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 }),
	cmpopts.IgnoreFields(nodes.Filter{}, "External"),
	cmpopts.IgnoreFields(nodes.SimpleTag{}, "Func"),
	cmpopts.EquateEmpty(),
}

func span(offset, length int) lexer.Span {
	return lexer.NewSpan(offset, length)
}

func variable(offset, length int) *nodes.Variable {
	at := span(offset, length)
	return nodes.NewVariable(at, []lexer.Span{at})
}

func element(e nodes.TagElement) *nodes.ConditionElement {
	return nodes.NewConditionElement(e)
}

func testEnvironment() *Environment {
	env := NewEnvironment()
	env.Libraries["custom"] = &Library{
		Filters: map[string]any{"shout": "shout-handle"},
		Tags: map[string]*TagSignature{
			"greet": {Name: "greet", Params: []string{"name", "greeting"}, DefaultsCount: 1},
			"wrap":  {Name: "wrap", Params: []string{"content", "tag"}, EndTag: "endwrap"},
			"ctx":   {Name: "ctx", Params: []string{"context", "value"}, TakesContext: true},
			"opts":  {Name: "opts", Kwonly: []string{"size", "colour"}, KwonlyDefaults: []string{"colour"}},
		},
	}
	env.Libraries["broken"] = &Library{
		Tags: map[string]*TagSignature{
			"bad": {Name: "bad_block", Params: []string{"value"}, EndTag: "endbad"},
		},
	}
	return env
}

func parse(t *testing.T, env *Environment, template, name string) []nodes.Node {
	t.Helper()
	tmpl, err := ParseTemplateWithEnv(env, template, name)
	if err != nil {
		t.Fatalf("parse(%q) unexpected error: %v", template, err)
	}
	return tmpl.Body
}

func parseError(t *testing.T, env *Environment, template, name string) *ParseError {
	t.Helper()
	_, err := ParseTemplateWithEnv(env, template, name)
	if err == nil {
		t.Fatalf("parse(%q) expected an error", template)
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("parse(%q) error %T is not a *ParseError", template, err)
	}
	return parseErr
}

func TestParseNodes(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     []nodes.Node
	}{
		{
			name:     "empty template",
			template: "",
			want:     []nodes.Node{},
		},
		{
			name:     "text",
			template: "Hello",
			want:     []nodes.Node{nodes.NewText(span(0, 5))},
		},
		{
			name:     "comment",
			template: "{# note #}",
			want:     []nodes.Node{},
		},
		{
			name:     "variable",
			template: "{{ foo }}",
			want:     []nodes.Node{variable(3, 3)},
		},
		{
			name:     "variable attribute",
			template: "{{ foo.bar }}",
			want:     []nodes.Node{nodes.NewVariable(span(3, 7), []lexer.Span{span(3, 3), span(7, 3)})},
		},
		{
			name:     "text literal",
			template: "{{ 'foo' }}",
			want:     []nodes.Node{nodes.NewText(span(4, 3))},
		},
		{
			name:     "translated literal",
			template: "{{ _('foo') }}",
			want:     []nodes.Node{nodes.NewTranslatedText(span(6, 3))},
		},
		{
			name:     "big integer",
			template: "{{ 99999999999999999999999 }}",
			want: []nodes.Node{nodes.NewInt(span(3, 23), func() *big.Int {
				n, _ := new(big.Int).SetString("99999999999999999999999", 10)
				return n
			}())},
		},
		{
			name:     "float",
			template: "{{ 1.5 }}",
			want:     []nodes.Node{nodes.NewFloat(span(3, 3), 1.5)},
		},
		{
			name:     "builtin filter",
			template: "{{ foo|upper }}",
			want: []nodes.Node{&nodes.Filter{
				BaseNode: nodes.BaseNode{At: span(7, 5)},
				AllAt:    span(3, 9),
				Left:     variable(3, 3),
				Kind:     nodes.FilterUpper,
				Name:     "upper",
			}},
		},
		{
			name:     "filter chain",
			template: "{{ foo|lower|upper }}",
			want: []nodes.Node{&nodes.Filter{
				BaseNode: nodes.BaseNode{At: span(13, 5)},
				AllAt:    span(3, 15),
				Left: &nodes.Filter{
					BaseNode: nodes.BaseNode{At: span(7, 5)},
					AllAt:    span(3, 9),
					Left:     variable(3, 3),
					Kind:     nodes.FilterLower,
					Name:     "lower",
				},
				Kind: nodes.FilterUpper,
				Name: "upper",
			}},
		},
		{
			name:     "filter text argument",
			template: "{{ foo|default:'home' }}",
			want: []nodes.Node{&nodes.Filter{
				BaseNode: nodes.BaseNode{At: span(7, 7)},
				AllAt:    span(3, 11),
				Left:     variable(3, 3),
				Kind:     nodes.FilterDefault,
				Name:     "default",
				Arg:      &nodes.Argument{At: span(15, 6), Value: nodes.NewText(span(16, 4))},
			}},
		},
		{
			name:     "filter variable argument",
			template: "{{ foo|default:bar }}",
			want: []nodes.Node{&nodes.Filter{
				BaseNode: nodes.BaseNode{At: span(7, 7)},
				AllAt:    span(3, 11),
				Left:     variable(3, 3),
				Kind:     nodes.FilterDefault,
				Name:     "default",
				Arg:      &nodes.Argument{At: span(15, 3), Value: variable(15, 3)},
			}},
		},
		{
			name:     "filter translated argument",
			template: "{{ foo|default:_('x') }}",
			want: []nodes.Node{&nodes.Filter{
				BaseNode: nodes.BaseNode{At: span(7, 7)},
				AllAt:    span(3, 11),
				Left:     variable(3, 3),
				Kind:     nodes.FilterDefault,
				Name:     "default",
				Arg:      &nodes.Argument{At: span(15, 6), Value: nodes.NewTranslatedText(span(18, 1))},
			}},
		},
		{
			name:     "url",
			template: "{% url 'some-url-name' %}",
			want: []nodes.Node{&nodes.Url{
				BaseNode: nodes.BaseNode{At: span(0, 25)},
				View:     nodes.NewText(span(8, 13)),
			}},
		},
		{
			name:     "url numeric view",
			template: "{% url 64 %}",
			want: []nodes.Node{&nodes.Url{
				BaseNode: nodes.BaseNode{At: span(0, 12)},
				View:     nodes.NewInt(span(7, 2), big.NewInt(64)),
			}},
		},
		{
			name:     "url arguments",
			template: `{% url some_view_name 'foo' bar|default:'home' 64 5.7 _("spam") %}`,
			want: []nodes.Node{&nodes.Url{
				BaseNode: nodes.BaseNode{At: span(0, 66)},
				View:     variable(7, 14),
				Args: []nodes.TagElement{
					nodes.NewText(span(23, 3)),
					&nodes.Filter{
						BaseNode: nodes.BaseNode{At: span(32, 7)},
						AllAt:    span(28, 11),
						Left:     variable(28, 3),
						Kind:     nodes.FilterDefault,
						Name:     "default",
						Arg:      &nodes.Argument{At: span(40, 6), Value: nodes.NewText(span(41, 4))},
					},
					nodes.NewInt(span(47, 2), big.NewInt(64)),
					nodes.NewFloat(span(50, 3), 5.7),
					nodes.NewTranslatedText(span(57, 4)),
				},
			}},
		},
		{
			name:     "url kwargs",
			template: "{% url some_view_name foo='foo' extra=-64 %}",
			want: []nodes.Node{&nodes.Url{
				BaseNode: nodes.BaseNode{At: span(0, 44)},
				View:     variable(7, 14),
				Kwargs: []nodes.Kwarg{
					{Name: "foo", At: span(22, 3), Value: nodes.NewText(span(27, 3))},
					{Name: "extra", At: span(32, 5), Value: nodes.NewInt(span(38, 3), big.NewInt(-64))},
				},
			}},
		},
		{
			name:     "url as variable",
			template: "{% url some_view_name 'foo' as some_url %}",
			want: []nodes.Node{&nodes.Url{
				BaseNode: nodes.BaseNode{At: span(0, 42)},
				View:     variable(7, 14),
				Args:     []nodes.TagElement{nodes.NewText(span(23, 3))},
				Variable: "some_url",
			}},
		},
		{
			name:     "if precedence",
			template: "{% if a or b and c %}x{% endif %}",
			want: []nodes.Node{&nodes.If{
				BaseNode: nodes.BaseNode{At: span(0, 21)},
				Condition: nodes.NewConditionBinary(nodes.OpOr,
					element(variable(6, 1)),
					nodes.NewConditionBinary(nodes.OpAnd, element(variable(11, 1)), element(variable(17, 1)))),
				Truthy: []nodes.Node{nodes.NewText(span(21, 1))},
			}},
		},
		{
			name:     "not binds looser than comparison",
			template: "{% if not a == b %}{% endif %}",
			want: []nodes.Node{&nodes.If{
				BaseNode: nodes.BaseNode{At: span(0, 19)},
				Condition: &nodes.ConditionNot{
					BaseNode: nodes.BaseNode{At: span(6, 10)},
					Operand:  nodes.NewConditionBinary(nodes.OpEqual, element(variable(10, 1)), element(variable(15, 1))),
				},
			}},
		},
		{
			name:     "in binds looser than equality",
			template: "{% if a in b == c %}{% endif %}",
			want: []nodes.Node{&nodes.If{
				BaseNode: nodes.BaseNode{At: span(0, 20)},
				Condition: nodes.NewConditionBinary(nodes.OpIn,
					element(variable(6, 1)),
					nodes.NewConditionBinary(nodes.OpEqual, element(variable(11, 1)), element(variable(16, 1)))),
			}},
		},
		{
			name:     "not binds tighter than and",
			template: "{% if not a and b %}{% endif %}",
			want: []nodes.Node{&nodes.If{
				BaseNode: nodes.BaseNode{At: span(0, 20)},
				Condition: nodes.NewConditionBinary(nodes.OpAnd,
					&nodes.ConditionNot{
						BaseNode: nodes.BaseNode{At: span(6, 5)},
						Operand:  element(variable(10, 1)),
					},
					element(variable(16, 1))),
			}},
		},
		{
			name:     "elif and else",
			template: "{% if a %}1{% elif b %}2{% else %}3{% endif %}",
			want: []nodes.Node{&nodes.If{
				BaseNode:  nodes.BaseNode{At: span(0, 10)},
				Condition: element(variable(6, 1)),
				Truthy:    []nodes.Node{nodes.NewText(span(10, 1))},
				Falsey: []nodes.Node{&nodes.If{
					BaseNode:  nodes.BaseNode{At: span(11, 12)},
					Condition: element(variable(19, 1)),
					Truthy:    []nodes.Node{nodes.NewText(span(23, 1))},
					Falsey:    []nodes.Node{nodes.NewText(span(34, 1))},
				}},
			}},
		},
		{
			name:     "for with empty",
			template: "{% for x in xs %}{{ forloop.counter }}{% empty %}e{% endfor %}",
			want: []nodes.Node{&nodes.For{
				BaseNode: nodes.BaseNode{At: span(0, 17)},
				Iterable: variable(12, 2),
				Names:    []string{"x"},
				NamesAt:  []lexer.Span{span(7, 1)},
				Body:     []nodes.Node{nodes.NewForVariable(span(20, 15), nodes.ForCounter, 0)},
				Empty:    []nodes.Node{nodes.NewText(span(49, 1))},
			}},
		},
		{
			name:     "for unpacking reversed",
			template: "{% for k, v in items reversed %}{% endfor %}",
			want: []nodes.Node{&nodes.For{
				BaseNode: nodes.BaseNode{At: span(0, 32)},
				Iterable: variable(15, 5),
				Names:    []string{"k", "v"},
				NamesAt:  []lexer.Span{span(7, 1), span(10, 1)},
				Reversed: true,
			}},
		},
		{
			name:     "forloop outside a loop",
			template: "{{ forloop.counter }}",
			want:     []nodes.Node{nodes.NewVariable(span(3, 15), []lexer.Span{span(3, 7), span(11, 7)})},
		},
		{
			name:     "include with kwargs only",
			template: `{% include "x.html" with a=1 only %}`,
			want: []nodes.Node{&nodes.Include{
				BaseNode: nodes.BaseNode{At: span(0, 36)},
				Template: nodes.NewText(span(12, 6)),
				Path:     "x.html",
				Kwargs:   []nodes.Kwarg{{Name: "a", At: span(25, 1), Value: nodes.NewInt(span(27, 1), big.NewInt(1))}},
				Only:     true,
			}},
		},
		{
			name:     "lorem defaults",
			template: "{% lorem %}",
			want: []nodes.Node{&nodes.Lorem{
				BaseNode: nodes.BaseNode{At: span(0, 11)},
				Count:    nodes.NewInt(span(8, 0), big.NewInt(1)),
				Method:   lexer.LoremBlocks,
				Common:   true,
			}},
		},
		{
			name:     "lorem options",
			template: "{% lorem 3 w random %}",
			want: []nodes.Node{&nodes.Lorem{
				BaseNode: nodes.BaseNode{At: span(0, 22)},
				Count:    nodes.NewInt(span(9, 1), big.NewInt(3)),
				Method:   lexer.LoremWords,
			}},
		},
		{
			name:     "now",
			template: `{% now "Y" as year %}`,
			want: []nodes.Node{&nodes.Now{
				BaseNode: nodes.BaseNode{At: span(0, 21)},
				Format:   "Y",
				Variable: "year",
			}},
		},
		{
			name:     "templatetag",
			template: "{% templatetag openblock %}",
			want: []nodes.Node{&nodes.TemplateTag{
				BaseNode: nodes.BaseNode{At: span(0, 27)},
				Output:   "{%",
			}},
		},
		{
			name:     "csrf token",
			template: "{% csrf_token %}",
			want:     []nodes.Node{&nodes.CsrfToken{BaseNode: nodes.BaseNode{At: span(0, 16)}}},
		},
		{
			name:     "autoescape",
			template: "{% autoescape off %}x{% endautoescape %}",
			want: []nodes.Node{&nodes.Autoescape{
				BaseNode: nodes.BaseNode{At: span(0, 20)},
				Body:     []nodes.Node{nodes.NewText(span(20, 1))},
			}},
		},
		{
			name:     "verbatim",
			template: "{% verbatim %}{{ x {% endverbatim %}",
			want: []nodes.Node{&nodes.Verbatim{
				BaseNode: nodes.BaseNode{At: span(0, 36)},
				Content:  span(14, 5),
			}},
		},
		{
			name:     "named verbatim",
			template: "{% verbatim a %}{% endverbatim %}{% endverbatim a %}",
			want: []nodes.Node{&nodes.Verbatim{
				BaseNode: nodes.BaseNode{At: span(0, 52)},
				Content:  span(16, 17),
			}},
		},
		{
			name:     "comment tag",
			template: "a{% comment %}{{ x {% endcomment %}b",
			want: []nodes.Node{
				nodes.NewText(span(0, 1)),
				&nodes.Comment{BaseNode: nodes.BaseNode{At: span(1, 34)}},
				nodes.NewText(span(35, 1)),
			},
		},
		{
			name:     "extends and block",
			template: `{% extends "base.html" %}{% block a %}x{% endblock a %}`,
			want: []nodes.Node{
				&nodes.Extends{
					BaseNode: nodes.BaseNode{At: span(0, 25)},
					Parent:   nodes.NewText(span(12, 9)),
					Path:     "base.html",
				},
				&nodes.Block{
					BaseNode: nodes.BaseNode{At: span(25, 13)},
					Name:     "a",
					Body:     []nodes.Node{nodes.NewText(span(38, 1))},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parse(t, testEnvironment(), tt.template, "")
			if diff := cmp.Diff(tt.want, got, nodeOptions); diff != "" {
				t.Errorf("parse(%q) mismatch (-want +got):\n%s", tt.template, diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		origin   string
		kind     ErrorKind
		at       lexer.Span
	}{
		{"empty variable", "{{ }}", "", EmptyVariable, span(0, 5)},
		{"unknown filter", "{{ foo|bar }}", "", InvalidFilter, span(7, 3)},
		{"missing filter argument", "{{ foo|default }}", "", MissingArgument, span(7, 7)},
		{"unexpected filter argument", "{{ foo|lower:1 }}", "", UnexpectedArgument, span(13, 1)},
		{"invalid variable name", "{{ _foo }}", "", LexError, span(3, 4)},
		{"empty tag", "{%  %}", "", LexError, span(0, 6)},
		{"invalid tag name", "{% url'foo' %}", "", LexError, span(3, 8)},
		{"url without arguments", "{% url %}", "", UrlTagNoArguments, span(0, 9)},
		{"url mixed arguments", "{% url some_view_name 'foo' arg name=arg2 %}", "", MixedArgsKwargs, span(0, 44)},
		{"url invalid number", "{% url foo 9.9.9 %}", "", InvalidNumber, span(11, 5)},
		{"if without condition", "{% if %}{% endif %}", "", MissingBooleanExpression, span(0, 8)},
		{"if unused expression", "{% if a b %}{% endif %}", "", UnusedExpression, span(8, 1)},
		{"if operator first", "{% if and %}{% endif %}", "", InvalidIfPosition, span(6, 3)},
		{"if trailing operator", "{% if a == %}{% endif %}", "", UnexpectedEndExpression, span(8, 2)},
		{"if trailing and", "{% if a and %}{% endif %}", "", UnexpectedEndExpression, span(8, 3)},
		{"unclosed if", "{% if a %}", "", MissingEndTag, span(0, 10)},
		{"wrong end tag", "{% if a %}{% endfor %}", "", WrongEndTag, span(10, 12)},
		{"stray end tag", "{% endif %}", "", UnexpectedEndTag, span(0, 11)},
		{"for without names", "{% for %}", "", MissingVariableNames, span(0, 9)},
		{"for name before in", "{% for in xs %}{% endfor %}", "", MissingVariableBeforeIn, span(7, 2)},
		{"for unpacking", "{% for x, in xs %}{% endfor %}", "", MissingVariable, span(7, 1)},
		{"for numeric iterable", "{% for x in 5 %}{% endfor %}", "", NotIterable, span(12, 1)},
		{"include only twice", `{% include "x.html" only only %}`, "", IncludeOnlyTwice, span(25, 4)},
		{"include with nothing", `{% include "x.html" with %}`, "", MissingKeywordArgument, span(20, 4)},
		{"relative include outside", `{% include "../b.html" %}`, "a.html", RelativePathOutside, span(12, 9)},
		{"relative include unknown origin", `{% include "./b.html" %}`, "", RelativePathUnknownOrigin, span(12, 8)},
		{"missing library", "{% load missing %}", "", MissingTagLibrary, span(8, 7)},
		{"missing library member", "{% load nope from custom %}", "", MissingFilterTag, span(8, 4)},
		{"block tag without content", "{% load broken %}", "", RequiresContent, span(0, 17)},
		{"unknown tag", "{% greet 'bob' %}", "", UnknownTag, span(3, 5)},
		{"too many positional", `{% load custom %}{% greet "a" "b" "c" %}`, "", TooManyPositionalArguments, span(34, 3)},
		{"positional after keyword", `{% load custom %}{% greet name="a" "b" %}`, "", PositionalAfterKeyword, span(35, 3)},
		{"duplicate keyword", `{% load custom %}{% greet name="a" name="b" %}`, "", DuplicateKeywordArgument, span(35, 8)},
		{"keyword repeats positional", `{% load custom %}{% greet "a" name="b" %}`, "", DuplicateKeywordArgument, span(30, 8)},
		{"unexpected keyword", `{% load custom %}{% greet foo=1 %}`, "", UnexpectedKeywordArgument, span(26, 5)},
		{"missing arguments", `{% load custom %}{% greet %}`, "", MissingArguments, span(25, 0)},
		{"missing as name", `{% load custom %}{% greet "a" as %}`, "", MissingVariableAfterAs, span(30, 2)},
		{"unknown named cycle", "{% cycle c %}", "", LexError, span(9, 1)},
		{"extends after output", `{{ x }}{% extends "b" %}`, "", ExtendsNotFirst, span(7, 17)},
		{"extends twice", `{% extends "a" %}{% extends "b" %}`, "", ExtendsTwice, span(17, 17)},
		{"extends arguments", `{% extends "a" "b" %}`, "", ExtendsArguments, span(15, 3)},
		{"duplicate block", "{% block a %}{% endblock %}{% block a %}{% endblock %}", "", DuplicateBlock, span(36, 1)},
		{"mismatched endblock", "{% block a %}{% endblock b %}", "", WrongEndTag, span(25, 1)},
		{"unclosed verbatim", "{% verbatim %}x", "", MissingEndTag, span(0, 14)},
		{"unclosed comment", "{% comment %}x", "", MissingEndTag, span(0, 13)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseError(t, testEnvironment(), tt.template, tt.origin)
			if err.Kind != tt.kind {
				t.Errorf("parse(%q) kind = %d, want %d (%v)", tt.template, err.Kind, tt.kind, err)
			}
			if err.At != tt.at {
				t.Errorf("parse(%q) at = %v, want %v", tt.template, err.At, tt.at)
			}
		})
	}
}

func TestParseErrorMessages(t *testing.T) {
	env := testEnvironment()

	err := parseError(t, env, "{% if a %}{% foo %}{% endif %}", "")
	if want := "Invalid block tag 'foo', expected 'elif' or 'else' or 'endif'. Did you forget to register or load this tag?"; err.Message != want {
		t.Errorf("message = %q, want %q", err.Message, want)
	}
	if want := "The innermost block that needs to be closed is 'if'."; err.Help() != want {
		t.Errorf("help = %q, want %q", err.Help(), want)
	}

	err = parseError(t, env, "{% load missing %}", "")
	if want := "Must be one of:\nbroken\ncustom"; err.Help() != want {
		t.Errorf("help = %q, want %q", err.Help(), want)
	}

	err = parseError(t, env, `{% load custom %}{% greet %}`, "page.html")
	if want := "'greet' did not receive value(s) for the argument(s): 'name'"; err.Message != want {
		t.Errorf("message = %q, want %q", err.Message, want)
	}
	if !strings.HasSuffix(err.Error(), "at line 1, column 26 in page.html") {
		t.Errorf("error = %q, want position and template name", err.Error())
	}

	err = parseError(t, env, `{% load custom %}{% greet "a" name="b" %}`, "")
	if want := "'greet' received multiple values for keyword argument 'name'"; err.Message != want {
		t.Errorf("message = %q, want %q", err.Message, want)
	}
	if labels := err.Labels(); len(labels) != 2 || labels[0].At != span(26, 3) {
		t.Errorf("labels = %v, want the positional argument first", labels)
	}

	err = parseError(t, env, `{% load custom %}{% opts %}`, "")
	if want := "'opts' did not receive value(s) for the argument(s): 'size'"; err.Message != want {
		t.Errorf("message = %q, want %q", err.Message, want)
	}

	err = parseError(t, env, "{{ _foo }}", "")
	var variableErr *lexer.VariableError
	if !errors.As(err, &variableErr) {
		t.Errorf("error %v does not wrap a *lexer.VariableError", err)
	}
	if labels := err.Labels(); len(labels) != 1 || labels[0].At != span(3, 4) {
		t.Errorf("labels = %v, want the lexer's label", labels)
	}

	err = parseError(t, env, "{% cycle c %}", "")
	var cycleErr *lexer.CycleError
	if !errors.As(err, &cycleErr) || cycleErr.Kind != lexer.CycleUnknownNamed {
		t.Errorf("error %v does not wrap an unknown named cycle", err)
	}
}

func TestParseLoopDepth(t *testing.T) {
	template := "{% for a in b %}{% for c in d %}{{ forloop.parentloop.counter }}{{ forloop.parentloop.parentloop }}{% endfor %}{% endfor %}"
	body := parse(t, nil, template, "")

	outer := body[0].(*nodes.For)
	inner := outer.Body[0].(*nodes.For)

	counter, ok := inner.Body[0].(*nodes.ForVariable)
	if !ok {
		t.Fatalf("expected ForVariable, got %T", inner.Body[0])
	}
	if counter.Variant != nodes.ForCounter || counter.ParentCount != 1 {
		t.Errorf("got %v parent %d, want counter parent 1", counter.Variant, counter.ParentCount)
	}

	object, ok := inner.Body[1].(*nodes.ForVariable)
	if !ok {
		t.Fatalf("expected ForVariable, got %T", inner.Body[1])
	}
	if object.Variant != nodes.ForObject || object.ParentCount != 2 {
		t.Errorf("got %v parent %d, want object parent 2", object.Variant, object.ParentCount)
	}

	body = parse(t, nil, "{% for a in forloop.counter %}{% empty %}{{ forloop }}{% endfor %}", "")
	loop := body[0].(*nodes.For)
	if _, ok := loop.Iterable.(*nodes.ForVariable); !ok {
		t.Errorf("iterable = %T, want ForVariable", loop.Iterable)
	}
	if _, ok := loop.Empty[0].(*nodes.Variable); !ok {
		t.Errorf("empty branch = %T, want Variable", loop.Empty[0])
	}
}

func TestParseLoadedTags(t *testing.T) {
	env := testEnvironment()

	body := parse(t, env, `{% load custom %}{% greet "bob" greeting=hi as out %}`, "")
	want := &nodes.SimpleTag{
		BaseNode:  nodes.BaseNode{At: span(17, 36)},
		Name:      "greet",
		Args:      []nodes.TagElement{nodes.NewText(span(27, 3))},
		Kwargs:    []nodes.Kwarg{{Name: "greeting", At: span(32, 11), Value: variable(41, 2)}},
		TargetVar: "out",
	}
	if diff := cmp.Diff(want, body[1], nodeOptions); diff != "" {
		t.Errorf("simple tag mismatch (-want +got):\n%s", diff)
	}
	load := body[0].(*nodes.Load)
	if diff := cmp.Diff([]string{"custom"}, load.Names); diff != "" {
		t.Errorf("load names mismatch (-want +got):\n%s", diff)
	}

	body = parse(t, env, `{% load wrap shout from custom %}{% wrap "b" %}{{ x|shout }}{% endwrap %}`, "")
	load = body[0].(*nodes.Load)
	if load.Library != "custom" {
		t.Errorf("library = %q, want custom", load.Library)
	}
	block, ok := body[1].(*nodes.SimpleBlockTag)
	if !ok {
		t.Fatalf("expected SimpleBlockTag, got %T", body[1])
	}
	if len(block.Body) != 1 {
		t.Fatalf("expected 1 node in block body, got %d", len(block.Body))
	}
	filter := block.Body[0].(*nodes.Filter)
	if filter.Kind != nodes.FilterExternal || filter.External != "shout-handle" {
		t.Errorf("filter = %v %v, want external shout-handle", filter.Kind, filter.External)
	}

	body = parse(t, env, `{% load custom %}{% ctx 1 %}{% opts size=2 %}`, "")
	if tag := body[1].(*nodes.SimpleTag); !tag.TakesContext || len(tag.Args) != 1 {
		t.Errorf("ctx tag = %+v, want context and one argument", tag)
	}

	err := parseError(t, env, `{% load custom %}{% wrap "b" %}`, "")
	if err.Kind != MissingEndTag {
		t.Errorf("kind = %d, want MissingEndTag", err.Kind)
	}
}

func TestParseBuiltins(t *testing.T) {
	env := testEnvironment()
	env.Builtins = []*Library{env.Libraries["custom"]}

	body := parse(t, env, `{% greet "bob" %}`, "")
	if _, ok := body[0].(*nodes.SimpleTag); !ok {
		t.Errorf("expected SimpleTag, got %T", body[0])
	}

	env.Builtins = []*Library{env.Libraries["broken"]}
	if _, err := NewParser(env, "", ""); err == nil {
		t.Error("expected an error loading a broken builtin library")
	}
}

func TestParseCycle(t *testing.T) {
	body := parse(t, nil, "{% for x in y %}{% cycle 'a' 'b' as c silent %}{% cycle c %}{% endfor %}", "")
	loop := body[0].(*nodes.For)

	named := loop.Body[0].(*nodes.Cycle)
	if named.Name != "c" || !named.Silent || len(named.Values) != 2 || named.Reference {
		t.Errorf("named cycle = %+v", named)
	}
	reference := loop.Body[1].(*nodes.Cycle)
	if reference.Name != "c" || !reference.Reference {
		t.Errorf("reference = %+v", reference)
	}
}

func TestParseTextBeforeExtends(t *testing.T) {
	body := parse(t, nil, `  {% extends "base.html" %}`, "")
	if _, ok := body[1].(*nodes.Extends); !ok {
		t.Errorf("expected Extends, got %T", body[1])
	}
}
