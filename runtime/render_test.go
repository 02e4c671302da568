package runtime

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deicod/godtl/parser"
)

type person struct {
	Name  string
	Email string `json:"email"`
}

func (p person) Greeting() string {
	return "Hi " + p.Name
}

func renderString(t *testing.T, env *Environment, source string, vars map[string]any) string {
	t.Helper()
	tmpl, err := env.NewTemplate(source)
	require.NoError(t, err)
	output, err := tmpl.ExecuteToString(vars)
	require.NoError(t, err)
	return output
}

func TestRenderVariables(t *testing.T) {
	vars := map[string]any{
		"name":   "<b>Ann</b>",
		"user":   map[string]any{"name": "Bob", "tags": []string{"x", "y"}},
		"person": person{Name: "Cy", Email: "cy@example.com"},
		"items":  []string{"a", "b", "c"},
		"word":   "héllo",
		"count":  3,
		"ratio":  0.5,
		"flag":   true,
		"markup": Markup("<i>ok</i>"),
	}

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"text", "plain text", "plain text"},
		{"escaped", "{{ name }}", "&lt;b&gt;Ann&lt;/b&gt;"},
		{"safe filter", "{{ name|safe }}", "<b>Ann</b>"},
		{"markup value", "{{ markup }}", "<i>ok</i>"},
		{"string literal is safe", `{{ "<i>" }}`, "<i>"},
		{"map key", "{{ user.name }}", "Bob"},
		{"nested index", "{{ user.tags.1 }}", "y"},
		{"list index", "{{ items.2 }}", "c"},
		{"struct field", "{{ person.Name }}", "Cy"},
		{"lower case field", "{{ person.name }}", "Cy"},
		{"json tag", "{{ person.email }}", "cy@example.com"},
		{"method", "{{ person.greeting }}", "Hi Cy"},
		{"string index", "{{ word.1 }}", "é"},
		{"missing", "[{{ missing }}]", "[]"},
		{"missing attribute", "[{{ user.missing.deeper }}]", "[]"},
		{"missing with default", `{{ missing|default:"none" }}`, "none"},
		{"int", "{{ count }}", "3"},
		{"float", "{{ ratio }}", "0.5"},
		{"bool", "{{ flag }}", "True"},
		{"big int literal", "{{ 123456789012345678901234567890 }}", "123456789012345678901234567890"},
		{"float literal", "{{ 2.0 }}", "2.0"},
		{"none literal", "[{{ None }}]", "[]"},
		{"list", "{{ user.tags }}", "[&#x27;x&#x27;, &#x27;y&#x27;]"},
		{"filter chain", "{{ user.name|upper|lower|capfirst }}", "Bob"},
		{"filter with variable argument", "{{ count|add:count }}", "6"},
		{"comment", "a{# hidden #}b", "ab"},
		{"comment tag", "a{% comment %}{{ hidden }}{% endcomment %}b", "ab"},
		{"verbatim", "{% verbatim %}{{ raw }}{% endverbatim %}", "{{ raw }}"},
		{"templatetag", "{% templatetag openvariable %} x {% templatetag closevariable %}", "{{ x }}"},
	}

	env := NewEnvironment()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderString(t, env, tt.source, vars))
		})
	}
}

func TestRenderAutoescape(t *testing.T) {
	env := NewEnvironment()
	vars := map[string]any{"html": "<p>"}

	assert.Equal(t, "<p>|&lt;p&gt;",
		renderString(t, env, "{% autoescape off %}{{ html }}{% endautoescape %}|{{ html }}", vars))
	assert.Equal(t, "&lt;p&gt;",
		renderString(t, env, "{% autoescape off %}{{ html|escape }}{% endautoescape %}", vars))

	env.SetAutoescape(false)
	assert.Equal(t, "<p>", renderString(t, env, "{{ html }}", vars))
	assert.Equal(t, "&lt;p&gt;", renderString(t, env, "{% autoescape on %}{{ html }}{% endautoescape %}", vars))
}

func TestRenderForLoops(t *testing.T) {
	vars := map[string]any{
		"items": []string{"a", "b", "c"},
		"outer": []int{1, 2},
		"pairs": [][]any{{"x", 1}, {"y", 2}},
		"table": map[string]int{"b": 2, "a": 1},
	}

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"basic", "{% for x in items %}{{ x }}{% endfor %}", "abc"},
		{"reversed", "{% for x in items reversed %}{{ x }}{% endfor %}", "cba"},
		{"counters", "{% for x in items %}{{ forloop.counter }}{{ forloop.counter0 }}{{ forloop.revcounter }}{{ forloop.revcounter0 }} {% endfor %}", "1032 2121 3210 "},
		{"first and last", "{% for x in items %}{% if forloop.first %}[{% endif %}{{ x }}{% if forloop.last %}]{% endif %}{% endfor %}", "[abc]"},
		{"parentloop", "{% for a in outer %}{% for b in outer %}{{ forloop.parentloop.counter }}{{ forloop.counter }} {% endfor %}{% endfor %}", "11 12 21 22 "},
		{"empty parentloop", "{% for x in outer %}{{ forloop.parentloop }}{% endfor %}", "{}{}"},
		{"forloop object", "{% for x in outer %}{% if forloop %}y{% endif %}{% endfor %}", "yy"},
		{"unpack", "{% for k, v in pairs %}{{ k }}={{ v }};{% endfor %}", "x=1;y=2;"},
		{"map keys in order", "{% for k in table %}{{ k }}{% endfor %}", "ab"},
		{"map items", "{% for k, v in table.items %}{{ k }}{{ v }}{% endfor %}", "a1b2"},
		{"string", `{% for c in "hé" %}{{ c }}-{% endfor %}`, "h-é-"},
		{"empty branch", "{% for x in missing %}x{% empty %}none{% endfor %}", "none"},
		{"loop variable scoped", "{% for x in items %}{% endfor %}[{{ x }}]", "[]"},
		{"forloop outside a for tag", "[{{ forloop.counter }}]", "[]"},
	}

	env := NewEnvironment()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderString(t, env, tt.source, vars))
		})
	}
}

func TestRenderForUnpackMismatch(t *testing.T) {
	tmpl, err := ParseString("{% for a, b in rows %}{{ a }}{% endfor %}")
	require.NoError(t, err)

	_, err = tmpl.ExecuteToString(map[string]any{"rows": [][]int{{1, 2, 3}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Need 2 values to unpack in for loop; got 3.")

	var runtimeErr *Error
	require.ErrorAs(t, err, &runtimeErr)
	assert.Equal(t, 1, runtimeErr.Line)
	assert.Equal(t, 1, runtimeErr.Column)
}

func TestRenderForNotIterable(t *testing.T) {
	tmpl, err := ParseString("{% for x in number %}{% endfor %}")
	require.NoError(t, err)

	_, err = tmpl.ExecuteToString(map[string]any{"number": 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'int' object is not iterable")
}

func TestRenderCycle(t *testing.T) {
	env := NewEnvironment()
	vars := map[string]any{"items": []int{1, 2, 3}}

	assert.Equal(t, "oddevenodd",
		renderString(t, env, `{% for x in items %}{% cycle "odd" "even" %}{% endfor %}`, vars))
	assert.Equal(t, "ab|ab",
		renderString(t, env, `{% for x in "ab" %}{% cycle "a" "b" %}{% endfor %}|{% for x in "ab" %}{% cycle "a" "b" %}{% endfor %}`, vars))
	assert.Equal(t, "1a2b3a",
		renderString(t, env, `{% for x in items %}{% cycle "a" "b" as row silent %}{{ x }}{{ row }}{% endfor %}`, vars))
	assert.Equal(t, "xyx",
		renderString(t, env, `{% cycle "x" "y" as c %}{% cycle c %}{% cycle c %}`, vars))
	assert.Equal(t, "&lt;",
		renderString(t, env, `{% cycle value "b" %}`, map[string]any{"value": "<"}))
}

func TestRenderStringIfInvalid(t *testing.T) {
	env := NewEnvironment()
	env.SetStringIfInvalid("INVALID(%s)")

	assert.Equal(t, "INVALID(missing)", renderString(t, env, "{{ missing|upper }}", nil))
	assert.Equal(t, "INVALID(a.b)", renderString(t, env, "{{ a.b }}", map[string]any{"a": map[string]any{}}))
	assert.Equal(t, "shown", renderString(t, env, `{% if missing %}hidden{% else %}shown{% endif %}`, nil))

	env.SetStringIfInvalid("<?>")
	assert.Equal(t, "&lt;?&gt;", renderString(t, env, "{{ missing }}", nil))
}

func TestRenderMissingFilterArgument(t *testing.T) {
	tmpl, err := ParseString("{{ value|default:fallback }}")
	require.NoError(t, err)

	_, err = tmpl.ExecuteToString(map[string]any{"value": ""})
	require.Error(t, err)
	assert.True(t, IsUndefinedError(err))
	assert.Contains(t, err.Error(), "Failed lookup for key [fallback]")
}

func TestRenderFilterError(t *testing.T) {
	tmpl, err := ParseString("line one\n{{ text|wordwrap:0 }}")
	require.NoError(t, err)

	_, err = tmpl.ExecuteToString(map[string]any{"text": "some words"})
	require.Error(t, err)
	assert.True(t, IsFilterError(err))

	var runtimeErr *Error
	require.ErrorAs(t, err, &runtimeErr)
	assert.Equal(t, 2, runtimeErr.Line)
	assert.Contains(t, err.Error(), "invalid width 0 (must be > 0)")
}

func TestRenderCustomFilters(t *testing.T) {
	env := NewEnvironment()
	env.AddFilter("repeat", func(ctx *Context, value Value, args ...Value) (Value, error) {
		n := 2
		if len(args) > 0 {
			count, ok := args[0].asInt()
			if !ok {
				return None(), fmt.Errorf("bad count %s", args[0])
			}
			n = int(count.Int64())
		}
		return NewString(strings.Repeat(value.String(), n)), nil
	})

	assert.Equal(t, "abab", renderString(t, env, "{{ v|repeat }}", map[string]any{"v": "ab"}))
	assert.Equal(t, "xxx", renderString(t, env, "{{ v|repeat:3 }}", map[string]any{"v": "x"}))

	lib := NewLibrary().AddFilter("shout", func(ctx *Context, value Value, args ...Value) (Value, error) {
		return NewString(strings.ToUpper(value.String()) + "!"), nil
	})
	env.AddLibrary("noise", lib)
	assert.Equal(t, "HEY!", renderString(t, env, "{% load noise %}{{ v|shout }}", map[string]any{"v": "hey"}))
	assert.Equal(t, []string{"noise"}, env.LibraryNames())

	_, err := env.NewTemplate("{{ v|shout }}")
	require.Error(t, err, "library filters need a load tag")
}

func TestRenderSimpleTags(t *testing.T) {
	env := NewEnvironment()
	lib := NewLibrary()
	lib.AddTag(parser.TagSignature{Name: "greet", Params: []string{"name"}, Kwonly: []string{"punct"}, KwonlyDefaults: []string{"punct"}},
		func(ctx *Context, args []Value, kwargs map[string]Value) (Value, error) {
			punct := "!"
			if p, ok := kwargs["punct"]; ok {
				punct = p.String()
			}
			return NewString("Hello <" + args[0].String() + ">" + punct), nil
		})
	lib.AddTag(parser.TagSignature{Name: "upper", Params: []string{"content"}, EndTag: "endupper"},
		func(ctx *Context, args []Value, kwargs map[string]Value) (Value, error) {
			return NewSafeString(strings.ToUpper(args[0].String())), nil
		})
	lib.AddTag(parser.TagSignature{Name: "user", Params: []string{"context"}, TakesContext: true},
		func(ctx *Context, args []Value, kwargs map[string]Value) (Value, error) {
			user, _ := ctx.Get("user")
			return user, nil
		})
	env.AddLibrary("custom", lib)

	vars := map[string]any{"who": "Ann", "user": "root"}
	assert.Equal(t, "Hello &lt;Ann&gt;!", renderString(t, env, "{% load custom %}{% greet who %}", vars))
	assert.Equal(t, "Hello &lt;Ann&gt;?", renderString(t, env, `{% load custom %}{% greet who punct="?" %}`, vars))
	assert.Equal(t, "[Hello &lt;&gt;!]", renderString(t, env, "{% load custom %}[{% greet missing %}]", vars))
	assert.Equal(t, "|Hello &lt;Ann&gt;!", renderString(t, env, "{% load custom %}{% greet who as msg %}|{{ msg }}", vars))
	assert.Equal(t, "<B>ANN</B>", renderString(t, env, "{% load greet upper from custom %}{% upper %}<b>{{ who }}</b>{% endupper %}", vars))
	assert.Equal(t, "root", renderString(t, env, "{% load custom %}{% user %}", vars))
}

func TestRenderSimpleTagError(t *testing.T) {
	env := NewEnvironment()
	lib := NewLibrary().AddTag(parser.TagSignature{Name: "fail"},
		func(ctx *Context, args []Value, kwargs map[string]Value) (Value, error) {
			return None(), fmt.Errorf("boom")
		})
	env.AddBuiltin(lib)

	tmpl, err := env.NewTemplate("{% fail %}")
	require.NoError(t, err)
	_, err = tmpl.ExecuteToString(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tag 'fail': boom")
}

func TestRenderURL(t *testing.T) {
	env := NewEnvironment()
	env.SetURLResolver(func(view string, args []Value, kwargs map[string]Value) (string, error) {
		if view == "missing" {
			return "", fmt.Errorf("%w for %q", ErrNoReverseMatch, view)
		}
		parts := []string{"", view}
		for _, arg := range args {
			parts = append(parts, arg.String())
		}
		if slug, ok := kwargs["slug"]; ok {
			parts = append(parts, slug.String())
		}
		return strings.Join(parts, "/") + "/?a=1&b=2", nil
	})

	vars := map[string]any{"id": 7}
	assert.Equal(t, "/article/7/?a=1&amp;b=2", renderString(t, env, `{% url "article" id %}`, vars))
	assert.Equal(t, "/article/intro/?a=1&amp;b=2", renderString(t, env, `{% url "article" slug="intro" %}`, vars))
	assert.Equal(t, "[/article/7/?a=1&amp;b=2]", renderString(t, env, `{% url "article" id as link %}[{{ link }}]`, vars))
	assert.Equal(t, "[]", renderString(t, env, `{% url "missing" as link %}[{{ link }}]`, vars))

	tmpl, err := env.NewTemplate(`{% url "missing" %}`)
	require.NoError(t, err)
	_, err = tmpl.ExecuteToString(nil)
	require.ErrorIs(t, err, ErrNoReverseMatch)
}

func TestRenderURLWithoutResolver(t *testing.T) {
	tmpl, err := ParseString(`{% url "home" %}`)
	require.NoError(t, err)
	_, err = tmpl.ExecuteToString(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no URL resolver configured")
}

func TestRenderCsrfToken(t *testing.T) {
	env := NewEnvironment()
	source := "{% csrf_token %}"

	assert.Equal(t, `<input type="hidden" name="csrfmiddlewaretoken" value="a&quot;b">`,
		renderString(t, env, source, map[string]any{"csrf_token": `a"b`}))
	assert.Equal(t, "", renderString(t, env, source, map[string]any{"csrf_token": "NOTPROVIDED"}))
	assert.Equal(t, "", renderString(t, env, source, nil))
}

func TestRenderNow(t *testing.T) {
	env := NewEnvironment()
	env.SetClock(func() time.Time {
		return time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)
	})

	assert.Equal(t, "2024-03-05", renderString(t, env, `{% now "Y-m-d" %}`, nil))
	assert.Equal(t, "5th March", renderString(t, env, `{% now "jS F" %}`, nil))
	assert.Equal(t, "[2:30 p.m.]", renderString(t, env, `{% now "P" as when %}[{{ when }}]`, nil))
	assert.Equal(t, "March 5, 2024", renderString(t, env, `{% now "DATE_FORMAT" %}`, nil))
}

func TestRenderLorem(t *testing.T) {
	env := NewEnvironment()

	assert.Equal(t, commonParagraph, renderString(t, env, "{% lorem %}", nil))
	assert.Equal(t, "lorem ipsum dolor", renderString(t, env, "{% lorem 3 w %}", nil))
	assert.Equal(t, "<p>"+commonParagraph+"</p>", renderString(t, env, "{% lorem 1 p %}", nil))
	assert.Equal(t, "lorem ipsum", renderString(t, env, "{% lorem count w %}", map[string]any{"count": 2}))

	random := renderString(t, env, "{% lorem 4 w random %}", nil)
	assert.Len(t, strings.Fields(random), 4)

	paragraphs := renderString(t, env, "{% lorem 2 p %}", nil)
	assert.Equal(t, 2, strings.Count(paragraphs, "<p>"))
	assert.True(t, strings.HasPrefix(paragraphs, "<p>"+commonParagraph+"</p>\n\n<p>"))
}

func TestRenderTranslation(t *testing.T) {
	env := NewEnvironment()
	env.SetTranslator(TranslatorFunc(func(msgid string) string {
		switch msgid {
		case "Hello":
			return "Hallo"
		case "yes,no,maybe":
			return "ja,nein,vielleicht"
		}
		return msgid
	}))

	assert.Equal(t, "Hallo", renderString(t, env, `{{ _("Hello") }}`, nil))
	assert.Equal(t, "Other", renderString(t, env, `{{ _('Other') }}`, nil))
	assert.Equal(t, "ja", renderString(t, env, `{{ flag|yesno }}`, map[string]any{"flag": true}))
	assert.Equal(t, "Hallo", renderString(t, env, `{{ missing|default:_("Hello") }}`, nil))
}

func TestRenderGlobals(t *testing.T) {
	env := NewEnvironment()
	env.AddGlobal("site", "example.org")

	assert.Equal(t, "example.org", renderString(t, env, "{{ site }}", nil))
	assert.Equal(t, "local", renderString(t, env, "{{ site }}", map[string]any{"site": "local"}))
}

func TestExecuteWritesOutput(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, Execute("Hi {{ name }}", map[string]any{"name": "you"}, &buf))
	assert.Equal(t, "Hi you", buf.String())

	output, err := ExecuteToString("{{ a }}{{ b }}", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, "12", output)

	tmpl, err := ParseString("x")
	require.NoError(t, err)
	assert.Error(t, tmpl.Execute(nil, nil))
}

func TestEnvironmentRejectsForeignTemplate(t *testing.T) {
	tmpl, err := ParseString("x")
	require.NoError(t, err)

	_, err = NewEnvironment().ExecuteToString(tmpl, nil)
	require.Error(t, err)
	output, err := tmpl.Environment().ExecuteToString(tmpl, nil)
	require.NoError(t, err)
	assert.Equal(t, "x", output)
}
