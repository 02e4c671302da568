package main

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
template_dirs: [templates]
string_if_invalid: ""
libraries:
  star: lib.star
language: de
translations:
  Hello: Hallo
urls:
  article: /articles/{0}/
  user: /users/{name}/
context:
  site: Demo
serve:
  index: index.html
`

const testLibrary = `
def shout(value):
    return value.upper() + "!"

register.filter(shout)
`

// writeFiles creates files under a temporary directory and returns it
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func newProject(t *testing.T, templates map[string]string) string {
	t.Helper()
	files := map[string]string{
		"djtl.yaml": testConfig,
		"lib.star":  testLibrary,
	}
	for name, content := range templates {
		files[filepath.Join("templates", name)] = content
	}
	return writeFiles(t, files)
}

func run(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append([]string{"--config", filepath.Join(dir, "djtl.yaml")}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestLex(t *testing.T) {
	dir := newProject(t, map[string]string{"page.html": "a {{ b }}{% if c %}"})

	stdout, _, err := run(t, dir, "lex", filepath.Join(dir, "templates", "page.html"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1:1\tTEXT(0, 2)\t\"a \"", lines[0])
	assert.Equal(t, "1:3\tVARIABLE(2, 7)\t\"b\"", lines[1])
	assert.Equal(t, "1:10\tTAG(9, 10)\t\"if c\"\tname=\"if\" parts=\"c\"", lines[2])
}

func TestLexError(t *testing.T) {
	dir := newProject(t, map[string]string{"page.html": "a {{ b"})

	_, stderr, err := run(t, dir, "lex", filepath.Join(dir, "templates", "page.html"))
	require.Error(t, err)
	assert.Contains(t, stderr, "1 | a {{ b")
}

func TestParse(t *testing.T) {
	dir := newProject(t, map[string]string{"page.html": "{% for x in items %}{{ x }}{% endfor %}"})

	stdout, _, err := run(t, dir, "parse", filepath.Join(dir, "templates", "page.html"))
	require.NoError(t, err)
	assert.Contains(t, stdout, `Variable(23, 1) "x"`)
}

func TestCheck(t *testing.T) {
	dir := newProject(t, map[string]string{
		"a.html":   "{% if a %}{% endif %}",
		"b.html":   "{% load star %}{{ a|shout }}",
		"bad.html": "ok\n{% if a %}{% foo %}{% endif %}",
	})
	path := func(name string) string { return filepath.Join(dir, "templates", name) }

	stdout, _, err := run(t, dir, "check", "-j", "2", path("a.html"), path("b.html"))
	require.NoError(t, err)
	assert.Equal(t, "2 templates ok\n", stdout)

	stdout, _, err = run(t, dir, "check", path("a.html"), path("bad.html"), path("b.html"))
	require.Error(t, err)
	assert.Equal(t, "1 of 3 templates failed to compile", err.Error())
	assert.Contains(t, stdout, "error: Invalid block tag 'foo'")
	assert.Contains(t, stdout, "--> "+path("bad.html")+":2:14")
	assert.Contains(t, stdout, "2 | {% if a %}{% foo %}{% endif %}")

	_, _, err = run(t, dir, "check", path("nowhere.html"))
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	dir := newProject(t, map[string]string{
		"page.html": `{% load star %}{{ name|shout }} {% url "article" 3 %} {% url "user" name=name %} {{ _("Hello") }} {{ site }}`,
		"list.html": `{% for item in items %}{{ item.title }};{% endfor %}{{ count|add:1 }}`,
		"bad.html":  "{{ a }}\n{{ a|wordwrap:0 }}",
	})

	stdout, _, err := run(t, dir, "render", "--set", "name=ada", "page.html")
	require.NoError(t, err)
	assert.Equal(t, "ADA! /articles/3/ /users/ada/ Hallo Demo", stdout)

	ctx := writeFiles(t, map[string]string{"ctx.yaml": "items:\n  - title: one\n  - title: two\ncount: 41\n"})
	stdout, _, err = run(t, dir, "render", "--context", filepath.Join(ctx, "ctx.yaml"), "list.html")
	require.NoError(t, err)
	assert.Equal(t, "one;two;42", stdout)

	_, stderr, err := run(t, dir, "render", "--set", "a=x y", "bad.html")
	require.Error(t, err)
	assert.Contains(t, stderr, "--> bad.html:2:")
	assert.Contains(t, stderr, "2 | {{ a|wordwrap:0 }}")

	_, _, err = run(t, dir, "render", "--set", "novalue", "page.html")
	assert.Error(t, err)

	_, stderr, err = run(t, dir, "render", "missing.html")
	require.Error(t, err)
	assert.Empty(t, stderr)
}

func TestConfig(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"unknown.yaml": "templates_dir: [x]\n",
		"valid.yaml":   "template_dirs: [tpl]\nlibraries:\n  star: lib/x.star\n",
	})

	_, err := loadConfig(filepath.Join(dir, "unknown.yaml"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "templates_dir")

	cfg, err := loadConfig(filepath.Join(dir, "valid.yaml"), true)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "tpl")}, cfg.TemplateDirs)
	assert.Equal(t, filepath.Join(dir, "lib", "x.star"), cfg.Libraries["star"])

	cfg, err = loadConfig(filepath.Join(dir, "absent.yaml"), false)
	require.NoError(t, err)
	assert.Empty(t, cfg.TemplateDirs)

	_, err = loadConfig(filepath.Join(dir, "absent.yaml"), true)
	assert.Error(t, err)

	_, err = (&config{Language: "not a language!"}).environment(slog.New(slog.DiscardHandler))
	assert.Error(t, err)

	_, err = (&config{Libraries: map[string]string{"x": filepath.Join(dir, "missing.star")}}).environment(slog.New(slog.DiscardHandler))
	assert.Error(t, err)

	_, err = serveConfig{CSRFKey: "abcd"}.csrfKey()
	assert.Error(t, err)
	key, err := serveConfig{CSRFKey: strings.Repeat("ab", 32)}.csrfKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

var tokenRE = regexp.MustCompile(`name="csrfmiddlewaretoken" value="([^"]+)"`)

func TestServe(t *testing.T) {
	dir := newProject(t, map[string]string{
		"index.html": "home {{ request.path }}",
		"form.html":  `<form method="post">{% csrf_token %}</form>{{ request.method }} {{ request.GET.q }}{{ request.POST.msg }}`,
		"error.html": `{{ "a b"|wordwrap:0 }}`,
	})
	cfg, err := loadConfig(filepath.Join(dir, "djtl.yaml"), true)
	require.NoError(t, err)
	logger := slog.New(slog.DiscardHandler)
	env, err := cfg.environment(logger)
	require.NoError(t, err)

	a := &app{cfg: cfg, env: env, logger: logger}
	handler, err := a.previewHandler()
	require.NoError(t, err)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "home /", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get("/missing.html").Code)

	rec = get("/error.html")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `1 | {{ "a b"|wordwrap:0 }}`)

	rec = get("/form.html?q=search")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "GET search")
	match := tokenRE.FindStringSubmatch(rec.Body.String())
	require.Len(t, match, 2)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	post := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/form.html", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, post(url.Values{"msg": {"hi"}}).Code)

	rec = post(url.Values{"msg": {"hi"}, "csrfmiddlewaretoken": {match[1]}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "POST hi")
}
