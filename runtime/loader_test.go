package runtime

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileSystemLoaderSearchPathFallback(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()

	expected := "hello from {{ where }}"
	if err := os.WriteFile(filepath.Join(dir2, "greeting.html"), []byte(expected), 0o644); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}

	loader := NewFileSystemLoader(dir1)
	loader.AddSearchPath(dir2)

	content, err := loader.Load("greeting.html")
	if err != nil {
		t.Fatalf("expected to load template, got error: %v", err)
	}
	if content != expected {
		t.Fatalf("expected content %q, got %q", expected, content)
	}

	paths := loader.SearchPath()
	if len(paths) != 2 || paths[0] != dir1 || paths[1] != dir2 {
		t.Fatalf("unexpected search path order: %v", paths)
	}

	paths[0] = "mutated"
	if loader.SearchPath()[0] != dir1 {
		t.Fatal("SearchPath should return a copy")
	}
}

func TestFileSystemLoaderTemplateNotFoundTracksAllPaths(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()

	loader := NewFileSystemLoader(dir1, dir2)

	_, err := loader.Load("missing.html")
	if err == nil {
		t.Fatal("expected error for missing template")
	}

	var notFound *TemplateNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected TemplateNotFoundError, got %T", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected the error to wrap os.ErrNotExist, got %v", err)
	}

	expectedTried := []string{
		filepath.Join(dir1, "missing.html"),
		filepath.Join(dir2, "missing.html"),
	}
	if len(notFound.Tried) != len(expectedTried) {
		t.Fatalf("expected tried paths %v, got %v", expectedTried, notFound.Tried)
	}
	for i, path := range expectedTried {
		if notFound.Tried[i] != path {
			t.Fatalf("expected tried path %q at index %d, got %q", path, i, notFound.Tried[i])
		}
	}
}

func TestFileSystemLoaderSetSearchPath(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()

	loader := NewFileSystemLoader()
	if paths := loader.SearchPath(); len(paths) != 1 || paths[0] != "." {
		t.Fatalf("expected the current directory by default, got %v", paths)
	}

	loader.SetSearchPath(dir1, dir2)
	paths := loader.SearchPath()
	if len(paths) != 2 || paths[0] != dir1 || paths[1] != dir2 {
		t.Fatalf("unexpected search paths after SetSearchPath: %v", paths)
	}

	loader.SetSearchPath("", dir2)
	paths = loader.SearchPath()
	if len(paths) != 1 || paths[0] != dir2 {
		t.Fatalf("expected empty paths to be ignored, got %v", paths)
	}
}

func TestFileSystemLoaderNestedNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "partials"), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "partials", "nav.html"), []byte("<nav>"), 0o644); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}

	content, err := NewFileSystemLoader(dir).Load("partials/nav.html")
	if err != nil {
		t.Fatalf("failed to load nested template: %v", err)
	}
	if content != "<nav>" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestMapLoader(t *testing.T) {
	source := map[string]string{"a.html": "A"}
	loader := NewMapLoader(source)
	source["a.html"] = "changed"

	content, err := loader.Load("a.html")
	if err != nil || content != "A" {
		t.Fatalf("expected the loader to copy its map, got %q, %v", content, err)
	}

	if _, err := loader.Load("b.html"); !IsTemplateNotFound(err) {
		t.Fatalf("expected TemplateNotFoundError, got %v", err)
	}

	loader.Set("b.html", "B")
	if content, err := loader.Load("b.html"); err != nil || content != "B" {
		t.Fatalf("expected Set to add a template, got %q, %v", content, err)
	}
}

func TestEnvironmentReloadsChangedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	if err := os.WriteFile(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}

	env := NewEnvironment()
	env.SetLoader(NewFileSystemLoader(dir))

	first, err := env.LoadTemplate("page.html")
	if err != nil {
		t.Fatalf("failed to load template: %v", err)
	}
	again, err := env.LoadTemplate("page.html")
	if err != nil {
		t.Fatalf("failed to load template: %v", err)
	}
	if first != again {
		t.Fatal("expected the second load to come from the cache")
	}

	if err := os.WriteFile(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("failed to rewrite template: %v", err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("failed to touch template: %v", err)
	}

	reloaded, err := env.LoadTemplate("page.html")
	if err != nil {
		t.Fatalf("failed to reload template: %v", err)
	}
	output, err := reloaded.ExecuteToString(nil)
	if err != nil {
		t.Fatalf("failed to render template: %v", err)
	}
	if output != "second" {
		t.Fatalf("expected the changed file to be recompiled, got %q", output)
	}
}
