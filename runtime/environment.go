package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/deicod/godtl/lexer"
	"github.com/deicod/godtl/parser"
)

// FilterFunc implements a filter registered by a library. args holds the
// resolved filter argument when the template supplies one.
type FilterFunc func(ctx *Context, value Value, args ...Value) (Value, error)

// SimpleTagFunc implements a simple tag. Block tags receive their rendered
// body as args[0].
type SimpleTagFunc func(ctx *Context, args []Value, kwargs map[string]Value) (Value, error)

// URLResolver reverses a view name into a URL for the url tag. Return an error
// wrapping ErrNoReverseMatch when no route matches.
type URLResolver func(view string, args []Value, kwargs map[string]Value) (string, error)

// ErrNoReverseMatch reports that a URLResolver found no route. The url tag
// swallows it when the result is stored with "as".
var ErrNoReverseMatch = errors.New("no reverse match")

// Loader represents a template loader interface
type Loader interface {
	Load(name string) (string, error)
}

// FileSystemLoader loads templates from the file system
type FileSystemLoader struct {
	basePaths []string
	mu        sync.RWMutex
}

// NewFileSystemLoader creates a new file system loader. The base paths are
// searched in order; with no paths the current directory is used.
func NewFileSystemLoader(basePaths ...string) *FileSystemLoader {
	paths := filteredSearchPaths(basePaths)
	if len(paths) == 0 {
		paths = append(paths, ".")
	}

	return &FileSystemLoader{
		basePaths: paths,
	}
}

// Load loads a template from the file system
func (l *FileSystemLoader) Load(name string) (string, error) {
	basePaths := l.SearchPath()

	var tried []string
	for _, basePath := range basePaths {
		fullPath := filepath.Join(basePath, filepath.FromSlash(name))
		tried = append(tried, fullPath)

		data, err := os.ReadFile(fullPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", err
		}
		return string(data), nil
	}

	return "", NewTemplateNotFound(name, tried, os.ErrNotExist)
}

// TemplateModTime returns the modification time for the requested template.
func (l *FileSystemLoader) TemplateModTime(name string) (time.Time, error) {
	if name == "" {
		return time.Time{}, errors.New("template name cannot be empty")
	}

	var lastErr error
	for _, base := range l.SearchPath() {
		info, err := os.Stat(filepath.Join(base, filepath.FromSlash(name)))
		if err == nil {
			return info.ModTime(), nil
		}
		if errors.Is(err, os.ErrNotExist) {
			lastErr = err
			continue
		}
		return time.Time{}, err
	}

	if lastErr != nil {
		return time.Time{}, lastErr
	}
	return time.Time{}, os.ErrNotExist
}

// SetSearchPath replaces the loader's search path list
func (l *FileSystemLoader) SetSearchPath(paths ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	filtered := filteredSearchPaths(paths)
	if len(filtered) == 0 {
		filtered = []string{"."}
	}
	l.basePaths = filtered
}

// AddSearchPath appends a search path. Empty paths are ignored.
func (l *FileSystemLoader) AddSearchPath(path string) {
	if path == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.basePaths = append(l.basePaths, path)
}

// SearchPath returns a copy of the configured search paths.
func (l *FileSystemLoader) SearchPath() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.basePaths...)
}

func filteredSearchPaths(paths []string) []string {
	filtered := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

// MapLoader loads templates from a map
type MapLoader struct {
	templates map[string]string
	mu        sync.RWMutex
}

// NewMapLoader creates a new map loader
func NewMapLoader(templates map[string]string) *MapLoader {
	return &MapLoader{
		templates: maps.Clone(templates),
	}
}

// Load loads a template from the map
func (l *MapLoader) Load(name string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	template, ok := l.templates[name]
	if !ok {
		return "", NewTemplateNotFound(name, []string{name}, nil)
	}
	return template, nil
}

// Set adds or replaces a template
func (l *MapLoader) Set(name, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.templates == nil {
		l.templates = make(map[string]string)
	}
	l.templates[name] = source
}

// Library is a named set of filters and simple tags made available to
// templates by a load tag, or to every template when added as a builtin.
type Library struct {
	Filters map[string]FilterFunc
	Tags    map[string]*parser.TagSignature
}

// NewLibrary creates an empty library
func NewLibrary() *Library {
	return &Library{
		Filters: make(map[string]FilterFunc),
		Tags:    make(map[string]*parser.TagSignature),
	}
}

// AddFilter registers a filter
func (l *Library) AddFilter(name string, filter FilterFunc) *Library {
	l.Filters[name] = filter
	return l
}

// AddTag registers a simple tag. signature describes the parameters the
// parser validates; its Func is replaced by fn. A non-empty EndTag makes it a
// block tag whose first parameter is "content".
func (l *Library) AddTag(signature parser.TagSignature, fn SimpleTagFunc) *Library {
	signature.Func = fn
	l.Tags[signature.Name] = &signature
	return l
}

func (l *Library) parserLibrary() *parser.Library {
	filters := make(map[string]any, len(l.Filters))
	for name, filter := range l.Filters {
		filters[name] = filter
	}
	return &parser.Library{Filters: filters, Tags: maps.Clone(l.Tags)}
}

// Environment holds the configuration shared by every template it loads:
// loaders, libraries, globals and the collaborators for url, i18n and time.
// Configure it before rendering; the setters are safe for concurrent use.
type Environment struct {
	loader          Loader
	autoescape      bool
	lexerConfig     lexer.LexerConfig
	stringIfInvalid string
	logger          *slog.Logger

	libraries map[string]*Library
	builtins  []*Library
	filters   map[string]FilterFunc
	globals   map[string]any

	urlResolver URLResolver
	translator  Translator
	clock       func() time.Time

	cache *TemplateCache
	loads singleflight.Group
	mu    sync.RWMutex
}

// NewEnvironment creates an environment with autoescaping on and Django's
// delimiters.
func NewEnvironment() *Environment {
	return &Environment{
		autoescape:  true,
		lexerConfig: lexer.DefaultLexerConfig(),
		logger:      slog.Default(),
		libraries:   make(map[string]*Library),
		filters:     make(map[string]FilterFunc),
		globals:     make(map[string]any),
		clock:       time.Now,
		cache:       NewTemplateCache(0, 400),
	}
}

// SetLoader sets the template loader
func (env *Environment) SetLoader(loader Loader) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.loader = loader
}

// Loader returns the configured loader, or nil
func (env *Environment) Loader() Loader {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return env.loader
}

// SetAutoescape sets whether output is HTML escaped by default
func (env *Environment) SetAutoescape(autoescape bool) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.autoescape = autoescape
}

// Autoescape reports whether output is HTML escaped by default
func (env *Environment) Autoescape() bool {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return env.autoescape
}

// SetLogger sets the logger for loads, cache activity and swallowed
// condition errors. A nil logger restores slog.Default().
func (env *Environment) SetLogger(logger *slog.Logger) {
	env.mu.Lock()
	defer env.mu.Unlock()
	if logger == nil {
		logger = slog.Default()
	}
	env.logger = logger
}

// Logger returns the environment's logger
func (env *Environment) Logger() *slog.Logger {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return env.logger
}

// SetStringIfInvalid sets the text output for a variable that cannot be resolved
func (env *Environment) SetStringIfInvalid(s string) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.stringIfInvalid = s
}

// StringIfInvalid returns the text output for unresolvable variables
func (env *Environment) StringIfInvalid() string {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return env.stringIfInvalid
}

// SetLexerConfig sets the delimiters and strictness used for new templates
func (env *Environment) SetLexerConfig(config lexer.LexerConfig) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.lexerConfig = config
}

// SetStrictDelimiters controls whether an unclosed opening delimiter is an
// error or literal text.
func (env *Environment) SetStrictDelimiters(strict bool) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.lexerConfig.StrictDelimiters = strict
}

// LexerConfig returns the lexer configuration for new templates
func (env *Environment) LexerConfig() lexer.LexerConfig {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return env.lexerConfig
}

// SetURLResolver sets the callback used by the url tag
func (env *Environment) SetURLResolver(resolver URLResolver) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.urlResolver = resolver
}

func (env *Environment) getURLResolver() URLResolver {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return env.urlResolver
}

// SetTranslator sets the translator for _("...") strings
func (env *Environment) SetTranslator(translator Translator) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.translator = translator
}

func (env *Environment) translate(msgid string) string {
	env.mu.RLock()
	translator := env.translator
	env.mu.RUnlock()
	if translator == nil {
		return msgid
	}
	return translator.Translate(msgid)
}

// SetClock replaces the time source of the now tag
func (env *Environment) SetClock(clock func() time.Time) {
	env.mu.Lock()
	defer env.mu.Unlock()
	if clock == nil {
		clock = time.Now
	}
	env.clock = clock
}

func (env *Environment) now() time.Time {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return env.clock()
}

// AddFilter registers a filter available to every template without a load tag
func (env *Environment) AddFilter(name string, filter FilterFunc) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.filters[name] = filter
}

// AddLibrary makes lib loadable as {% load name %}
func (env *Environment) AddLibrary(name string, lib *Library) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.libraries[name] = lib
}

// AddBuiltin makes lib available to every template without a load tag
func (env *Environment) AddBuiltin(lib *Library) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.builtins = append(env.builtins, lib)
}

// LibraryNames returns the names accepted by the load tag
func (env *Environment) LibraryNames() []string {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return slices.Sorted(maps.Keys(env.libraries))
}

// AddGlobal adds a variable visible to every render
func (env *Environment) AddGlobal(name string, value any) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.globals[name] = value
}

// Globals returns a copy of the global variables
func (env *Environment) Globals() map[string]any {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return maps.Clone(env.globals)
}

// parserEnvironment builds what the parser needs to resolve load tags,
// filters and simple tags.
func (env *Environment) parserEnvironment() *parser.Environment {
	env.mu.RLock()
	defer env.mu.RUnlock()

	parserEnv := &parser.Environment{
		Lexer:     env.lexerConfig,
		Libraries: make(map[string]*parser.Library, len(env.libraries)),
	}
	for name, lib := range env.libraries {
		parserEnv.Libraries[name] = lib.parserLibrary()
	}
	for _, lib := range env.builtins {
		parserEnv.Builtins = append(parserEnv.Builtins, lib.parserLibrary())
	}
	if len(env.filters) > 0 {
		implicit := &Library{Filters: env.filters}
		parserEnv.Builtins = append(parserEnv.Builtins, implicit.parserLibrary())
	}
	return parserEnv
}

// NewTemplate compiles a template that is not backed by the loader
func (env *Environment) NewTemplate(source string) (*Template, error) {
	return env.NewTemplateWithName(source, "")
}

// NewTemplateWithName compiles a template. name anchors relative include and
// extends paths and appears in error messages.
func (env *Environment) NewTemplateWithName(source, name string) (*Template, error) {
	ast, err := parser.ParseTemplateWithEnv(env.parserEnvironment(), source, name)
	if err != nil {
		return nil, err
	}
	return newTemplate(env, ast, lexer.NewSource(source), name), nil
}

// LoadTemplate loads, compiles and caches a template by name. Concurrent
// loads of the same name share one compilation.
func (env *Environment) LoadTemplate(name string) (*Template, error) {
	loader := env.Loader()
	logger := env.Logger()

	if tmpl, ok := env.cache.Get(name, loader); ok {
		logger.Debug("template cache hit", "template", name)
		return tmpl, nil
	}
	logger.Debug("template cache miss", "template", name)

	result, err, _ := env.loads.Do(name, func() (any, error) {
		return env.compile(loader, name)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Template), nil
}

func (env *Environment) compile(loader Loader, name string) (*Template, error) {
	if loader == nil {
		return nil, NewTemplateNotFound(name, nil, errors.New("no loader configured"))
	}

	source, err := loader.Load(name)
	if err != nil {
		return nil, err
	}

	tmpl, err := env.NewTemplateWithName(source, name)
	if err != nil {
		return nil, err
	}

	dependencies := make(map[string]time.Time)
	if modTime, err := getModTime(loader, name); err == nil && !modTime.IsZero() {
		dependencies[name] = modTime
	}
	env.cache.Set(name, tmpl, dependencies)
	env.Logger().Debug("template loaded", "template", name, "bytes", len(source))

	return tmpl, nil
}

// SelectTemplate loads the first of names that exists
func (env *Environment) SelectTemplate(names []string) (*Template, error) {
	if len(names) == 0 {
		return nil, NewTemplateNotFound("", nil, errors.New("no template names provided"))
	}
	var tried []string
	for _, name := range names {
		tmpl, err := env.LoadTemplate(name)
		if err == nil {
			return tmpl, nil
		}
		if !IsTemplateNotFound(err) {
			return nil, err
		}
		tried = append(tried, name)
	}
	return nil, NewTemplateNotFound(strings.Join(names, ", "), tried, nil)
}

// ExecuteToString renders tmpl with vars
func (env *Environment) ExecuteToString(tmpl *Template, vars map[string]any) (string, error) {
	if tmpl == nil {
		return "", NewError(ErrorTypeTemplate, "template cannot be nil", nil)
	}
	if tmpl.environment != env {
		return "", NewError(ErrorTypeTemplate, fmt.Sprintf("template %q belongs to another environment", tmpl.name), nil)
	}
	return tmpl.ExecuteToString(vars)
}

// SetCacheTTL sets the cache time-to-live
func (env *Environment) SetCacheTTL(ttl time.Duration) {
	env.cache.SetTTL(ttl)
}

// ClearCache clears the template cache
func (env *Environment) ClearCache() {
	env.cache.Clear()
}

// CacheStats returns the template cache counters
func (env *Environment) CacheStats() CacheStats {
	return env.cache.Stats()
}

// InvalidateTemplate drops name and everything compiled from it
func (env *Environment) InvalidateTemplate(name string) {
	env.cache.Invalidate(name)
}

// CacheSize returns the current cache size
func (env *Environment) CacheSize() int {
	return env.cache.Size()
}
