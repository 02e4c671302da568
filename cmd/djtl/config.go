package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/deicod/godtl/runtime"
	"github.com/deicod/godtl/starlarkhost"
)

// config is the YAML configuration shared by every command
type config struct {
	TemplateDirs     []string          `yaml:"template_dirs"`
	Autoescape       *bool             `yaml:"autoescape,omitempty"`
	StrictDelimiters *bool             `yaml:"strict_delimiters,omitempty"`
	StringIfInvalid  string            `yaml:"string_if_invalid,omitempty"`
	Debug            bool              `yaml:"debug,omitempty"`
	Libraries        map[string]string `yaml:"libraries,omitempty"`
	Builtins         []string          `yaml:"builtins,omitempty"`
	Language         string            `yaml:"language,omitempty"`
	Translations     map[string]string `yaml:"translations,omitempty"`
	URLs             map[string]string `yaml:"urls,omitempty"`
	Context          map[string]any    `yaml:"context,omitempty"`
	Serve            serveConfig       `yaml:"serve,omitempty"`
}

type serveConfig struct {
	Addr           string   `yaml:"addr,omitempty"`
	CSRFKey        string   `yaml:"csrf_key,omitempty"`
	Secure         bool     `yaml:"secure,omitempty"`
	TrustedOrigins []string `yaml:"trusted_origins,omitempty"`
	Index          string   `yaml:"index,omitempty"`
}

// loadConfig reads path. A missing file is only an error when required is
// set, so the default config name can be absent.
func loadConfig(path string, required bool) (*config, error) {
	cfg := &config{}
	f, err := os.Open(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("invalid config %s: %v", path, typeErr.Errors)
		}
		return nil, fmt.Errorf("decoding config file: %w", err)
	}

	// relative paths in the file are relative to the file
	base := filepath.Dir(path)
	for i, dir := range cfg.TemplateDirs {
		cfg.TemplateDirs[i] = resolvePath(base, dir)
	}
	for name, lib := range cfg.Libraries {
		cfg.Libraries[name] = resolvePath(base, lib)
	}
	for i, lib := range cfg.Builtins {
		cfg.Builtins[i] = resolvePath(base, lib)
	}
	return cfg, nil
}

func resolvePath(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// loadContext decodes a YAML mapping of template variables
func loadContext(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vars := make(map[string]any)
	if err := yaml.NewDecoder(f).Decode(&vars); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding context %s: %w", path, err)
	}
	return vars, nil
}

// environment builds the template environment described by cfg
func (cfg *config) environment(logger *slog.Logger) (*runtime.Environment, error) {
	env := runtime.NewEnvironment()
	env.SetLogger(logger)
	env.SetLoader(runtime.NewFileSystemLoader(cfg.TemplateDirs...))
	if cfg.Autoescape != nil {
		env.SetAutoescape(*cfg.Autoescape)
	}
	if cfg.StrictDelimiters != nil {
		env.SetStrictDelimiters(*cfg.StrictDelimiters)
	}
	env.SetStringIfInvalid(cfg.StringIfInvalid)

	for _, name := range slices.Sorted(maps.Keys(cfg.Libraries)) {
		lib, err := starlarkhost.LoadLibrary(cfg.Libraries[name], logger)
		if err != nil {
			return nil, err
		}
		env.AddLibrary(name, lib)
	}
	for _, path := range cfg.Builtins {
		lib, err := starlarkhost.LoadLibrary(path, logger)
		if err != nil {
			return nil, err
		}
		env.AddBuiltin(lib)
	}

	if cfg.Language != "" {
		lang, err := language.Parse(cfg.Language)
		if err != nil {
			return nil, fmt.Errorf("invalid language %q: %w", cfg.Language, err)
		}
		translator, err := runtime.NewCatalogTranslator(lang, cfg.Translations)
		if err != nil {
			return nil, err
		}
		env.SetTranslator(translator)
	}

	if len(cfg.URLs) > 0 {
		env.SetURLResolver(urlResolver(cfg.URLs))
	}
	for name, value := range cfg.Context {
		env.AddGlobal(name, value)
	}
	return env, nil
}

var placeholderRE = regexp.MustCompile(`\{(\w+)\}`)

// urlResolver reverses view names through patterns such as
// "/articles/{0}/" or "/users/{name}/". Positional arguments fill numbered
// placeholders and keyword arguments named ones.
func urlResolver(patterns map[string]string) runtime.URLResolver {
	return func(view string, args []runtime.Value, kwargs map[string]runtime.Value) (string, error) {
		pattern, ok := patterns[view]
		if !ok {
			return "", fmt.Errorf("%w: '%s' is not a valid view name", runtime.ErrNoReverseMatch, view)
		}

		var missing error
		url := placeholderRE.ReplaceAllStringFunc(pattern, func(placeholder string) string {
			key := placeholder[1 : len(placeholder)-1]
			if i, err := strconv.Atoi(key); err == nil {
				if i < len(args) {
					return args[i].String()
				}
			} else if value, ok := kwargs[key]; ok {
				return value.String()
			}
			missing = fmt.Errorf("%w: '%s' needs argument %s", runtime.ErrNoReverseMatch, view, key)
			return placeholder
		})
		return url, missing
	}
}

// csrfKey decodes the configured hex key. It returns nil when no key is
// configured.
func (c serveConfig) csrfKey() ([]byte, error) {
	if c.CSRFKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.CSRFKey)
	if err != nil {
		return nil, fmt.Errorf("invalid csrf_key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid csrf_key: want 32 bytes, got %d", len(key))
	}
	return key, nil
}
