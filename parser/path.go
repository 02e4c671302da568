package parser

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/deicod/godtl/lexer"
)

var (
	ErrRelativePathUnknownOrigin = errors.New("relative path with unknown template origin")
	ErrRelativePathOutside       = errors.New("relative path points outside the template hierarchy")
)

// ResolveRelativePath resolves a "./" or "../" template name against origin,
// the name of the template that refers to it. ok is false for names that are
// not relative.
func ResolveRelativePath(origin, name string) (string, bool, error) {
	adjacent := strings.HasPrefix(name, "./")
	if !adjacent && !strings.HasPrefix(name, "../") {
		return "", false, nil
	}
	if origin == "" {
		return "", false, ErrRelativePathUnknownOrigin
	}

	if origin == "/" {
		if !adjacent {
			return "", false, ErrRelativePathOutside
		}
		return path.Clean(name), true, nil
	}

	resolved := path.Join(path.Dir(origin), name)
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return "", false, ErrRelativePathOutside
	}
	return resolved, true, nil
}

// resolveRelative resolves name against the template being parsed
func (p *Parser) resolveRelative(name string, at lexer.Span) (string, bool, error) {
	resolved, ok, err := ResolveRelativePath(p.name, name)
	switch {
	case errors.Is(err, ErrRelativePathUnknownOrigin):
		return "", false, p.fail(RelativePathUnknownOrigin, at,
			fmt.Sprintf("The relative path '%s' cannot be evaluated due to an unknown template origin.", name),
			note(at, "here"))
	case errors.Is(err, ErrRelativePathOutside):
		return "", false, p.fail(RelativePathOutside, at,
			fmt.Sprintf("The relative path '%s' points outside the file hierarchy that template '%s' is in.", name, p.name),
			note(at, "relative path"))
	}
	return resolved, ok, nil
}
