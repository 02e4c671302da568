package parser

import "slices"

// TagSignature describes a registered tag function the way the parser needs to
// validate a call to it. Params lists the positional parameters including the
// leading context and content parameters, which the parser checks and strips.
type TagSignature struct {
	Name           string
	Func           any
	Params         []string
	DefaultsCount  int
	Varargs        bool
	Kwonly         []string
	KwonlyDefaults []string
	Varkw          bool
	TakesContext   bool
	// EndTag is set for block tags; the body runs until this tag.
	EndTag string
}

// Library is a named set of filters and tags that a load tag makes available.
// Filter values are opaque to the parser and end up in nodes.Filter.External.
type Library struct {
	Filters map[string]any
	Tags    map[string]*TagSignature
}

type tagKind int

const (
	simpleTag tagKind = iota
	simpleBlockTag
	endSimpleBlockTag
)

// loadedTag is a tag made available by a load tag, with the context and
// content parameters removed from its signature.
type loadedTag struct {
	kind      tagKind
	signature *TagSignature
	params    []string
	endTag    string
}

func (t *loadedTag) hasParam(name string) bool {
	return slices.Contains(t.params, name)
}

func (t *loadedTag) hasKwonly(name string) bool {
	return slices.Contains(t.signature.Kwonly, name)
}

func (t *loadedTag) hasKwonlyDefault(name string) bool {
	return slices.Contains(t.signature.KwonlyDefaults, name)
}
