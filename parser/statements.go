package parser

import (
	"errors"
	"fmt"
	"maps"
	"math/big"
	"slices"
	"strings"

	"github.com/deicod/godtl/lexer"
	"github.com/deicod/godtl/nodes"
)

// parseTag parses a {% %} segment. Tags that close or split an enclosing
// block are returned as an endTag for parseUntil to match.
func (p *Parser) parseTag(segment lexer.Segment, depth int) (nodes.Node, *endTag, error) {
	tag, err := lexer.LexTag(p.source, segment)
	if err != nil {
		return nil, nil, p.wrap(err)
	}
	name := p.source.Content(tag.Name)

	var node nodes.Node
	switch name {
	case "autoescape":
		node, err = p.parseAutoescape(tag, depth)
	case "block":
		node, err = p.parseBlock(tag, depth)
	case "comment":
		node, err = p.parseComment(tag)
	case "csrf_token":
		node = &nodes.CsrfToken{BaseNode: nodes.BaseNode{At: tag.At}}
	case "cycle":
		node, err = p.parseCycle(tag, depth)
	case "extends":
		node, err = p.parseExtends(tag, depth)
	case "for":
		node, err = p.parseFor(tag, depth)
	case "if":
		var ifNode *nodes.If
		if ifNode, err = p.parseIf(tag.At, tag.Parts, "if", depth); err == nil {
			node = ifNode
		}
	case "include":
		node, err = p.parseInclude(tag, depth)
	case "load":
		node, err = p.parseLoad(tag)
	case "lorem":
		node, err = p.parseLorem(tag, depth)
	case "now":
		node, err = p.parseNow(tag)
	case "templatetag":
		node, err = p.parseTemplateTag(tag)
	case "url":
		node, err = p.parseUrl(tag, depth)
	case "verbatim":
		node, err = p.parseVerbatim(tag)
	default:
		if endTags[name] {
			return nil, &endTag{name: name, at: tag.At, parts: tag.Parts}, nil
		}
		loaded, ok := p.tags[name]
		if !ok {
			return nil, nil, p.failUnknownTag(name, tag.Name)
		}
		switch loaded.kind {
		case simpleTag:
			node, err = p.parseSimpleTag(tag, name, loaded, depth)
		case simpleBlockTag:
			node, err = p.parseSimpleBlockTag(tag, name, loaded, depth)
		default:
			return nil, &endTag{name: name, at: tag.At, parts: tag.Parts}, nil
		}
	}
	if err != nil {
		return nil, nil, err
	}
	return node, nil, nil
}

func (p *Parser) parseAutoescape(tag lexer.Tag, depth int) (nodes.Node, error) {
	enabled, err := lexer.LexAutoescape(p.source, tag.At, tag.Parts)
	if err != nil {
		return nil, p.wrap(err)
	}
	body, _, err := p.parseUntil([]string{"endautoescape"}, "autoescape", tag.At, depth)
	if err != nil {
		return nil, err
	}
	return &nodes.Autoescape{BaseNode: nodes.BaseNode{At: tag.At}, Enabled: enabled, Body: body}, nil
}

// parseIf parses an if or elif tag together with its branches. An elif chain
// nests as the falsey branch of the previous condition.
func (p *Parser) parseIf(at, parts lexer.Span, start string, depth int) (*nodes.If, error) {
	condition, err := p.parseCondition(at, parts, depth)
	if err != nil {
		return nil, err
	}
	truthy, end, err := p.parseUntil([]string{"elif", "else", "endif"}, start, at, depth)
	if err != nil {
		return nil, err
	}

	node := &nodes.If{BaseNode: nodes.BaseNode{At: at}, Condition: condition, Truthy: truthy}
	switch end.name {
	case "elif":
		nested, err := p.parseIf(end.at, end.parts, "elif", depth)
		if err != nil {
			return nil, err
		}
		node.Falsey = []nodes.Node{nested}
	case "else":
		falsey, _, err := p.parseUntil([]string{"endif"}, "else", end.at, depth)
		if err != nil {
			return nil, err
		}
		node.Falsey = falsey
	}
	return node, nil
}

func (p *Parser) parseFor(tag lexer.Tag, depth int) (nodes.Node, error) {
	tokens := lexer.NewForLexer(p.source, tag.Parts)
	var namesAt []lexer.Span
	for {
		at, ok, err := tokens.VariableName()
		if err != nil {
			return nil, p.wrap(err)
		}
		if !ok {
			break
		}
		namesAt = append(namesAt, at)
	}
	if len(namesAt) == 0 {
		return nil, p.fail(MissingVariableNames, tag.At, "Expected at least one variable name in for loop:",
			note(tag.At, "in this tag"))
	}

	if _, err := tokens.In(); err != nil {
		last := namesAt[len(namesAt)-1]
		if p.source.Content(last) != "in" {
			return nil, p.wrap(err)
		}
		var forErr *lexer.ForError
		if errors.As(err, &forErr) && forErr.Kind == lexer.ForMissingComma && len(namesAt) >= 2 {
			previous := namesAt[len(namesAt)-2]
			return nil, p.fail(MissingVariable, previous, "Expected another variable when unpacking in for loop:",
				note(previous, "after this variable"))
		}
		return nil, p.fail(MissingVariableBeforeIn, last, "Expected a variable name before the 'in' keyword:",
			note(last, "before this keyword"))
	}

	atom, err := tokens.Expression()
	if err != nil {
		return nil, p.wrap(err)
	}
	reversed, err := tokens.Reversed()
	if err != nil {
		return nil, p.wrap(err)
	}

	var iterable nodes.TagElement
	switch atom.Kind {
	case lexer.AtomNumeric:
		return nil, p.fail(NotIterable, atom.At, fmt.Sprintf("%s is not iterable", p.source.Content(atom.At)))
	case lexer.AtomText:
		iterable = nodes.NewText(atom.ContentAt())
	case lexer.AtomTranslatedText:
		iterable = nodes.NewTranslatedText(atom.ContentAt())
	default:
		if iterable, err = p.parseVariable(atom.At, atom.At, depth+1); err != nil {
			return nil, err
		}
	}

	body, end, err := p.parseUntil([]string{"empty", "endfor"}, "for", tag.At, depth+1)
	if err != nil {
		return nil, err
	}
	node := &nodes.For{
		BaseNode: nodes.BaseNode{At: tag.At},
		Iterable: iterable,
		NamesAt:  namesAt,
		Reversed: reversed,
		Body:     body,
	}
	for _, at := range namesAt {
		node.Names = append(node.Names, p.source.Content(at))
	}
	if end.name == "empty" {
		if node.Empty, _, err = p.parseUntil([]string{"endfor"}, "empty", end.at, depth); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (p *Parser) parseInclude(tag lexer.Tag, depth int) (nodes.Node, error) {
	tokens := lexer.NewIncludeLexer(p.source, tag.Parts)
	atom, ok, err := tokens.TemplateName()
	if err != nil {
		return nil, p.wrap(err)
	}
	if !ok {
		return nil, p.fail(MissingArgument, tag.At, "Included template name must be a string or iterable of strings.")
	}

	node := &nodes.Include{BaseNode: nodes.BaseNode{At: tag.At}}
	if node.Template, node.Path, err = p.parseTemplateName(atom, depth); err != nil {
		return nil, err
	}

	var only, with *lexer.Span
	option, at, err := tokens.WithOrOnly()
	if err != nil {
		return nil, p.wrap(err)
	}
	switch option {
	case lexer.IncludeOnly:
		only = &at
		second, secondAt, err := tokens.WithOrOnly()
		if err != nil {
			return nil, p.wrap(err)
		}
		switch second {
		case lexer.IncludeOnly:
			return nil, p.failOnlyTwice(at, secondAt)
		case lexer.IncludeWith:
			with = &secondAt
		}
	case lexer.IncludeWith:
		with = &at
	}

	if with != nil {
		for {
			token, ok, err := tokens.Next()
			if err != nil {
				return nil, p.wrap(err)
			}
			if !ok {
				break
			}
			if token.Only {
				if only != nil {
					return nil, p.failOnlyTwice(*only, token.At)
				}
				only = &token.At
				continue
			}
			value, err := p.parseAtom(token.Atom, depth)
			if err != nil {
				return nil, err
			}
			node.Kwargs = append(node.Kwargs, nodes.Kwarg{Name: p.source.Content(token.At), At: token.At, Value: value})
		}
		if len(node.Kwargs) == 0 {
			return nil, p.fail(MissingKeywordArgument, *with, "Expected a keyword argument", note(*with, "after this"))
		}
	}
	node.Only = only != nil
	return node, nil
}

func (p *Parser) failOnlyTwice(first, second lexer.Span) error {
	err := p.fail(IncludeOnlyTwice, second, "The 'only' option was specified more than once.",
		note(first, "first here"), note(second, "second here"))
	err.Hint = "Remove the second 'only'"
	return err
}

// parseTemplateName parses the template argument of include or extends. A
// literal relative name is resolved against this template.
func (p *Parser) parseTemplateName(atom lexer.Atom, depth int) (nodes.TagElement, string, error) {
	switch atom.Kind {
	case lexer.AtomText, lexer.AtomTranslatedText:
		at := atom.ContentAt()
		name := p.source.Content(at)
		resolved, ok, err := p.resolveRelative(name, at)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			resolved = name
		}
		return nodes.NewText(at), resolved, nil
	}
	element, err := p.parseAtom(atom, depth)
	return element, "", err
}

func (p *Parser) parseExtends(tag lexer.Tag, depth int) (nodes.Node, error) {
	if p.extends != nil {
		return nil, p.fail(ExtendsTwice, tag.At, "'extends' cannot appear more than once in the same template",
			note(*p.extends, "first extends"), note(tag.At, "second extends"))
	}
	if p.nonText || len(p.endTagStack) > 0 {
		return nil, p.fail(ExtendsNotFirst, tag.At, "'extends' must be the first tag in the template",
			note(tag.At, "here"))
	}

	atoms, err := lexer.NewElementLexer(p.source, tag.Parts).All()
	if err != nil {
		return nil, p.wrap(err)
	}
	switch {
	case len(atoms) == 0:
		return nil, p.fail(MissingArgument, tag.At, "'extends' takes one argument")
	case len(atoms) > 1:
		extra := atoms[1].AllAt().To(atoms[len(atoms)-1].At)
		return nil, p.fail(ExtendsArguments, extra, "'extends' takes one argument", note(extra, "unexpected argument(s)"))
	}

	parent, resolved, err := p.parseTemplateName(atoms[0], depth)
	if err != nil {
		return nil, err
	}
	p.extends = &tag.At
	return &nodes.Extends{BaseNode: nodes.BaseNode{At: tag.At}, Parent: parent, Path: resolved}, nil
}

func (p *Parser) parseBlock(tag lexer.Tag, depth int) (nodes.Node, error) {
	nameAt, ok, err := lexer.LexBlockName(p.source, tag.Parts, "block")
	if err != nil {
		return nil, p.wrap(err)
	}
	if !ok {
		return nil, p.fail(MissingArgument, tag.At, "'block' tag takes only one argument")
	}
	name := p.source.Content(nameAt)
	if first, seen := p.blocks[name]; seen {
		return nil, p.fail(DuplicateBlock, nameAt,
			fmt.Sprintf("'block' tag with name '%s' appears more than once", name),
			note(first, "first"), note(nameAt, "second"))
	}
	p.blocks[name] = nameAt

	body, end, err := p.parseUntil([]string{"endblock"}, "block", tag.At, depth)
	if err != nil {
		return nil, err
	}
	endAt, named, err := lexer.LexBlockName(p.source, end.parts, "endblock")
	if err != nil {
		return nil, p.wrap(err)
	}
	if named && p.source.Content(endAt) != name {
		return nil, p.fail(WrongEndTag, endAt,
			fmt.Sprintf("Unexpected tag endblock %s, expected endblock %s", p.source.Content(endAt), name),
			note(endAt, "unexpected name"), note(nameAt, "start tag"))
	}
	return &nodes.Block{BaseNode: nodes.BaseNode{At: tag.At}, Name: name, Body: body}, nil
}

func (p *Parser) parseUrl(tag lexer.Tag, depth int) (nodes.Node, error) {
	tokens := lexer.NewKwargLexer(p.source, tag.Parts)
	viewAtom, ok, err := tokens.Next()
	if err != nil {
		return nil, p.wrap(err)
	}
	if !ok {
		return nil, p.fail(UrlTagNoArguments, tag.At, "'url' takes at least one argument, a URL pattern name")
	}
	view, err := p.parseAtom(viewAtom, depth)
	if err != nil {
		return nil, err
	}

	atoms, err := tokens.All()
	if err != nil {
		return nil, p.wrap(err)
	}
	atoms, variable, _, err := p.extractAsVariable(atoms)
	if err != nil {
		return nil, err
	}

	node := &nodes.Url{BaseNode: nodes.BaseNode{At: tag.At}, View: view, Variable: variable}
	for _, atom := range atoms {
		value, err := p.parseAtom(atom, depth)
		if err != nil {
			return nil, err
		}
		if atom.Kwarg == nil {
			node.Args = append(node.Args, value)
			continue
		}
		node.Kwargs = append(node.Kwargs, nodes.Kwarg{Name: p.source.Content(*atom.Kwarg), At: *atom.Kwarg, Value: value})
	}
	if len(node.Args) > 0 && len(node.Kwargs) > 0 {
		return nil, p.fail(MixedArgsKwargs, tag.At, "Cannot mix arguments and keyword arguments")
	}
	return node, nil
}

func (p *Parser) parseLorem(tag lexer.Tag, depth int) (nodes.Node, error) {
	tokens, err := lexer.NewLoremLexer(p.source, tag.Parts).All()
	if err != nil {
		return nil, p.wrap(err)
	}
	node := &nodes.Lorem{
		BaseNode: nodes.BaseNode{At: tag.At},
		Count:    nodes.NewInt(lexer.NewSpan(tag.Parts.Offset, 0), big.NewInt(1)),
		Method:   lexer.LoremBlocks,
		Common:   true,
	}
	for _, token := range tokens {
		switch token.Kind {
		case lexer.LoremCount:
			if node.Count, err = p.parseVariable(token.At, token.At, depth); err != nil {
				return nil, err
			}
		case lexer.LoremMethodToken:
			node.Method = token.Method
		case lexer.LoremRandom:
			node.Common = false
		}
	}
	return node, nil
}

// parseComment skips everything up to the matching endcomment tag.
func (p *Parser) parseComment(tag lexer.Tag) (nodes.Node, error) {
	end, ok := p.scanner.SkipToTag(func(content string) bool {
		fields := strings.Fields(content)
		return len(fields) > 0 && fields[0] == "endcomment"
	})
	if !ok {
		return nil, p.fail(MissingEndTag, tag.At, "Unclosed 'comment' tag. Looking for one of: endcomment",
			note(tag.At, "started here"))
	}
	return &nodes.Comment{BaseNode: nodes.BaseNode{At: tag.At.To(end.At)}}, nil
}

// parseVerbatim keeps the raw text up to endverbatim, or `endverbatim name`
// when the tag is named.
func (p *Parser) parseVerbatim(tag lexer.Tag) (nodes.Node, error) {
	expected := "endverbatim"
	if name := strings.Join(strings.Fields(p.source.Content(tag.Parts)), " "); name != "" {
		expected += " " + name
	}
	end, ok := p.scanner.SkipToTag(func(content string) bool {
		return strings.Join(strings.Fields(content), " ") == expected
	})
	if !ok {
		return nil, p.fail(MissingEndTag, tag.At, fmt.Sprintf("Unclosed 'verbatim' tag. Looking for one of: %s", expected),
			note(tag.At, "started here"))
	}
	return &nodes.Verbatim{
		BaseNode: nodes.BaseNode{At: tag.At.To(end.At)},
		Content:  lexer.NewSpan(tag.At.End(), end.At.Offset-tag.At.End()),
	}, nil
}

func (p *Parser) parseNow(tag lexer.Tag) (nodes.Node, error) {
	tokens := lexer.NewNowLexer(p.source, tag.Parts)
	formatAt, err := tokens.Format()
	if err != nil {
		return nil, p.wrap(err)
	}
	variableAt, named, err := tokens.Variable()
	if err != nil {
		return nil, p.wrap(err)
	}
	if err := tokens.End(); err != nil {
		return nil, p.wrap(err)
	}

	node := &nodes.Now{BaseNode: nodes.BaseNode{At: tag.At}}
	if format := p.source.Content(formatAt); len(format) >= 2 {
		node.Format = format[1 : len(format)-1]
	}
	if named {
		node.Variable = p.source.Content(variableAt)
	}
	return node, nil
}

func (p *Parser) parseTemplateTag(tag lexer.Tag) (nodes.Node, error) {
	output, err := lexer.LexTemplateTag(p.source, tag.Parts)
	if err != nil {
		return nil, p.wrap(err)
	}
	return &nodes.TemplateTag{BaseNode: nodes.BaseNode{At: tag.At}, Output: output}, nil
}

func (p *Parser) parseCycle(tag lexer.Tag, depth int) (nodes.Node, error) {
	token, err := lexer.LexCycle(p.source, tag.Parts)
	if err != nil {
		return nil, p.wrap(err)
	}
	node := &nodes.Cycle{BaseNode: nodes.BaseNode{At: tag.At}, Silent: token.Silent}
	if token.Name != nil {
		node.Name = p.source.Content(*token.Name)
	}

	if len(token.Values) == 0 {
		if !p.cycles[node.Name] {
			return nil, p.wrap(&lexer.CycleError{Kind: lexer.CycleUnknownNamed, At: *token.Name, Name: node.Name})
		}
		node.Reference = true
		return node, nil
	}

	for _, atom := range token.Values {
		value, err := p.parseAtom(atom, depth)
		if err != nil {
			return nil, err
		}
		node.Values = append(node.Values, value)
	}
	if node.Name != "" {
		p.cycles[node.Name] = true
	}
	return node, nil
}

// parseLoad makes the filters and tags of libraries available to the rest of
// the template, either whole libraries or `name ... from library`.
func (p *Parser) parseLoad(tag lexer.Tag) (nodes.Node, error) {
	spans := lexer.LexLoad(p.source, tag.Parts)
	node := &nodes.Load{BaseNode: nodes.BaseNode{At: tag.At}}

	n := len(spans)
	if n >= 2 && p.source.Content(spans[n-2]) == "from" {
		libraryAt := spans[n-1]
		library, err := p.library(libraryAt)
		if err != nil {
			return nil, err
		}
		node.Library = p.source.Content(libraryAt)
		for _, at := range spans[:n-2] {
			name := p.source.Content(at)
			if filter, ok := library.Filters[name]; ok {
				p.filters[name] = filter
			} else if signature, ok := library.Tags[name]; ok {
				if err := p.loadTag(at, name, signature); err != nil {
					return nil, err
				}
			} else {
				return nil, p.fail(MissingFilterTag, at,
					fmt.Sprintf("'%s' is not a valid tag or filter in tag library '%s'", name, node.Library),
					note(at, "tag or filter"), note(libraryAt, "library"))
			}
			node.Names = append(node.Names, name)
		}
		return node, nil
	}

	for _, at := range spans {
		library, err := p.library(at)
		if err != nil {
			return nil, err
		}
		if err := p.loadLibrary(tag.At, library); err != nil {
			return nil, err
		}
		node.Names = append(node.Names, p.source.Content(at))
	}
	return node, nil
}

// library looks up the registered library named at.
func (p *Parser) library(at lexer.Span) (*Library, error) {
	name := p.source.Content(at)
	library, ok := p.environment.Libraries[name]
	if !ok {
		err := p.fail(MissingTagLibrary, at, fmt.Sprintf("'%s' is not a registered tag library.", name),
			note(at, "tag library"))
		err.Hint = "Must be one of:\n" + strings.Join(slices.Sorted(maps.Keys(p.environment.Libraries)), "\n")
		return nil, err
	}
	return library, nil
}

func (p *Parser) loadLibrary(at lexer.Span, library *Library) error {
	for name, filter := range library.Filters {
		p.filters[name] = filter
	}
	for _, name := range slices.Sorted(maps.Keys(library.Tags)) {
		if err := p.loadTag(at, name, library.Tags[name]); err != nil {
			return err
		}
	}
	return nil
}

// loadTag checks the leading context and content parameters of a tag function
// and registers the tag, plus its end tag for block tags.
func (p *Parser) loadTag(at lexer.Span, name string, signature *TagSignature) error {
	function := signature.Name
	if function == "" {
		function = name
	}
	params := signature.Params
	param := func(i int) string {
		if i < len(params) {
			return params[i]
		}
		return ""
	}

	if signature.EndTag == "" {
		if signature.TakesContext {
			if param(0) != "context" {
				return p.fail(RequiresContext, at,
					fmt.Sprintf("'%s' is decorated with takes_context=True so it must have a first argument of 'context'", function),
					note(at, "loaded here"))
			}
			params = params[1:]
		}
		p.tags[name] = &loadedTag{kind: simpleTag, signature: signature, params: params}
		return nil
	}

	if signature.TakesContext {
		if param(0) != "context" || param(1) != "content" {
			return p.fail(RequiresContextAndContent, at,
				fmt.Sprintf("'%s' is decorated with takes_context=True so it must have a first argument of 'context' and a second argument of 'content'", function),
				note(at, "loaded here"))
		}
		params = params[2:]
	} else {
		if param(0) != "content" {
			return p.fail(RequiresContent, at,
				fmt.Sprintf("'%s' must have a first argument of 'content'", function),
				note(at, "loaded here"))
		}
		params = params[1:]
	}
	p.tags[name] = &loadedTag{kind: simpleBlockTag, signature: signature, params: params, endTag: signature.EndTag}
	p.tags[signature.EndTag] = &loadedTag{kind: endSimpleBlockTag, signature: signature}
	return nil
}

func (p *Parser) parseSimpleTag(tag lexer.Tag, name string, loaded *loadedTag, depth int) (nodes.Node, error) {
	args, kwargs, target, err := p.parseTagArguments(tag, name, loaded, depth)
	if err != nil {
		return nil, err
	}
	return &nodes.SimpleTag{
		BaseNode:     nodes.BaseNode{At: tag.At},
		Name:         name,
		Func:         loaded.signature.Func,
		TakesContext: loaded.signature.TakesContext,
		Args:         args,
		Kwargs:       kwargs,
		TargetVar:    target,
	}, nil
}

func (p *Parser) parseSimpleBlockTag(tag lexer.Tag, name string, loaded *loadedTag, depth int) (nodes.Node, error) {
	simple, err := p.parseSimpleTag(tag, name, loaded, depth)
	if err != nil {
		return nil, err
	}
	body, _, err := p.parseUntil([]string{loaded.endTag}, name, tag.At, depth)
	if err != nil {
		return nil, err
	}
	return &nodes.SimpleBlockTag{SimpleTag: *simple.(*nodes.SimpleTag), Body: body}, nil
}

// parseTagArguments binds the arguments of a custom tag call against the tag
// function's signature.
func (p *Parser) parseTagArguments(tag lexer.Tag, name string, loaded *loadedTag, depth int) ([]nodes.TagElement, []nodes.Kwarg, string, error) {
	atoms, err := lexer.NewKwargLexer(p.source, tag.Parts).All()
	if err != nil {
		return nil, nil, "", p.wrap(err)
	}
	atoms, target, _, err := p.extractAsVariable(atoms)
	if err != nil {
		return nil, nil, "", err
	}

	signature := loaded.signature
	var args []nodes.TagElement
	var kwargs []nodes.Kwarg
	// positional holds the span of each positional argument
	var positional []lexer.Span
	seen := make(map[string]lexer.Span)
	previous := tag.Parts
	for index, atom := range atoms {
		if atom.Kwarg == nil {
			if len(seen) > 0 {
				return nil, nil, "", p.fail(PositionalAfterKeyword, atom.At,
					"Unexpected positional argument after keyword argument",
					note(atom.At, "this positional argument"), note(previous, "after this keyword argument"))
			}
			if !signature.Varargs && index == len(loaded.params) {
				return nil, nil, "", p.fail(TooManyPositionalArguments, atom.At, "Unexpected positional argument",
					note(atom.At, "here"))
			}
			value, err := p.parseAtom(atom, depth)
			if err != nil {
				return nil, nil, "", err
			}
			args = append(args, value)
			positional = append(positional, atom.At)
			previous = atom.At
			continue
		}

		kwargAt := lexer.NewSpan(atom.Kwarg.Offset, atom.Kwarg.Length+1+atom.At.Length)
		kwarg := p.source.Content(*atom.Kwarg)
		if !signature.Varkw && !loaded.hasParam(kwarg) && !loaded.hasKwonly(kwarg) {
			return nil, nil, "", p.fail(UnexpectedKeywordArgument, kwargAt, "Unexpected keyword argument",
				note(kwargAt, "here"))
		}
		first, duplicate := seen[kwarg]
		if i := slices.Index(loaded.params, kwarg); i >= 0 && i < len(positional) {
			first, duplicate = positional[i], true
		}
		if duplicate {
			return nil, nil, "", p.fail(DuplicateKeywordArgument, kwargAt,
				fmt.Sprintf("'%s' received multiple values for keyword argument '%s'", name, kwarg),
				note(first, "first"), note(kwargAt, "second"))
		}
		value, err := p.parseAtom(atom, depth)
		if err != nil {
			return nil, nil, "", err
		}
		seen[kwarg] = kwargAt
		kwargs = append(kwargs, nodes.Kwarg{Name: kwarg, At: kwargAt, Value: value})
		previous = kwargAt
	}

	var missing []string
	if required := len(loaded.params) - signature.DefaultsCount; required > len(args) {
		for _, param := range loaded.params[len(args):required] {
			if _, ok := seen[param]; !ok {
				missing = append(missing, "'"+param+"'")
			}
		}
	}
	for _, kwonly := range signature.Kwonly {
		if _, ok := seen[kwonly]; !ok && !loaded.hasKwonlyDefault(kwonly) {
			missing = append(missing, "'"+kwonly+"'")
		}
	}
	if len(missing) > 0 {
		return nil, nil, "", p.fail(MissingArguments, tag.Parts,
			fmt.Sprintf("'%s' did not receive value(s) for the argument(s): %s", name, strings.Join(missing, ", ")),
			note(tag.Parts, "here"))
	}
	return args, kwargs, target, nil
}
