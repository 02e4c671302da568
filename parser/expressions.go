package parser

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/deicod/godtl/lexer"
	"github.com/deicod/godtl/nodes"
)

type filterArity int

const (
	noArgument filterArity = iota
	requiresArgument
	optionalArgument
)

// builtinArity says whether each built-in filter takes an argument
var builtinArity = map[nodes.FilterKind]filterArity{
	nodes.FilterAdd:           requiresArgument,
	nodes.FilterAddSlashes:    noArgument,
	nodes.FilterCapfirst:      noArgument,
	nodes.FilterCenter:        requiresArgument,
	nodes.FilterCut:           requiresArgument,
	nodes.FilterDate:          optionalArgument,
	nodes.FilterDefault:       requiresArgument,
	nodes.FilterDefaultIfNone: requiresArgument,
	nodes.FilterEscape:        noArgument,
	nodes.FilterEscapejs:      noArgument,
	nodes.FilterLength:        noArgument,
	nodes.FilterLower:         noArgument,
	nodes.FilterSafe:          noArgument,
	nodes.FilterSlugify:       noArgument,
	nodes.FilterTitle:         noArgument,
	nodes.FilterUpper:         noArgument,
	nodes.FilterWordcount:     noArgument,
	nodes.FilterWordwrap:      requiresArgument,
	nodes.FilterYesno:         optionalArgument,
}

// parseVariable parses a value with an optional filter chain. tokenAt locates
// the whole construct for an empty content.
func (p *Parser) parseVariable(content, tokenAt lexer.Span, depth int) (nodes.TagElement, error) {
	if strings.TrimSpace(p.source.Content(content)) == "" {
		return nil, p.fail(EmptyVariable, tokenAt, "Empty variable tag")
	}
	token, err := lexer.LexVariable(p.source, content)
	if err != nil {
		return nil, p.wrap(err)
	}

	head := token.Head
	var element nodes.TagElement
	switch head.Kind {
	case lexer.AtomVariable:
		element, err = p.parseForVariable(head.At, depth)
	case lexer.AtomNumeric:
		element, err = p.parseNumeric(head.At)
	case lexer.AtomText:
		element = nodes.NewText(head.ContentAt())
	case lexer.AtomTranslatedText:
		element = nodes.NewTranslatedText(head.ContentAt())
	}
	if err != nil {
		return nil, err
	}

	for _, filterToken := range token.Filters {
		var argument *nodes.Argument
		if filterToken.Arg != nil {
			value, err := p.parseArgument(*filterToken.Arg, depth)
			if err != nil {
				return nil, err
			}
			argument = &nodes.Argument{At: filterToken.Arg.At, Value: value}
		}
		filter, err := p.newFilter(filterToken.At, head.At.To(filterToken.At), element, argument)
		if err != nil {
			return nil, err
		}
		element = filter
	}
	return element, nil
}

// parseArgument parses a filter argument, which cannot carry filters itself.
func (p *Parser) parseArgument(atom lexer.Atom, depth int) (nodes.TagElement, error) {
	switch atom.Kind {
	case lexer.AtomNumeric:
		return p.parseNumeric(atom.At)
	case lexer.AtomText:
		return nodes.NewText(atom.ContentAt()), nil
	case lexer.AtomTranslatedText:
		return nodes.NewTranslatedText(atom.ContentAt()), nil
	}
	return p.parseForVariable(atom.At, depth)
}

// parseAtom parses a tag argument. Variable atoms may carry filters.
func (p *Parser) parseAtom(atom lexer.Atom, depth int) (nodes.TagElement, error) {
	switch atom.Kind {
	case lexer.AtomNumeric:
		return p.parseNumeric(atom.At)
	case lexer.AtomText:
		return nodes.NewText(atom.ContentAt()), nil
	case lexer.AtomTranslatedText:
		return nodes.NewTranslatedText(atom.ContentAt()), nil
	}
	return p.parseVariable(atom.At, atom.At, depth)
}

// parseNumeric parses an integer of any size, falling back to a float.
func (p *Parser) parseNumeric(at lexer.Span) (nodes.TagElement, error) {
	content := p.source.Content(at)
	if n, ok := new(big.Int).SetString(content, 10); ok {
		return nodes.NewInt(at, n), nil
	}
	if f, err := strconv.ParseFloat(content, 64); err == nil && !strings.ContainsAny(content, "xX") {
		return nodes.NewFloat(at, f), nil
	}
	return nil, p.fail(InvalidNumber, at, "Invalid numeric literal")
}

// parseForVariable resolves forloop references against the loop nesting depth.
// Anything that does not name a loop attribute reachable from here is an
// ordinary variable.
func (p *Parser) parseForVariable(at lexer.Span, depth int) (nodes.TagElement, error) {
	variable := func() (nodes.TagElement, error) {
		parts, err := lexer.VariableParts(p.source, at, 0)
		if err != nil {
			return nil, p.wrap(err)
		}
		return nodes.NewVariable(at, parts), nil
	}

	parts := strings.Split(p.source.Content(at), ".")
	if depth == 0 || strings.TrimSpace(parts[0]) != "forloop" {
		return variable()
	}
	if len(parts) == 1 {
		return nodes.NewForVariable(at, nodes.ForObject, 0), nil
	}

	variant, ok := nodes.LookupForVariant(strings.TrimSpace(parts[len(parts)-1]))
	if !ok {
		return variable()
	}
	middle := parts[1 : len(parts)-1]
	for _, part := range middle {
		if strings.TrimSpace(part) != "parentloop" {
			return variable()
		}
	}
	parentCount := len(middle)
	if variant == nodes.ForObject {
		parentCount++
	}
	if parentCount > depth {
		return variable()
	}
	return nodes.NewForVariable(at, variant, parentCount), nil
}

// newFilter validates the filter at against its argument and builds the node.
func (p *Parser) newFilter(at, allAt lexer.Span, left nodes.TagElement, argument *nodes.Argument) (*nodes.Filter, error) {
	name := p.source.Content(at)
	filter := &nodes.Filter{
		BaseNode: nodes.BaseNode{At: at},
		AllAt:    allAt,
		Left:     left,
		Name:     name,
		Arg:      argument,
	}

	kind, builtin := nodes.BuiltinFilters[name]
	if !builtin {
		external, ok := p.filters[name]
		if !ok {
			return nil, p.fail(InvalidFilter, at, fmt.Sprintf("Invalid filter: '%s'", name))
		}
		filter.Kind = nodes.FilterExternal
		filter.External = external
		return filter, nil
	}

	filter.Kind = kind
	switch builtinArity[kind] {
	case noArgument:
		if argument != nil {
			return nil, p.fail(UnexpectedArgument, argument.At, fmt.Sprintf("%s filter does not take an argument", name),
				note(argument.At, "unexpected argument"))
		}
	case requiresArgument:
		if argument == nil {
			return nil, p.fail(MissingArgument, at, "Expected an argument")
		}
	}
	return filter, nil
}

// extractAsVariable removes a trailing `as name` from atoms and returns name.
func (p *Parser) extractAsVariable(atoms []lexer.Atom) ([]lexer.Atom, string, bool, error) {
	n := len(atoms)
	if n < 2 {
		return atoms, "", false, nil
	}
	for idx := 0; idx < n; idx++ {
		atom := atoms[n-1-idx]
		if p.source.Content(atom.At) != "as" {
			continue
		}
		switch idx {
		case 0:
			err := p.fail(MissingVariableAfterAs, atom.At, "Expected a variable name after 'as'",
				note(atom.At, "expected a variable name here"))
			err.Hint = "Provide a name to store the result, e.g. 'as my_var'"
			return nil, "", false, err
		case 1:
			return atoms[:n-2], p.source.Content(atoms[n-1].At), true, nil
		default:
			name := p.source.Content(atoms[n-idx].At)
			extra := atoms[n-idx+1].AllAt().To(atoms[n-1].At)
			err := p.fail(UnexpectedTokensAfterAsVariable, extra, fmt.Sprintf("Unexpected tokens after 'as %s'", name),
				note(extra, "unexpected tokens here"))
			err.Hint = "Remove the extra tokens."
			return nil, "", false, err
		}
	}
	return atoms, "", false, nil
}
