package parser

import (
	"fmt"
	"strings"

	"github.com/deicod/godtl/lexer"
	"github.com/deicod/godtl/nodes"
)

// Environment configures parsing. It is shared by every template of an engine
// and must not be modified while templates are being parsed.
type Environment struct {
	Lexer lexer.LexerConfig
	// Libraries are the tag libraries available to load tags, by name.
	Libraries map[string]*Library
	// Builtins are loaded into every template before parsing starts.
	Builtins []*Library
}

// NewEnvironment creates an environment with the default lexer configuration
func NewEnvironment() *Environment {
	return &Environment{
		Lexer:     lexer.DefaultLexerConfig(),
		Libraries: make(map[string]*Library),
	}
}

// Parser turns the segments of one template into an AST. A Parser is used once.
type Parser struct {
	environment *Environment
	source      lexer.Source
	scanner     *lexer.Scanner
	name        string
	filters     map[string]any
	tags        map[string]*loadedTag
	cycles      map[string]bool
	blocks      map[string]lexer.Span
	tagStack    []string
	endTagStack [][]string
	extends     *lexer.Span
	nonText     bool
}

// endTag is a tag that closes or splits an enclosing block.
type endTag struct {
	name  string
	at    lexer.Span
	parts lexer.Span
}

// endTags are always treated as the end of an enclosing block
var endTags = map[string]bool{
	"endautoescape": true,
	"endverbatim":   true,
	"elif":          true,
	"else":          true,
	"endif":         true,
	"empty":         true,
	"endfor":        true,
	"endblock":      true,
}

// NewParser creates a parser for source. name is the template name; relative
// include and extends paths are resolved against it, so an empty name means
// the origin is unknown.
func NewParser(env *Environment, source, name string) (*Parser, error) {
	if env == nil {
		env = NewEnvironment()
	}
	src := lexer.NewSource(source)
	parser := &Parser{
		environment: env,
		source:      src,
		scanner:     lexer.NewLexer(env.Lexer).Scan(src),
		name:        name,
		filters:     make(map[string]any),
		tags:        make(map[string]*loadedTag),
		cycles:      make(map[string]bool),
		blocks:      make(map[string]lexer.Span),
		tagStack:    make([]string, 0),
		endTagStack: make([][]string, 0),
	}

	for _, library := range env.Builtins {
		if err := parser.loadLibrary(lexer.Span{}, library); err != nil {
			return nil, err
		}
	}
	return parser, nil
}

// Source returns the template text being parsed
func (p *Parser) Source() lexer.Source {
	return p.source
}

// Parse parses the whole template
func (p *Parser) Parse() (*nodes.Template, error) {
	body := make([]nodes.Node, 0)
	for {
		node, end, ok, err := p.next(0)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if end != nil {
			return nil, p.fail(UnexpectedEndTag, end.at, fmt.Sprintf("Unexpected tag %s", end.name),
				note(end.at, "unexpected tag"))
		}
		if node == nil {
			continue
		}
		if _, text := node.(*nodes.Text); !text {
			p.nonText = true
		}
		body = append(body, node)
	}

	return &nodes.Template{
		BaseNode: nodes.BaseNode{At: lexer.NewSpan(0, p.source.Len())},
		Name:     p.name,
		Body:     body,
	}, nil
}

// next parses the next segment. node is nil for comments; end is set when the
// segment is an end tag. ok is false at the end of the template.
func (p *Parser) next(depth int) (nodes.Node, *endTag, bool, error) {
	segment, ok, err := p.scanner.Next()
	if err != nil {
		return nil, nil, false, p.wrap(err)
	}
	if !ok {
		return nil, nil, false, nil
	}

	switch segment.Type {
	case lexer.SegmentText:
		return nodes.NewText(segment.At), nil, true, nil
	case lexer.SegmentComment:
		return nil, nil, true, nil
	case lexer.SegmentVariable:
		element, err := p.parseVariable(segment.Content, segment.At, depth)
		if err != nil {
			return nil, nil, false, err
		}
		return element, nil, true, nil
	default:
		node, end, err := p.parseTag(segment, depth)
		if err != nil {
			return nil, nil, false, err
		}
		return node, end, true, nil
	}
}

// parseUntil parses nodes until one of the until tags. Any other end tag, or
// the end of the template, is an error attributed to the start tag.
func (p *Parser) parseUntil(until []string, start string, startAt lexer.Span, depth int) ([]nodes.Node, *endTag, error) {
	p.tagStack = append(p.tagStack, start)
	p.endTagStack = append(p.endTagStack, until)
	defer func() {
		p.tagStack = p.tagStack[:len(p.tagStack)-1]
		p.endTagStack = p.endTagStack[:len(p.endTagStack)-1]
	}()

	body := make([]nodes.Node, 0)
	for {
		node, end, ok, err := p.next(depth)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		if end != nil {
			for _, name := range until {
				if end.name == name {
					return body, end, nil
				}
			}
			return nil, nil, p.fail(WrongEndTag, end.at,
				fmt.Sprintf("Unexpected tag %s, expected %s", end.name, strings.Join(until, ", ")),
				note(end.at, "unexpected tag"), note(startAt, "start tag"))
		}
		if node != nil {
			body = append(body, node)
		}
	}

	return nil, nil, p.fail(MissingEndTag, startAt,
		fmt.Sprintf("Unclosed '%s' tag. Looking for one of: %s", start, strings.Join(until, ", ")),
		note(startAt, "started here"))
}

// failUnknownTag reports a tag that is neither built in nor loaded. Inside a
// block the message names the tags the innermost block is waiting for.
func (p *Parser) failUnknownTag(name string, at lexer.Span) error {
	var message strings.Builder
	fmt.Fprintf(&message, "Invalid block tag '%s'", name)
	if len(p.endTagStack) > 0 {
		expected := p.endTagStack[len(p.endTagStack)-1]
		fmt.Fprintf(&message, ", expected '%s'", strings.Join(expected, "' or '"))
	}
	message.WriteString(". Did you forget to register or load this tag?")

	labels := []lexer.Label{note(at, "unknown tag")}
	err := p.fail(UnknownTag, at, message.String(), labels...)
	if len(p.tagStack) > 0 {
		err.Hint = fmt.Sprintf("The innermost block that needs to be closed is '%s'.", p.tagStack[len(p.tagStack)-1])
	}
	return err
}
