package parser

import (
	"fmt"

	"github.com/deicod/godtl/lexer"
	"github.com/deicod/godtl/nodes"
)

const notBindingPower = 8

var conditionOperators = map[lexer.IfTokenKind]nodes.Operator{
	lexer.IfAnd:              nodes.OpAnd,
	lexer.IfOr:               nodes.OpOr,
	lexer.IfIn:               nodes.OpIn,
	lexer.IfNotIn:            nodes.OpNotIn,
	lexer.IfIs:               nodes.OpIs,
	lexer.IfIsNot:            nodes.OpIsNot,
	lexer.IfEqual:            nodes.OpEqual,
	lexer.IfNotEqual:         nodes.OpNotEqual,
	lexer.IfLessThan:         nodes.OpLessThan,
	lexer.IfGreaterThan:      nodes.OpGreaterThan,
	lexer.IfLessThanEqual:    nodes.OpLessThanEqual,
	lexer.IfGreaterThanEqual: nodes.OpGreaterThanEqual,
}

func bindingPower(op nodes.Operator) int {
	switch op {
	case nodes.OpOr:
		return 6
	case nodes.OpAnd:
		return 7
	case nodes.OpIn, nodes.OpNotIn:
		return 9
	}
	return 10
}

// conditionParser is a precedence climbing parser over the tokens of an if tag.
type conditionParser struct {
	parser  *Parser
	tokens  *lexer.IfLexer
	peeked  *lexer.IfToken
	peekErr error
	depth   int
}

// parseCondition parses the condition of the if or elif tag at.
func (p *Parser) parseCondition(at, parts lexer.Span, depth int) (nodes.Condition, error) {
	c := &conditionParser{parser: p, tokens: lexer.NewIfLexer(p.source, parts), depth: depth}
	_, ok, err := c.peek()
	if err != nil {
		return nil, p.wrap(err)
	}
	if !ok {
		return nil, p.fail(MissingBooleanExpression, at, "Missing boolean expression")
	}
	return c.parse(0, at)
}

func (c *conditionParser) peek() (lexer.IfToken, bool, error) {
	if c.peekErr != nil {
		return lexer.IfToken{}, false, c.peekErr
	}
	if c.peeked == nil {
		token, ok, err := c.tokens.Next()
		if err != nil {
			c.peekErr = err
			return lexer.IfToken{}, false, err
		}
		if !ok {
			return lexer.IfToken{}, false, nil
		}
		c.peeked = &token
	}
	return *c.peeked, true, nil
}

func (c *conditionParser) next() (lexer.IfToken, bool, error) {
	token, ok, err := c.peek()
	c.peeked = nil
	return token, ok, err
}

// parse parses an operand followed by every operator binding tighter than
// minPower. at locates the construct preceding the operand.
func (c *conditionParser) parse(minPower int, at lexer.Span) (nodes.Condition, error) {
	p := c.parser
	token, ok, err := c.next()
	if err != nil {
		return nil, p.wrap(err)
	}
	if !ok {
		return nil, p.fail(UnexpectedEndExpression, at, "Unexpected end of expression", note(at, "after this"))
	}

	var lhs nodes.Condition
	switch token.Kind {
	case lexer.IfAtom:
		element, err := p.parseAtom(token.Atom, c.depth)
		if err != nil {
			return nil, err
		}
		lhs = nodes.NewConditionElement(element)
	case lexer.IfNot:
		operand, err := c.parse(notBindingPower, token.At)
		if err != nil {
			return nil, err
		}
		lhs = &nodes.ConditionNot{
			BaseNode: nodes.BaseNode{At: token.At.To(operand.Span())},
			Operand:  operand,
		}
	default:
		return nil, p.fail(InvalidIfPosition, token.At,
			fmt.Sprintf("Not expecting '%s' in this position", p.source.Content(token.At)))
	}

	for {
		token, ok, err := c.peek()
		if err != nil {
			return nil, p.wrap(err)
		}
		if !ok {
			break
		}
		op, isOperator := conditionOperators[token.Kind]
		if !isOperator {
			return nil, p.fail(UnusedExpression, token.At,
				fmt.Sprintf("Unused expression '%s' in if tag", p.source.Content(token.At)))
		}
		power := bindingPower(op)
		if power <= minPower {
			break
		}

		c.next()
		rhs, err := c.parse(power, token.At)
		if err != nil {
			return nil, err
		}
		lhs = nodes.NewConditionBinary(op, lhs, rhs)
	}
	return lhs, nil
}
