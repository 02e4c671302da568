package runtime

import (
	"github.com/deicod/godtl/nodes"
)

// test evaluates the condition of an if tag
func (e *Evaluator) test(condition nodes.Condition) bool {
	value, ok := e.evaluate(condition)
	return ok && value.Truth()
}

// evaluate evaluates a condition. ok is false when an operand could not be
// resolved; every operator then treats that side as false.
func (e *Evaluator) evaluate(condition nodes.Condition) (Value, bool) {
	switch c := condition.(type) {
	case *nodes.ConditionElement:
		value, err := e.resolve(c.Element, missingAsNone)
		if err != nil {
			e.ctx.logger().Debug("if operand failed to resolve",
				"template", e.tmpl.name, "operand", e.content(c.Element), "error", err)
			return None(), false
		}
		return value, true

	case *nodes.ConditionNot:
		value, ok := e.evaluate(c.Operand)
		return NewBool(ok && !value.Truth()), true

	case *nodes.ConditionBinary:
		return NewBool(e.binary(c)), true
	}
	return None(), false
}

func (e *Evaluator) binary(c *nodes.ConditionBinary) bool {
	switch c.Op {
	case nodes.OpAnd:
		return e.test(c.Left) && e.test(c.Right)
	case nodes.OpOr:
		left, ok := e.evaluate(c.Left)
		if !ok {
			return false
		}
		return left.Truth() || e.test(c.Right)
	}

	left, ok := e.evaluate(c.Left)
	if !ok {
		return false
	}
	right, ok := e.evaluate(c.Right)
	if !ok {
		return false
	}

	var result bool
	var err error
	switch c.Op {
	case nodes.OpEqual:
		result, err = Equal(left, right)
	case nodes.OpNotEqual:
		result, err = NotEqual(left, right)
	case nodes.OpLessThan:
		result, err = Compare(CompareLess, left, right)
	case nodes.OpLessThanEqual:
		result, err = Compare(CompareLessEqual, left, right)
	case nodes.OpGreaterThan:
		result, err = Compare(CompareGreater, left, right)
	case nodes.OpGreaterThanEqual:
		result, err = Compare(CompareGreaterEqual, left, right)
	case nodes.OpIn, nodes.OpNotIn:
		var known bool
		result, known, err = Contains(right, left)
		if !known {
			return false
		}
		if c.Op == nodes.OpNotIn {
			result = !result
		}
	case nodes.OpIs:
		result = Is(left, right)
	case nodes.OpIsNot:
		result = IsNot(left, right)
	}
	if err != nil {
		e.ctx.logger().Debug("if comparison failed",
			"template", e.tmpl.name, "operator", c.Op.String(), "error", err)
		return false
	}
	return result
}
