package runtime

import (
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/deicod/godtl/nodes"
)

// render renders the template, following its extends chain. Blocks of every
// template in the chain are registered before the root template renders.
func (t *Template) render(ctx *Context) (string, error) {
	saved := ctx.blocks
	ctx.blocks = make(map[string][]blockDefinition)
	defer func() { ctx.blocks = saved }()

	current := t
	chain := []string{}
	for current.extends != nil {
		for name, block := range current.blocks {
			ctx.blocks[name] = append(ctx.blocks[name], blockDefinition{block: block, template: current})
		}
		if current.name != "" {
			chain = append(chain, current.name)
		}

		parent, err := current.parent(ctx)
		if err != nil {
			return "", err
		}
		if slices.Contains(chain, parent.name) {
			err := NewError(ErrorTypeTemplate,
				fmt.Sprintf("circular template inheritance: %s", strings.Join(append(chain, parent.name), " -> ")),
				current.extends)
			return "", WrapError(err, current, current.extends)
		}
		current = parent
	}
	for name, block := range current.blocks {
		ctx.blocks[name] = append(ctx.blocks[name], blockDefinition{block: block, template: current})
	}

	var out strings.Builder
	if err := newEvaluator(ctx, current, &out).visitBody(current.ast.Body); err != nil {
		return "", err
	}
	return out.String(), nil
}

// parent loads the template named by the extends tag
func (t *Template) parent(ctx *Context) (*Template, error) {
	e := newEvaluator(ctx, t, nil)
	name := t.extends.Path
	if name == "" {
		value, err := e.resolve(t.extends.Parent, missingAsNone)
		if err != nil {
			return nil, WrapError(err, t, t.extends)
		}
		if parent, ok := value.Interface().(*Template); ok {
			return parent, nil
		}
		if value.Kind() != KindString {
			err := NewError(ErrorTypeTemplate, fmt.Sprintf("invalid template name in extends tag: %s", repr(value)), t.extends.Parent)
			return nil, WrapError(err, t, t.extends.Parent)
		}
		name, err = e.relativeName(value.String(), t.extends.Parent)
		if err != nil {
			return nil, err
		}
	}

	parent, err := t.environment.LoadTemplate(name)
	if err != nil {
		return nil, WrapError(err, t, t.extends.Parent)
	}
	return parent, nil
}

func (e *Evaluator) visitBlock(node *nodes.Block) error {
	chain := e.ctx.blocks[node.Name]
	if len(chain) == 0 {
		chain = []blockDefinition{{block: node, template: e.tmpl}}
	}
	return e.renderBlock(chain)
}

// renderBlock renders the most derived definition of a block, exposing the
// rest of the chain as block.super
func (e *Evaluator) renderBlock(chain []blockDefinition) error {
	definition := chain[0]
	inner := newEvaluator(e.ctx, definition.template, e.out)

	e.ctx.PushScope()
	defer e.ctx.PopScope()
	e.ctx.Set("block", NewHost(&blockHost{evaluator: inner, name: definition.block.Name, parents: chain[1:]}))
	return inner.visitBody(definition.block.Body)
}

// blockHost is the block variable inside a block; block.super renders the
// parent definition
type blockHost struct {
	evaluator *Evaluator
	name      string
	parents   []blockDefinition
}

func (h *blockHost) Attr(name string) (Value, error) {
	if name != "super" {
		return None(), fmt.Errorf("%w: block has no attribute %q", ErrAttributeNotFound, name)
	}
	if len(h.parents) == 0 {
		return NewSafeString(""), nil
	}
	var buf strings.Builder
	if err := newEvaluator(h.evaluator.ctx, h.evaluator.tmpl, &buf).renderBlock(h.parents); err != nil {
		return None(), err
	}
	return NewSafeString(buf.String()), nil
}

func (h *blockHost) Truth() bool  { return true }
func (h *blockHost) Text() string { return fmt.Sprintf("<Block Node: %s>", h.name) }

func (h *blockHost) Int() (*big.Int, error) {
	return nil, fmt.Errorf("block cannot be converted to an integer")
}

func (h *blockHost) Float() (float64, error) {
	return 0, fmt.Errorf("block cannot be converted to a float")
}

func (h *blockHost) Equal(other Value) (bool, error) {
	o, ok := other.Host().(*blockHost)
	return ok && o == h, nil
}

func (h *blockHost) Compare(op CompareOp, other Value) (bool, error) {
	return false, fmt.Errorf("'%s' not supported for block", op)
}

func (h *blockHost) Contains(item Value) (bool, error) {
	return item.Kind() == KindString && item.String() == "super", nil
}

func (h *blockHost) Identical(other Host) bool {
	o, ok := other.(*blockHost)
	return ok && o == h
}

func (h *blockHost) Iterate() ([]Value, error) {
	return nil, fmt.Errorf("block object is not iterable")
}
