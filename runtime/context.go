package runtime

import (
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/deicod/godtl/nodes"
)

// LoopContext is the state of one running for loop, exposed to templates
// as forloop.
type LoopContext struct {
	Counter0 int
	Length   int
	parent   *LoopContext
}

func (l *LoopContext) Counter() int     { return l.Counter0 + 1 }
func (l *LoopContext) RevCounter() int  { return l.Length - l.Counter0 }
func (l *LoopContext) RevCounter0() int { return l.Length - l.Counter0 - 1 }
func (l *LoopContext) First() bool      { return l.Counter0 == 0 }
func (l *LoopContext) Last() bool       { return l.Counter0 == l.Length-1 }

// variant returns the value of one forloop attribute
func (l *LoopContext) variant(variant nodes.ForVariant) Value {
	switch variant {
	case nodes.ForCounter:
		return NewInt64(int64(l.Counter()))
	case nodes.ForCounter0:
		return NewInt64(int64(l.Counter0))
	case nodes.ForRevCounter:
		return NewInt64(int64(l.RevCounter()))
	case nodes.ForRevCounter0:
		return NewInt64(int64(l.RevCounter0()))
	case nodes.ForFirst:
		return NewBool(l.First())
	case nodes.ForLast:
		return NewBool(l.Last())
	}
	return NewHost(loopHost{l})
}

// loopHost renders a loop the way Django renders the forloop dict. A nil
// loop is the empty parentloop of the outermost loop.
type loopHost struct {
	loop *LoopContext
}

var loopKeys = []struct {
	name    string
	variant nodes.ForVariant
}{
	{"counter0", nodes.ForCounter0},
	{"counter", nodes.ForCounter},
	{"revcounter", nodes.ForRevCounter},
	{"revcounter0", nodes.ForRevCounter0},
	{"first", nodes.ForFirst},
	{"last", nodes.ForLast},
}

func (h loopHost) Attr(name string) (Value, error) {
	if h.loop != nil {
		if name == "parentloop" {
			return NewHost(loopHost{h.loop.parent}), nil
		}
		if variant, ok := nodes.LookupForVariant(name); ok {
			return h.loop.variant(variant), nil
		}
	}
	return None(), fmt.Errorf("%w: forloop has no attribute %q", ErrAttributeNotFound, name)
}

func (h loopHost) Truth() bool { return h.loop != nil }

func (h loopHost) Text() string {
	if h.loop == nil {
		return "{}"
	}
	var b strings.Builder
	b.WriteString("{'parentloop': ")
	b.WriteString(loopHost{h.loop.parent}.Text())
	for _, key := range loopKeys {
		fmt.Fprintf(&b, ", '%s': %s", key.name, h.loop.variant(key.variant))
	}
	b.WriteString("}")
	return b.String()
}

func (h loopHost) Int() (*big.Int, error) {
	return nil, fmt.Errorf("forloop cannot be converted to an integer")
}

func (h loopHost) Float() (float64, error) {
	return 0, fmt.Errorf("forloop cannot be converted to a float")
}

func (h loopHost) Equal(other Value) (bool, error) {
	o, ok := other.Host().(loopHost)
	return ok && o.loop == h.loop, nil
}

func (h loopHost) Compare(op CompareOp, other Value) (bool, error) {
	return false, fmt.Errorf("'%s' not supported for forloop", op)
}

func (h loopHost) Contains(item Value) (bool, error) {
	if h.loop == nil || item.Kind() != KindString {
		return false, nil
	}
	if item.String() == "parentloop" {
		return true, nil
	}
	_, ok := nodes.LookupForVariant(item.String())
	return ok, nil
}

func (h loopHost) Identical(other Host) bool {
	o, ok := other.(loopHost)
	return ok && o.loop == h.loop && h.loop != nil
}

func (h loopHost) Iterate() ([]Value, error) {
	if h.loop == nil {
		return nil, nil
	}
	values := []Value{NewString("parentloop")}
	for _, key := range loopKeys {
		values = append(values, NewString(key.name))
	}
	return values, nil
}

// Scope represents a variable scope
type Scope struct {
	parent *Scope
	vars   map[string]Value
}

// NewScope creates a new scope
func NewScope() *Scope {
	return &Scope{vars: make(map[string]Value)}
}

// NewChildScope creates a child scope
func (s *Scope) NewChildScope() *Scope {
	child := NewScope()
	child.parent = s
	return child
}

// Set sets a variable in the current scope
func (s *Scope) Set(name string, value Value) {
	s.vars[name] = value
}

// Get gets a variable, searching parent scopes if not found
func (s *Scope) Get(name string) (Value, bool) {
	for scope := s; scope != nil; scope = scope.parent {
		if value, ok := scope.vars[name]; ok {
			return value, true
		}
	}
	return None(), false
}

// Delete deletes a variable from the current scope
func (s *Scope) Delete(name string) {
	delete(s.vars, name)
}

// Keys returns all variable names in the current scope and parents
func (s *Scope) Keys() []string {
	seen := make(map[string]bool)
	for scope := s; scope != nil; scope = scope.parent {
		for k := range scope.vars {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns all variables from all scopes, inner scopes winning
func (s *Scope) All() map[string]Value {
	result := make(map[string]Value)
	if s.parent != nil {
		for k, v := range s.parent.All() {
			result[k] = v
		}
	}
	for k, v := range s.vars {
		result[k] = v
	}
	return result
}

// Context represents the rendering context. A Context belongs to a single
// render and is not safe for concurrent use.
type Context struct {
	environment *Environment
	scope       *Scope
	autoescape  bool

	loop *LoopContext

	// cycle positions, by node for anonymous cycles and by name otherwise
	cycles      map[*nodes.Cycle]int
	namedCycles map[string]*namedCycle

	// blocks maps a block name to its definitions, most derived first
	blocks map[string][]blockDefinition

	includeDepth int
}

type namedCycle struct {
	node     *nodes.Cycle
	template *Template
}

type blockDefinition struct {
	block    *nodes.Block
	template *Template
}

// NewContext creates a new context with the given variables
func NewContext(vars map[string]any) *Context {
	ctx := &Context{
		scope:       NewScope(),
		autoescape:  true,
		cycles:      make(map[*nodes.Cycle]int),
		namedCycles: make(map[string]*namedCycle),
		blocks:      make(map[string][]blockDefinition),
	}
	ctx.scope.Set("True", NewBool(true))
	ctx.scope.Set("False", NewBool(false))
	ctx.scope.Set("None", None())
	for k, v := range vars {
		ctx.scope.Set(k, ValueOf(v))
	}
	return ctx
}

// NewContextWithEnvironment creates a new context with an environment
func NewContextWithEnvironment(env *Environment, vars map[string]any) *Context {
	ctx := NewContext(nil)
	ctx.environment = env
	if env != nil {
		ctx.autoescape = env.Autoescape()
		for k, v := range env.Globals() {
			ctx.scope.Set(k, ValueOf(v))
		}
	}
	ctx.PushScope()
	for k, v := range vars {
		ctx.scope.Set(k, ValueOf(v))
	}
	return ctx
}

// Environment returns the environment the context renders with
func (ctx *Context) Environment() *Environment {
	return ctx.environment
}

// PushScope creates a new child scope
func (ctx *Context) PushScope() {
	ctx.scope = ctx.scope.NewChildScope()
}

// PopScope returns to the parent scope
func (ctx *Context) PopScope() {
	if ctx.scope.parent != nil {
		ctx.scope = ctx.scope.parent
	}
}

// Set assigns a variable in the innermost scope
func (ctx *Context) Set(name string, value Value) {
	ctx.scope.Set(name, value)
}

// Get looks a variable up through every scope
func (ctx *Context) Get(name string) (Value, bool) {
	return ctx.scope.Get(name)
}

// Vars returns a snapshot of every visible variable
func (ctx *Context) Vars() map[string]Value {
	return ctx.scope.All()
}

// PushLoop starts a loop over length items inside the current loop
func (ctx *Context) PushLoop(length int) *LoopContext {
	ctx.loop = &LoopContext{Length: length, parent: ctx.loop}
	return ctx.loop
}

// PopLoop ends the innermost loop
func (ctx *Context) PopLoop() {
	if ctx.loop != nil {
		ctx.loop = ctx.loop.parent
	}
}

// CurrentLoop returns the innermost loop, or nil outside loops
func (ctx *Context) CurrentLoop() *LoopContext {
	return ctx.loop
}

// Loop returns the loop parents levels above the innermost one. ok is false
// when the loops are not nested that deep.
func (ctx *Context) Loop(parents int) (*LoopContext, bool) {
	loop := ctx.loop
	for ; parents > 0 && loop != nil; parents-- {
		loop = loop.parent
	}
	return loop, loop != nil
}

// SetAutoescape sets the autoescape mode
func (ctx *Context) SetAutoescape(autoescape bool) {
	ctx.autoescape = autoescape
}

// ShouldAutoescape returns whether autoescaping is enabled
func (ctx *Context) ShouldAutoescape() bool {
	return ctx.autoescape
}

// isolated returns a context for an include with only: no variables, but
// the same environment and autoescape mode.
func (ctx *Context) isolated() *Context {
	inner := NewContext(nil)
	inner.environment = ctx.environment
	inner.autoescape = ctx.autoescape
	inner.includeDepth = ctx.includeDepth
	return inner
}

func (ctx *Context) translate(msgid string) string {
	if ctx.environment == nil {
		return msgid
	}
	return ctx.environment.translate(msgid)
}

func (ctx *Context) now() time.Time {
	if ctx.environment == nil {
		return time.Now()
	}
	return ctx.environment.now()
}

func (ctx *Context) logger() *slog.Logger {
	if ctx.environment == nil {
		return slog.Default()
	}
	return ctx.environment.Logger()
}
