package starlarkhost

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/deicod/godtl/parser"
	"github.com/deicod/godtl/runtime"
)

// maxExecutionSteps bounds every call into a library so a runaway script
// cannot stall a render
const maxExecutionSteps = 10_000_000

func newThread(name string) *starlark.Thread {
	thread := &starlark.Thread{Name: name}
	thread.SetMaxExecutionSteps(maxExecutionSteps)
	return thread
}

// registry collects what a library script registers
type registry struct {
	filename  string
	logger    *slog.Logger
	library   *runtime.Library
	callables []starlark.Callable
}

// LoadLibrary executes the Starlark library at path
func LoadLibrary(path string, logger *slog.Logger) (*runtime.Library, error) {
	return ExecLibrary(path, nil, logger)
}

// ExecLibrary executes a Starlark library script and returns the filters and
// tags it registers. src is anything starlark.ExecFile accepts; when nil the
// script is read from filename. Scripts register functions on the predeclared
// register module:
//
//	def shout(value, suffix="!"):
//	    return value.upper() + suffix
//
//	register.filter(shout)
//	register.simple_tag(greet, takes_context=True)
//	register.simple_block_tag(upper, end_name="endupper")
//
// mark_safe(s) returns a string that is not escaped on output.
func ExecLibrary(filename string, src any, logger *slog.Logger) (*runtime.Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &registry{filename: filename, logger: logger, library: runtime.NewLibrary()}

	predeclared := starlark.StringDict{
		"register":  r.module(),
		"mark_safe": starlark.NewBuiltin("mark_safe", markSafe),
	}
	globals, err := starlark.ExecFile(r.thread(filename), filename, src, predeclared)
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, fmt.Errorf("starlark library %s: %s", filename, evalErr.Backtrace())
		}
		return nil, fmt.Errorf("starlark library %s: %w", filename, err)
	}

	// frozen values may be called from concurrent renders
	globals.Freeze()
	for _, callable := range r.callables {
		callable.Freeze()
	}
	logger.Debug("starlark library loaded", "file", filename,
		"filters", len(r.library.Filters), "tags", len(r.library.Tags))
	return r.library, nil
}

func (r *registry) thread(name string) *starlark.Thread {
	thread := newThread(name)
	thread.Print = func(_ *starlark.Thread, msg string) {
		r.logger.Info(msg, "library", r.filename, "function", name)
	}
	return thread
}

func (r *registry) module() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "register",
		Members: starlark.StringDict{
			"filter":           starlark.NewBuiltin("filter", r.registerFilter),
			"simple_tag":       starlark.NewBuiltin("simple_tag", r.registerSimpleTag),
			"simple_block_tag": starlark.NewBuiltin("simple_block_tag", r.registerSimpleBlockTag),
		},
	}
}

func (r *registry) registerFilter(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	var name string
	var isSafe bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "fn", &fn, "name?", &name, "is_safe?", &isSafe); err != nil {
		return nil, err
	}
	if name == "" {
		name = fn.Name()
	}
	r.callables = append(r.callables, fn)
	r.library.AddFilter(name, r.filterFunc(name, fn, isSafe))
	return fn, nil
}

func (r *registry) registerSimpleTag(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	var name string
	var takesContext bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "fn", &fn, "name?", &name, "takes_context?", &takesContext); err != nil {
		return nil, err
	}
	return r.addTag(fn, name, takesContext, false, "")
}

func (r *registry) registerSimpleBlockTag(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	var name, endName string
	var takesContext bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "fn", &fn, "name?", &name, "takes_context?", &takesContext, "end_name?", &endName); err != nil {
		return nil, err
	}
	return r.addTag(fn, name, takesContext, true, endName)
}

// addTag registers fn under name, or its own name when empty. Block tags end
// with endTag, which defaults to "end" followed by the tag name.
func (r *registry) addTag(fn starlark.Callable, name string, takesContext, block bool, endTag string) (starlark.Value, error) {
	if name == "" {
		name = fn.Name()
	}
	if block && endTag == "" {
		endTag = "end" + name
	}
	signature := Signature(fn)
	if _, ok := fn.(*starlark.Function); !ok {
		if takesContext {
			signature.Params = append(signature.Params, "context")
		}
		if endTag != "" {
			signature.Params = append(signature.Params, "content")
		}
	}
	signature.Name = name
	signature.TakesContext = takesContext
	signature.EndTag = endTag

	r.callables = append(r.callables, fn)
	r.library.AddTag(signature, r.tagFunc(name, fn, takesContext))
	return fn, nil
}

// Signature describes the parameters of fn for the parser's argument checks.
// Builtins cannot be inspected and accept any arguments.
func Signature(fn starlark.Callable) parser.TagSignature {
	f, ok := fn.(*starlark.Function)
	if !ok {
		return parser.TagSignature{Name: fn.Name(), Varargs: true, Varkw: true}
	}

	signature := parser.TagSignature{Name: f.Name(), Varargs: f.HasVarargs(), Varkw: f.HasKwargs()}
	n := f.NumParams()
	if f.HasKwargs() {
		n--
	}
	if f.HasVarargs() {
		n--
	}
	positional := n - f.NumKwonlyParams()
	for i := range n {
		param, _ := f.Param(i)
		hasDefault := f.ParamDefault(i) != nil
		if i < positional {
			signature.Params = append(signature.Params, param)
			if hasDefault {
				signature.DefaultsCount++
			}
			continue
		}
		signature.Kwonly = append(signature.Kwonly, param)
		if hasDefault {
			signature.KwonlyDefaults = append(signature.KwonlyDefaults, param)
		}
	}
	return signature
}

func (r *registry) filterFunc(name string, fn starlark.Callable, isSafe bool) runtime.FilterFunc {
	return func(ctx *runtime.Context, value runtime.Value, args ...runtime.Value) (runtime.Value, error) {
		callArgs := make(starlark.Tuple, 0, 1+len(args))
		callArgs = append(callArgs, ToStarlark(value))
		for _, arg := range args {
			callArgs = append(callArgs, ToStarlark(arg))
		}
		result, err := starlark.Call(r.thread(name), fn, callArgs, nil)
		if err != nil {
			return runtime.None(), err
		}
		if s, ok := result.(starlark.String); ok && isSafe && value.IsSafe() {
			return runtime.NewSafeString(string(s)), nil
		}
		return FromStarlark(result), nil
	}
}

func (r *registry) tagFunc(name string, fn starlark.Callable, takesContext bool) runtime.SimpleTagFunc {
	return func(ctx *runtime.Context, args []runtime.Value, kwargs map[string]runtime.Value) (runtime.Value, error) {
		callArgs := make(starlark.Tuple, 0, 1+len(args))
		if takesContext {
			callArgs = append(callArgs, contextDict(ctx))
		}
		for _, arg := range args {
			callArgs = append(callArgs, ToStarlark(arg))
		}
		callKwargs := make([]starlark.Tuple, 0, len(kwargs))
		for _, key := range slices.Sorted(maps.Keys(kwargs)) {
			callKwargs = append(callKwargs, starlark.Tuple{starlark.String(key), ToStarlark(kwargs[key])})
		}

		result, err := starlark.Call(r.thread(name), fn, callArgs, callKwargs)
		if err != nil {
			return runtime.None(), err
		}
		return FromStarlark(result), nil
	}
}

// contextDict copies the visible template variables into a Starlark dict
func contextDict(ctx *runtime.Context) *starlark.Dict {
	vars := ctx.Vars()
	dict := starlark.NewDict(len(vars))
	for _, key := range slices.Sorted(maps.Keys(vars)) {
		_ = dict.SetKey(starlark.String(key), ToStarlark(vars[key]))
	}
	return dict
}

// SafeString is a Starlark string that is not escaped on output
type SafeString string

var _ starlark.Value = SafeString("")

func (s SafeString) String() string        { return starlark.String(s).String() }
func (s SafeString) Type() string          { return "safe_string" }
func (s SafeString) Freeze()               {}
func (s SafeString) Truth() starlark.Bool  { return len(s) > 0 }
func (s SafeString) Hash() (uint32, error) { return starlark.String(s).Hash() }

func markSafe(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &value); err != nil {
		return nil, err
	}
	if s, ok := value.(starlark.String); ok {
		return SafeString(s), nil
	}
	return SafeString(value.String()), nil
}
