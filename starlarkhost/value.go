// Package starlarkhost exposes Starlark values to templates and loads filter
// and tag libraries written in Starlark.
package starlarkhost

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/deicod/godtl/runtime"
)

// Value is a runtime.Host backed by a Starlark value
type Value struct {
	v starlark.Value
}

var (
	_ runtime.Host      = Value{}
	_ runtime.Lengther  = Value{}
	_ runtime.Adder     = Value{}
	_ runtime.Unwrapper = Value{}
)

// Starlark returns the wrapped Starlark value
func (h Value) Starlark() starlark.Value {
	return h.v
}

// Unwrap returns the wrapped Starlark value
func (h Value) Unwrap() any {
	return h.v
}

// Attr looks name up as a mapping key, then a sequence index, then an
// attribute. Attributes that are functions without parameters are called,
// so dict.items and friends work in for tags.
func (h Value) Attr(name string) (runtime.Value, error) {
	if mapping, ok := h.v.(starlark.Mapping); ok {
		if item, found, err := mapping.Get(starlark.String(name)); err == nil && found {
			return FromStarlark(item), nil
		}
		if n, err := strconv.Atoi(name); err == nil {
			if item, found, err := mapping.Get(starlark.MakeInt(n)); err == nil && found {
				return FromStarlark(item), nil
			}
		}
	}

	if indexable, ok := h.v.(starlark.Indexable); ok {
		if index, err := strconv.Atoi(name); err == nil {
			if index < 0 {
				index += indexable.Len()
			}
			if index >= 0 && index < indexable.Len() {
				return FromStarlark(indexable.Index(index)), nil
			}
		}
	}

	if attrs, ok := h.v.(starlark.HasAttrs); ok {
		attr, err := attrs.Attr(name)
		if err != nil {
			if _, missing := err.(starlark.NoSuchAttrError); !missing {
				return runtime.None(), err
			}
		}
		if attr != nil {
			return callIfNullary(name, attr)
		}
	}
	return runtime.None(), fmt.Errorf("%w: %s has no attribute %q", runtime.ErrAttributeNotFound, h.v.Type(), name)
}

func callIfNullary(name string, attr starlark.Value) (runtime.Value, error) {
	callable, ok := attr.(starlark.Callable)
	if !ok {
		return FromStarlark(attr), nil
	}
	if fn, ok := callable.(*starlark.Function); ok && fn.NumParams() > 0 && fn.ParamDefault(0) == nil {
		return FromStarlark(attr), nil
	}
	result, err := starlark.Call(newThread(name), callable, nil, nil)
	if err != nil {
		if _, builtin := callable.(*starlark.Builtin); builtin {
			// a method that needs arguments, like dict.get
			return runtime.None(), fmt.Errorf("%w: %s: %v", runtime.ErrAttributeNotFound, name, err)
		}
		return runtime.None(), err
	}
	return FromStarlark(result), nil
}

func (h Value) Truth() bool {
	return bool(h.v.Truth())
}

func (h Value) Text() string {
	if s, ok := h.v.(starlark.String); ok {
		return string(s)
	}
	return h.v.String()
}

func (h Value) Int() (*big.Int, error) {
	if n, ok := h.v.(starlark.Int); ok {
		return n.BigInt(), nil
	}
	return nil, fmt.Errorf("%s cannot be converted to an integer", h.v.Type())
}

func (h Value) Float() (float64, error) {
	if f, ok := starlark.AsFloat(h.v); ok {
		return f, nil
	}
	return 0, fmt.Errorf("%s cannot be converted to a float", h.v.Type())
}

func (h Value) Equal(other runtime.Value) (bool, error) {
	return starlark.Equal(h.v, ToStarlark(other))
}

var compareTokens = map[runtime.CompareOp]syntax.Token{
	runtime.CompareLess:         syntax.LT,
	runtime.CompareLessEqual:    syntax.LE,
	runtime.CompareGreater:      syntax.GT,
	runtime.CompareGreaterEqual: syntax.GE,
}

func (h Value) Compare(op runtime.CompareOp, other runtime.Value) (bool, error) {
	return starlark.Compare(compareTokens[op], h.v, ToStarlark(other))
}

func (h Value) Contains(item runtime.Value) (bool, error) {
	result, err := starlark.Binary(syntax.IN, ToStarlark(item), h.v)
	if err != nil {
		return false, err
	}
	return bool(result.Truth()), nil
}

// Identical compares reference values by pointer. Strings, numbers and
// tuples have no identity.
func (h Value) Identical(other runtime.Host) bool {
	o, ok := other.(Value)
	if !ok {
		return false
	}
	switch a := h.v.(type) {
	case *starlark.List:
		return a == o.v
	case *starlark.Dict:
		return a == o.v
	case *starlark.Set:
		return a == o.v
	case *starlark.Function:
		return a == o.v
	case *starlark.Builtin:
		return a == o.v
	}
	return false
}

func (h Value) Iterate() ([]runtime.Value, error) {
	iterable, ok := h.v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("'%s' object is not iterable", h.v.Type())
	}
	iter := iterable.Iterate()
	defer iter.Done()

	var values []runtime.Value
	var item starlark.Value
	for iter.Next(&item) {
		values = append(values, FromStarlark(item))
	}
	return values, nil
}

func (h Value) Len() (int, error) {
	if n := starlark.Len(h.v); n >= 0 {
		return n, nil
	}
	return 0, fmt.Errorf("object of type '%s' has no len()", h.v.Type())
}

func (h Value) Add(other runtime.Value) (runtime.Value, error) {
	sum, err := starlark.Binary(syntax.PLUS, h.v, ToStarlark(other))
	if err != nil {
		return runtime.None(), err
	}
	return FromStarlark(sum), nil
}

// FromStarlark converts a Starlark value to a template value. Scalars become
// native values; everything else is wrapped as a host.
func FromStarlark(v starlark.Value) runtime.Value {
	switch v := v.(type) {
	case nil, starlark.NoneType:
		return runtime.None()
	case starlark.String:
		return runtime.NewString(string(v))
	case SafeString:
		return runtime.NewSafeString(string(v))
	case starlark.Int:
		return runtime.NewInt(v.BigInt())
	case starlark.Float:
		return runtime.NewFloat(float64(v))
	case starlark.Bool:
		return runtime.NewBool(bool(v))
	}
	return runtime.NewHost(Value{v: v})
}

// ToStarlark converts a template value to Starlark. Go slices and maps behind
// reflection hosts become lists and dicts.
func ToStarlark(v runtime.Value) starlark.Value {
	switch v.Kind() {
	case runtime.KindNone:
		return starlark.None
	case runtime.KindString:
		return starlark.String(v.String())
	case runtime.KindInt:
		return starlark.MakeBigInt(v.BigInt())
	case runtime.KindFloat:
		f, _ := v.Interface().(float64)
		return starlark.Float(f)
	case runtime.KindBool:
		b, _ := v.Interface().(bool)
		return starlark.Bool(b)
	}

	if h, ok := v.Host().(Value); ok {
		return h.v
	}
	rv := reflect.ValueOf(v.Interface())
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]starlark.Value, rv.Len())
		for i := range items {
			items[i] = ToStarlark(runtime.ValueOf(rv.Index(i).Interface()))
		}
		return starlark.NewList(items)
	case reflect.Map:
		dict := starlark.NewDict(rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := ToStarlark(runtime.ValueOf(iter.Key().Interface()))
			// unhashable keys are dropped
			_ = dict.SetKey(key, ToStarlark(runtime.ValueOf(iter.Value().Interface())))
		}
		return dict
	}
	return starlark.String(v.String())
}
