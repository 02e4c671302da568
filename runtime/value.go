package runtime

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the representation held by a Value
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindHost
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindHost:
		return "host"
	}
	return "none"
}

// Markup represents a string that should not be HTML-escaped
type Markup string

// ErrAttributeNotFound is returned by Host.Attr when the name does not exist.
// Variable lookups treat it as a missing value rather than a failure.
var ErrAttributeNotFound = errors.New("attribute not found")

// CompareOp is an ordering comparison delegated to a Host
type CompareOp int

const (
	CompareLess CompareOp = iota
	CompareLessEqual
	CompareGreater
	CompareGreaterEqual
)

func (op CompareOp) String() string {
	switch op {
	case CompareLess:
		return "<"
	case CompareLessEqual:
		return "<="
	case CompareGreater:
		return ">"
	}
	return ">="
}

// flip returns the operator that gives the same answer with the operands swapped
func (op CompareOp) flip() CompareOp {
	switch op {
	case CompareLess:
		return CompareGreater
	case CompareLessEqual:
		return CompareGreaterEqual
	case CompareGreater:
		return CompareLess
	}
	return CompareLessEqual
}

// Host is an opaque value owned by the embedding program. The engine never
// inspects it directly; every operation the template language needs goes
// through this interface.
type Host interface {
	// Attr performs one step of a dotted lookup: attribute, key or index.
	Attr(name string) (Value, error)
	Truth() bool
	Text() string
	Int() (*big.Int, error)
	Float() (float64, error)
	Equal(other Value) (bool, error)
	Compare(op CompareOp, other Value) (bool, error)
	Contains(item Value) (bool, error)
	Identical(other Host) bool
	Iterate() ([]Value, error)
}

// Optional Host capabilities used by filters
type (
	// Lengther reports the length used by the length filter
	Lengther interface {
		Len() (int, error)
	}
	// Adder implements the add filter for host values
	Adder interface {
		Add(other Value) (Value, error)
	}
	// Unwrapper exposes the Go value behind a host
	Unwrapper interface {
		Unwrap() any
	}
)

// Value is a template value. The zero Value is None.
type Value struct {
	kind Kind
	safe bool
	str  string
	num  *big.Int
	flt  float64
	bl   bool
	host Host
}

// None returns the missing value
func None() Value { return Value{} }

// NewString returns an unsafe string that is escaped when autoescaping
func NewString(s string) Value { return Value{kind: KindString, str: s} }

// NewSafeString returns a string that is never escaped
func NewSafeString(s string) Value { return Value{kind: KindString, str: s, safe: true} }

// NewInt returns an arbitrary precision integer. n is not copied.
func NewInt(n *big.Int) Value { return Value{kind: KindInt, num: n} }

// NewInt64 returns an integer value
func NewInt64(n int64) Value { return NewInt(big.NewInt(n)) }

func NewFloat(f float64) Value { return Value{kind: KindFloat, flt: f} }

func NewBool(b bool) Value { return Value{kind: KindBool, bl: b} }

// NewHost wraps h. A nil host is None.
func NewHost(h Host) Value {
	if h == nil {
		return None()
	}
	return Value{kind: KindHost, host: h}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNone() bool { return v.kind == KindNone }

// IsSafe reports whether the value is a string marked safe for output
func (v Value) IsSafe() bool { return v.kind == KindString && v.safe }

// Host returns the wrapped host, or nil
func (v Value) Host() Host { return v.host }

// BigInt returns the integer of an Int value, or nil
func (v Value) BigInt() *big.Int {
	if v.kind != KindInt {
		return nil
	}
	return v.num
}

// Truth returns the truthiness of the value. None is false.
func (v Value) Truth() bool {
	switch v.kind {
	case KindString:
		return v.str != ""
	case KindInt:
		return v.num.Sign() != 0
	case KindFloat:
		return v.flt != 0
	case KindBool:
		return v.bl
	case KindHost:
		return v.host.Truth()
	}
	return false
}

// String renders the value as template output text, without escaping
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num.String()
	case KindFloat:
		return formatFloat(v.flt)
	case KindBool:
		if v.bl {
			return "True"
		}
		return "False"
	case KindHost:
		return v.host.Text()
	}
	return ""
}

// Interface returns a plain Go value for the value
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		if v.safe {
			return Markup(v.str)
		}
		return v.str
	case KindInt:
		if v.num.IsInt64() {
			return v.num.Int64()
		}
		return v.num
	case KindFloat:
		return v.flt
	case KindBool:
		return v.bl
	case KindHost:
		if u, ok := v.host.(Unwrapper); ok {
			return u.Unwrap()
		}
		return v.host
	}
	return nil
}

// asInt converts a value to an integer the way int() would for filter arguments
func (v Value) asInt() (*big.Int, bool) {
	switch v.kind {
	case KindInt:
		return v.num, true
	case KindBool:
		if v.bl {
			return big.NewInt(1), true
		}
		return big.NewInt(0), true
	case KindFloat:
		if math.IsNaN(v.flt) || math.IsInf(v.flt, 0) {
			return nil, false
		}
		n, _ := big.NewFloat(math.Trunc(v.flt)).Int(nil)
		return n, true
	case KindString:
		n, ok := new(big.Int).SetString(strings.TrimSpace(v.str), 10)
		return n, ok
	case KindHost:
		n, err := v.host.Int()
		return n, err == nil
	}
	return nil, false
}

// ValueOf converts a Go value into a template value. Strings, integers,
// floats and booleans of any named type become native values; Hosts pass
// through; everything else is wrapped in a reflection based host.
func ValueOf(x any) Value {
	switch x := x.(type) {
	case nil:
		return None()
	case Value:
		return x
	case Host:
		return NewHost(x)
	case Markup:
		return NewSafeString(string(x))
	case string:
		return NewString(x)
	case bool:
		return NewBool(x)
	case int:
		return NewInt64(int64(x))
	case int64:
		return NewInt64(x)
	case float64:
		return NewFloat(x)
	case *big.Int:
		if x == nil {
			return None()
		}
		return NewInt(x)
	case big.Int:
		return NewInt(new(big.Int).Set(&x))
	case fmt.Stringer:
		if _, isTime := x.(time.Time); !isTime && !isContainer(x) {
			return NewString(x.String())
		}
	case error:
		return NewString(x.Error())
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.String:
		return NewString(rv.String())
	case reflect.Bool:
		return NewBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewInt64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return NewInt(new(big.Int).SetUint64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return NewFloat(rv.Float())
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return None()
		}
	}
	return NewHost(newReflectHost(rv))
}

func isContainer(x any) bool {
	switch reflect.Indirect(reflect.ValueOf(x)).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	}
	return false
}

// formatFloat renders f the way Python's repr does: the shortest round
// tripping digits, scientific notation outside [1e-4, 1e16), and a
// trailing ".0" on integral values.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if f == 0 {
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
