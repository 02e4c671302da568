package runtime

import (
	"cmp"
	"fmt"
	"math/big"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// reflectHost exposes Go maps, slices, arrays and structs to templates
type reflectHost struct {
	v reflect.Value
}

func newReflectHost(v reflect.Value) *reflectHost {
	return &reflectHost{v: v}
}

// target follows pointers and interfaces to the value that holds data
func (h *reflectHost) target() reflect.Value {
	v := h.v
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func (h *reflectHost) Unwrap() any {
	if !h.v.CanInterface() {
		return nil
	}
	return h.v.Interface()
}

func (h *reflectHost) Attr(name string) (Value, error) {
	if method := h.method(name); method.IsValid() {
		return callMethod(method, name)
	}

	v := h.target()
	switch v.Kind() {
	case reflect.Map:
		if k := v.Type().Key().Kind(); k == reflect.String || k == reflect.Interface {
			key := reflect.ValueOf(name).Convert(v.Type().Key())
			if item := v.MapIndex(key); item.IsValid() {
				return ValueOf(item.Interface()), nil
			}
		} else if key, ok := convertKey(name, v.Type().Key()); ok {
			if item := v.MapIndex(key); item.IsValid() {
				return ValueOf(item.Interface()), nil
			}
		}
		switch name {
		case "items":
			return ValueOf(h.items()), nil
		case "keys":
			return ValueOf(h.keys()), nil
		case "values":
			values := make([]any, 0, v.Len())
			for _, key := range h.keys() {
				values = append(values, v.MapIndex(reflect.ValueOf(key)).Interface())
			}
			return ValueOf(values), nil
		}
	case reflect.Slice, reflect.Array:
		if index, err := strconv.Atoi(name); err == nil {
			if index < 0 {
				index += v.Len()
			}
			if index >= 0 && index < v.Len() {
				return ValueOf(v.Index(index).Interface()), nil
			}
		}
	case reflect.Struct:
		if field, ok := structField(v, name); ok {
			return ValueOf(field.Interface()), nil
		}
	}
	return None(), fmt.Errorf("%w: %s has no attribute %q", ErrAttributeNotFound, h.typeName(), name)
}

var errorType = reflect.TypeFor[error]()

// method finds an exported method with no arguments, matching the template
// name either exactly or with its first letter upper-cased. A second result
// must be an error.
func (h *reflectHost) method(name string) reflect.Value {
	if !h.v.IsValid() {
		return reflect.Value{}
	}
	for _, candidate := range []string{name, exported(name)} {
		m := h.v.MethodByName(candidate)
		if !m.IsValid() || m.Type().NumIn() != 0 {
			continue
		}
		switch m.Type().NumOut() {
		case 1:
			return m
		case 2:
			if m.Type().Out(1) == errorType {
				return m
			}
		}
	}
	return reflect.Value{}
}

func callMethod(m reflect.Value, name string) (Value, error) {
	out := m.Call(nil)
	if len(out) == 2 && !out[1].IsNil() {
		return None(), fmt.Errorf("calling %s: %w", name, out[1].Interface().(error))
	}
	return ValueOf(out[0].Interface()), nil
}

func structField(v reflect.Value, name string) (reflect.Value, bool) {
	for _, candidate := range []string{name, exported(name)} {
		field, ok := v.Type().FieldByName(candidate)
		if !ok || !field.IsExported() {
			continue
		}
		return v.FieldByIndex(field.Index), true
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Type().Field(i)
		if !field.IsExported() {
			continue
		}
		if tag, _, _ := strings.Cut(field.Tag.Get("json"), ","); tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func exported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

func convertKey(name string, keyType reflect.Type) (reflect.Value, bool) {
	switch keyType.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(n).Convert(keyType), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(n).Convert(keyType), true
	}
	return reflect.Value{}, false
}

// keys returns the map keys in a stable order
func (h *reflectHost) keys() []any {
	v := h.target()
	keys := v.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
	})
	result := make([]any, len(keys))
	for i, key := range keys {
		result[i] = key.Interface()
	}
	return result
}

func (h *reflectHost) items() [][]any {
	v := h.target()
	var items [][]any
	for _, key := range h.keys() {
		items = append(items, []any{key, v.MapIndex(reflect.ValueOf(key)).Interface()})
	}
	return items
}

func (h *reflectHost) Truth() bool {
	v := h.target()
	switch v.Kind() {
	case reflect.Invalid:
		return false
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Chan:
		return v.Len() > 0
	}
	return true
}

func (h *reflectHost) Text() string {
	if stringer, ok := h.Unwrap().(fmt.Stringer); ok {
		return stringer.String()
	}
	return h.repr()
}

func (h *reflectHost) repr() string {
	v := h.target()
	switch v.Kind() {
	case reflect.Invalid:
		return "None"
	case reflect.Slice, reflect.Array:
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = repr(ValueOf(v.Index(i).Interface()))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case reflect.Map:
		var parts []string
		for _, key := range h.keys() {
			parts = append(parts, repr(ValueOf(key))+": "+repr(ValueOf(v.MapIndex(reflect.ValueOf(key)).Interface())))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(v.Interface())
}

func (h *reflectHost) Int() (*big.Int, error) {
	return nil, fmt.Errorf("%s cannot be converted to an integer", h.typeName())
}

func (h *reflectHost) Float() (float64, error) {
	return 0, fmt.Errorf("%s cannot be converted to a float", h.typeName())
}

func (h *reflectHost) Equal(other Value) (bool, error) {
	o, ok := other.Host().(*reflectHost)
	if !ok {
		return false, nil
	}
	a, b := h.target(), o.target()
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid(), nil
	}
	if a.Kind() == reflect.Slice || a.Kind() == reflect.Array {
		if b.Kind() != reflect.Slice && b.Kind() != reflect.Array || a.Len() != b.Len() {
			return false, nil
		}
		for i := 0; i < a.Len(); i++ {
			eq, err := Equal(ValueOf(a.Index(i).Interface()), ValueOf(b.Index(i).Interface()))
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	}
	return reflect.DeepEqual(a.Interface(), b.Interface()), nil
}

// Compare orders sequences lexicographically, like Python lists
func (h *reflectHost) Compare(op CompareOp, other Value) (bool, error) {
	a := h.target()
	o, ok := other.Host().(*reflectHost)
	if !ok || (a.Kind() != reflect.Slice && a.Kind() != reflect.Array) {
		return false, fmt.Errorf("'%s' not supported between %s and %s", op, h.typeName(), other.Kind())
	}
	b := o.target()
	if b.Kind() != reflect.Slice && b.Kind() != reflect.Array {
		return false, fmt.Errorf("'%s' not supported between %s and %s", op, h.typeName(), o.typeName())
	}
	for i := 0; i < a.Len() && i < b.Len(); i++ {
		left, right := ValueOf(a.Index(i).Interface()), ValueOf(b.Index(i).Interface())
		eq, err := Equal(left, right)
		if err != nil {
			return false, err
		}
		if !eq {
			return Compare(op, left, right)
		}
	}
	switch op {
	case CompareLess:
		return a.Len() < b.Len(), nil
	case CompareLessEqual:
		return a.Len() <= b.Len(), nil
	case CompareGreater:
		return a.Len() > b.Len(), nil
	}
	return a.Len() >= b.Len(), nil
}

func (h *reflectHost) Contains(item Value) (bool, error) {
	v := h.target()
	switch v.Kind() {
	case reflect.Map:
		for _, key := range h.keys() {
			if eq, _ := Equal(ValueOf(key), item); eq {
				return true, nil
			}
		}
		return false, nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if eq, _ := Equal(ValueOf(v.Index(i).Interface()), item); eq {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("argument of type %s is not iterable", h.typeName())
}

// Identical reports whether both hosts refer to the same Go object. Only
// reference kinds have an identity.
func (h *reflectHost) Identical(other Host) bool {
	o, ok := other.(*reflectHost)
	if !ok || h.v.Kind() != o.v.Kind() {
		return false
	}
	switch h.v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return h.v.Pointer() == o.v.Pointer()
	case reflect.Slice:
		return h.v.Pointer() == o.v.Pointer() && h.v.Len() == o.v.Len()
	}
	return false
}

func (h *reflectHost) Iterate() ([]Value, error) {
	v := h.target()
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		values := make([]Value, v.Len())
		for i := range values {
			values[i] = ValueOf(v.Index(i).Interface())
		}
		return values, nil
	case reflect.Map:
		keys := h.keys()
		values := make([]Value, len(keys))
		for i, key := range keys {
			values[i] = ValueOf(key)
		}
		return values, nil
	}
	return nil, fmt.Errorf("%s object is not iterable", h.typeName())
}

func (h *reflectHost) Len() (int, error) {
	v := h.target()
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Chan:
		return v.Len(), nil
	}
	return 0, fmt.Errorf("object of type %s has no len()", h.typeName())
}

// Add concatenates sequences
func (h *reflectHost) Add(other Value) (Value, error) {
	a := h.target()
	o, ok := other.Host().(*reflectHost)
	if !ok || (a.Kind() != reflect.Slice && a.Kind() != reflect.Array) {
		return None(), fmt.Errorf("unsupported operand types for +: %s and %s", h.typeName(), other.Kind())
	}
	b := o.target()
	if b.Kind() != reflect.Slice && b.Kind() != reflect.Array {
		return None(), fmt.Errorf("unsupported operand types for +: %s and %s", h.typeName(), o.typeName())
	}
	joined := make([]any, 0, a.Len()+b.Len())
	for _, seq := range []reflect.Value{a, b} {
		for i := 0; i < seq.Len(); i++ {
			joined = append(joined, seq.Index(i).Interface())
		}
	}
	return ValueOf(joined), nil
}

func (h *reflectHost) typeName() string {
	if !h.v.IsValid() {
		return "None"
	}
	return h.v.Type().String()
}

// repr renders a value the way Python's repr does, for container output
func repr(v Value) string {
	switch v.Kind() {
	case KindNone:
		return "None"
	case KindString:
		return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`).Replace(v.String()) + "'"
	case KindHost:
		if h, ok := v.Host().(*reflectHost); ok {
			return h.repr()
		}
	}
	return v.String()
}
