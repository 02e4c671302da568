package runtime

import (
	"math"
	"math/big"
	"strings"
)

// number is the exact mathematical value of a numeric Value
type number struct {
	value *big.Float
	nan   bool
}

// numeric converts Int, Float and Bool values to an exact number. Integers
// keep every bit, so huge integers still order correctly against floats.
func numeric(v Value) (number, bool) {
	switch v.Kind() {
	case KindInt:
		return number{value: new(big.Float).SetInt(v.num)}, true
	case KindFloat:
		if math.IsNaN(v.flt) {
			return number{nan: true}, true
		}
		return number{value: new(big.Float).SetFloat64(v.flt)}, true
	case KindBool:
		if v.bl {
			return number{value: big.NewFloat(1)}, true
		}
		return number{value: big.NewFloat(0)}, true
	}
	return number{}, false
}

// Equal implements ==. Hosts decide for themselves; numbers compare by value
// across Int, Float and Bool; strings compare bytes; None equals only None.
func Equal(a, b Value) (bool, error) {
	switch {
	case a.Kind() == KindHost:
		return a.host.Equal(b)
	case b.Kind() == KindHost:
		return b.host.Equal(a)
	case a.Kind() == KindNone || b.Kind() == KindNone:
		return a.Kind() == b.Kind(), nil
	case a.Kind() == KindString || b.Kind() == KindString:
		return a.Kind() == b.Kind() && a.str == b.str, nil
	}

	x, _ := numeric(a)
	y, _ := numeric(b)
	if x.nan || y.nan {
		return false, nil
	}
	return x.value.Cmp(y.value) == 0, nil
}

// NotEqual implements !=, the negation of Equal
func NotEqual(a, b Value) (bool, error) {
	eq, err := Equal(a, b)
	if err != nil {
		return false, err
	}
	return !eq, nil
}

// Compare implements the ordering operators. Anything involving None, or two
// values of unrelated kinds, is false.
func Compare(op CompareOp, a, b Value) (bool, error) {
	switch {
	case a.Kind() == KindHost:
		return a.host.Compare(op, b)
	case b.Kind() == KindHost:
		return b.host.Compare(op.flip(), a)
	case a.Kind() == KindNone || b.Kind() == KindNone:
		return false, nil
	case a.Kind() == KindString && b.Kind() == KindString:
		return ordered(op, strings.Compare(a.str, b.str)), nil
	case a.Kind() == KindString || b.Kind() == KindString:
		return false, nil
	}

	x, _ := numeric(a)
	y, _ := numeric(b)
	if x.nan || y.nan {
		return false, nil
	}
	return ordered(op, x.value.Cmp(y.value)), nil
}

func ordered(op CompareOp, c int) bool {
	switch op {
	case CompareLess:
		return c < 0
	case CompareLessEqual:
		return c <= 0
	case CompareGreater:
		return c > 0
	}
	return c >= 0
}

// Contains reports whether item is in container. known is false when the
// question has no answer, such as a number in a string, and then neither in
// nor not in holds.
func Contains(container, item Value) (result, known bool, err error) {
	switch container.Kind() {
	case KindHost:
		result, err = container.host.Contains(item)
		if err != nil {
			return false, false, err
		}
		return result, true, nil
	case KindString:
		if item.Kind() == KindString {
			return strings.Contains(container.str, item.str), true, nil
		}
	}
	return false, false, nil
}

// Is implements identity. Only None, booleans and hosts have an identity.
func Is(a, b Value) bool {
	switch {
	case a.Kind() == KindNone && b.Kind() == KindNone:
		return true
	case a.Kind() == KindBool && b.Kind() == KindBool:
		return a.bl == b.bl
	case a.Kind() == KindHost && b.Kind() == KindHost:
		return a.host.Identical(b.host)
	}
	return false
}

// IsNot implements the negated identity test
func IsNot(a, b Value) bool {
	switch {
	case a.Kind() == KindNone && b.Kind() == KindNone:
		return false
	case a.Kind() == KindBool && b.Kind() == KindBool:
		return a.bl != b.bl
	case a.Kind() == KindHost && b.Kind() == KindHost:
		return !a.host.Identical(b.host)
	}
	return true
}
