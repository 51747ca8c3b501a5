package eval

import (
	"cmp"
	"math"
	"reflect"

	"github.com/pkg/errors"

	"github.com/chazu/exprcache/expr"
)

type numClass int

const (
	notNumber numClass = iota
	signed
	unsigned
	floating
)

var (
	int64Type   = reflect.TypeFor[int64]()
	uint64Type  = reflect.TypeFor[uint64]()
	float64Type = reflect.TypeFor[float64]()
)

func classify(t reflect.Type) numClass {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return signed
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return unsigned
	case reflect.Float32, reflect.Float64:
		return floating
	}
	return notNumber
}

func numberOf(v any) (reflect.Value, numClass) {
	if v == nil {
		return reflect.Value{}, notNumber
	}
	rv := reflect.ValueOf(v)
	return rv, classify(rv.Type())
}

func asInt(rv reflect.Value, c numClass) int64 {
	switch c {
	case unsigned:
		return int64(rv.Uint())
	case floating:
		return int64(rv.Float())
	}
	return rv.Int()
}

func asUint(rv reflect.Value, c numClass) uint64 {
	switch c {
	case signed:
		return uint64(rv.Int())
	case floating:
		return uint64(rv.Float())
	}
	return rv.Uint()
}

func asFloat(rv reflect.Value, c numClass) float64 {
	switch c {
	case signed:
		return float64(rv.Int())
	case unsigned:
		return float64(rv.Uint())
	}
	return rv.Float()
}

// toInt converts a numeric value to int for indexing and array bounds.
func toInt(v any) (int, error) {
	rv, c := numberOf(v)
	if c == notNumber {
		return 0, errors.Wrapf(ErrInvalidOperands, "%T is not an integer", v)
	}
	return int(asInt(rv, c)), nil
}

// binary applies op to two evaluated operands. Operands of one numeric type
// keep that type; mixed operands widen to float64 when either is floating,
// uint64 when both are unsigned, and int64 otherwise.
func binary(op expr.BinaryOp, l, r any) (any, error) {
	if lb, ok := l.(bool); ok {
		if rb, ok := r.(bool); ok {
			return logical(op, lb, rb)
		}
	}
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			if op == expr.Add {
				return ls + rs, nil
			}
			if res, ok := compare(op, ls, rs); ok {
				return res, nil
			}
			return nil, errors.Wrapf(ErrInvalidOperands, "%s on strings", op)
		}
	}

	lv, lc := numberOf(l)
	rv, rc := numberOf(r)
	if lc == notNumber || rc == notNumber {
		switch op {
		case expr.Equal:
			return equal(l, r), nil
		case expr.NotEqual:
			return !equal(l, r), nil
		}
		return nil, errors.Wrapf(ErrInvalidOperands, "%s on %T and %T", op, l, r)
	}

	target := lv.Type()
	if lv.Type() != rv.Type() {
		switch {
		case lc == floating || rc == floating:
			target = float64Type
		case lc == unsigned && rc == unsigned:
			target = uint64Type
		default:
			target = int64Type
		}
	}

	var (
		res any
		err error
	)
	switch classify(target) {
	case floating:
		a, b := asFloat(lv, lc), asFloat(rv, rc)
		if c, ok := compare(op, a, b); ok {
			return c, nil
		}
		res, err = floatArith(op, a, b)
	case unsigned:
		a, b := asUint(lv, lc), asUint(rv, rc)
		if c, ok := compare(op, a, b); ok {
			return c, nil
		}
		res, err = intArith(op, a, b)
	default:
		a, b := asInt(lv, lc), asInt(rv, rc)
		if c, ok := compare(op, a, b); ok {
			return c, nil
		}
		res, err = intArith(op, a, b)
	}
	if err != nil {
		return nil, err
	}
	return reflect.ValueOf(res).Convert(target).Interface(), nil
}

func compare[T cmp.Ordered](op expr.BinaryOp, a, b T) (bool, bool) {
	switch op {
	case expr.Equal:
		return a == b, true
	case expr.NotEqual:
		return a != b, true
	case expr.LessThan:
		return a < b, true
	case expr.LessThanOrEqual:
		return a <= b, true
	case expr.GreaterThan:
		return a > b, true
	case expr.GreaterThanOrEqual:
		return a >= b, true
	}
	return false, false
}

func intArith[T int64 | uint64](op expr.BinaryOp, a, b T) (T, error) {
	switch op {
	case expr.Add:
		return a + b, nil
	case expr.Subtract:
		return a - b, nil
	case expr.Multiply:
		return a * b, nil
	case expr.Divide:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		return a / b, nil
	case expr.Modulo:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		return a % b, nil
	case expr.Power:
		return T(math.Pow(float64(a), float64(b))), nil
	case expr.And:
		return a & b, nil
	case expr.Or:
		return a | b, nil
	case expr.ExclusiveOr:
		return a ^ b, nil
	case expr.LeftShift, expr.RightShift:
		if b < 0 {
			return 0, errors.Wrap(ErrInvalidOperands, "negative shift count")
		}
		if op == expr.LeftShift {
			return a << b, nil
		}
		return a >> b, nil
	}
	return 0, errors.Wrapf(ErrInvalidOperands, "%s on integers", op)
}

func floatArith(op expr.BinaryOp, a, b float64) (float64, error) {
	switch op {
	case expr.Add:
		return a + b, nil
	case expr.Subtract:
		return a - b, nil
	case expr.Multiply:
		return a * b, nil
	case expr.Divide:
		return a / b, nil
	case expr.Modulo:
		return math.Mod(a, b), nil
	case expr.Power:
		return math.Pow(a, b), nil
	}
	return 0, errors.Wrapf(ErrInvalidOperands, "%s on floats", op)
}

func logical(op expr.BinaryOp, a, b bool) (bool, error) {
	switch op {
	case expr.And, expr.AndAlso:
		return a && b, nil
	case expr.Or, expr.OrElse:
		return a || b, nil
	case expr.ExclusiveOr, expr.NotEqual:
		return a != b, nil
	case expr.Equal:
		return a == b, nil
	}
	return false, errors.Wrapf(ErrInvalidOperands, "%s on bools", op)
}

func equal(l, r any) bool {
	if isNil(l) || isNil(r) {
		return isNil(l) && isNil(r)
	}
	return reflect.DeepEqual(l, r)
}

// isNil reports whether v is nil or a typed nil of a nillable kind.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// index implements ArrayIndex over slices, arrays, strings and maps.
func index(target, key any) (any, error) {
	if isNil(target) {
		return nil, errors.Wrap(ErrNilTarget, "index")
	}
	tv := reflect.Indirect(reflect.ValueOf(target))
	switch tv.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		i, err := toInt(key)
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= tv.Len() {
			return nil, errors.Errorf("index %d out of range [0:%d]", i, tv.Len())
		}
		return tv.Index(i).Interface(), nil
	case reflect.Map:
		kv, err := valueOf(key, tv.Type().Key())
		if err != nil {
			return nil, err
		}
		v := tv.MapIndex(kv)
		if !v.IsValid() {
			return reflect.Zero(tv.Type().Elem()).Interface(), nil
		}
		return v.Interface(), nil
	}
	return nil, errors.Wrapf(ErrInvalidOperands, "cannot index %T", target)
}

// unary applies a value-level unary operator. Convert, TypeAs and Quote are
// handled by the compiler.
func unary(op expr.UnaryOp, v any) (any, error) {
	switch op {
	case expr.Not:
		if b, ok := v.(bool); ok {
			return !b, nil
		}
		return complement(v)
	case expr.OnesComplement:
		return complement(v)
	case expr.ArrayLength:
		if isNil(v) {
			return 0, nil
		}
		rv := reflect.Indirect(reflect.ValueOf(v))
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.String, reflect.Map, reflect.Chan:
			return rv.Len(), nil
		}
		return nil, errors.Wrapf(ErrInvalidOperands, "length of %T", v)
	}

	rv, c := numberOf(v)
	if c == notNumber {
		return nil, errors.Wrapf(ErrInvalidOperands, "%s on %T", op, v)
	}
	switch op {
	case expr.UnaryPlus:
		return v, nil
	case expr.Negate:
		out := reflect.New(rv.Type()).Elem()
		switch c {
		case signed:
			out.SetInt(-rv.Int())
		case unsigned:
			out.SetUint(-rv.Uint())
		default:
			out.SetFloat(-rv.Float())
		}
		return out.Interface(), nil
	}
	return nil, errors.Wrapf(ErrInvalidOperands, "unknown unary operator %s", op)
}

func complement(v any) (any, error) {
	rv, c := numberOf(v)
	if c != signed && c != unsigned {
		return nil, errors.Wrapf(ErrInvalidOperands, "complement of %T", v)
	}
	out := reflect.New(rv.Type()).Elem()
	if c == signed {
		out.SetInt(^rv.Int())
	} else {
		out.SetUint(^rv.Uint())
	}
	return out.Interface(), nil
}
