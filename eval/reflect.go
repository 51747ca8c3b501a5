package eval

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

var errorType = reflect.TypeFor[error]()

// valueOf converts an evaluated value to a reflect.Value assignable to t.
// Nested lambda values are adapted when t is a func type.
func valueOf(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, errors.Wrapf(ErrInvalidOperands, "nil is not a %s", t)
	}
	if fn, ok := v.(*Func); ok && t.Kind() == reflect.Func {
		return fn.adapt(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if classify(rv.Type()) != notNumber && classify(t) != notNumber {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, errors.Wrapf(ErrInvalidOperands, "cannot use %s as %s", rv.Type(), t)
}

// convert implements the Convert operator.
func convert(v any, t reflect.Type) (any, error) {
	if v == nil {
		rv, err := valueOf(nil, t)
		if err != nil {
			return nil, err
		}
		return rv.Interface(), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t).Interface(), nil
	}
	return nil, errors.Wrapf(ErrInvalidOperands, "cannot convert %s to %s", rv.Type(), t)
}

// typeAs returns v when it is of type t, or nil.
func typeAs(v any, t reflect.Type) any {
	if is(v, t) {
		return v
	}
	return nil
}

// is reports whether v's dynamic type is t, or implements t when t is an
// interface.
func is(v any, t reflect.Type) bool {
	if v == nil || t == nil {
		return false
	}
	vt := reflect.TypeOf(v)
	if vt == t {
		return true
	}
	return t.Kind() == reflect.Interface && vt.Implements(t)
}

func paramType(ft reflect.Type, i int) reflect.Type {
	if ft.IsVariadic() && i >= ft.NumIn()-1 {
		return ft.In(ft.NumIn() - 1).Elem()
	}
	return ft.In(i)
}

// callGo calls a Go func value with evaluated arguments.
func callGo(fn reflect.Value, args []any) (any, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func || fn.IsNil() {
		return nil, errors.Wrapf(ErrNotCallable, "%v", fn)
	}
	ft := fn.Type()
	if ft.IsVariadic() {
		if len(args) < ft.NumIn()-1 {
			return nil, errors.Wrapf(ErrArity, "%s: got %d arguments, want at least %d", ft, len(args), ft.NumIn()-1)
		}
	} else if len(args) != ft.NumIn() {
		return nil, errors.Wrapf(ErrArity, "%s: got %d arguments, want %d", ft, len(args), ft.NumIn())
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		v, err := valueOf(a, paramType(ft, i))
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		in[i] = v
	}
	return unpack(fn.Call(in))
}

// unpack turns Go results into one value. A trailing error result is
// returned as the error; several remaining results become a []any.
func unpack(out []reflect.Value) (any, error) {
	n := len(out)
	if n > 0 && out[n-1].Type() == errorType {
		if !out[n-1].IsNil() {
			return nil, out[n-1].Interface().(error)
		}
		n--
	}
	switch n {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	}
	vals := make([]any, n)
	for i := range vals {
		vals[i] = out[i].Interface()
	}
	return vals, nil
}

// member reads a field, zero-argument method or string-keyed map entry.
func member(target any, name string) (any, error) {
	if isNil(target) {
		return nil, errors.Wrapf(ErrNilTarget, "member %s", name)
	}
	rv := reflect.ValueOf(target)
	if m := rv.MethodByName(name); m.IsValid() && m.Type().NumIn() == 0 {
		return unpack(m.Call(nil))
	}

	ev := reflect.Indirect(rv)
	switch ev.Kind() {
	case reflect.Struct:
		if sf, ok := ev.Type().FieldByName(name); ok && sf.IsExported() {
			return ev.FieldByIndex(sf.Index).Interface(), nil
		}
	case reflect.Map:
		if ev.Type().Key().Kind() == reflect.String {
			v := ev.MapIndex(reflect.ValueOf(name).Convert(ev.Type().Key()))
			if !v.IsValid() {
				return reflect.Zero(ev.Type().Elem()).Interface(), nil
			}
			return v.Interface(), nil
		}
	}
	return nil, errors.Wrapf(ErrNoMember, "%T.%s", target, name)
}

// method finds a method by name on target, preferring the pointer method set
// when target is addressable.
func method(target reflect.Value, name string) (reflect.Value, error) {
	if target.CanAddr() {
		if m := target.Addr().MethodByName(name); m.IsValid() {
			return m, nil
		}
	}
	if m := target.MethodByName(name); m.IsValid() {
		return m, nil
	}
	return reflect.Value{}, errors.Wrapf(ErrNoMember, "%s.%s", target.Type(), name)
}

// instantiate allocates a value of t. val is the value handed back to the
// caller; elem is its addressable contents, to be populated by initializers.
func instantiate(t reflect.Type) (val, elem reflect.Value) {
	if t.Kind() == reflect.Pointer {
		p := reflect.New(t.Elem())
		return p, p.Elem()
	}
	e := reflect.New(t).Elem()
	if t.Kind() == reflect.Map {
		e.Set(reflect.MakeMap(t))
	}
	return e, e
}

// adopt makes a constructor result populatable.
func adopt(v any) (val, elem reflect.Value, err error) {
	if v == nil {
		return reflect.Value{}, reflect.Value{}, errors.Wrap(ErrNilTarget, "constructor returned nil")
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, reflect.Value{}, errors.Wrap(ErrNilTarget, "constructor returned nil")
		}
		return rv, rv.Elem(), nil
	}
	e := reflect.New(rv.Type()).Elem()
	e.Set(rv)
	return e, e, nil
}

// field returns the settable exported field name of the struct elem.
func field(elem reflect.Value, name string) (reflect.Value, error) {
	if elem.Kind() != reflect.Struct {
		return reflect.Value{}, errors.Wrapf(ErrNoMember, "%s is not a struct", elem.Type())
	}
	sf, ok := elem.Type().FieldByName(name)
	if !ok || !sf.IsExported() {
		return reflect.Value{}, errors.Wrapf(ErrNoMember, "%s.%s", elem.Type(), name)
	}
	f := elem.FieldByIndex(sf.Index)
	if !f.CanSet() {
		return reflect.Value{}, errors.Errorf("%s.%s is not settable", elem.Type(), name)
	}
	return f, nil
}

// makeArray builds nested slices of elemType with the given bounds.
func makeArray(elemType reflect.Type, dims []int) reflect.Value {
	t := elemType
	for range dims[1:] {
		t = reflect.SliceOf(t)
	}
	s := reflect.MakeSlice(reflect.SliceOf(t), dims[0], dims[0])
	if len(dims) > 1 {
		for i := 0; i < dims[0]; i++ {
			s.Index(i).Set(makeArray(elemType, dims[1:]))
		}
	}
	return s
}

// adapt wraps f as a Go func of type t. Errors from f surface as panics in
// the caller, since t need not have an error result to carry them.
func (f *Func) adapt(t reflect.Type) (reflect.Value, error) {
	if t.IsVariadic() || t.NumIn() != f.arity {
		return reflect.Value{}, errors.Wrapf(ErrArity, "lambda of %d parameters as %s", f.arity, t)
	}
	return reflect.MakeFunc(t, func(in []reflect.Value) []reflect.Value {
		args := make([]any, len(in))
		for i, v := range in {
			args[i] = v.Interface()
		}
		res, err := f.Call(args...)

		out := make([]reflect.Value, t.NumOut())
		n := len(out)
		if n > 0 && t.Out(n-1) == errorType {
			n--
			if err != nil {
				out[n] = reflect.ValueOf(&err).Elem()
			} else {
				out[n] = reflect.Zero(errorType)
			}
		} else if err != nil {
			panic(err)
		}
		for i := 0; i < n; i++ {
			out[i] = reflect.Zero(t.Out(i))
		}
		if n > 0 && err == nil {
			v, cerr := valueOf(res, t.Out(0))
			if cerr != nil {
				panic(fmt.Sprintf("eval: lambda result: %v", cerr))
			}
			out[0] = v
		}
		return out
	}), nil
}
