package eval

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/chazu/exprcache/expr"
)

// compile translates n into a closure. Name resolution and every check that
// does not depend on runtime values happen here.
func compile(n expr.Node, sc *scope) (evalFn, error) {
	if expr.IsNil(n) {
		return nil, errors.New("missing expression")
	}

	switch n := n.(type) {
	case *expr.Constant:
		v := n.Value
		return func(*frame) (any, error) { return v, nil }, nil

	case *expr.Parameter:
		depth, idx, ok := sc.lookup(n.Name)
		if !ok {
			return nil, errors.Wrapf(ErrUnboundParameter, "%q", n.Name)
		}
		return func(f *frame) (any, error) {
			return f.up(depth).slots[idx], nil
		}, nil

	case *expr.Binary:
		return compileBinary(n, sc)

	case *expr.Unary:
		return compileUnary(n, sc)

	case *expr.Conditional:
		test, err := compile(n.Test, sc)
		if err != nil {
			return nil, err
		}
		ifTrue, err := compile(n.IfTrue, sc)
		if err != nil {
			return nil, err
		}
		ifFalse, err := compile(n.IfFalse, sc)
		if err != nil {
			return nil, err
		}
		return func(f *frame) (any, error) {
			t, err := test(f)
			if err != nil {
				return nil, err
			}
			b, ok := t.(bool)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidOperands, "condition is %T, not bool", t)
			}
			if b {
				return ifTrue(f)
			}
			return ifFalse(f)
		}, nil

	case *expr.MemberAccess:
		return compileMember(n, sc)

	case *expr.Call:
		return compileCall(n, sc)

	case *expr.New:
		mk, err := compileNew(n, sc)
		if err != nil {
			return nil, err
		}
		return func(f *frame) (any, error) {
			val, _, err := mk(f)
			if err != nil {
				return nil, err
			}
			return val.Interface(), nil
		}, nil

	case *expr.NewArray:
		return compileNewArray(n, sc)

	case *expr.ListInit:
		mk, err := compileNew(n.New, sc)
		if err != nil {
			return nil, err
		}
		inits, err := compileInits(n.Initializers, sc)
		if err != nil {
			return nil, err
		}
		return func(f *frame) (any, error) {
			val, elem, err := mk(f)
			if err != nil {
				return nil, err
			}
			for _, init := range inits {
				if err := init(f, val, elem); err != nil {
					return nil, err
				}
			}
			return val.Interface(), nil
		}, nil

	case *expr.MemberInit:
		mk, err := compileNew(n.New, sc)
		if err != nil {
			return nil, err
		}
		binds, err := compileBindings(n.Bindings, sc)
		if err != nil {
			return nil, err
		}
		return func(f *frame) (any, error) {
			val, elem, err := mk(f)
			if err != nil {
				return nil, err
			}
			for _, bind := range binds {
				if err := bind(f, elem); err != nil {
					return nil, err
				}
			}
			return val.Interface(), nil
		}, nil

	case *expr.Lambda:
		*sc.escapes = true
		inner, err := newScope(sc, n.Parameters)
		if err != nil {
			return nil, err
		}
		body, err := compile(n.Body, inner)
		if err != nil {
			return nil, err
		}
		arity := len(n.Parameters)
		return func(f *frame) (any, error) {
			return &Func{arity: arity, body: body, env: f}, nil
		}, nil

	case *expr.Invoke:
		target, err := compile(n.Target, sc)
		if err != nil {
			return nil, err
		}
		args, err := compileList(n.Arguments, sc)
		if err != nil {
			return nil, err
		}
		return func(f *frame) (any, error) {
			fn, err := target(f)
			if err != nil {
				return nil, err
			}
			vals, err := evalList(f, args)
			if err != nil {
				return nil, err
			}
			if lam, ok := fn.(*Func); ok {
				return lam.Call(vals...)
			}
			if isNil(fn) {
				return nil, errors.Wrap(ErrNilTarget, "invoke")
			}
			return callGo(reflect.ValueOf(fn), vals)
		}, nil

	case *expr.TypeBinary:
		target, err := compile(n.Target, sc)
		if err != nil {
			return nil, err
		}
		t := n.Type
		return func(f *frame) (any, error) {
			v, err := target(f)
			if err != nil {
				return nil, err
			}
			return is(v, t), nil
		}, nil
	}

	return nil, expr.Unsupported(n)
}

func compileList(nodes []expr.Node, sc *scope) ([]evalFn, error) {
	out := make([]evalFn, len(nodes))
	for i, n := range nodes {
		fn, err := compile(n, sc)
		if err != nil {
			return nil, err
		}
		out[i] = fn
	}
	return out, nil
}

func evalList(f *frame, fns []evalFn) ([]any, error) {
	vals := make([]any, len(fns))
	for i, fn := range fns {
		v, err := fn(f)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func compileBinary(n *expr.Binary, sc *scope) (evalFn, error) {
	if !n.Op.Valid() {
		return nil, errors.Errorf("unknown binary operator %d", int(n.Op))
	}
	left, err := compile(n.Left, sc)
	if err != nil {
		return nil, err
	}
	right, err := compile(n.Right, sc)
	if err != nil {
		return nil, err
	}

	if n.Method != nil {
		if n.Method.Func == nil {
			return nil, errors.Errorf("operator %s overload %s has no func", n.Op, n.Method.Name)
		}
		fn := reflect.ValueOf(n.Method.Func)
		return func(f *frame) (any, error) {
			vals, err := evalList(f, []evalFn{left, right})
			if err != nil {
				return nil, err
			}
			return callGo(fn, vals)
		}, nil
	}

	op := n.Op
	switch op {
	case expr.AndAlso, expr.OrElse:
		return func(f *frame) (any, error) {
			l, err := left(f)
			if err != nil {
				return nil, err
			}
			lb, ok := l.(bool)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidOperands, "%s on %T", op, l)
			}
			if lb == (op == expr.OrElse) {
				return lb, nil
			}
			r, err := right(f)
			if err != nil {
				return nil, err
			}
			rb, ok := r.(bool)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidOperands, "%s on %T", op, r)
			}
			return rb, nil
		}, nil

	case expr.Coalesce:
		return func(f *frame) (any, error) {
			l, err := left(f)
			if err != nil {
				return nil, err
			}
			if !isNil(l) {
				return l, nil
			}
			return right(f)
		}, nil
	}

	return func(f *frame) (any, error) {
		l, err := left(f)
		if err != nil {
			return nil, err
		}
		r, err := right(f)
		if err != nil {
			return nil, err
		}
		if op == expr.ArrayIndex {
			return index(l, r)
		}
		return binary(op, l, r)
	}, nil
}

func compileUnary(n *expr.Unary, sc *scope) (evalFn, error) {
	if !n.Op.Valid() {
		return nil, errors.Errorf("unknown unary operator %d", int(n.Op))
	}
	if n.Op == expr.Quote {
		quoted := n.Operand
		return func(*frame) (any, error) { return quoted, nil }, nil
	}

	operand, err := compile(n.Operand, sc)
	if err != nil {
		return nil, err
	}

	if n.Method != nil {
		if n.Method.Func == nil {
			return nil, errors.Errorf("operator %s overload %s has no func", n.Op, n.Method.Name)
		}
		fn := reflect.ValueOf(n.Method.Func)
		return func(f *frame) (any, error) {
			v, err := operand(f)
			if err != nil {
				return nil, err
			}
			return callGo(fn, []any{v})
		}, nil
	}

	op, t := n.Op, n.Type
	if (op == expr.Convert || op == expr.TypeAs) && t == nil {
		return nil, errors.Errorf("%s without a target type", op)
	}
	return func(f *frame) (any, error) {
		v, err := operand(f)
		if err != nil {
			return nil, err
		}
		switch op {
		case expr.Convert:
			return convert(v, t)
		case expr.TypeAs:
			return typeAs(v, t), nil
		}
		return unary(op, v)
	}, nil
}

func compileMember(n *expr.MemberAccess, sc *scope) (evalFn, error) {
	if n.Member == nil {
		return nil, errors.New("member access without a member")
	}
	m := n.Member

	if expr.IsNil(n.Target) {
		if m.Get == nil {
			return nil, errors.Errorf("static member %s has no getter", m.Name)
		}
		return func(*frame) (any, error) { return m.Get(nil), nil }, nil
	}

	target, err := compile(n.Target, sc)
	if err != nil {
		return nil, err
	}
	return func(f *frame) (any, error) {
		v, err := target(f)
		if err != nil {
			return nil, err
		}
		if m.Get != nil {
			return m.Get(v), nil
		}
		return member(v, m.Name)
	}, nil
}

func compileCall(n *expr.Call, sc *scope) (evalFn, error) {
	if n.Method == nil {
		return nil, errors.New("call without a method")
	}
	m := n.Method
	args, err := compileList(n.Arguments, sc)
	if err != nil {
		return nil, err
	}

	static := expr.IsNil(n.Target)
	if static && m.Func == nil {
		return nil, errors.Errorf("static call %s has no func", m.Name)
	}
	if static {
		fn := reflect.ValueOf(m.Func)
		return func(f *frame) (any, error) {
			vals, err := evalList(f, args)
			if err != nil {
				return nil, err
			}
			return callGo(fn, vals)
		}, nil
	}

	target, err := compile(n.Target, sc)
	if err != nil {
		return nil, err
	}
	var fn reflect.Value
	if m.Func != nil {
		fn = reflect.ValueOf(m.Func)
	}
	return func(f *frame) (any, error) {
		recv, err := target(f)
		if err != nil {
			return nil, err
		}
		vals, err := evalList(f, args)
		if err != nil {
			return nil, err
		}
		if fn.IsValid() {
			return callGo(fn, append([]any{recv}, vals...))
		}
		if isNil(recv) {
			return nil, errors.Wrapf(ErrNilTarget, "call %s", m.Name)
		}
		meth, err := method(reflect.ValueOf(recv), m.Name)
		if err != nil {
			return nil, err
		}
		return callGo(meth, vals)
	}, nil
}

// newFn yields a fresh instance as a value and its populatable contents.
type newFn func(f *frame) (val, elem reflect.Value, err error)

func compileNew(n *expr.New, sc *scope) (newFn, error) {
	if n == nil {
		return nil, errors.New("missing new expression")
	}
	args, err := compileList(n.Arguments, sc)
	if err != nil {
		return nil, err
	}

	if n.Constructor != nil && n.Constructor.Func != nil {
		ctor := reflect.ValueOf(n.Constructor.Func)
		return func(f *frame) (reflect.Value, reflect.Value, error) {
			vals, err := evalList(f, args)
			if err != nil {
				return reflect.Value{}, reflect.Value{}, err
			}
			v, err := callGo(ctor, vals)
			if err != nil {
				return reflect.Value{}, reflect.Value{}, err
			}
			return adopt(v)
		}, nil
	}

	t := n.Type
	if t == nil && n.Constructor != nil {
		t = n.Constructor.Type
	}
	if t == nil {
		return nil, errors.New("new without a type")
	}
	if len(args) > 0 && len(n.Members) != len(args) {
		return nil, errors.Errorf("new %s: %d arguments but %d members", t, len(args), len(n.Members))
	}
	names := make([]string, len(n.Members))
	for i, m := range n.Members {
		if m == nil {
			return nil, errors.Errorf("new %s: member %d is nil", t, i)
		}
		names[i] = m.Name
	}

	return func(f *frame) (reflect.Value, reflect.Value, error) {
		vals, err := evalList(f, args)
		if err != nil {
			return reflect.Value{}, reflect.Value{}, err
		}
		val, elem := instantiate(t)
		for i, v := range vals {
			fv, err := field(elem, names[i])
			if err != nil {
				return reflect.Value{}, reflect.Value{}, err
			}
			rv, err := valueOf(v, fv.Type())
			if err != nil {
				return reflect.Value{}, reflect.Value{}, errors.Wrapf(err, "member %s", names[i])
			}
			fv.Set(rv)
		}
		return val, elem, nil
	}, nil
}

func compileNewArray(n *expr.NewArray, sc *scope) (evalFn, error) {
	if n.ElemType == nil {
		return nil, errors.New("array without an element type")
	}
	items, err := compileList(n.Items, sc)
	if err != nil {
		return nil, err
	}
	et := n.ElemType

	if n.Mode == expr.ArrayBounds {
		if len(items) == 0 {
			return nil, errors.New("array bounds without dimensions")
		}
		return func(f *frame) (any, error) {
			vals, err := evalList(f, items)
			if err != nil {
				return nil, err
			}
			dims := make([]int, len(vals))
			for i, v := range vals {
				d, err := toInt(v)
				if err != nil {
					return nil, err
				}
				if d < 0 {
					return nil, errors.Errorf("negative array bound %d", d)
				}
				dims[i] = d
			}
			return makeArray(et, dims).Interface(), nil
		}, nil
	}

	return func(f *frame) (any, error) {
		vals, err := evalList(f, items)
		if err != nil {
			return nil, err
		}
		s := reflect.MakeSlice(reflect.SliceOf(et), len(vals), len(vals))
		for i, v := range vals {
			rv, err := valueOf(v, et)
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", i)
			}
			s.Index(i).Set(rv)
		}
		return s.Interface(), nil
	}, nil
}

// initFn applies one element initializer to a collection under
// construction.
type initFn func(f *frame, val, elem reflect.Value) error

func compileInits(inits []*expr.ElementInit, sc *scope) ([]initFn, error) {
	out := make([]initFn, len(inits))
	for i, init := range inits {
		if init == nil {
			return nil, errors.Errorf("initializer %d is nil", i)
		}
		args, err := compileList(init.Arguments, sc)
		if err != nil {
			return nil, err
		}
		out[i] = elementInit(init.Method, args)
	}
	return out, nil
}

func elementInit(m *expr.Method, args []evalFn) initFn {
	return func(f *frame, val, elem reflect.Value) error {
		vals, err := evalList(f, args)
		if err != nil {
			return err
		}

		if m != nil {
			if m.Func != nil {
				_, err := callGo(reflect.ValueOf(m.Func), append([]any{recvOf(val, elem)}, vals...))
				return err
			}
			meth, err := method(elem, m.Name)
			if err != nil {
				return err
			}
			_, err = callGo(meth, vals)
			return err
		}

		switch elem.Kind() {
		case reflect.Slice:
			for _, v := range vals {
				rv, err := valueOf(v, elem.Type().Elem())
				if err != nil {
					return err
				}
				elem.Set(reflect.Append(elem, rv))
			}
			return nil
		case reflect.Map:
			if len(vals) != 2 {
				return errors.Wrapf(ErrArity, "map initializer takes key and value, got %d", len(vals))
			}
			if elem.IsNil() {
				elem.Set(reflect.MakeMap(elem.Type()))
			}
			k, err := valueOf(vals[0], elem.Type().Key())
			if err != nil {
				return err
			}
			v, err := valueOf(vals[1], elem.Type().Elem())
			if err != nil {
				return err
			}
			elem.SetMapIndex(k, v)
			return nil
		}
		return errors.Errorf("%s has no default element initializer", elem.Type())
	}
}

func recvOf(val, elem reflect.Value) any {
	if elem.CanAddr() && elem.Kind() != reflect.Map && elem.Kind() != reflect.Slice {
		return elem.Addr().Interface()
	}
	return val.Interface()
}

// bindFn applies one member binding to a struct under construction.
type bindFn func(f *frame, elem reflect.Value) error

func compileBindings(bindings []expr.Binding, sc *scope) ([]bindFn, error) {
	out := make([]bindFn, len(bindings))
	for i, b := range bindings {
		fn, err := compileBinding(b, sc)
		if err != nil {
			return nil, err
		}
		out[i] = fn
	}
	return out, nil
}

func compileBinding(b expr.Binding, sc *scope) (bindFn, error) {
	if b == nil || b.Target() == nil {
		return nil, errors.New("binding without a member")
	}
	name := b.Target().Name

	switch b := b.(type) {
	case *expr.Assignment:
		value, err := compile(b.Value, sc)
		if err != nil {
			return nil, err
		}
		return func(f *frame, elem reflect.Value) error {
			fv, err := field(elem, name)
			if err != nil {
				return err
			}
			v, err := value(f)
			if err != nil {
				return err
			}
			rv, err := valueOf(v, fv.Type())
			if err != nil {
				return errors.Wrapf(err, "member %s", name)
			}
			fv.Set(rv)
			return nil
		}, nil

	case *expr.MemberBinding:
		nested, err := compileBindings(b.Bindings, sc)
		if err != nil {
			return nil, err
		}
		return func(f *frame, elem reflect.Value) error {
			fv, err := field(elem, name)
			if err != nil {
				return err
			}
			if fv.Kind() == reflect.Pointer {
				if fv.IsNil() {
					fv.Set(reflect.New(fv.Type().Elem()))
				}
				fv = fv.Elem()
			}
			for _, bind := range nested {
				if err := bind(f, fv); err != nil {
					return err
				}
			}
			return nil
		}, nil

	case *expr.ListBinding:
		inits, err := compileInits(b.Initializers, sc)
		if err != nil {
			return nil, err
		}
		return func(f *frame, elem reflect.Value) error {
			fv, err := field(elem, name)
			if err != nil {
				return err
			}
			for _, init := range inits {
				if err := init(f, fv, fv); err != nil {
					return err
				}
			}
			return nil
		}, nil
	}

	return nil, expr.Unsupported(b)
}
