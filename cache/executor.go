package cache

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/chazu/exprcache/expr"
	"github.com/chazu/exprcache/rewrite"
)

// Executor pairs one compiled callable with the paths of the captures it
// expects as trailing arguments. Executors are immutable once built and may
// be shared between goroutines.
type Executor struct {
	id       uuid.UUID
	key      string
	arity    int // explicit parameters
	captures []capture
	fn       Callable
	invokers
}

type capture struct {
	key  string
	typ  reflect.Type
	path expr.Path
}

func newExecutor(key string, fn Callable, arity int, caps []*rewrite.Entry) *Executor {
	e := &Executor{
		id:       uuid.New(),
		key:      key,
		arity:    arity,
		fn:       fn,
		invokers: bindInvokers(fn),
	}
	for _, c := range caps {
		e.captures = append(e.captures, capture{key: c.Key, typ: c.Param.Type, path: c.Path})
	}
	return e
}

// ID identifies this build of the executor.
func (e *Executor) ID() uuid.UUID { return e.id }

// Key returns the signature the executor is cached under.
func (e *Executor) Key() string { return e.key }

// Arity returns the number of explicit arguments Execute expects.
func (e *Executor) Arity() int { return e.arity }

// Captures returns the capture keys and their paths, in argument order.
func (e *Executor) Captures() map[string]expr.Path {
	out := make(map[string]expr.Path, len(e.captures))
	for _, c := range e.captures {
		out[c.key] = c.path
	}
	return out
}

// Execute runs the compiled callable with args followed by the capture
// values found in tree, which must be the tree presented by this call.
func (e *Executor) Execute(tree expr.Node, args ...any) (any, error) {
	if len(args) != e.arity {
		return nil, e.arityError(len(args))
	}
	switch len(args) {
	case 0:
		return e.Execute0(tree)
	case 1:
		return e.Execute1(tree, args[0])
	case 2:
		return e.Execute2(tree, args[0], args[1])
	case 3:
		return e.Execute3(tree, args[0], args[1], args[2])
	case 4:
		return e.Execute4(tree, args[0], args[1], args[2], args[3])
	}
	return e.generic(tree, args)
}

// Execute0 runs an executor whose lambda takes no explicit parameters.
func (e *Executor) Execute0(tree expr.Node) (any, error) {
	if e.arity != 0 {
		return nil, e.arityError(0)
	}
	switch len(e.captures) {
	case 0:
		return e.call0()
	case 1:
		c, err := e.capture(tree, 0)
		if err != nil {
			return nil, err
		}
		return e.call1(c)
	}
	return e.generic(tree, nil)
}

// Execute1 runs a one-parameter executor. With at most one capture it
// calls the bound fixed-arity invoker directly.
func (e *Executor) Execute1(tree expr.Node, a any) (any, error) {
	if e.arity != 1 {
		return nil, e.arityError(1)
	}
	switch len(e.captures) {
	case 0:
		return e.call1(a)
	case 1:
		c, err := e.capture(tree, 0)
		if err != nil {
			return nil, err
		}
		return e.call2(a, c)
	}
	return e.generic(tree, []any{a})
}

// Execute2 is Execute1 for two parameters.
func (e *Executor) Execute2(tree expr.Node, a, b any) (any, error) {
	if e.arity != 2 {
		return nil, e.arityError(2)
	}
	switch len(e.captures) {
	case 0:
		return e.call2(a, b)
	case 1:
		c, err := e.capture(tree, 0)
		if err != nil {
			return nil, err
		}
		return e.call3(a, b, c)
	}
	return e.generic(tree, []any{a, b})
}

// Execute3 is Execute1 for three parameters.
func (e *Executor) Execute3(tree expr.Node, a, b, c any) (any, error) {
	if e.arity != 3 {
		return nil, e.arityError(3)
	}
	switch len(e.captures) {
	case 0:
		return e.call3(a, b, c)
	case 1:
		d, err := e.capture(tree, 0)
		if err != nil {
			return nil, err
		}
		return e.call4(a, b, c, d)
	}
	return e.generic(tree, []any{a, b, c})
}

// Execute4 is Execute1 for four parameters.
func (e *Executor) Execute4(tree expr.Node, a, b, c, d any) (any, error) {
	if e.arity != 4 {
		return nil, e.arityError(4)
	}
	switch len(e.captures) {
	case 0:
		return e.call4(a, b, c, d)
	case 1:
		x, err := e.capture(tree, 0)
		if err != nil {
			return nil, err
		}
		return e.call5(a, b, c, d, x)
	}
	return e.generic(tree, []any{a, b, c, d})
}

// generic packs every argument into one slice.
func (e *Executor) generic(tree expr.Node, args []any) (any, error) {
	all := make([]any, 0, len(args)+len(e.captures))
	all = append(all, args...)
	for i := range e.captures {
		c, err := e.capture(tree, i)
		if err != nil {
			return nil, err
		}
		all = append(all, c)
	}
	return e.fn.Call(all)
}

// capture re-locates capture i in tree and returns its value.
func (e *Executor) capture(tree expr.Node, i int) (any, error) {
	c := e.captures[i]
	n, err := c.path.Resolve(tree)
	if err != nil {
		return nil, fmt.Errorf("cache: %s: capture %s: %w", e.key, c.key, err)
	}
	k, ok := n.(*expr.Constant)
	if !ok {
		return nil, fmt.Errorf("cache: %s: capture %s: %w", e.key, c.key, &expr.PathError{
			Path:   c.path,
			Step:   c.path.Len(),
			Reason: fmt.Sprintf("found %s, want Constant", n.Kind()),
		})
	}
	if t := k.ValueType(); t == nil || t != c.typ {
		return nil, fmt.Errorf("cache: %s: capture %s: %w", e.key, c.key, &expr.PathError{
			Path:   c.path,
			Step:   c.path.Len(),
			Reason: fmt.Sprintf("constant of type %v", t),
		})
	}
	return k.Value, nil
}

func (e *Executor) arityError(got int) error {
	return fmt.Errorf("cache: %s: %w: got %d, want %d", e.key, ErrArity, got, e.arity)
}
