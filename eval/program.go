package eval

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/chazu/exprcache/expr"
)

// evalFn evaluates one compiled node against a frame.
type evalFn func(f *frame) (any, error)

// frame holds the argument values of one lambda activation. Nested lambdas
// chain to the frame they were created in.
type frame struct {
	parent *frame
	slots  []any
}

func (f *frame) up(depth int) *frame {
	for ; depth > 0; depth-- {
		f = f.parent
	}
	return f
}

// scope maps parameter names to slots at compile time. escapes is shared by
// every scope of one program and is set when a nested lambda may keep a
// frame alive past the call.
type scope struct {
	parent  *scope
	names   map[string]int
	escapes *bool
}

func newScope(parent *scope, params []*expr.Parameter) (*scope, error) {
	s := &scope{parent: parent, names: make(map[string]int, len(params))}
	if parent != nil {
		s.escapes = parent.escapes
	} else {
		s.escapes = new(bool)
	}
	for i, p := range params {
		if p == nil {
			return nil, errors.Errorf("parameter %d is nil", i)
		}
		if _, dup := s.names[p.Name]; !dup {
			s.names[p.Name] = i
		}
	}
	return s, nil
}

func (s *scope) lookup(name string) (depth, index int, ok bool) {
	for ; s != nil; s = s.parent {
		if i, found := s.names[name]; found {
			return depth, i, true
		}
		depth++
	}
	return 0, 0, false
}

// Program is a compiled lambda. It is immutable and safe for concurrent use.
// The fixed-arity Call methods take their frame from a pool unless the body
// creates nested lambdas, which capture it.
type Program struct {
	arity int
	body  evalFn
	pool  *sync.Pool
}

// Compile compiles lam into a Program. Every parameter referenced by the body
// must be declared by lam or an enclosing nested lambda.
func Compile(lam *expr.Lambda) (*Program, error) {
	if lam == nil {
		return nil, errors.New("eval: nil lambda")
	}
	sc, err := newScope(nil, lam.Parameters)
	if err != nil {
		return nil, errors.Wrap(err, "eval")
	}
	body, err := compile(lam.Body, sc)
	if err != nil {
		return nil, errors.Wrap(err, "eval")
	}
	p := &Program{arity: len(lam.Parameters), body: body}
	if !*sc.escapes && p.arity > 0 {
		n := p.arity
		p.pool = &sync.Pool{New: func() any { return &frame{slots: make([]any, n)} }}
	}
	return p, nil
}

// Arity returns the number of parameters the program takes.
func (p *Program) Arity() int { return p.arity }

// Call runs the program with args. The slice is used as the frame as is.
func (p *Program) Call(args []any) (any, error) {
	if len(args) != p.arity {
		return nil, p.arityError(len(args))
	}
	return p.body(&frame{slots: args})
}

func (p *Program) arityError(n int) error {
	return errors.Wrapf(ErrArity, "got %d arguments, want %d", n, p.arity)
}

func (p *Program) acquire() *frame {
	if p.pool != nil {
		return p.pool.Get().(*frame)
	}
	return &frame{slots: make([]any, p.arity)}
}

func (p *Program) run(f *frame) (any, error) {
	v, err := p.body(f)
	if p.pool != nil {
		clear(f.slots)
		p.pool.Put(f)
	}
	return v, err
}

func (p *Program) Call0() (any, error) {
	if p.arity != 0 {
		return nil, p.arityError(0)
	}
	return p.body(&frame{})
}

func (p *Program) Call1(a any) (any, error) {
	if p.arity != 1 {
		return nil, p.arityError(1)
	}
	f := p.acquire()
	f.slots[0] = a
	return p.run(f)
}

func (p *Program) Call2(a, b any) (any, error) {
	if p.arity != 2 {
		return nil, p.arityError(2)
	}
	f := p.acquire()
	f.slots[0], f.slots[1] = a, b
	return p.run(f)
}

func (p *Program) Call3(a, b, c any) (any, error) {
	if p.arity != 3 {
		return nil, p.arityError(3)
	}
	f := p.acquire()
	f.slots[0], f.slots[1], f.slots[2] = a, b, c
	return p.run(f)
}

func (p *Program) Call4(a, b, c, d any) (any, error) {
	if p.arity != 4 {
		return nil, p.arityError(4)
	}
	f := p.acquire()
	f.slots[0], f.slots[1], f.slots[2], f.slots[3] = a, b, c, d
	return p.run(f)
}

func (p *Program) Call5(a, b, c, d, e any) (any, error) {
	if p.arity != 5 {
		return nil, p.arityError(5)
	}
	f := p.acquire()
	f.slots[0], f.slots[1], f.slots[2], f.slots[3], f.slots[4] = a, b, c, d, e
	return p.run(f)
}

// Func is the value of a nested lambda: a body closed over the frame it was
// created in.
type Func struct {
	arity int
	body  evalFn
	env   *frame
}

// Arity returns the number of parameters f takes.
func (f *Func) Arity() int { return f.arity }

// Call applies f to args.
func (f *Func) Call(args ...any) (any, error) {
	if len(args) != f.arity {
		return nil, errors.Wrapf(ErrArity, "got %d arguments, want %d", len(args), f.arity)
	}
	return f.body(&frame{parent: f.env, slots: args})
}
