package cache

import "github.com/chazu/exprcache/expr"

// Compiler turns a rewritten lambda into a Callable. The lambda's parameters
// are the original explicit parameters followed by one parameter per promoted
// capture. Implementations must be deterministic for a given tree shape and
// return callables that are safe for concurrent use.
type Compiler interface {
	Compile(lam *expr.Lambda) (Callable, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(lam *expr.Lambda) (Callable, error)

func (f CompilerFunc) Compile(lam *expr.Lambda) (Callable, error) { return f(lam) }

// Callable is a compiled expression.
type Callable interface {
	Arity() int
	Call(args []any) (any, error)
}

// Callables may additionally implement fixed-arity entry points. When they
// do, the executor binds them directly instead of packing a slice.
type (
	Callable0 interface{ Call0() (any, error) }
	Callable1 interface{ Call1(a any) (any, error) }
	Callable2 interface{ Call2(a, b any) (any, error) }
	Callable3 interface{ Call3(a, b, c any) (any, error) }
	Callable4 interface{ Call4(a, b, c, d any) (any, error) }
	Callable5 interface{ Call5(a, b, c, d, e any) (any, error) }
)
