package cache

// invokers holds one entry point per total arity, bound once when the
// executor is built. Only the entry matching the callable's arity is ever
// used.
type invokers struct {
	call0 func() (any, error)
	call1 func(a any) (any, error)
	call2 func(a, b any) (any, error)
	call3 func(a, b, c any) (any, error)
	call4 func(a, b, c, d any) (any, error)
	call5 func(a, b, c, d, e any) (any, error)
}

func bindInvokers(fn Callable) invokers {
	inv := invokers{
		call0: func() (any, error) { return fn.Call(nil) },
		call1: func(a any) (any, error) { return fn.Call([]any{a}) },
		call2: func(a, b any) (any, error) { return fn.Call([]any{a, b}) },
		call3: func(a, b, c any) (any, error) { return fn.Call([]any{a, b, c}) },
		call4: func(a, b, c, d any) (any, error) { return fn.Call([]any{a, b, c, d}) },
		call5: func(a, b, c, d, e any) (any, error) { return fn.Call([]any{a, b, c, d, e}) },
	}
	if f, ok := fn.(Callable0); ok {
		inv.call0 = f.Call0
	}
	if f, ok := fn.(Callable1); ok {
		inv.call1 = f.Call1
	}
	if f, ok := fn.(Callable2); ok {
		inv.call2 = f.Call2
	}
	if f, ok := fn.(Callable3); ok {
		inv.call3 = f.Call3
	}
	if f, ok := fn.(Callable4); ok {
		inv.call4 = f.Call4
	}
	if f, ok := fn.(Callable5); ok {
		inv.call5 = f.Call5
	}
	return inv
}
