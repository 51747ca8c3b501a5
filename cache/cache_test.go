package cache

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/exprcache/eval"
	"github.com/chazu/exprcache/expr"
)

type closureYear struct{ Year int }

type closureOffset struct{ N int }

type date struct{ Year int }

// countingCompiler wraps the eval backend and counts compilations. When
// release is set, each compilation signals entered and waits on release.
type countingCompiler struct {
	count   atomic.Int32
	fail    atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (c *countingCompiler) Compile(lam *expr.Lambda) (Callable, error) {
	c.count.Add(1)
	if c.release != nil {
		c.entered <- struct{}{}
		<-c.release
	}
	if c.fail.Load() {
		return nil, errors.New("backend unavailable")
	}
	p, err := eval.Compile(lam)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newTestCache(c Compiler) *Cache {
	return New(c, Options{Log: commonlog.MockLogger{}})
}

func addTree() *expr.Lambda {
	a := expr.Param[int]("a")
	b := expr.Param[int]("b")
	return expr.Fn(expr.Bin(expr.Add, a, b), a, b)
}

func yearFilter(year int) *expr.Lambda {
	x := expr.Param[date]("x")
	return expr.Fn(
		expr.Bin(expr.Equal, expr.Field(x, "Year"), expr.Field(expr.Const(&closureYear{Year: year}), "Year")),
		x,
	)
}

func TestCache_AddExample(t *testing.T) {
	comp := &countingCompiler{}
	c := newTestCache(comp)

	got, err := c.Execute(addTree(), 3, 4)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got != 7 {
		t.Errorf("got %v, want 7", got)
	}

	got, err = c.Execute(addTree(), 10, 20)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got != 30 {
		t.Errorf("got %v, want 30", got)
	}
	if n := comp.count.Load(); n != 1 {
		t.Errorf("compilations: got %d, want 1", n)
	}
}

func TestCache_IdempotentCompilation(t *testing.T) {
	comp := &countingCompiler{}
	c := newTestCache(comp)

	const n = 50
	for i := 0; i < n; i++ {
		if _, err := c.GetOrBuild(addTree()); err != nil {
			t.Fatalf("build %d: %v", i, err)
		}
	}
	if got := comp.count.Load(); got != 1 {
		t.Errorf("compilations: got %d, want 1", got)
	}

	st := c.Stats()
	if st.Entries != 1 || st.Hits != n-1 || st.Misses != 1 || st.Builds != 1 {
		t.Errorf("stats: got %+v", st)
	}
	if !strings.Contains(st.String(), "hits=49") {
		t.Errorf("stats string: got %q", st.String())
	}
}

func TestCache_SameExecutorForEqualTrees(t *testing.T) {
	c := newTestCache(&countingCompiler{})
	e1, err := c.GetOrBuild(yearFilter(2001))
	if err != nil {
		t.Fatal(err)
	}
	e2, err := c.GetOrBuild(yearFilter(1850))
	if err != nil {
		t.Fatal(err)
	}
	if e1 != e2 {
		t.Error("trees differing only in captured values should share an executor")
	}
	if keys := c.Keys(); len(keys) != 1 || keys[0] != e1.Key() {
		t.Errorf("keys: got %v", keys)
	}
}

func TestCache_ClosureRoundTrip(t *testing.T) {
	comp := &countingCompiler{}
	c := newTestCache(comp)

	cases := []struct {
		year int
		arg  date
		want bool
	}{
		{2024, date{2024}, true},
		{1990, date{2024}, false},
		{1990, date{1990}, true},
		{2024, date{1990}, false},
	}
	for _, tc := range cases {
		got, err := c.Execute1(yearFilter(tc.year), tc.arg)
		if err != nil {
			t.Fatalf("year %d: %v", tc.year, err)
		}
		if got != tc.want {
			t.Errorf("year %d, arg %d: got %v, want %v", tc.year, tc.arg.Year, got, tc.want)
		}
	}
	if n := comp.count.Load(); n != 1 {
		t.Errorf("compilations: got %d, want 1", n)
	}

	e, _ := c.GetOrBuild(yearFilter(0))
	if e.Arity() != 1 {
		t.Errorf("explicit arity: got %d, want 1", e.Arity())
	}
	caps := e.Captures()
	if len(caps) != 1 {
		t.Fatalf("captures: got %d, want 1", len(caps))
	}
	want := expr.NewPath(expr.Fixed(expr.StepBody), expr.Fixed(expr.StepRight), expr.Fixed(expr.StepExpression))
	if p := caps["*github.com/chazu/exprcache/cache.closureYear"]; !p.Equal(want) {
		t.Errorf("capture path: got %s, want %s", p, want)
	}
}

func TestCache_ConcurrentSingleBuild(t *testing.T) {
	comp := &countingCompiler{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := newTestCache(comp)

	const k = 32
	results := make([]any, k)
	var g errgroup.Group
	for i := 0; i < k; i++ {
		g.Go(func() error {
			v, err := c.Execute1(yearFilter(i), date{i})
			results[i] = v
			return err
		})
	}

	<-comp.entered
	close(comp.release)
	if err := g.Wait(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if n := comp.count.Load(); n != 1 {
		t.Errorf("compilations: got %d, want 1", n)
	}
	for i, v := range results {
		if v != true {
			t.Errorf("caller %d: got %v, want true", i, v)
		}
	}
}

func TestCache_StateTransitions(t *testing.T) {
	comp := &countingCompiler{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := newTestCache(comp)

	if s, _ := c.State(addTree()); s != Absent {
		t.Fatalf("before: got %s, want Absent", s)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrBuild(addTree())
		done <- err
	}()

	<-comp.entered
	if s, _ := c.State(addTree()); s != Building {
		t.Errorf("during build: got %s, want Building", s)
	}
	close(comp.release)
	if err := <-done; err != nil {
		t.Fatalf("build: %v", err)
	}
	if s, _ := c.State(addTree()); s != Present {
		t.Errorf("after: got %s, want Present", s)
	}
}

type alienNode struct{}

func (alienNode) Kind() expr.NodeKind { return expr.NodeKind(99) }

func TestCache_UnsupportedNodeKind(t *testing.T) {
	comp := &countingCompiler{}
	c := newTestCache(comp)

	x := expr.Param[int]("x")
	tree := expr.Fn(expr.Bin(expr.Add, x, alienNode{}), x)

	_, err := c.Execute(tree, 1)
	if !errors.Is(err, expr.ErrUnsupportedNodeKind) {
		t.Fatalf("got %v, want ErrUnsupportedNodeKind", err)
	}
	if c.Len() != 0 {
		t.Errorf("cache len: got %d, want 0", c.Len())
	}
	if n := comp.count.Load(); n != 0 {
		t.Errorf("compilations: got %d, want 0", n)
	}
}

func TestCache_CompileErrorIsNotCached(t *testing.T) {
	comp := &countingCompiler{}
	comp.fail.Store(true)
	c := newTestCache(comp)

	_, err := c.Execute(addTree(), 1, 2)
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want *CompileError", err)
	}
	if ce.Key != "(a,b)=>(a+b)" {
		t.Errorf("key: got %q", ce.Key)
	}
	if s, _ := c.State(addTree()); s != Absent {
		t.Errorf("state after failure: got %s, want Absent", s)
	}

	comp.fail.Store(false)
	got, err := c.Execute(addTree(), 1, 2)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got != 3 {
		t.Errorf("got %v, want 3", got)
	}
	if n := comp.count.Load(); n != 2 {
		t.Errorf("compilations: got %d, want 2", n)
	}
	if st := c.Stats(); st.Failures != 1 || st.Builds != 1 {
		t.Errorf("stats: got %+v", st)
	}
}

type fixedArity struct{ n int }

func (f fixedArity) Arity() int              { return f.n }
func (f fixedArity) Call([]any) (any, error) { return nil, nil }

func TestCache_ArityMismatchIsCompileError(t *testing.T) {
	c := newTestCache(CompilerFunc(func(*expr.Lambda) (Callable, error) {
		return fixedArity{n: 5}, nil
	}))
	_, err := c.GetOrBuild(addTree())
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want *CompileError", err)
	}
	if c.Len() != 0 {
		t.Error("mismatched callable must not be cached")
	}
}

func TestCache_WrongArgumentCount(t *testing.T) {
	c := newTestCache(&countingCompiler{})

	if _, err := c.Execute(addTree(), 1); !errors.Is(err, ErrArity) {
		t.Errorf("Execute: got %v, want ErrArity", err)
	}
	if _, err := c.Execute1(addTree(), 1); !errors.Is(err, ErrArity) {
		t.Errorf("Execute1: got %v, want ErrArity", err)
	}
}

func TestCache_PathResolutionError(t *testing.T) {
	c := newTestCache(&countingCompiler{})
	e, err := c.GetOrBuild(yearFilter(2000))
	if err != nil {
		t.Fatal(err)
	}

	x := expr.Param[date]("x")
	cases := []struct {
		name string
		tree expr.Node
	}{
		{"different shape", expr.Fn(expr.Const(true), x)},
		{"plain constant at capture site", expr.Fn(
			expr.Bin(expr.Equal, expr.Field(x, "Year"), expr.Field(expr.Const(date{2000}), "Year")), x)},
		{"parameter at capture site", expr.Fn(
			expr.Bin(expr.Equal, expr.Field(x, "Year"), expr.Field(x, "Year")), x)},
	}
	for _, tc := range cases {
		_, err := e.Execute(tc.tree, date{2000})
		if !errors.Is(err, expr.ErrPathResolution) {
			t.Errorf("%s: got %v, want ErrPathResolution", tc.name, err)
		}
		var pe *expr.PathError
		if !errors.As(err, &pe) {
			t.Errorf("%s: want a *expr.PathError in the chain", tc.name)
		}
	}
}

func TestCache_BareBody(t *testing.T) {
	c := newTestCache(&countingCompiler{})
	tree := expr.Bin(expr.Multiply, expr.Field(expr.Const(&closureOffset{N: 6}), "N"), expr.Const(7))

	got, err := c.Execute0(tree)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got != 42 {
		t.Errorf("got %v, want 42", got)
	}
}

type box struct{ N int }

func adder(k int) *expr.Lambda {
	x := expr.Param[int]("x")
	return expr.Fn(expr.Apply(expr.Const(func(v int) int { return v + k }), x), x)
}

func TestCache_FuncConstantsPerCaller(t *testing.T) {
	comp := &countingCompiler{}
	c := newTestCache(comp)

	for _, k := range []int{1, 100, 1} {
		got, err := c.Execute1(adder(k), 5)
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		if got != 5+k {
			t.Errorf("k=%d: got %v, want %v", k, got, 5+k)
		}
	}
	if n := comp.count.Load(); n != 1 {
		t.Errorf("compilations: got %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("len: got %d, want 1", c.Len())
	}
}

func TestCache_ConstantValuesAcrossTrees(t *testing.T) {
	cases := []struct {
		name   string
		tree   func(k int) *expr.Lambda
		arg    any
		want   func(k int) any
		shared bool
	}{
		{
			name: "int",
			tree: func(k int) *expr.Lambda {
				x := expr.Param[int]("x")
				return expr.Fn(expr.Bin(expr.Add, x, expr.Const(k)), x)
			},
			arg:  5,
			want: func(k int) any { return 5 + k },
		},
		{
			name: "float",
			tree: func(k int) *expr.Lambda {
				x := expr.Param[float64]("x")
				return expr.Fn(expr.Bin(expr.Add, x, expr.Const(float64(k)+0.5)), x)
			},
			arg:  5.0,
			want: func(k int) any { return 5.5 + float64(k) },
		},
		{
			name: "string",
			tree: func(k int) *expr.Lambda {
				s := expr.Param[string]("s")
				return expr.Fn(expr.Bin(expr.Add, s, expr.Const(strings.Repeat("!", k%7))), s)
			},
			arg:  "hi",
			want: func(k int) any { return "hi" + strings.Repeat("!", k%7) },
		},
		{
			name:   "func",
			tree:   adder,
			arg:    5,
			want:   func(k int) any { return 5 + k },
			shared: true,
		},
		{
			name: "pointer",
			tree: func(k int) *expr.Lambda {
				x := expr.Param[int]("x")
				return expr.Fn(expr.Bin(expr.Add, x, expr.Field(expr.Const(&box{N: k}), "N")), x)
			},
			arg:    5,
			want:   func(k int) any { return 5 + k },
			shared: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			comp := &countingCompiler{}
			c := newTestCache(comp)

			k1, err := c.Key(tc.tree(1))
			if err != nil {
				t.Fatal(err)
			}
			k2, err := c.Key(tc.tree(100))
			if err != nil {
				t.Fatal(err)
			}
			if (k1 == k2) != tc.shared {
				t.Errorf("keys shared: got %v, want %v (%q, %q)", k1 == k2, tc.shared, k1, k2)
			}

			for _, k := range []int{1, 100, 1} {
				got, err := c.Execute1(tc.tree(k), tc.arg)
				if err != nil {
					t.Fatalf("k=%d: %v", k, err)
				}
				if want := tc.want(k); got != want {
					t.Errorf("k=%d: got %v (%T), want %v (%T)", k, got, got, want, want)
				}
			}

			want := int32(2)
			if tc.shared {
				want = 1
			}
			if n := comp.count.Load(); n != want {
				t.Errorf("compilations: got %d, want %d", n, want)
			}
		})
	}
}

func TestCache_IntAndFloatLiteralsDiffer(t *testing.T) {
	c := newTestCache(&countingCompiler{})

	one := expr.Fn(expr.Const(1))
	oneFloat := expr.Fn(expr.Const(1.0))

	k1, _ := c.Key(one)
	k2, _ := c.Key(oneFloat)
	if k1 == k2 {
		t.Fatalf("keys: got %q for both", k1)
	}

	got, err := c.Execute0(one)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("int: got %v (%T), want 1", got, got)
	}
	got, err = c.Execute0(oneFloat)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1.0 {
		t.Errorf("float: got %v (%T), want 1.0", got, got)
	}
}
