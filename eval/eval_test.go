package eval

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/exprcache/expr"
)

type celsius int

type point struct{ X, Y int }

func (p point) Sum() int { return p.X + p.Y }

type shape struct {
	Name   string
	Origin point
	Tags   []string
	Attrs  map[string]int
	Next   *point
}

type counter struct{ n int }

func (c *counter) Add(k int) { c.n += k }

func run(t *testing.T, lam *expr.Lambda, args ...any) any {
	t.Helper()
	p, err := Compile(lam)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := p.Call(args)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	return got
}

func TestBinary_Arithmetic(t *testing.T) {
	cases := []struct {
		op   expr.BinaryOp
		l, r any
		want any
	}{
		{expr.Add, 3, 4, 7},
		{expr.Subtract, int8(3), int8(4), int8(-1)},
		{expr.Multiply, 2.5, 2.0, 5.0},
		{expr.Divide, 7, 2, 3},
		{expr.Modulo, 7, 3, 1},
		{expr.Power, 2, 10, 1024},
		{expr.Add, 1, 0.5, 1.5},
		{expr.Add, uint(1), uint8(2), uint64(3)},
		{expr.Add, int32(1), uint(2), int64(3)},
		{expr.Add, celsius(20), celsius(5), celsius(25)},
		{expr.And, 6, 3, 2},
		{expr.Or, 6, 3, 7},
		{expr.ExclusiveOr, 6, 3, 5},
		{expr.LeftShift, 1, 4, 16},
		{expr.RightShift, 16, 2, 4},
		{expr.And, true, false, false},
		{expr.ExclusiveOr, true, false, true},
		{expr.Add, "ab", "cd", "abcd"},
		{expr.LessThan, 1, 2, true},
		{expr.GreaterThanOrEqual, 2.0, 2, true},
		{expr.LessThan, "a", "b", true},
		{expr.Equal, point{1, 2}, point{1, 2}, true},
		{expr.NotEqual, nil, 1, true},
		{expr.Equal, nil, nil, true},
	}
	for _, tc := range cases {
		a := expr.Param[any]("a")
		b := expr.Param[any]("b")
		got := run(t, expr.Fn(expr.Bin(tc.op, a, b), a, b), tc.l, tc.r)
		if got != tc.want {
			t.Errorf("%v %s %v: got %v (%T), want %v (%T)", tc.l, tc.op.Symbol(), tc.r, got, got, tc.want, tc.want)
		}
	}
}

func TestBinary_DivideByZero(t *testing.T) {
	a := expr.Param[int]("a")
	p, err := Compile(expr.Fn(expr.Bin(expr.Divide, a, expr.Const(0)), a))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Call1(1); !errors.Is(err, ErrDivideByZero) {
		t.Errorf("got %v, want ErrDivideByZero", err)
	}
}

func TestBinary_ShortCircuit(t *testing.T) {
	a := expr.Param[int]("a")
	// The right side divides by zero and must not run.
	boom := expr.Bin(expr.Equal, expr.Bin(expr.Divide, a, expr.Const(0)), expr.Const(1))

	cases := []struct {
		tree *expr.Lambda
		want bool
	}{
		{expr.Fn(expr.Bin(expr.AndAlso, expr.Const(false), boom), a), false},
		{expr.Fn(expr.Bin(expr.OrElse, expr.Const(true), boom), a), true},
		{expr.Fn(expr.Bin(expr.AndAlso, expr.Const(true), expr.Const(true)), a), true},
	}
	for i, tc := range cases {
		if got := run(t, tc.tree, 5); got != tc.want {
			t.Errorf("case %d: got %v, want %v", i, got, tc.want)
		}
	}
}

func TestBinary_CoalesceAndIndex(t *testing.T) {
	s := expr.Param[*string]("s")
	got := run(t, expr.Fn(expr.Bin(expr.Coalesce, s, expr.Const("fallback")), s), (*string)(nil))
	if got != "fallback" {
		t.Errorf("coalesce: got %v", got)
	}

	xs := expr.Param[[]int]("xs")
	got = run(t, expr.Fn(expr.Bin(expr.ArrayIndex, xs, expr.Const(1)), xs), []int{5, 6, 7})
	if got != 6 {
		t.Errorf("index: got %v, want 6", got)
	}

	m := expr.Param[map[string]int]("m")
	got = run(t, expr.Fn(expr.Bin(expr.ArrayIndex, m, expr.Const("k")), m), map[string]int{"k": 9})
	if got != 9 {
		t.Errorf("map index: got %v, want 9", got)
	}
}

func TestBinary_Overload(t *testing.T) {
	a := expr.Param[point]("a")
	b := expr.Param[point]("b")
	plus := func(p, q point) point { return point{p.X + q.X, p.Y + q.Y} }
	tree := expr.Fn(&expr.Binary{Op: expr.Add, Left: a, Right: b, Method: &expr.Method{Name: "Plus", Func: plus}}, a, b)

	if got := run(t, tree, point{1, 2}, point{3, 4}); got != (point{4, 6}) {
		t.Errorf("got %v", got)
	}
}

func TestUnary(t *testing.T) {
	x := expr.Param[any]("x")
	cases := []struct {
		node expr.Node
		in   any
		want any
	}{
		{expr.Un(expr.Negate, x), 5, -5},
		{expr.Un(expr.Negate, x), 2.5, -2.5},
		{expr.Un(expr.UnaryPlus, x), 3, 3},
		{expr.Un(expr.Not, x), true, false},
		{expr.Un(expr.Not, x), int8(0), int8(-1)},
		{expr.Un(expr.OnesComplement, x), uint8(1), uint8(254)},
		{expr.Un(expr.ArrayLength, x), []int{1, 2, 3}, 3},
		{expr.ConvertTo(x, reflect.TypeFor[int64]()), 3.9, int64(3)},
		{expr.ConvertTo(x, reflect.TypeFor[celsius]()), 12, celsius(12)},
		{&expr.Unary{Op: expr.TypeAs, Operand: x, Type: reflect.TypeFor[string]()}, "s", "s"},
		{&expr.Unary{Op: expr.TypeAs, Operand: x, Type: reflect.TypeFor[string]()}, 1, nil},
		{expr.Is(x, reflect.TypeFor[int]()), 1, true},
		{expr.Is(x, reflect.TypeFor[fmt.Stringer]()), 1, false},
	}
	for i, tc := range cases {
		if got := run(t, expr.Fn(tc.node, x), tc.in); got != tc.want {
			t.Errorf("case %d: got %v (%T), want %v (%T)", i, got, got, tc.want, tc.want)
		}
	}
}

func TestUnary_Quote(t *testing.T) {
	inner := expr.Fn(expr.Const(1))
	got := run(t, expr.Fn(expr.Un(expr.Quote, inner)))
	if got != expr.Node(inner) {
		t.Errorf("quote should yield the operand tree, got %T", got)
	}
}

func TestConditional(t *testing.T) {
	n := expr.Param[int]("n")
	tree := expr.Fn(expr.If(expr.Bin(expr.GreaterThan, n, expr.Const(0)), expr.Const("pos"), expr.Const("neg")), n)
	if got := run(t, tree, 3); got != "pos" {
		t.Errorf("got %v", got)
	}
	if got := run(t, tree, -3); got != "neg" {
		t.Errorf("got %v", got)
	}
}

func TestMemberAccess(t *testing.T) {
	p := expr.Param[point]("p")
	if got := run(t, expr.Fn(expr.Field(p, "Y"), p), point{1, 2}); got != 2 {
		t.Errorf("field: got %v", got)
	}
	if got := run(t, expr.Fn(expr.Field(p, "Sum"), p), &point{1, 2}); got != 3 {
		t.Errorf("method: got %v", got)
	}

	m := expr.Param[map[string]string]("m")
	if got := run(t, expr.Fn(expr.Field(m, "k"), m), map[string]string{"k": "v"}); got != "v" {
		t.Errorf("map: got %v", got)
	}

	static := &expr.MemberAccess{Member: &expr.Member{Name: "Answer", Get: func(any) any { return 42 }}}
	if got := run(t, expr.Fn(static)); got != 42 {
		t.Errorf("static: got %v", got)
	}

	_, err := Compile(expr.Fn(&expr.MemberAccess{Member: &expr.Member{Name: "Answer"}}))
	if err == nil {
		t.Error("static member without getter should not compile")
	}
}

func TestCall(t *testing.T) {
	s := expr.Param[string]("s")

	instance := expr.Fn(expr.CallOn(expr.Param[*strings.Builder]("b"), "Len"), expr.Param[*strings.Builder]("b"))
	var sb strings.Builder
	sb.WriteString("abc")
	if got := run(t, instance, &sb); got != 3 {
		t.Errorf("instance: got %v", got)
	}

	static := expr.Fn(expr.CallStatic(nil, "ToUpper", strings.ToUpper, s), s)
	if got := run(t, static, "go"); got != "GO" {
		t.Errorf("static: got %v", got)
	}

	atoi := expr.Fn(expr.CallStatic(nil, "Atoi", strconv.Atoi, s), s)
	if got := run(t, atoi, "12"); got != 12 {
		t.Errorf("atoi: got %v", got)
	}
	p, _ := Compile(atoi)
	if _, err := p.Call1("x"); err == nil {
		t.Error("error result should surface")
	}

	join := expr.Fn(expr.CallStatic(nil, "Join", func(sep string, parts ...string) string {
		return strings.Join(parts, sep)
	}, expr.Const("-"), s, s), s)
	if got := run(t, join, "a"); got != "a-a" {
		t.Errorf("variadic: got %v", got)
	}

	if _, err := Compile(expr.Fn(&expr.Call{Method: &expr.Method{Name: "Nothing"}})); err == nil {
		t.Error("static call without func should not compile")
	}
}

func TestCall_ExtensionWithLambdaArgument(t *testing.T) {
	where := func(xs []int, pred func(int) bool) []int {
		var out []int
		for _, x := range xs {
			if pred(x) {
				out = append(out, x)
			}
		}
		return out
	}
	xs := expr.Param[[]int]("xs")
	limit := expr.Param[int]("limit")
	y := expr.Param[int]("y")
	tree := expr.Fn(
		expr.CallExtension(nil, "Where", where, xs, expr.Fn(expr.Bin(expr.GreaterThan, y, limit), y)),
		xs, limit,
	)

	got := run(t, tree, []int{1, 5, 2, 8}, 2)
	if !reflect.DeepEqual(got, []int{5, 8}) {
		t.Errorf("got %v, want [5 8]", got)
	}
}

func TestInvoke(t *testing.T) {
	k := expr.Param[int]("k")
	n := expr.Param[int]("n")
	// n => (k => k * n)(3)
	tree := expr.Fn(expr.Apply(expr.Fn(expr.Bin(expr.Multiply, k, n), k), expr.Const(3)), n)
	if got := run(t, tree, 5); got != 15 {
		t.Errorf("got %v, want 15", got)
	}

	f := expr.Param[func(int) int]("f")
	goFn := expr.Fn(expr.Apply(f, expr.Const(4)), f)
	if got := run(t, goFn, func(i int) int { return i + 1 }); got != 5 {
		t.Errorf("go func: got %v", got)
	}
}

func TestNew(t *testing.T) {
	x := expr.Param[int]("x")
	withMembers := &expr.New{
		Type:      reflect.TypeFor[point](),
		Arguments: []expr.Node{x, expr.Const(2)},
		Members:   []*expr.Member{{Name: "X"}, {Name: "Y"}},
	}
	if got := run(t, expr.Fn(withMembers, x), 1); got != (point{1, 2}) {
		t.Errorf("members: got %v", got)
	}

	ctor := &expr.New{
		Constructor: &expr.Constructor{Func: func(x, y int) *point { return &point{x, y} }},
		Arguments:   []expr.Node{x, x},
	}
	got := run(t, expr.Fn(ctor, x), 7)
	if p, ok := got.(*point); !ok || *p != (point{7, 7}) {
		t.Errorf("constructor: got %v", got)
	}

	zero := &expr.New{Type: reflect.TypeFor[*point]()}
	if p, ok := run(t, expr.Fn(zero)).(*point); !ok || *p != (point{}) {
		t.Error("zero pointer value expected")
	}
}

func TestNewArray(t *testing.T) {
	n := expr.Param[int]("n")
	init := &expr.NewArray{ElemType: reflect.TypeFor[int64](), Mode: expr.ArrayInit, Items: []expr.Node{n, expr.Const(2)}}
	if got := run(t, expr.Fn(init, n), 1); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Errorf("init: got %#v", got)
	}

	bounds := &expr.NewArray{ElemType: reflect.TypeFor[string](), Mode: expr.ArrayBounds, Items: []expr.Node{n, expr.Const(3)}}
	got, ok := run(t, expr.Fn(bounds, n), 2).([][]string)
	if !ok || len(got) != 2 || len(got[1]) != 3 {
		t.Errorf("bounds: got %#v", got)
	}
}

func TestListInit(t *testing.T) {
	x := expr.Param[int]("x")
	slice := &expr.ListInit{
		New: &expr.New{Type: reflect.TypeFor[[]int]()},
		Initializers: []*expr.ElementInit{
			{Arguments: []expr.Node{x}},
			{Arguments: []expr.Node{expr.Const(2), expr.Const(3)}},
		},
	}
	if got := run(t, expr.Fn(slice, x), 1); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("slice: got %v", got)
	}

	dict := &expr.ListInit{
		New:          &expr.New{Type: reflect.TypeFor[map[string]int]()},
		Initializers: []*expr.ElementInit{{Arguments: []expr.Node{expr.Const("a"), x}}},
	}
	if got := run(t, expr.Fn(dict, x), 4); !reflect.DeepEqual(got, map[string]int{"a": 4}) {
		t.Errorf("map: got %v", got)
	}

	adder := &expr.ListInit{
		New: &expr.New{Type: reflect.TypeFor[*counter]()},
		Initializers: []*expr.ElementInit{
			{Method: &expr.Method{Name: "Add"}, Arguments: []expr.Node{x}},
			{Method: &expr.Method{Name: "Add"}, Arguments: []expr.Node{x}},
		},
	}
	if got := run(t, expr.Fn(adder, x), 5).(*counter); got.n != 10 {
		t.Errorf("method initializer: got %d, want 10", got.n)
	}
}

func TestMemberInit(t *testing.T) {
	name := expr.Param[string]("name")
	tree := &expr.MemberInit{
		New: &expr.New{Type: reflect.TypeFor[*shape]()},
		Bindings: []expr.Binding{
			&expr.Assignment{Member: &expr.Member{Name: "Name"}, Value: name},
			&expr.MemberBinding{
				Member:   &expr.Member{Name: "Origin"},
				Bindings: []expr.Binding{&expr.Assignment{Member: &expr.Member{Name: "X"}, Value: expr.Const(3)}},
			},
			&expr.MemberBinding{
				Member:   &expr.Member{Name: "Next"},
				Bindings: []expr.Binding{&expr.Assignment{Member: &expr.Member{Name: "Y"}, Value: expr.Const(4)}},
			},
			&expr.ListBinding{
				Member:       &expr.Member{Name: "Tags"},
				Initializers: []*expr.ElementInit{{Arguments: []expr.Node{name}}},
			},
			&expr.ListBinding{
				Member:       &expr.Member{Name: "Attrs"},
				Initializers: []*expr.ElementInit{{Arguments: []expr.Node{expr.Const("w"), expr.Const(1)}}},
			},
		},
	}

	got := run(t, expr.Fn(tree, name), "box").(*shape)
	want := &shape{
		Name:   "box",
		Origin: point{X: 3},
		Tags:   []string{"box"},
		Attrs:  map[string]int{"w": 1},
		Next:   &point{Y: 4},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCompile_UnboundParameter(t *testing.T) {
	_, err := Compile(expr.Fn(expr.Param[int]("ghost")))
	if !errors.Is(err, ErrUnboundParameter) {
		t.Errorf("got %v, want ErrUnboundParameter", err)
	}
}

type alienNode struct{}

func (alienNode) Kind() expr.NodeKind { return expr.NodeKind(99) }

func TestCompile_UnsupportedNode(t *testing.T) {
	_, err := Compile(expr.Fn(alienNode{}))
	if !errors.Is(err, expr.ErrUnsupportedNodeKind) {
		t.Errorf("got %v, want ErrUnsupportedNodeKind", err)
	}
}

func TestProgram_Arity(t *testing.T) {
	a := expr.Param[int]("a")
	b := expr.Param[int]("b")
	p, err := Compile(expr.Fn(expr.Bin(expr.Add, a, b), a, b))
	if err != nil {
		t.Fatal(err)
	}
	if p.Arity() != 2 {
		t.Errorf("arity: got %d, want 2", p.Arity())
	}
	if got, _ := p.Call2(3, 4); got != 7 {
		t.Errorf("Call2: got %v, want 7", got)
	}
	if _, err := p.Call1(3); !errors.Is(err, ErrArity) {
		t.Errorf("got %v, want ErrArity", err)
	}
}

func sumOf(n int) *expr.Lambda {
	params := make([]*expr.Parameter, n)
	var body expr.Node = expr.Const(0)
	for i := range params {
		params[i] = expr.Param[int](fmt.Sprintf("p%d", i))
		body = expr.Bin(expr.Add, body, params[i])
	}
	return expr.Fn(body, params...)
}

func TestProgram_FixedArity(t *testing.T) {
	calls := []func(p *Program) (any, error){
		func(p *Program) (any, error) { return p.Call0() },
		func(p *Program) (any, error) { return p.Call1(1) },
		func(p *Program) (any, error) { return p.Call2(1, 2) },
		func(p *Program) (any, error) { return p.Call3(1, 2, 3) },
		func(p *Program) (any, error) { return p.Call4(1, 2, 3, 4) },
		func(p *Program) (any, error) { return p.Call5(1, 2, 3, 4, 5) },
	}
	for n := range calls {
		p, err := Compile(sumOf(n))
		if err != nil {
			t.Fatalf("arity %d: %v", n, err)
		}
		want := n * (n + 1) / 2
		for round := 0; round < 3; round++ {
			got, err := calls[n](p)
			if err != nil {
				t.Fatalf("arity %d: %v", n, err)
			}
			if got != want {
				t.Errorf("arity %d: got %v, want %v", n, got, want)
			}
		}
		for m, call := range calls {
			if m == n {
				continue
			}
			if _, err := call(p); !errors.Is(err, ErrArity) {
				t.Errorf("arity %d, Call%d: got %v, want ErrArity", n, m, err)
			}
		}
	}
}

func TestProgram_FixedArityConcurrent(t *testing.T) {
	p, err := Compile(sumOf(2))
	if err != nil {
		t.Fatal(err)
	}
	if p.pool == nil {
		t.Fatal("expected pooled frames for a body without nested lambdas")
	}
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			for j := 0; j < 200; j++ {
				got, err := p.Call2(i, j)
				if err != nil {
					return err
				}
				if got != i+j {
					return fmt.Errorf("got %v, want %v", got, i+j)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Error(err)
	}
}

func TestProgram_NestedLambdaKeepsFrame(t *testing.T) {
	a := expr.Param[int]("a")
	b := expr.Param[int]("b")
	p, err := Compile(expr.Fn(expr.Fn(expr.Bin(expr.Add, a, b), b), a))
	if err != nil {
		t.Fatal(err)
	}
	if p.pool != nil {
		t.Fatal("frames captured by nested lambdas must not be pooled")
	}
	first, err := p.Call1(1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Call1(10); err != nil {
		t.Fatal(err)
	}
	got, err := first.(*Func).Call(5)
	if err != nil {
		t.Fatal(err)
	}
	if got != 6 {
		t.Errorf("got %v, want 6", got)
	}
}
