package main

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/exprcache/cache"
	"github.com/chazu/exprcache/expr"
)

type record struct {
	Name string
	Year int
}

type closureYear struct{ Year int }

type closureDiscount struct{ Rate float64 }

type closureGreeting struct{ Prefix string }

// sample is one expression shape. tree builds a fresh tree for iteration i,
// as a caller would on every invocation; args and want give the explicit
// arguments and the expected result.
type sample struct {
	name string
	tree func(i int) expr.Node
	args func(i int) []any
	want func(i int) any
}

var samples = []sample{
	{
		name: "add",
		tree: func(int) expr.Node {
			a := expr.Param[int]("a")
			b := expr.Param[int]("b")
			return expr.Fn(expr.Bin(expr.Add, a, b), a, b)
		},
		args: func(i int) []any { return []any{i, i + 1} },
		want: func(i int) any { return 2*i + 1 },
	},
	{
		name: "year-filter",
		tree: func(i int) expr.Node {
			x := expr.Param[record]("x")
			year := &closureYear{Year: 1970 + i%50}
			return expr.Fn(expr.Bin(expr.Equal, expr.Field(x, "Year"), expr.Field(expr.Const(year), "Year")), x)
		},
		args: func(i int) []any { return []any{record{Name: "r", Year: 1970 + i%7}} },
		want: func(i int) any { return 1970+i%7 == 1970+i%50 },
	},
	{
		name: "discount",
		tree: func(i int) expr.Node {
			price := expr.Param[float64]("price")
			d := &closureDiscount{Rate: float64(i%10) / 100}
			return expr.Fn(expr.Bin(expr.Multiply, price,
				expr.Bin(expr.Subtract, expr.Const(1.0), expr.Field(expr.Const(d), "Rate"))), price)
		},
		args: func(i int) []any { return []any{float64(100 + i%3)} },
		want: func(i int) any { return float64(100+i%3) * (1 - float64(i%10)/100) },
	},
	{
		name: "greeting",
		tree: func(i int) expr.Node {
			name := expr.Param[string]("name")
			g := closureGreeting{Prefix: fmt.Sprintf("hello #%d, ", i%5)}
			return expr.Fn(expr.CallStatic(nil, "ToUpper", strings.ToUpper,
				expr.Bin(expr.Add, expr.Field(expr.Const(g), "Prefix"), name)), name)
		},
		args: func(int) []any { return []any{"gopher"} },
		want: func(i int) any { return strings.ToUpper(fmt.Sprintf("hello #%d, gopher", i%5)) },
	},
}

// runWorkload executes every sample n times on each of workers goroutines
// and checks each result.
func runWorkload(c *cache.Cache, workers, n int) error {
	var g errgroup.Group
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < n; i++ {
				k := w*n + i
				for _, s := range samples {
					got, err := c.Execute(s.tree(k), s.args(k)...)
					if err != nil {
						return fmt.Errorf("%s[%d]: %w", s.name, k, err)
					}
					if !same(got, s.want(k)) {
						return fmt.Errorf("%s[%d]: got %v, want %v", s.name, k, got, s.want(k))
					}
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func same(got, want any) bool {
	if gf, ok := got.(float64); ok {
		if wf, ok := want.(float64); ok {
			return math.Abs(gf-wf) < 1e-9
		}
	}
	return got == want
}
