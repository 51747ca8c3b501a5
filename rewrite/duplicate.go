package rewrite

import (
	"fmt"

	"github.com/chazu/exprcache/expr"
)

// ---------------------------------------------------------------------------
// Duplication: expression tree → structurally equal fresh tree
//
// Every node is rebuilt. Constants are copied by value and type, parameters
// are resolved through the registry, and operator, member, method and type
// references are carried over unchanged. The walk visits every child slot of
// every kind; an unknown kind aborts the pass.
// ---------------------------------------------------------------------------

// duplicator holds state for one duplication walk.
type duplicator struct {
	reg   *Registry
	match Matcher // capture classes to promote; nil disables promotion
}

// Duplicate returns a fresh copy of root, registering every distinct
// parameter name in reg with the Path at which it was first found.
func Duplicate(root expr.Node, reg *Registry) (expr.Node, error) {
	d := &duplicator{reg: reg}
	return d.node(root, expr.Path{})
}

func (d *duplicator) node(n expr.Node, path expr.Path) (expr.Node, error) {
	if expr.IsNil(n) {
		return nil, nil
	}

	switch n := n.(type) {
	case *expr.Constant:
		return d.constant(n, path), nil

	case *expr.Parameter:
		return d.param(n, path), nil

	case *expr.Binary:
		left, err := d.node(n.Left, path.Append(expr.Fixed(expr.StepLeft)))
		if err != nil {
			return nil, err
		}
		right, err := d.node(n.Right, path.Append(expr.Fixed(expr.StepRight)))
		if err != nil {
			return nil, err
		}
		return &expr.Binary{Op: n.Op, Left: left, Right: right, Method: n.Method}, nil

	case *expr.Unary:
		operand, err := d.node(n.Operand, path.Append(expr.Fixed(expr.StepOperand)))
		if err != nil {
			return nil, err
		}
		return &expr.Unary{Op: n.Op, Operand: operand, Type: n.Type, Method: n.Method}, nil

	case *expr.Conditional:
		test, err := d.node(n.Test, path.Append(expr.Fixed(expr.StepTest)))
		if err != nil {
			return nil, err
		}
		ifTrue, err := d.node(n.IfTrue, path.Append(expr.Fixed(expr.StepIfTrue)))
		if err != nil {
			return nil, err
		}
		ifFalse, err := d.node(n.IfFalse, path.Append(expr.Fixed(expr.StepIfFalse)))
		if err != nil {
			return nil, err
		}
		return &expr.Conditional{Test: test, IfTrue: ifTrue, IfFalse: ifFalse}, nil

	case *expr.MemberAccess:
		target, err := d.node(n.Target, path.Append(expr.Fixed(expr.StepExpression)))
		if err != nil {
			return nil, err
		}
		return &expr.MemberAccess{Target: target, Member: n.Member}, nil

	case *expr.Call:
		target, err := d.node(n.Target, path.Append(expr.Fixed(expr.StepObject)))
		if err != nil {
			return nil, err
		}
		args, err := d.list(n.Arguments, path, expr.StepArguments)
		if err != nil {
			return nil, err
		}
		return &expr.Call{Target: target, Method: n.Method, Arguments: args}, nil

	case *expr.New:
		return d.newExpr(n, path)

	case *expr.NewArray:
		items, err := d.list(n.Items, path, expr.StepExpressions)
		if err != nil {
			return nil, err
		}
		return &expr.NewArray{ElemType: n.ElemType, Mode: n.Mode, Items: items}, nil

	case *expr.ListInit:
		ctor, err := d.newExpr(n.New, path.Append(expr.Fixed(expr.StepNewExpression)))
		if err != nil {
			return nil, err
		}
		inits, err := d.inits(n.Initializers, path)
		if err != nil {
			return nil, err
		}
		return &expr.ListInit{New: ctor, Initializers: inits}, nil

	case *expr.MemberInit:
		ctor, err := d.newExpr(n.New, path.Append(expr.Fixed(expr.StepNewExpression)))
		if err != nil {
			return nil, err
		}
		bindings, err := d.bindings(n.Bindings, path)
		if err != nil {
			return nil, err
		}
		return &expr.MemberInit{New: ctor, Bindings: bindings}, nil

	case *expr.Lambda:
		params := make([]*expr.Parameter, len(n.Parameters))
		for i, p := range n.Parameters {
			if p == nil {
				return nil, fmt.Errorf("rewrite: %s: nil lambda parameter %d", path, i)
			}
			params[i] = d.param(p, path.Append(expr.Indexed(expr.StepParameters, i)))
		}
		body, err := d.node(n.Body, path.Append(expr.Fixed(expr.StepBody)))
		if err != nil {
			return nil, err
		}
		return &expr.Lambda{Parameters: params, Body: body}, nil

	case *expr.Invoke:
		target, err := d.node(n.Target, path.Append(expr.Fixed(expr.StepExpression)))
		if err != nil {
			return nil, err
		}
		args, err := d.list(n.Arguments, path, expr.StepArguments)
		if err != nil {
			return nil, err
		}
		return &expr.Invoke{Target: target, Arguments: args}, nil

	case *expr.TypeBinary:
		target, err := d.node(n.Target, path.Append(expr.Fixed(expr.StepExpression)))
		if err != nil {
			return nil, err
		}
		return &expr.TypeBinary{Target: target, Type: n.Type}, nil

	default:
		return nil, fmt.Errorf("rewrite: %s: %w", path, expr.Unsupported(n))
	}
}

// constant copies c, or promotes it to a parameter when its type is a
// capture class or its value is held by reference. Capture classes share one
// parameter per type; by-reference values get one per occurrence.
func (d *duplicator) constant(c *expr.Constant, path expr.Path) expr.Node {
	t := c.ValueType()
	if d.match == nil || t == nil {
		return &expr.Constant{Value: c.Value, Type: c.Type}
	}
	var key string
	switch {
	case d.match(t):
		key = CaptureKey(t)
	case ByReference(c.Value):
		key = ReferenceKey(path)
	default:
		return &expr.Constant{Value: c.Value, Type: c.Type}
	}
	return d.reg.resolve(key, path, true, func() *expr.Parameter {
		return &expr.Parameter{Name: key, Type: t}
	})
}

func (d *duplicator) param(p *expr.Parameter, path expr.Path) *expr.Parameter {
	return d.reg.resolve(p.Name, path, false, func() *expr.Parameter {
		return &expr.Parameter{Name: p.Name, Type: p.Type}
	})
}

func (d *duplicator) newExpr(n *expr.New, path expr.Path) (*expr.New, error) {
	if n == nil {
		return nil, nil
	}
	args, err := d.list(n.Arguments, path, expr.StepArguments)
	if err != nil {
		return nil, err
	}
	var members []*expr.Member
	if n.Members != nil {
		members = append([]*expr.Member(nil), n.Members...)
	}
	return &expr.New{Type: n.Type, Constructor: n.Constructor, Arguments: args, Members: members}, nil
}

// list duplicates the elements of an indexed slot of kind k under path.
func (d *duplicator) list(nodes []expr.Node, path expr.Path, k expr.StepKind) ([]expr.Node, error) {
	if nodes == nil {
		return nil, nil
	}
	out := make([]expr.Node, len(nodes))
	for i, n := range nodes {
		dup, err := d.node(n, path.Append(expr.Indexed(k, i)))
		if err != nil {
			return nil, err
		}
		out[i] = dup
	}
	return out, nil
}

func (d *duplicator) inits(inits []*expr.ElementInit, path expr.Path) ([]*expr.ElementInit, error) {
	if inits == nil {
		return nil, nil
	}
	out := make([]*expr.ElementInit, len(inits))
	for i, init := range inits {
		if init == nil {
			return nil, fmt.Errorf("rewrite: %s: nil initializer %d", path, i)
		}
		args, err := d.list(init.Arguments, path.Append(expr.Indexed(expr.StepInitializers, i)), expr.StepArguments)
		if err != nil {
			return nil, err
		}
		out[i] = &expr.ElementInit{Method: init.Method, Arguments: args}
	}
	return out, nil
}

func (d *duplicator) bindings(bindings []expr.Binding, path expr.Path) ([]expr.Binding, error) {
	if bindings == nil {
		return nil, nil
	}
	out := make([]expr.Binding, len(bindings))
	for i, b := range bindings {
		bpath := path.Append(expr.Indexed(expr.StepBindings, i))
		switch b := b.(type) {
		case *expr.Assignment:
			value, err := d.node(b.Value, bpath.Append(expr.Fixed(expr.StepExpression)))
			if err != nil {
				return nil, err
			}
			out[i] = &expr.Assignment{Member: b.Member, Value: value}
		case *expr.MemberBinding:
			nested, err := d.bindings(b.Bindings, bpath)
			if err != nil {
				return nil, err
			}
			out[i] = &expr.MemberBinding{Member: b.Member, Bindings: nested}
		case *expr.ListBinding:
			inits, err := d.inits(b.Initializers, bpath)
			if err != nil {
				return nil, err
			}
			out[i] = &expr.ListBinding{Member: b.Member, Initializers: inits}
		default:
			return nil, fmt.Errorf("rewrite: %s: %w", bpath, expr.Unsupported(b))
		}
	}
	return out, nil
}
