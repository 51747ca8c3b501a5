package signature

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/chazu/exprcache/expr"
	"github.com/chazu/exprcache/rewrite"
)

// ---------------------------------------------------------------------------
// Structural signatures
//
// A signature is built by a depth-first walk emitting operator symbols,
// member and method names, parameter names and literal text. It never looks
// at node identity, so independently built trees of the same shape and
// content share a signature. Values of capture classes are rendered by type
// only; trees that differ just in captured values therefore collide on
// purpose. Funcs, channels and pointers are rendered by type as well; the
// cache reads them back from each caller's tree like captures.
//
// Distinct trees can in principle render identically (for example a string
// literal that spells out another subtree). No secondary comparison guards
// against that.
// ---------------------------------------------------------------------------

// Keyer computes signatures. The zero value is not usable; use New.
type Keyer struct {
	match rewrite.Matcher
}

// New returns a Keyer that renders constants matched by match as capture
// classes. A nil match uses rewrite.DefaultMatcher.
func New(match rewrite.Matcher) *Keyer {
	if match == nil {
		match = rewrite.DefaultMatcher
	}
	return &Keyer{match: match}
}

var defaultKeyer = New(nil)

// Of returns the signature of n using the default capture convention.
func Of(n expr.Node) (string, error) {
	return defaultKeyer.Key(n)
}

// Key returns the signature of n. It fails with expr.ErrUnsupportedNodeKind
// when n contains an unknown node kind.
func (k *Keyer) Key(n expr.Node) (string, error) {
	w := &writer{match: k.match}
	w.sb.Grow(64)
	w.node(n)
	if w.err != nil {
		return "", w.err
	}
	return w.sb.String(), nil
}

type writer struct {
	sb    strings.Builder
	match rewrite.Matcher
	err   error
}

func (w *writer) str(s string) { w.sb.WriteString(s) }

func (w *writer) char(b byte) { w.sb.WriteByte(b) }

func (w *writer) typ(t reflect.Type) {
	if t == nil {
		w.str("?")
		return
	}
	w.str(t.String())
}

func (w *writer) node(n expr.Node) {
	if w.err != nil {
		return
	}
	if expr.IsNil(n) {
		w.char('_')
		return
	}

	switch n := n.(type) {
	case *expr.Constant:
		t := n.ValueType()
		switch {
		case t != nil && w.match(t):
			w.str(rewrite.CaptureKey(t))
		case rewrite.ByReference(n.Value):
			w.str("ref<")
			w.str(rewrite.CaptureKey(t))
			w.char('>')
		default:
			w.str(literal(n.Value))
			if n.Type != nil && n.Type != reflect.TypeOf(n.Value) {
				w.char(':')
				w.typ(n.Type)
			}
		}

	case *expr.Parameter:
		w.str(n.Name)

	case *expr.Binary:
		w.char('(')
		w.node(n.Left)
		if sym := n.Op.Symbol(); sym != "" {
			w.str(sym)
		} else {
			w.str(n.Op.String())
		}
		w.node(n.Right)
		w.char(')')
		w.overload(n.Method)

	case *expr.Unary:
		if sym := n.Op.Symbol(); sym != "" {
			w.str(sym)
		} else {
			w.str(n.Op.String())
		}
		if n.Op == expr.Convert || n.Op == expr.TypeAs {
			w.char('<')
			w.typ(n.Type)
			w.char('>')
		}
		w.char('(')
		w.node(n.Operand)
		w.char(')')
		w.overload(n.Method)

	case *expr.Conditional:
		w.char('(')
		w.node(n.Test)
		w.char('?')
		w.node(n.IfTrue)
		w.char(':')
		w.node(n.IfFalse)
		w.char(')')

	case *expr.MemberAccess:
		switch {
		case !expr.IsNil(n.Target):
			w.node(n.Target)
		case n.Member != nil:
			w.owner(n.Member.Owner)
		default:
			w.owner(nil)
		}
		w.char('.')
		w.str(memberName(n.Member))

	case *expr.Call:
		w.call(n)

	case *expr.New:
		w.newExpr(n)

	case *expr.NewArray:
		w.str("new ")
		w.typ(n.ElemType)
		if n.Mode == expr.ArrayBounds {
			w.char('[')
			w.list(n.Items)
			w.char(']')
		} else {
			w.str("[]{")
			w.list(n.Items)
			w.char('}')
		}

	case *expr.ListInit:
		w.newExpr(n.New)
		w.char('{')
		w.inits(n.Initializers)
		w.char('}')

	case *expr.MemberInit:
		w.newExpr(n.New)
		w.char('{')
		w.bindings(n.Bindings)
		w.char('}')

	case *expr.Lambda:
		w.char('(')
		for i, p := range n.Parameters {
			if i > 0 {
				w.char(',')
			}
			if p == nil {
				w.char('_')
				continue
			}
			w.str(p.Name)
		}
		w.str(")=>")
		w.node(n.Body)

	case *expr.Invoke:
		w.str("invoke(")
		w.node(n.Target)
		w.str(")(")
		w.list(n.Arguments)
		w.char(')')

	case *expr.TypeBinary:
		w.char('(')
		w.node(n.Target)
		w.str(" is ")
		w.typ(n.Type)
		w.char(')')

	default:
		w.err = fmt.Errorf("signature: %w", expr.Unsupported(n))
	}
}

// call keys instance calls by target, static calls by declaring type, and
// extension calls by their logical receiver.
func (w *writer) call(n *expr.Call) {
	args := n.Arguments
	switch {
	case n.Method != nil && n.Method.Extension && len(args) > 0:
		w.node(args[0])
		args = args[1:]
	case expr.IsNil(n.Target):
		if n.Method != nil {
			w.owner(n.Method.Owner)
		} else {
			w.owner(nil)
		}
	default:
		w.node(n.Target)
	}
	w.char('.')
	w.str(methodName(n.Method))
	w.char('(')
	w.list(args)
	w.char(')')
}

func (w *writer) newExpr(n *expr.New) {
	if n == nil {
		w.str("new _")
		return
	}
	w.str("new ")
	switch {
	case n.Type != nil:
		w.typ(n.Type)
	case n.Constructor != nil:
		w.typ(n.Constructor.Type)
	default:
		w.typ(nil)
	}
	w.char('(')
	for i, a := range n.Arguments {
		if i > 0 {
			w.char(',')
		}
		if i < len(n.Members) {
			w.str(memberName(n.Members[i]))
			w.char('=')
		}
		w.node(a)
	}
	w.char(')')
}

func (w *writer) list(nodes []expr.Node) {
	for i, n := range nodes {
		if i > 0 {
			w.char(',')
		}
		w.node(n)
	}
}

func (w *writer) inits(inits []*expr.ElementInit) {
	for i, init := range inits {
		if i > 0 {
			w.char(',')
		}
		if init == nil {
			w.char('_')
			continue
		}
		if init.Method != nil {
			w.str(init.Method.Name)
		}
		w.char('(')
		w.list(init.Arguments)
		w.char(')')
	}
}

func (w *writer) bindings(bindings []expr.Binding) {
	for i, b := range bindings {
		if w.err != nil {
			return
		}
		if i > 0 {
			w.char(',')
		}
		switch b := b.(type) {
		case *expr.Assignment:
			w.str(memberName(b.Member))
			w.char('=')
			w.node(b.Value)
		case *expr.MemberBinding:
			w.str(memberName(b.Member))
			w.str("={")
			w.bindings(b.Bindings)
			w.char('}')
		case *expr.ListBinding:
			w.str(memberName(b.Member))
			w.str("={")
			w.inits(b.Initializers)
			w.char('}')
		default:
			w.err = fmt.Errorf("signature: %w", expr.Unsupported(b))
		}
	}
}

func (w *writer) owner(t reflect.Type) {
	if t == nil {
		w.str("static")
		return
	}
	w.typ(t)
}

func (w *writer) overload(m *expr.Method) {
	if m == nil {
		return
	}
	w.char('@')
	if m.Owner != nil {
		w.typ(m.Owner)
		w.char('.')
	}
	w.str(m.Name)
}

func memberName(m *expr.Member) string {
	if m == nil {
		return "_"
	}
	return m.Name
}

func methodName(m *expr.Method) string {
	if m == nil {
		return "_"
	}
	return m.Name
}
