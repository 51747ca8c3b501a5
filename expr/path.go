package expr

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Steps and paths
//
// A Path locates a node relative to a tree root by child slot, never by node
// identity, so the same Path resolves to corresponding nodes in any two trees
// of the same shape.
// ---------------------------------------------------------------------------

// StepKind names a child slot.
type StepKind uint8

const (
	StepLeft StepKind = iota
	StepRight
	StepOperand
	StepBody
	StepTest
	StepIfTrue
	StepIfFalse
	StepObject        // Call target
	StepExpression    // MemberAccess, Invoke and TypeBinary target; Assignment value
	StepNewExpression // ListInit and MemberInit constructor

	// Indexed slots.
	StepArguments
	StepExpressions
	StepParameters
	StepInitializers
	StepBindings
)

var stepNames = [...]string{
	StepLeft:          "Left",
	StepRight:         "Right",
	StepOperand:       "Operand",
	StepBody:          "Body",
	StepTest:          "Test",
	StepIfTrue:        "IfTrue",
	StepIfFalse:       "IfFalse",
	StepObject:        "Object",
	StepExpression:    "Expression",
	StepNewExpression: "NewExpression",
	StepArguments:     "Arguments",
	StepExpressions:   "Expressions",
	StepParameters:    "Parameters",
	StepInitializers:  "Initializers",
	StepBindings:      "Bindings",
}

func (k StepKind) String() string {
	if int(k) < len(stepNames) {
		return stepNames[k]
	}
	return "Step(" + strconv.Itoa(int(k)) + ")"
}

// Indexed reports whether k selects an element of a child list.
func (k StepKind) Indexed() bool { return k >= StepArguments }

// Step identifies one child slot. Index is meaningful only for indexed kinds.
type Step struct {
	Kind  StepKind
	Index int
}

// Fixed returns a step into a fixed slot.
func Fixed(k StepKind) Step { return Step{Kind: k} }

// Indexed returns a step into element i of an indexed slot.
func Indexed(k StepKind, i int) Step { return Step{Kind: k, Index: i} }

func (s Step) String() string {
	if s.Kind.Indexed() {
		return s.Kind.String() + "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Kind.String()
}

// Path is an immutable sequence of steps from a root. The zero Path denotes
// the root itself.
type Path struct {
	steps []Step
}

// NewPath returns a Path of the given steps.
func NewPath(steps ...Step) Path {
	return Path{steps: append([]Step(nil), steps...)}
}

// Append returns a new Path extended by s. p is left unchanged.
func (p Path) Append(s Step) Path {
	steps := make([]Step, len(p.steps)+1)
	copy(steps, p.steps)
	steps[len(p.steps)] = s
	return Path{steps: steps}
}

// Len returns the number of steps.
func (p Path) Len() int { return len(p.steps) }

// At returns step i.
func (p Path) At(i int) Step { return p.steps[i] }

// Steps returns a copy of the steps.
func (p Path) Steps() []Step { return append([]Step(nil), p.steps...) }

// Equal reports whether p and q have the same steps.
func (p Path) Equal(q Path) bool {
	if len(p.steps) != len(q.steps) {
		return false
	}
	for i := range p.steps {
		if p.steps[i] != q.steps[i] {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	if len(p.steps) == 0 {
		return "<root>"
	}
	var sb strings.Builder
	for i, s := range p.steps {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(s.String())
	}
	return sb.String()
}

// Resolve walks p from root and returns the node it designates. It fails
// with a *PathError when a step does not exist on the node reached so far.
func (p Path) Resolve(root Node) (Node, error) {
	var cur any = root
	for i, s := range p.steps {
		next, err := child(cur, s)
		if err != nil {
			return nil, &PathError{Path: p, Step: i, Reason: err.Error()}
		}
		cur = next
	}
	n, ok := cur.(Node)
	if !ok || IsNil(n) {
		return nil, &PathError{Path: p, Step: len(p.steps), Reason: fmt.Sprintf("ends on %T, not a node", cur)}
	}
	return n, nil
}

// child returns the element of cur selected by s. cur is a Node, an
// *ElementInit or a Binding.
func child(cur any, s Step) (any, error) {
	switch n := cur.(type) {
	case *Binary:
		switch s.Kind {
		case StepLeft:
			return nonNil(n.Left)
		case StepRight:
			return nonNil(n.Right)
		}
	case *Unary:
		if s.Kind == StepOperand {
			return nonNil(n.Operand)
		}
	case *Conditional:
		switch s.Kind {
		case StepTest:
			return nonNil(n.Test)
		case StepIfTrue:
			return nonNil(n.IfTrue)
		case StepIfFalse:
			return nonNil(n.IfFalse)
		}
	case *MemberAccess:
		if s.Kind == StepExpression {
			return nonNil(n.Target)
		}
	case *Call:
		switch s.Kind {
		case StepObject:
			return nonNil(n.Target)
		case StepArguments:
			return element(n.Arguments, s.Index)
		}
	case *New:
		if s.Kind == StepArguments {
			return element(n.Arguments, s.Index)
		}
	case *NewArray:
		if s.Kind == StepExpressions {
			return element(n.Items, s.Index)
		}
	case *ListInit:
		switch s.Kind {
		case StepNewExpression:
			if n.New == nil {
				return nil, fmt.Errorf("empty %s slot", s.Kind)
			}
			return n.New, nil
		case StepInitializers:
			return element(n.Initializers, s.Index)
		}
	case *MemberInit:
		switch s.Kind {
		case StepNewExpression:
			if n.New == nil {
				return nil, fmt.Errorf("empty %s slot", s.Kind)
			}
			return n.New, nil
		case StepBindings:
			return element(n.Bindings, s.Index)
		}
	case *Lambda:
		switch s.Kind {
		case StepParameters:
			return element(n.Parameters, s.Index)
		case StepBody:
			return nonNil(n.Body)
		}
	case *Invoke:
		switch s.Kind {
		case StepExpression:
			return nonNil(n.Target)
		case StepArguments:
			return element(n.Arguments, s.Index)
		}
	case *TypeBinary:
		if s.Kind == StepExpression {
			return nonNil(n.Target)
		}
	case *ElementInit:
		if s.Kind == StepArguments {
			return element(n.Arguments, s.Index)
		}
	case *Assignment:
		if s.Kind == StepExpression {
			return nonNil(n.Value)
		}
	case *MemberBinding:
		if s.Kind == StepBindings {
			return element(n.Bindings, s.Index)
		}
	case *ListBinding:
		if s.Kind == StepInitializers {
			return element(n.Initializers, s.Index)
		}
	case *Constant, *Parameter:
		return nil, fmt.Errorf("%T has no children", cur)
	default:
		return nil, Unsupported(cur)
	}
	return nil, fmt.Errorf("%T has no %s slot", cur, s.Kind)
}

func nonNil(n Node) (any, error) {
	if IsNil(n) {
		return nil, fmt.Errorf("empty slot")
	}
	return n, nil
}

func element[T any](list []T, i int) (any, error) {
	if i < 0 || i >= len(list) {
		return nil, fmt.Errorf("index %d out of range [0,%d)", i, len(list))
	}
	if any(list[i]) == nil {
		return nil, fmt.Errorf("empty element %d", i)
	}
	return list[i], nil
}

// IsNil reports whether n is nil or a typed nil pointer.
func IsNil(n Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
