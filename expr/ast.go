package expr

import "reflect"

// ---------------------------------------------------------------------------
// AST: expression trees for cached lambdas
// ---------------------------------------------------------------------------

// NodeKind identifies the concrete kind of an expression node.
type NodeKind uint8

const (
	KindInvalid NodeKind = iota
	KindConstant
	KindParameter
	KindBinary
	KindUnary
	KindConditional
	KindMemberAccess
	KindCall
	KindNew
	KindNewArray
	KindListInit
	KindMemberInit
	KindLambda
	KindInvoke
	KindTypeBinary
)

var kindNames = [...]string{
	KindInvalid:      "Invalid",
	KindConstant:     "Constant",
	KindParameter:    "Parameter",
	KindBinary:       "Binary",
	KindUnary:        "Unary",
	KindConditional:  "Conditional",
	KindMemberAccess: "MemberAccess",
	KindCall:         "Call",
	KindNew:          "New",
	KindNewArray:     "NewArray",
	KindListInit:     "ListInit",
	KindMemberInit:   "MemberInit",
	KindLambda:       "Lambda",
	KindInvoke:       "Invoke",
	KindTypeBinary:   "TypeBinary",
}

func (k NodeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Node is the interface implemented by all expression nodes.
//
// Nodes form a tree: each node owns its children and is never mutated once
// built. Only the kinds declared in this file are understood by the rewriter,
// the keyer and the backend; anything else is rejected with
// ErrUnsupportedNodeKind.
type Node interface {
	Kind() NodeKind
}

// Constant is a literal value. Type is the declared type; when nil it is
// taken from the dynamic type of Value.
type Constant struct {
	Value any
	Type  reflect.Type
}

func (*Constant) Kind() NodeKind { return KindConstant }

// ValueType returns the declared type, or the dynamic type of Value.
func (n *Constant) ValueType() reflect.Type {
	if n.Type != nil {
		return n.Type
	}
	return reflect.TypeOf(n.Value)
}

// Parameter is a named lambda parameter. References to a parameter inside a
// body are Parameter nodes carrying the same name.
type Parameter struct {
	Name string
	Type reflect.Type
}

func (*Parameter) Kind() NodeKind { return KindParameter }

// Binary applies a binary operator. Method, when set, is a user-defined
// overload taking (left, right).
type Binary struct {
	Op     BinaryOp
	Left   Node
	Right  Node
	Method *Method
}

func (*Binary) Kind() NodeKind { return KindBinary }

// Unary applies a unary operator. Type is the target type of Convert and
// TypeAs and is ignored otherwise.
type Unary struct {
	Op      UnaryOp
	Operand Node
	Type    reflect.Type
	Method  *Method
}

func (*Unary) Kind() NodeKind { return KindUnary }

// Conditional is the ternary test ? ifTrue : ifFalse.
type Conditional struct {
	Test    Node
	IfTrue  Node
	IfFalse Node
}

func (*Conditional) Kind() NodeKind { return KindConditional }

// MemberAccess reads a field or property. A nil Target denotes a static
// member, which must provide Member.Get.
type MemberAccess struct {
	Target Node
	Member *Member
}

func (*MemberAccess) Kind() NodeKind { return KindMemberAccess }

// Call invokes a method. A nil Target denotes a static call through
// Method.Func; extension methods are static calls whose first argument is the
// logical receiver.
type Call struct {
	Target    Node
	Method    *Method
	Arguments []Node
}

func (*Call) Kind() NodeKind { return KindCall }

// New constructs a value of Type. Members, when present, name the struct
// field each argument initializes.
type New struct {
	Type        reflect.Type
	Constructor *Constructor
	Arguments   []Node
	Members     []*Member
}

func (*New) Kind() NodeKind { return KindNew }

// ArrayMode selects how NewArray interprets its items.
type ArrayMode uint8

const (
	ArrayInit   ArrayMode = iota // items are the elements
	ArrayBounds                  // items are the lengths of each dimension
)

// NewArray creates a slice of ElemType.
type NewArray struct {
	ElemType reflect.Type
	Mode     ArrayMode
	Items    []Node
}

func (*NewArray) Kind() NodeKind { return KindNewArray }

// ListInit constructs a collection and adds each initializer to it.
type ListInit struct {
	New          *New
	Initializers []*ElementInit
}

func (*ListInit) Kind() NodeKind { return KindListInit }

// MemberInit constructs a value and applies member bindings to it.
type MemberInit struct {
	New      *New
	Bindings []Binding
}

func (*MemberInit) Kind() NodeKind { return KindMemberInit }

// Lambda is a function literal.
type Lambda struct {
	Parameters []*Parameter
	Body       Node
}

func (*Lambda) Kind() NodeKind { return KindLambda }

// Invoke applies a function-valued expression to arguments.
type Invoke struct {
	Target    Node
	Arguments []Node
}

func (*Invoke) Kind() NodeKind { return KindInvoke }

// TypeBinary tests whether Target's value is of Type.
type TypeBinary struct {
	Target Node
	Type   reflect.Type
}

func (*TypeBinary) Kind() NodeKind { return KindTypeBinary }
