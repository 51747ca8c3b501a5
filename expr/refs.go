package expr

import "reflect"

// ---------------------------------------------------------------------------
// Member, method and constructor references
// ---------------------------------------------------------------------------

// Member refers to a field or property by name.
//
// Owner is the declaring type; it names static members in signatures. Get,
// when set, reads the member from a target (nil for static members) instead
// of resolving Name by reflection.
type Member struct {
	Name  string
	Owner reflect.Type
	Get   func(target any) any
}

// Method refers to a callable member.
//
// For instance calls Func is optional and, when set, receives the target as
// its first argument. Static and extension calls require Func.
type Method struct {
	Name      string
	Owner     reflect.Type
	Extension bool
	Func      any
}

// Constructor refers to a constructor function returning a value of Type.
type Constructor struct {
	Type reflect.Type
	Func any
}

// ElementInit is one initializer of a ListInit or ListBinding. A nil Method
// appends to a slice or, with two arguments, stores a key/value pair in a map.
type ElementInit struct {
	Method    *Method
	Arguments []Node
}

// ---------------------------------------------------------------------------
// Member bindings
// ---------------------------------------------------------------------------

// BindingKind identifies the concrete kind of a member binding.
type BindingKind uint8

const (
	BindAssignment BindingKind = iota
	BindMember
	BindList
)

// Binding is one member binding of a MemberInit.
type Binding interface {
	BindingKind() BindingKind
	Target() *Member
}

// Assignment sets Member to the value of Value.
type Assignment struct {
	Member *Member
	Value  Node
}

// MemberBinding applies nested bindings to the value held by Member.
type MemberBinding struct {
	Member   *Member
	Bindings []Binding
}

// ListBinding adds initializers to the collection held by Member.
type ListBinding struct {
	Member       *Member
	Initializers []*ElementInit
}

func (*Assignment) BindingKind() BindingKind    { return BindAssignment }
func (*MemberBinding) BindingKind() BindingKind { return BindMember }
func (*ListBinding) BindingKind() BindingKind   { return BindList }

func (b *Assignment) Target() *Member    { return b.Member }
func (b *MemberBinding) Target() *Member { return b.Member }
func (b *ListBinding) Target() *Member   { return b.Member }
