package expr

import "reflect"

// ---------------------------------------------------------------------------
// Builders
//
// Thin constructors for the common node shapes. Struct literals remain the
// general way to build trees.
// ---------------------------------------------------------------------------

// Const returns a constant whose type is the dynamic type of v.
func Const(v any) *Constant {
	return &Constant{Value: v, Type: reflect.TypeOf(v)}
}

// ConstOf returns a constant of declared type t.
func ConstOf(v any, t reflect.Type) *Constant {
	return &Constant{Value: v, Type: t}
}

// Param returns a parameter of type T.
func Param[T any](name string) *Parameter {
	return &Parameter{Name: name, Type: reflect.TypeFor[T]()}
}

// Fn returns a lambda over params.
func Fn(body Node, params ...*Parameter) *Lambda {
	return &Lambda{Parameters: params, Body: body}
}

// Bin returns a binary node.
func Bin(op BinaryOp, left, right Node) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

// Un returns a unary node.
func Un(op UnaryOp, operand Node) *Unary {
	return &Unary{Op: op, Operand: operand}
}

// ConvertTo returns a conversion of operand to t.
func ConvertTo(operand Node, t reflect.Type) *Unary {
	return &Unary{Op: Convert, Operand: operand, Type: t}
}

// If returns a conditional node.
func If(test, ifTrue, ifFalse Node) *Conditional {
	return &Conditional{Test: test, IfTrue: ifTrue, IfFalse: ifFalse}
}

// Field returns an access of the named member on target.
func Field(target Node, name string) *MemberAccess {
	return &MemberAccess{Target: target, Member: &Member{Name: name}}
}

// CallOn returns an instance call of the named method on target.
func CallOn(target Node, name string, args ...Node) *Call {
	return &Call{Target: target, Method: &Method{Name: name}, Arguments: args}
}

// CallStatic returns a static call of fn, declared on owner under name.
func CallStatic(owner reflect.Type, name string, fn any, args ...Node) *Call {
	return &Call{Method: &Method{Name: name, Owner: owner, Func: fn}, Arguments: args}
}

// CallExtension returns an extension call of fn with recv as its logical
// receiver.
func CallExtension(owner reflect.Type, name string, fn any, recv Node, args ...Node) *Call {
	all := make([]Node, 0, len(args)+1)
	all = append(all, recv)
	all = append(all, args...)
	return &Call{
		Method:    &Method{Name: name, Owner: owner, Extension: true, Func: fn},
		Arguments: all,
	}
}

// Apply returns an invocation of target with args.
func Apply(target Node, args ...Node) *Invoke {
	return &Invoke{Target: target, Arguments: args}
}

// Is returns a type test of target against t.
func Is(target Node, t reflect.Type) *TypeBinary {
	return &TypeBinary{Target: target, Type: t}
}
