// Package eval is a backend that compiles expression lambdas into trees of
// Go closures.
//
// Values flow as any. Operators on numbers keep the operand type when both
// sides agree and widen otherwise; members, methods and constructors are
// reached through reflect. A nested lambda evaluates to a *Func, which is
// adapted to the expected Go func type when passed to Go code.
package eval
