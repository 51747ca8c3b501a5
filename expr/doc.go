// Package expr defines the expression trees handled by the compile cache.
//
// This package contains:
//   - the fixed set of node kinds (constants, parameters, operators, member
//     access, calls, construction, lambdas, invocation and type tests)
//   - member, method and constructor references
//   - Step and Path, which locate a node by child slot rather than identity
//   - small builders for common shapes
package expr
