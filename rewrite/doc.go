// Package rewrite duplicates expression trees and promotes captured closure
// values into explicit parameters.
//
// Both passes record, for every parameter-like placeholder they create, the
// Path from the root at which it was found. The compile cache uses the
// recorded capture paths to read each call's captured value out of the tree
// the caller presents.
package rewrite
