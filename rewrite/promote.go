package rewrite

import "github.com/chazu/exprcache/expr"

// Promote duplicates root like Duplicate, except that constants whose
// declared type satisfies match are replaced by a placeholder parameter keyed
// by the capture type's name. The placeholder and its Path are recorded in
// reg with Capture set, so callers can later re-read the captured value from
// any tree of the same shape.
//
// A nil match uses DefaultMatcher.
func Promote(root expr.Node, reg *Registry, match Matcher) (expr.Node, error) {
	if match == nil {
		match = DefaultMatcher
	}
	d := &duplicator{reg: reg, match: match}
	return d.node(root, expr.Path{})
}
