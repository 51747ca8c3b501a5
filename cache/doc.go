// Package cache compiles expression trees once per structural signature and
// runs the resulting executors.
//
// A Cache keys each tree with signature.Keyer. On the first call for a key
// the tree's capture-class constants are promoted to trailing parameters,
// the rewritten lambda goes to the injected Compiler, and the Executor is
// stored for the lifetime of the Cache. Later calls with trees of the same
// shape reuse it, reading their own captured values back out of the tree
// they present:
//
//	c := cache.New(compiler, cache.Options{})
//	v, err := c.Execute(tree, 3, 4)
package cache
